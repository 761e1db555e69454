package convert

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/oceansystems/lcmexport/lcmtype"
)

// Tree is the decoded form of one message: a leaf value, a nested object,
// or a list of trees. Trees are built fresh per message, merged into the
// store and discarded.
type Tree interface{ tree() }

// Leaf holds a scalar, a string, a byte array or a fixed tuple of scalars.
type Leaf struct {
	Value interface{}
}

// Object holds a message's decoded fields in declaration order. Desc is
// retained so constants can be captured when a channel is first seen.
type Object struct {
	Desc   *lcmtype.Descriptor
	Fields []TreeField
}

// TreeField is one named entry of an Object.
type TreeField struct {
	Name string
	Tree Tree
}

// List holds the decoded elements of a variable-length message array.
type List struct {
	Elems []Tree
}

func (Leaf) tree()    {}
func (*Object) tree() {}
func (List) tree()    {}

// pairedImageField is the field name that triggers the (color, depth)
// image pair interpretation.
const pairedImageField = "images"

// TreeDecoder turns decoded messages into Trees. Stateless per call apart
// from the shared codec and logger.
type TreeDecoder struct {
	codec    PairedImageCodec
	log      *zap.Logger
	maxDepth int
}

// NewTreeDecoder returns a decoder. codec may be nil to store raw image
// payload bytes; log may be nil.
func NewTreeDecoder(codec PairedImageCodec, log *zap.Logger) *TreeDecoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &TreeDecoder{codec: codec, log: log, maxDepth: lcmtype.DefaultMaxDepth}
}

// Decode builds the tree for one message. Fields whose runtime shape
// matches no known kind are dropped with a diagnostic; they never abort
// the rest of the message.
func (td *TreeDecoder) Decode(channel string, msg *lcmtype.Message) (*Object, error) {
	return td.object(channel, msg, 0)
}

func (td *TreeDecoder) object(channel string, msg *lcmtype.Message, depth int) (*Object, error) {
	if depth >= td.maxDepth {
		return nil, fmt.Errorf("convert: message nesting exceeds %d on channel %s", td.maxDepth, channel)
	}
	obj := &Object{Desc: msg.Desc, Fields: make([]TreeField, 0, len(msg.Desc.Fields))}
	for i := range msg.Desc.Fields {
		name := msg.Desc.Fields[i].Name
		value := msg.Values[i]
		switch {
		case isScalar(value), isScalarList(value):
			obj.Fields = append(obj.Fields, TreeField{Name: name, Tree: Leaf{Value: value}})
		case isMessage(value):
			sub, err := td.object(channel, value.(*lcmtype.Message), depth+1)
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, TreeField{Name: name, Tree: sub})
		case isMessageList(value):
			elems := value.([]interface{})
			if name == pairedImageField && td.imagePair(channel, obj, elems) {
				continue
			}
			list, ok := td.list(channel, elems, depth+1)
			if !ok {
				continue
			}
			obj.Fields = append(obj.Fields, TreeField{Name: name, Tree: list})
		default:
			td.log.Debug("ignoring field of unsupported shape",
				zap.String("channel", channel),
				zap.String("field", name),
				zap.String("type", fmt.Sprintf("%T", value)))
		}
	}
	return obj, nil
}

// list decodes a (possibly nested) array of messages.
func (td *TreeDecoder) list(channel string, elems []interface{}, depth int) (List, bool) {
	if depth >= td.maxDepth {
		td.log.Debug("ignoring list nested too deeply", zap.String("channel", channel))
		return List{}, false
	}
	out := List{Elems: make([]Tree, 0, len(elems))}
	for _, e := range elems {
		switch {
		case isMessage(e):
			sub, err := td.object(channel, e.(*lcmtype.Message), depth)
			if err != nil {
				td.log.Debug("ignoring undecodable list element",
					zap.String("channel", channel), zap.Error(err))
				return List{}, false
			}
			out.Elems = append(out.Elems, sub)
		case isMessageList(e):
			sub, ok := td.list(channel, e.([]interface{}), depth+1)
			if !ok {
				return List{}, false
			}
			out.Elems = append(out.Elems, sub)
		default:
			return List{}, false
		}
	}
	return out, true
}

// imagePair interprets a two-element message list as a (color, depth)
// image pair, appending RGB and depth leaves in place of the field. It
// reports whether the interpretation applied; decode failures drop the
// field but never abort the message.
func (td *TreeDecoder) imagePair(channel string, obj *Object, elems []interface{}) bool {
	if len(elems) != 2 {
		return false
	}
	color, ok1 := imagePayload(elems[0])
	depth, ok2 := imagePayload(elems[1])
	if !ok1 || !ok2 {
		return false
	}
	if td.codec == nil {
		obj.Fields = append(obj.Fields,
			TreeField{Name: "RGB", Tree: Leaf{Value: color}},
			TreeField{Name: "depth", Tree: Leaf{Value: depth}})
		return true
	}
	rgb, err := td.codec.DecodeColor(color)
	if err != nil {
		td.log.Debug("dropping undecodable color image",
			zap.String("channel", channel), zap.Error(err))
		return true
	}
	dep, err := td.codec.DecodeDepth(depth)
	if err != nil {
		td.log.Debug("dropping undecodable depth image",
			zap.String("channel", channel), zap.Error(err))
		return true
	}
	obj.Fields = append(obj.Fields,
		TreeField{Name: "RGB", Tree: Leaf{Value: rgb}},
		TreeField{Name: "depth", Tree: Leaf{Value: dep}})
	return true
}

// imagePayload extracts the compressed byte payload of an image message.
func imagePayload(v interface{}) ([]byte, bool) {
	msg, ok := v.(*lcmtype.Message)
	if !ok {
		return nil, false
	}
	data, ok := msg.Value("data")
	if !ok {
		return nil, false
	}
	b, ok := data.([]byte)
	return b, ok
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case int64, float64, bool, string, []byte:
		return true
	}
	return false
}

// isScalarList reports whether v is a (possibly nested) fixed tuple of
// scalars. Such tuples are stored whole, as one column entry.
func isScalarList(v interface{}) bool {
	elems, ok := v.([]interface{})
	if !ok {
		return false
	}
	for _, e := range elems {
		if !isScalar(e) && !isScalarList(e) {
			return false
		}
	}
	return true
}

func isMessage(v interface{}) bool {
	_, ok := v.(*lcmtype.Message)
	return ok
}

// isMessageList reports whether v is a non-empty list whose elements are
// messages or nested message lists.
func isMessageList(v interface{}) bool {
	elems, ok := v.([]interface{})
	if !ok || len(elems) == 0 {
		return false
	}
	for _, e := range elems {
		if !isMessage(e) && !isMessageList(e) {
			return false
		}
	}
	return true
}

// Plain converts a tree to plain Go values: scalars, map[string]interface{}
// for objects and []interface{} for lists. Used when a whole list is
// stored as one opaque column entry, and by the dump output.
func Plain(t Tree) interface{} {
	switch t := t.(type) {
	case Leaf:
		return t.Value
	case *Object:
		m := make(map[string]interface{}, len(t.Fields))
		for _, f := range t.Fields {
			m[Key(f.Name)] = Plain(f.Tree)
		}
		return m
	case List:
		out := make([]interface{}, len(t.Elems))
		for i, e := range t.Elems {
			out[i] = Plain(e)
		}
		return out
	default:
		return nil
	}
}
