// Package convert turns a time-ordered stream of LCM log events into a
// per-channel, column-oriented structure ready for export.
package convert

// MaxKeyLen is the longest channel, field or constant name kept in the
// store. MATLAB identifiers are capped at 31 characters, so every key is
// truncated the same way.
const MaxKeyLen = 31

// Key truncates a name to MaxKeyLen.
func Key(name string) string {
	if len(name) > MaxKeyLen {
		return name[:MaxKeyLen]
	}
	return name
}

// Store is the accumulating output of a conversion run: one Node per
// channel, keyed by (truncated) channel name.
type Store map[string]Node

// Node mirrors one message type's field structure. Values are *Column for
// leaf fields, Node for nested messages, and Constant for schema-level
// named values captured at first sight of the channel.
type Node map[string]interface{}

// Column is the append-only sequence of values observed for one leaf
// field, one entry per decoded message, in arrival order.
type Column struct {
	Values []interface{}
}

// Constant is a schema-level value; unlike a Column it holds exactly one
// value for the whole run.
type Constant struct {
	Value interface{}
}

// column returns the named column, creating it if necessary. Appending to
// an existing key of a different shape is reported by the caller.
func (n Node) column(name string) (*Column, bool) {
	switch v := n[name].(type) {
	case *Column:
		return v, true
	case nil:
		c := &Column{}
		n[name] = c
		return c, true
	default:
		return nil, false
	}
}

// child returns the named nested node, creating it if necessary.
func (n Node) child(name string) (Node, bool, bool) {
	switch v := n[name].(type) {
	case Node:
		return v, false, true
	case nil:
		c := Node{}
		n[name] = c
		return c, true, true
	default:
		return nil, false, false
	}
}

// Plain converts the store to plain nested maps: columns become value
// slices, constants become single values. This is the shape serialized
// verbatim by the object-file adapter.
func (s Store) Plain() map[string]interface{} {
	out := make(map[string]interface{}, len(s))
	for channel, node := range s {
		out[channel] = node.Plain()
	}
	return out
}

// Plain converts the node to a plain nested map.
func (n Node) Plain() map[string]interface{} {
	out := make(map[string]interface{}, len(n))
	for name, v := range n {
		switch v := v.(type) {
		case *Column:
			out[name] = v.Values
		case Node:
			out[name] = v.Plain()
		case Constant:
			out[name] = v.Value
		}
	}
	return out
}

// Rows returns the longest column length anywhere under the node. Export
// adapters use it to pad short columns.
func (n Node) Rows() int {
	max := 0
	for _, v := range n {
		switch v := v.(type) {
		case *Column:
			if len(v.Values) > max {
				max = len(v.Values)
			}
		case Node:
			if r := v.Rows(); r > max {
				max = r
			}
		}
	}
	return max
}
