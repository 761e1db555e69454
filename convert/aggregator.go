package convert

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/oceansystems/lcmexport/eventlog"
	"github.com/oceansystems/lcmexport/lcmtype"
)

// Source is the boundary to the log container: a forward-only iterator
// over events with best-effort position reporting. *eventlog.Reader
// satisfies it.
type Source interface {
	Next() bool
	Read() (*eventlog.Event, error)
	Tell() int64
	Size() int64
	Err() error
}

// progressEvery is how many accepted messages pass between progress lines.
const progressEvery = 5000

// Reasons a channel is ignored for the remainder of a run.
const (
	IgnoreFiltered    = "filtered"
	IgnoreUnknownType = "unknown type"
)

// IgnoredChannel records one channel the run skipped, with the observed
// fingerprint when the reason is an unregistered type.
type IgnoredChannel struct {
	Channel     string
	Reason      string
	Fingerprint []byte
}

type aggState int

const (
	stateInit aggState = iota
	stateStreaming
	stateDone
)

// Options configures an Aggregator.
type Options struct {
	// Include and Exclude are channel name patterns; exclusion wins.
	Include string
	Exclude string
	// Codec decodes paired image descriptors. nil stores raw payloads.
	Codec PairedImageCodec
	// Progress receives transient status lines. nil disables them.
	Progress io.Writer
}

// Aggregator consumes a time-ordered stream of log events, resolves and
// decodes each payload and appends every leaf value into a per-channel,
// per-field growing column. One record is processed fully before the next
// is pulled; there is exactly one writer and no readers until Finish.
type Aggregator struct {
	registry *lcmtype.Registry
	filter   *FilterRule
	tree     *TreeDecoder
	log      *zap.Logger
	progress io.Writer

	state     aggState
	store     Store
	startTime int64
	accepted  int64
	ignored   map[string]*IgnoredChannel
	status    string
}

// New returns an Aggregator in its initial state, with an empty store.
func New(registry *lcmtype.Registry, log *zap.Logger, opts Options) (*Aggregator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	filter, err := NewFilterRule(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		registry: registry,
		filter:   filter,
		tree:     NewTreeDecoder(opts.Codec, log),
		log:      log,
		progress: opts.Progress,
		store:    make(Store),
		ignored:  make(map[string]*IgnoredChannel),
	}, nil
}

// Run drains src, processing every event in source order, and returns the
// completed store. A malformed record never aborts the run; only an I/O
// error from the source itself does.
func (a *Aggregator) Run(src Source) (Store, error) {
	for src.Next() {
		ev, err := src.Read()
		if err != nil {
			return nil, err
		}
		a.process(ev, src)
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	return a.Finish(), nil
}

// Process handles a single event. Exposed for callers that drive the
// stream themselves; no progress lines are emitted on this path.
func (a *Aggregator) Process(ev *eventlog.Event) {
	a.process(ev, nil)
}

func (a *Aggregator) process(ev *eventlog.Event, src Source) {
	if a.state == stateDone {
		return
	}
	a.state = stateStreaming

	if _, ok := a.ignored[ev.Channel]; ok {
		return
	}
	if !a.filter.Process(ev.Channel) {
		a.ignored[ev.Channel] = &IgnoredChannel{Channel: ev.Channel, Reason: IgnoreFiltered}
		a.log.Debug("ignoring channel", zap.String("channel", ev.Channel), zap.String("reason", IgnoreFiltered))
		return
	}

	if len(ev.Data) < 8 {
		// Too short to carry a fingerprint: the channel can never resolve,
		// so it is ignored for the rest of the run like any unknown type.
		a.ignored[ev.Channel] = &IgnoredChannel{Channel: ev.Channel, Reason: IgnoreUnknownType}
		a.log.Debug("ignoring channel",
			zap.String("channel", ev.Channel),
			zap.String("reason", IgnoreUnknownType))
		return
	}
	fp := [8]byte(ev.Data[:8])
	desc, ok := a.registry.Resolve(fp)
	if !ok {
		a.ignored[ev.Channel] = &IgnoredChannel{
			Channel:     ev.Channel,
			Reason:      IgnoreUnknownType,
			Fingerprint: append([]byte(nil), ev.Data[:8]...),
		}
		a.log.Debug("ignoring channel",
			zap.String("channel", ev.Channel),
			zap.String("reason", IgnoreUnknownType),
			zap.String("fingerprint", fmt.Sprintf("%x", fp)))
		return
	}

	msg, err := lcmtype.Decode(desc, ev.Data)
	if err != nil {
		// Recoverable per record: the channel stays eligible, a later
		// record may still decode.
		a.clearStatus()
		fmt.Fprintf(a.progressWriter(), "error: couldn't decode msg on channel %s\n", ev.Channel)
		a.log.Debug("decode failure", zap.String("channel", ev.Channel), zap.Error(err))
		return
	}

	if a.accepted == 0 {
		a.startTime = ev.Timestamp
	}
	a.accepted++
	if a.accepted%progressEvery == 0 && src != nil && src.Size() > 0 {
		a.setStatus(fmt.Sprintf("read %d messages, %d %% done",
			a.accepted, src.Tell()*100/src.Size()))
	}

	obj, err := a.tree.Decode(ev.Channel, msg)
	if err != nil {
		a.clearStatus()
		fmt.Fprintf(a.progressWriter(), "error: couldn't decode msg on channel %s\n", ev.Channel)
		a.log.Debug("tree decode failure", zap.String("channel", ev.Channel), zap.Error(err))
		return
	}

	channel := Key(ev.Channel)
	node, created := a.channelNode(channel)
	a.merge(channel, node, obj, created)

	// Rebase to seconds since the first accepted record. The first sample
	// is 0.0 and is kept so lcm_timestamp stays aligned with its sibling
	// columns.
	if rebased := float64(ev.Timestamp-a.startTime) / 1e6; rebased >= 0 {
		if col, ok := node.column("lcm_timestamp"); ok {
			col.Values = append(col.Values, rebased)
		}
	}
}

func (a *Aggregator) channelNode(channel string) (Node, bool) {
	if node, ok := a.store[channel]; ok {
		return node, false
	}
	node := make(Node)
	a.store[channel] = node
	return node, true
}

// merge appends the object's leaves into node. created marks a node seen
// for the first time, which is when the type's schema-level constants are
// captured (once per channel, not per message).
func (a *Aggregator) merge(channel string, node Node, obj *Object, created bool) {
	if created {
		for _, c := range obj.Desc.Constants {
			node[Key(c.Name)] = Constant{Value: c.Value}
		}
	}
	for _, f := range obj.Fields {
		name := Key(f.Name)
		switch t := f.Tree.(type) {
		case Leaf:
			col, ok := node.column(name)
			if !ok {
				a.log.Debug("field collides with existing key",
					zap.String("channel", channel), zap.String("field", name))
				continue
			}
			col.Values = append(col.Values, t.Value)
		case *Object:
			child, childCreated, ok := node.child(name)
			if !ok {
				a.log.Debug("field collides with existing key",
					zap.String("channel", channel), zap.String("field", name))
				continue
			}
			a.merge(channel, child, t, childCreated)
		case List:
			col, ok := node.column(name)
			if !ok {
				a.log.Debug("field collides with existing key",
					zap.String("channel", channel), zap.String("field", name))
				continue
			}
			// Lists keep their per-message shape as one opaque entry.
			col.Values = append(col.Values, Plain(t))
		}
	}
}

// Finish transitions to DONE, emits the ignored-channel tally and returns
// the completed store. Further events are discarded.
func (a *Aggregator) Finish() Store {
	if a.state == stateDone {
		return a.store
	}
	a.state = stateDone
	a.clearStatus()

	var filtered, unknown []string
	for _, ic := range a.ignored {
		switch ic.Reason {
		case IgnoreFiltered:
			filtered = append(filtered, ic.Channel)
		case IgnoreUnknownType:
			unknown = append(unknown, fmt.Sprintf("%s(fingerprint=%x)", ic.Channel, ic.Fingerprint))
		}
	}
	sort.Strings(filtered)
	sort.Strings(unknown)
	if len(filtered) > 0 || len(unknown) > 0 {
		a.log.Info("ignored channels",
			zap.Strings("filtered", filtered),
			zap.Strings("unknown_type", unknown))
	}
	return a.store
}

// Accepted returns the number of successfully decoded messages so far.
func (a *Aggregator) Accepted() int64 { return a.accepted }

// Ignored returns the channels skipped so far, sorted by name.
func (a *Aggregator) Ignored() []IgnoredChannel {
	out := make([]IgnoredChannel, 0, len(a.ignored))
	for _, ic := range a.ignored {
		out = append(out, *ic)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Store returns the store accumulated so far.
func (a *Aggregator) Store() Store { return a.store }

func (a *Aggregator) progressWriter() io.Writer {
	if a.progress == nil {
		return io.Discard
	}
	return a.progress
}

// setStatus replaces the transient status line.
func (a *Aggregator) setStatus(msg string) {
	if a.progress == nil {
		return
	}
	a.clearStatus()
	fmt.Fprint(a.progress, msg)
	a.status = msg
}

// clearStatus erases the transient status line, if one is showing.
func (a *Aggregator) clearStatus() {
	if a.progress == nil || a.status == "" {
		return
	}
	fmt.Fprint(a.progress, "\r", strings.Repeat(" ", len(a.status)), "\r")
	a.status = ""
}
