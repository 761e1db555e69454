package convert

import (
	"fmt"
	"regexp"
)

// FilterRule decides which channels a run processes. The exclusion pattern
// takes precedence over the inclusion pattern and must match the whole
// channel name; the inclusion pattern is anchored at the start only,
// matching the semantics of the original tool. Decisions are memoized:
// channel-to-decision is deterministic, so the regexes run once per
// channel rather than once per record.
type FilterRule struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
	memo    map[string]bool // channel -> process?
}

// NewFilterRule compiles a filter. include defaults to matching every
// channel; an empty exclude pattern excludes nothing.
func NewFilterRule(include, exclude string) (*FilterRule, error) {
	if include == "" {
		include = ".*"
	}
	inc, err := regexp.Compile(`\A(?:` + include + `)`)
	if err != nil {
		return nil, fmt.Errorf("convert: invalid include pattern: %w", err)
	}
	f := &FilterRule{include: inc, memo: make(map[string]bool)}
	if exclude != "" {
		exc, err := regexp.Compile(`\A(?:` + exclude + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("convert: invalid exclude pattern: %w", err)
		}
		f.exclude = exc
	}
	return f, nil
}

// Process reports whether records on the channel should be processed.
func (f *FilterRule) Process(channel string) bool {
	if v, ok := f.memo[channel]; ok {
		return v
	}
	v := f.match(channel)
	f.memo[channel] = v
	return v
}

func (f *FilterRule) match(channel string) bool {
	if f.exclude != nil && f.exclude.MatchString(channel) {
		return false
	}
	return f.include.MatchString(channel)
}
