// Package text prints the aggregation store as plain text, one line per
// leaf column.
package text

import (
	"fmt"
	"io"
	"sort"

	"github.com/oceansystems/lcmexport/convert"
)

// Write prints store to w. Each line is "<channel> <field.path>" followed
// by the column values joined by sep. Constants print as single values.
func Write(w io.Writer, store convert.Store, sep string) error {
	channels := make([]string, 0, len(store))
	for channel := range store {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	for _, channel := range channels {
		if err := writeNode(w, channel, "", store[channel], sep); err != nil {
			return err
		}
	}
	return nil
}

func writeNode(w io.Writer, channel, prefix string, n convert.Node, sep string) error {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch v := n[name].(type) {
		case *convert.Column:
			if _, err := fmt.Fprintf(w, "%s%s%s", channel, sep, path); err != nil {
				return err
			}
			for _, val := range v.Values {
				if _, err := fmt.Fprintf(w, "%s%v", sep, val); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		case convert.Node:
			if err := writeNode(w, channel, path, v, sep); err != nil {
				return err
			}
		case convert.Constant:
			if _, err := fmt.Fprintf(w, "%s%s%s%s%v\n", channel, sep, path, sep, v.Value); err != nil {
				return err
			}
		}
	}
	return nil
}
