// Package report implements "lcm_export report": a per-channel summary of
// one LCM log.
package report

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/oceansystems/lcmexport/cmd/lcm_export/internal/options"
	"github.com/oceansystems/lcmexport/eventlog"
)

type flags struct {
	options.Common
	jsonOut bool
}

// ChannelReport is one row of the summary.
type ChannelReport struct {
	Channel     string `json:"channel"`
	Records     int64  `json:"records"`
	Bytes       int64  `json:"bytes"`
	Fingerprint string `json:"fingerprint"`
	Type        string `json:"type,omitempty"`
}

// NewCommand returns the report subcommand.
func NewCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "report [flags] <logfile>",
		Short: "Summarize the channels, sizes and message types of an LCM log",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return f.run(args[0])
		},
	}
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "emit the report as JSON")
	cmd.Flags().StringSliceVarP(&f.TypeDirs, "types", "t", nil, "directory searched recursively for .lcm type definitions (repeatable)")
	cmd.Flags().StringVar(&f.ConfigPath, "config", "", "TOML config file")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func (f *flags) run(logPath string) error {
	log := f.NewLogger()
	defer log.Sync()

	cfg, err := options.LoadConfig(f.ConfigPath)
	if err != nil {
		return err
	}
	registry, err := f.Registry(cfg, log)
	if err != nil {
		return err
	}

	src, err := eventlog.Open(logPath)
	if err != nil {
		return err
	}
	defer src.Close()

	byChannel := make(map[string]*ChannelReport)
	var total int64
	for src.Next() {
		ev, err := src.Read()
		if err != nil {
			return err
		}
		total++
		r, ok := byChannel[ev.Channel]
		if !ok {
			r = &ChannelReport{Channel: ev.Channel}
			if len(ev.Data) >= 8 {
				fp := [8]byte(ev.Data[:8])
				r.Fingerprint = fmt.Sprintf("%x", fp)
				if d, ok := registry.Resolve(fp); ok {
					r.Type = d.QualifiedName()
				}
			}
			byChannel[ev.Channel] = r
		}
		r.Records++
		r.Bytes += int64(len(ev.Data))
	}
	if err := src.Err(); err != nil {
		return err
	}

	rows := make([]ChannelReport, 0, len(byChannel))
	for _, r := range byChannel {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Channel < rows[j].Channel })

	if f.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tRECORDS\tBYTES\tFINGERPRINT\tTYPE")
	for _, r := range rows {
		typ := r.Type
		if typ == "" {
			typ = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			r.Channel, r.Records, humanize.Bytes(uint64(r.Bytes)), r.Fingerprint, typ)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%s records, %s, %d channels, %d registered types\n",
		humanize.Comma(total), humanize.Bytes(uint64(src.Tell())), len(rows), registry.Len())
	return nil
}
