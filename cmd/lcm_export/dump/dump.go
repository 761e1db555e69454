// Package dump implements "lcm_export dump": aggregate an LCM log and
// print the result to stdout instead of writing a file.
package dump

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/oceansystems/lcmexport/cmd/lcm_export/internal/format/text"
	"github.com/oceansystems/lcmexport/cmd/lcm_export/internal/options"
	"github.com/oceansystems/lcmexport/convert"
	"github.com/oceansystems/lcmexport/eventlog"
	"github.com/oceansystems/lcmexport/kit/cli"
)

type flags struct {
	options.Common

	channels  string
	ignore    string
	separator string
}

// NewCommand returns the dump subcommand.
func NewCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "dump [flags] <logfile>",
		Short: "Print the aggregated log data to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return f.run(args[0])
		},
	}
	cli.BindOptions(cmd, []cli.Opt{
		{DestP: &f.channels, Flag: "channels", Short: "c", Default: ".*", Desc: "process channels matching this pattern"},
		{DestP: &f.ignore, Flag: "ignore", Short: "i", Desc: "ignore channels fully matching this pattern (wins over --channels)"},
		{DestP: &f.separator, Flag: "separator", Short: "s", Default: " ", Desc: "value separator"},
		{DestP: &f.TypeDirs, Flag: "types", Short: "t", Desc: "directory searched recursively for .lcm type definitions (repeatable)"},
		{DestP: &f.ConfigPath, Flag: "config", Desc: "TOML config file"},
		{DestP: &f.Verbose, Flag: "verbose", Short: "v", Desc: "enable debug logging"},
	})
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

	// Images stay compressed when dumping: raw bytes print shorter than
	// decoded rasters and stdout is not the place for either.
	agg, err := convert.New(registry, log, convert.Options{
		Include:  f.channels,
		Exclude:  f.ignore,
		Progress: os.Stderr,
	})
	if err != nil {
		return err
	}
	store, err := agg.Run(src)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	if err := text.Write(w, store, f.separator); err != nil {
		return err
	}
	return w.Flush()
}
