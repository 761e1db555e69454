// Package export implements "lcm_export export": convert one LCM log into
// a parquet directory or a msgpack object file.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceansystems/lcmexport/cmd/lcm_export/internal/format/columnar"
	"github.com/oceansystems/lcmexport/cmd/lcm_export/internal/format/objfile"
	"github.com/oceansystems/lcmexport/cmd/lcm_export/internal/options"
	"github.com/oceansystems/lcmexport/convert"
	"github.com/oceansystems/lcmexport/eventlog"
	"github.com/oceansystems/lcmexport/kit/cli"
)

const (
	formatParquet = "parquet"
	formatMsgpack = "msgpack"
)

type flags struct {
	options.Common

	out          string
	format       string
	channels     string
	ignore       string
	compress     bool
	noDecompress bool
	depthShape   string
}

// NewCommand returns the export subcommand.
func NewCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "export [flags] <logfile>",
		Short: "Convert an LCM log to a columnar parquet directory or a msgpack object file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return f.run(args[0])
		},
	}
	cli.BindOptions(cmd, []cli.Opt{
		{DestP: &f.out, Flag: "out", Short: "o", Desc: "output path (default derived from the log name)"},
		{DestP: &f.format, Flag: "format", Default: formatParquet, Desc: "output format: parquet or msgpack"},
		{DestP: &f.channels, Flag: "channels", Short: "c", Default: ".*", Desc: "process channels matching this pattern"},
		{DestP: &f.ignore, Flag: "ignore", Short: "i", Desc: "ignore channels fully matching this pattern (wins over --channels)"},
		{DestP: &f.TypeDirs, Flag: "types", Short: "t", Desc: "directory searched recursively for .lcm type definitions (repeatable)"},
		{DestP: &f.ConfigPath, Flag: "config", Desc: "TOML config file"},
		{DestP: &f.compress, Flag: "compress", Desc: "gzip the msgpack output"},
		{DestP: &f.noDecompress, Flag: "no-decompress-images", Desc: "keep paired image payloads compressed"},
		{DestP: &f.depthShape, Flag: "depth-shape", Desc: "depth image shape as HxW (default 480x640)"},
		{DestP: &f.Verbose, Flag: "verbose", Short: "v", Desc: "enable debug logging"},
	})
	return cmd
}

func (f *flags) run(logPath string) error {
	if f.format != formatParquet && f.format != formatMsgpack {
		return fmt.Errorf("unknown format %q", f.format)
	}
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
	codec, err := options.Codec(cfg, f.depthShape, f.noDecompress)
	if err != nil {
		return err
	}

	src, err := eventlog.Open(logPath)
	if err != nil {
		return err
	}
	defer src.Close()

	agg, err := convert.New(registry, log, convert.Options{
		Include:  f.channels,
		Exclude:  f.ignore,
		Codec:    codec,
		Progress: os.Stderr,
	})
	if err != nil {
		return err
	}

	log.Info("converting log",
		zap.String("log", logPath),
		zap.Int("types", registry.Len()))
	store, err := agg.Run(src)
	if err != nil {
		return err
	}
	if n := src.Resyncs(); n > 0 {
		log.Warn("log contained corrupt regions", zap.Int64("resyncs", n))
	}
	log.Info("loaded all messages", zap.Int64("messages", agg.Accepted()))

	out := f.out
	if out == "" {
		out = defaultOut(logPath, f.format, f.compress)
	}
	switch f.format {
	case formatMsgpack:
		if err := objfile.WriteFile(out, store, f.compress); err != nil {
			return err
		}
	default:
		channels, err := columnar.Write(out, store)
		if err != nil {
			return err
		}
		if err := columnar.WriteLoader(out+".m", out, channels); err != nil {
			return err
		}
	}
	log.Info("wrote output", zap.String("out", out))
	return nil
}

// defaultOut derives the output path from the log path the way the
// original tool did: dots and dashes in the name become underscores.
func defaultOut(logPath, format string, compress bool) string {
	dir := filepath.Dir(logPath)
	base := filepath.Base(logPath)
	base = strings.ReplaceAll(base, ".", "_")
	base = strings.ReplaceAll(base, "-", "_")
	if format == formatMsgpack {
		ext := ".mpk"
		if compress {
			ext = ".mpk.gz"
		}
		return filepath.Join(dir, base+ext)
	}
	return filepath.Join(dir, base)
}
