// Package options holds configuration shared by the lcm_export
// subcommands: the optional TOML config file and the plumbing that turns
// flags plus config into a type registry and an image codec.
package options

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oceansystems/lcmexport/convert"
	"github.com/oceansystems/lcmexport/lcmtype"
	"github.com/oceansystems/lcmexport/logger"
)

// Config is the TOML config file schema.
type Config struct {
	// TypeDirs are searched recursively for .lcm definitions.
	TypeDirs []string     `toml:"type-dirs"`
	Images   ImagesConfig `toml:"images"`
}

// ImagesConfig tunes the paired image descriptor codec.
type ImagesConfig struct {
	Decompress *bool `toml:"decompress"`
	DepthRows  int   `toml:"depth-rows"`
	DepthCols  int   `toml:"depth-cols"`
}

// LoadConfig reads the config file at path. An empty path yields a zero
// config.
func LoadConfig(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("options: config %s: %w", path, err)
	}
	return c, nil
}

// Common carries the flags every subcommand shares.
type Common struct {
	TypeDirs   []string
	ConfigPath string
	Verbose    bool
}

// NewLogger builds the stderr logger at the level selected by -v.
func (c *Common) NewLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if c.Verbose {
		level = zapcore.DebugLevel
	}
	return logger.New(os.Stderr, level)
}

// Registry builds the fingerprint registry from the flag dirs plus any
// config file dirs.
func (c *Common) Registry(cfg Config, log *zap.Logger) (*lcmtype.Registry, error) {
	dirs := append(append([]string(nil), c.TypeDirs...), cfg.TypeDirs...)
	reg, err := lcmtype.NewRegistry(dirs, log)
	if err != nil {
		return nil, err
	}
	log.Debug("type registry built", zap.Int("types", reg.Len()), zap.Strings("dirs", dirs))
	return reg, nil
}

// Codec builds the paired-image codec from flags and config. shape is the
// --depth-shape flag ("HxW", empty for the default); noDecompress disables
// JPEG decoding.
func Codec(cfg Config, shape string, noDecompress bool) (convert.PairedImageCodec, error) {
	rows, cols := cfg.Images.DepthRows, cfg.Images.DepthCols
	if shape != "" {
		var err error
		rows, cols, err = parseShape(shape)
		if err != nil {
			return nil, err
		}
	}
	decompress := !noDecompress
	if cfg.Images.Decompress != nil && !noDecompress {
		decompress = *cfg.Images.Decompress
	}
	return convert.NewStdImageCodec(decompress, rows, cols), nil
}

func parseShape(s string) (rows, cols int, err error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("options: invalid depth shape %q, want HxW", s)
	}
	rows, err = strconv.Atoi(parts[0])
	if err == nil {
		cols, err = strconv.Atoi(parts[1])
	}
	if err != nil || rows <= 0 || cols <= 0 {
		return 0, 0, fmt.Errorf("options: invalid depth shape %q, want HxW", s)
	}
	return rows, cols, nil
}
