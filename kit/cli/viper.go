// Package cli binds cobra flags to viper so options can also be supplied
// through LCM_EXPORT_* environment variables.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Opt is a single command-line option.
type Opt struct {
	DestP   interface{} // pointer to the destination
	Flag    string
	Short   string
	Default interface{}
	Desc    string
}

// SetEnvPrefix configures viper to read options from environment variables
// prefixed with the upper-cased program name, normalizing "-" to "_".
func SetEnvPrefix(name string) {
	viper.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// BindOptions adds opts to the specified command and automatically
// registers those options with viper.
func BindOptions(cmd *cobra.Command, opts []Opt) {
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			cmd.Flags().StringVarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(o.Flag, cmd)
			if viper.IsSet(o.Flag) {
				*destP = viper.GetString(o.Flag)
			}
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			cmd.Flags().BoolVarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(o.Flag, cmd)
			if viper.IsSet(o.Flag) {
				*destP = viper.GetBool(o.Flag)
			}
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			cmd.Flags().StringSliceVarP(destP, o.Flag, o.Short, d, o.Desc)
			mustBindPFlag(o.Flag, cmd)
			if viper.IsSet(o.Flag) {
				*destP = viper.GetStringSlice(o.Flag)
			}
		default:
			panic(fmt.Errorf("unknown destination type %T", o.DestP))
		}
	}
}

func mustBindPFlag(key string, cmd *cobra.Command) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
		panic(err)
	}
}
