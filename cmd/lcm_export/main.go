// Command lcm_export converts LCM event logs into structured, columnar
// representations that are easier to work with in analysis tools.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oceansystems/lcmexport/cmd/lcm_export/dump"
	"github.com/oceansystems/lcmexport/cmd/lcm_export/export"
	"github.com/oceansystems/lcmexport/cmd/lcm_export/report"
	"github.com/oceansystems/lcmexport/kit/cli"
)

func main() {
	cli.SetEnvPrefix("lcm_export")

	root := &cobra.Command{
		Use:           "lcm_export",
		Short:         "Convert LCM event logs to columnar data files",
		SilenceUsage:  false,
		SilenceErrors: true,
	}
	root.AddCommand(
		export.NewCommand(),
		report.NewCommand(),
		dump.NewCommand(),
	)

	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
