package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(_ *cobra.Command, _ []string) error {
		if viper.GetBool("json") {
			return printJSON(map[string]string{"app": app, "version": version, "go": runtime.Version()})
		}
		fmt.Printf("%s version: %s (%s)\n", app, version, runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
