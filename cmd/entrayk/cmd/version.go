package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JMarkstrom/entraYK/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the entrayk version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "table" {
			return formatOutput(map[string]string{"version": version.String()})
		}
		fmt.Println(version.String())
		return nil
	},
}
