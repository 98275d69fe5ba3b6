package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
	"github.com/JMarkstrom/entraYK/pkg/clierror"
)

func init() {
	rootCmd.AddCommand(devicesCmd)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the known security key models",
	Long: `List the embedded device catalog: model, firmware, AAGUID, and FIDO
certification level. These are the models accepted by 'entrayk policy'
device selection flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Load()
		if err != nil {
			return clierror.InternalError(err)
		}

		records := cat.Records()
		if outputFormat != "table" {
			return formatOutput(records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tFIRMWARE\tAAGUID\tCERTIFICATION")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Model, rec.Firmware, rec.AAGUID, rec.Certification)
		}
		w.Flush()
		return nil
	},
}
