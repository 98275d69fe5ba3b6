package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JMarkstrom/entraYK/pkg/clierror"
	"github.com/JMarkstrom/entraYK/pkg/store"
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("upn", "", "Only show enrollments for this user")
	historyCmd.Flags().Duration("since", 0, "Only show enrollments newer than this (e.g. 720h)")
	historyCmd.Flags().Int("limit", 0, "Maximum number of entries to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past enrollments",
	Long: `List past enrollments from the local history database, newest first.

The history records who was issued which key and when. PINs are not
shown here; the enrollment CSV is the hand-off document.

Examples:
  entrayk history
  entrayk history --upn alice@contoso.com
  entrayk history --since 720h --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		upn, _ := cmd.Flags().GetString("upn")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		dbPath := cfg.DBPath
		if dbPath == "" {
			dbPath = store.DefaultPath()
		}
		history, err := store.Open(dbPath)
		if err != nil {
			return clierror.InternalError(err)
		}
		defer history.Close()

		filter := store.Filter{UPN: upn, Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}
		entries, err := history.Query(filter)
		if err != nil {
			return clierror.InternalError(err)
		}

		if outputFormat != "table" {
			if len(entries) == 0 {
				fmt.Println("[]")
				return nil
			}
			return formatOutput(entries)
		}

		if len(entries) == 0 {
			fmt.Println("No enrollments recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "UPN\tMODEL\tSERIAL\tENROLLED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.UPN, e.Model, e.Serial, e.EnrolledAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	},
}
