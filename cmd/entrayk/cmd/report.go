package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
	"github.com/JMarkstrom/entraYK/pkg/clierror"
	"github.com/JMarkstrom/entraYK/pkg/graph"
	"github.com/JMarkstrom/entraYK/pkg/report"
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringSlice("upn", nil, "User principal name to audit (repeatable)")
	reportCmd.Flags().Bool("all", false, "Audit every user in the tenant")
	reportCmd.Flags().String("csv", "", "Also write the report to this CSV file")
	reportCmd.MarkFlagsMutuallyExclusive("upn", "all")
	reportCmd.MarkFlagsOneRequired("upn", "all")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Audit registered passkeys",
	Long: `Report which security keys users have registered as passkeys.

Each registered FIDO2 credential becomes one row, with firmware version
and FIDO certification level resolved from the credential's AAGUID. Users
with no passkey appear with empty columns so the audit accounts for
everyone requested.

Examples:
  entrayk report --upn alice@contoso.com --upn bob@contoso.com
  entrayk report --all
  entrayk report --all --csv passkey-audit.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		upns, _ := cmd.Flags().GetStringSlice("upn")
		all, _ := cmd.Flags().GetBool("all")
		csvPath, _ := cmd.Flags().GetString("csv")

		session, err := newSession(graph.ReadScopes)
		if err != nil {
			return clierror.AuthFailed(err)
		}
		defer session.Close()
		if err := session.Acquire(cmd.Context()); err != nil {
			return clierror.AuthFailed(err)
		}
		client := graph.NewClient(session, graph.WithLogger(log))

		if all {
			users, err := client.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			for _, u := range users {
				upns = append(upns, u.UserPrincipalName)
			}
		}

		cat, err := catalog.Load()
		if err != nil {
			return clierror.InternalError(err)
		}
		rows, err := report.NewBuilder(client, cat, log).ForUsers(cmd.Context(), upns)
		if err != nil {
			return err
		}

		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				return fmt.Errorf("failed to create report file: %w", err)
			}
			defer f.Close()
			if err := report.WriteCSV(f, rows); err != nil {
				return err
			}
		}

		if outputFormat != "table" {
			return formatOutput(rows)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "UPN\tNICKNAME\tFIRMWARE\tCERTIFICATION")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.UPN, r.Nickname, r.Firmware, r.Certification)
		}
		w.Flush()
		return nil
	},
}
