package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
	"github.com/JMarkstrom/entraYK/pkg/clierror"
	"github.com/JMarkstrom/entraYK/pkg/enroll"
	"github.com/JMarkstrom/entraYK/pkg/fido"
	"github.com/JMarkstrom/entraYK/pkg/graph"
	"github.com/JMarkstrom/entraYK/pkg/store"
)

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("upn", "", "User principal name to enroll")
	enrollCmd.Flags().String("group", "", "Enroll every member of this group (by display name)")
	enrollCmd.Flags().String("record", "", "Enrollment CSV path (default from config)")
	enrollCmd.MarkFlagsMutuallyExclusive("upn", "group")
	enrollCmd.MarkFlagsOneRequired("upn", "group")
}

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll security keys on behalf of users",
	Long: `Enroll a hardware security key as a passkey for a user, or for every
member of a group.

For each user the tool waits for a key to be inserted, resets it if it
already carries a PIN (with confirmation), sets a fresh random PIN,
registers a discoverable credential with the directory, and appends the
issued PIN to the enrollment CSV for hand-off.

Group mode runs strictly one member at a time; each member needs their
own key inserted when prompted. A failed member is reported and skipped.

Examples:
  entrayk enroll --upn alice@contoso.com
  entrayk enroll --group "Finance team"
  entrayk enroll --upn alice@contoso.com --record issued-keys.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		upn, _ := cmd.Flags().GetString("upn")
		group, _ := cmd.Flags().GetString("group")
		recordPath, _ := cmd.Flags().GetString("record")
		if recordPath == "" {
			recordPath = cfg.RecordPath
		}

		if upn != "" && !strings.Contains(upn, "@") {
			return clierror.BadIdentity(upn)
		}

		client, done, err := newWriteClient(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		orchestrator, closeStore, err := newOrchestrator(client, recordPath)
		if err != nil {
			return err
		}
		defer closeStore()

		if group != "" {
			return runGroupEnrollment(cmd.Context(), client, orchestrator, group)
		}
		return runSingleEnrollment(cmd.Context(), client, orchestrator, upn)
	},
}

func newOrchestrator(client *graph.Client, recordPath string) (*enroll.Orchestrator, func(), error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, nil, clierror.InternalError(err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = store.DefaultPath()
	}
	history, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, clierror.InternalError(err)
	}

	orchestrator := enroll.New(enroll.Config{
		Directory: client,
		Locator:   fido.NewDeviceLocator(log),
		Prompter:  &terminalPrompter{},
		Recorder: enroll.MultiRecorder{
			enroll.NewCSVRecorder(recordPath),
			store.NewRecorder(history),
		},
		Catalog:   cat,
		Origin:    cfg.Origin,
		PINLength: cfg.PINLength,
		Log:       log,
	})
	return orchestrator, func() { history.Close() }, nil
}

func runSingleEnrollment(ctx context.Context, client *graph.Client, o *enroll.Orchestrator, upn string) error {
	user, err := client.GetUser(ctx, upn)
	if err != nil {
		if graph.IsStatus(err, 404) {
			return clierror.UserNotFound(upn)
		}
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	record, err := o.Enroll(ctx, user.UserPrincipalName)
	if err != nil {
		return enrollmentError(upn, err)
	}

	if outputFormat != "table" {
		return formatOutput(record)
	}
	color.Green("Enrolled %s: %s (PIN %s)", record.UPN, record.Model, record.PIN)
	return nil
}

func runGroupEnrollment(ctx context.Context, client *graph.Client, o *enroll.Orchestrator, groupName string) error {
	grp, err := client.ResolveGroup(ctx, groupName)
	if err != nil {
		if errors.Is(err, graph.ErrGroupNotFound) {
			return clierror.GroupNotFound(groupName)
		}
		return fmt.Errorf("failed to resolve group: %w", err)
	}

	members, err := client.GroupMembers(ctx, grp.ID)
	if err != nil {
		return fmt.Errorf("failed to list group members: %w", err)
	}
	if len(members) == 0 {
		fmt.Printf("Group %q has no members.\n", groupName)
		return nil
	}

	upns := make([]string, 0, len(members))
	for _, m := range members {
		upns = append(upns, m.UserPrincipalName)
	}

	tally := o.EnrollGroup(ctx, upns)

	if outputFormat != "table" {
		return formatOutput(tally)
	}
	fmt.Println()
	color.Green("Enrolled %d of %d member(s)", tally.Succeeded, len(tally.Results))
	for _, r := range tally.Results {
		if r.Err != nil {
			color.Red("  %s: %v", r.UPN, r.Err)
		}
	}
	if tally.Failed > 0 {
		return clierror.EnrollmentFailed(groupName, "group", fmt.Sprintf("%d member(s) failed", tally.Failed))
	}
	return nil
}

// enrollmentError maps orchestrator failures to structured CLI errors.
func enrollmentError(upn string, err error) error {
	var hwErr *enroll.HardwareError
	if errors.As(err, &hwErr) {
		return clierror.HardwareFailed(hwErr.Step, hwErr.Err)
	}
	var enrollErr *enroll.EnrollmentError
	if errors.As(err, &enrollErr) {
		return clierror.EnrollmentFailed(upn, enrollErr.Step, enrollErr.Err.Error())
	}
	return clierror.InternalError(err)
}

// terminalPrompter drives the operator through key handling on stdin.
type terminalPrompter struct{}

func (p *terminalPrompter) AwaitKeyInsertion(ctx context.Context, upn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Printf("Insert the security key for %s and press Enter to continue...", upn)
	reader := bufio.NewReader(os.Stdin)
	if _, err := reader.ReadString('\n'); err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	return nil
}

func (p *terminalPrompter) ConfirmReset(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Println("This key already has a PIN set and must be factory reset before enrollment.")
	fmt.Println("Reset wipes all credentials on the key. Remove and re-insert the key first.")
	fmt.Print("Type 'yes' to reset: ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return strings.TrimSpace(strings.ToLower(response)) == "yes", nil
}
