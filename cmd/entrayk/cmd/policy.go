package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
	"github.com/JMarkstrom/entraYK/pkg/clierror"
	"github.com/JMarkstrom/entraYK/pkg/graph"
	"github.com/JMarkstrom/entraYK/pkg/policy"
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyMethodCmd)
	policyCmd.AddCommand(policyStrengthCmd)

	for _, c := range []*cobra.Command{policyMethodCmd, policyStrengthCmd} {
		c.Flags().StringSlice("aaguid", nil, "Device AAGUID to allow (repeatable)")
		c.Flags().StringSlice("model", nil, "Device model name to allow (repeatable)")
		c.Flags().Bool("all-known", false, "Allow every model in the device catalog")
	}
	policyStrengthCmd.Flags().String("name", policy.DefaultStrengthName, "Display name for the strength policy")
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Configure tenant passkey policies",
	Long: `Commands to configure which security key models the tenant accepts.

Both subcommands take the same device selection flags. Models are resolved
against the embedded device catalog; see 'entrayk devices' for the list.`,
}

var policyMethodCmd = &cobra.Command{
	Use:   "method",
	Short: "Configure the FIDO2 authentication method",
	Long: `Update the tenant's FIDO2 authentication method configuration.

Enables the passkey method with attestation enforcement and restricts key
registration to the selected device models by AAGUID allow-list.

Examples:
  entrayk policy method --model "YubiKey 5 NFC" --model "YubiKey 5C NFC"
  entrayk policy method --aaguid fa2b99dc-9e39-4257-8f92-4a30d23c4118
  entrayk policy method --all-known`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := selectedDevices(cmd)
		if err != nil {
			return err
		}

		builder, err := newPolicyBuilder()
		if err != nil {
			return err
		}
		doc, err := builder.AuthMethodPolicy(ids)
		if err != nil {
			return policyValidationError(err)
		}

		client, done, err := newWriteClient(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		if err := client.UpdateFido2MethodConfig(cmd.Context(), doc); err != nil {
			return err
		}

		if outputFormat != "table" {
			return formatOutput(doc)
		}
		color.Green("FIDO2 method configured: attestation enforced, %d model(s) allowed", len(doc.KeyRestrictions.AAGuids))
		return nil
	},
}

var policyStrengthCmd = &cobra.Command{
	Use:   "strength",
	Short: "Create a passkey authentication strength policy",
	Long: `Create a named authentication strength policy in the tenant.

The policy allows device-bound passkeys from the selected models, and
always also allows a one-time Temporary Access Pass so that users are
never locked out before their key arrives.

Examples:
  entrayk policy strength --model "YubiKey 5 NFC"
  entrayk policy strength --all-known --name "Hardware keys"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := selectedDevices(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")

		builder, err := newPolicyBuilder()
		if err != nil {
			return err
		}
		doc, err := builder.AuthStrengthPolicy(ids, name)
		if err != nil {
			return policyValidationError(err)
		}

		client, done, err := newWriteClient(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		if err := client.CreateStrengthPolicy(cmd.Context(), doc); err != nil {
			return err
		}

		if outputFormat != "table" {
			return formatOutput(doc)
		}
		color.Green("Strength policy %q created", doc.DisplayName)
		return nil
	},
}

// selectedDevices resolves the shared device selection flags to AAGUIDs.
func selectedDevices(cmd *cobra.Command) ([]string, error) {
	aaguids, _ := cmd.Flags().GetStringSlice("aaguid")
	models, _ := cmd.Flags().GetStringSlice("model")
	allKnown, _ := cmd.Flags().GetBool("all-known")

	cat, err := catalog.Load()
	if err != nil {
		return nil, clierror.InternalError(err)
	}

	if allKnown {
		return cat.AllIDs(), nil
	}

	ids := append([]string(nil), aaguids...)
	for _, model := range models {
		id, ok := lookupModel(cat, model)
		if !ok {
			return nil, clierror.UnknownDevice(model)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func lookupModel(cat *catalog.Catalog, model string) (string, bool) {
	for _, rec := range cat.Records() {
		if strings.EqualFold(rec.Model, model) {
			return rec.AAGUID, true
		}
	}
	return "", false
}

func newPolicyBuilder() (*policy.Builder, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, clierror.InternalError(err)
	}
	return policy.NewBuilder(cat), nil
}

// policyValidationError maps builder validation failures to CLI errors.
func policyValidationError(err error) error {
	var unknown *policy.UnknownDeviceError
	if errors.As(err, &unknown) {
		return clierror.UnknownDevice(unknown.ID)
	}
	if errors.Is(err, policy.ErrEmptySelection) {
		return clierror.EmptySelection()
	}
	return clierror.InternalError(err)
}

// newWriteClient acquires a write-scoped session and returns a directory
// client plus a cleanup func persisting the refreshed token.
func newWriteClient(ctx context.Context) (*graph.Client, func(), error) {
	session, err := newSession(graph.WriteScopes)
	if err != nil {
		return nil, nil, clierror.AuthFailed(err)
	}
	if err := session.Acquire(ctx); err != nil {
		return nil, nil, clierror.AuthFailed(err)
	}
	client := graph.NewClient(session, graph.WithLogger(log))
	return client, func() { session.Close() }, nil
}
