package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JMarkstrom/entraYK/pkg/clierror"
	"github.com/JMarkstrom/entraYK/pkg/graph"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().Bool("write", false, "Request write scopes (policy configuration and enrollment)")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the Entra tenant",
	Long: `Sign in to the Entra tenant using the OAuth2 device-code flow.

A verification URL and one-time code are printed; complete the sign-in in
a browser on any machine. The token is cached under the config directory,
so subsequent commands run without a prompt until it expires.

Read scopes are requested by default. Use --write to also request the
policy and authentication-method write scopes needed by 'policy' and
'enroll'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scopes := graph.ReadScopes
		if write, _ := cmd.Flags().GetBool("write"); write {
			scopes = graph.WriteScopes
		}

		session, err := newSession(scopes)
		if err != nil {
			return clierror.AuthFailed(err)
		}
		defer session.Close()

		if err := session.Acquire(cmd.Context()); err != nil {
			return clierror.AuthFailed(err)
		}

		color.Green("Signed in to tenant %s", cfg.TenantID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and discard the cached token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(graph.ReadScopes)
		if err != nil {
			return clierror.AuthFailed(err)
		}
		if err := session.ClearCache(); err != nil {
			return fmt.Errorf("failed to clear cached token: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}
