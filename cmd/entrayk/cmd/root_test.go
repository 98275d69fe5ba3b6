package cmd

import (
	"testing"

	"github.com/JMarkstrom/entraYK/internal/testutil/cli"
)

func TestRootCmd_HelpShowsSubcommands(t *testing.T) {
	// Cannot run in parallel - uses shared global rootCmd
	result := cli.Run(rootCmd, "--help")
	result.AssertSuccess(t)

	result.AssertContains(t, "Available Commands")
	for _, name := range []string{"policy", "enroll", "report", "devices", "history", "login", "logout", "version", "completion"} {
		result.AssertContains(t, name)
	}
}

func TestRootCmd_ShortDescription(t *testing.T) {
	expected := "Provision and audit hardware security keys as Entra passkeys"
	if rootCmd.Short != expected {
		t.Errorf("expected Short to be %q, got %q", expected, rootCmd.Short)
	}
}

func TestOutputFormat_DefaultsToTable(t *testing.T) {
	if OutputFormat() != "table" {
		t.Errorf("expected default output format 'table', got %q", OutputFormat())
	}
}

func TestCompletionCmd_RejectsUnknownShell(t *testing.T) {
	result := cli.Run(rootCmd, "completion", "tcsh")
	result.AssertError(t)
}

func TestPolicyCmd_HelpShowsSelectionFlags(t *testing.T) {
	result := cli.Run(rootCmd, "policy", "method", "--help")
	result.AssertSuccess(t)
	result.AssertContains(t, "--aaguid")
	result.AssertContains(t, "--model")
	result.AssertContains(t, "--all-known")
}

func TestEnrollCmd_HelpShowsModes(t *testing.T) {
	result := cli.Run(rootCmd, "enroll", "--help")
	result.AssertSuccess(t)
	result.AssertContains(t, "--upn")
	result.AssertContains(t, "--group")
}
