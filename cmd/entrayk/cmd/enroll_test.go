package cmd

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"golang.org/x/oauth2"

	"github.com/JMarkstrom/entraYK/internal/testutil/cli"
	"github.com/JMarkstrom/entraYK/internal/testutil/mockhttp"
	"github.com/JMarkstrom/entraYK/pkg/clierror"
	"github.com/JMarkstrom/entraYK/pkg/graph"
)

func testGraphClient(t *testing.T, baseURL string) *graph.Client {
	t.Helper()
	session, err := graph.NewSession(graph.SessionConfig{TenantID: "contoso.onmicrosoft.com"})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	return graph.NewClient(session,
		graph.WithBaseURL(baseURL),
		graph.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})),
	)
}

func TestEnrollCmd_RejectsMalformedUPNBeforeSignIn(t *testing.T) {
	// A UPN without a domain must fail validation up front, before the
	// command acquires a directory session or opens the history store.
	result := cli.Run(rootCmd, "enroll", "--upn", "alice")
	result.AssertError(t)

	var cliErr *clierror.CLIError
	if !errors.As(result.Err, &cliErr) {
		t.Fatalf("expected *clierror.CLIError, got %T: %v", result.Err, result.Err)
	}
	if cliErr.Code != clierror.CodeValidationFailed {
		t.Errorf("expected code %s, got %s", clierror.CodeValidationFailed, cliErr.Code)
	}
	if cliErr.ExitCode != clierror.ExitValidation {
		t.Errorf("expected exit code %d, got %d", clierror.ExitValidation, cliErr.ExitCode)
	}
}

func TestRunSingleEnrollment_MapsUnknownUser(t *testing.T) {
	srv := mockhttp.New().Status("/users/*", http.StatusNotFound).Build()
	defer srv.Close()

	client := testGraphClient(t, srv.URL)
	err := runSingleEnrollment(context.Background(), client, nil, "ghost@contoso.com")

	var cliErr *clierror.CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected *clierror.CLIError, got %T: %v", err, err)
	}
	if cliErr.Code != clierror.CodeUserNotFound {
		t.Errorf("expected code %s, got %s", clierror.CodeUserNotFound, cliErr.Code)
	}
}
