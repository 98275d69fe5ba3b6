package graph

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JMarkstrom/entraYK/pkg/policy"
)

// UpdateFido2MethodConfig patches the tenant's FIDO2 authentication-method
// configuration with the given policy document.
func (c *Client) UpdateFido2MethodConfig(ctx context.Context, doc *policy.MethodPolicy) error {
	err := c.do(ctx, http.MethodPatch,
		"/policies/authenticationMethodsPolicy/authenticationMethodConfigurations/Fido2",
		nil, doc, nil)
	if err != nil {
		return fmt.Errorf("failed to update FIDO2 method configuration: %w", err)
	}
	return nil
}

// CreateStrengthPolicy creates a named authentication-strength policy.
func (c *Client) CreateStrengthPolicy(ctx context.Context, doc *policy.StrengthPolicy) error {
	err := c.do(ctx, http.MethodPost,
		"/policies/authenticationStrengthPolicies",
		nil, doc, nil)
	if err != nil {
		return fmt.Errorf("failed to create authentication strength policy %q: %w", doc.DisplayName, err)
	}
	return nil
}
