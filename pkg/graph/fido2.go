package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ChallengeValidity is the server-enforced lifetime requested for
// credential-creation challenges.
const ChallengeValidity = 5 * time.Minute

// CreationOptions requests a credential-creation challenge for the given
// identity. The challenge expires after ChallengeValidity; expiry is
// enforced by the directory, not locally.
func (c *Client) CreationOptions(ctx context.Context, upn string) (*CreationOptions, error) {
	query := url.Values{}
	query.Set("challengeTimeoutInMinutes", strconv.Itoa(int(ChallengeValidity.Minutes())))

	var opts CreationOptions
	err := c.do(ctx, http.MethodGet,
		"/users/"+url.PathEscape(upn)+"/authentication/fido2Methods/creationOptions",
		query, nil, &opts)
	if err != nil {
		if IsStatus(err, http.StatusBadRequest) {
			// The directory's 400 here is famously unhelpful; name the
			// three causes seen in practice instead of echoing it.
			return nil, fmt.Errorf("the directory rejected the creation-options request for %s; "+
				"likely causes: the user does not exist, the signed-in account lacks the "+
				"UserAuthenticationMethod.ReadWrite.All permission, or the passkey (FIDO2) "+
				"authentication method is not enabled for this tenant: %w", upn, err)
		}
		return nil, fmt.Errorf("failed to fetch creation options for %s: %w", upn, err)
	}
	return &opts, nil
}

// SubmitCredential registers a created credential and its attestation for
// the given identity. Any non-2xx response is returned with its body.
func (c *Client) SubmitCredential(ctx context.Context, upn string, att *CredentialAttestation) error {
	err := c.do(ctx, http.MethodPost,
		"/users/"+url.PathEscape(upn)+"/authentication/fido2Methods",
		nil, att, nil)
	if err != nil {
		return fmt.Errorf("failed to register credential for %s: %w", upn, err)
	}
	return nil
}

// ListAuthMethods returns every authentication method registered for the
// identity, in directory response order.
func (c *Client) ListAuthMethods(ctx context.Context, upn string) ([]AuthMethod, error) {
	var page collection[AuthMethod]
	err := c.do(ctx, http.MethodGet,
		"/users/"+url.PathEscape(upn)+"/authentication/methods",
		nil, nil, &page)
	if err != nil {
		return nil, fmt.Errorf("failed to list authentication methods for %s: %w", upn, err)
	}
	return page.Value, nil
}
