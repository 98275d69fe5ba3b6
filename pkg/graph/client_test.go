package graph

import (
	"context"
	"net/http"
	"testing"

	"github.com/JMarkstrom/entraYK/internal/testutil/mockhttp"
	"github.com/JMarkstrom/entraYK/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	session, err := NewSession(SessionConfig{TenantID: "contoso.onmicrosoft.com"})
	require.NoError(t, err)
	return NewClient(session,
		WithBaseURL(baseURL),
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})),
	)
}

func TestClientSendsBearerToken(t *testing.T) {
	builder := mockhttp.New().RequireBearer("test-token")
	capture := builder.Capture()
	srv := builder.Collection("/users/alice@contoso.com/authentication/methods", []AuthMethod{}).Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.ListAuthMethods(context.Background(), "alice@contoso.com")
	require.NoError(t, err)

	req := capture.Last()
	assert.Equal(t, "Bearer test-token", req.Headers.Get("Authorization"))
	assert.NotEmpty(t, req.Headers.Get("Client-Request-Id"))
}

func TestAPIErrorCarriesBody(t *testing.T) {
	srv := mockhttp.New().
		StatusWithBody("/users/*", http.StatusConflict, `{"error":{"message":"credential already exists"}}`).
		Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	err := c.SubmitCredential(context.Background(), "alice@contoso.com", &CredentialAttestation{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusConflict))
	assert.Contains(t, err.Error(), "credential already exists")
}

func TestCreationOptionsParsesPublicKey(t *testing.T) {
	body := map[string]any{
		"challengeTimeoutDateTime": "2026-08-31T12:05:00Z",
		"publicKey": map[string]any{
			"rp":        map[string]any{"id": "login.contoso.com", "name": "Contoso"},
			"user":      map[string]any{"id": "T0lELXVzZXItaGFuZGxl", "name": "alice@contoso.com", "displayName": "Alice"},
			"challenge": "Y2hhbGxlbmdlLWJ5dGVz",
			"pubKeyCredParams": []map[string]any{
				{"type": "public-key", "alg": -7},
				{"type": "public-key", "alg": -257},
			},
			"attestation": "direct",
		},
	}
	builder := mockhttp.New()
	capture := builder.Capture()
	srv := builder.JSON("/users/alice@contoso.com/authentication/fido2Methods/creationOptions", body).Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	opts, err := c.CreationOptions(context.Background(), "alice@contoso.com")
	require.NoError(t, err)

	assert.Equal(t, "login.contoso.com", opts.PublicKey.RelyingParty.ID)
	assert.NotEmpty(t, opts.PublicKey.Challenge)
	require.Len(t, opts.PublicKey.Parameters, 2)
	assert.EqualValues(t, -7, opts.PublicKey.Parameters[0].Algorithm)

	// The 5-minute validity window must be requested explicitly.
	req := capture.Last()
	assert.Equal(t, []string{"5"}, req.Query["challengeTimeoutInMinutes"])
}

func TestCreationOptionsBadRequestDiagnostic(t *testing.T) {
	srv := mockhttp.New().
		StatusWithBody("/users/*", http.StatusBadRequest, `{"error":{"code":"badRequest"}}`).
		Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.CreationOptions(context.Background(), "ghost@contoso.com")
	require.Error(t, err)
	// The raw 400 is useless; the error must name the three likely causes.
	assert.Contains(t, err.Error(), "does not exist")
	assert.Contains(t, err.Error(), "UserAuthenticationMethod.ReadWrite.All")
	assert.Contains(t, err.Error(), "not enabled")
}

func TestSubmitCredentialBody(t *testing.T) {
	builder := mockhttp.New()
	capture := builder.Capture()
	srv := builder.JSONWithStatus("/users/alice@contoso.com/authentication/fido2Methods",
		http.StatusCreated, map[string]string{"id": "cred-1"}).Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	att := &CredentialAttestation{
		DisplayName: "YubiKey 5 NFC",
		PublicKeyCredential: PublicKeyCredential{
			ID: "Y3JlZC1pZA",
			Response: AttestationResponse{
				ClientDataJSON:    "Y2xpZW50LWRhdGE",
				AttestationObject: "YXR0LW9iag",
			},
		},
	}
	require.NoError(t, c.SubmitCredential(context.Background(), "alice@contoso.com", att))

	var sent CredentialAttestation
	require.NoError(t, capture.Last().BodyJSON(&sent))
	assert.Equal(t, *att, sent)
	assert.Equal(t, http.MethodPost, capture.Last().Method)
}

func TestUpdateFido2MethodConfig(t *testing.T) {
	builder := mockhttp.New()
	capture := builder.Capture()
	srv := builder.Status("/policies/authenticationMethodsPolicy/authenticationMethodConfigurations/Fido2",
		http.StatusNoContent).Build()
	defer srv.Close()

	doc := &policy.MethodPolicy{
		ODataType:             "#microsoft.graph.fido2AuthenticationMethodConfiguration",
		ID:                    "Fido2",
		State:                 "enabled",
		IsAttestationEnforced: true,
		KeyRestrictions: policy.KeyRestrictions{
			IsEnforced:      true,
			EnforcementType: "allow",
			AAGuids:         []string{"fa2b99dc-9e39-4257-8f92-4a30d23c4118"},
		},
	}
	c := testClient(t, srv.URL)
	require.NoError(t, c.UpdateFido2MethodConfig(context.Background(), doc))

	req := capture.Last()
	assert.Equal(t, http.MethodPatch, req.Method)
	var sent map[string]any
	require.NoError(t, req.BodyJSON(&sent))
	assert.Equal(t, true, sent["isAttestationEnforced"])
}

func TestGroupMembersFollowsPaging(t *testing.T) {
	// Two-page enumeration: the first page links to the second.
	page2 := mockhttp.New().
		Collection("/page2", []User{{ID: "u3", UserPrincipalName: "carol@contoso.com"}}).
		Build()
	defer page2.Close()

	first := mockhttp.New().
		Page("/groups/g1/members/microsoft.graph.user",
			[]User{
				{ID: "u1", UserPrincipalName: "alice@contoso.com"},
				{ID: "u2", UserPrincipalName: "bob@contoso.com"},
			},
			page2.URL+"/page2").
		Build()
	defer first.Close()

	c := testClient(t, first.URL)
	members, err := c.GroupMembers(context.Background(), "g1")
	require.NoError(t, err)

	require.Len(t, members, 3)
	assert.Equal(t, "alice@contoso.com", members[0].UserPrincipalName)
	assert.Equal(t, "carol@contoso.com", members[2].UserPrincipalName)
}

func TestResolveGroup(t *testing.T) {
	builder := mockhttp.New()
	capture := builder.Capture()
	srv := builder.Collection("/groups", []Group{{ID: "g1", DisplayName: "Key Users"}}).Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	g, err := c.ResolveGroup(context.Background(), "Key Users")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.Contains(t, capture.Last().Query["$filter"][0], "displayName eq 'Key Users'")
}

func TestResolveGroupNotFound(t *testing.T) {
	srv := mockhttp.New().Collection("/groups", []Group{}).Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.ResolveGroup(context.Background(), "Ghost Group")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGetUser(t *testing.T) {
	srv := mockhttp.New().
		JSON("/users/alice@contoso.com", User{ID: "u1", UserPrincipalName: "alice@contoso.com"}).
		Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	u, err := c.GetUser(context.Background(), "alice@contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "alice@contoso.com", u.UserPrincipalName)
}

func TestGetUserNotFound(t *testing.T) {
	srv := mockhttp.New().Build()
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GetUser(context.Background(), "ghost@contoso.com")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}
