package graph

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// collection is the OData list envelope. NextLink carries the absolute
// continuation URL on paged responses.
type collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// User is a directory identity, reduced to what this tool needs.
type User struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

// Group is a directory group.
type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// AuthMethodTypeFido2 is the OData type tag of a device-bound FIDO2
// credential in an authentication-methods listing.
const AuthMethodTypeFido2 = "#microsoft.graph.fido2AuthenticationMethod"

// AuthMethod is one entry from a user's authentication-methods listing.
// The listing is heterogeneous; only FIDO2 entries carry an AAGUID.
type AuthMethod struct {
	ODataType               string    `json:"@odata.type"`
	ID                      string    `json:"id"`
	DisplayName             string    `json:"displayName"`
	AAGUID                  string    `json:"aaGuid"`
	Model                   string    `json:"model"`
	AttestationCertificates []string  `json:"attestationCertificates,omitempty"`
	CreatedDateTime         time.Time `json:"createdDateTime"`
}

// IsFido2 reports whether this method is a device-bound FIDO2 credential.
func (m AuthMethod) IsFido2() bool {
	return m.ODataType == AuthMethodTypeFido2
}

// CreationOptions is the directory's response to a credential-creation
// options request. The publicKey member is standard WebAuthn creation
// options; the challenge expiry is enforced server-side.
type CreationOptions struct {
	ChallengeTimeout time.Time                                   `json:"challengeTimeoutDateTime"`
	PublicKey        protocol.PublicKeyCredentialCreationOptions `json:"publicKey"`
}

// CredentialAttestation is the payload submitted to register a created
// credential. All binary members are base64url.
type CredentialAttestation struct {
	DisplayName         string              `json:"displayName"`
	PublicKeyCredential PublicKeyCredential `json:"publicKeyCredential"`
}

// PublicKeyCredential mirrors the browser PublicKeyCredential shape the
// directory expects on submission.
type PublicKeyCredential struct {
	ID       string              `json:"id"`
	Response AttestationResponse `json:"response"`
}

// AttestationResponse carries the client data and attestation object.
type AttestationResponse struct {
	ClientDataJSON    string `json:"clientDataJSON"`
	AttestationObject string `json:"attestationObject"`
}
