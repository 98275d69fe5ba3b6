package fido

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// clientData is the WebAuthn collected client data. A browser would build
// this; a CLI has to do it by hand, and the origin must match the relying
// party's registered origin exactly.
type clientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin"`
}

// BuildClientData constructs the clientDataJSON for a credential-creation
// ceremony. The challenge is passed base64url, exactly as the server sent it.
func BuildClientData(challenge, origin string) ([]byte, error) {
	data, err := json.Marshal(clientData{
		Type:      "webauthn.create",
		Challenge: challenge,
		Origin:    origin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode client data: %w", err)
	}
	return data, nil
}

// attestationObject is the CBOR wire shape of a WebAuthn attestation
// object. AuthData arrives from the device already CBOR byte-string
// wrapped, so it passes through as RawMessage to avoid double encoding.
type attestationObject struct {
	Fmt      string          `cbor:"fmt"`
	AttStmt  map[string]any  `cbor:"attStmt"`
	AuthData cbor.RawMessage `cbor:"authData"`
}

// BuildAttestationObject wraps the device's CTAP2 output into a WebAuthn
// attestation object. When the device produced a packed statement with a
// certificate, the statement is preserved so the directory can enforce
// attestation; otherwise the format degrades to "none".
func BuildAttestationObject(res *CredentialResult) ([]byte, error) {
	obj := attestationObject{
		Fmt:      "none",
		AttStmt:  map[string]any{},
		AuthData: cbor.RawMessage(res.AuthDataCBOR),
	}
	if res.Format == "packed" && len(res.Sig) > 0 && len(res.Cert) > 0 {
		obj.Fmt = "packed"
		obj.AttStmt = map[string]any{
			"alg": res.Algorithm,
			"sig": res.Sig,
			"x5c": [][]byte{res.Cert},
		}
	}
	out, err := cbor.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attestation object: %w", err)
	}
	return out, nil
}

// Base64URLEncode encodes bytes the way WebAuthn JSON members expect.
func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Base64URLDecode accepts both padded and raw base64url, since directory
// responses are inconsistent about padding.
func Base64URLDecode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
