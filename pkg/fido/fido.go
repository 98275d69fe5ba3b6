// Package fido drives a locally connected FIDO2 security key through the
// credential-creation ceremony: discoverable credential generation, PIN
// management, and assembly of the WebAuthn attestation payload the
// directory expects.
//
// The hardware protocol itself is delegated to libfido2; this package only
// sequences calls and converts between CTAP2 and WebAuthn shapes.
package fido

import (
	"context"
	"errors"
)

// Sentinel errors shared by hardware key implementations.
var (
	// ErrNoDevice means no FIDO2 authenticator is connected.
	ErrNoDevice = errors.New("no FIDO2 security key detected")

	// ErrUnsupported means the key's firmware or the underlying library
	// does not implement an optional command. Callers treat this as a
	// skip, never a failure.
	ErrUnsupported = errors.New("operation not supported by this security key")
)

// Info describes a connected key.
type Info struct {
	AAGUID       string // canonical lowercase UUID form
	Product      string
	Manufacturer string
	// Serial is the hardware serial when the backend can read it. CTAP2
	// does not expose it, so this is often empty on real hardware.
	Serial   string
	Versions []string
	HasPIN   bool // a credential-protection PIN is already set
}

// CredentialRequest carries everything the key needs to mint a
// discoverable credential.
type CredentialRequest struct {
	ClientDataHash []byte
	RPID           string
	RPName         string
	UserID         []byte // opaque user handle from the directory
	UserName       string
	UserDisplay    string
	// Algorithms is the server-advertised COSE algorithm list, in
	// preference order.
	Algorithms []int64
	PIN        string
}

// CredentialResult is the raw CTAP2 output of credential creation.
type CredentialResult struct {
	CredentialID []byte
	// AuthData as returned by the device, CBOR byte-string wrapped.
	AuthDataCBOR []byte
	Format       string // attestation statement format, e.g. "packed"
	Sig          []byte
	Cert         []byte
	// Algorithm is the negotiated COSE algorithm.
	Algorithm int64
}

// Key is one connected FIDO2 authenticator. Operations block on the
// hardware; MakeCredential additionally blocks on the operator's touch.
// The context is honored where the underlying library allows it.
type Key interface {
	Info(ctx context.Context) (*Info, error)
	Reset(ctx context.Context) error
	SetPIN(ctx context.Context, pin string) error
	MakeCredential(ctx context.Context, req *CredentialRequest) (*CredentialResult, error)

	// ForcePINChange requests a mandatory PIN change on first use.
	// Best effort: ErrUnsupported on firmware that lacks it.
	ForcePINChange(ctx context.Context) error

	// RestrictNFC puts the key's NFC interface into restricted mode.
	// Best effort: ErrUnsupported on firmware that lacks it.
	RestrictNFC(ctx context.Context) error
}

// Locator finds a connected key.
type Locator interface {
	First(ctx context.Context) (Key, error)
}
