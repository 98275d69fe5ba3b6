// Package enroll drives the end-to-end provisioning of one hardware
// security key as a passkey credential for one directory identity.
//
// The sequence is strictly serial: wait for the operator to insert a key,
// configure it, fetch a creation challenge, mint the credential on the key,
// submit the attestation, then run best-effort post-configuration. Nothing
// is recorded until the directory has accepted the credential.
package enroll

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
	"github.com/JMarkstrom/entraYK/pkg/fido"
	"github.com/JMarkstrom/entraYK/pkg/graph"
	"github.com/sirupsen/logrus"
)

// Prompter abstracts the operator interactions so the orchestration is
// testable without a console.
type Prompter interface {
	// AwaitKeyInsertion blocks until the operator confirms a key is
	// connected for the given identity.
	AwaitKeyInsertion(ctx context.Context, upn string) error

	// ConfirmReset asks before wiping a key that already carries a PIN.
	ConfirmReset(ctx context.Context) (bool, error)
}

// Directory is the slice of the directory API enrollment needs.
type Directory interface {
	CreationOptions(ctx context.Context, upn string) (*graph.CreationOptions, error)
	SubmitCredential(ctx context.Context, upn string, att *graph.CredentialAttestation) error
}

// Record is one completed provisioning, written only after the directory
// accepted the credential.
type Record struct {
	UPN    string
	Model  string
	Serial string
	PIN    string
}

// Recorder persists completed enrollments.
type Recorder interface {
	Record(rec Record) error
}

// MultiRecorder fans a record out to several sinks; the first failure wins.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(rec Record) error {
	for _, r := range m {
		if err := r.Record(rec); err != nil {
			return err
		}
	}
	return nil
}

// HardwareError is a fatal failure talking to the security key.
type HardwareError struct {
	Step string
	Err  error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware failure at %s: %v", e.Step, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// EnrollmentError is a fatal failure registering the credential with the
// directory.
type EnrollmentError struct {
	Step string
	Err  error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment failure at %s: %v", e.Step, e.Err)
}

func (e *EnrollmentError) Unwrap() error { return e.Err }

// Config assembles an Orchestrator.
type Config struct {
	Directory Directory
	Locator   fido.Locator
	Prompter  Prompter
	Recorder  Recorder
	Catalog   *catalog.Catalog
	// Origin is the relying party origin placed in clientDataJSON; it
	// must match the directory's expectation exactly.
	Origin    string
	PINLength int
	Log       *logrus.Logger
}

// Orchestrator runs enrollments. One instance serves any number of
// sequential enrollments; it is not safe for concurrent use and is never
// used concurrently (each step needs a distinct physical key anyway).
type Orchestrator struct {
	cfg Config
	log *logrus.Logger
}

// New builds an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.PINLength <= 0 {
		cfg.PINLength = fido.DefaultPINLength
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{cfg: cfg, log: log}
}

// Enroll provisions one key for one identity and returns the completed
// record. The record has already been persisted on return.
func (o *Orchestrator) Enroll(ctx context.Context, upn string) (*Record, error) {
	log := o.log.WithField("upn", upn)

	// AwaitHardware: the operator physically inserts the key.
	if err := o.cfg.Prompter.AwaitKeyInsertion(ctx, upn); err != nil {
		return nil, fmt.Errorf("cancelled waiting for security key: %w", err)
	}

	key, err := o.cfg.Locator.First(ctx)
	if err != nil {
		return nil, &HardwareError{Step: "detect", Err: err}
	}

	info, err := key.Info(ctx)
	if err != nil {
		return nil, &HardwareError{Step: "query", Err: err}
	}
	log.WithFields(logrus.Fields{"aaguid": info.AAGUID, "product": info.Product}).Debug("security key detected")

	// Configure: a key with an existing PIN must be factory-reset before
	// a new credential PIN can be assigned. The reset wipes resident
	// credentials, so the operator confirms it.
	if info.HasPIN {
		ok, err := o.cfg.Prompter.ConfirmReset(ctx)
		if err != nil {
			return nil, fmt.Errorf("cancelled at reset confirmation: %w", err)
		}
		if !ok {
			return nil, &HardwareError{Step: "reset", Err: fmt.Errorf("key already has a PIN and reset was declined")}
		}
		if err := key.Reset(ctx); err != nil {
			return nil, &HardwareError{Step: "reset", Err: err}
		}
	}

	// SetCredentialPIN: fresh random numeric PIN.
	pin, err := fido.GeneratePIN(o.cfg.PINLength)
	if err != nil {
		return nil, &HardwareError{Step: "generate PIN", Err: err}
	}
	if err := key.SetPIN(ctx, pin); err != nil {
		return nil, &HardwareError{Step: "set PIN", Err: err}
	}

	// FetchChallenge: server-enforced 5-minute validity window.
	opts, err := o.cfg.Directory.CreationOptions(ctx, upn)
	if err != nil {
		return nil, &EnrollmentError{Step: "fetch challenge", Err: err}
	}

	// GenerateCredential: blocks on the operator's touch; timeout is the
	// hardware stack's concern, not ours.
	result, clientDataJSON, err := o.generateCredential(ctx, key, pin, opts)
	if err != nil {
		return nil, err
	}

	attObj, err := fido.BuildAttestationObject(result)
	if err != nil {
		return nil, &EnrollmentError{Step: "build attestation", Err: err}
	}

	model := o.modelLabel(info)

	// SubmitAttestation: any non-success response is fatal for this
	// enrollment and carries the directory's response verbatim.
	att := &graph.CredentialAttestation{
		DisplayName: model,
		PublicKeyCredential: graph.PublicKeyCredential{
			ID: fido.Base64URLEncode(result.CredentialID),
			Response: graph.AttestationResponse{
				ClientDataJSON:    fido.Base64URLEncode(clientDataJSON),
				AttestationObject: fido.Base64URLEncode(attObj),
			},
		},
	}
	if err := o.cfg.Directory.SubmitCredential(ctx, upn, att); err != nil {
		return nil, &EnrollmentError{Step: "submit attestation", Err: err}
	}

	// PostConfigure: each step independently best-effort. A failure here
	// never unwinds the registration the directory just accepted.
	if err := key.ForcePINChange(ctx); err != nil {
		log.WithError(err).Debug("skipping force-PIN-change")
	}
	if err := key.RestrictNFC(ctx); err != nil {
		log.WithError(err).Debug("skipping restricted NFC mode")
	}

	serial := info.Serial
	if serial == "" {
		serial = "unknown"
	}
	rec := Record{UPN: upn, Model: model, Serial: serial, PIN: pin}
	if o.cfg.Recorder != nil {
		if err := o.cfg.Recorder.Record(rec); err != nil {
			// The credential IS registered; losing the record is worth
			// surfacing but must not read as a failed enrollment.
			log.WithError(err).Error("credential registered but record could not be written")
		}
	}
	log.Info("enrollment complete")
	return &rec, nil
}

func (o *Orchestrator) generateCredential(ctx context.Context, key fido.Key, pin string, opts *graph.CreationOptions) (*fido.CredentialResult, []byte, error) {
	challenge := fido.Base64URLEncode(opts.PublicKey.Challenge)
	clientDataJSON, err := fido.BuildClientData(challenge, o.cfg.Origin)
	if err != nil {
		return nil, nil, &EnrollmentError{Step: "build client data", Err: err}
	}
	cdh := sha256.Sum256(clientDataJSON)

	userHandle, err := decodeUserHandle(opts.PublicKey.User.ID)
	if err != nil {
		return nil, nil, &EnrollmentError{Step: "decode user handle", Err: err}
	}

	algorithms := make([]int64, 0, len(opts.PublicKey.Parameters))
	for _, p := range opts.PublicKey.Parameters {
		algorithms = append(algorithms, int64(p.Algorithm))
	}

	result, err := key.MakeCredential(ctx, &fido.CredentialRequest{
		ClientDataHash: cdh[:],
		RPID:           opts.PublicKey.RelyingParty.ID,
		RPName:         opts.PublicKey.RelyingParty.Name,
		UserID:         userHandle,
		UserName:       opts.PublicKey.User.Name,
		UserDisplay:    opts.PublicKey.User.DisplayName,
		Algorithms:     algorithms,
		PIN:            pin,
	})
	if err != nil {
		return nil, nil, &HardwareError{Step: "make credential", Err: err}
	}
	return result, clientDataJSON, nil
}

// decodeUserHandle extracts the opaque user handle the directory sent.
// The WebAuthn JSON carries it base64url; the CTAP layer needs raw bytes.
func decodeUserHandle(id any) ([]byte, error) {
	switch v := id.(type) {
	case string:
		return fido.Base64URLDecode(v)
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected user handle type %T", id)
	}
}

// modelLabel joins the key's AAGUID against the device table; the USB
// product string is the fallback for keys the table does not know.
func (o *Orchestrator) modelLabel(info *fido.Info) string {
	if o.cfg.Catalog != nil {
		if rec, ok := o.cfg.Catalog.LookupByID(info.AAGUID); ok {
			return rec.Model
		}
	}
	if info.Product != "" {
		return info.Product
	}
	return "unknown security key"
}
