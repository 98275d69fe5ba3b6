package fido

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	libfido2 "github.com/keys-pub/go-libfido2"
	"github.com/sirupsen/logrus"
)

// DeviceLocator enumerates connected keys through libfido2.
type DeviceLocator struct {
	log *logrus.Logger
}

// NewDeviceLocator returns a libfido2-backed Locator.
func NewDeviceLocator(log *logrus.Logger) *DeviceLocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DeviceLocator{log: log}
}

// First opens the first connected FIDO2 device. Exactly one key is expected
// to be inserted at a time during provisioning.
func (l *DeviceLocator) First(_ context.Context) (Key, error) {
	locs, err := libfido2.DeviceLocations()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate security keys: %w", err)
	}
	if len(locs) == 0 {
		return nil, ErrNoDevice
	}
	if len(locs) > 1 {
		l.log.WithField("count", len(locs)).Warn("multiple security keys connected, using the first")
	}
	loc := locs[0]
	dev, err := libfido2.NewDevice(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open security key at %s: %w", loc.Path, err)
	}
	l.log.WithFields(logrus.Fields{
		"manufacturer": loc.Manufacturer,
		"product":      loc.Product,
		"path":         loc.Path,
	}).Debug("opened security key")
	return &deviceKey{dev: dev, loc: loc, log: l.log}, nil
}

// deviceKey wraps one libfido2 device. The libfido2 calls are blocking C
// calls that cannot be cancelled mid-operation, so contexts are accepted
// for interface symmetry only.
type deviceKey struct {
	dev *libfido2.Device
	loc *libfido2.DeviceLocation
	log *logrus.Logger
}

func (k *deviceKey) Info(_ context.Context) (*Info, error) {
	di, err := k.dev.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to query security key: %w", err)
	}

	info := &Info{
		Product:      k.loc.Product,
		Manufacturer: k.loc.Manufacturer,
		Versions:     di.Versions,
	}
	if id, err := uuid.FromBytes(di.AAGUID); err == nil {
		info.AAGUID = strings.ToLower(id.String())
	}
	for _, opt := range di.Options {
		if opt.Name == "clientPin" && opt.Value == libfido2.True {
			info.HasPIN = true
		}
	}
	return info, nil
}

func (k *deviceKey) Reset(_ context.Context) error {
	// Destructive: wipes every resident credential and the PIN. Callers
	// gate this behind operator intent.
	if err := k.dev.Reset(); err != nil {
		return fmt.Errorf("failed to reset security key: %w", err)
	}
	return nil
}

func (k *deviceKey) SetPIN(_ context.Context, pin string) error {
	if err := k.dev.SetPIN(pin, ""); err != nil {
		return fmt.Errorf("failed to set security key PIN: %w", err)
	}
	return nil
}

func (k *deviceKey) MakeCredential(_ context.Context, req *CredentialRequest) (*CredentialResult, error) {
	typ, alg, err := pickAlgorithm(req.Algorithms)
	if err != nil {
		return nil, err
	}

	attest, err := k.dev.MakeCredential(
		req.ClientDataHash,
		libfido2.RelyingParty{
			ID:   req.RPID,
			Name: req.RPName,
		},
		libfido2.User{
			ID:          req.UserID,
			Name:        req.UserName,
			DisplayName: req.UserDisplay,
		},
		typ,
		req.PIN,
		&libfido2.MakeCredentialOpts{
			RK: libfido2.True, // discoverable credential
		},
	)
	if err != nil {
		return nil, classifyCTAPError("make credential", err)
	}

	return &CredentialResult{
		CredentialID: attest.CredentialID,
		AuthDataCBOR: attest.AuthData,
		Format:       attest.Format,
		Sig:          attest.Sig,
		Cert:         attest.Cert,
		Algorithm:    alg,
	}, nil
}

// ForcePINChange is not exposed by libfido2's portable surface; the fleet
// treats it as firmware-dependent and skips it.
func (k *deviceKey) ForcePINChange(_ context.Context) error {
	return fmt.Errorf("force PIN change: %w", ErrUnsupported)
}

// RestrictNFC is a vendor management command outside CTAP2; unavailable
// through this backend.
func (k *deviceKey) RestrictNFC(_ context.Context) error {
	return fmt.Errorf("restricted NFC mode: %w", ErrUnsupported)
}

// pickAlgorithm selects the first server-advertised COSE algorithm the key
// stack supports. The server orders by preference.
func pickAlgorithm(algorithms []int64) (libfido2.CredentialType, int64, error) {
	if len(algorithms) == 0 {
		return libfido2.ES256, -7, nil
	}
	for _, alg := range algorithms {
		switch alg {
		case -7:
			return libfido2.ES256, alg, nil
		case -8:
			return libfido2.EDDSA, alg, nil
		case -257:
			return libfido2.RS256, alg, nil
		}
	}
	return 0, 0, fmt.Errorf("no mutually supported algorithm in server list %v", algorithms)
}

// classifyCTAPError keeps the operator-facing failure modes distinct:
// touch timeout and PIN problems read very differently from an IO error.
func classifyCTAPError(op string, err error) error {
	switch {
	case errors.Is(err, libfido2.ErrActionTimeout), errors.Is(err, libfido2.ErrOperationDenied):
		return fmt.Errorf("%s: touch not confirmed in time: %w", op, err)
	case errors.Is(err, libfido2.ErrPinRequired), errors.Is(err, libfido2.ErrPinInvalid):
		return fmt.Errorf("%s: security key PIN rejected: %w", op, err)
	default:
		return fmt.Errorf("%s failed: %w", op, err)
	}
}
