// Package policy builds the directory policy documents that restrict
// passkey registration to an approved set of hardware security keys.
//
// Two documents are produced: the FIDO2 authentication-method configuration
// (an AAGUID allow-list with attestation enforcement) and a named
// authentication-strength policy. Both are pure transformations; nothing in
// this package talks to the directory.
package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
)

// DefaultStrengthName is used when the caller does not name the
// authentication-strength policy.
const DefaultStrengthName = "YubiKey"

// Combination identifiers understood by the directory's authentication
// strength engine.
const (
	CombinationFido2       = "fido2"
	CombinationRecoveryTAP = "temporaryAccessPassOneTime"
)

// ErrEmptySelection is returned when a policy is built from no devices.
var ErrEmptySelection = errors.New("no device identifiers selected")

// UnknownDeviceError reports an AAGUID missing from the device table.
type UnknownDeviceError struct {
	ID string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown device identifier %q", e.ID)
}

// IsValidation reports whether err is a selection-validation failure, as
// opposed to something going wrong after the selection was accepted.
func IsValidation(err error) bool {
	var unknown *UnknownDeviceError
	return errors.Is(err, ErrEmptySelection) || errors.As(err, &unknown)
}

// KeyRestrictions is the AAGUID allow-list member of the method policy.
type KeyRestrictions struct {
	IsEnforced      bool     `json:"isEnforced"`
	EnforcementType string   `json:"enforcementType"`
	AAGuids         []string `json:"aaGuids"`
}

// MethodPolicy is the document PATCHed onto the directory's FIDO2
// authentication-method configuration.
type MethodPolicy struct {
	ODataType                        string          `json:"@odata.type"`
	ID                               string          `json:"id"`
	State                            string          `json:"state"`
	IsAttestationEnforced            bool            `json:"isAttestationEnforced"`
	IsSelfServiceRegistrationAllowed bool            `json:"isSelfServiceRegistrationAllowed"`
	KeyRestrictions                  KeyRestrictions `json:"keyRestrictions"`
}

// CombinationConfiguration restricts the fido2 combination of a strength
// policy to specific AAGUIDs.
type CombinationConfiguration struct {
	ODataType             string   `json:"@odata.type"`
	AppliesToCombinations []string `json:"appliesToCombinations"`
	AllowedAAGUIDs        []string `json:"allowedAAGUIDs"`
}

// StrengthPolicy is the document POSTed to create a named
// authentication-strength policy.
type StrengthPolicy struct {
	DisplayName               string                     `json:"displayName"`
	Description               string                     `json:"description"`
	PolicyType                string                     `json:"policyType"`
	RequirementsSatisfied     string                     `json:"requirementsSatisfied"`
	AllowedCombinations       []string                   `json:"allowedCombinations"`
	CombinationConfigurations []CombinationConfiguration `json:"combinationConfigurations,omitempty"`
}

// Builder validates device selections against the catalog and assembles
// policy documents.
type Builder struct {
	catalog *catalog.Catalog
}

// NewBuilder returns a Builder backed by the given device catalog.
func NewBuilder(c *catalog.Catalog) *Builder {
	return &Builder{catalog: c}
}

// validateSelection is the shared predicate for both policy kinds: the
// selection must be non-empty and every ID must exist in the device table.
// Returns the selection normalized, deduplicated and sorted. Validation
// failures happen before any directory call is made.
func (b *Builder) validateSelection(deviceIDs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(deviceIDs))
	out := make([]string, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		norm := catalog.Normalize(id)
		if norm == "" {
			continue
		}
		if !b.catalog.IsKnown(norm) {
			return nil, &UnknownDeviceError{ID: id}
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	if len(out) == 0 {
		return nil, ErrEmptySelection
	}
	sort.Strings(out)
	return out, nil
}

// AuthMethodPolicy builds the FIDO2 method configuration: registration
// restricted to exactly deviceIDs, with attestation enforcement on.
func (b *Builder) AuthMethodPolicy(deviceIDs []string) (*MethodPolicy, error) {
	ids, err := b.validateSelection(deviceIDs)
	if err != nil {
		return nil, err
	}
	return &MethodPolicy{
		ODataType:                        "#microsoft.graph.fido2AuthenticationMethodConfiguration",
		ID:                               "Fido2",
		State:                            "enabled",
		IsAttestationEnforced:            true,
		IsSelfServiceRegistrationAllowed: true,
		KeyRestrictions: KeyRestrictions{
			IsEnforced:      true,
			EnforcementType: "allow",
			AAGuids:         ids,
		},
	}, nil
}

// AuthStrengthPolicy builds a named combination policy satisfied by either
// the device-bound credential or a single-use temporary access pass. The
// recovery combination is always present so a bad allow-list can never lock
// an entire population out.
func (b *Builder) AuthStrengthPolicy(deviceIDs []string, name string) (*StrengthPolicy, error) {
	ids, err := b.validateSelection(deviceIDs)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultStrengthName
	}
	return &StrengthPolicy{
		DisplayName:           name,
		Description:           "Require a device-bound passkey on an approved security key, or a one-time temporary access pass for recovery",
		PolicyType:            "custom",
		RequirementsSatisfied: "mfa",
		AllowedCombinations:   []string{CombinationFido2, CombinationRecoveryTAP},
		CombinationConfigurations: []CombinationConfiguration{
			{
				ODataType:             "#microsoft.graph.fido2CombinationConfiguration",
				AppliesToCombinations: []string{CombinationFido2},
				AllowedAAGUIDs:        ids,
			},
		},
	}, nil
}
