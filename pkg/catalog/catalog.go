// Package catalog holds the static table of known hardware security key
// models, keyed by AAGUID. The table is embedded at build time and loaded
// once; it is never mutated after load.
//
// An AAGUID identifies a vendor/model combination, not a physical unit, and
// the same AAGUID is reused by Yubico across form factors and firmware
// revisions. Lookups therefore resolve to the first matching row in table
// order; the ambiguity is inherent to the identifier scheme, not something
// this package can resolve.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

//go:embed devices.json
var devicesJSON []byte

// Certification levels assigned by the FIDO Alliance certification program.
const (
	CertLevel1        = "L1"
	CertLevel2        = "L2"
	CertNotApplicable = "n/a"
)

// Record describes one known device model. Firmware may denote a range,
// e.g. "5.2 / 5.4", when Yubico ships the same AAGUID across revisions.
type Record struct {
	Model         string `json:"model"`
	Firmware      string `json:"firmware"`
	AAGUID        string `json:"aaguid"`
	Certification string `json:"certification"`
}

// Catalog is an immutable, ordered device table with an AAGUID index.
type Catalog struct {
	records []Record
	byID    map[string][]Record
}

// Load parses the embedded device table. It is called once at startup;
// a parse failure means the binary itself is broken.
func Load() (*Catalog, error) {
	return load(devicesJSON)
}

func load(data []byte) (*Catalog, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse device table: %w", err)
	}

	c := &Catalog{
		records: records,
		byID:    make(map[string][]Record, len(records)),
	}
	for i, r := range records {
		id := strings.ToLower(strings.TrimSpace(r.AAGUID))
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("device table row %d: bad AAGUID %q: %w", i, r.AAGUID, err)
		}
		c.byID[id] = append(c.byID[id], r)
	}
	return c, nil
}

// Normalize lower-cases and trims an AAGUID so user input in any case
// matches the canonical table form.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// LookupByID returns the first record in table order matching the given
// AAGUID, or false when the AAGUID is unknown. Multiple rows can share an
// AAGUID; callers that need all of them should not exist (reporting only
// ever needs one label).
func (c *Catalog) LookupByID(id string) (Record, bool) {
	matches, ok := c.byID[Normalize(id)]
	if !ok || len(matches) == 0 {
		return Record{}, false
	}
	return matches[0], true
}

// IsKnown reports whether the AAGUID appears in the device table. An ID
// that does not parse as a UUID is never known.
func (c *Catalog) IsKnown(id string) bool {
	norm := Normalize(id)
	if _, err := uuid.Parse(norm); err != nil {
		return false
	}
	_, ok := c.byID[norm]
	return ok
}

// AllIDs returns the distinct AAGUIDs in the table, sorted.
func (c *Catalog) AllIDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Records returns the table rows in table order.
func (c *Catalog) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of rows in the table.
func (c *Catalog) Len() int {
	return len(c.records)
}
