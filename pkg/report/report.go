// Package report joins directory passkey registrations against the device
// table to produce the audit view: one row per registered credential, with
// firmware and certification level resolved from the credential's AAGUID.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/JMarkstrom/entraYK/pkg/catalog"
	"github.com/JMarkstrom/entraYK/pkg/graph"
	"github.com/sirupsen/logrus"
)

// Row is one line of the audit report. An identity with no FIDO2
// credentials still yields exactly one Row with only UPN populated, so
// the report always accounts for every requested identity.
type Row struct {
	UPN           string    `json:"upn"`
	Nickname      string    `json:"nickname,omitempty"`
	Firmware      string    `json:"firmware,omitempty"`
	Certification string    `json:"certification,omitempty"`
	Created       time.Time `json:"created,omitempty"`
}

// HasCredential reports whether the row describes a registered credential
// rather than a credential-less identity placeholder.
func (r Row) HasCredential() bool { return r.Nickname != "" || r.Firmware != "" }

// Directory is the slice of the directory client the builder needs.
type Directory interface {
	ListAuthMethods(ctx context.Context, upn string) ([]graph.AuthMethod, error)
}

// Builder assembles audit reports.
type Builder struct {
	dir Directory
	cat *catalog.Catalog
	log *logrus.Logger
}

// NewBuilder returns a Builder reading registrations from dir and
// resolving AAGUIDs through cat.
func NewBuilder(dir Directory, cat *catalog.Catalog, log *logrus.Logger) *Builder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{dir: dir, cat: cat, log: log}
}

// ForUsers builds rows for the given identities, in order. Rows for one
// identity keep the directory's response order. Any directory error
// aborts the report; a partial audit is worse than none.
func (b *Builder) ForUsers(ctx context.Context, upns []string) ([]Row, error) {
	var rows []Row
	for _, upn := range upns {
		userRows, err := b.forUser(ctx, upn)
		if err != nil {
			return nil, fmt.Errorf("failed to audit %s: %w", upn, err)
		}
		rows = append(rows, userRows...)
	}
	return rows, nil
}

func (b *Builder) forUser(ctx context.Context, upn string) ([]Row, error) {
	methods, err := b.dir.ListAuthMethods(ctx, upn)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, m := range methods {
		if !m.IsFido2() {
			continue
		}
		row := Row{
			UPN:      upn,
			Nickname: m.DisplayName,
			Created:  m.CreatedDateTime,
		}
		if rec, ok := b.cat.LookupByID(m.AAGUID); ok {
			row.Firmware = rec.Firmware
			row.Certification = rec.Certification
		} else {
			b.log.WithFields(logrus.Fields{
				"upn":    upn,
				"aaguid": m.AAGUID,
			}).Warn("registered credential has an unrecognized AAGUID")
			row.Firmware = "unknown"
			row.Certification = "unknown"
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return []Row{{UPN: upn}}, nil
	}
	return rows, nil
}

// csvHeader matches the exported audit format.
var csvHeader = []string{"UPN", "Nickname", "Firmware", "Certification"}

// WriteCSV writes the report to w in the exported audit format.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.UPN, r.Nickname, r.Firmware, r.Certification}); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}
