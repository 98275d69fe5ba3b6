package store

import (
	"github.com/JMarkstrom/entraYK/pkg/enroll"
)

// Recorder adapts the Store to the enrollment pipeline's record sink.
type Recorder struct {
	s *Store
}

// NewRecorder returns a Recorder persisting into s.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{s: s}
}

// Record stores one completed enrollment.
func (r *Recorder) Record(rec enroll.Record) error {
	_, err := r.s.Insert(&Enrollment{
		UPN:    rec.UPN,
		Model:  rec.Model,
		Serial: rec.Serial,
		PIN:    rec.PIN,
	})
	return err
}
