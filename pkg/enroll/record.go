package enroll

import (
	"encoding/csv"
	"fmt"
	"os"
)

// DefaultRecordPath is the append-only enrollment log, relative to the
// working directory.
const DefaultRecordPath = "enrollments.csv"

// csvHeader matches the operator-facing log format.
var csvHeader = []string{"UPN", "Model", "Serial Number", "PIN"}

// CSVRecorder appends completed enrollments to a CSV file. Each record is
// one open-append-close cycle; under the single-threaded execution model
// the OS-level append is atomic enough.
type CSVRecorder struct {
	path string
}

// NewCSVRecorder returns a recorder writing to path, or to
// DefaultRecordPath when path is empty.
func NewCSVRecorder(path string) *CSVRecorder {
	if path == "" {
		path = DefaultRecordPath
	}
	return &CSVRecorder{path: path}
}

// Path returns the log location.
func (w *CSVRecorder) Path() string { return w.path }

// Record appends one row, writing the header first on a fresh file.
func (w *CSVRecorder) Record(rec Record) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open enrollment log: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat enrollment log: %w", err)
	}

	cw := csv.NewWriter(f)
	if stat.Size() == 0 {
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write enrollment log header: %w", err)
		}
	}
	if err := cw.Write([]string{rec.UPN, rec.Model, rec.Serial, rec.PIN}); err != nil {
		return fmt.Errorf("failed to write enrollment record: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush enrollment record: %w", err)
	}
	return nil
}
