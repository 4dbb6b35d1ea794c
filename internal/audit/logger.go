// Package audit writes the append-only processing log. One row per processed
// document, written regardless of outcome; rows are never updated or deleted.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mhartmann/sortier/internal/model"
)

// columns is the fixed audit column order. It is part of the sink's contract
// with downstream consumers and must not change.
var columns = []string{
	"source_file",
	"target_file",
	"invoice_no",
	"supplier",
	"date",
	"method",
	"hash",
	"confidence",
	"validation_status",
	"gross",
	"net",
	"tax",
	"currency",
}

// Logger appends audit rows to a CSV file. Appends are serialized with a
// mutex so concurrent documents keep rows intact.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates an audit logger writing to path.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Append writes one row, creating the file with a header line first if
// needed. Callers treat errors as reportable but non-fatal: a failing audit
// sink never aborts document processing.
func (l *Logger) Append(row model.AuditRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	_, statErr := os.Stat(l.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(columns); err != nil {
			return fmt.Errorf("failed to write audit header: %w", err)
		}
	}

	record := []string{
		row.SourceFile,
		strOrEmpty(row.TargetFile),
		strOrEmpty(row.InvoiceNumber),
		strOrEmpty(row.Supplier),
		strOrEmpty(row.InvoiceDate),
		string(row.Method),
		row.ContentHash,
		strconv.FormatFloat(row.Confidence, 'f', 2, 64),
		string(row.ValidationStatus),
		floatOrEmpty(row.AmountGross),
		floatOrEmpty(row.AmountNet),
		floatOrEmpty(row.AmountTax),
		strOrEmpty(row.Currency),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("failed to write audit row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}
