// Package model defines the core data types shared across the pipeline.
package model

import (
	"fmt"
	"time"
)

// ExtractionMethod identifies how the document text was obtained.
type ExtractionMethod string

// Extraction methods.
const (
	// MethodNativeText means the text came from the document's embedded text layer.
	MethodNativeText ExtractionMethod = "native-text"
	// MethodOptical means the text came from optical character recognition.
	MethodOptical ExtractionMethod = "optical"
	// MethodFallback means the external extraction service changed at least one field.
	MethodFallback ExtractionMethod = "fallback-service"
	// MethodDuplicate marks a document whose content hash was already processed.
	MethodDuplicate ExtractionMethod = "duplicate"
)

// ValidationStatus is the pipeline's terminal judgment on a record.
type ValidationStatus string

// Validation outcomes. The set is closed; there are no further states.
const (
	StatusOK          ValidationStatus = "ok"
	StatusNeedsReview ValidationStatus = "needs_review"
	StatusFail        ValidationStatus = "fail"
)

// Valid reports whether s is one of the three known outcomes.
func (s ValidationStatus) Valid() bool {
	switch s {
	case StatusOK, StatusNeedsReview, StatusFail:
		return true
	}
	return false
}

// ExtractedRecord is the per-document result of the pipeline.
type ExtractedRecord struct {
	SourcePath       string
	TargetPath       *string
	InvoiceNumber    *string
	Supplier         *string
	InvoiceDate      *string // ISO 8601 (YYYY-MM-DD)
	AmountGross      *float64
	AmountNet        *float64
	AmountTax        *float64
	Currency         *string // 3-letter code
	ExtractionMethod ExtractionMethod
	ContentHash      string // hex sha256 of the source bytes
	Confidence       float64
	ValidationStatus ValidationStatus
	ValidationReason *string
}

// Validate checks the record's internal invariants.
func (r *ExtractedRecord) Validate() error {
	if r.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range [0,1]", r.Confidence)
	}
	if !r.ValidationStatus.Valid() {
		return fmt.Errorf("unknown validation status %q", r.ValidationStatus)
	}
	if r.ValidationStatus != StatusOK && r.ValidationReason == nil {
		return fmt.Errorf("validation reason is required when status is %q", r.ValidationStatus)
	}
	return nil
}

// Fields returns the extracted field values as a partial record.
func (r *ExtractedRecord) Fields() PartialRecord {
	return PartialRecord{
		InvoiceNumber: r.InvoiceNumber,
		Supplier:      r.Supplier,
		InvoiceDate:   r.InvoiceDate,
		AmountGross:   r.AmountGross,
		AmountNet:     r.AmountNet,
		AmountTax:     r.AmountTax,
		Currency:      r.Currency,
	}
}

// ApplyFields overwrites the record's extracted fields from a partial record.
func (r *ExtractedRecord) ApplyFields(p PartialRecord) {
	r.InvoiceNumber = p.InvoiceNumber
	r.Supplier = p.Supplier
	r.InvoiceDate = p.InvoiceDate
	r.AmountGross = p.AmountGross
	r.AmountNet = p.AmountNet
	r.AmountTax = p.AmountTax
	r.Currency = p.Currency
}

// InvoiceYear returns the year of the invoice date, or the year of now when
// the date is absent or malformed.
func (r *ExtractedRecord) InvoiceYear(now time.Time) string {
	if r.InvoiceDate != nil {
		if d, err := time.Parse("2006-01-02", *r.InvoiceDate); err == nil {
			return d.Format("2006")
		}
	}
	return now.Format("2006")
}

// StringPtr returns a pointer to s. Convenience for optional fields.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f. Convenience for optional fields.
func FloatPtr(f float64) *float64 { return &f }
