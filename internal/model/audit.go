package model

import "time"

// AuditRow is one append-only audit entry per processed document. Rows are
// written regardless of outcome and never updated or deleted.
type AuditRow struct {
	SourceFile       string
	TargetFile       *string
	InvoiceNumber    *string
	Supplier         *string
	InvoiceDate      *string
	Method           ExtractionMethod
	ContentHash      string
	Confidence       float64
	ValidationStatus ValidationStatus
	ValidationReason *string
	AmountGross      *float64
	AmountNet        *float64
	AmountTax        *float64
	Currency         *string
	ProcessedAt      time.Time
}

// AuditRowFromRecord builds the audit entry for a processed record.
func AuditRowFromRecord(r *ExtractedRecord, at time.Time) AuditRow {
	return AuditRow{
		SourceFile:       r.SourcePath,
		TargetFile:       r.TargetPath,
		InvoiceNumber:    r.InvoiceNumber,
		Supplier:         r.Supplier,
		InvoiceDate:      r.InvoiceDate,
		Method:           r.ExtractionMethod,
		ContentHash:      r.ContentHash,
		Confidence:       r.Confidence,
		ValidationStatus: r.ValidationStatus,
		ValidationReason: r.ValidationReason,
		AmountGross:      r.AmountGross,
		AmountNet:        r.AmountNet,
		AmountTax:        r.AmountTax,
		Currency:         r.Currency,
		ProcessedAt:      at,
	}
}
