package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractedRecordValidate(t *testing.T) {
	valid := func() *ExtractedRecord {
		return &ExtractedRecord{
			SourcePath:       "in/a.pdf",
			ExtractionMethod: MethodNativeText,
			Confidence:       0.5,
			ValidationStatus: StatusOK,
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *ExtractedRecord)
		wantErr bool
	}{
		{
			name:   "valid record",
			mutate: func(_ *ExtractedRecord) {},
		},
		{
			name:    "missing source path",
			mutate:  func(r *ExtractedRecord) { r.SourcePath = "" },
			wantErr: true,
		},
		{
			name:    "confidence above one",
			mutate:  func(r *ExtractedRecord) { r.Confidence = 1.1 },
			wantErr: true,
		},
		{
			name:    "unknown status",
			mutate:  func(r *ExtractedRecord) { r.ValidationStatus = "maybe" },
			wantErr: true,
		},
		{
			name:    "non-ok status requires reason",
			mutate:  func(r *ExtractedRecord) { r.ValidationStatus = StatusFail },
			wantErr: true,
		},
		{
			name: "non-ok status with reason",
			mutate: func(r *ExtractedRecord) {
				r.ValidationStatus = StatusNeedsReview
				r.ValidationReason = StringPtr("incomplete fields")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvoiceYear(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	r := &ExtractedRecord{InvoiceDate: StringPtr("2024-03-14")}
	assert.Equal(t, "2024", r.InvoiceYear(now))

	r = &ExtractedRecord{}
	assert.Equal(t, "2026", r.InvoiceYear(now))

	r = &ExtractedRecord{InvoiceDate: StringPtr("not-a-date")}
	assert.Equal(t, "2026", r.InvoiceYear(now))
}
