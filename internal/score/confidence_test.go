package score

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }
func longText() string        { return strings.Repeat("x", 201) }

func TestConfidence(t *testing.T) {
	recent := strPtr(testNow.AddDate(0, -1, 0).Format("2006-01-02"))
	stale := strPtr(testNow.AddDate(-3, 0, 0).Format("2006-01-02"))

	tests := []struct {
		name       string
		in         Inputs
		maxAgeDays int
		want       float64
	}{
		{
			name:       "nothing extracted",
			in:         Inputs{},
			maxAgeDays: 370,
			want:       0,
		},
		{
			name: "everything present and recent",
			in: Inputs{
				Text:          longText(),
				InvoiceNumber: strPtr("R-1"),
				InvoiceDate:   recent,
				Supplier:      strPtr("acme"),
				AmountGross:   fPtr(119),
			},
			maxAgeDays: 370,
			want:       1.0,
		},
		{
			name:       "invoice number alone",
			in:         Inputs{InvoiceNumber: strPtr("R-1")},
			maxAgeDays: 370,
			want:       0.35,
		},
		{
			name:       "recent date alone",
			in:         Inputs{InvoiceDate: recent},
			maxAgeDays: 370,
			want:       0.25,
		},
		{
			name:       "stale date scores nothing",
			in:         Inputs{InvoiceDate: stale},
			maxAgeDays: 370,
			want:       0,
		},
		{
			name:       "stale date still scores in archive mode",
			in:         Inputs{InvoiceDate: stale},
			maxAgeDays: 0,
			want:       0.20,
		},
		{
			name:       "supplier alone",
			in:         Inputs{Supplier: strPtr("acme")},
			maxAgeDays: 370,
			want:       0.20,
		},
		{
			name:       "long text alone",
			in:         Inputs{Text: longText()},
			maxAgeDays: 370,
			want:       0.10,
		},
		{
			name:       "short text scores nothing",
			in:         Inputs{Text: strings.Repeat("x", 200)},
			maxAgeDays: 370,
			want:       0,
		},
		{
			name:       "gross amount alone",
			in:         Inputs{AmountGross: fPtr(119)},
			maxAgeDays: 370,
			want:       0.10,
		},
		{
			name:       "empty strings do not score",
			in:         Inputs{InvoiceNumber: strPtr(""), Supplier: strPtr("")},
			maxAgeDays: 370,
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.in, tt.maxAgeDays, testNow)
			assert.InDelta(t, tt.want, got, 0.0001)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestDateWithinWindow(t *testing.T) {
	tests := []struct {
		name string
		iso  *string
		want bool
	}{
		{"nil date", nil, false},
		{"empty date", strPtr(""), false},
		{"unparseable date", strPtr("14.03.2024"), false},
		{"recent date", strPtr(testNow.AddDate(0, 0, -10).Format("2006-01-02")), true},
		{"boundary inside", strPtr(testNow.AddDate(0, 0, -369).Format("2006-01-02")), true},
		{"just outside", strPtr(testNow.AddDate(0, 0, -371).Format("2006-01-02")), false},
		{"future date is inside", strPtr(testNow.AddDate(0, 0, 30).Format("2006-01-02")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DateWithinWindow(tt.iso, 370, testNow))
		})
	}
}
