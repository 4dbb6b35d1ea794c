// Package score computes the extraction confidence heuristic.
package score

import "time"

// Additive weights. Each contributes only when its input is present/valid.
const (
	weightInvoiceNumber = 0.35
	weightRecentDate    = 0.25
	weightAnyDate       = 0.20 // archive mode: freshness not required
	weightSupplier      = 0.20
	weightTextLength    = 0.10
	weightGross         = 0.10

	minTextLen = 200
)

// Inputs are the scored extraction signals.
type Inputs struct {
	Text          string
	InvoiceNumber *string
	InvoiceDate   *string // ISO 8601
	Supplier      *string
	AmountGross   *float64
}

// Confidence computes a weighted completeness score in [0,1].
//
// This is a heuristic completeness proxy, not a statistical confidence
// interval: it measures how many useful fields the extraction produced, not
// the probability that they are correct. Callers must not treat it as a
// calibrated probability.
//
// maxAgeDays is the recency window; a value <= 0 disables the freshness
// requirement and a present date then scores weightAnyDate.
func Confidence(in Inputs, maxAgeDays int, now time.Time) float64 {
	s := 0.0
	if in.InvoiceNumber != nil && *in.InvoiceNumber != "" {
		s += weightInvoiceNumber
	}
	if maxAgeDays > 0 {
		if DateWithinWindow(in.InvoiceDate, maxAgeDays, now) {
			s += weightRecentDate
		}
	} else if in.InvoiceDate != nil && *in.InvoiceDate != "" {
		s += weightAnyDate
	}
	if in.Supplier != nil && *in.Supplier != "" {
		s += weightSupplier
	}
	if len(in.Text) > minTextLen {
		s += weightTextLength
	}
	if in.AmountGross != nil {
		s += weightGross
	}

	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// DateWithinWindow reports whether an ISO date is present, parseable, and at
// most maxAgeDays before now. Future dates are within the window.
func DateWithinWindow(iso *string, maxAgeDays int, now time.Time) bool {
	if iso == nil || *iso == "" {
		return false
	}
	d, err := time.Parse("2006-01-02", *iso)
	if err != nil {
		return false
	}
	age := now.Sub(d) / (24 * time.Hour)
	return int(age) <= maxAgeDays
}
