// Package validate implements the rule-based validation state machine.
//
// Outcomes form a closed set: ok, needs_review, fail. Rules are evaluated in
// a fixed order and the first matching rule decides the outcome.
package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/model"
	"github.com/mhartmann/sortier/internal/score"
)

// Record judges the extracted fields against the policy and the supplier
// whitelist of the effective pattern set.
//
// Rule order is contractual:
//  1. date absent or outside the recency window        -> fail
//  2. supplier whitelist exists and number fails it    -> fail
//  3. amounts complete and sum inconsistent            -> fail
//  4. amounts complete and implied tax rate unusual    -> needs_review
//  5. invoice number or supplier absent                -> needs_review
//  6. otherwise                                        -> ok
//
// Rules 3-4 are skipped entirely unless all three amounts are present.
func Record(fields model.PartialRecord, patterns *config.PatternSet, policy config.ValidationConfig, now time.Time) (model.ValidationStatus, *string) {
	// The date check is unconditional and runs before any other rule. It is
	// disabled only in archive mode (MaxAgeDays <= 0).
	if policy.MaxAgeDays > 0 && !score.DateWithinWindow(fields.InvoiceDate, policy.MaxAgeDays, now) {
		return model.StatusFail, reasonf("date not plausible (older than %d days)", policy.MaxAgeDays)
	}

	if fields.Supplier != nil {
		if rules := patterns.Whitelist(*fields.Supplier); len(rules) > 0 {
			if !matchesAny(fields.InvoiceNumber, rules) {
				return model.StatusFail, reasonf("whitelist rule violated (supplier=%s)", *fields.Supplier)
			}
		}
	}

	if fields.AmountGross != nil && fields.AmountNet != nil && fields.AmountTax != nil {
		gross, net, tax := *fields.AmountGross, *fields.AmountNet, *fields.AmountTax
		if math.Abs(net+tax-gross) > policy.AmountTolerance {
			return model.StatusFail, reasonf("amount sum inconsistent (net + tax != gross)")
		}
		if net > 0 {
			rate := (gross - net) / net
			if !nearAnyRate(rate, policy.TaxRates, policy.TaxRateTolerance) {
				return model.StatusNeedsReview, reasonf("unusual tax rate (~%.1f%%)", rate*100)
			}
		}
	}

	if fields.InvoiceNumber == nil || fields.Supplier == nil {
		return model.StatusNeedsReview, reasonf("incomplete fields")
	}

	return model.StatusOK, nil
}

func matchesAny(invoiceNumber *string, rules []config.Rule) bool {
	if invoiceNumber == nil {
		return false
	}
	for _, rule := range rules {
		if rule.Matches(*invoiceNumber) {
			return true
		}
	}
	return false
}

func nearAnyRate(rate float64, expected []float64, tolerance float64) bool {
	for _, r := range expected {
		if math.Abs(rate-r) <= tolerance {
			return true
		}
	}
	return len(expected) == 0
}

func reasonf(format string, args ...any) *string {
	s := fmt.Sprintf(format, args...)
	return &s
}
