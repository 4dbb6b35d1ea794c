package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/model"
)

var (
	eurRe = regexp.MustCompile(`(?i)\bEUR\b|€`)
	usdRe = regexp.MustCompile(`(?i)\bUSD\b|\$`)
)

// Amounts holds the reconciled monetary fields of a document.
type Amounts struct {
	Gross    *float64
	Net      *float64
	Tax      *float64
	Currency *string
}

// ReconcileAmounts extracts gross/net/tax via the pattern set, infers the
// currency, and completes a single missing amount from the other two:
// gross = net + tax, net = gross - tax, tax = max(0, gross - net).
// No completion is attempted when two or more amounts are missing.
func ReconcileAmounts(text string, patterns *config.PatternSet) Amounts {
	a := Amounts{
		Gross: firstAmount(text, patterns.Field(config.FieldTotalGross)),
		Net:   firstAmount(text, patterns.Field(config.FieldTotalNet)),
		Tax:   firstAmount(text, patterns.Field(config.FieldTaxAmount)),
	}

	switch {
	case eurRe.MatchString(text):
		a.Currency = model.StringPtr("EUR")
	case usdRe.MatchString(text):
		a.Currency = model.StringPtr("USD")
	}

	switch {
	case a.Gross == nil && a.Net != nil && a.Tax != nil:
		a.Gross = model.FloatPtr(*a.Net + *a.Tax)
	case a.Net == nil && a.Gross != nil && a.Tax != nil:
		a.Net = model.FloatPtr(*a.Gross - *a.Tax)
	case a.Tax == nil && a.Gross != nil && a.Net != nil:
		tax := *a.Gross - *a.Net
		if tax < 0 {
			tax = 0
		}
		a.Tax = model.FloatPtr(tax)
	}

	return a
}

func firstAmount(text string, rules []config.Rule) *float64 {
	for _, rule := range rules {
		if raw, ok := rule.Find(text); ok {
			return ParseAmount(raw)
		}
	}
	return nil
}

// ParseAmount normalizes a localized numeric string. When both comma and dot
// are present the right-most separator is the decimal point and the other is
// discarded as a thousands separator; a lone comma is a decimal point.
// Unparseable input yields nil.
func ParseAmount(raw string) *float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if s == "" {
		return nil
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
