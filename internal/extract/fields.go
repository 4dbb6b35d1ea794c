// Package extract pulls structured invoice fields out of raw document text
// using ordered pattern lists. A field with no match yields nil, never an
// error; absent data degrades confidence downstream instead of failing here.
package extract

import (
	"strings"
	"time"

	"github.com/mhartmann/sortier/internal/config"
)

// dateLayouts are the accepted input formats for free-text dates, tried in
// order. First successful parse wins.
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
}

// InvoiceNumber returns the first invoice-number rule match, or nil.
func InvoiceNumber(text string, patterns *config.PatternSet) *string {
	return firstMatch(text, patterns.Field(config.FieldInvoiceNumber))
}

// Date returns the first matching date normalized to ISO 8601, or nil.
// Matches that parse under none of the accepted layouts are treated as
// absent, and the next rule is tried.
func Date(text string, patterns *config.PatternSet) *string {
	for _, rule := range patterns.Field(config.FieldDate) {
		raw, ok := rule.Find(text)
		if !ok {
			continue
		}
		if iso, ok := NormalizeDate(raw); ok {
			return &iso
		}
	}
	return nil
}

// NormalizeDate parses a free-text date into ISO 8601 (YYYY-MM-DD).
func NormalizeDate(raw string) (string, bool) {
	s := strings.NewReplacer(" ", "", "\n", "").Replace(strings.TrimSpace(raw))
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return "", false
}

// Supplier detects the supplier by counting keyword hits per configured
// supplier and picking the highest count. Ties keep the supplier that
// appears first in the configuration. Zero hits yields nil.
func Supplier(text string, patterns *config.PatternSet) *string {
	low := strings.ToLower(text)
	var best *string
	bestScore := 0
	for _, hint := range patterns.Hints() {
		score := 0
		for _, kw := range hint.Keywords {
			if kw != "" && strings.Contains(low, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			name := hint.Name
			best = &name
		}
	}
	return best
}

func firstMatch(text string, rules []config.Rule) *string {
	for _, rule := range rules {
		if v, ok := rule.Find(text); ok {
			v = strings.TrimSpace(v)
			return &v
		}
	}
	return nil
}
