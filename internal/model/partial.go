package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PartialRecord holds the optional extracted fields of a document. It is the
// unit the fallback service returns and the unit merges operate on.
type PartialRecord struct {
	InvoiceNumber *string  `json:"invoice_no"`
	Supplier      *string  `json:"supplier"`
	InvoiceDate   *string  `json:"date"`
	AmountGross   *float64 `json:"gross"`
	AmountNet     *float64 `json:"net"`
	AmountTax     *float64 `json:"tax"`
	Currency      *string  `json:"currency"`
}

// Merge overlays patch onto base: a non-null patch field wins, a null or
// empty patch field keeps the base value. Returns the merged record and
// whether anything changed. Neither input is mutated.
func Merge(base, patch PartialRecord) (PartialRecord, bool) {
	merged := base
	if s := cleanString(patch.InvoiceNumber); s != nil {
		merged.InvoiceNumber = s
	}
	if s := cleanString(patch.Supplier); s != nil {
		merged.Supplier = s
	}
	if s := cleanString(patch.InvoiceDate); s != nil {
		merged.InvoiceDate = s
	}
	if patch.AmountGross != nil {
		merged.AmountGross = patch.AmountGross
	}
	if patch.AmountNet != nil {
		merged.AmountNet = patch.AmountNet
	}
	if patch.AmountTax != nil {
		merged.AmountTax = patch.AmountTax
	}
	if s := cleanString(patch.Currency); s != nil {
		merged.Currency = s
	}
	return merged, !equal(base, merged)
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func equal(a, b PartialRecord) bool {
	return eqStr(a.InvoiceNumber, b.InvoiceNumber) &&
		eqStr(a.Supplier, b.Supplier) &&
		eqStr(a.InvoiceDate, b.InvoiceDate) &&
		eqFloat(a.AmountGross, b.AmountGross) &&
		eqFloat(a.AmountNet, b.AmountNet) &&
		eqFloat(a.AmountTax, b.AmountTax) &&
		eqStr(a.Currency, b.Currency)
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// UnmarshalJSON accepts the loose shapes extraction services produce:
// amounts as JSON numbers or as strings with comma decimals, and "null"
// strings for absent fields.
func (p *PartialRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		InvoiceNumber *string         `json:"invoice_no"`
		Supplier      *string         `json:"supplier"`
		InvoiceDate   *string         `json:"date"`
		AmountGross   json.RawMessage `json:"gross"`
		AmountNet     json.RawMessage `json:"net"`
		AmountTax     json.RawMessage `json:"tax"`
		Currency      *string         `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.InvoiceNumber = cleanString(raw.InvoiceNumber)
	p.Supplier = cleanString(raw.Supplier)
	p.InvoiceDate = cleanString(raw.InvoiceDate)
	p.Currency = cleanString(raw.Currency)
	var err error
	if p.AmountGross, err = looseFloat(raw.AmountGross); err != nil {
		return fmt.Errorf("gross: %w", err)
	}
	if p.AmountNet, err = looseFloat(raw.AmountNet); err != nil {
		return fmt.Errorf("net: %w", err)
	}
	if p.AmountTax, err = looseFloat(raw.AmountTax); err != nil {
		return fmt.Errorf("tax: %w", err)
	}
	return nil
}

// looseFloat parses a JSON number, or a numeric string where a comma may
// stand for the decimal point. Unparseable values degrade to nil.
func looseFloat(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("neither number nor string: %s", raw)
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, nil
	}
	return &f, nil
}
