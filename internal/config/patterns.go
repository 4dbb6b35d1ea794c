package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field names a pattern list can be registered under.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldDate          = "date"
	FieldTotalGross    = "total_gross"
	FieldTotalNet      = "total_net"
	FieldTaxAmount     = "tax_amount"
)

// Rule is one compiled extraction rule. Matching is case-insensitive and
// multiline; the first capture group wins when present.
type Rule struct {
	Expr string
	re   *regexp.Regexp
}

// CompileRule compiles an extraction rule expression.
func CompileRule(expr string) (Rule, error) {
	re, err := regexp.Compile("(?im)" + expr)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Rule{Expr: expr, re: re}, nil
}

// Find returns the rule's match in text: the first capture group if the rule
// defines one and it matched non-empty, otherwise the whole match.
func (r Rule) Find(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if len(m) > 1 && m[1] != "" {
		return m[1], true
	}
	return m[0], true
}

// Matches reports whether the rule matches text at all.
func (r Rule) Matches(text string) bool {
	return r.re.MatchString(text)
}

// SupplierHint is one supplier's keyword list, in configuration order.
type SupplierHint struct {
	Name     string
	Keywords []string
}

// Spec is the raw, uncompiled shape of a pattern set or supplier profile.
// It mirrors the YAML file layout.
type Spec struct {
	InvoiceNumberPatterns []string        `yaml:"invoice_number_patterns"`
	DatePatterns          []string        `yaml:"date_patterns"`
	TotalGrossPatterns    []string        `yaml:"total_gross_patterns"`
	TotalNetPatterns      []string        `yaml:"total_net_patterns"`
	TaxAmountPatterns     []string        `yaml:"tax_amount_patterns"`
	SupplierHints         yaml.Node       `yaml:"supplier_hints"`
	Whitelist             WhitelistSpec   `yaml:"whitelist"`
	Profiles              map[string]Spec `yaml:"-"`

	// OrderedHints lets callers construct a Spec in code without building a
	// yaml.Node. Takes precedence over SupplierHints when non-empty.
	OrderedHints []SupplierHint `yaml:"-"`
}

// WhitelistSpec is the raw per-supplier invoice-number whitelist.
type WhitelistSpec struct {
	InvoiceNumbers map[string][]string `yaml:"invoice_numbers"`
}

// PatternSet is the compiled, immutable extraction configuration shared
// read-only across a batch run.
type PatternSet struct {
	fields     map[string][]Rule
	hints      []SupplierHint
	whitelists map[string][]Rule
	profiles   map[string]*SupplierProfile
}

// SupplierProfile is a named override bundle tried before the global rules.
type SupplierProfile struct {
	fields     map[string][]Rule
	whitelists map[string][]Rule
}

// NewPatternSet compiles a Spec (plus supplier profile specs) into a PatternSet.
func NewPatternSet(spec Spec) (*PatternSet, error) {
	fields, err := compileFields(spec)
	if err != nil {
		return nil, err
	}
	wl, err := compileWhitelists(spec.Whitelist.InvoiceNumbers)
	if err != nil {
		return nil, err
	}
	hints := spec.OrderedHints
	if len(hints) == 0 {
		hints, err = decodeHints(spec.SupplierHints)
		if err != nil {
			return nil, err
		}
	}

	ps := &PatternSet{
		fields:     fields,
		hints:      hints,
		whitelists: wl,
		profiles:   make(map[string]*SupplierProfile, len(spec.Profiles)),
	}
	for name, prof := range spec.Profiles {
		pf, err := compileFields(prof)
		if err != nil {
			return nil, fmt.Errorf("supplier profile %q: %w", name, err)
		}
		pw, err := compileWhitelists(prof.Whitelist.InvoiceNumbers)
		if err != nil {
			return nil, fmt.Errorf("supplier profile %q: %w", name, err)
		}
		ps.profiles[name] = &SupplierProfile{fields: pf, whitelists: pw}
	}
	return ps, nil
}

// LoadPatterns reads the base pattern file and any per-supplier profile files
// from a "suppliers" directory next to it.
func LoadPatterns(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file: %w", err)
	}

	spec.Profiles = make(map[string]Spec)
	supDir := filepath.Join(filepath.Dir(path), "suppliers")
	entries, err := os.ReadDir(supDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(supDir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("failed to read supplier profile %s: %w", entry.Name(), err)
			}
			var prof Spec
			if err := yaml.Unmarshal(raw, &prof); err != nil {
				return nil, fmt.Errorf("failed to parse supplier profile %s: %w", entry.Name(), err)
			}
			name := strings.TrimSuffix(entry.Name(), ".yaml")
			spec.Profiles[name] = prof
		}
	}

	return NewPatternSet(spec)
}

// Field returns the ordered rule list for a field.
func (p *PatternSet) Field(name string) []Rule {
	return p.fields[name]
}

// Whitelist returns the invoice-number whitelist rules for a supplier, or nil.
func (p *PatternSet) Whitelist(supplier string) []Rule {
	return p.whitelists[supplier]
}

// Hints returns the supplier keyword lists in configuration order.
func (p *PatternSet) Hints() []SupplierHint {
	return p.hints
}

// ForSupplier returns the effective pattern set for a detected supplier: the
// supplier profile's rules are prepended to the global lists, so they win
// under first-match-wins, and its whitelist entries override the global ones.
// The receiver is not modified. Without a matching profile the receiver
// itself is returned.
func (p *PatternSet) ForSupplier(supplier string) *PatternSet {
	prof, ok := p.profiles[supplier]
	if !ok {
		return p
	}

	merged := &PatternSet{
		fields:     make(map[string][]Rule, len(p.fields)),
		hints:      p.hints,
		whitelists: make(map[string][]Rule, len(p.whitelists)),
		profiles:   p.profiles,
	}
	for name, rules := range p.fields {
		merged.fields[name] = append(append([]Rule{}, prof.fields[name]...), rules...)
	}
	for name, rules := range prof.fields {
		if _, seen := p.fields[name]; !seen {
			merged.fields[name] = append([]Rule{}, rules...)
		}
	}
	for name, rules := range p.whitelists {
		merged.whitelists[name] = rules
	}
	for name, rules := range prof.whitelists {
		merged.whitelists[name] = rules
	}
	return merged
}

func compileFields(spec Spec) (map[string][]Rule, error) {
	lists := map[string][]string{
		FieldInvoiceNumber: spec.InvoiceNumberPatterns,
		FieldDate:          spec.DatePatterns,
		FieldTotalGross:    spec.TotalGrossPatterns,
		FieldTotalNet:      spec.TotalNetPatterns,
		FieldTaxAmount:     spec.TaxAmountPatterns,
	}
	fields := make(map[string][]Rule, len(lists))
	for name, exprs := range lists {
		if len(exprs) == 0 {
			continue
		}
		rules := make([]Rule, 0, len(exprs))
		for _, expr := range exprs {
			rule, err := CompileRule(expr)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			rules = append(rules, rule)
		}
		fields[name] = rules
	}
	return fields, nil
}

func compileWhitelists(raw map[string][]string) (map[string][]Rule, error) {
	wl := make(map[string][]Rule, len(raw))
	for supplier, exprs := range raw {
		rules := make([]Rule, 0, len(exprs))
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("whitelist for %s: %w", supplier, err)
			}
			rules = append(rules, Rule{Expr: expr, re: re})
		}
		wl[supplier] = rules
	}
	return wl, nil
}

// decodeHints unpacks the supplier_hints mapping while preserving document
// order, which breaks keyword-score ties deterministically.
func decodeHints(node yaml.Node) ([]SupplierHint, error) {
	if node.Kind == 0 || node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("supplier_hints must be a mapping")
	}
	hints := make([]SupplierHint, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var keywords []string
		if err := node.Content[i+1].Decode(&keywords); err != nil {
			return nil, fmt.Errorf("supplier_hints[%s]: %w", node.Content[i].Value, err)
		}
		hints = append(hints, SupplierHint{Name: node.Content[i].Value, Keywords: keywords})
	}
	return hints, nil
}
