package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/sortier/internal/config"
)

func amountPatterns(t *testing.T) *config.PatternSet {
	t.Helper()
	return mustPatterns(t, config.Spec{
		TotalGrossPatterns: []string{`Gesamtbetrag[:\s]*([\d.,]+)`},
		TotalNetPatterns:   []string{`Netto[:\s]*([\d.,]+)`},
		TaxAmountPatterns:  []string{`MwSt[.:\s]*([\d.,]+)`},
	})
}

func TestReconcileAmounts(t *testing.T) {
	ps := amountPatterns(t)

	t.Run("all three extracted", func(t *testing.T) {
		a := ReconcileAmounts("Netto: 100,00\nMwSt: 19,00\nGesamtbetrag: 119,00 EUR", ps)
		require.NotNil(t, a.Gross)
		require.NotNil(t, a.Net)
		require.NotNil(t, a.Tax)
		assert.InDelta(t, 119.00, *a.Gross, 0.001)
		assert.InDelta(t, 100.00, *a.Net, 0.001)
		assert.InDelta(t, 19.00, *a.Tax, 0.001)
		require.NotNil(t, a.Currency)
		assert.Equal(t, "EUR", *a.Currency)
	})

	t.Run("missing tax completed from gross and net", func(t *testing.T) {
		a := ReconcileAmounts("Netto: 100,00\nGesamtbetrag: 119,00", ps)
		require.NotNil(t, a.Tax)
		assert.InDelta(t, 19.00, *a.Tax, 0.001)
	})

	t.Run("missing gross completed from net and tax", func(t *testing.T) {
		a := ReconcileAmounts("Netto: 100,00\nMwSt: 19,00", ps)
		require.NotNil(t, a.Gross)
		assert.InDelta(t, 119.00, *a.Gross, 0.001)
	})

	t.Run("missing net completed from gross and tax", func(t *testing.T) {
		a := ReconcileAmounts("Gesamtbetrag: 119,00\nMwSt: 19,00", ps)
		require.NotNil(t, a.Net)
		assert.InDelta(t, 100.00, *a.Net, 0.001)
	})

	t.Run("negative tax clamps to zero", func(t *testing.T) {
		a := ReconcileAmounts("Gesamtbetrag: 90,00\nNetto: 100,00", ps)
		require.NotNil(t, a.Tax)
		assert.Zero(t, *a.Tax)
	})

	t.Run("two missing amounts stay missing", func(t *testing.T) {
		a := ReconcileAmounts("Gesamtbetrag: 119,00", ps)
		assert.Nil(t, a.Net)
		assert.Nil(t, a.Tax)
		require.NotNil(t, a.Gross)
	})

	t.Run("currency from symbol", func(t *testing.T) {
		a := ReconcileAmounts("Total $ 99", ps)
		require.NotNil(t, a.Currency)
		assert.Equal(t, "USD", *a.Currency)
	})

	t.Run("no currency markers", func(t *testing.T) {
		a := ReconcileAmounts("Gesamtbetrag: 119,00", ps)
		assert.Nil(t, a.Currency)
	})
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"1.234,56", f(1234.56)},  // German thousands + comma decimal
		{"1,234.56", f(1234.56)},  // English thousands + dot decimal
		{"119,00", f(119.00)},     // lone comma is decimal
		{"119.00", f(119.00)},     // lone dot is decimal
		{"1234", f(1234)},         // plain integer
		{" 42,5 ", f(42.5)},       // surrounding whitespace
		{"12 345,67", f(12345.67)}, // inner spaces dropped
		{"", nil},
		{"abc", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseAmount(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func f(v float64) *float64 { return &v }
