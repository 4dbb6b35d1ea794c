package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/model"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

// fakeClient scripts the external service for merger tests.
type fakeClient struct {
	available bool
	partial   model.PartialRecord
	err       error
	calls     int
}

func (f *fakeClient) Available(_ context.Context) bool { return f.available }

func (f *fakeClient) Extract(_ context.Context, _ string) (model.PartialRecord, error) {
	f.calls++
	return f.partial, f.err
}

func TestShouldTrigger(t *testing.T) {
	tests := []struct {
		name       string
		trigger    string
		status     model.ValidationStatus
		confidence float64
		want       bool
	}{
		{"always triggers on ok", TriggerAlways, model.StatusOK, 0.9, true},
		{"always triggers on fail", TriggerAlways, model.StatusFail, 0.9, true},
		{"on_fail skips ok", TriggerOnFail, model.StatusOK, 0.1, false},
		{"on_fail skips needs_review", TriggerOnFail, model.StatusNeedsReview, 0.1, false},
		{"on_fail triggers on fail", TriggerOnFail, model.StatusFail, 0.9, true},
		{"on_low_conf triggers on non-ok", TriggerOnLowConf, model.StatusNeedsReview, 0.9, true},
		{"on_low_conf triggers below threshold", TriggerOnLowConf, model.StatusOK, 0.5, true},
		{"on_low_conf skips confident ok", TriggerOnLowConf, model.StatusOK, 0.8, false},
		{"unknown trigger never fires", "sometimes", model.StatusFail, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldTrigger(tt.trigger, tt.status, tt.confidence, 0.65)
			assert.Equal(t, tt.want, got)
		})
	}
}

func mergerWith(client Client, trigger string) *Merger {
	return NewMerger(client, config.FallbackConfig{
		Trigger:             trigger,
		ConfidenceThreshold: 0.65,
	})
}

func lowConfRecord() *model.ExtractedRecord {
	return &model.ExtractedRecord{
		SourcePath:       "in/scan.pdf",
		Supplier:         model.StringPtr("acme"),
		ExtractionMethod: model.MethodOptical,
		Confidence:       0.2,
		ValidationStatus: model.StatusNeedsReview,
		ValidationReason: model.StringPtr("incomplete fields"),
	}
}

func testPolicy() config.ValidationConfig {
	return config.ValidationConfig{
		MaxAgeDays:       370,
		AmountTolerance:  0.02,
		TaxRates:         []float64{0.19, 0.07},
		TaxRateTolerance: 0.03,
	}
}

func emptyPatterns(t *testing.T) *config.PatternSet {
	t.Helper()
	ps, err := config.NewPatternSet(config.Spec{})
	require.NoError(t, err)
	return ps
}

func TestMaybeAugmentFillsGapsAndRevalidates(t *testing.T) {
	date := testNow.AddDate(0, -1, 0).Format("2006-01-02")
	client := &fakeClient{
		available: true,
		partial: model.PartialRecord{
			InvoiceNumber: model.StringPtr("RE-7"),
			InvoiceDate:   model.StringPtr(date),
		},
	}
	m := mergerWith(client, TriggerOnLowConf)
	rec := lowConfRecord()

	changed := m.MaybeAugment(context.Background(), rec, "some text", emptyPatterns(t), testPolicy(), testNow)

	assert.True(t, changed)
	require.NotNil(t, rec.InvoiceNumber)
	assert.Equal(t, "RE-7", *rec.InvoiceNumber)
	assert.Equal(t, "acme", *rec.Supplier) // untouched base field
	assert.Equal(t, model.MethodFallback, rec.ExtractionMethod)
	// Re-validation promotes the record now that fields are complete.
	assert.Equal(t, model.StatusOK, rec.ValidationStatus)
	assert.Nil(t, rec.ValidationReason)
	assert.Greater(t, rec.Confidence, 0.2)
}

func TestMaybeAugmentSkipsWhenNotTriggered(t *testing.T) {
	client := &fakeClient{available: true}
	m := mergerWith(client, TriggerOnFail)
	rec := lowConfRecord() // needs_review, not fail

	changed := m.MaybeAugment(context.Background(), rec, "text", emptyPatterns(t), testPolicy(), testNow)

	assert.False(t, changed)
	assert.Zero(t, client.calls)
	assert.Equal(t, model.MethodOptical, rec.ExtractionMethod)
}

func TestMaybeAugmentSkipsWhenUnreachable(t *testing.T) {
	client := &fakeClient{available: false}
	m := mergerWith(client, TriggerAlways)
	rec := lowConfRecord()
	before := *rec

	changed := m.MaybeAugment(context.Background(), rec, "text", emptyPatterns(t), testPolicy(), testNow)

	assert.False(t, changed)
	assert.Zero(t, client.calls)
	assert.Equal(t, before, *rec)
}

func TestMaybeAugmentDiscardsServiceError(t *testing.T) {
	client := &fakeClient{available: true, err: errors.New("boom")}
	m := mergerWith(client, TriggerAlways)
	rec := lowConfRecord()
	before := *rec

	changed := m.MaybeAugment(context.Background(), rec, "text", emptyPatterns(t), testPolicy(), testNow)

	assert.False(t, changed)
	assert.Equal(t, before, *rec)
}

func TestMaybeAugmentNoChangeKeepsMethod(t *testing.T) {
	client := &fakeClient{
		available: true,
		partial:   model.PartialRecord{Supplier: model.StringPtr("acme")}, // same as base
	}
	m := mergerWith(client, TriggerAlways)
	rec := lowConfRecord()

	changed := m.MaybeAugment(context.Background(), rec, "text", emptyPatterns(t), testPolicy(), testNow)

	assert.False(t, changed)
	assert.Equal(t, model.MethodOptical, rec.ExtractionMethod)
}

func TestMaybeAugmentNilMerger(t *testing.T) {
	var m *Merger
	rec := lowConfRecord()
	assert.False(t, m.MaybeAugment(context.Background(), rec, "text", nil, testPolicy(), testNow))
}
