package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/model"
	"github.com/mhartmann/sortier/internal/score"
	"github.com/mhartmann/sortier/internal/validate"
)

// Trigger policies controlling when the service is consulted.
const (
	TriggerAlways    = "always"
	TriggerOnFail    = "on_fail"
	TriggerOnLowConf = "on_low_conf"
)

// ShouldTrigger decides whether the current outcome warrants a fallback call.
func ShouldTrigger(trigger string, status model.ValidationStatus, confidence, threshold float64) bool {
	switch trigger {
	case TriggerAlways:
		return true
	case TriggerOnFail:
		return status == model.StatusFail
	case TriggerOnLowConf:
		return status != model.StatusOK || confidence < threshold
	}
	return false
}

// Merger runs the conditional fallback-and-merge protocol.
type Merger struct {
	client    Client
	trigger   string
	threshold float64
}

// NewMerger wires a client with its trigger policy. A nil client disables
// augmentation entirely.
func NewMerger(client Client, cfg config.FallbackConfig) *Merger {
	trigger := cfg.Trigger
	if trigger == "" {
		trigger = TriggerOnLowConf
	}
	return &Merger{client: client, trigger: trigger, threshold: cfg.ConfidenceThreshold}
}

// MaybeAugment consults the external service when policy and liveness allow,
// merges returned fields into the record (fill gaps, overwrite non-null,
// never blank out), and recomputes confidence and validation from scratch.
// The extraction method flips to fallback-service only if the merge actually
// changed a field. Every service failure leaves the record untouched.
// Returns whether the record changed.
func (m *Merger) MaybeAugment(ctx context.Context, rec *model.ExtractedRecord, rawText string, patterns *config.PatternSet, policy config.ValidationConfig, now time.Time) bool {
	if m == nil || m.client == nil {
		return false
	}
	if !ShouldTrigger(m.trigger, rec.ValidationStatus, rec.Confidence, m.threshold) {
		return false
	}
	if !m.client.Available(ctx) {
		slog.Debug("fallback service unreachable, skipping augmentation", "source", rec.SourcePath)
		return false
	}

	partial, err := m.client.Extract(ctx, rawText)
	if err != nil {
		slog.Warn("fallback extraction discarded", "source", rec.SourcePath, "error", err)
		return false
	}

	merged, changed := model.Merge(rec.Fields(), partial)
	if !changed {
		return false
	}
	rec.ApplyFields(merged)

	// The merge never bypasses validation: score and status are recomputed
	// over the merged fields exactly as in the first pass.
	rec.Confidence = score.Confidence(score.Inputs{
		Text:          rawText,
		InvoiceNumber: rec.InvoiceNumber,
		InvoiceDate:   rec.InvoiceDate,
		Supplier:      rec.Supplier,
		AmountGross:   rec.AmountGross,
	}, policy.MaxAgeDays, now)
	rec.ValidationStatus, rec.ValidationReason = validate.Record(rec.Fields(), patterns, policy, now)
	rec.ExtractionMethod = model.MethodFallback

	return true
}
