// Package engine wires the extraction, scoring, validation, fallback, and
// routing stages into the per-document pipeline and drives batches of
// documents through it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mhartmann/sortier/internal/cache"
	"github.com/mhartmann/sortier/internal/common"
	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/extract"
	"github.com/mhartmann/sortier/internal/fallback"
	"github.com/mhartmann/sortier/internal/model"
	"github.com/mhartmann/sortier/internal/route"
	"github.com/mhartmann/sortier/internal/score"
	"github.com/mhartmann/sortier/internal/stamp"
	"github.com/mhartmann/sortier/internal/validate"
)

// Deps are the pipeline's collaborators. Acquirer is required; Cache,
// Fallback, History, and Audit are optional and disable their stage when nil.
type Deps struct {
	Acquirer TextAcquirer
	Cache    *cache.Store
	Fallback *fallback.Merger
	Stamper  stamp.Stamper
	Audit    AuditSink
	History  History
	Now      func() time.Time
}

// Pipeline processes documents according to an immutable configuration and
// pattern set. It is safe for concurrent use across documents: the only
// shared mutable state is the cache store and the audit sink, which
// synchronize internally.
type Pipeline struct {
	cfg      *config.Config
	patterns *config.PatternSet
	router   *route.Router
	acquirer TextAcquirer
	cache    *cache.Store
	merger   *fallback.Merger
	stamper  stamp.Stamper
	auditLog AuditSink
	history  History
	now      func() time.Time
}

// New creates a pipeline.
func New(cfg *config.Config, patterns *config.PatternSet, deps Deps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	stamper := deps.Stamper
	if stamper == nil {
		stamper = stamp.CopyStamper{}
	}
	return &Pipeline{
		cfg:      cfg,
		patterns: patterns,
		router:   route.New(cfg.OutputDir, cfg.UnknownDirName, cfg.OutputFilenameFormat, cfg.DocumentExt),
		acquirer: deps.Acquirer,
		cache:    deps.Cache,
		merger:   deps.Fallback,
		stamper:  stamper,
		auditLog: deps.Audit,
		history:  deps.History,
		now:      now,
	}
}

// ProcessDocument runs one document through the full pipeline and returns
// its record. Extraction and validation never fail; the returned error is
// reserved for acquisition problems and routing/filesystem problems, both of
// which are still audited before they surface.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) (*model.ExtractedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	hash := cache.Fingerprint(data)
	now := p.now()

	if p.cfg.SkipDuplicates {
		if prev := p.previousRun(ctx, hash); prev != nil {
			return p.recordDuplicate(ctx, path, hash, prev, now), nil
		}
	}

	text, method, fromCache, err := p.acquireText(ctx, path, hash)
	if err != nil {
		return nil, err
	}

	rec := &model.ExtractedRecord{
		SourcePath:       path,
		ContentHash:      hash,
		ExtractionMethod: method,
	}

	// Supplier detection runs on the global hints; the effective pattern set
	// then carries the supplier profile's overrides for every other field.
	rec.Supplier = extract.Supplier(text, p.patterns)
	effective := p.patterns
	if rec.Supplier != nil {
		effective = p.patterns.ForSupplier(*rec.Supplier)
	}

	rec.InvoiceNumber = extract.InvoiceNumber(text, effective)
	rec.InvoiceDate = extract.Date(text, effective)
	amounts := extract.ReconcileAmounts(text, effective)
	rec.AmountGross = amounts.Gross
	rec.AmountNet = amounts.Net
	rec.AmountTax = amounts.Tax
	rec.Currency = amounts.Currency

	rec.Confidence = score.Confidence(score.Inputs{
		Text:          text,
		InvoiceNumber: rec.InvoiceNumber,
		InvoiceDate:   rec.InvoiceDate,
		Supplier:      rec.Supplier,
		AmountGross:   rec.AmountGross,
	}, p.cfg.Validation.MaxAgeDays, now)
	rec.ValidationStatus, rec.ValidationReason = validate.Record(rec.Fields(), effective, p.cfg.Validation, now)

	augmented := false
	if p.merger != nil {
		augmented = p.merger.MaybeAugment(ctx, rec, text, effective, p.cfg.Validation, now)
		if augmented {
			slog.Info("fallback service augmented record",
				"source", path,
				"status", rec.ValidationStatus,
				"confidence", rec.Confidence)
		}
	}

	// The metadata artifact carries the final fields, merge included, so the
	// cache is written last. Writes are best-effort: losing an entry only
	// costs a future re-acquisition.
	if p.cache != nil && (!fromCache || augmented) {
		entry := cache.Entry{Text: text, Method: method, Fields: rec.Fields()}
		if err := p.cache.Put(hash, entry); err != nil {
			slog.Warn("failed to write cache entry", "hash", hash, "error", err)
		}
	}

	if !p.cfg.DryRun {
		if err := p.place(ctx, rec, now); err != nil {
			// Routing/filesystem failures abort this document but are still
			// audited first.
			p.recordOutcome(ctx, rec, now)
			return rec, err
		}
	}

	p.recordOutcome(ctx, rec, now)

	slog.Info("processed document",
		"source", path,
		"status", rec.ValidationStatus,
		"confidence", rec.Confidence,
		"method", rec.ExtractionMethod)
	return rec, nil
}

// acquireText serves text from the cache when possible; a hit short-circuits
// acquisition only, never extraction or validation.
func (p *Pipeline) acquireText(ctx context.Context, path, hash string) (text string, method model.ExtractionMethod, fromCache bool, err error) {
	if p.cache != nil {
		if entry, ok := p.cache.Lookup(hash); ok {
			slog.Debug("cache hit", "hash", hash, "source", path)
			return entry.Text, entry.Method, true, nil
		}
	}
	text, method, err = p.acquirer.Acquire(ctx, path)
	if err != nil {
		return "", "", false, fmt.Errorf("failed to acquire text: %w", err)
	}
	return text, method, false, nil
}

func (p *Pipeline) previousRun(ctx context.Context, hash string) *model.AuditRow {
	if p.history == nil {
		return nil
	}
	prev, err := p.history.FindByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			slog.Warn("history lookup failed", "hash", hash, "error", err)
		}
		return nil
	}
	return prev
}

// recordDuplicate audits a document whose content hash was already processed
// without re-routing it.
func (p *Pipeline) recordDuplicate(ctx context.Context, path, hash string, prev *model.AuditRow, now time.Time) *model.ExtractedRecord {
	rec := &model.ExtractedRecord{
		SourcePath:       path,
		ContentHash:      hash,
		InvoiceNumber:    prev.InvoiceNumber,
		Supplier:         prev.Supplier,
		InvoiceDate:      prev.InvoiceDate,
		AmountGross:      prev.AmountGross,
		AmountNet:        prev.AmountNet,
		AmountTax:        prev.AmountTax,
		Currency:         prev.Currency,
		ExtractionMethod: model.MethodDuplicate,
		Confidence:       prev.Confidence,
		ValidationStatus: prev.ValidationStatus,
		ValidationReason: prev.ValidationReason,
	}
	p.recordOutcome(ctx, rec, now)
	slog.Info("duplicate detected, not re-routed", "source", path, "hash", hash)
	return rec
}

// place routes the document and writes it to its target, stamped when
// configured. A stamping failure degrades to copying the original bytes.
func (p *Pipeline) place(ctx context.Context, rec *model.ExtractedRecord, now time.Time) error {
	target, err := p.router.Route(rec, now)
	if err != nil {
		return err
	}
	rec.TargetPath = &target

	if p.cfg.Stamp {
		stampErr := p.stamper.Stamp(ctx, rec.SourcePath, target, rec.Fields())
		if stampErr == nil {
			return nil
		}
		slog.Warn("stamping failed, copying original bytes", "source", rec.SourcePath, "error", stampErr)
	}
	if err := stamp.CopyFile(rec.SourcePath, target); err != nil {
		return fmt.Errorf("failed to place document: %w", err)
	}
	return nil
}

// recordOutcome appends the audit row and the history row. Neither failure
// propagates past the pipeline boundary.
func (p *Pipeline) recordOutcome(ctx context.Context, rec *model.ExtractedRecord, now time.Time) {
	row := model.AuditRowFromRecord(rec, now)
	if p.auditLog != nil {
		if err := p.auditLog.Append(row); err != nil {
			slog.Error("failed to append audit row", "source", rec.SourcePath, "error", err)
		}
	}
	if p.history != nil {
		if err := p.history.RecordDocument(ctx, row); err != nil {
			slog.Error("failed to record history row", "source", rec.SourcePath, "error", err)
		}
	}
}

// RecordFailure audits a document that could not be processed at all.
func (p *Pipeline) RecordFailure(ctx context.Context, path string, cause error) {
	reason := cause.Error()
	rec := &model.ExtractedRecord{
		SourcePath:       path,
		ExtractionMethod: model.MethodNativeText,
		ValidationStatus: model.StatusFail,
		ValidationReason: &reason,
	}
	p.recordOutcome(ctx, rec, p.now())
}
