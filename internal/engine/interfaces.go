package engine

import (
	"context"

	"github.com/mhartmann/sortier/internal/model"
)

// TextAcquirer obtains document text from a source file. Implementations may
// consult their own configuration (OCR engine path, languages) not owned by
// the pipeline.
type TextAcquirer interface {
	Acquire(ctx context.Context, path string) (string, model.ExtractionMethod, error)
}

// AuditSink receives one row per processed document.
type AuditSink interface {
	Append(row model.AuditRow) error
}

// History is the durable processing record used for cross-run duplicate
// detection.
type History interface {
	RecordDocument(ctx context.Context, row model.AuditRow) error
	FindByHash(ctx context.Context, hash string) (*model.AuditRow, error)
}

// ProgressFunc is called after every document, success or failure. Exactly
// one of rec and err is meaningful: err is nil on success.
type ProgressFunc func(index, total int, filename string, rec *model.ExtractedRecord, err error)
