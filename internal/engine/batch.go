package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mhartmann/sortier/internal/model"
)

// BatchStats summarizes one batch run.
type BatchStats struct {
	Processed   int
	OK          int
	NeedsReview int
	Failed      int
	Duplicates  int
}

// Run processes documents in order. Cancellation is cooperative: the stop
// flag and the context are checked before each document, never mid-document,
// so a document that has started always finishes. One document's failure is
// recorded and does not halt the batch.
func (p *Pipeline) Run(ctx context.Context, docs []string, stopRequested func() bool, onProgress ProgressFunc) BatchStats {
	var stats BatchStats
	total := len(docs)

	for i, path := range docs {
		if ctx.Err() != nil || (stopRequested != nil && stopRequested()) {
			slog.Info("stop requested, ending batch",
				"processed", stats.Processed,
				"remaining", total-i)
			break
		}

		rec, err := p.ProcessDocument(ctx, path)
		if err != nil {
			slog.Error("document failed", "source", path, "error", err)
			if rec == nil {
				p.RecordFailure(ctx, path, err)
			}
			stats.Processed++
			stats.Failed++
			if onProgress != nil {
				onProgress(i+1, total, filepath.Base(path), rec, err)
			}
			continue
		}

		stats.Processed++
		switch {
		case rec.ExtractionMethod == model.MethodDuplicate:
			stats.Duplicates++
		case rec.ValidationStatus == model.StatusOK:
			stats.OK++
		case rec.ValidationStatus == model.StatusNeedsReview:
			stats.NeedsReview++
		default:
			stats.Failed++
		}
		if onProgress != nil {
			onProgress(i+1, total, filepath.Base(path), rec, nil)
		}
	}

	return stats
}

// DiscoverDocuments lists documents under root with the given extension,
// case-insensitively, in lexical order so batches are deterministic.
func DiscoverDocuments(root, ext string) ([]string, error) {
	ext = strings.ToLower(ext)
	var docs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ext {
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}
	sort.Strings(docs)
	return docs, nil
}
