// Package storage provides the SQLite-backed processing history. The history
// powers cross-run duplicate detection and the reporting commands; the
// append-only CSV audit sink remains the canonical log.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/mhartmann/sortier/internal/common"
	"github.com/mhartmann/sortier/internal/model"
)

// HistoryStore records every processed document in SQLite.
type HistoryStore struct {
	db     *sql.DB
	dbPath string
}

// NewHistoryStore opens (and creates if needed) the history database.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: history database path", common.ErrMissingConfig)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &HistoryStore{db: db, dbPath: dbPath}, nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// RecordDocument inserts one processed-document row.
func (s *HistoryStore) RecordDocument(ctx context.Context, row model.AuditRow) error {
	processedAt := row.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (
			content_hash, source_path, target_path,
			invoice_no, supplier, invoice_date,
			gross, net, tax, currency,
			method, confidence, validation_status, validation_reason,
			processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.ContentHash,
		row.SourceFile,
		row.TargetFile,
		row.InvoiceNumber,
		row.Supplier,
		row.InvoiceDate,
		row.AmountGross,
		row.AmountNet,
		row.AmountTax,
		row.Currency,
		string(row.Method),
		row.Confidence,
		string(row.ValidationStatus),
		row.ValidationReason,
		processedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// FindByHash returns the most recent row for a content hash, or
// common.ErrNotFound when the hash has never been processed.
func (s *HistoryStore) FindByHash(ctx context.Context, hash string) (*model.AuditRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT content_hash, source_path, target_path,
		       invoice_no, supplier, invoice_date,
		       gross, net, tax, currency,
		       method, confidence, validation_status, validation_reason,
		       processed_at
		FROM documents
		WHERE content_hash = ?
		ORDER BY processed_at DESC, id DESC
		LIMIT 1
	`, hash)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: hash %s", common.ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document by hash: %w", err)
	}
	return doc, nil
}

// RecentDocuments returns up to limit rows, newest first.
func (s *HistoryStore) RecentDocuments(ctx context.Context, limit int) ([]model.AuditRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, source_path, target_path,
		       invoice_no, supplier, invoice_date,
		       gross, net, tax, currency,
		       method, confidence, validation_status, validation_reason,
		       processed_at
		FROM documents
		ORDER BY processed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.AuditRow
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*model.AuditRow, error) {
	var (
		doc            model.AuditRow
		method, status string
		processedAt    time.Time
	)
	err := sc.Scan(
		&doc.ContentHash,
		&doc.SourceFile,
		&doc.TargetFile,
		&doc.InvoiceNumber,
		&doc.Supplier,
		&doc.InvoiceDate,
		&doc.AmountGross,
		&doc.AmountNet,
		&doc.AmountTax,
		&doc.Currency,
		&method,
		&doc.Confidence,
		&status,
		&doc.ValidationReason,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Method = model.ExtractionMethod(method)
	doc.ValidationStatus = model.ValidationStatus(status)
	doc.ProcessedAt = processedAt
	return &doc, nil
}
