// Package export produces XLSX workbooks from the processing history for
// review outside the tool.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mhartmann/sortier/internal/model"
)

// HistorySource is the slice of the history store the exporter needs.
type HistorySource interface {
	RecentDocuments(ctx context.Context, limit int) ([]model.AuditRow, error)
}

// Service turns history rows into XLSX bytes.
type Service struct {
	history HistorySource
	logger  *slog.Logger
}

func NewService(history HistorySource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{history: history, logger: logger}
}

// ExportXLSX returns an XLSX workbook of the most recent limit documents,
// newest first, matching the audit CSV column order.
func (s *Service) ExportXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	rows, err := s.history.RecentDocuments(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop excelize's default sheet so the workbook opens on Documents.
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Processed At",
		"Source File",
		"Target File",
		"Invoice No",
		"Supplier",
		"Invoice Date",
		"Method",
		"Hash",
		"Confidence",
		"Validation Status",
		"Gross",
		"Net",
		"Tax",
		"Currency",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		rowNum := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowNum)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.ProcessedAt.Format("2006-01-02 15:04:05"))
		write(2, r.SourceFile)
		write(3, deref(r.TargetFile))
		write(4, deref(r.InvoiceNumber))
		write(5, deref(r.Supplier))
		write(6, deref(r.InvoiceDate))
		write(7, string(r.Method))
		write(8, r.ContentHash)
		write(9, r.Confidence)
		write(10, string(r.ValidationStatus))
		if r.AmountGross != nil {
			write(11, *r.AmountGross)
		}
		if r.AmountNet != nil {
			write(12, *r.AmountNet)
		}
		if r.AmountTax != nil {
			write(13, *r.AmountTax)
		}
		write(14, deref(r.Currency))
	}

	_ = f.SetColWidth(sheet, "A", "A", 20)
	_ = f.SetColWidth(sheet, "B", "C", 50)
	_ = f.SetColWidth(sheet, "D", "F", 16)
	_ = f.SetColWidth(sheet, "G", "G", 14)
	_ = f.SetColWidth(sheet, "H", "H", 18)
	_ = f.SetColWidth(sheet, "I", "N", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
