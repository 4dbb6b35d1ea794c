// Package route decides where a processed document lands in the output
// hierarchy and under what name.
package route

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mhartmann/sortier/internal/model"
)

// DefaultFilenameFormat names output files by date and supplier.
const DefaultFilenameFormat = "{date}_{supplier}_Re-{date}"

const maxSafeNameLen = 100
const maxFilenameLen = 180

var (
	unsafeNameRe  = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)
	unsafeFileRe  = regexp.MustCompile(`[\\/:*?"<>|]+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	placeholderRe = regexp.MustCompile(`\{[a-z_]+\}`)
)

// Router builds deterministic, collision-safe target paths.
type Router struct {
	OutputRoot     string
	UnknownDirName string
	FilenameFormat string
	Ext            string
}

// New creates a router for the given output root.
func New(outputRoot, unknownDirName, filenameFormat, ext string) *Router {
	if unknownDirName == "" {
		unknownDirName = "unknown"
	}
	if filenameFormat == "" {
		filenameFormat = DefaultFilenameFormat
	}
	if ext == "" {
		ext = ".pdf"
	}
	return &Router{
		OutputRoot:     outputRoot,
		UnknownDirName: unknownDirName,
		FilenameFormat: filenameFormat,
		Ext:            ext,
	}
}

// Route returns the target path for a record and creates the destination
// directory. The directory depends only on the validation outcome:
// ok -> {root}/{year}/{supplier}, needs_review -> {root}/review,
// fail -> {root}/{unknown}. If the computed path already exists, a _1, _2, …
// suffix is appended before the extension until a free path is found.
func (r *Router) Route(rec *model.ExtractedRecord, now time.Time) (string, error) {
	var dir string
	switch rec.ValidationStatus {
	case model.StatusOK:
		dir = filepath.Join(r.OutputRoot, rec.InvoiceYear(now), SafeName(deref(rec.Supplier)))
	case model.StatusNeedsReview:
		dir = filepath.Join(r.OutputRoot, "review")
	default:
		dir = filepath.Join(r.OutputRoot, r.UnknownDirName)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create target directory: %w", err)
	}

	name := r.filename(rec, now)
	return resolveCollision(filepath.Join(dir, name)), nil
}

// filename renders the configured format with the record's metadata and
// sanitizes the result for the filesystem.
func (r *Router) filename(rec *model.ExtractedRecord, now time.Time) string {
	date := "0000-00-00"
	if rec.InvoiceDate != nil {
		date = *rec.InvoiceDate
	}
	base := strings.TrimSuffix(filepath.Base(rec.SourcePath), filepath.Ext(rec.SourcePath))

	meta := map[string]string{
		"date":          date,
		"year":          rec.InvoiceYear(now),
		"supplier":      SafeName(deref(rec.Supplier)),
		"invoice_no":    SafeName(deref(rec.InvoiceNumber)),
		"status":        string(rec.ValidationStatus),
		"method":        string(rec.ExtractionMethod),
		"confidence":    fmt.Sprintf("%.2f", rec.Confidence),
		"currency":      deref(rec.Currency),
		"hash":          rec.ContentHash,
		"hash_short":    shortHash(rec.ContentHash),
		"original_name": SafeName(base),
	}

	rendered := placeholderRe.ReplaceAllStringFunc(r.FilenameFormat, func(ph string) string {
		return meta[strings.Trim(ph, "{}")]
	})

	rendered = sanitizeFilename(rendered)
	if !strings.HasSuffix(strings.ToLower(rendered), strings.ToLower(r.Ext)) {
		rendered += r.Ext
	}
	return rendered
}

// resolveCollision appends _1, _2, … before the extension until the path is
// free. Existing files are never overwritten silently.
func resolveCollision(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// SafeName strips a string down to a filesystem-safe character set,
// truncates it, and defaults empty input to "unknown".
func SafeName(s string) string {
	if s == "" {
		s = "unknown"
	}
	s = unsafeNameRe.ReplaceAllString(s, "_")
	if len(s) > maxSafeNameLen {
		s = s[:maxSafeNameLen]
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = unsafeFileRe.ReplaceAllString(name, "_")
	name = strings.TrimSpace(whitespaceRe.ReplaceAllString(name, " "))
	if name == "" {
		return "output"
	}
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	return name
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
