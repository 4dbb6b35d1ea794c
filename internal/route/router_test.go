package route

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/sortier/internal/model"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func okRecord() *model.ExtractedRecord {
	return &model.ExtractedRecord{
		SourcePath:       "in/scan.pdf",
		InvoiceNumber:    model.StringPtr("RE-1"),
		Supplier:         model.StringPtr("acme"),
		InvoiceDate:      model.StringPtr("2024-03-14"),
		ExtractionMethod: model.MethodNativeText,
		ContentHash:      strings.Repeat("ab", 32),
		Confidence:       0.9,
		ValidationStatus: model.StatusOK,
	}
}

func TestRouteByStatus(t *testing.T) {
	root := t.TempDir()
	r := New(root, "unknown", "", ".pdf")

	t.Run("ok goes to year and supplier", func(t *testing.T) {
		target, err := r.Route(okRecord(), testNow)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "2024", "acme"), filepath.Dir(target))
		assert.Equal(t, "2024-03-14_acme_Re-2024-03-14.pdf", filepath.Base(target))
	})

	t.Run("needs_review goes to review", func(t *testing.T) {
		rec := okRecord()
		rec.ValidationStatus = model.StatusNeedsReview
		rec.ValidationReason = model.StringPtr("incomplete fields")
		target, err := r.Route(rec, testNow)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "review"), filepath.Dir(target))
	})

	t.Run("fail goes to unknown dir", func(t *testing.T) {
		rec := okRecord()
		rec.ValidationStatus = model.StatusFail
		rec.ValidationReason = model.StringPtr("date not plausible")
		target, err := r.Route(rec, testNow)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "unknown"), filepath.Dir(target))
	})

	t.Run("missing date falls back to current year", func(t *testing.T) {
		rec := okRecord()
		rec.InvoiceDate = nil
		target, err := r.Route(rec, testNow)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "2026", "acme"), filepath.Dir(target))
	})

	t.Run("target directory is created", func(t *testing.T) {
		target, err := r.Route(okRecord(), testNow)
		require.NoError(t, err)
		info, err := os.Stat(filepath.Dir(target))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestRouteCollisions(t *testing.T) {
	root := t.TempDir()
	r := New(root, "unknown", "", ".pdf")

	first, err := r.Route(okRecord(), testNow)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(first, []byte("one"), 0o640))

	second, err := r.Route(okRecord(), testNow)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(first, ".pdf")+"_1.pdf", second)
	require.NoError(t, os.WriteFile(second, []byte("two"), 0o640))

	third, err := r.Route(okRecord(), testNow)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(first, ".pdf")+"_2.pdf", third)
}

func TestCustomFilenameFormat(t *testing.T) {
	root := t.TempDir()
	r := New(root, "unknown", "{supplier}_{invoice_no}_{hash_short}", ".pdf")

	target, err := r.Route(okRecord(), testNow)
	require.NoError(t, err)
	assert.Equal(t, "acme_RE-1_abababab.pdf", filepath.Base(target))
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ACME GmbH & Co. KG", "ACME_GmbH_Co_KG"},
		{"", "unknown"},
		{"///", "unknown"},
		{"simple", "simple"},
		{"__trimmed__", "trimmed"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeName(tt.in))
		})
	}
}

func TestSafeNameTruncates(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := SafeName(long)
	assert.Len(t, got, 100)
}
