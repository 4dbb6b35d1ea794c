// Package stamp defines the document stamping collaborator. Cover-page
// generation itself is external; the default implementation simply copies
// the original bytes, which is also the degraded path when stamping fails.
package stamp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mhartmann/sortier/internal/model"
)

// Stamper places the routed document at its target path, optionally with a
// metadata cover page prepended.
type Stamper interface {
	Stamp(ctx context.Context, originalPath, targetPath string, meta model.PartialRecord) error
}

// CopyStamper writes the original bytes unchanged.
type CopyStamper struct{}

// Stamp copies the source document to the target path.
func (CopyStamper) Stamp(_ context.Context, originalPath, targetPath string, _ model.PartialRecord) error {
	return CopyFile(originalPath, targetPath)
}

// CopyFile copies src to dst, replacing dst if it exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy document: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finalize target: %w", err)
	}
	return nil
}
