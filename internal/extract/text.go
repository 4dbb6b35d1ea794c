package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mhartmann/sortier/internal/model"
)

// minNativeTextLen is the threshold under which an embedded text layer is
// considered empty and OCR is attempted instead.
const minNativeTextLen = 20

// FileAcquirer obtains document text by shelling out to external tools:
// pdftotext for the native text layer, tesseract for optical recognition.
// Plain-text files are read directly.
type FileAcquirer struct {
	PdftotextBin string
	TesseractBin string
	Languages    string
}

// NewFileAcquirer returns an acquirer with standard tool names on $PATH.
func NewFileAcquirer() *FileAcquirer {
	return &FileAcquirer{
		PdftotextBin: "pdftotext",
		TesseractBin: "tesseract",
		Languages:    "deu+eng",
	}
}

// Acquire returns the document text and how it was obtained.
func (a *FileAcquirer) Acquire(ctx context.Context, path string) (string, model.ExtractionMethod, error) {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("failed to read document: %w", err)
		}
		return string(data), model.MethodNativeText, nil
	}

	text, err := a.runTool(ctx, a.PdftotextBin, "-layout", path, "-")
	if err == nil && len(strings.TrimSpace(text)) > minNativeTextLen {
		return strings.TrimSpace(text), model.MethodNativeText, nil
	}

	if a.TesseractBin != "" {
		ocrText, ocrErr := a.runTool(ctx, a.TesseractBin, path, "stdout", "-l", a.Languages)
		if ocrErr == nil {
			return strings.TrimSpace(ocrText), model.MethodOptical, nil
		}
		if err == nil {
			err = ocrErr
		}
	}

	if err != nil {
		return "", "", fmt.Errorf("failed to acquire text from %s: %w", path, err)
	}
	return strings.TrimSpace(text), model.MethodNativeText, nil
}

func (a *FileAcquirer) runTool(ctx context.Context, bin string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w (%s)", bin, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
