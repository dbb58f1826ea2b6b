// Package document counts pages of spoolable documents and converts image
// sources into PDF before submission.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrUnsupported indicates the document type cannot be page-counted.
var ErrUnsupported = errors.New("unsupported document type")

// PageCounter discovers the page count of a document.
type PageCounter interface {
	CountPages(ctx context.Context, path string) (int, error)
}

// Converter turns a source document into a spoolable one and returns its path.
type Converter interface {
	Convert(ctx context.Context, src string) (string, error)
}

// PDFPageCounter counts pages with pdfcpu. Image files count as one page.
type PDFPageCounter struct{}

func (PDFPageCounter) CountPages(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	switch Kind(path) {
	case KindPDF:
		n, err := api.PageCountFile(path)
		if err != nil {
			return 0, fmt.Errorf("count pages of %s: %w", filepath.Base(path), err)
		}
		return n, nil
	case KindImage:
		if _, err := os.Stat(path); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// DocKind classifies a source by extension.
type DocKind int

const (
	KindOther DocKind = iota
	KindPDF
	KindImage
)

// Kind classifies path by its extension.
func Kind(path string) DocKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF
	case ".jpg", ".jpeg", ".png":
		return KindImage
	}
	return KindOther
}

// ImageImporter writes images into a single PDF at out.
type ImageImporter func(images []string, out string) error

// ExtensionConverter converts images to PDF and passes everything else
// through unchanged.
type ExtensionConverter struct {
	// OutDir receives converted files. Empty means next to the source.
	OutDir string

	// Import defaults to pdfcpu's image import.
	Import ImageImporter
}

func (c ExtensionConverter) Convert(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if Kind(src) != KindImage {
		return src, nil
	}

	dir := c.OutDir
	if dir == "" {
		dir = filepath.Dir(src)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create conversion dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(dir, base+".pdf")

	imp := c.Import
	if imp == nil {
		imp = pdfcpuImport
	}
	if err := imp([]string{src}, out); err != nil {
		return "", fmt.Errorf("convert %s to pdf: %w", filepath.Base(src), err)
	}
	return out, nil
}

func pdfcpuImport(images []string, out string) error {
	return api.ImportImagesFile(images, out, nil, nil)
}
