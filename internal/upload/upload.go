// Package upload checks a local PDF and sends it to the backend for
// scanning.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/docscan/internal/templateless"
)

// DefaultMaxFileSize is the largest file the backend accepts.
const DefaultMaxFileSize int64 = 100 << 20

var (
	// ErrNotPDF is returned for files that are not readable PDFs.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrTooLarge is returned for files over the size limit.
	ErrTooLarge = errors.New("file too large")
)

// Client is the backend upload call.
type Client interface {
	UploadDocument(ctx context.Context, path string, opts templateless.UploadOptions) (*templateless.Document, error)
}

// Info describes a checked PDF.
type Info struct {
	Path  string
	Size  int64
	Pages int
}

// Config configures an Uploader.
type Config struct {
	Client      Client
	MaxFileSize int64
	Logger      *slog.Logger
}

// Uploader validates and uploads PDFs.
type Uploader struct {
	client      Client
	maxFileSize int64
	logger      *slog.Logger

	// countPages is swapped in tests.
	countPages func(path string) (int, error)
}

// New creates an Uploader.
func New(cfg Config) *Uploader {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Uploader{
		client:      cfg.Client,
		maxFileSize: cfg.MaxFileSize,
		logger:      cfg.Logger,
		countPages:  pageCount,
	}
}

// Check verifies path is a PDF within the size limit and counts its pages.
func (u *Uploader) Check(path string) (*Info, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotPDF, path)
	}
	if st.Size() > u.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, path, st.Size(), u.maxFileSize)
	}

	pages, err := u.countPages(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotPDF, path, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: %s has no pages", ErrNotPDF, path)
	}
	return &Info{Path: path, Size: st.Size(), Pages: pages}, nil
}

// Upload checks path and uploads it.
func (u *Uploader) Upload(ctx context.Context, path string, opts templateless.UploadOptions) (*templateless.Document, *Info, error) {
	info, err := u.Check(path)
	if err != nil {
		return nil, nil, err
	}
	if opts.ScanMode == "" {
		opts.ScanMode = templateless.ScanModeLLM
	}
	if opts.PdfConversionMethod == "" {
		opts.PdfConversionMethod = templateless.PdfConversionStandard
	}

	u.logger.Info("uploading document", "path", path, "pages", info.Pages, "scan_mode", opts.ScanMode)
	doc, err := u.client.UploadDocument(ctx, path, opts)
	if err != nil {
		return nil, info, fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
	}
	u.logger.Info("document uploaded", "document_id", doc.ID, "pages", info.Pages)
	return doc, info, nil
}

func pageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(f, conf)
}
