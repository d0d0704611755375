// Package extract turns lecture files into the marker-delimited text the
// segmenter consumes.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"studypartner/internal/apperr"
	"studypartner/internal/text"
)

// Load reads an extracted text file (.pdf.txt, .pptx.txt) as is, or extracts
// a raw .pdf page by page.
func Load(ctx context.Context, path string) (text.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return NewPDFExtractor().Extract(ctx, path)
	}
	return text.ReadDocument(path)
}

// Supported reports whether Load can handle path, without reading it.
func Supported(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil
	}
	_, err := text.KindFromFilename(path)
	return err
}

type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

// PDFExtractor writes each page's plain text followed by "page<N> complete".
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (e *PDFExtractor) Extract(ctx context.Context, path string) (text.Document, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- ingestion reads operator-supplied paths
	if err != nil {
		return text.Document{}, fmt.Errorf("read pdf: %w", err)
	}
	return e.ExtractBytes(ctx, filepath.Base(path), content)
}

func (e *PDFExtractor) ExtractBytes(ctx context.Context, name string, content []byte) (text.Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return text.Document{}, fmt.Errorf("%w: %s is not a readable pdf: %v", apperr.ErrUnsupportedFormat, name, err)
	}

	body := render(ctx, &pdfPages{reader: reader})
	return text.Document{Name: name, Kind: text.KindPage, Text: body}, nil
}

func render(ctx context.Context, pages pageSource) string {
	var b strings.Builder
	n := pages.NumPage()
	for i := 1; i <= n; i++ {
		body, err := pages.PageText(i)
		if err != nil {
			slog.WarnContext(ctx, "failed to extract page text", "page", i, "error", err)
		}
		b.WriteString(strings.TrimSpace(body))
		fmt.Fprintf(&b, "\npage%d complete\n", i)
	}
	return b.String()
}

type pdfPages struct {
	reader *pdf.Reader
}

func (p *pdfPages) NumPage() int { return p.reader.NumPage() }

func (p *pdfPages) PageText(i int) (string, error) {
	page := p.reader.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(make(map[string]*pdf.Font))
}
