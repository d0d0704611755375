package text

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"studypartner/internal/apperr"
)

// Kind is how upstream extraction numbered the document.
type Kind string

const (
	KindPage  Kind = "page"
	KindSlide Kind = "slide"
)

// Document is the raw text of one extracted lecture file.
type Document struct {
	// Name is the source document name with the extraction suffix removed,
	// e.g. "Lecture1.pdf".
	Name string
	Kind Kind
	Text string
}

var delimiters = map[Kind]*regexp.Regexp{
	KindPage:  regexp.MustCompile(`page(\d+) complete`),
	KindSlide: regexp.MustCompile(`slide(\d+) complete`),
}

// KindFromFilename maps an extracted text file name to its kind.
func KindFromFilename(name string) (Kind, error) {
	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.HasSuffix(base, ".pdf.txt"):
		return KindPage, nil
	case strings.HasSuffix(base, ".pptx.txt"), strings.HasSuffix(base, ".ppt.txt"):
		return KindSlide, nil
	}
	return "", fmt.Errorf("%w: %s (expected .pdf.txt or .pptx.txt)", apperr.ErrUnsupportedFormat, filepath.Base(name))
}

// SourceDocumentName strips the ".txt" extraction suffix from a file name.
func SourceDocumentName(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".txt")
}

// ReadDocument loads an extracted text file from disk.
func ReadDocument(path string) (Document, error) {
	kind, err := KindFromFilename(path)
	if err != nil {
		return Document{}, err
	}
	raw, err := os.ReadFile(path) // #nosec G304 -- ingestion reads operator-supplied paths
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	return Document{Name: SourceDocumentName(path), Kind: kind, Text: string(raw)}, nil
}

// Segmenter splits a document on its "<page|slide>N complete" markers.
//
// The number inside a marker closes the previous page, so the text after marker
// N is numbered N+PageOffset. Indices built so far use PageOffset 1 and their
// citations depend on it.
type Segmenter struct {
	PageOffset int
}

func NewSegmenter(pageOffset int) *Segmenter {
	return &Segmenter{PageOffset: pageOffset}
}

// Segment returns the non-empty units of doc in document order.
//
// Page numbers strictly increase across the returned units. A segment whose
// page would not advance past the previous unit (a repeated marker, a page0
// marker, or PageOffset 0 with a preamble) is appended to that unit, so ids
// stay unique within one document.
func (s *Segmenter) Segment(doc Document) ([]Unit, error) {
	re, ok := delimiters[doc.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: extraction kind %q", apperr.ErrUnsupportedFormat, doc.Kind)
	}

	var units []Unit
	add := func(page int, body string) error {
		body = strings.TrimSpace(body)
		if body == "" {
			return nil
		}
		if n := len(units); n > 0 && page <= units[n-1].PageNumber {
			units[n-1].Text += "\n" + body
			return nil
		}
		if page < 1 {
			page = 1
		}
		u, err := NewUnit(doc.Name, page, body)
		if err != nil {
			return err
		}
		units = append(units, u)
		return nil
	}

	matches := re.FindAllStringSubmatchIndex(doc.Text, -1)
	end := len(doc.Text)
	if len(matches) > 0 {
		end = matches[0][0]
	}
	if err := add(1, doc.Text[:end]); err != nil {
		return nil, err
	}

	for i, m := range matches {
		n, err := strconv.Atoi(doc.Text[m[2]:m[3]])
		if err != nil {
			return nil, fmt.Errorf("segment %s: bad delimiter %q: %w", doc.Name, doc.Text[m[0]:m[1]], err)
		}
		end := len(doc.Text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if err := add(n+s.PageOffset, doc.Text[m[1]:end]); err != nil {
			return nil, err
		}
	}

	return units, nil
}
