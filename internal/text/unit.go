package text

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Unit is one retrievable page or slide of a lecture document.
type Unit struct {
	ID             string    `json:"id"`
	SourceDocument string    `json:"source_document"`
	PageNumber     int       `json:"page_number"`
	Text           string    `json:"text"`
	Keywords       []string  `json:"keywords"`
	Embedding      []float32 `json:"embedding,omitempty"`
}

// NewUnit validates its inputs and derives the unit id from the document name
// and page number. Keywords start empty and the embedding absent.
func NewUnit(sourceDocument string, page int, body string) (Unit, error) {
	body = strings.TrimSpace(body)
	if sourceDocument == "" {
		return Unit{}, fmt.Errorf("unit: source document is required")
	}
	if page < 1 {
		return Unit{}, fmt.Errorf("unit: page number must be >= 1, got %d", page)
	}
	if body == "" {
		return Unit{}, fmt.Errorf("unit: text is empty")
	}
	return Unit{
		ID:             UnitID(sourceDocument, page),
		SourceDocument: sourceDocument,
		PageNumber:     page,
		Text:           body,
		Keywords:       []string{},
	}, nil
}

// UnitID builds "<document base>_chunk_<page>", page zero-padded to three digits.
func UnitID(sourceDocument string, page int) string {
	base := strings.TrimSuffix(sourceDocument, filepath.Ext(sourceDocument))
	return fmt.Sprintf("%s_chunk_%03d", base, page)
}

// Ready reports whether the unit may be written to an index.
func (u Unit) Ready() bool {
	return len(u.Embedding) > 0 && u.Keywords != nil
}

// Metadata is the flat metadata stored next to the unit in an index.
func (u Unit) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"source":   u.SourceDocument,
		"page":     u.PageNumber,
		"keywords": strings.Join(u.Keywords, ", "),
	}
}
