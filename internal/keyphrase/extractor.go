package keyphrase

import (
	"strings"

	"studypartner/internal/text"
)

// DefaultTopK bounds each strategy's output per unit.
const DefaultTopK = 5

// Strategy ranks keyphrases of a single text, best first. Phrases are
// lowercased, so the Extractor's exact-match dedup also folds case.
type Strategy interface {
	Name() string
	Extract(body string, topK int) []string
}

// Extractor merges two strategies. Primary results come first; a phrase the
// secondary strategy repeats keeps its primary position.
type Extractor struct {
	Primary   Strategy
	Secondary Strategy
	TopK      int
}

// NewExtractor returns the statistical-then-graph extractor used for ingestion.
func NewExtractor(topK int) *Extractor {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Extractor{
		Primary:   NewStatistical(),
		Secondary: NewGraph(),
		TopK:      topK,
	}
}

// Extract never returns nil, so an empty list marks extraction as done.
func (e *Extractor) Extract(body string) []string {
	out := []string{}
	if strings.TrimSpace(body) == "" {
		return out
	}

	seen := make(map[string]struct{})
	for _, s := range []Strategy{e.Primary, e.Secondary} {
		if s == nil {
			continue
		}
		for _, kw := range s.Extract(body, e.TopK) {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// ExtractAll fills Keywords on every unit in place.
func (e *Extractor) ExtractAll(units []text.Unit) {
	for i := range units {
		units[i].Keywords = e.Extract(units[i].Text)
	}
}
