// Package ingest turns one lecture document into stored, searchable units.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studypartner/internal/apperr"
	"studypartner/internal/extract"
	"studypartner/internal/metrics"
	"studypartner/internal/retrieval"
	"studypartner/internal/text"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type KeywordExtractor interface {
	ExtractAll(units []text.Unit)
}

type Segmenter interface {
	Segment(doc text.Document) ([]text.Unit, error)
}

type CourseResolver interface {
	Resolve(course string) (string, error)
}

// VectorStore is the write side of an index. Upsert is keyed by unit id, so
// repeating it overwrites instead of duplicating.
type VectorStore interface {
	Upsert(ctx context.Context, index string, units []text.Unit) error
	Query(ctx context.Context, index string, vector []float32, k int) ([]retrieval.Result, error)
	Count(ctx context.Context, index string) (int, error)
	DeleteIndex(ctx context.Context, index string) error
}

type Pipeline struct {
	segmenter Segmenter
	embedder  Embedder
	keywords  KeywordExtractor
	store     VectorStore
	courses   CourseResolver
	metrics   *metrics.Metrics
}

func NewPipeline(seg Segmenter, e Embedder, kw KeywordExtractor, store VectorStore, courses CourseResolver, m *metrics.Metrics) *Pipeline {
	return &Pipeline{segmenter: seg, embedder: e, keywords: kw, store: store, courses: courses, metrics: m}
}

// Ingest segments doc, embeds and tags every unit, then writes them all in a
// single upsert. Nothing is written if any step before the upsert fails.
func (p *Pipeline) Ingest(ctx context.Context, doc text.Document, course string) (units []text.Unit, err error) {
	start := time.Now()
	defer func() {
		p.metrics.ObserveStage("ingest", start)
		outcome := "ok"
		if err != nil {
			outcome = apperr.Kind(err)
		}
		p.metrics.RecordIngest(course, outcome, len(units))
	}()

	index, err := p.courses.Resolve(course)
	if err != nil {
		return nil, err
	}

	units, err = p.segmenter.Segment(doc)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		slog.WarnContext(ctx, "document has no text units", "document", doc.Name)
		return units, nil
	}

	embedStart := time.Now()
	for i := range units {
		vec, err := p.embedder.Embed(ctx, units[i].Text)
		if err != nil {
			if !errors.Is(err, apperr.ErrEmbeddingFailure) {
				err = fmt.Errorf("%w: %v", apperr.ErrEmbeddingFailure, err)
			}
			return nil, fmt.Errorf("embed %s: %w", units[i].ID, err)
		}
		units[i].Embedding = vec
	}
	p.metrics.ObserveStage("embed", embedStart)

	p.keywords.ExtractAll(units)

	if err := p.store.Upsert(ctx, index, units); err != nil {
		if !errors.Is(err, apperr.ErrVectorStoreFailure) {
			err = fmt.Errorf("%w: %v", apperr.ErrVectorStoreFailure, err)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "document ingested", "document", doc.Name, "index", index, "units", len(units))
	return units, nil
}

// IngestFile loads path through the extract package and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path, course string) ([]text.Unit, error) {
	// Resolve first so a bad course fails before any file is parsed.
	if _, err := p.courses.Resolve(course); err != nil {
		return nil, err
	}
	doc, err := extract.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.Ingest(ctx, doc, course)
}
