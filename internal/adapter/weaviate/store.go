package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"studypartner/internal/apperr"
	"studypartner/internal/retrieval"
	"studypartner/internal/text"
	"studypartner/internal/vector"
)

// objectNamespace seeds the deterministic object ids, so re-ingesting a unit
// overwrites the object it created before.
var objectNamespace = uuid.MustParse("6f1b2c3d-8a4e-5b6f-9c7d-0e1f2a3b4c5d")

// Store keeps one Weaviate class per index.
type Store struct {
	client  *weaviate.Client
	indexes *vector.Indexes
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{
		client:  client,
		indexes: vector.NewIndexes(client),
	}
}

// ObjectID is the Weaviate object id of a unit within an index.
func ObjectID(index, unitID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(objectNamespace, []byte(index+"/"+unitID)).String())
}

// Upsert writes units in a single batch. Units must carry an embedding and
// extracted keywords.
func (s *Store) Upsert(ctx context.Context, index string, units []text.Unit) error {
	if len(units) == 0 {
		return nil
	}
	for _, u := range units {
		if !u.Ready() {
			return fmt.Errorf("%w: unit %s is missing its embedding or keywords", apperr.ErrVectorStoreFailure, u.ID)
		}
	}

	className := vector.ClassName(index)
	if err := s.indexes.Ensure(ctx, index); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrVectorStoreFailure, err)
	}

	objects := make([]*models.Object, 0, len(units))
	for _, u := range units {
		md := u.Metadata()
		objects = append(objects, &models.Object{
			Class: className,
			ID:    ObjectID(index, u.ID),
			Properties: map[string]interface{}{
				vector.PropText:     u.Text,
				vector.PropUnitID:   u.ID,
				vector.PropSource:   md["source"],
				vector.PropPage:     md["page"],
				vector.PropKeywords: md["keywords"],
			},
			Vector: models.C11yVector(u.Embedding),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: batch upsert into %s: %v", apperr.ErrVectorStoreFailure, className, err)
	}

	var errs []string
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil {
			for _, e := range r.Result.Errors.Error {
				if e != nil {
					errs = append(errs, e.Message)
				}
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: batch upsert into %s: %s", apperr.ErrVectorStoreFailure, className, strings.Join(errs, "; "))
	}
	return nil
}

// Query returns the k nearest units, closest first.
func (s *Store) Query(ctx context.Context, index string, vec []float32, k int) ([]retrieval.Result, error) {
	className := vector.ClassName(index)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: vector.PropText},
		{Name: vector.PropUnitID},
		{Name: vector.PropSource},
		{Name: vector.PropPage},
		{Name: vector.PropKeywords},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", apperr.ErrVectorStoreFailure, className, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: query %s: %s", apperr.ErrVectorStoreFailure, className, graphqlErrors(res.Errors))
	}

	results := []retrieval.Result{}
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	objects, ok := data[className].([]interface{})
	if !ok {
		return results, nil
	}

	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		r := retrieval.Result{Keywords: []string{}}
		if v, ok := props[vector.PropText].(string); ok {
			r.Text = v
		}
		if v, ok := props[vector.PropUnitID].(string); ok {
			r.ID = v
		}
		if v, ok := props[vector.PropSource].(string); ok {
			r.Source = v
		}
		if v, ok := props[vector.PropPage].(float64); ok {
			r.Page = int(v)
		}
		if v, ok := props[vector.PropKeywords].(string); ok {
			r.Keywords = splitKeywords(v)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				r.Distance = d
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// Count returns the number of units in an index, zero when it does not exist.
func (s *Store) Count(ctx context.Context, index string) (int, error) {
	className := vector.ClassName(index)

	exists, err := s.indexes.Exists(ctx, index)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrVectorStoreFailure, err)
	}
	if !exists {
		return 0, nil
	}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", apperr.ErrVectorStoreFailure, className, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("%w: count %s: %s", apperr.ErrVectorStoreFailure, className, graphqlErrors(res.Errors))
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[className].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}

// DeleteIndex drops the class backing an index. Deleting a missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context, index string) error {
	if err := s.indexes.Drop(ctx, index); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrVectorStoreFailure, err)
	}
	return nil
}

func splitKeywords(joined string) []string {
	out := []string{}
	for _, kw := range strings.Split(joined, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func graphqlErrors(errs []*models.GraphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Message)
		}
	}
	if len(msgs) == 0 {
		return "unknown graphql error"
	}
	return strings.Join(msgs, "; ")
}
