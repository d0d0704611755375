package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypartner/internal/apperr"
	"studypartner/internal/text"
)

func unit(id string, page int, vec ...float32) text.Unit {
	return text.Unit{
		ID: id, SourceDocument: "Lecture1.pdf", PageNumber: page,
		Text: "text of " + id, Keywords: []string{"kw"}, Embedding: vec,
	}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	units := []text.Unit{unit("a", 1, 1, 0), unit("b", 2, 0, 1)}

	require.NoError(t, s.Upsert(ctx, "aws", units))
	require.NoError(t, s.Upsert(ctx, "aws", units))

	n, err := s.Count(ctx, "aws")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	changed := unit("a", 1, 1, 0)
	changed.Text = "rewritten"
	require.NoError(t, s.Upsert(ctx, "aws", []text.Unit{changed}))

	got, ok := s.Get("aws", "a")
	require.True(t, ok)
	assert.Equal(t, "rewritten", got.Text)
	n, _ = s.Count(ctx, "aws")
	assert.Equal(t, 2, n)
}

func TestStore_QueryNearestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "os", []text.Unit{
		unit("far", 1, -1, 0),
		unit("near", 2, 1, 0.1),
		unit("mid", 3, 0, 1),
	}))

	res, err := s.Query(ctx, "os", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "near", res[0].ID)
	assert.Equal(t, "mid", res[1].ID)
	assert.Less(t, res[0].Distance, res[1].Distance)
	assert.Equal(t, "Lecture1.pdf", res[0].Source)
	assert.Equal(t, 2, res[0].Page)
}

func TestStore_Errors(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Query(ctx, "missing", []float32{1}, 5)
	assert.True(t, errors.Is(err, apperr.ErrVectorStoreFailure))

	notReady := unit("x", 1)
	err = s.Upsert(ctx, "aws", []text.Unit{notReady})
	assert.True(t, errors.Is(err, apperr.ErrVectorStoreFailure))

	err = s.Upsert(ctx, "aws", []text.Unit{unit("a", 1, 1, 0), unit("b", 2, 1, 0, 0)})
	assert.True(t, errors.Is(err, apperr.ErrVectorStoreFailure))
	n, _ := s.Count(ctx, "aws")
	assert.Zero(t, n, "a rejected batch writes nothing")

	require.NoError(t, s.Upsert(ctx, "aws", []text.Unit{unit("a", 1, 1, 0)}))
	_, err = s.Query(ctx, "aws", []float32{1, 0, 0}, 5)
	assert.True(t, errors.Is(err, apperr.ErrVectorStoreFailure))
}

func TestStore_DeleteIndex(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "aws", []text.Unit{unit("a", 1, 1, 0)}))
	require.NoError(t, s.DeleteIndex(ctx, "aws"))

	n, err := s.Count(ctx, "aws")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "aws", []text.Unit{unit("seed", 1, 1, 1)}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Upsert(ctx, "aws", []text.Unit{unit("seed", 1, 1, 1)})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Query(ctx, "aws", []float32{1, 1}, 15)
		}()
	}
	wg.Wait()

	n, _ := s.Count(ctx, "aws")
	assert.Equal(t, 1, n)
}
