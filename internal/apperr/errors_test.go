package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"studypartner/internal/apperr"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"wrapped embedding", fmt.Errorf("%w: timeout", apperr.ErrEmbeddingFailure), "embedding_failure"},
		{"double wrapped course", fmt.Errorf("retrieve: %w", fmt.Errorf("%w: x", apperr.ErrUnknownCourse)), "unknown_course"},
		{"no keys", apperr.ErrNoKeysAvailable, "no_keys_available"},
		{"vector store", fmt.Errorf("%w: %w", apperr.ErrVectorStoreFailure, context.DeadlineExceeded), "vector_store_failure"},
		{"unknown", errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.Kind(tt.err))
		})
	}
}
