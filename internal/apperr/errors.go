// Package apperr holds the error kinds shared by ingestion and question answering.
// Producers wrap one of the sentinels with fmt.Errorf("%w: ...") and callers
// classify with errors.Is or Kind.
package apperr

import "errors"

var (
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrEmbeddingFailure   = errors.New("embedding failed")
	ErrUnknownCourse      = errors.New("unknown course")
	ErrVectorStoreFailure = errors.New("vector store failure")
	ErrGenerationFailure  = errors.New("generation failed")
	ErrNoKeysAvailable    = errors.New("no api keys available")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrUnsupportedFormat, "unsupported_format"},
	{ErrEmbeddingFailure, "embedding_failure"},
	{ErrUnknownCourse, "unknown_course"},
	{ErrVectorStoreFailure, "vector_store_failure"},
	{ErrGenerationFailure, "generation_failure"},
	{ErrNoKeysAvailable, "no_keys_available"},
}

// Kind returns a stable code for err, "" for nil and "internal" for anything
// that does not wrap a known kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}
