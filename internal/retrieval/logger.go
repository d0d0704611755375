package retrieval

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Hit is the part of a retrieved unit kept in the query log; unit text is
// left out to keep lines short.
type Hit struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Distance float64 `json:"distance"`
}

// QueryRecord is one line of the query log.
type QueryRecord struct {
	Time          time.Time `json:"time"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Course        string    `json:"course"`
	Index         string    `json:"index,omitempty"`
	Question      string    `json:"question"`
	TopK          int       `json:"top_k"`
	Hits          []Hit     `json:"hits"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
	LatencyMs     int64     `json:"latency_ms"`
}

func hits(results []Result) []Hit {
	out := make([]Hit, len(results))
	for i, r := range results {
		out[i] = Hit{ID: r.ID, Source: r.Source, Page: r.Page, Distance: r.Distance}
	}
	return out
}

// QueryLogger appends QueryRecords as JSON lines. Safe for concurrent use.
type QueryLogger struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{enc: json.NewEncoder(w)}
}

// NewFileQueryLogger appends to path, creating it and its directory.
func NewFileQueryLogger(path string) (*QueryLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config, not user input
	if err != nil {
		return nil, err
	}
	l := NewQueryLogger(f)
	l.closer = f
	return l, nil
}

func (l *QueryLogger) Log(rec QueryRecord) {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if rec.Hits == nil {
		rec.Hits = []Hit{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(rec); err != nil {
		slog.Error("failed to write query log record", "error", err)
	}
}

func (l *QueryLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
