package job

import (
	"encoding/json"
	"time"
)

// Job is an ingestion task that exhausted its deliveries or failed for good.
// Retries is the number of deliveries made before it was parked here.
type Job struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	Course     string          `json:"course"`
	Handler    string          `json:"handler"`
	Payload    json.RawMessage `json:"payload"`
	ErrorKind  string          `json:"error_kind"`
	Error      string          `json:"error"`
	Retries    int             `json:"retries"`
	CreatedAt  time.Time       `json:"created_at"`
}
