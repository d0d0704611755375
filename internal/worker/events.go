package worker

// Document lifecycle, as tracked in the documents table.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IngestTask is the body published to config.TopicIngestDocument.
type IngestTask struct {
	DocumentID    string `json:"document_id"`
	Path          string `json:"path"`
	Course        string `json:"course"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
