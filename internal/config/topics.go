package config

const (
	// TopicIngestDocument carries one extracted lecture document to be ingested.
	TopicIngestDocument = "ingest.document"

	// ChannelIngestWorker is the consumer channel shared by ingestion workers.
	ChannelIngestWorker = "ingest-worker"
)
