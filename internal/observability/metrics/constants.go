// Package metrics provides the Prometheus collectors for the capture-analysis pipeline.
package metrics

// Capture outcomes for AnalysisMetrics.RecordCapture.
const (
	OutcomeCompleted       = "completed"
	OutcomeAlreadyAnalyzed = "already_analyzed"
	OutcomeNotFound        = "not_found"
	OutcomeBadKey          = "bad_key"
	OutcomeDownloadFailed  = "download_failed"
	OutcomeTransient       = "transient"
	OutcomePermanent       = "permanent"
	OutcomePersistFailed   = "persist_failed"
)

// Status labels shared by request/operation counters.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusTransient = "transient"
	StatusRejected  = "rejected"
)

// Queue states for the queue entries gauge.
const (
	QueueStatePending   = "pending"
	QueueStateExhausted = "exhausted"
	QueueStateCompleted = "completed"
)

// Storage operations.
const (
	OpDownload = "download"
	OpUpload   = "upload"
)

// Thumbnail outcomes.
const (
	ThumbnailGenerated = "generated"
	ThumbnailFailed    = "failed"
	ThumbnailSkipped   = "skipped"
)

const namespace = "geocapture"
