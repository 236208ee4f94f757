// Package dlq implements the dead-letter queue: the durable holding
// area for submissions that exhausted ingestion retry, plus the admin
// surface used to list, inspect, retry, or discard them.
package dlq

import "time"

// Status is the lifecycle state of a DLQ entry. Transitions are
// Pending -> Retrying -> Resolved and Pending -> Discarded. A failed
// retry attempt returns an entry from Retrying to Pending rather than
// leaving it stuck in Retrying.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRetrying  Status = "retrying"
	StatusResolved  Status = "resolved"
	StatusDiscarded Status = "discarded"
)

// Entry is a submission that failed ingestion after retry exhaustion,
// held for human-mediated recovery. Only ingestion failures land here;
// validation failures are client errors that will not succeed on
// retry and never reach the DLQ.
type Entry struct {
	ID               string
	Payload          []byte
	SourceEndpoint   string
	SourceDeviceID   string
	BatchIndex       *int
	VaultRecordID    string
	FailureReason    string
	RetryCount       int
	Status           Status
	FirstFailedAt    time.Time
	LastFailedAt     time.Time
	ResolverIdentity string
	Notes            string
}

// AlertRecord is a durable notice that the DLQ's pending count crossed
// the configured alert threshold. Persisted rather than log-only so
// alerting state survives process restarts and external alerting
// systems can poll GET /admin/dlq/alerts instead of scraping logs.
type AlertRecord struct {
	ID           string
	PendingCount int
	Threshold    int
	RaisedAt     time.Time
}

// Stats summarizes current DLQ depth for the admin surface and for
// depth-alerting after each insert.
type Stats struct {
	Pending           int
	Retrying          int
	Resolved          int
	Discarded         int
	ThresholdExceeded bool
}

// ListFilter narrows GET /admin/dlq results.
type ListFilter struct {
	Status         Status
	SourceDeviceID string
	SourceEndpoint string
	Limit          int
	Offset         int
}
