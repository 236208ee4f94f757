// Package api provides the HTTP API server for the ingestion core.
package api

import "time"

// envelope is the canonical response shape for every endpoint on this
// server: {success, data} on success or
// {success, error{code, message, details}} on failure.
type envelope struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *errorDetail `json:"error,omitempty"`
}

// errorDetail is the error half of envelope.
type errorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func dataEnvelope(data interface{}) envelope {
	return envelope{Success: true, Data: data}
}

func errEnvelope(code, message string, details interface{}) envelope {
	return envelope{Success: false, Error: &errorDetail{Code: code, Message: message, Details: details}}
}

// Error kind codes, forming a stable error-kind table for clients.
const (
	codeValidation          = "VALIDATION_ERROR"
	codeAuthentication      = "AUTHENTICATION_ERROR"
	codeAuthorization       = "AUTHORIZATION_ERROR"
	codeNotFound            = "NOT_FOUND"
	codeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	codeRateLimit           = "RATE_LIMIT_ERROR"
	codeDatabase            = "DATABASE_ERROR"
	codeIntegrity           = "INTEGRITY_ERROR"
)

// eventPayload is the wire shape of a single event submission, matching
// event.Event's attributes. Only latitude and longitude are pointers,
// so absent coordinates stay distinguishable from zero; every other
// absent field decodes to its zero value.
type eventPayload struct {
	Carrier   string `json:"carrier"`
	Driver    string `json:"driver"`
	Vehicle   string `json:"vehicle"`
	Device    string `json:"device"`
	LogPeriod string `json:"logPeriod"`

	EventSequenceID int `json:"eventSequenceId"`
	EventType       int `json:"eventType"`
	EventSubType    int `json:"eventSubType"`
	RecordStatus    int `json:"recordStatus"`
	RecordOrigin    int `json:"recordOrigin"`

	EventTimestamp time.Time `json:"eventTimestamp"`

	AccumulatedVehicleMiles int64 `json:"accumulatedVehicleMiles"`
	ElapsedEngineHours      int64 `json:"elapsedEngineHours"`

	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	LocationDescription string   `json:"locationDescription"`

	MalfunctionIndicator bool `json:"malfunctionIndicator"`
	DiagnosticIndicator  bool `json:"diagnosticIndicator"`
}

// ingestResponse is the body of a successfully accepted POST /events.
type ingestResponse struct {
	EventID    string `json:"eventId"`
	SequenceID int    `json:"sequenceId"`
	ChainHash  string `json:"chainHash"`
}

// batchRequest is the body of POST /events/batch.
type batchRequest struct {
	Events   []eventPayload `json:"events"`
	DeviceID string         `json:"deviceId"`
}

// acceptedEvent describes one accepted event in a batch response.
type acceptedEvent struct {
	Index      int    `json:"index"`
	EventID    string `json:"eventId"`
	SequenceID int    `json:"sequenceId"`
	ChainHash  string `json:"chainHash"`
	EventType  int    `json:"eventType"`
}

// rejectedEvent describes one rejected event in a batch response.
type rejectedEvent struct {
	Index  int           `json:"index"`
	Errors []fieldErrDTO `json:"errors"`
}

// fieldErrDTO mirrors validator.FieldError on the wire.
type fieldErrDTO struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// batchSummary is the summary block of a batch ingestion response.
type batchSummary struct {
	Total            int   `json:"total"`
	Accepted         int   `json:"accepted"`
	Rejected         int   `json:"rejected"`
	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// batchResponse is the body of POST /events/batch.
type batchResponse struct {
	Accepted []acceptedEvent `json:"accepted"`
	Rejected []rejectedEvent `json:"rejected"`
	Summary  batchSummary    `json:"summary"`
}

// eventResponse is the body of a single stored event, used for
// GET /events/{device}/{logDate} list entries. POST /events answers
// with ingestResponse instead.
type eventResponse struct {
	EventID                 string    `json:"eventId"`
	Carrier                 string    `json:"carrier,omitempty"`
	Driver                  string    `json:"driver,omitempty"`
	Vehicle                 string    `json:"vehicle,omitempty"`
	Device                  string    `json:"device"`
	LogPeriod               string    `json:"logPeriod"`
	SequenceID              int       `json:"sequenceId"`
	EventType               int       `json:"eventType"`
	EventSubType            int       `json:"eventSubType"`
	RecordStatus            int       `json:"recordStatus"`
	RecordOrigin            int       `json:"recordOrigin"`
	Timestamp               time.Time `json:"timestamp"`
	AccumulatedVehicleMiles int64     `json:"accumulatedVehicleMiles"`
	ElapsedEngineHours      int64     `json:"elapsedEngineHours"`
	Latitude                *float64  `json:"latitude,omitempty"`
	Longitude               *float64  `json:"longitude,omitempty"`
	LocationDescription     string    `json:"locationDescription,omitempty"`
	ContentHash             string    `json:"contentHash"`
	ChainHash               string    `json:"chainHash"`
	PreviousChainHash       string    `json:"previousChainHash,omitempty"`
	Version                 int       `json:"version"`
}

// gapsResponse is the body of GET /events/{device}/{logDate}/gaps.
type gapsResponse struct {
	Device    string     `json:"device"`
	LogPeriod string     `json:"logPeriod"`
	Gaps      []gapEntry `json:"gaps"`
}

type gapEntry struct {
	After   int   `json:"after"`
	Before  int   `json:"before"`
	Missing []int `json:"missing"`
}

// verifyResponse is the body of GET /events/{device}/{logDate}/verify.
type verifyResponse struct {
	Device    string      `json:"device"`
	LogPeriod string      `json:"logPeriod"`
	Events    int         `json:"events"`
	Valid     bool        `json:"valid"`
	TailHash  string      `json:"tailHash,omitempty"`
	Break     *breakEntry `json:"break,omitempty"`
}

type breakEntry struct {
	EventID  string `json:"eventId"`
	Sequence int    `json:"sequence"`
	Reason   string `json:"reason"`
}

// dlqEntryResponse is the wire shape of a DLQ entry. List responses omit
// Payload; Get responses populate it.
type dlqEntryResponse struct {
	ID               string `json:"id"`
	SourceEndpoint   string `json:"sourceEndpoint"`
	SourceDeviceID   string `json:"sourceDeviceId"`
	BatchIndex       *int   `json:"batchIndex,omitempty"`
	FailureReason    string `json:"failureReason"`
	RetryCount       int    `json:"retryCount"`
	Status           string `json:"status"`
	FirstFailedAt    string `json:"firstFailedAt"`
	LastFailedAt     string `json:"lastFailedAt"`
	ResolverIdentity string `json:"resolverIdentity,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Payload          string `json:"payload,omitempty"`
}

// dlqStatsResponse is the body of GET /admin/dlq/stats.
type dlqStatsResponse struct {
	Pending           int  `json:"pending"`
	Retrying          int  `json:"retrying"`
	Resolved          int  `json:"resolved"`
	Discarded         int  `json:"discarded"`
	ThresholdExceeded bool `json:"thresholdExceeded"`
}

// dlqRetryResponse is the body of POST /admin/dlq/{id}/retry.
type dlqRetryResponse struct {
	Success    bool   `json:"success"`
	EventID    string `json:"eventId,omitempty"`
	SequenceID int    `json:"sequenceId,omitempty"`
	ChainHash  string `json:"chainHash,omitempty"`
	Error      string `json:"error,omitempty"`
}

// discardRequest is the optional body of POST /admin/dlq/{id}/discard.
type discardRequest struct {
	Notes string `json:"notes"`
}

// alertResponse is one entry of GET /admin/dlq/alerts.
type alertResponse struct {
	ID           string `json:"id"`
	PendingCount int    `json:"pendingCount"`
	Threshold    int    `json:"threshold"`
	RaisedAt     string `json:"raisedAt"`
}
