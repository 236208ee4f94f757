// Package middleware provides HTTP middleware components for the ingestor API.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// rfc7807Problem is the RFC 7807 application/problem+json body shared by
// middleware that must fail a request before a handler ever runs.
type rfc7807Problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlationId"`
}

const contentTypeProblemJSON = "application/problem+json"

var statusTitles = map[int]string{
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusTooManyRequests:     "Too Many Requests",
	http.StatusInternalServerError: "Internal Server Error",
}

// writeRFC7807Error writes an RFC 7807 problem+json response for failures
// detected inside middleware, before routing reaches a handler.
func writeRFC7807Error(w http.ResponseWriter, r *http.Request, status int, detail, correlationID string) error {
	title, ok := statusTitles[status]
	if !ok {
		title = http.StatusText(status)
	}

	problem := rfc7807Problem{
		Type:          fmt.Sprintf("https://eld-core.dev/problems/%d", status),
		Title:         title,
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(problem)
}
