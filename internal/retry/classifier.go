package retry

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
)

// Classifier reports whether err is worth retrying. Non-transient
// errors (validation, auth, duplicate-key, foreign-key violations)
// must return false so the retry wrapper propagates them immediately.
type Classifier func(err error) bool

// transientPGCodes are the PostgreSQL error classes/codes treated as
// transient: connection exceptions (Class 08), deadlocks and
// serialization failures, and too-many-connections.
var transientPGCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// DefaultClassifier implements the default transient-error
// taxonomy: network errors, PostgreSQL connection/deadlock/
// serialization classes, and upstream "temporarily unavailable"/
// "service unavailable" errors. Everything else, including any error
// it does not recognize, is treated as non-transient.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if strings.HasPrefix(string(pqErr.Code), "08") {
			return true
		}

		return transientPGCodes[string(pqErr.Code)]
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"temporarily unavailable",
		"service unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
