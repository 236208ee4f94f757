package authstub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// performDummyCompare keeps authentication's failure path constant
// time regardless of which check rejected the request, so a missing
// credential and a wrong secret take the same time to reject.
func performDummyCompare() {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte("dummy"))
}

// dummyHash is a real bcrypt hash, so performDummyCompare pays the full
// bcrypt cost instead of failing fast on a malformed hash.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-secret"), bcrypt.DefaultCost)

// Middleware authenticates each request's X-Api-Key (or Authorization:
// Bearer) header against store and attaches the resulting Actor to
// the request context. Requests that fail verification never reach
// the handler.
func Middleware(store Store, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			header := r.Header.Get("X-Api-Key")
			if header == "" {
				header = r.Header.Get("Authorization")
			}

			secret, err := ParseCredential(header)
			if err != nil {
				performDummyCompare()
				writeVerificationError(w, r, logger, &VerificationError{Type: ErrMissingCredential})

				return
			}

			cred, found := store.FindBySecret(r.Context(), secret)
			if !found {
				performDummyCompare()
				writeVerificationError(w, r, logger, &VerificationError{Type: ErrInvalidCredential})

				return
			}

			if verr := cred.Verify(); verr != nil {
				writeVerificationError(w, r, logger, verr)

				return
			}

			actor := Actor{
				ID:          cred.ID,
				CarrierID:   cred.CarrierID,
				Name:        cred.Name,
				Permissions: cred.Permissions,
				AuthTime:    time.Now(),
			}

			logger.Info("request authenticated",
				slog.String("carrier_id", actor.CarrierID),
				slog.String("credential_id", actor.ID),
				slog.Duration("auth_latency", time.Since(start)),
				slog.String("endpoint", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func writeVerificationError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err *VerificationError) {
	status := http.StatusUnauthorized
	if errors.Is(err.Type, ErrCredentialRevoked) {
		status = http.StatusForbidden
	}

	logger.Warn("authentication failed",
		slog.String("reason", err.Error()),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	problem := map[string]interface{}{
		"type":          fmt.Sprintf("https://eld-core.dev/problems/%d", status),
		"title":         http.StatusText(status),
		"status":        status,
		"detail":        err.Error(),
		"instance":      r.URL.Path,
		"correlationId": w.Header().Get("X-Correlation-ID"),
	}

	_ = json.NewEncoder(w).Encode(problem)
}
