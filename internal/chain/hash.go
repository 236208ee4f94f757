// Package chain computes and verifies the append-only hash chain that
// links every event within a (device, log-period) scope.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/eld-core/ingestor/internal/event"
)

// GenesisHash returns the seed chain hash for a scope with no prior events.
//
// Formula: SHA256("genesis:{device}:{log-period}").
func GenesisHash(scope event.Scope) string {
	return hashSHA256(fmt.Sprintf("genesis:%s:%s", scope.Device, scope.LogPeriod))
}

// ContentHash computes the canonical content hash of an event's immutable
// identity fields.
//
// Formula: SHA256(device_id | event_type | event_sub_type | event_date |
// event_time | sequence_id), each field in canonical string form, joined
// with "|".
func ContentHash(e *event.Event) string {
	input := e.Device + "|" +
		strconv.Itoa(int(e.EventType)) + "|" +
		strconv.Itoa(int(e.EventSubType)) + "|" +
		e.EventDate + "|" +
		e.EventTime + "|" +
		strconv.Itoa(e.SequenceID)

	return hashSHA256(input)
}

// ChainHash computes the next link in the hash chain.
//
// Formula: SHA256(content_hash || previous_chain_hash).
func ChainHash(contentHash, previousChainHash string) string {
	return hashSHA256(contentHash + previousChainHash)
}

// hashSHA256 returns the lowercase hex SHA256 digest of input.
func hashSHA256(input string) string {
	sum := sha256.Sum256([]byte(input))

	return hex.EncodeToString(sum[:])
}
