package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// redisKeyPrefix namespaces idempotency keys within the shared cache.
const redisKeyPrefix = "eld:idempotency:"

// wireRecord is the JSON-serializable form of Record stored in Redis.
type wireRecord struct {
	Status     Status `json:"status"`
	Accepted   bool   `json:"accepted,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	SequenceID int    `json:"sequence_id,omitempty"`
	ChainHash  string `json:"chain_hash,omitempty"`
	ResultCode string `json:"result_code,omitempty"`
	ResultBody []byte `json:"result_body,omitempty"`
}

// RedisStore is the primary network-backed Store, wrapped in a circuit
// breaker so a degraded cache fails fast instead of blocking every
// submission on dial/read timeouts.
type RedisStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRedisStore constructs a RedisStore over client, tripping its circuit
// breaker after consecutive failures and resetting it after a cooldown.
func NewRedisStore(client *redis.Client) *RedisStore {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "idempotency-redis",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &RedisStore{client: client, breaker: breaker}
}

// Claim implements Store using SET NX as the atomic claim primitive.
func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		payload, err := json.Marshal(wireRecord{Status: StatusInFlight})
		if err != nil {
			return nil, fmt.Errorf("idempotency: marshal claim: %w", err)
		}

		return s.client.SetNX(ctx, redisKeyPrefix+key, payload, InFlightTTL).Result()
	})
	if err != nil {
		return false, fmt.Errorf("idempotency: redis claim: %w", err)
	}

	return result.(bool), nil
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, key string, record Record) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		payload, err := json.Marshal(wireRecord{
			Status:     StatusCompleted,
			Accepted:   record.Accepted,
			EventID:    record.EventID,
			SequenceID: record.SequenceID,
			ChainHash:  record.ChainHash,
			ResultCode: record.ResultCode,
			ResultBody: record.ResultBody,
		})
		if err != nil {
			return nil, fmt.Errorf("idempotency: marshal completion: %w", err)
		}

		return nil, s.client.Set(ctx, redisKeyPrefix+key, payload, CompletedTTL).Err()
	})
	if err != nil {
		return fmt.Errorf("idempotency: redis complete: %w", err)
	}

	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (Record, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}

		return Record{}, fmt.Errorf("idempotency: redis get: %w", err)
	}

	var wire wireRecord
	if err := json.Unmarshal(result.([]byte), &wire); err != nil {
		return Record{}, fmt.Errorf("idempotency: unmarshal record: %w", err)
	}

	return Record{
		Status:     wire.Status,
		Accepted:   wire.Accepted,
		EventID:    wire.EventID,
		SequenceID: wire.SequenceID,
		ChainHash:  wire.ChainHash,
		ResultCode: wire.ResultCode,
		ResultBody: wire.ResultBody,
	}, nil
}

// State exposes the circuit breaker's current state so Gate can decide
// whether to route around a degraded cache.
func (s *RedisStore) State() gobreaker.State {
	return s.breaker.State()
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, redisKeyPrefix+key).Err()
	})
	if err != nil {
		return fmt.Errorf("idempotency: redis release: %w", err)
	}

	return nil
}
