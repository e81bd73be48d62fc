package store

import (
	"context"
	"time"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/metrics"
)

// Instrumented wraps a DataStore and records per-operation latency.
type Instrumented struct {
	DataStore
}

// WithMetrics wraps ds with latency instrumentation.
func WithMetrics(ds DataStore) *Instrumented {
	return &Instrumented{DataStore: ds}
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *Instrumented) SaveMessage(ctx context.Context, msg *domain.Message) error {
	defer observe("save_message", time.Now())
	return s.DataStore.SaveMessage(ctx, msg)
}

func (s *Instrumented) Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	defer observe("conversation", time.Now())
	return s.DataStore.Conversation(ctx, userA, userB)
}

func (s *Instrumented) UpsertUser(ctx context.Context, user domain.User) error {
	defer observe("upsert_user", time.Now())
	return s.DataStore.UpsertUser(ctx, user)
}

func (s *Instrumented) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	defer observe("list_users", time.Now())
	return s.DataStore.ListUsers(ctx, excludeID)
}
