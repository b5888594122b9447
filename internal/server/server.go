// Package server exposes the HTTP API.
package server

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/tally/internal/events"
	"github.com/alfredjeanlab/tally/internal/ledger"
	"github.com/alfredjeanlab/tally/internal/partition"
	"github.com/alfredjeanlab/tally/internal/pii"
	"github.com/alfredjeanlab/tally/internal/store"
)

// TallyServer serves the HTTP API over the ledger and its supporting services.
type TallyServer struct {
	store     store.Store
	ledger    *ledger.Ledger
	lookup    *pii.Index
	manager   *partition.Manager
	publisher events.Publisher
	logger    *slog.Logger
}

// NewTallyServer returns a server backed by the given store and services.
func NewTallyServer(s store.Store, l *ledger.Ledger, lookup *pii.Index, m *partition.Manager, p events.Publisher, logger *slog.Logger) *TallyServer {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = &events.NoopPublisher{}
	}
	return &TallyServer{
		store:     s,
		ledger:    l,
		lookup:    lookup,
		manager:   m,
		publisher: p,
		logger:    logger,
	}
}

// publish emits an event to NATS after the underlying write committed.
// Best-effort; failures are logged but do not block the caller.
func (s *TallyServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
