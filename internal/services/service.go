// Package services maps between backend rows and the view models clients
// render, and performs every write the application exposes.
package services

import (
	"context"
	"log/slog"
	"time"

	"society/internal/activity"
	"society/internal/backend"
	applog "society/internal/log"
)

// Service talks to one backend. It is safe for concurrent use; requests
// are independent and the last write wins.
type Service struct {
	client    backend.Client
	resolver  HouseResolver
	publisher activity.Publisher
	now       func() time.Time
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

type Option func(*Service)

// WithPublisher sends an activity event after every successful write.
func WithPublisher(p activity.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithResolver replaces the default backend-backed house resolver.
func WithResolver(r HouseResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithClock sets the time source used to compute due dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(client backend.Client, opts ...Option) *Service {
	s := &Service{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = NewHouseResolver(client)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.Config{
			Handler:   slog.Default().Handler(),
			Component: applog.ComponentServices,
		})
	}
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// written logs a successful write and emits its activity event. A failed
// publish never fails the write.
func (s *Service) written(ctx context.Context, action, table, id string, details any) {
	s.events.LogWrite(ctx, action, table, id)
	if s.publisher == nil {
		return
	}
	e := activity.New(ctx, action, table, id, details)
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish activity",
			applog.FieldEntity, table,
			applog.FieldEntityID, id,
			"event_id", e.ID,
			applog.FieldError, err)
	}
}

func (s *Service) table(name string) *backend.Builder {
	return backend.From(s.client, name)
}
