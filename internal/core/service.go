// Package core hosts the herd service: the entity repositories and the
// coordinator that keeps related records consistent. Every public mutation
// runs inside exactly one store transaction.
package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"herdbook/internal/infra/persistence/memory"
	"herdbook/pkg/daterange"
	"herdbook/pkg/domain"
)

// Service exposes the transactional herd operations.
type Service struct {
	store   PersistentStore
	logger  *zap.Logger
	metrics MetricsRecorder
	now     func() time.Time
	loc     *time.Location
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the recorder observing every operation.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithClock overrides the time source used for generated transactions.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the farm's time zone, used to decide calendar days.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Location returns the farm time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) observe(ctx context.Context, op string, started time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	if err != nil {
		s.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
	}
}

func (s *Service) mutate(ctx context.Context, op string, fn func(tx domain.Tx) error) (Result, error) {
	started := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.observe(ctx, op, started, err)
	for _, v := range res.Violations {
		if v.Severity != SeverityBlock {
			s.logger.Info("rule violation", zap.String("op", op), zap.String("rule", v.Rule), zap.String("message", v.Message))
		}
	}
	return res, err
}

func (s *Service) read(ctx context.Context, op string, fn func(v domain.TxView) error) error {
	started := time.Now()
	err := s.store.View(ctx, fn)
	s.observe(ctx, op, started, err)
	return err
}

// day maps t onto midnight of its calendar day in the farm location.
func (s *Service) day(t time.Time) time.Time {
	return daterange.StartOfDay(t.In(s.loc)).UTC()
}

func (s *Service) today() time.Time {
	return s.day(s.now())
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func requireCattle(v domain.TxView, entity EntityType, field string, id int64) (Cattle, error) {
	c, err := v.FindCattle(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Cattle{}, domain.ValidationError{Entity: entity, Field: field, Message: "references unknown cattle"}
		}
		return Cattle{}, err
	}
	return c, nil
}
