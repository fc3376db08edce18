// Package cache adds a redis read-through layer in front of an
// availability store for data that changes rarely.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "slotbook:"

// Store caches schedules, services and employees. Exceptions and
// appointments always go to the underlying store.
type Store struct {
	next   availability.Store
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

var _ availability.Store = (*Store)(nil)

// New wraps next. A nil client or non-positive ttl disables caching.
func New(next availability.Store, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Store {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "cache").Logger()
	}
	return &Store{next: next, redis: client, ttl: ttl, logger: l}
}

type scheduleEntry struct {
	Schedule *model.WeeklySchedule `json:"schedule"`
}

func (s *Store) GetWeeklySchedule(ctx context.Context, ownerID string) (*model.WeeklySchedule, error) {
	key := keyPrefix + "schedule:" + ownerID
	var entry scheduleEntry
	if s.readCache(ctx, "schedule", key, &entry) {
		return entry.Schedule, nil
	}

	ws, err := s.next.GetWeeklySchedule(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, scheduleEntry{Schedule: ws})
	return ws, nil
}

func (s *Store) GetExceptions(ctx context.Context, ownerID string, from, to time.Time) ([]model.ExceptionRecord, error) {
	return s.next.GetExceptions(ctx, ownerID, from, to)
}

func (s *Store) GetService(ctx context.Context, serviceID string) (*model.Service, error) {
	key := keyPrefix + "service:" + serviceID
	var svc model.Service
	if s.readCache(ctx, "service", key, &svc) {
		return &svc, nil
	}

	out, err := s.next.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, out)
	return out, nil
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (*model.Employee, error) {
	key := keyPrefix + "employee:" + employeeID
	var emp model.Employee
	if s.readCache(ctx, "employee", key, &emp) {
		return &emp, nil
	}

	out, err := s.next.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, out)
	return out, nil
}

func (s *Store) GetEmployeesForService(ctx context.Context, businessID, serviceID string) ([]model.Employee, error) {
	key := fmt.Sprintf("%semployees:%s:%s", keyPrefix, businessID, serviceID)
	var list []model.Employee
	if s.readCache(ctx, "employees", key, &list) {
		return list, nil
	}

	out, err := s.next.GetEmployeesForService(ctx, businessID, serviceID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, out)
	return out, nil
}

func (s *Store) GetAppointments(ctx context.Context, employeeID string, from, to time.Time) ([]model.Appointment, error) {
	return s.next.GetAppointments(ctx, employeeID, from, to)
}

// Invalidate drops every cached entry. It is called after the underlying
// data changes in bulk.
func (s *Store) Invalidate(ctx context.Context) error {
	if !s.enabled() {
		return nil
	}
	var keys []string
	iter := s.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache keys: %w", err)
	}
	s.logger.Debug().Int("keys", len(keys)).Msg("cache invalidated")
	return nil
}

// Subscribe invalidates the cache whenever bus reports a change to cached
// data.
func (s *Store) Subscribe(bus *events.Bus) {
	bus.Subscribe(func(ctx context.Context, e events.Event) error {
		return s.Invalidate(ctx)
	}, events.BusinessChanged, events.ServiceChanged, events.EmployeeChanged, events.ScheduleChanged, events.ConfigApplied)
}

// Ping checks the redis connection. It is a no-op when caching is disabled.
func (s *Store) Ping(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx).Err()
}

func (s *Store) enabled() bool {
	return s.redis != nil && s.ttl > 0
}

func (s *Store) readCache(ctx context.Context, entity, key string, out any) bool {
	if !s.enabled() {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		metrics.IncCacheLookup(entity, false)
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache entry is corrupt")
		metrics.IncCacheLookup(entity, false)
		return false
	}
	metrics.IncCacheLookup(entity, true)
	return true
}

func (s *Store) writeCache(ctx context.Context, key string, val any) {
	if !s.enabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
