package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	mu    sync.Mutex
	calls map[string]int

	schedules map[string]*model.WeeklySchedule
	services  map[string]*model.Service
	employees map[string]*model.Employee
}

func newCountingStore() *countingStore {
	anna := &model.Employee{
		ID: "anna", BusinessID: "salon", Name: "Anna", ServiceIDs: []string{"haircut"},
		WorkingHours: model.MustWeeklySchedule(map[model.Weekday]model.DayRule{
			model.Monday: model.OpenDay(model.MustParseClock("09:00"), model.MustParseClock("17:00")).
				WithLunch(model.MustParseClock("12:00"), model.MustParseClock("13:00")),
		}),
	}
	return &countingStore{
		calls: make(map[string]int),
		schedules: map[string]*model.WeeklySchedule{
			"salon": model.MustWeeklySchedule(map[model.Weekday]model.DayRule{
				model.Friday: model.OpenDay(model.MustParseClock("10:00"), model.MustParseClock("18:00")),
			}),
		},
		services: map[string]*model.Service{
			"haircut": {ID: "haircut", BusinessID: "salon", Name: "Haircut", Duration: 30, BufferAfter: 5},
		},
		employees: map[string]*model.Employee{"anna": anna},
	}
}

func (c *countingStore) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
}

func (c *countingStore) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingStore) GetWeeklySchedule(_ context.Context, ownerID string) (*model.WeeklySchedule, error) {
	c.inc("schedule")
	return c.schedules[ownerID], nil
}

func (c *countingStore) GetExceptions(context.Context, string, time.Time, time.Time) ([]model.ExceptionRecord, error) {
	c.inc("exceptions")
	return nil, nil
}

func (c *countingStore) GetService(_ context.Context, id string) (*model.Service, error) {
	c.inc("service")
	if svc, ok := c.services[id]; ok {
		return svc, nil
	}
	return nil, model.ErrServiceNotFound
}

func (c *countingStore) GetEmployee(_ context.Context, id string) (*model.Employee, error) {
	c.inc("employee")
	if emp, ok := c.employees[id]; ok {
		return emp, nil
	}
	return nil, model.ErrEmployeeNotFound
}

func (c *countingStore) GetEmployeesForService(context.Context, string, string) ([]model.Employee, error) {
	c.inc("employees")
	return []model.Employee{*c.employees["anna"]}, nil
}

func (c *countingStore) GetAppointments(context.Context, string, time.Time, time.Time) ([]model.Appointment, error) {
	c.inc("appointments")
	return nil, nil
}

func setup(t *testing.T, ttl time.Duration) (*Store, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := newCountingStore()
	return New(next, client, ttl, nil), next, mr
}

func TestStore_CachesService(t *testing.T) {
	s, next, mr := setup(t, time.Minute)
	ctx := context.Background()

	first, err := s.GetService(ctx, "haircut")
	require.NoError(t, err)
	second, err := s.GetService(ctx, "haircut")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.count("service"))
	assert.True(t, mr.Exists("slotbook:service:haircut"))

	mr.FastForward(2 * time.Minute)
	_, err = s.GetService(ctx, "haircut")
	require.NoError(t, err)
	assert.Equal(t, 2, next.count("service"))
}

func TestStore_DoesNotCacheNotFound(t *testing.T) {
	s, next, _ := setup(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.GetService(ctx, "massage")
		assert.ErrorIs(t, err, model.ErrServiceNotFound)
		_, err = s.GetEmployee(ctx, "nobody")
		assert.ErrorIs(t, err, model.ErrEmployeeNotFound)
	}
	assert.Equal(t, 2, next.count("service"))
	assert.Equal(t, 2, next.count("employee"))
}

func TestStore_CachesSchedules(t *testing.T) {
	s, next, _ := setup(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ws, err := s.GetWeeklySchedule(ctx, "salon")
		require.NoError(t, err)
		require.NotNil(t, ws)
		assert.True(t, ws.Day(model.Friday).Open)
		assert.False(t, ws.Day(model.Monday).Open)

		// A missing schedule is cached as well.
		ws, err = s.GetWeeklySchedule(ctx, "boris")
		require.NoError(t, err)
		assert.Nil(t, ws)
	}
	assert.Equal(t, 2, next.count("schedule"))
}

func TestStore_EmployeeRoundTrip(t *testing.T) {
	s, next, _ := setup(t, time.Minute)
	ctx := context.Background()

	_, err := s.GetEmployee(ctx, "anna")
	require.NoError(t, err)
	cached, err := s.GetEmployee(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, 1, next.count("employee"))

	assert.Equal(t, next.employees["anna"].ServiceIDs, cached.ServiceIDs)
	require.NotNil(t, cached.WorkingHours)
	assert.Equal(t, next.employees["anna"].WorkingHours.Rules(), cached.WorkingHours.Rules())

	list, err := s.GetEmployeesForService(ctx, "salon", "haircut")
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = s.GetEmployeesForService(ctx, "salon", "haircut")
	require.NoError(t, err)
	assert.Equal(t, 1, next.count("employees"))
}

func TestStore_PassThrough(t *testing.T) {
	s, next, _ := setup(t, time.Minute)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 2; i++ {
		_, err := s.GetExceptions(ctx, "salon", now, now)
		require.NoError(t, err)
		_, err = s.GetAppointments(ctx, "anna", now, now.Add(time.Hour))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.count("exceptions"))
	assert.Equal(t, 2, next.count("appointments"))
}

func TestStore_Invalidate(t *testing.T) {
	s, next, mr := setup(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "kept"))

	_, err := s.GetService(ctx, "haircut")
	require.NoError(t, err)
	_, err = s.GetWeeklySchedule(ctx, "salon")
	require.NoError(t, err)

	require.NoError(t, s.Invalidate(ctx))
	assert.False(t, mr.Exists("slotbook:service:haircut"))
	assert.True(t, mr.Exists("other:key"))

	_, err = s.GetService(ctx, "haircut")
	require.NoError(t, err)
	assert.Equal(t, 2, next.count("service"))
}

func TestStore_Subscribe(t *testing.T) {
	s, next, mr := setup(t, time.Minute)
	ctx := context.Background()
	bus := events.NewBus(nil)
	s.Subscribe(bus)

	_, err := s.GetService(ctx, "haircut")
	require.NoError(t, err)

	// Exceptions are not cached, so their changes leave the cache alone.
	bus.Publish(ctx, events.Event{Kind: events.ExceptionChanged, OwnerID: "salon"})
	assert.True(t, mr.Exists("slotbook:service:haircut"))

	bus.Publish(ctx, events.Event{Kind: events.ServiceChanged, OwnerID: "haircut"})
	assert.False(t, mr.Exists("slotbook:service:haircut"))

	_, err = s.GetService(ctx, "haircut")
	require.NoError(t, err)
	assert.Equal(t, 2, next.count("service"))
}

func TestStore_Disabled(t *testing.T) {
	next := newCountingStore()
	s := New(next, nil, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.GetService(ctx, "haircut")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.count("service"))
	assert.NoError(t, s.Invalidate(ctx))
	assert.NoError(t, s.Ping(ctx))
}

func TestStore_RedisDown(t *testing.T) {
	s, next, mr := setup(t, time.Minute)
	ctx := context.Background()
	mr.Close()

	svc, err := s.GetService(ctx, "haircut")
	require.NoError(t, err)
	assert.Equal(t, "Haircut", svc.Name)
	assert.Equal(t, 1, next.count("service"))
	assert.Error(t, s.Ping(ctx))
}
