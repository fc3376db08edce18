package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"slotbook/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBusinessYAML = `
businesses:
  - id: salon
    name: Salon
    schedule:
      default:
        start_time: "09:00"
        end_time: "17:00"
        lunch_start: "12:00"
        lunch_end: "13:00"
      days:
        saturday:
          start_time: "10:00"
          end_time: "14:00"
      days_off: [7]
    holidays:
      - date: "2026-01-01"
        name: New Year
    exceptions:
      - date: "2026-01-11"
        kind: modified_hours
        start_time: "10:00"
        end_time: "14:00"
    services:
      - id: haircut
        name: Haircut
        duration_minutes: 30
        buffer_after_minutes: 10
    employees:
      - id: anna
        name: Anna
        services: [haircut]
      - id: boris
        name: Boris
        services: [haircut]
        schedule:
          default:
            start_time: "12:00"
            end_time: "20:00"
        exceptions:
          - date: "2026-01-06"
            kind: unavailable
            reason: vacation
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("SLOTBOOK_TEST_REDIS", "localhost:6379")
	dbPath := filepath.Join(t.TempDir(), "nested", "slotbook.db")
	path := writeFile(t, "config.yaml", `
engine:
  granularity_minutes: 15
  timezone: Europe/Moscow
database:
  path: `+dbPath+`
redis:
  address: ${SLOTBOOK_TEST_REDIS}
  cache_ttl_seconds: 60
booking:
  min_advance_minutes: 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Granularity())
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 2*time.Hour, cfg.BookingMinAdvance())
	assert.Equal(t, 30*24*time.Hour, cfg.BookingMaxAdvance())
	assert.Equal(t, DefaultBusinessPath, cfg.BusinessConfigPath)
	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestLoad_Defaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "slotbook.db")
	cfg, err := Load(writeFile(t, "config.yaml", "database:\n  path: "+dbPath+"\n"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Granularity())
	assert.Equal(t, time.Local, cfg.Location())
	assert.Equal(t, time.Duration(0), cfg.CacheTTL())
	assert.Equal(t, 30*time.Second, cfg.ReloadInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative granularity", "engine:\n  granularity_minutes: -5\n"},
		{"unknown timezone", "engine:\n  timezone: Mars/Olympus\n"},
		{"negative rate limit", "http:\n  rate_limit_rps: -1\n"},
		{"not yaml", "engine: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadBusinessConfig(t *testing.T) {
	cfg, err := LoadBusinessConfig(writeFile(t, "business.yaml", testBusinessYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Businesses, 1)
	b := cfg.Businesses[0]

	weekly, err := b.Schedule.Weekly()
	require.NoError(t, err)
	monday := weekly.Day(model.Monday)
	assert.True(t, monday.Open)
	assert.Equal(t, "09:00", monday.OpenAt.String())
	require.NotNil(t, monday.Lunch)
	assert.Equal(t, "12:00-13:00", monday.Lunch.String())
	assert.Equal(t, "10:00", weekly.Day(model.Saturday).OpenAt.String())
	assert.Nil(t, weekly.Day(model.Saturday).Lunch)
	assert.False(t, weekly.Day(model.Sunday).Open)

	records, err := b.ExceptionRecords(time.UTC)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.KindHoliday, records[0].Kind)
	assert.Equal(t, "New Year", records[0].Reason)
	assert.Equal(t, model.KindModifiedHours, records[1].Kind)

	svc := b.Services[0].Service(b.ID)
	assert.Equal(t, model.Service{ID: "haircut", BusinessID: "salon", Name: "Haircut", Duration: 30, BufferAfter: 10}, svc)

	boris, err := b.Employees[1].Employee(b.ID)
	require.NoError(t, err)
	require.NotNil(t, boris.WorkingHours)
	assert.Equal(t, "12:00", boris.WorkingHours.Day(model.Sunday).OpenAt.String())
	anna, err := b.Employees[0].Employee(b.ID)
	require.NoError(t, err)
	assert.Nil(t, anna.WorkingHours)

	absences, err := b.Employees[1].ExceptionRecords(time.UTC)
	require.NoError(t, err)
	require.Len(t, absences, 1)
	assert.Equal(t, "boris", absences[0].OwnerID)

	assert.Equal(t, "BusinessFile: 1 businesses, 1 services, 2 employees", cfg.String())
}

func TestBusinessFile_Validate(t *testing.T) {
	valid := func() BusinessFile {
		return BusinessFile{Businesses: []BusinessConfig{{
			ID:   "salon",
			Name: "Salon",
			Schedule: ScheduleConfig{
				Default: &DayConfig{StartTime: "09:00", EndTime: "17:00"},
			},
			Services:  []ServiceConfig{{ID: "haircut", Name: "Haircut", DurationMinutes: 30}},
			Employees: []EmployeeConfig{{ID: "anna", Name: "Anna", Services: []string{"haircut"}}},
		}}}
	}

	tests := []struct {
		name    string
		mutate  func(f *BusinessFile)
		wantErr bool
	}{
		{"valid", func(*BusinessFile) {}, false},
		{"no businesses", func(f *BusinessFile) { f.Businesses = nil }, true},
		{"zero duration", func(f *BusinessFile) { f.Businesses[0].Services[0].DurationMinutes = 0 }, true},
		{"unknown service", func(f *BusinessFile) { f.Businesses[0].Employees[0].Services = []string{"massage"} }, true},
		{"duplicate id", func(f *BusinessFile) { f.Businesses[0].Employees[0].ID = "haircut" }, true},
		{"inverted hours", func(f *BusinessFile) {
			f.Businesses[0].Schedule.Default = &DayConfig{StartTime: "17:00", EndTime: "09:00"}
		}, true},
		{"lunch outside hours", func(f *BusinessFile) {
			f.Businesses[0].Schedule.Default.LunchStart = "08:00"
			f.Businesses[0].Schedule.Default.LunchEnd = "09:30"
		}, true},
		{"bad weekday", func(f *BusinessFile) {
			f.Businesses[0].Schedule.Days = map[string]*DayConfig{"funday": nil}
		}, true},
		{"bad day off", func(f *BusinessFile) { f.Businesses[0].Schedule.DaysOff = []int{8} }, true},
		{"bad holiday date", func(f *BusinessFile) {
			f.Businesses[0].Holidays = []HolidayConfig{{Date: "01.01.2026"}}
		}, true},
		{"modified hours without end", func(f *BusinessFile) {
			f.Businesses[0].Exceptions = []ExceptionConfig{{Date: "2026-01-05", Kind: "modified_hours", StartTime: "10:00"}}
		}, true},
		{"unknown exception kind", func(f *BusinessFile) {
			f.Businesses[0].Employees[0].Exceptions = []ExceptionConfig{{Date: "2026-01-05", Kind: "sick"}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(&f)
			err := f.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduleConfig_ClosedDayOverride(t *testing.T) {
	s := ScheduleConfig{
		Default: &DayConfig{StartTime: "09:00", EndTime: "17:00"},
		Days:    map[string]*DayConfig{"wed": nil},
	}
	weekly, err := s.Weekly()
	require.NoError(t, err)
	assert.False(t, weekly.Day(model.Wednesday).Open)
	assert.True(t, weekly.Day(model.Thursday).Open)
}

func TestWatchBusiness(t *testing.T) {
	path := writeFile(t, "business.yaml", testBusinessYAML)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		updates []*BusinessFile
	)
	err := WatchBusiness(ctx, path, 10*time.Millisecond, nil, func(f *BusinessFile) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, f)
	})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, updates, 1)
	mu.Unlock()

	changed := testBusinessYAML + "\n  - id: barber\n    name: Barber\n"
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 2 && len(updates[1].Businesses) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBusinessWatcher_SkipsInvalidEdit(t *testing.T) {
	path := writeFile(t, "business.yaml", testBusinessYAML)
	var applied []*BusinessFile
	w := &businessWatcher{path: path, logger: zerolog.Nop(), onUpdate: func(f *BusinessFile) {
		applied = append(applied, f)
	}}
	require.NoError(t, w.init())
	require.Len(t, applied, 1)
	assert.False(t, w.poll(), "unchanged file")

	touch := func(content string, offset time.Duration) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		mod := time.Now().Add(offset)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}

	touch("businesses: []\n", time.Minute)
	assert.False(t, w.poll())
	// The broken edit is not re-read until the file changes again.
	assert.False(t, w.poll())
	assert.Len(t, applied, 1)

	touch(testBusinessYAML+"\n  - id: barber\n    name: Barber\n", 2*time.Minute)
	assert.True(t, w.poll())
	require.Len(t, applied, 2)
	assert.Len(t, applied[1].Businesses, 2)
}

func TestWatchBusiness_InvalidInitial(t *testing.T) {
	path := writeFile(t, "business.yaml", "businesses: []\n")
	err := WatchBusiness(context.Background(), path, time.Second, nil, nil)
	assert.Error(t, err)
}
