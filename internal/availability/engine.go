// Package availability computes bookable slots for a service on a date,
// for one employee or across every employee able to perform it.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"slotbook/internal/metrics"
	"slotbook/internal/model"
	"slotbook/internal/schedule"
	"slotbook/internal/slots"

	"github.com/rs/zerolog"
)

const (
	modeSingle = "single"
	modeOpen   = "open"
)

// DefaultMaxConcurrency bounds per-employee fetches in open mode.
const DefaultMaxConcurrency = 8

// Options tune the engine.
type Options struct {
	// Granularity is the step between candidate starts in minutes.
	Granularity int
	// MaxConcurrency limits parallel employee pipelines in open mode.
	MaxConcurrency int
}

// Request asks for the slots of a service on a date. EmployeeID pins the
// request to one employee; empty means open mode.
type Request struct {
	BusinessID string
	ServiceID  string
	Date       time.Time
	EmployeeID string
}

// Exclusion records an employee left out of an open-mode result.
type Exclusion struct {
	EmployeeID string
	Err        error
}

// Result is a computed availability with the employees that were skipped.
type Result struct {
	Slots    []model.TimeSlot
	Excluded []Exclusion
}

// Engine orchestrates schedule resolution, slot generation and conflict
// filtering. It keeps no state between requests.
type Engine struct {
	store          Store
	granularity    int
	maxConcurrency int
	logger         zerolog.Logger
}

// NewEngine creates a new availability engine.
func NewEngine(store Store, opts Options, logger *zerolog.Logger) *Engine {
	if opts.Granularity <= 0 {
		opts.Granularity = slots.DefaultGranularity
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "availability").Logger()
	}
	return &Engine{
		store:          store,
		granularity:    opts.Granularity,
		maxConcurrency: opts.MaxConcurrency,
		logger:         l,
	}
}

// GetAvailableSlots returns the ordered slots for req.
func (e *Engine) GetAvailableSlots(ctx context.Context, req Request) ([]model.TimeSlot, error) {
	res, err := e.GetAvailability(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Slots, nil
}

// GetAvailability is GetAvailableSlots plus the list of excluded employees.
func (e *Engine) GetAvailability(ctx context.Context, req Request) (*Result, error) {
	mode := modeOpen
	if req.EmployeeID != "" {
		mode = modeSingle
	}
	started := time.Now()

	res, err := e.compute(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = errorReason(err)
	}
	metrics.ObserveAvailability(mode, outcome, time.Since(started))
	return res, err
}

func (e *Engine) compute(ctx context.Context, req Request) (*Result, error) {
	day := model.StartOfDay(req.Date)

	svc, err := e.store.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, model.Upstream("get service", err)
	}
	if svc.BusinessID != "" && req.BusinessID != "" && svc.BusinessID != req.BusinessID {
		return nil, fmt.Errorf("%w: %s in business %s", model.ErrServiceNotFound, req.ServiceID, req.BusinessID)
	}
	if err := svc.Validate(); err != nil {
		return nil, err
	}

	biz, err := e.businessContext(ctx, req.BusinessID, day)
	if err != nil {
		return nil, err
	}

	if req.EmployeeID != "" {
		return e.single(ctx, req, svc, biz, day)
	}
	return e.open(ctx, req, svc, biz, day)
}

// businessContext is the data shared by every employee of a business on a date.
type businessContext struct {
	weekly     *model.WeeklySchedule
	exceptions []model.ExceptionRecord
}

func (e *Engine) businessContext(ctx context.Context, businessID string, day time.Time) (*businessContext, error) {
	weekly, err := e.store.GetWeeklySchedule(ctx, businessID)
	if err != nil {
		return nil, model.Upstream("get business schedule", err)
	}
	exceptions, err := e.store.GetExceptions(ctx, businessID, day, day)
	if err != nil {
		return nil, model.Upstream("get business exceptions", err)
	}
	return &businessContext{weekly: weekly, exceptions: exceptions}, nil
}

func (e *Engine) single(ctx context.Context, req Request, svc *model.Service, biz *businessContext, day time.Time) (*Result, error) {
	emp, err := e.store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, model.Upstream("get employee", err)
	}
	if emp.BusinessID != "" && req.BusinessID != "" && emp.BusinessID != req.BusinessID {
		return nil, fmt.Errorf("%w: %s in business %s", model.ErrEmployeeNotFound, req.EmployeeID, req.BusinessID)
	}
	if !emp.CanPerform(svc.ID) {
		e.logger.Debug().
			Str("employee_id", emp.ID).
			Str("service_id", svc.ID).
			Msg("employee does not perform service")
		return &Result{Slots: []model.TimeSlot{}}, nil
	}

	candidates, err := e.employeeCandidates(ctx, emp, svc, biz, day)
	if err != nil {
		return nil, err
	}

	out := make([]model.TimeSlot, len(candidates))
	for i, c := range candidates {
		out[i] = model.TimeSlot{
			Time:         c.Time,
			Available:    c.Available,
			EmployeeID:   emp.ID,
			EmployeeName: emp.Name,
		}
		if c.Available {
			out[i].AvailableEmployeeCount = 1
		}
	}
	return &Result{Slots: out}, nil
}

type employeeResult struct {
	candidates []slots.Candidate
	err        error
}

func (e *Engine) open(ctx context.Context, req Request, svc *model.Service, biz *businessContext, day time.Time) (*Result, error) {
	employees, err := e.store.GetEmployeesForService(ctx, req.BusinessID, svc.ID)
	if err != nil {
		return nil, model.Upstream("get employees for service", err)
	}
	capable := employees[:0:0]
	for _, emp := range employees {
		if emp.CanPerform(svc.ID) {
			capable = append(capable, emp)
		}
	}
	if len(capable) == 0 {
		return &Result{Slots: []model.TimeSlot{}}, nil
	}
	sort.Slice(capable, func(i, j int) bool { return capable[i].ID < capable[j].ID })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]employeeResult, len(capable))
	sem := make(chan struct{}, e.maxConcurrency)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		fatalErr error
	)

	for i := range capable {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i].err = model.Upstream("wait for fetch slot", ctx.Err())
				return
			}
			defer func() { <-sem }()

			cands, err := e.employeeCandidates(ctx, &capable[i], svc, biz, day)
			results[i] = employeeResult{candidates: cands, err: err}
			if err != nil && !isDataError(err) {
				errOnce.Do(func() {
					fatalErr = err
					cancel()
				})
			}
		}(i)
	}
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}

	res := &Result{}
	merged := make(map[model.Clock]*model.TimeSlot)
	for i := range results {
		emp := &capable[i]
		if err := results[i].err; err != nil {
			if !isDataError(err) {
				// parent context cancelled before this employee started
				return nil, err
			}
			e.logger.Warn().
				Err(err).
				Str("employee_id", emp.ID).
				Str("service_id", svc.ID).
				Str("date", day.Format(model.DateFormat)).
				Msg("employee excluded from availability")
			metrics.IncEmployeeExcluded(errorReason(err))
			res.Excluded = append(res.Excluded, Exclusion{EmployeeID: emp.ID, Err: err})
			continue
		}

		for _, c := range results[i].candidates {
			slot, ok := merged[c.Time]
			if !ok {
				slot = &model.TimeSlot{Time: c.Time}
				merged[c.Time] = slot
			}
			if c.Available {
				slot.Available = true
				slot.AvailableEmployees = append(slot.AvailableEmployees, emp.Ref())
				slot.AvailableEmployeeCount = len(slot.AvailableEmployees)
			}
		}
	}

	res.Slots = make([]model.TimeSlot, 0, len(merged))
	for _, slot := range merged {
		res.Slots = append(res.Slots, *slot)
	}
	sort.Slice(res.Slots, func(i, j int) bool { return res.Slots[i].Time < res.Slots[j].Time })
	return res, nil
}

// employeeCandidates runs resolve, generate and filter for one employee.
func (e *Engine) employeeCandidates(ctx context.Context, emp *model.Employee, svc *model.Service, biz *businessContext, day time.Time) ([]slots.Candidate, error) {
	if err := emp.HoursErr(); err != nil {
		return nil, fmt.Errorf("employee %s working hours: %w", emp.ID, err)
	}
	weekly := emp.WorkingHours
	if weekly == nil {
		weekly = biz.weekly
	}

	own, err := e.store.GetExceptions(ctx, emp.ID, day, day)
	if err != nil {
		return nil, model.Upstream("get employee exceptions", err)
	}
	records := make([]model.ExceptionRecord, 0, len(biz.exceptions)+len(own))
	records = append(records, biz.exceptions...)
	records = append(records, own...)

	window, err := schedule.ResolveRecords(weekly, records, day)
	if err != nil {
		return nil, fmt.Errorf("employee %s: %w", emp.ID, err)
	}
	if window.Closed() {
		return nil, nil
	}

	candidates := slots.GenerateCandidates(window, svc.Duration, e.granularity)
	if len(candidates) == 0 {
		return nil, nil
	}

	appointments, err := e.store.GetAppointments(ctx, emp.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, model.Upstream("get appointments", err)
	}
	return slots.FilterAvailability(day, candidates, appointments, svc), nil
}

// isDataError reports errors caused by one employee's schedule data.
func isDataError(err error) bool {
	return errors.Is(err, model.ErrInvalidSchedule) || errors.Is(err, model.ErrInvalidException)
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidException):
		return "invalid_exception"
	case errors.Is(err, model.ErrInvalidSchedule):
		return "invalid_schedule"
	case errors.Is(err, model.ErrInvalidService):
		return "invalid_service"
	case errors.Is(err, model.ErrServiceNotFound):
		return "service_not_found"
	case errors.Is(err, model.ErrEmployeeNotFound):
		return "employee_not_found"
	case errors.Is(err, model.ErrUpstreamFetch):
		return "upstream_error"
	default:
		return "error"
	}
}
