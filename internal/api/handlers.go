package api

import (
	"net/http"
	"strings"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/metrics"
	"slotbook/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SlotsResponse is the body of GET .../slots.
type SlotsResponse struct {
	BusinessID string           `json:"business_id"`
	ServiceID  string           `json:"service_id"`
	Date       string           `json:"date"`
	EmployeeID string           `json:"employee_id,omitempty"`
	Slots      []model.TimeSlot `json:"slots"`
	// Excluded lists employees left out because of broken schedule data.
	Excluded []string `json:"excluded_employees,omitempty"`
}

// DaysResponse is the body of GET .../days.
type DaysResponse struct {
	BusinessID string                    `json:"business_id"`
	ServiceID  string                    `json:"service_id"`
	EmployeeID string                    `json:"employee_id,omitempty"`
	Days       []availability.DaySummary `json:"days"`
	Period     struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// handleSlots returns the slots of a service on a date.
// GET /api/v1/businesses/{businessID}/services/{serviceID}/slots?date=YYYY-MM-DD[&employee_id=]
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	businessID := strings.TrimSpace(chi.URLParam(r, "businessID"))
	serviceID := strings.TrimSpace(chi.URLParam(r, "serviceID"))
	employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))

	date, err := s.parseDate("date", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.opts.Now()
	if err := s.checkBookingWindow(date, now); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.slots.GetAvailability(r.Context(), availability.Request{
		BusinessID: businessID,
		ServiceID:  serviceID,
		Date:       date,
		EmployeeID: employeeID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := SlotsResponse{
		BusinessID: businessID,
		ServiceID:  serviceID,
		Date:       date.Format(model.DateFormat),
		EmployeeID: employeeID,
		Slots:      applyLeadTime(res.Slots, date, s.leadCutoff(now)),
	}
	for _, ex := range res.Excluded {
		resp.Excluded = append(resp.Excluded, ex.EmployeeID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDays returns per-date counts of available slots.
// GET /api/v1/businesses/{businessID}/services/{serviceID}/days?from=&to=[&employee_id=]
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("days")

	businessID := strings.TrimSpace(chi.URLParam(r, "businessID"))
	serviceID := strings.TrimSpace(chi.URLParam(r, "serviceID"))
	employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))

	from, err := s.parseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := s.parseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must be before or equal to to")
		return
	}
	now := s.opts.Now()
	for _, d := range []time.Time{from, to} {
		if err := s.checkBookingWindow(d, now); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	req := availability.DaysRequest{
		BusinessID: businessID,
		ServiceID:  serviceID,
		From:       from,
		To:         to,
		EmployeeID: employeeID,
	}
	days, err := s.slots.GetAvailableDays(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Dates the lead time reaches into are recounted with it applied.
	cutoff := s.leadCutoff(now)
	for i, d := range days {
		date := from.AddDate(0, 0, i)
		if !date.Before(cutoff) || d.AvailableSlots == 0 {
			continue
		}
		res, err := s.slots.GetAvailability(r.Context(), availability.Request{
			BusinessID: businessID,
			ServiceID:  serviceID,
			Date:       date,
			EmployeeID: employeeID,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		count := 0
		for _, slot := range applyLeadTime(res.Slots, date, cutoff) {
			if slot.Available {
				count++
			}
		}
		days[i].AvailableSlots = count
	}

	resp := DaysResponse{
		BusinessID: businessID,
		ServiceID:  serviceID,
		EmployeeID: employeeID,
		Days:       days,
	}
	resp.Period.Start = from.Format(model.DateFormat)
	resp.Period.End = to.Format(model.DateFormat)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("availability request failed")
	} else {
		logger.Debug().Err(err).Str("path", r.URL.Path).Msg("availability request rejected")
	}
	writeError(w, status, err.Error())
}
