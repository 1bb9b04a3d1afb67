package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/refresh"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

const keepaliveInterval = 30 * time.Second

type TimesheetHandler interface {
	// Employee self-service
	GetMyWeek(w http.ResponseWriter, r *http.Request)
	GetMyDay(w http.ResponseWriter, r *http.Request)
	GetMyTimeline(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
	StreamToken(w http.ResponseWriter, r *http.Request)
	ClockIn(w http.ResponseWriter, r *http.Request)
	ClockOut(w http.ResponseWriter, r *http.Request)
	StartBreak(w http.ResponseWriter, r *http.Request)
	EndBreak(w http.ResponseWriter, r *http.Request)
	RemoveBreak(w http.ResponseWriter, r *http.Request)

	// Admin
	GetEmployeeWeek(w http.ResponseWriter, r *http.Request)
	ListEntries(w http.ResponseWriter, r *http.Request)
	UpdateEntry(w http.ResponseWriter, r *http.Request)
	DeleteEntry(w http.ResponseWriter, r *http.Request)
}

// StreamSubscriber hands out per-employee invalidation channels.
type StreamSubscriber interface {
	Subscribe(employeeID string) (<-chan sse.Event, func())
}

type timesheetHandlerImpl struct {
	query        timesheet.QueryService
	commands     timesheet.CommandService
	events       StreamSubscriber
	jwtService   jwt.Service
	clock        clockwork.Clock
	tickInterval time.Duration
}

func NewTimesheetHandler(query timesheet.QueryService, commands timesheet.CommandService, events StreamSubscriber, jwtService jwt.Service, clk clockwork.Clock, tickInterval time.Duration) TimesheetHandler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	return &timesheetHandlerImpl{
		query:        query,
		commands:     commands,
		events:       events,
		jwtService:   jwtService,
		clock:        clk,
		tickInterval: tickInterval,
	}
}

// parseDate reads a YYYY-MM-DD value; an empty value means today.
func (h *timesheetHandlerImpl) parseDate(value string) (time.Time, error) {
	if value == "" {
		return h.query.Today(), nil
	}
	d, ok := validator.IsValidDate(value)
	if !ok {
		return time.Time{}, validator.ValidationErrors{{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		}}
	}
	return d, nil
}

// decodeBody decodes an optional JSON body; an empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

func optionalQuery(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

// GetMyWeek implements TimesheetHandler.
func (h *timesheetHandlerImpl) GetMyWeek(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	h.writeWeek(w, r, employeeID)
}

// GetEmployeeWeek implements TimesheetHandler.
func (h *timesheetHandlerImpl) GetEmployeeWeek(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	if !validator.IsValidUUID(employeeID) {
		response.BadRequest(w, "Invalid employee ID", nil)
		return
	}
	h.writeWeek(w, r, employeeID)
}

func (h *timesheetHandlerImpl) writeWeek(w http.ResponseWriter, r *http.Request, employeeID string) {
	date, err := h.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.query.GetWeekSummary(r.Context(), employeeID, date)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// GetMyDay implements TimesheetHandler.
func (h *timesheetHandlerImpl) GetMyDay(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	date, err := h.parseDate(chi.URLParam(r, "date"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.query.GetDaySummary(r.Context(), employeeID, date)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// GetMyTimeline implements TimesheetHandler.
func (h *timesheetHandlerImpl) GetMyTimeline(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	date, err := h.parseDate(chi.URLParam(r, "date"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.query.GetTimeline(r.Context(), employeeID, date)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// StreamToken issues a short-lived token for the stream query string
func (h *timesheetHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	token, expiresIn, err := h.jwtService.GenerateStreamToken(employeeID)
	if err != nil {
		slog.Error("Failed to generate stream token", "employee_id", employeeID, "error", err)
		response.InternalServerError(w, "Failed to generate stream token")
		return
	}
	response.Success(w, map[string]interface{}{
		"token":      token,
		"expires_in": expiresIn,
	})
}

func writeEvent(w io.Writer, flusher http.Flusher, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// Stream pushes the day summary and timeline over SSE. Invalidations
// (poll, clock actions, manual edits) trigger a full re-fetch; ticks in
// between only move progressive segments.
func (h *timesheetHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	dateParam := r.URL.Query().Get("date")
	date, err := h.parseDate(dateParam)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	followToday := dateParam == ""

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the first read so no invalidation is missed
	events, cleanup := h.events.Subscribe(employeeID)
	defer cleanup()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	var live timesheet.Timeline

	push := func() error {
		if followToday {
			date = h.query.Today()
		}
		snap, err := h.query.Snapshot(ctx, employeeID, date)
		if err != nil {
			// keep the last good timeline and retry on the next invalidation
			slog.Warn("Failed to refresh timesheet stream", "employee_id", employeeID, "error", err)
			return writeEvent(w, flusher, "error", map[string]string{"message": "refresh failed"})
		}
		live = snap.Live
		if err := writeEvent(w, flusher, "day_summary", snap.Day); err != nil {
			return err
		}
		return writeEvent(w, flusher, "timeline", snap.Timeline)
	}

	if err := writeEvent(w, flusher, "connected", map[string]string{"status": "connected", "employee_id": employeeID}); err != nil {
		return
	}
	if err := push(); err != nil {
		return
	}

	ticker := h.clock.NewTicker(h.tickInterval)
	defer ticker.Stop()
	keepalive := h.clock.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		var err error
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Event != refresh.EventInvalidate {
				continue
			}
			err = push()

		case <-ticker.Chan():
			if len(live.Segments) == 0 {
				continue
			}
			var tick timesheet.TimelineResponse
			live, tick = h.query.Tick(live)
			err = writeEvent(w, flusher, "timeline_tick", tick)

		case <-keepalive.Chan():
			err = writeEvent(w, flusher, "ping", map[string]int64{"timestamp": h.clock.Now().Unix()})

		case <-ctx.Done():
			return
		}
		if err != nil {
			slog.Debug("Timesheet stream closed", "employee_id", employeeID, "error", err)
			return
		}
	}
}

// ClockIn implements TimesheetHandler.
func (h *timesheetHandlerImpl) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req timesheet.ClockInRequest
	if err := decodeBody(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	req.EmployeeID = employeeID

	result, err := h.commands.ClockIn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Clock in successful", result)
}

// ClockOut implements TimesheetHandler.
func (h *timesheetHandlerImpl) ClockOut(w http.ResponseWriter, r *http.Request) {
	var req timesheet.ClockOutRequest
	if err := decodeBody(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	req.EmployeeID = employeeID

	result, err := h.commands.ClockOut(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Clock out successful", result)
}

// StartBreak implements TimesheetHandler.
func (h *timesheetHandlerImpl) StartBreak(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.commands.StartBreak(r.Context(), timesheet.BreakRequest{EmployeeID: employeeID})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Break started", result)
}

// EndBreak implements TimesheetHandler.
func (h *timesheetHandlerImpl) EndBreak(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.commands.EndBreak(r.Context(), timesheet.BreakRequest{EmployeeID: employeeID})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Break ended", result)
}

// RemoveBreak implements TimesheetHandler.
func (h *timesheetHandlerImpl) RemoveBreak(w http.ResponseWriter, r *http.Request) {
	employeeID, err := jwt.EmployeeIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.commands.RemoveBreak(r.Context(), timesheet.RemoveBreakRequest{
		EmployeeID: employeeID,
		EntryID:    chi.URLParam(r, "id"),
		BreakID:    chi.URLParam(r, "breakID"),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Break removed", result)
}

// ListEntries implements TimesheetHandler.
func (h *timesheetHandlerImpl) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter := timesheet.EntryFilter{
		EmployeeID: optionalQuery(r, "employee_id"),
		StartDate:  optionalQuery(r, "start_date"),
		EndDate:    optionalQuery(r, "end_date"),
		Page:       getIntQueryParam(r, "page", 1),
		Limit:      getIntQueryParam(r, "limit", 20),
	}

	result, err := h.query.ListEntries(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, result.Entries, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

// UpdateEntry implements TimesheetHandler.
func (h *timesheetHandlerImpl) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req timesheet.UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = chi.URLParam(r, "id")

	result, err := h.commands.UpdateEntry(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Time entry updated", result)
}

// DeleteEntry implements TimesheetHandler.
func (h *timesheetHandlerImpl) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid time entry ID", nil)
		return
	}

	if err := h.commands.DeleteEntry(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}
	response.NoContent(w)
}
