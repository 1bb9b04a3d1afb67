package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/config"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/refresh"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	employeeA = "0192f6a0-0000-7000-8000-00000000000a"
	entryA    = "0192f6a0-0000-7000-8000-0000000000e1"
)

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

type fakeQuery struct {
	mu           sync.Mutex
	lastEmployee string
	lastDate     time.Time
	lastFilter   timesheet.EntryFilter
	snapshots    int
	ticks        int
	err          error
}

func (f *fakeQuery) record(employeeID string, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEmployee = employeeID
	f.lastDate = date
	return f.err
}

func (f *fakeQuery) GetDaySummary(ctx context.Context, employeeID string, date time.Time) (timesheet.DaySummaryResponse, error) {
	if err := f.record(employeeID, date); err != nil {
		return timesheet.DaySummaryResponse{}, err
	}
	return timesheet.DaySummaryResponse{EmployeeID: employeeID, Date: date.Format(timesheet.DateLayout), WorkedDisplay: "--"}, nil
}

func (f *fakeQuery) GetWeekSummary(ctx context.Context, employeeID string, date time.Time) (timesheet.WeekSummaryResponse, error) {
	if err := f.record(employeeID, date); err != nil {
		return timesheet.WeekSummaryResponse{}, err
	}
	return timesheet.WeekSummaryResponse{EmployeeID: employeeID, WeekStart: "2026-03-09"}, nil
}

func (f *fakeQuery) GetTimeline(ctx context.Context, employeeID string, date time.Time) (timesheet.TimelineResponse, error) {
	if err := f.record(employeeID, date); err != nil {
		return timesheet.TimelineResponse{}, err
	}
	return timesheet.TimelineResponse{EmployeeID: employeeID}, nil
}

func (f *fakeQuery) Snapshot(ctx context.Context, employeeID string, date time.Time) (timesheet.StreamSnapshot, error) {
	if err := f.record(employeeID, date); err != nil {
		return timesheet.StreamSnapshot{}, err
	}
	f.mu.Lock()
	f.snapshots++
	f.mu.Unlock()
	return timesheet.StreamSnapshot{
		Day:      timesheet.DaySummaryResponse{EmployeeID: employeeID, Status: timesheet.DayStatusInProgress},
		Timeline: timesheet.TimelineResponse{EmployeeID: employeeID},
		Live: timesheet.Timeline{
			EmployeeID: employeeID,
			Segments:   []timesheet.TimelineSegment{{Kind: timesheet.SegmentWorking, Progressive: true}},
		},
	}, nil
}

func (f *fakeQuery) Tick(live timesheet.Timeline) (timesheet.Timeline, timesheet.TimelineResponse) {
	f.mu.Lock()
	f.ticks++
	f.mu.Unlock()
	return live, timesheet.TimelineResponse{EmployeeID: live.EmployeeID}
}

func (f *fakeQuery) Today() time.Time { return today }

func (f *fakeQuery) ListEntries(ctx context.Context, filter timesheet.EntryFilter) (timesheet.ListEntriesResponse, error) {
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	return timesheet.ListEntriesResponse{
		TotalCount: 1,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: 1,
		Entries:    []timesheet.EntryResponse{{ID: entryA}},
	}, nil
}

type fakeCommands struct {
	err        error
	lastClock  timesheet.ClockInRequest
	lastRemove timesheet.RemoveBreakRequest
	lastUpdate timesheet.UpdateEntryRequest
	deleted    string
}

func (f *fakeCommands) action(employeeID string) (timesheet.ClockActionResponse, error) {
	if f.err != nil {
		return timesheet.ClockActionResponse{}, f.err
	}
	return timesheet.ClockActionResponse{Entry: timesheet.EntryResponse{ID: entryA, EmployeeID: employeeID}}, nil
}

func (f *fakeCommands) ClockIn(ctx context.Context, req timesheet.ClockInRequest) (timesheet.ClockActionResponse, error) {
	f.lastClock = req
	return f.action(req.EmployeeID)
}

func (f *fakeCommands) ClockOut(ctx context.Context, req timesheet.ClockOutRequest) (timesheet.ClockActionResponse, error) {
	return f.action(req.EmployeeID)
}

func (f *fakeCommands) StartBreak(ctx context.Context, req timesheet.BreakRequest) (timesheet.ClockActionResponse, error) {
	return f.action(req.EmployeeID)
}

func (f *fakeCommands) EndBreak(ctx context.Context, req timesheet.BreakRequest) (timesheet.ClockActionResponse, error) {
	return f.action(req.EmployeeID)
}

func (f *fakeCommands) RemoveBreak(ctx context.Context, req timesheet.RemoveBreakRequest) (timesheet.ClockActionResponse, error) {
	f.lastRemove = req
	return f.action(req.EmployeeID)
}

func (f *fakeCommands) UpdateEntry(ctx context.Context, req timesheet.UpdateEntryRequest) (timesheet.EntryResponse, error) {
	f.lastUpdate = req
	if f.err != nil {
		return timesheet.EntryResponse{}, f.err
	}
	return timesheet.EntryResponse{ID: req.ID}, nil
}

func (f *fakeCommands) DeleteEntry(ctx context.Context, id string) error {
	f.deleted = id
	return f.err
}

type routerFixture struct {
	jwt      jwt.Service
	query    *fakeQuery
	commands *fakeCommands
	trigger  *refresh.Trigger
	clock    *clockwork.FakeClock
	router   *chi.Mux
}

func newRouterFixture(t *testing.T, tick time.Duration) *routerFixture {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Name: "timesheet-test", Version: "test", Env: "test", LogLevel: "error"},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	clk := clockwork.NewFakeClockAt(today.Add(10 * time.Hour))
	f := &routerFixture{
		jwt:      jwt.NewJWTService("test-secret", "1h"),
		query:    &fakeQuery{},
		commands: &fakeCommands{},
		trigger:  refresh.NewTrigger(sse.NewHub(4), clk),
		clock:    clk,
	}
	h := NewTimesheetHandler(f.query, f.commands, f.trigger, f.jwt, clk, tick)
	f.router = NewRouter(cfg, f.jwt, h)
	return f
}

func (f *routerFixture) token(t *testing.T, admin bool) string {
	t.Helper()
	token, _, err := f.jwt.GenerateAccessToken(employeeA, admin)
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		TotalItems int64 `json:"total_items"`
	} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestTimesheetHandler_MyDay(t *testing.T) {
	f := newRouterFixture(t, time.Hour)

	rec := f.do(t, http.MethodGet, "/api/v1/timesheets/my/days/2026-03-05", "", f.token(t, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)
	assert.Equal(t, employeeA, f.query.lastEmployee)
	assert.Equal(t, "2026-03-05", f.query.lastDate.Format(timesheet.DateLayout))

	rec = f.do(t, http.MethodGet, "/api/v1/timesheets/my/days/05-03-2026", "", f.token(t, false))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Details, "date")
}

func TestTimesheetHandler_WeekDefaultsToToday(t *testing.T) {
	f := newRouterFixture(t, time.Hour)

	rec := f.do(t, http.MethodGet, "/api/v1/timesheets/my/week", "", f.token(t, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.query.lastDate.Equal(today))
}

func TestTimesheetHandler_Auth(t *testing.T) {
	f := newRouterFixture(t, time.Hour)

	rec := f.do(t, http.MethodGet, "/api/v1/timesheets/my/week", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// stream tokens are only accepted on the stream route
	stream, _, err := f.jwt.GenerateStreamToken(employeeA)
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/api/v1/timesheets/my/week", "", stream)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/timesheets/entries", "", f.token(t, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTimesheetHandler_ClockInMapsDomainErrors(t *testing.T) {
	f := newRouterFixture(t, time.Hour)

	rec := f.do(t, http.MethodPost, "/api/v1/timesheets/my/clock-in", `{"location":"HQ"}`, f.token(t, false))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, employeeA, f.commands.lastClock.EmployeeID)
	assert.Equal(t, "HQ", f.commands.lastClock.Location)

	// body is optional
	rec = f.do(t, http.MethodPost, "/api/v1/timesheets/my/clock-in", "", f.token(t, false))
	require.Equal(t, http.StatusCreated, rec.Code)

	f.commands.err = timesheet.ErrAlreadyClockedIn
	rec = f.do(t, http.MethodPost, "/api/v1/timesheets/my/clock-in", "", f.token(t, false))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CLOCKED_IN", decode(t, rec).Error.Code)

	f.commands.err = timesheet.ErrNoActiveBreak
	rec = f.do(t, http.MethodPost, "/api/v1/timesheets/my/breaks/end", "", f.token(t, false))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_ACTIVE_BREAK", decode(t, rec).Error.Code)

	f.commands.err = timesheet.ErrEntryNotOwned
	rec = f.do(t, http.MethodDelete, "/api/v1/timesheets/my/entries/"+entryA+"/breaks/b1", "", f.token(t, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, timesheet.RemoveBreakRequest{EmployeeID: employeeA, EntryID: entryA, BreakID: "b1"}, f.commands.lastRemove)
}

func TestTimesheetHandler_Admin(t *testing.T) {
	f := newRouterFixture(t, time.Hour)
	admin := f.token(t, true)

	rec := f.do(t, http.MethodGet, "/api/v1/timesheets/entries?employee_id="+employeeA+"&page=2&limit=5", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, int64(1), env.Meta.TotalItems)
	require.NotNil(t, f.query.lastFilter.EmployeeID)
	assert.Equal(t, employeeA, *f.query.lastFilter.EmployeeID)
	assert.Equal(t, 5, f.query.lastFilter.Limit)

	rec = f.do(t, http.MethodGet, "/api/v1/timesheets/employees/not-a-uuid/week", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/timesheets/employees/"+employeeA+"/week?date=2026-03-12", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-03-12", f.query.lastDate.Format(timesheet.DateLayout))

	rec = f.do(t, http.MethodPut, "/api/v1/timesheets/entries/"+entryA, `{"clock_out":"17:30"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entryA, f.commands.lastUpdate.ID)
	require.NotNil(t, f.commands.lastUpdate.ClockOut)
	assert.Equal(t, "17:30", *f.commands.lastUpdate.ClockOut)

	rec = f.do(t, http.MethodDelete, "/api/v1/timesheets/entries/"+entryA, "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, entryA, f.commands.deleted)

	f.commands.err = timesheet.ErrEntryNotFound
	rec = f.do(t, http.MethodDelete, "/api/v1/timesheets/entries/"+entryA, "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, sc *bufio.Scanner) sseEvent {
	t.Helper()
	var ev sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("stream ended before a complete event")
	return ev
}

func openStream(t *testing.T, f *routerFixture) (*bufio.Scanner, context.CancelFunc) {
	t.Helper()
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	token, _, err := f.jwt.GenerateStreamToken(employeeA)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/timesheets/my/stream?jwt="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return bufio.NewScanner(resp.Body), cancel
}

func TestTimesheetHandler_StreamRefetchesOnInvalidation(t *testing.T) {
	f := newRouterFixture(t, time.Hour)
	sc, cancel := openStream(t, f)
	defer cancel()

	assert.Equal(t, "connected", readEvent(t, sc).name)
	day := readEvent(t, sc)
	assert.Equal(t, "day_summary", day.name)
	assert.Contains(t, day.data, `"status":"in_progress"`)
	assert.Equal(t, "timeline", readEvent(t, sc).name)

	require.Eventually(t, func() bool {
		return f.trigger.Invalidate(employeeA, refresh.ReasonClockAction) > 0
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "day_summary", readEvent(t, sc).name)
	assert.Equal(t, "timeline", readEvent(t, sc).name)

	f.query.mu.Lock()
	defer f.query.mu.Unlock()
	assert.Equal(t, 2, f.query.snapshots)
	assert.True(t, f.query.lastDate.Equal(today))
}

// waitForStreamTickers blocks until the stream has armed its tick and
// keepalive tickers on the fake clock.
func waitForStreamTickers(t *testing.T, f *routerFixture) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 2))
}

func TestTimesheetHandler_StreamTicks(t *testing.T) {
	f := newRouterFixture(t, 10*time.Second)
	sc, cancel := openStream(t, f)
	defer cancel()

	for _, want := range []string{"connected", "day_summary", "timeline"} {
		assert.Equal(t, want, readEvent(t, sc).name)
	}
	waitForStreamTickers(t, f)

	f.clock.Advance(10 * time.Second)
	assert.Equal(t, "timeline_tick", readEvent(t, sc).name)
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, "timeline_tick", readEvent(t, sc).name)

	f.query.mu.Lock()
	defer f.query.mu.Unlock()
	assert.Equal(t, 1, f.query.snapshots)
	assert.Equal(t, 2, f.query.ticks)
}

func TestTimesheetHandler_StreamKeepalive(t *testing.T) {
	f := newRouterFixture(t, time.Hour)
	sc, cancel := openStream(t, f)
	defer cancel()

	for _, want := range []string{"connected", "day_summary", "timeline"} {
		assert.Equal(t, want, readEvent(t, sc).name)
	}
	waitForStreamTickers(t, f)

	f.clock.Advance(keepaliveInterval)
	ping := readEvent(t, sc)
	assert.Equal(t, "ping", ping.name)
	assert.Contains(t, ping.data, fmt.Sprintf(`"timestamp":%d`, f.clock.Now().Unix()))

	f.query.mu.Lock()
	defer f.query.mu.Unlock()
	assert.Zero(t, f.query.ticks)
}
