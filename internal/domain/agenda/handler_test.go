package agenda

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/domain/care/caretest"
	"github.com/careflow/careflow/internal/platform/db"
)

func newTestHandler(store *caretest.Store) (*Handler, *echo.Echo) {
	return NewHandler(newTestService(store)), echo.New()
}

func newTenantContext(e *echo.Echo, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(string(db.TenantKey), testTenant)
	return c, rec
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != want {
		t.Errorf("expected %d, got %d (%v)", want, he.Code, he.Message)
	}
}

func TestHandler_List(t *testing.T) {
	store := caretest.New()
	res := newResident(store, "Maria Silva")
	store.Configs = append(store.Configs, dailyConfig(res.ID, care.RecordHydration, time.Time{}, "08:00", "16:00"))
	h, e := newTestHandler(store)

	c, rec := newTenantContext(e, "/agenda?date=2026-02-04&filters=HIDRATACAO,MEDICATION&residentId="+res.ID.String())
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Items []Item `json:"items"`
		Total int    `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || len(body.Items) != 2 {
		t.Errorf("expected 2 items, got %d", body.Total)
	}
	if body.Items[0].ScheduledTime != "08:00" {
		t.Errorf("expected sorted output, got %s first", body.Items[0].ScheduledTime)
	}
}

func TestHandler_List_StatusFilter(t *testing.T) {
	store := caretest.New()
	res := newResident(store, "Maria Silva")
	store.Configs = append(store.Configs, dailyConfig(res.ID, care.RecordHydration, time.Time{}, "08:00"))
	h, e := newTestHandler(store)

	c, rec := newTenantContext(e, "/agenda?startDate=2026-02-01&endDate=2026-02-04&status=PENDING")
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 {
		t.Errorf("expected only today's pending item, got %d", body.Total)
	}
}

func TestHandler_List_BadRequests(t *testing.T) {
	h, e := newTestHandler(caretest.New())
	for _, target := range []string{
		"/agenda?date=2026-13-01",
		"/agenda?startDate=2026-02-01",
		"/agenda?startDate=2026-02-04&endDate=2026-02-01",
		"/agenda?startDate=2026-01-01&endDate=2026-06-01",
		"/agenda?filters=LAUNDRY",
		"/agenda?status=overdue",
		"/agenda?residentId=not-a-uuid",
	} {
		c, _ := newTenantContext(e, target)
		assertStatus(t, h.List(c), http.StatusBadRequest)
	}
}

func TestHandler_List_NoTenant(t *testing.T) {
	h, e := newTestHandler(caretest.New())
	req := httptest.NewRequest(http.MethodGet, "/agenda", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	assertStatus(t, h.List(c), http.StatusBadRequest)
}

func TestHandler_List_RepositoryFailure(t *testing.T) {
	store := caretest.New()
	h, e := newTestHandler(store)
	store.Err = errors.New("connection reset")

	c, _ := newTenantContext(e, "/agenda?date=2026-02-04")
	assertStatus(t, h.List(c), http.StatusInternalServerError)
}

func TestHandler_Calendar(t *testing.T) {
	store := caretest.New()
	res := newResident(store, "Maria Silva")
	store.Configs = append(store.Configs, dailyConfig(res.ID, care.RecordHydration, time.Time{}, "08:00"))
	h, e := newTestHandler(store)

	c, rec := newTenantContext(e, "/agenda/calendar?startDate=2026-02-01&endDate=2026-02-07")
	if err := h.Calendar(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var summary CalendarSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summary.Days) != 7 || summary.Totals.TotalItems != 7 {
		t.Errorf("expected 7 days with one item each, got %d days, %d items", len(summary.Days), summary.Totals.TotalItems)
	}
}

func TestHandler_DailyTasks(t *testing.T) {
	store := caretest.New()
	res := newResident(store, "Maria Silva")
	store.Configs = append(store.Configs, dailyConfig(res.ID, care.RecordHygiene, time.Time{}))
	h, e := newTestHandler(store)

	c, rec := newTenantContext(e, "/agenda/daily-tasks?date=2026-02-04")
	if err := h.DailyTasks(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tasks []DailyTask
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Higiene" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}

	c, _ = newTenantContext(e, "/agenda/daily-tasks?residentId=x")
	assertStatus(t, h.DailyTasks(c), http.StatusBadRequest)
}
