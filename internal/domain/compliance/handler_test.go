package compliance

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/db"
)

func newTenantContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
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

func TestHandler_Daily(t *testing.T) {
	store, res := seededStore()
	store.Records = append(store.Records, record(res.ID, care.RecordHydration, "07:30"))
	h := NewHandler(newTestService(store))

	c, rec := newTenantContext("/compliance?date=2026-02-04")
	if err := h.Daily(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out Result
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Metrics) != 1 || out.Metrics[0].Done != 1 {
		t.Errorf("unexpected metrics: %+v", out.Metrics)
	}
	if len(out.Origins) != 1 || out.Origins[0].Origin != OriginScheduled {
		t.Errorf("unexpected origins: %+v", out.Origins)
	}
}

func TestHandler_Daily_NullCompliance(t *testing.T) {
	store, res := seededStore()
	store.Configs = nil
	store.Records = append(store.Records, record(res.ID, care.RecordBehavior, "10:00"))
	h := NewHandler(newTestService(store))

	c, rec := newTenantContext("/compliance?date=2026-02-04")
	if err := h.Daily(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"compliance":null`) {
		t.Errorf("expected null compliance in %s", rec.Body.String())
	}
}

func TestHandler_Daily_BadRequests(t *testing.T) {
	store, _ := seededStore()
	h := NewHandler(newTestService(store))
	for _, target := range []string{
		"/compliance?date=04-02-2026",
		"/compliance?shiftTemplateId=morning",
	} {
		c, _ := newTenantContext(target)
		assertStatus(t, h.Daily(c), http.StatusBadRequest)
	}
}

func TestHandler_Report_JSON(t *testing.T) {
	store, _ := seededStore()
	h := NewHandler(newTestService(store))

	c, rec := newTenantContext("/compliance/report?startDate=2026-02-01&endDate=2026-02-02")
	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Days) != 2 || len(report.Totals) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestHandler_Report_XLSX(t *testing.T) {
	store, _ := seededStore()
	h := NewHandler(newTestService(store))

	c, rec := newTenantContext("/compliance/report?startDate=2026-02-01&endDate=2026-02-02&format=xlsx")
	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "compliance_2026-02-01_2026-02-02.xlsx") {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected workbook bytes")
	}
}

func TestHandler_Report_BadRequests(t *testing.T) {
	store, _ := seededStore()
	h := NewHandler(newTestService(store))
	for _, target := range []string{
		"/compliance/report?startDate=2026-02-01&endDate=2026-02-10",
		"/compliance/report?startDate=2026-02-01&endDate=2026-02-02&format=pdf",
		"/compliance/report?endDate=2026-02-02",
	} {
		c, _ := newTenantContext(target)
		assertStatus(t, h.Report(c), http.StatusBadRequest)
	}
}
