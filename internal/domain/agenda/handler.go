package agenda

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/platform/auth"
	"github.com/careflow/careflow/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, nurse, caregiver
	readGroup := api.Group("/agenda", auth.RequireRole(auth.RoleAdmin, auth.RoleNurse, auth.RoleCaregiver))
	readGroup.GET("", h.List)
	readGroup.GET("/calendar", h.Calendar)
	readGroup.GET("/daily-tasks", h.DailyTasks)
}

func (h *Handler) List(c echo.Context) error {
	tc, err := tenantFrom(c)
	if err != nil {
		return err
	}
	q, err := queryFromRequest(c)
	if err != nil {
		return err
	}
	items, err := h.svc.GetAgendaItems(c.Request().Context(), tc, q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": len(items)})
}

func (h *Handler) Calendar(c echo.Context) error {
	tc, err := tenantFrom(c)
	if err != nil {
		return err
	}
	q, err := queryFromRequest(c)
	if err != nil {
		return err
	}
	summary, err := h.svc.GetCalendarSummary(c.Request().Context(), tc, q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) DailyTasks(c echo.Context) error {
	tc, err := tenantFrom(c)
	if err != nil {
		return err
	}
	residentID, err := optionalUUID(c.QueryParam("residentId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid residentId")
	}
	tasks, err := h.svc.GetDailyTasks(c.Request().Context(), tc, residentID, c.QueryParam("date"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func tenantFrom(c echo.Context) (db.TenantContext, error) {
	tc, ok := db.TenantFromEcho(c)
	if !ok {
		return db.TenantContext{}, echo.NewHTTPError(http.StatusBadRequest, "tenant not resolved")
	}
	return tc, nil
}

func queryFromRequest(c echo.Context) (Query, error) {
	q := Query{
		Date:      c.QueryParam("date"),
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
	}
	residentID, err := optionalUUID(c.QueryParam("residentId"))
	if err != nil {
		return Query{}, echo.NewHTTPError(http.StatusBadRequest, "invalid residentId")
	}
	q.ResidentID = residentID

	for _, raw := range c.QueryParams()["filters"] {
		q.Filters = append(q.Filters, strings.Split(raw, ",")...)
	}
	if s := c.QueryParam("status"); s != "" {
		status, err := ParseStatus(strings.ToLower(s))
		if err != nil {
			return Query{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		q.Status = status
	}
	return q, nil
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrIncompleteRange),
		errors.Is(err, ErrInvertedRange),
		errors.Is(err, ErrRangeTooLarge),
		errors.Is(err, ErrInvalidFilter),
		errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "agenda unavailable").SetInternal(err)
}
