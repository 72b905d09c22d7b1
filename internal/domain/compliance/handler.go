package compliance

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/platform/auth"
	"github.com/careflow/careflow/internal/platform/db"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, nurse
	readGroup := api.Group("/compliance", auth.RequireRole(auth.RoleAdmin, auth.RoleNurse))
	readGroup.GET("", h.Daily)
	readGroup.GET("/report", h.Report)
}

func (h *Handler) Daily(c echo.Context) error {
	tc, ok := db.TenantFromEcho(c)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant not resolved")
	}
	shiftID, err := shiftParam(c)
	if err != nil {
		return err
	}
	res, err := h.svc.CalculateScheduleCompliance(c.Request().Context(), tc, c.QueryParam("date"), shiftID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Report(c echo.Context) error {
	tc, ok := db.TenantFromEcho(c)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant not resolved")
	}
	shiftID, err := shiftParam(c)
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format != "" && format != "json" && format != "xlsx" {
		return httpError(fmt.Errorf("%w: %q", ErrInvalidFormat, format))
	}

	report, err := h.svc.Report(c.Request().Context(), tc, c.QueryParam("startDate"), c.QueryParam("endDate"), shiftID)
	if err != nil {
		return httpError(err)
	}
	if format != "xlsx" {
		return c.JSON(http.StatusOK, report)
	}

	data, err := ExportXLSX(report)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed").SetInternal(err)
	}
	filename := fmt.Sprintf("compliance_%s_%s.xlsx", report.StartDate, report.EndDate)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

func shiftParam(c echo.Context) (*uuid.UUID, error) {
	raw := c.QueryParam("shiftTemplateId")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid shiftTemplateId")
	}
	return &id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrIncompleteRange),
		errors.Is(err, ErrInvertedRange),
		errors.Is(err, ErrRangeTooLarge),
		errors.Is(err, ErrInvalidFormat):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "compliance unavailable").SetInternal(err)
}
