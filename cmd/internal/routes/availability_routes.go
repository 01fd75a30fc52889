package routes

import (
	"context"
	"ecare/cmd/internal/service"
	"ecare/cmd/internal/utils/apierror"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type AvailabilityService interface {
	GetByDoctor(doctorID int, date string) ([]*service.AvailabilityResponse, apierror.ErrorResponse)
	CreateAvailability(req *service.AvailabilityRequest, sub string) (*service.AvailabilityResponse, apierror.ErrorResponse)
	PatchAvailability(id int, req *service.AvailabilityPatchRequest, sub string) (*service.AvailabilityResponse, apierror.ErrorResponse)
	DeleteAvailability(id int, sub string) apierror.ErrorResponse
	ReplaceDay(doctorID int, req *service.DayScheduleRequest, sub string) ([]*service.AvailabilityResponse, apierror.ErrorResponse)
	GetSlots(ctx context.Context, doctorID int, date string) (*service.DaySlotsResponse, apierror.ErrorResponse)
	GetCalendar(doctorID int, month string) (*service.CalendarResponse, apierror.ErrorResponse)
}

type DefaultAvailabilityRoute struct {
	AvailabilityService AvailabilityService
}

func NewAvailabilityDefault(avService AvailabilityService) *DefaultAvailabilityRoute {
	return &DefaultAvailabilityRoute{AvailabilityService: avService}
}

func (a *DefaultAvailabilityRoute) GetByDoctor(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	avs, apierr := a.AvailabilityService.GetByDoctor(id, strings.TrimSpace(c.QueryParam("date")))
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"availabilities": avs}
	return c.JSON(http.StatusOK, &resp)
}

// GetSlots serves GET /api/doctors/:id/slots?date=YYYY-MM-DD.
func (a *DefaultAvailabilityRoute) GetSlots(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("date"))
	}

	slots, apierr := a.AvailabilityService.GetSlots(c.Request().Context(), id, date)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, slots)
}

// GetCalendar serves GET /api/doctors/:id/calendar?month=YYYY-MM.
func (a *DefaultAvailabilityRoute) GetCalendar(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	month := strings.TrimSpace(c.QueryParam("month"))
	if month == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("month"))
	}

	calendar, apierr := a.AvailabilityService.GetCalendar(id, month)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, calendar)
}

func (a *DefaultAvailabilityRoute) CreateAvailability(c echo.Context) error {
	var req service.AvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	av, apierr := a.AvailabilityService.CreateAvailability(&req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, av)
}

func (a *DefaultAvailabilityRoute) PatchAvailability(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	var req service.AvailabilityPatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	av, apierr := a.AvailabilityService.PatchAvailability(id, &req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, av)
}

func (a *DefaultAvailabilityRoute) DeleteAvailability(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	if apierr := a.AvailabilityService.DeleteAvailability(id, sub); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *DefaultAvailabilityRoute) ReplaceDay(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	var req service.DayScheduleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	avs, apierr := a.AvailabilityService.ReplaceDay(id, &req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"availabilities": avs}
	return c.JSON(http.StatusOK, &resp)
}
