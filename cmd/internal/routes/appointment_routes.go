package routes

import (
	"ecare/cmd/internal/service"
	"ecare/cmd/internal/utils/apierror"
	"net/http"

	"github.com/labstack/echo/v4"
)

type AppointmentService interface {
	GetAppointment(id int, sub string) (*service.AppointmentResponse, apierror.ErrorResponse)
	GetDoctorAppointments(doctorID int, sub string) ([]*service.AppointmentResponse, apierror.ErrorResponse)
	GetPatientAppointments(patientID int, sub string) ([]*service.AppointmentResponse, apierror.ErrorResponse)
	CreateAppointment(req *service.AppointmentRequest, sub string) (*service.AppointmentResponse, apierror.ErrorResponse)
	UpdateAppointment(id int, req *service.AppointmentPatchRequest, sub string) (*service.AppointmentResponse, apierror.ErrorResponse)
	DeleteAppointment(id int, sub string) apierror.ErrorResponse
	ValidateAppointment(req *service.ValidateAppointmentRequest, sub string) (*service.AppointmentResponse, apierror.ErrorResponse)
}

type DefaultAppointmentRoute struct {
	AppointmentService AppointmentService
}

func NewAppointmentDefault(apptService AppointmentService) *DefaultAppointmentRoute {
	return &DefaultAppointmentRoute{AppointmentService: apptService}
}

func (a *DefaultAppointmentRoute) GetAppointment(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	appt, apierr := a.AppointmentService.GetAppointment(id, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, appt)
}

func (a *DefaultAppointmentRoute) GetDoctorAppointments(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	appts, apierr := a.AppointmentService.GetDoctorAppointments(id, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"appointments": appts}
	return c.JSON(http.StatusOK, &resp)
}

func (a *DefaultAppointmentRoute) GetPatientAppointments(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	appts, apierr := a.AppointmentService.GetPatientAppointments(id, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"appointments": appts}
	return c.JSON(http.StatusOK, &resp)
}

func (a *DefaultAppointmentRoute) CreateAppointment(c echo.Context) error {
	var req service.AppointmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	appt, apierr := a.AppointmentService.CreateAppointment(&req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (a *DefaultAppointmentRoute) UpdateAppointment(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	var req service.AppointmentPatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	appt, apierr := a.AppointmentService.UpdateAppointment(id, &req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, appt)
}

func (a *DefaultAppointmentRoute) DeleteAppointment(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	serr := a.AppointmentService.DeleteAppointment(id, sub)
	if serr != nil {
		return c.JSON(serr.Code(), serr)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *DefaultAppointmentRoute) ValidateAppointment(c echo.Context) error {
	var req service.ValidateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	appt, apierr := a.AppointmentService.ValidateAppointment(&req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, appt)
}
