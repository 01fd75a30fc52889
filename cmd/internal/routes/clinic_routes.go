package routes

import (
	"ecare/cmd/internal/service"
	"ecare/cmd/internal/utils/apierror"
	"net/http"

	"github.com/labstack/echo/v4"
)

type ClinicService interface {
	GetClinics() ([]*service.ClinicResponse, apierror.ErrorResponse)
	GetClinic(id int) (*service.ClinicResponse, apierror.ErrorResponse)
}

type DefaultClinicRoute struct {
	ClinicService ClinicService
}

func NewClinicDefault(clinicService ClinicService) *DefaultClinicRoute {
	return &DefaultClinicRoute{ClinicService: clinicService}
}

func (cr *DefaultClinicRoute) GetClinics(c echo.Context) error {
	clinics, apierr := cr.ClinicService.GetClinics()
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"clinics": clinics}
	return c.JSON(http.StatusOK, &resp)
}

func (cr *DefaultClinicRoute) GetClinic(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	clinic, apierr := cr.ClinicService.GetClinic(id)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, clinic)
}
