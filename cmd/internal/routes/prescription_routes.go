package routes

import (
	"ecare/cmd/internal/service"
	"ecare/cmd/internal/utils/apierror"
	"net/http"

	"github.com/labstack/echo/v4"
)

type PrescriptionService interface {
	CreatePrescription(req *service.PrescriptionRequest, sub string) (*service.PrescriptionResponse, bool, apierror.ErrorResponse)
	AddItem(prescriptionID int, req *service.PrescriptionItemRequest, sub string) (*service.PrescriptionItemResponse, bool, apierror.ErrorResponse)
	GetPrescription(id int, sub string) (*service.PrescriptionResponse, apierror.ErrorResponse)
	GetPatientPrescriptions(patientID int, sub string) ([]*service.PrescriptionResponse, apierror.ErrorResponse)
	GetDoctorPrescriptions(doctorID int, sub string) ([]*service.PrescriptionResponse, apierror.ErrorResponse)
	DeletePrescription(id int, sub string) apierror.ErrorResponse
	GetMedications() ([]*service.MedicationResponse, apierror.ErrorResponse)
	CreateMedication(req *service.MedicationRequest, sub string) (*service.MedicationResponse, apierror.ErrorResponse)
}

type DefaultPrescriptionRoute struct {
	PrescriptionService PrescriptionService
}

func NewPrescriptionDefault(prService PrescriptionService) *DefaultPrescriptionRoute {
	return &DefaultPrescriptionRoute{PrescriptionService: prService}
}

// CreatePrescription answers 201 for a new prescription and 200 when the
// local_id was already known.
func (p *DefaultPrescriptionRoute) CreatePrescription(c echo.Context) error {
	var req service.PrescriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	pr, created, apierr := p.PrescriptionService.CreatePrescription(&req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(createdStatus(created), pr)
}

func (p *DefaultPrescriptionRoute) AddItem(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	var req service.PrescriptionItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	item, created, apierr := p.PrescriptionService.AddItem(id, &req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(createdStatus(created), item)
}

func (p *DefaultPrescriptionRoute) GetPrescription(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	pr, apierr := p.PrescriptionService.GetPrescription(id, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, pr)
}

func (p *DefaultPrescriptionRoute) GetPatientPrescriptions(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	prs, apierr := p.PrescriptionService.GetPatientPrescriptions(id, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"prescriptions": prs}
	return c.JSON(http.StatusOK, &resp)
}

func (p *DefaultPrescriptionRoute) GetDoctorPrescriptions(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	prs, apierr := p.PrescriptionService.GetDoctorPrescriptions(id, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"prescriptions": prs}
	return c.JSON(http.StatusOK, &resp)
}

func (p *DefaultPrescriptionRoute) DeletePrescription(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	if apierr := p.PrescriptionService.DeletePrescription(id, sub); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusNoContent)
}

func (p *DefaultPrescriptionRoute) GetMedications(c echo.Context) error {
	meds, apierr := p.PrescriptionService.GetMedications()
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"medications": meds}
	return c.JSON(http.StatusOK, &resp)
}

func (p *DefaultPrescriptionRoute) CreateMedication(c echo.Context) error {
	var req service.MedicationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	med, apierr := p.PrescriptionService.CreateMedication(&req, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, med)
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
