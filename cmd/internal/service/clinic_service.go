package service

import (
	"ecare/cmd/internal/domain/entity"
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"

	"github.com/labstack/gommon/log"
)

type ClinicRepository interface {
	FindAll() ([]*entity.Clinic, error)
	FindByID(id int) (*entity.Clinic, error)
}

type ClinicResponse struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Phone       *string `json:"phone,omitempty"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type DefaultClinicService struct {
	ClinicRepo ClinicRepository
}

func NewClinicService(clinicRepo ClinicRepository) *DefaultClinicService {
	return &DefaultClinicService{ClinicRepo: clinicRepo}
}

func (c *DefaultClinicService) GetClinics() ([]*ClinicResponse, apierror.ErrorResponse) {
	clinics, err := c.ClinicRepo.FindAll()
	if err != nil {
		log.Errorf("failed to fetch clinics: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*ClinicResponse, len(clinics))
	for i, clinic := range clinics {
		resp[i] = toClinicResponse(clinic)
	}
	return resp, nil
}

func (c *DefaultClinicService) GetClinic(id int) (*ClinicResponse, apierror.ErrorResponse) {
	clinic, err := c.ClinicRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch clinic %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if clinic == nil {
		return nil, apierror.NotFoundError
	}
	return toClinicResponse(clinic), nil
}

func toClinicResponse(clinic *entity.Clinic) *ClinicResponse {
	return &ClinicResponse{
		ID:          clinic.ID,
		Name:        clinic.Name,
		Address:     clinic.Address,
		Phone:       clinic.Phone,
		Description: clinic.Description,
		CreatedAt:   utils.FormatEpoch(clinic.CreatedAt),
	}
}
