package service

import (
	"ecare/cmd/internal/domain/entity"
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	"net/http"
	"strconv"
)

type PrescriptionRepository interface {
	FindByID(id int) (*entity.Prescription, error)
	FindByPatientID(id int) ([]*entity.Prescription, error)
	FindByDoctorID(id int) ([]*entity.Prescription, error)
	Upsert(pr *entity.Prescription) (*entity.Prescription, bool, error)
	UpsertItem(item *entity.PrescriptionItem) (*entity.PrescriptionItem, bool, error)
	Delete(pr *entity.Prescription) error
}

type MedicationRepository interface {
	FindAll() ([]*entity.Medication, error)
	FindByID(id int) (*entity.Medication, error)
	ExistsByName(name string) (bool, error)
	Save(med *entity.Medication) error
}

type PrescriptionItemRequest struct {
	LocalID      string `json:"local_id" validate:"required,uuid"`
	Medication   int    `json:"medication" validate:"required,min=1"`
	Dosage       string `json:"dosage" validate:"required,max=128"`
	Duration     string `json:"duration" validate:"required,max=128"`
	Frequency    string `json:"frequency" validate:"required,max=128"`
	Instructions string `json:"instructions" validate:"max=1000"`
}

type PrescriptionRequest struct {
	LocalID string                     `json:"local_id" validate:"required,uuid"`
	Patient int                        `json:"patient" validate:"required,min=1"`
	Doctor  int                        `json:"doctor" validate:"required,min=1"`
	Date    string                     `json:"date" validate:"required,isodate"`
	Notes   *string                    `json:"notes" validate:"omitempty,max=4000"`
	PDFFile *string                    `json:"pdf_file" validate:"omitempty,url"`
	Items   []*PrescriptionItemRequest `json:"items" validate:"max=50,dive"`
}

type MedicationRequest struct {
	Name        string  `json:"name" validate:"required,max=128"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type MedicationResponse struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type PrescriptionItemResponse struct {
	ID           int                 `json:"id"`
	LocalID      string              `json:"local_id"`
	Prescription int                 `json:"prescription"`
	Medication   *MedicationResponse `json:"medication,omitempty"`
	MedicationID int                 `json:"medication_id"`
	Dosage       string              `json:"dosage"`
	Duration     string              `json:"duration"`
	Frequency    string              `json:"frequency"`
	Instructions string              `json:"instructions"`
}

type PrescriptionResponse struct {
	ID        int                         `json:"id"`
	LocalID   string                      `json:"local_id"`
	Patient   int                         `json:"patient"`
	Doctor    int                         `json:"doctor"`
	Date      string                      `json:"date"`
	Notes     *string                     `json:"notes"`
	PDFFile   *string                     `json:"pdf_file"`
	Items     []*PrescriptionItemResponse `json:"items"`
	CreatedAt string                      `json:"created_at"`
	UpdatedAt string                      `json:"updated_at"`
}

type DefaultPrescriptionService struct {
	PrescriptionRepo PrescriptionRepository
	MedicationRepo   MedicationRepository
	UserRepo         UserRepository
	Validate         *validator.Validate
	Notifier         Notifier
}

func NewPrescriptionService(prRepo PrescriptionRepository, medRepo MedicationRepository, userRepo UserRepository, validate *validator.Validate, notifier Notifier) *DefaultPrescriptionService {
	return &DefaultPrescriptionService{
		PrescriptionRepo: prRepo,
		MedicationRepo:   medRepo,
		UserRepo:         userRepo,
		Validate:         validate,
		Notifier:         notifier,
	}
}

// CreatePrescription is an upsert keyed by local_id: pushing the same
// prescription twice yields one row. The bool reports whether a new
// prescription was created.
func (p *DefaultPrescriptionService) CreatePrescription(req *PrescriptionRequest, sub string) (*PrescriptionResponse, bool, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(p.UserRepo, sub)
	if apierr != nil {
		return nil, false, apierr
	}

	utils.Sanitize(req)
	if valerr := p.Validate.Struct(req); valerr != nil {
		return nil, false, apierror.FromValidationError(valerr)
	}

	if !caller.IsAdmin() && (!caller.IsDoctor() || caller.ID != req.Doctor) {
		return nil, false, apierror.ForbiddenError
	}

	items := make([]entity.PrescriptionItem, len(req.Items))
	for i, it := range req.Items {
		if apierr := p.checkMedication(it.Medication); apierr != nil {
			return nil, false, apierr
		}
		items[i] = toItemEntity(it, 0)
	}

	now := utils.NowUTC()
	pr := &entity.Prescription{
		LocalID:   req.LocalID,
		PatientID: req.Patient,
		DoctorID:  req.Doctor,
		Date:      req.Date,
		Notes:     req.Notes,
		PDFFile:   req.PDFFile,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     items,
	}

	stored, created, err := p.PrescriptionRepo.Upsert(pr)
	if errors.Is(err, entity.ErrLocalIDConflict) {
		return nil, false, apierror.LocalIDConflictError
	}
	if err != nil {
		log.Errorf("failed to upsert prescription %s: %v", req.LocalID, err)
		return nil, false, apierror.InternalServerError
	}

	if created {
		notify(p.Notifier, stored.PatientID, entity.NotifyPrescriptionCreated,
			"New prescription",
			fmt.Sprintf("A prescription dated %s was added to your file", stored.Date),
			strconv.Itoa(stored.ID))
	}
	return toPrescriptionResponse(stored), created, nil
}

func (p *DefaultPrescriptionService) AddItem(prescriptionID int, req *PrescriptionItemRequest, sub string) (*PrescriptionItemResponse, bool, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(p.UserRepo, sub)
	if apierr != nil {
		return nil, false, apierr
	}

	utils.Sanitize(req)
	if valerr := p.Validate.Struct(req); valerr != nil {
		return nil, false, apierror.FromValidationError(valerr)
	}

	pr, apierr := p.findPrescription(prescriptionID)
	if apierr != nil {
		return nil, false, apierr
	}
	if !canActAs(caller, pr.DoctorID) {
		return nil, false, apierror.ForbiddenError
	}

	if apierr := p.checkMedication(req.Medication); apierr != nil {
		return nil, false, apierr
	}

	item := toItemEntity(req, pr.ID)
	stored, created, err := p.PrescriptionRepo.UpsertItem(&item)
	if err != nil {
		log.Errorf("failed to upsert prescription item %s: %v", req.LocalID, err)
		return nil, false, apierror.InternalServerError
	}
	if stored.PrescriptionID != pr.ID {
		return nil, false, apierror.LocalIDConflictError
	}

	if created {
		notify(p.Notifier, pr.PatientID, entity.NotifyPrescriptionUpdated,
			"Prescription updated",
			fmt.Sprintf("Your prescription dated %s has a new item", pr.Date),
			strconv.Itoa(pr.ID))
	}
	return toItemResponse(stored), created, nil
}

func (p *DefaultPrescriptionService) GetPrescription(id int, sub string) (*PrescriptionResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(p.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}

	pr, apierr := p.findPrescription(id)
	if apierr != nil {
		return nil, apierr
	}
	if !canActAs(caller, pr.PatientID) && !canActAs(caller, pr.DoctorID) {
		return nil, apierror.NotFoundError
	}
	return toPrescriptionResponse(pr), nil
}

func (p *DefaultPrescriptionService) GetPatientPrescriptions(patientID int, sub string) ([]*PrescriptionResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(p.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}
	if !canActAs(caller, patientID) && !caller.IsDoctor() {
		return nil, apierror.ForbiddenError
	}

	prs, err := p.PrescriptionRepo.FindByPatientID(patientID)
	if err != nil {
		log.Errorf("failed to fetch prescriptions of patient %d: %v", patientID, err)
		return nil, apierror.InternalServerError
	}
	return toPrescriptionResponses(prs), nil
}

func (p *DefaultPrescriptionService) GetDoctorPrescriptions(doctorID int, sub string) ([]*PrescriptionResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(p.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}
	if !canActAs(caller, doctorID) {
		return nil, apierror.ForbiddenError
	}

	prs, err := p.PrescriptionRepo.FindByDoctorID(doctorID)
	if err != nil {
		log.Errorf("failed to fetch prescriptions of doctor %d: %v", doctorID, err)
		return nil, apierror.InternalServerError
	}
	return toPrescriptionResponses(prs), nil
}

func (p *DefaultPrescriptionService) DeletePrescription(id int, sub string) apierror.ErrorResponse {
	caller, apierr := lookupCaller(p.UserRepo, sub)
	if apierr != nil {
		return apierr
	}

	pr, apierr := p.findPrescription(id)
	if apierr != nil {
		return apierr
	}
	if !canActAs(caller, pr.DoctorID) {
		return apierror.ForbiddenError
	}

	if err := p.PrescriptionRepo.Delete(pr); err != nil {
		log.Errorf("failed to delete prescription %d: %v", id, err)
		return apierror.InternalServerError
	}
	return nil
}

func (p *DefaultPrescriptionService) GetMedications() ([]*MedicationResponse, apierror.ErrorResponse) {
	meds, err := p.MedicationRepo.FindAll()
	if err != nil {
		log.Errorf("failed to fetch medications: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*MedicationResponse, len(meds))
	for i, med := range meds {
		resp[i] = toMedicationResponse(med)
	}
	return resp, nil
}

func (p *DefaultPrescriptionService) CreateMedication(req *MedicationRequest, sub string) (*MedicationResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(p.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}
	if !caller.IsAdmin() && !caller.IsDoctor() {
		return nil, apierror.ForbiddenError
	}

	utils.Sanitize(req)
	if valerr := p.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	exists, err := p.MedicationRepo.ExistsByName(req.Name)
	if err != nil {
		log.Errorf("failed to check medication %q: %v", req.Name, err)
		return nil, apierror.InternalServerError
	}
	if exists {
		return nil, apierror.NewSimple(http.StatusConflict, "A medication with this name already exists")
	}

	now := utils.NowUTC()
	med := &entity.Medication{
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.MedicationRepo.Save(med); err != nil {
		log.Errorf("failed to save medication: %v", err)
		return nil, apierror.InternalServerError
	}
	return toMedicationResponse(med), nil
}

func (p *DefaultPrescriptionService) findPrescription(id int) (*entity.Prescription, apierror.ErrorResponse) {
	pr, err := p.PrescriptionRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch prescription %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if pr == nil {
		return nil, apierror.NotFoundError
	}
	return pr, nil
}

func (p *DefaultPrescriptionService) checkMedication(id int) apierror.ErrorResponse {
	med, err := p.MedicationRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch medication %d: %v", id, err)
		return apierror.InternalServerError
	}
	if med == nil {
		return apierror.UnknownMedicationError
	}
	return nil
}

func toItemEntity(req *PrescriptionItemRequest, prescriptionID int) entity.PrescriptionItem {
	return entity.PrescriptionItem{
		LocalID:        req.LocalID,
		PrescriptionID: prescriptionID,
		MedicationID:   req.Medication,
		Dosage:         req.Dosage,
		Duration:       req.Duration,
		Frequency:      req.Frequency,
		Instructions:   req.Instructions,
	}
}

func toPrescriptionResponses(prs []*entity.Prescription) []*PrescriptionResponse {
	resp := make([]*PrescriptionResponse, len(prs))
	for i, pr := range prs {
		resp[i] = toPrescriptionResponse(pr)
	}
	return resp
}

func toPrescriptionResponse(pr *entity.Prescription) *PrescriptionResponse {
	items := make([]*PrescriptionItemResponse, len(pr.Items))
	for i := range pr.Items {
		items[i] = toItemResponse(&pr.Items[i])
	}
	return &PrescriptionResponse{
		ID:        pr.ID,
		LocalID:   pr.LocalID,
		Patient:   pr.PatientID,
		Doctor:    pr.DoctorID,
		Date:      pr.Date,
		Notes:     pr.Notes,
		PDFFile:   pr.PDFFile,
		Items:     items,
		CreatedAt: utils.FormatEpoch(pr.CreatedAt),
		UpdatedAt: utils.FormatEpoch(pr.UpdatedAt),
	}
}

func toItemResponse(item *entity.PrescriptionItem) *PrescriptionItemResponse {
	resp := &PrescriptionItemResponse{
		ID:           item.ID,
		LocalID:      item.LocalID,
		Prescription: item.PrescriptionID,
		MedicationID: item.MedicationID,
		Dosage:       item.Dosage,
		Duration:     item.Duration,
		Frequency:    item.Frequency,
		Instructions: item.Instructions,
	}
	if item.Medication.ID != 0 {
		resp.Medication = toMedicationResponse(&item.Medication)
	}
	return resp
}

func toMedicationResponse(med *entity.Medication) *MedicationResponse {
	return &MedicationResponse{
		ID:          med.ID,
		Name:        med.Name,
		Description: med.Description,
		CreatedAt:   utils.FormatEpoch(med.CreatedAt),
		UpdatedAt:   utils.FormatEpoch(med.UpdatedAt),
	}
}
