package service

import (
	"ecare/cmd/internal/domain/entity"
	"ecare/cmd/internal/metrics"
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"strconv"
)

type AppointmentRepository interface {
	Save(appointment *entity.Appointment) error
	FindByID(id int) (*entity.Appointment, error)
	FindByLocalID(localID string) (*entity.Appointment, error)
	FindByQRCode(code string) (*entity.Appointment, error)
	SaveIfBookable(appointment *entity.Appointment) (bool, error)
	FindOverlapping(doctorID int, from, to int64) ([]*entity.Appointment, error)
	FindByDoctorID(id int) ([]*entity.Appointment, error)
	FindByPatientID(id int) ([]*entity.Appointment, error)
	Delete(appointment *entity.Appointment) error
}

type AppointmentRequest struct {
	LocalID            *string `json:"local_id" validate:"omitempty,uuid"`
	Doctor             int     `json:"doctor" validate:"required,min=1"`
	Patient            int     `json:"patient" validate:"omitempty,min=1"`
	StartTime          string  `json:"start_time" validate:"required,iso8601"`
	EndTime            string  `json:"end_time" validate:"required,iso8601"`
	Name               string  `json:"name" validate:"required,max=128"`
	Gender             string  `json:"gender" validate:"max=16"`
	Age                string  `json:"age" validate:"max=8"`
	ProblemDescription string  `json:"problem_description" validate:"max=2000"`
}

type AppointmentPatchRequest struct {
	Status    *string `json:"status" validate:"omitempty,oneof=CONFIRMED IN_PROGRESS COMPLETED"`
	StartTime *string `json:"start_time" validate:"omitempty,iso8601"`
	EndTime   *string `json:"end_time" validate:"omitempty,iso8601"`
}

type ValidateAppointmentRequest struct {
	QRCode string `json:"qr_code" validate:"required,max=64"`
}

type AppointmentResponse struct {
	ID                 int     `json:"id"`
	LocalID            *string `json:"local_id,omitempty"`
	Doctor             int     `json:"doctor"`
	Patient            int     `json:"patient"`
	StartTime          string  `json:"start_time"`
	EndTime            string  `json:"end_time"`
	Name               string  `json:"name"`
	Gender             string  `json:"gender"`
	Age                string  `json:"age"`
	ProblemDescription string  `json:"problem_description"`
	Status             string  `json:"status"`
	QRCode             string  `json:"qr_code"`
	DoctorName         *string `json:"doctor_name"`
	DoctorSpecialty    *string `json:"doctor_specialty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

type DefaultAppointmentService struct {
	AppointmentRepo AppointmentRepository
	UserRepo        UserRepository
	Validate        *validator.Validate
	Notifier        Notifier
	Metrics         *metrics.BookingMetrics
}

func NewAppointmentService(apptRepo AppointmentRepository, userRepo UserRepository, validate *validator.Validate, notifier Notifier, m *metrics.BookingMetrics) *DefaultAppointmentService {
	return &DefaultAppointmentService{
		AppointmentRepo: apptRepo,
		UserRepo:        userRepo,
		Validate:        validate,
		Notifier:        notifier,
		Metrics:         m,
	}
}

func (a *DefaultAppointmentService) GetAppointment(id int, sub string) (*AppointmentResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}

	appt, apierr := a.findVisible(id, caller)
	if apierr != nil {
		return nil, apierr
	}
	return toAppointmentResponse(appt), nil
}

func (a *DefaultAppointmentService) GetDoctorAppointments(doctorID int, sub string) ([]*AppointmentResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}
	if !canActAs(caller, doctorID) {
		return nil, apierror.ForbiddenError
	}

	appts, err := a.AppointmentRepo.FindByDoctorID(doctorID)
	if err != nil {
		log.Errorf("failed to find appointments for doctor %d: %v", doctorID, err)
		return nil, apierror.InternalServerError
	}
	return toAppointmentResponses(appts), nil
}

func (a *DefaultAppointmentService) GetPatientAppointments(patientID int, sub string) ([]*AppointmentResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}
	if !canActAs(caller, patientID) {
		return nil, apierror.ForbiddenError
	}

	appts, err := a.AppointmentRepo.FindByPatientID(patientID)
	if err != nil {
		log.Errorf("failed to find appointments for patient %d: %v", patientID, err)
		return nil, apierror.InternalServerError
	}
	return toAppointmentResponses(appts), nil
}

// CreateAppointment books [start_time, end_time) with a doctor. The window
// must sit inside one of the doctor's availabilities and must not overlap
// another active appointment. Repeating a request with the same local_id
// returns the appointment booked the first time.
func (a *DefaultAppointmentService) CreateAppointment(req *AppointmentRequest, sub string) (*AppointmentResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}

	utils.Sanitize(req)
	if valerr := a.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	patientID := req.Patient
	if patientID == 0 {
		patientID = caller.ID
	}
	if patientID != caller.ID && !caller.IsAdmin() && !caller.IsDoctor() {
		return nil, apierror.ForbiddenError
	}

	if req.LocalID != nil {
		existing, err := a.AppointmentRepo.FindByLocalID(*req.LocalID)
		if err != nil {
			log.Errorf("failed to find appointment by local id %s: %v", *req.LocalID, err)
			return nil, apierror.InternalServerError
		}
		if existing != nil {
			if existing.PatientID != patientID || existing.DoctorID != req.Doctor {
				return nil, apierror.LocalIDConflictError
			}
			return toAppointmentResponse(existing), nil
		}
	}

	begin, end, apierr := parseWindow(req.StartTime, req.EndTime)
	if apierr != nil {
		return nil, apierr
	}

	if !isFuture(begin) {
		return nil, apierror.AppointmentInPastError
	}

	doctor, apierr := a.findDoctor(req.Doctor)
	if apierr != nil {
		return nil, apierr
	}

	now := utils.NowUTC()
	appointment := &entity.Appointment{
		LocalID:            req.LocalID,
		DoctorID:           doctor.ID,
		PatientID:          patientID,
		StartsAt:           begin,
		EndsAt:             end,
		Name:               req.Name,
		Gender:             req.Gender,
		Age:                req.Age,
		ProblemDescription: req.ProblemDescription,
		Status:             entity.StatusConfirmed,
		QRCode:             uuid.NewString(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	booked, err := a.AppointmentRepo.SaveIfBookable(appointment)
	if err != nil {
		log.Errorf("failed to save appointment: %v", err)
		return nil, apierror.InternalServerError
	}
	if !booked {
		a.Metrics.ObserveBooking("rejected")
		return nil, apierror.NoAvailableSlotError
	}
	a.Metrics.ObserveBooking("booked")
	appointment.Doctor = *doctor

	notify(a.Notifier, patientID, entity.NotifyAppointmentConfirmed,
		"Appointment confirmed",
		fmt.Sprintf("Your appointment with %s on %s is confirmed", doctor.Username, utils.FormatEpoch(begin)),
		strconv.Itoa(appointment.ID))
	return toAppointmentResponse(appointment), nil
}

// UpdateAppointment sets the status and/or moves the appointment. Any
// status may follow any other, but only the doctor or an admin sets it.
// Moving re-checks availability.
func (a *DefaultAppointmentService) UpdateAppointment(id int, req *AppointmentPatchRequest, sub string) (*AppointmentResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}

	if valerr := a.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	appt, apierr := a.findVisible(id, caller)
	if apierr != nil {
		return nil, apierr
	}
	if req.Status != nil && !caller.IsAdmin() && caller.ID != appt.DoctorID {
		return nil, apierror.ForbiddenError
	}

	rescheduled := false
	if req.StartTime != nil || req.EndTime != nil {
		start, end := utils.FormatEpoch(appt.StartsAt), utils.FormatEpoch(appt.EndsAt)
		if req.StartTime != nil {
			start = *req.StartTime
		}
		if req.EndTime != nil {
			end = *req.EndTime
		}

		begin, finish, apierr := parseWindow(start, end)
		if apierr != nil {
			return nil, apierr
		}
		if begin != appt.StartsAt || finish != appt.EndsAt {
			appt.StartsAt, appt.EndsAt = begin, finish
			rescheduled = true
		}
	}

	if req.Status != nil {
		appt.Status = entity.AppointmentStatus(*req.Status)
	}

	appt.UpdatedAt = utils.NowUTC()
	if rescheduled {
		booked, err := a.AppointmentRepo.SaveIfBookable(appt)
		if err != nil {
			log.Errorf("failed to reschedule appointment %d: %v", id, err)
			return nil, apierror.InternalServerError
		}
		if !booked {
			return nil, apierror.NoAvailableSlotError
		}
	} else if err := a.AppointmentRepo.Save(appt); err != nil {
		log.Errorf("failed to update appointment %d: %v", id, err)
		return nil, apierror.InternalServerError
	}

	if rescheduled {
		notify(a.Notifier, appt.PatientID, entity.NotifyAppointmentRescheduled,
			"Appointment rescheduled",
			fmt.Sprintf("Your appointment now starts at %s", utils.FormatEpoch(appt.StartsAt)),
			strconv.Itoa(appt.ID))
	}
	return toAppointmentResponse(appt), nil
}

func (a *DefaultAppointmentService) DeleteAppointment(id int, sub string) apierror.ErrorResponse {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return apierr
	}

	appt, apierr := a.findVisible(id, caller)
	if apierr != nil {
		return apierr
	}

	appt.UpdatedAt = utils.NowUTC()
	err := a.AppointmentRepo.Delete(appt)
	if err != nil {
		log.Errorf("failed to delete appointment by id %d: %v", id, err)
		return apierror.InternalServerError
	}

	notify(a.Notifier, appt.PatientID, entity.NotifyAppointmentCanceled,
		"Appointment canceled",
		fmt.Sprintf("Your appointment on %s was canceled", utils.FormatEpoch(appt.StartsAt)),
		strconv.Itoa(appt.ID))
	return nil
}

// ValidateAppointment checks a patient in by the QR code shown at the
// clinic; only the appointment's doctor may do it.
func (a *DefaultAppointmentService) ValidateAppointment(req *ValidateAppointmentRequest, sub string) (*AppointmentResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}

	utils.Sanitize(req)
	if valerr := a.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	appt, err := a.AppointmentRepo.FindByQRCode(req.QRCode)
	if err != nil {
		log.Errorf("failed to find appointment by qr code: %v", err)
		return nil, apierror.InternalServerError
	}
	if appt == nil {
		return nil, apierror.AppointmentQRNotFound
	}
	if !canActAs(caller, appt.DoctorID) {
		return nil, apierror.ForbiddenError
	}

	appt.Status = entity.StatusInProgress
	appt.UpdatedAt = utils.NowUTC()
	if err := a.AppointmentRepo.Save(appt); err != nil {
		log.Errorf("failed to validate appointment %d: %v", appt.ID, err)
		return nil, apierror.InternalServerError
	}
	return toAppointmentResponse(appt), nil
}

func (a *DefaultAppointmentService) findDoctor(id int) (*entity.User, apierror.ErrorResponse) {
	doctor, err := a.UserRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch doctor %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if doctor == nil || !doctor.IsDoctor() {
		return nil, apierror.NotADoctorError
	}
	return doctor, nil
}

// findVisible loads an active appointment the caller takes part in.
func (a *DefaultAppointmentService) findVisible(id int, caller *entity.User) (*entity.Appointment, apierror.ErrorResponse) {
	appt, err := a.AppointmentRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch appointment by id %d: %v", id, err)
		return nil, apierror.InternalServerError
	}

	if appt == nil || appt.IsDeleted {
		return nil, apierror.NotFoundError
	}
	if !caller.IsAdmin() && appt.PatientID != caller.ID && appt.DoctorID != caller.ID {
		return nil, apierror.NotFoundError
	}
	return appt, nil
}

func isFuture(millis int64) bool {
	now := utils.NowUTC()
	return millis > now
}

func toAppointmentResponses(appts []*entity.Appointment) []*AppointmentResponse {
	resp := make([]*AppointmentResponse, len(appts))
	for i, appt := range appts {
		resp[i] = toAppointmentResponse(appt)
	}
	return resp
}

func toAppointmentResponse(appt *entity.Appointment) *AppointmentResponse {
	resp := &AppointmentResponse{
		ID:                 appt.ID,
		LocalID:            appt.LocalID,
		Doctor:             appt.DoctorID,
		Patient:            appt.PatientID,
		StartTime:          utils.FormatEpoch(appt.StartsAt),
		EndTime:            utils.FormatEpoch(appt.EndsAt),
		Name:               appt.Name,
		Gender:             appt.Gender,
		Age:                appt.Age,
		ProblemDescription: appt.ProblemDescription,
		Status:             string(appt.Status),
		QRCode:             appt.QRCode,
		CreatedAt:          utils.FormatEpoch(appt.CreatedAt),
		UpdatedAt:          utils.FormatEpoch(appt.UpdatedAt),
	}
	if appt.Doctor.ID != 0 {
		name := appt.Doctor.Username
		resp.DoctorName = &name
		resp.DoctorSpecialty = appt.Doctor.Specialty
	}
	return resp
}
