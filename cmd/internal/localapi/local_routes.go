// Package localapi is the loopback HTTP surface of the sync agent. Writes
// made here land in the local store first and reach the server on the next
// sync run.
package localapi

import (
	"context"
	"ecare/cmd/internal/localstore"
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type LocalStore interface {
	SavePrescription(ctx context.Context, pr *localstore.Prescription) error
	AddPrescriptionItem(ctx context.Context, item *localstore.PrescriptionItem) error
	FindPrescription(ctx context.Context, localID string) (*localstore.Prescription, error)
	SaveAppointment(ctx context.Context, a *localstore.Appointment) error
	FindAppointment(ctx context.Context, localID string) (*localstore.Appointment, error)
	MarkAppointmentDeleted(ctx context.Context, localID string) error
	Medications(ctx context.Context) ([]*localstore.Medication, error)
	SyncStatus(ctx context.Context) (*localstore.SyncStatus, error)
	PendingChanges(ctx context.Context) (int, error)
}

// Syncer is told about every queued change.
type Syncer interface {
	RequestImmediate()
}

type PrescriptionItemRequest struct {
	Medication   int    `json:"medication" validate:"required,min=1"`
	Dosage       string `json:"dosage" validate:"required,max=128"`
	Duration     string `json:"duration" validate:"required,max=128"`
	Frequency    string `json:"frequency" validate:"required,max=128"`
	Instructions string `json:"instructions" validate:"max=1000"`
}

type PrescriptionRequest struct {
	Patient int                        `json:"patient" validate:"required,min=1"`
	Doctor  int                        `json:"doctor" validate:"required,min=1"`
	Date    string                     `json:"date" validate:"required,isodate"`
	Notes   *string                    `json:"notes" validate:"omitempty,max=4000"`
	PDFFile *string                    `json:"pdf_file" validate:"omitempty,url"`
	Items   []*PrescriptionItemRequest `json:"items" validate:"max=50,dive"`
}

type AppointmentRequest struct {
	Doctor             int    `json:"doctor" validate:"required,min=1"`
	Patient            int    `json:"patient" validate:"required,min=1"`
	StartTime          string `json:"start_time" validate:"required,iso8601"`
	EndTime            string `json:"end_time" validate:"required,iso8601"`
	Name               string `json:"name" validate:"required,max=128"`
	Gender             string `json:"gender" validate:"max=16"`
	Age                string `json:"age" validate:"max=8"`
	ProblemDescription string `json:"problem_description" validate:"max=2000"`
}

type StatusResponse struct {
	LastSync       *string `json:"last_sync"`
	IsSyncing      bool    `json:"is_syncing"`
	PendingChanges int     `json:"pending_changes"`
}

type DefaultLocalRoute struct {
	Store    LocalStore
	Syncer   Syncer
	Validate *validator.Validate
}

func NewLocalDefault(store LocalStore, syncer Syncer, validate *validator.Validate) *DefaultLocalRoute {
	return &DefaultLocalRoute{Store: store, Syncer: syncer, Validate: validate}
}

// Register mounts the local routes under /local.
func (l *DefaultLocalRoute) Register(e *echo.Echo) {
	g := e.Group("/local")
	g.POST("/prescriptions", l.CreatePrescription)
	g.GET("/prescriptions/:local_id", l.GetPrescription)
	g.POST("/prescriptions/:local_id/items", l.AddPrescriptionItem)
	g.POST("/appointments", l.CreateAppointment)
	g.GET("/appointments/:local_id", l.GetAppointment)
	g.DELETE("/appointments/:local_id", l.DeleteAppointment)
	g.GET("/medications", l.GetMedications)
	g.GET("/status", l.GetStatus)
}

func (l *DefaultLocalRoute) CreatePrescription(c echo.Context) error {
	var req PrescriptionRequest
	if apierr := l.bind(c, &req); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	pr := &localstore.Prescription{
		LocalID:   uuid.NewString(),
		PatientID: req.Patient,
		DoctorID:  req.Doctor,
		Date:      req.Date,
		Notes:     req.Notes,
		PDFFile:   req.PDFFile,
	}
	for _, it := range req.Items {
		if it == nil {
			continue
		}
		utils.Sanitize(it)
		pr.Items = append(pr.Items, toItem(it, pr.LocalID))
	}

	if err := l.Store.SavePrescription(c.Request().Context(), pr); err != nil {
		log.Errorf("failed to queue prescription: %v", err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	l.Syncer.RequestImmediate()
	return c.JSON(http.StatusCreated, pr)
}

func (l *DefaultLocalRoute) GetPrescription(c echo.Context) error {
	pr, err := l.Store.FindPrescription(c.Request().Context(), c.Param("local_id"))
	if err != nil {
		log.Errorf("failed to find local prescription %s: %v", c.Param("local_id"), err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	if pr == nil {
		return c.JSON(http.StatusNotFound, apierror.NotFoundError)
	}
	return c.JSON(http.StatusOK, pr)
}

// AddPrescriptionItem queues an item for a prescription that may or may not
// have reached the server yet.
func (l *DefaultLocalRoute) AddPrescriptionItem(c echo.Context) error {
	ctx := c.Request().Context()
	localID := c.Param("local_id")

	var req PrescriptionItemRequest
	if apierr := l.bind(c, &req); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	pr, err := l.Store.FindPrescription(ctx, localID)
	if err != nil {
		log.Errorf("failed to find local prescription %s: %v", localID, err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	if pr == nil {
		return c.JSON(http.StatusNotFound, apierror.NotFoundError)
	}

	item := toItem(&req, pr.LocalID)
	if err := l.Store.AddPrescriptionItem(ctx, &item); err != nil {
		log.Errorf("failed to queue item for prescription %s: %v", localID, err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	l.Syncer.RequestImmediate()
	return c.JSON(http.StatusCreated, item)
}

// CreateAppointment queues a booking. Only the window shape is checked
// here; the server decides availability when the booking is pushed.
func (l *DefaultLocalRoute) CreateAppointment(c echo.Context) error {
	var req AppointmentRequest
	if apierr := l.bind(c, &req); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	begin, end, apierr := parseWindow(req.StartTime, req.EndTime)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	appt := &localstore.Appointment{
		LocalID:            uuid.NewString(),
		DoctorID:           req.Doctor,
		PatientID:          req.Patient,
		StartsAt:           begin,
		EndsAt:             end,
		Name:               req.Name,
		Gender:             req.Gender,
		Age:                req.Age,
		ProblemDescription: req.ProblemDescription,
	}
	if err := l.Store.SaveAppointment(c.Request().Context(), appt); err != nil {
		log.Errorf("failed to queue appointment: %v", err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	l.Syncer.RequestImmediate()
	return c.JSON(http.StatusCreated, appt)
}

func (l *DefaultLocalRoute) GetAppointment(c echo.Context) error {
	appt, err := l.Store.FindAppointment(c.Request().Context(), c.Param("local_id"))
	if err != nil {
		log.Errorf("failed to find local appointment %s: %v", c.Param("local_id"), err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	if appt == nil || (appt.PendingOperation != nil && *appt.PendingOperation == localstore.OpDelete) {
		return c.JSON(http.StatusNotFound, apierror.NotFoundError)
	}
	return c.JSON(http.StatusOK, appt)
}

func (l *DefaultLocalRoute) DeleteAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	localID := c.Param("local_id")

	appt, err := l.Store.FindAppointment(ctx, localID)
	if err != nil {
		log.Errorf("failed to find local appointment %s: %v", localID, err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	if appt == nil {
		return c.JSON(http.StatusNotFound, apierror.NotFoundError)
	}

	if err := l.Store.MarkAppointmentDeleted(ctx, localID); err != nil {
		log.Errorf("failed to cancel local appointment %s: %v", localID, err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	if appt.ServerID != nil {
		l.Syncer.RequestImmediate()
	}
	return c.NoContent(http.StatusNoContent)
}

func (l *DefaultLocalRoute) GetMedications(c echo.Context) error {
	meds, err := l.Store.Medications(c.Request().Context())
	if err != nil {
		log.Errorf("failed to list cached medications: %v", err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	return c.JSON(http.StatusOK, map[string]any{"medications": meds})
}

// GetStatus reports the last completed sync and the live count of queued
// rows, which may be ahead of what the last run recorded.
func (l *DefaultLocalRoute) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := l.Store.SyncStatus(ctx)
	if err != nil {
		log.Errorf("failed to read sync status: %v", err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}
	pending, err := l.Store.PendingChanges(ctx)
	if err != nil {
		log.Errorf("failed to count pending changes: %v", err)
		return c.JSON(http.StatusInternalServerError, apierror.InternalServerError)
	}

	resp := &StatusResponse{IsSyncing: st.IsSyncing, PendingChanges: pending}
	if st.LastSyncTimestamp != 0 {
		last := utils.FormatEpoch(st.LastSyncTimestamp)
		resp.LastSync = &last
	}
	return c.JSON(http.StatusOK, resp)
}

func (l *DefaultLocalRoute) bind(c echo.Context, req any) apierror.ErrorResponse {
	if err := c.Bind(req); err != nil {
		return apierror.MalformedBodyError
	}
	utils.Sanitize(req)
	if valerr := l.Validate.Struct(req); valerr != nil {
		return apierror.FromValidationError(valerr)
	}
	return nil
}

// parseWindow rejects what the server would refuse anyway, so a booking that
// can never be pushed is not queued.
func parseWindow(start, end string) (int64, int64, apierror.ErrorResponse) {
	begin, err := utils.FromEpoch(start)
	if err != nil {
		return 0, 0, apierror.MalformedBodyError
	}
	finish, err := utils.FromEpoch(end)
	if err != nil {
		return 0, 0, apierror.MalformedBodyError
	}
	if begin >= finish {
		return 0, 0, apierror.InvalidTimeRangeError
	}
	if !utils.IsHalfHourAligned(begin) || !utils.IsHalfHourAligned(finish) {
		return 0, 0, apierror.SlotNotAlignedError
	}
	if begin <= utils.NowUTC() {
		return 0, 0, apierror.AppointmentInPastError
	}
	return begin, finish, nil
}

func toItem(req *PrescriptionItemRequest, prescriptionLocalID string) localstore.PrescriptionItem {
	return localstore.PrescriptionItem{
		LocalID:             uuid.NewString(),
		PrescriptionLocalID: prescriptionLocalID,
		MedicationID:        req.Medication,
		Dosage:              req.Dosage,
		Duration:            req.Duration,
		Frequency:           req.Frequency,
		Instructions:        req.Instructions,
	}
}
