// Package syncer pushes records written offline to the clinic API.
package syncer

import (
	"context"
	"ecare/cmd/internal/localstore"
	"ecare/cmd/internal/metrics"
	"ecare/cmd/internal/service"
	"ecare/cmd/internal/utils"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
)

type Result int

const (
	Success Result = iota
	Retry
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Retry:
		return "retry"
	default:
		return "failure"
	}
}

const (
	kindPrescription     = "prescription"
	kindPrescriptionItem = "prescription_item"
	kindAppointment      = "appointment"
	kindAppointmentDel   = "appointment_delete"
)

type Store interface {
	UnsyncedPrescriptions(ctx context.Context) ([]*localstore.Prescription, error)
	UnsyncedItemsOfSyncedPrescriptions(ctx context.Context) ([]*localstore.PrescriptionItem, error)
	FindPrescription(ctx context.Context, localID string) (*localstore.Prescription, error)
	MarkPrescriptionSynced(ctx context.Context, localID string, serverID int) error
	MarkPrescriptionItemSynced(ctx context.Context, localID string, serverID int) error
	PendingAppointmentCreates(ctx context.Context) ([]*localstore.Appointment, error)
	PendingAppointmentDeletes(ctx context.Context) ([]*localstore.Appointment, error)
	MarkAppointmentSynced(ctx context.Context, localID string, serverID int, status, qrCode string) error
	RemoveAppointment(ctx context.Context, localID string) error
	ReplaceMedications(ctx context.Context, meds []*localstore.Medication) error
	PendingChanges(ctx context.Context) (int, error)
	SetSyncing(ctx context.Context, syncing bool) error
	RecordSync(ctx context.Context, complete bool, pending int) error
}

type Remote interface {
	CreatePrescription(ctx context.Context, req *service.PrescriptionRequest) (*service.PrescriptionResponse, error)
	AddPrescriptionItem(ctx context.Context, prescriptionID int, req *service.PrescriptionItemRequest) (*service.PrescriptionItemResponse, error)
	CreateAppointment(ctx context.Context, req *service.AppointmentRequest) (*service.AppointmentResponse, error)
	DeleteAppointment(ctx context.Context, id int) error
	ListMedications(ctx context.Context) ([]*service.MedicationResponse, error)
}

// NotFoundFunc tells whether a remote error means the record is already
// gone on the server.
type NotFoundFunc func(err error) bool

type Worker struct {
	store    Store
	remote   Remote
	metrics  *metrics.SyncMetrics
	notFound NotFoundFunc
}

func NewWorker(store Store, remote Remote, m *metrics.SyncMetrics, notFound NotFoundFunc) *Worker {
	if notFound == nil {
		notFound = func(error) bool { return false }
	}
	return &Worker{store: store, remote: remote, metrics: m, notFound: notFound}
}

// DoWork runs one sync pass. Each record is pushed on its own so one bad
// record never blocks the others. The pass is Success only when nothing is
// left unsynced; local store errors and panics are Failure.
func (w *Worker) DoWork(ctx context.Context) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("sync run panicked: %v", r)
			result = Failure
		}
		if result == Failure {
			if err := w.store.SetSyncing(context.WithoutCancel(ctx), false); err != nil {
				log.Errorf("failed to reset sync status: %v", err)
			}
		}
		w.metrics.ObserveRun(result.String(), time.Since(start).Seconds())
	}()

	if err := w.store.SetSyncing(ctx, true); err != nil {
		log.Errorf("failed to mark sync start: %v", err)
		return Failure
	}

	failed, err := w.push(ctx)
	if err != nil {
		log.Errorf("failed to sync local changes: %v", err)
		return Failure
	}

	w.refreshMedications(ctx)

	pending, err := w.store.PendingChanges(ctx)
	if err != nil {
		log.Errorf("failed to count pending changes: %v", err)
		return Failure
	}
	w.metrics.SetPending(pending)

	complete := failed == 0 && pending == 0
	if err := w.store.RecordSync(ctx, complete, pending); err != nil {
		log.Errorf("failed to record sync status: %v", err)
		return Failure
	}

	if !complete {
		log.Infof("sync run left %d pending changes (%d failed pushes)", pending, failed)
		return Retry
	}
	return Success
}

// push returns how many records the server rejected. A non-nil error comes
// from the local store only.
func (w *Worker) push(ctx context.Context) (int, error) {
	steps := []func(context.Context) (int, error){
		w.pushPrescriptions,
		w.pushOrphanItems,
		w.pushAppointmentCreates,
		w.pushAppointmentDeletes,
	}

	failed := 0
	for _, step := range steps {
		n, err := step(ctx)
		if err != nil {
			return failed, err
		}
		failed += n
	}
	return failed, nil
}

func (w *Worker) pushPrescriptions(ctx context.Context) (int, error) {
	prs, err := w.store.UnsyncedPrescriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unsynced prescriptions: %w", err)
	}

	failed := 0
	for _, pr := range prs {
		resp, err := w.remote.CreatePrescription(ctx, toPrescriptionRequest(pr))
		if err != nil {
			log.Warnf("failed to push prescription %s: %v", pr.LocalID, err)
			w.metrics.ObserveRecord(kindPrescription, false)
			failed++
			continue
		}

		if err := w.store.MarkPrescriptionSynced(ctx, pr.LocalID, resp.ID); err != nil {
			return failed, fmt.Errorf("mark prescription %s synced: %w", pr.LocalID, err)
		}
		w.metrics.ObserveRecord(kindPrescription, true)

		// Items the server did not echo back stay unsynced and are retried
		// as items of a synced prescription.
		for _, item := range resp.Items {
			if err := w.store.MarkPrescriptionItemSynced(ctx, item.LocalID, item.ID); err != nil {
				return failed, fmt.Errorf("mark prescription item %s synced: %w", item.LocalID, err)
			}
		}
	}
	return failed, nil
}

func (w *Worker) pushOrphanItems(ctx context.Context) (int, error) {
	items, err := w.store.UnsyncedItemsOfSyncedPrescriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unsynced prescription items: %w", err)
	}

	serverIDs := map[string]int{}
	failed := 0
	for _, item := range items {
		serverID, ok := serverIDs[item.PrescriptionLocalID]
		if !ok {
			pr, err := w.store.FindPrescription(ctx, item.PrescriptionLocalID)
			if err != nil {
				return failed, fmt.Errorf("load prescription %s: %w", item.PrescriptionLocalID, err)
			}
			if pr == nil || pr.ServerID == nil {
				log.Warnf("prescription %s of item %s has no server id", item.PrescriptionLocalID, item.LocalID)
				failed++
				continue
			}
			serverID = *pr.ServerID
			serverIDs[item.PrescriptionLocalID] = serverID
		}

		resp, err := w.remote.AddPrescriptionItem(ctx, serverID, toItemRequest(item))
		if err != nil {
			log.Warnf("failed to push prescription item %s: %v", item.LocalID, err)
			w.metrics.ObserveRecord(kindPrescriptionItem, false)
			failed++
			continue
		}

		if err := w.store.MarkPrescriptionItemSynced(ctx, item.LocalID, resp.ID); err != nil {
			return failed, fmt.Errorf("mark prescription item %s synced: %w", item.LocalID, err)
		}
		w.metrics.ObserveRecord(kindPrescriptionItem, true)
	}
	return failed, nil
}

func (w *Worker) pushAppointmentCreates(ctx context.Context) (int, error) {
	appts, err := w.store.PendingAppointmentCreates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending appointments: %w", err)
	}

	failed := 0
	for _, a := range appts {
		resp, err := w.remote.CreateAppointment(ctx, toAppointmentRequest(a))
		if err != nil {
			log.Warnf("failed to push appointment %s: %v", a.LocalID, err)
			w.metrics.ObserveRecord(kindAppointment, false)
			failed++
			continue
		}

		if err := w.store.MarkAppointmentSynced(ctx, a.LocalID, resp.ID, resp.Status, resp.QRCode); err != nil {
			return failed, fmt.Errorf("mark appointment %s synced: %w", a.LocalID, err)
		}
		w.metrics.ObserveRecord(kindAppointment, true)
	}
	return failed, nil
}

func (w *Worker) pushAppointmentDeletes(ctx context.Context) (int, error) {
	appts, err := w.store.PendingAppointmentDeletes(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending appointment deletions: %w", err)
	}

	failed := 0
	for _, a := range appts {
		if a.ServerID != nil {
			err := w.remote.DeleteAppointment(ctx, *a.ServerID)
			if err != nil && !w.notFound(err) {
				log.Warnf("failed to delete appointment %s: %v", a.LocalID, err)
				w.metrics.ObserveRecord(kindAppointmentDel, false)
				failed++
				continue
			}
		}

		if err := w.store.RemoveAppointment(ctx, a.LocalID); err != nil {
			return failed, fmt.Errorf("remove appointment %s: %w", a.LocalID, err)
		}
		w.metrics.ObserveRecord(kindAppointmentDel, true)
	}
	return failed, nil
}

func (w *Worker) refreshMedications(ctx context.Context) {
	meds, err := w.remote.ListMedications(ctx)
	if err != nil {
		log.Warnf("failed to refresh medications: %v", err)
		return
	}

	rows := make([]*localstore.Medication, 0, len(meds))
	for _, m := range meds {
		rows = append(rows, &localstore.Medication{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	if err := w.store.ReplaceMedications(ctx, rows); err != nil {
		log.Warnf("failed to cache medications: %v", err)
	}
}

func toPrescriptionRequest(pr *localstore.Prescription) *service.PrescriptionRequest {
	req := &service.PrescriptionRequest{
		LocalID: pr.LocalID,
		Patient: pr.PatientID,
		Doctor:  pr.DoctorID,
		Date:    pr.Date,
		Notes:   pr.Notes,
		PDFFile: pr.PDFFile,
		Items:   make([]*service.PrescriptionItemRequest, 0, len(pr.Items)),
	}
	for i := range pr.Items {
		req.Items = append(req.Items, toItemRequest(&pr.Items[i]))
	}
	return req
}

func toItemRequest(item *localstore.PrescriptionItem) *service.PrescriptionItemRequest {
	return &service.PrescriptionItemRequest{
		LocalID:      item.LocalID,
		Medication:   item.MedicationID,
		Dosage:       item.Dosage,
		Duration:     item.Duration,
		Frequency:    item.Frequency,
		Instructions: item.Instructions,
	}
}

func toAppointmentRequest(a *localstore.Appointment) *service.AppointmentRequest {
	localID := a.LocalID
	return &service.AppointmentRequest{
		LocalID:            &localID,
		Doctor:             a.DoctorID,
		Patient:            a.PatientID,
		StartTime:          utils.FormatEpoch(a.StartsAt),
		EndTime:            utils.FormatEpoch(a.EndsAt),
		Name:               a.Name,
		Gender:             a.Gender,
		Age:                a.Age,
		ProblemDescription: a.ProblemDescription,
	}
}
