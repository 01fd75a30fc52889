package syncer

import (
	"context"
	"ecare/cmd/internal/apiclient"
	"ecare/cmd/internal/localstore"
	"ecare/cmd/internal/metrics"
	"ecare/cmd/internal/service"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu     sync.Mutex
	nextID int

	failLocalIDs map[string]bool
	panicOnPush  bool
	medsErr      error
	deleteErr    error

	prescriptions []*service.PrescriptionRequest
	items         map[int][]*service.PrescriptionItemRequest
	appointments  []*service.AppointmentRequest
	deleted       []int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID:       100,
		failLocalIDs: map[string]bool{},
		items:        map[int][]*service.PrescriptionItemRequest{},
	}
}

func (f *fakeRemote) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeRemote) CreatePrescription(_ context.Context, req *service.PrescriptionRequest) (*service.PrescriptionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnPush {
		panic("boom")
	}
	if f.failLocalIDs[req.LocalID] {
		return nil, &apiclient.APIError{Status: http.StatusBadRequest, Message: "rejected"}
	}
	f.prescriptions = append(f.prescriptions, req)
	resp := &service.PrescriptionResponse{ID: f.id(), LocalID: req.LocalID}
	for _, item := range req.Items {
		resp.Items = append(resp.Items, &service.PrescriptionItemResponse{ID: f.id(), LocalID: item.LocalID})
	}
	return resp, nil
}

func (f *fakeRemote) AddPrescriptionItem(_ context.Context, prescriptionID int, req *service.PrescriptionItemRequest) (*service.PrescriptionItemResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLocalIDs[req.LocalID] {
		return nil, errors.New("connection reset")
	}
	f.items[prescriptionID] = append(f.items[prescriptionID], req)
	return &service.PrescriptionItemResponse{ID: f.id(), LocalID: req.LocalID, Prescription: prescriptionID}, nil
}

func (f *fakeRemote) CreateAppointment(_ context.Context, req *service.AppointmentRequest) (*service.AppointmentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLocalIDs[*req.LocalID] {
		return nil, &apiclient.APIError{Status: http.StatusBadRequest, Message: "No available slot for the given time."}
	}
	f.appointments = append(f.appointments, req)
	return &service.AppointmentResponse{ID: f.id(), LocalID: req.LocalID, Status: "CONFIRMED", QRCode: "qr-" + *req.LocalID}, nil
}

func (f *fakeRemote) DeleteAppointment(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRemote) ListMedications(context.Context) ([]*service.MedicationResponse, error) {
	if f.medsErr != nil {
		return nil, f.medsErr
	}
	return []*service.MedicationResponse{{ID: 1, Name: "Paracetamol"}}, nil
}

// brokenStore fails one store call.
type brokenStore struct {
	*localstore.Store
}

func (b brokenStore) MarkPrescriptionSynced(context.Context, string, int) error {
	return errors.New("disk I/O error")
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedPrescription(t *testing.T, s *localstore.Store, items int) *localstore.Prescription {
	t.Helper()
	pr := &localstore.Prescription{LocalID: uuid.NewString(), PatientID: 1, DoctorID: 10, Date: "2025-03-10"}
	for i := 0; i < items; i++ {
		pr.Items = append(pr.Items, localstore.PrescriptionItem{
			LocalID:      uuid.NewString(),
			MedicationID: 1,
			Dosage:       "500mg",
			Duration:     "5 days",
			Frequency:    "daily",
		})
	}
	require.NoError(t, s.SavePrescription(context.Background(), pr))
	return pr
}

func seedAppointment(t *testing.T, s *localstore.Store) *localstore.Appointment {
	t.Helper()
	a := &localstore.Appointment{
		LocalID:   uuid.NewString(),
		DoctorID:  10,
		PatientID: 1,
		StartsAt:  4070941200000,
		EndsAt:    4070943000000,
		Name:      "Jane Doe",
	}
	require.NoError(t, s.SaveAppointment(context.Background(), a))
	return a
}

func TestDoWorkPushesEverything(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	remote := newFakeRemote()

	var prs []*localstore.Prescription
	for i := 0; i < 3; i++ {
		prs = append(prs, seedPrescription(t, s, 2))
	}
	appt := seedAppointment(t, s)

	w := NewWorker(s, remote, metrics.NewSyncMetrics(prometheus.NewRegistry()), apiclient.IsNotFound)
	assert.Equal(t, Success, w.DoWork(ctx))

	assert.Len(t, remote.prescriptions, 3)
	for _, pr := range prs {
		got, err := s.FindPrescription(ctx, pr.LocalID)
		require.NoError(t, err)
		assert.True(t, got.IsSynced)
		require.NotNil(t, got.ServerID)
		for _, item := range got.Items {
			assert.True(t, item.IsSynced)
			assert.NotNil(t, item.ServerID)
		}
	}

	require.Len(t, remote.appointments, 1)
	assert.Equal(t, appt.LocalID, *remote.appointments[0].LocalID)
	assert.Equal(t, "2099-01-01T09:00:00Z", remote.appointments[0].StartTime)
	got, err := s.FindAppointment(ctx, appt.LocalID)
	require.NoError(t, err)
	assert.True(t, got.IsSynced)
	assert.Equal(t, "CONFIRMED", got.Status)
	assert.Equal(t, "qr-"+appt.LocalID, got.QRCode)

	meds, err := s.Medications(ctx)
	require.NoError(t, err)
	assert.Len(t, meds, 1)

	st, err := s.SyncStatus(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsSyncing)
	assert.Positive(t, st.LastSyncTimestamp)
	assert.Zero(t, st.PendingChanges)
}

func TestDoWorkOneFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	remote := newFakeRemote()

	first := seedPrescription(t, s, 1)
	bad := seedPrescription(t, s, 1)
	last := seedPrescription(t, s, 1)
	remote.failLocalIDs[bad.LocalID] = true

	w := NewWorker(s, remote, nil, nil)
	assert.Equal(t, Retry, w.DoWork(ctx))

	for _, pr := range []*localstore.Prescription{first, last} {
		got, err := s.FindPrescription(ctx, pr.LocalID)
		require.NoError(t, err)
		assert.True(t, got.IsSynced)
	}
	got, err := s.FindPrescription(ctx, bad.LocalID)
	require.NoError(t, err)
	assert.False(t, got.IsSynced)
	assert.Nil(t, got.ServerID)

	st, err := s.SyncStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.LastSyncTimestamp)
	assert.Equal(t, 2, st.PendingChanges)

	// The server accepts it on the next pass.
	delete(remote.failLocalIDs, bad.LocalID)
	assert.Equal(t, Success, w.DoWork(ctx))
}

func TestDoWorkPushesLateItems(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	remote := newFakeRemote()

	pr := seedPrescription(t, s, 0)
	w := NewWorker(s, remote, nil, nil)
	require.Equal(t, Success, w.DoWork(ctx))

	synced, err := s.FindPrescription(ctx, pr.LocalID)
	require.NoError(t, err)
	require.NotNil(t, synced.ServerID)

	item := &localstore.PrescriptionItem{
		LocalID:             uuid.NewString(),
		PrescriptionLocalID: pr.LocalID,
		MedicationID:        1,
		Dosage:              "1 tablet",
		Duration:            "3 days",
		Frequency:           "daily",
	}
	require.NoError(t, s.AddPrescriptionItem(ctx, item))

	assert.Equal(t, Success, w.DoWork(ctx))
	require.Len(t, remote.items[*synced.ServerID], 1)
	assert.Equal(t, item.LocalID, remote.items[*synced.ServerID][0].LocalID)
}

func TestDoWorkAppointmentDeletes(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	remote := newFakeRemote()
	w := NewWorker(s, remote, nil, apiclient.IsNotFound)

	a := seedAppointment(t, s)
	require.Equal(t, Success, w.DoWork(ctx))
	require.NoError(t, s.MarkAppointmentDeleted(ctx, a.LocalID))

	remote.deleteErr = errors.New("timeout")
	assert.Equal(t, Retry, w.DoWork(ctx))
	deletes, err := s.PendingAppointmentDeletes(ctx)
	require.NoError(t, err)
	assert.Len(t, deletes, 1)

	// Already gone on the server counts as deleted.
	remote.deleteErr = &apiclient.APIError{Status: http.StatusNotFound, Message: "Appointment not found"}
	assert.Equal(t, Success, w.DoWork(ctx))
	got, err := s.FindAppointment(ctx, a.LocalID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDoWorkStoreErrorIsFailure(t *testing.T) {
	s := openStore(t)
	seedPrescription(t, s, 1)

	w := NewWorker(brokenStore{Store: s}, newFakeRemote(), nil, nil)
	assert.Equal(t, Failure, w.DoWork(context.Background()))

	st, err := s.SyncStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, st.IsSyncing)
}

func TestDoWorkPanicIsFailure(t *testing.T) {
	s := openStore(t)
	seedPrescription(t, s, 0)

	remote := newFakeRemote()
	remote.panicOnPush = true

	w := NewWorker(s, remote, nil, nil)
	assert.Equal(t, Failure, w.DoWork(context.Background()))
}

func TestDoWorkMedicationRefreshFailureIsLoggedOnly(t *testing.T) {
	s := openStore(t)
	remote := newFakeRemote()
	remote.medsErr = errors.New("offline")

	w := NewWorker(s, remote, nil, nil)
	assert.Equal(t, Success, w.DoWork(context.Background()))
}
