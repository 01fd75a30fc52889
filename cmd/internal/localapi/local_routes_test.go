package localapi

import (
	"context"
	"ecare/cmd/internal/localstore"
	"ecare/cmd/internal/utils/validators"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	requests atomic.Int32
}

func (s *countingSyncer) RequestImmediate() { s.requests.Add(1) }

type fixture struct {
	e      *echo.Echo
	store  *localstore.Store
	syncer *countingSyncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	v := validator.New()
	validators.Register(v)

	syncer := &countingSyncer{}
	e := echo.New()
	NewLocalDefault(store, syncer, v).Register(e)
	return &fixture{e: e, store: store, syncer: syncer}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const prescriptionBody = `{
	"patient": 1, "doctor": 10, "date": "2025-03-10",
	"items": [{"medication": 3, "dosage": " 500mg ", "duration": "7 days", "frequency": "twice a day"}]
}`

func TestQueuePrescriptionAndLateItem(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/local/prescriptions", prescriptionBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pr := decode[localstore.Prescription](t, rec)
	require.NotEmpty(t, pr.LocalID)
	assert.False(t, pr.IsSynced)
	require.Len(t, pr.Items, 1)
	assert.Equal(t, "500mg", pr.Items[0].Dosage)
	assert.Equal(t, int32(1), f.syncer.requests.Load())

	item := `{"medication": 4, "dosage": "1g", "duration": "2 days", "frequency": "once"}`
	rec = f.do(t, http.MethodPost, "/local/prescriptions/"+pr.LocalID+"/items", item)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int32(2), f.syncer.requests.Load())

	stored, err := f.store.FindPrescription(context.Background(), pr.LocalID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)

	unsynced, err := f.store.UnsyncedPrescriptions(context.Background())
	require.NoError(t, err)
	assert.Len(t, unsynced, 1, "the worker sees the queued prescription")

	rec = f.do(t, http.MethodGet, "/local/prescriptions/"+pr.LocalID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[localstore.Prescription](t, rec).Items, 2)

	rec = f.do(t, http.MethodPost, "/local/prescriptions/unknown/items", item)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int32(2), f.syncer.requests.Load())
}

func TestQueuePrescriptionRejectsInvalidBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/local/prescriptions", `{"patient": 1, "doctor": 10, "date": "10/03/2025"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/local/prescriptions", `{"patient":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	pending, err := f.store.PendingChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, f.syncer.requests.Load())
}

func TestQueueAppointment(t *testing.T) {
	f := newFixture(t)

	body := `{"doctor": 10, "patient": 1, "start_time": "2099-01-01T09:00:00Z", "end_time": "2099-01-01T09:30:00Z", "name": "Jane"}`
	rec := f.do(t, http.MethodPost, "/local/appointments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[localstore.Appointment](t, rec)
	assert.Equal(t, int64(4070941200000), appt.StartsAt)
	require.NotNil(t, appt.PendingOperation)
	assert.Equal(t, localstore.OpCreate, *appt.PendingOperation)

	creates, err := f.store.PendingAppointmentCreates(context.Background())
	require.NoError(t, err)
	assert.Len(t, creates, 1)

	// Cancelled before it was ever pushed: dropped locally.
	rec = f.do(t, http.MethodDelete, "/local/appointments/"+appt.LocalID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/local/appointments/"+appt.LocalID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int32(1), f.syncer.requests.Load())

	rec = f.do(t, http.MethodDelete, "/local/appointments/"+appt.LocalID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelPushedAppointmentQueuesDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := &localstore.Appointment{LocalID: "a-1", DoctorID: 10, PatientID: 1, StartsAt: 4070941200000, EndsAt: 4070943000000, Name: "Jane"}
	require.NoError(t, f.store.SaveAppointment(ctx, appt))
	require.NoError(t, f.store.MarkAppointmentSynced(ctx, "a-1", 7, "CONFIRMED", "qr"))

	rec := f.do(t, http.MethodDelete, "/local/appointments/a-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int32(1), f.syncer.requests.Load())

	deletes, err := f.store.PendingAppointmentDeletes(ctx)
	require.NoError(t, err)
	require.Len(t, deletes, 1)

	rec = f.do(t, http.MethodGet, "/local/appointments/a-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueAppointmentRejections(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
	}{
		{"past", "2001-01-01T09:00:00Z", "2001-01-01T09:30:00Z"},
		{"not aligned", "2099-01-01T09:10:00Z", "2099-01-01T09:40:00Z"},
		{"reversed", "2099-01-01T10:00:00Z", "2099-01-01T09:30:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := `{"doctor": 10, "patient": 1, "start_time": "` + tt.start + `", "end_time": "` + tt.end + `", "name": "Jane"}`
			rec := f.do(t, http.MethodPost, "/local/appointments", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, f.syncer.requests.Load())
		})
	}
}

func TestStatusAndMedications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.do(t, http.MethodGet, "/local/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[StatusResponse](t, rec)
	assert.Nil(t, st.LastSync)
	assert.Zero(t, st.PendingChanges)

	rec = f.do(t, http.MethodPost, "/local/prescriptions", prescriptionBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, f.store.RecordSync(ctx, true, 0))
	require.NoError(t, f.store.ReplaceMedications(ctx, []*localstore.Medication{{ID: 3, Name: "Paracetamol"}}))

	rec = f.do(t, http.MethodGet, "/local/status", "")
	st = decode[StatusResponse](t, rec)
	require.NotNil(t, st.LastSync)
	assert.Equal(t, 2, st.PendingChanges, "one prescription and its item")

	rec = f.do(t, http.MethodGet, "/local/medications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	meds := decode[struct {
		Medications []localstore.Medication `json:"medications"`
	}](t, rec)
	require.Len(t, meds.Medications, 1)
	assert.Equal(t, "Paracetamol", meds.Medications[0].Name)
}
