package service

import (
	"context"
	"ecare/cmd/internal/domain/entity"
	"ecare/cmd/internal/utils/apierror"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

type availabilityFixture struct {
	svc   *DefaultAvailabilityService
	avs   *fakeAvailabilityRepo
	appts *fakeAppointmentRepo
}

func newAvailabilityFixture() *availabilityFixture {
	avs := &fakeAvailabilityRepo{}
	appts := newFakeAppointmentRepo(avs)
	users := newFakeUserRepo(patient, doctor, stranger)
	svc := NewAvailabilityService(avs, appts, users, newValidate(), time.UTC)
	return &availabilityFixture{svc: svc, avs: avs, appts: appts}
}

func TestReplaceDayGroupsConsecutiveSlots(t *testing.T) {
	f := newAvailabilityFixture()
	f.avs.add(doctor.ID, day(8, 0).UnixMilli(), day(9, 0).UnixMilli())
	nextDay := f.avs.add(doctor.ID, day(8, 0).Add(24*time.Hour).UnixMilli(), day(9, 0).Add(24*time.Hour).UnixMilli())
	otherDoctor := f.avs.add(stranger.ID, day(8, 0).UnixMilli(), day(9, 0).UnixMilli())

	req := &DayScheduleRequest{
		Date:  "2025-03-10",
		Slots: []string{"14:00", "09:30", "09:00", "10:00"},
	}
	resp, apierr := f.svc.ReplaceDay(doctor.ID, req, doctor.SubUUID)
	require.Nil(t, apierr)

	require.Len(t, resp, 2)
	assert.Equal(t, "2025-03-10T09:00:00Z", resp[0].StartTime)
	assert.Equal(t, "2025-03-10T10:30:00Z", resp[0].EndTime)
	assert.Equal(t, "2025-03-10T14:00:00Z", resp[1].StartTime)
	assert.Equal(t, "2025-03-10T14:30:00Z", resp[1].EndTime)

	remaining, _ := f.avs.FindByDoctorID(doctor.ID)
	assert.Len(t, remaining, 3)
	assert.Contains(t, remaining, nextDay)

	kept, _ := f.avs.FindByDoctorID(stranger.ID)
	assert.Equal(t, []*entity.Availability{otherDoctor}, kept)
}

func TestReplaceDayWithNoSlotsClearsTheDay(t *testing.T) {
	f := newAvailabilityFixture()
	f.avs.add(doctor.ID, day(8, 0).UnixMilli(), day(9, 0).UnixMilli())

	resp, apierr := f.svc.ReplaceDay(doctor.ID, &DayScheduleRequest{Date: "2025-03-10"}, doctor.SubUUID)
	require.Nil(t, apierr)
	assert.Empty(t, resp)
	assert.Empty(t, f.avs.avs)
}

func TestReplaceDayRejections(t *testing.T) {
	tests := []struct {
		name     string
		doctorID int
		sub      string
		req      *DayScheduleRequest
		error    apierror.ErrorResponse
	}{
		{
			name:     "patient",
			doctorID: doctor.ID,
			sub:      patient.SubUUID,
			req:      &DayScheduleRequest{Date: "2025-03-10", Slots: []string{"09:00"}},
			error:    apierror.ForbiddenError,
		},
		{
			name:     "other doctor",
			doctorID: doctor.ID,
			sub:      stranger.SubUUID,
			req:      &DayScheduleRequest{Date: "2025-03-10", Slots: []string{"09:00"}},
			error:    apierror.ForbiddenError,
		},
		{
			name:     "misaligned slot",
			doctorID: doctor.ID,
			sub:      doctor.SubUUID,
			req:      &DayScheduleRequest{Date: "2025-03-10", Slots: []string{"09:15"}},
			error:    apierror.SlotNotAlignedError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAvailabilityFixture()
			_, apierr := f.svc.ReplaceDay(tt.doctorID, tt.req, tt.sub)
			assert.Equal(t, tt.error, apierr)
		})
	}
}

func TestReplaceDayRejectsDuplicateLabels(t *testing.T) {
	f := newAvailabilityFixture()
	req := &DayScheduleRequest{Date: "2025-03-10", Slots: []string{"09:00", "09:00"}}

	_, apierr := f.svc.ReplaceDay(doctor.ID, req, doctor.SubUUID)
	assert.IsType(t, &apierror.ValidationError{}, apierr)
}

func TestCreateAvailability(t *testing.T) {
	f := newAvailabilityFixture()

	resp, apierr := f.svc.CreateAvailability(&AvailabilityRequest{
		DoctorID:  doctor.ID,
		StartTime: "2025-03-10T09:00:00Z",
		EndTime:   "2025-03-10T12:00:00Z",
	}, doctor.SubUUID)
	require.Nil(t, apierr)
	assert.Equal(t, doctor.ID, resp.DoctorID)
	assert.Len(t, f.avs.avs, 1)

	_, apierr = f.svc.CreateAvailability(&AvailabilityRequest{
		DoctorID:  doctor.ID,
		StartTime: "2025-03-10T12:00:00Z",
		EndTime:   "2025-03-10T12:00:00Z",
	}, doctor.SubUUID)
	assert.Equal(t, apierror.InvalidTimeRangeError, apierr)

	_, apierr = f.svc.CreateAvailability(&AvailabilityRequest{
		DoctorID:  doctor.ID,
		StartTime: "2025-03-10T12:10:00Z",
		EndTime:   "2025-03-10T13:00:00Z",
	}, doctor.SubUUID)
	assert.Equal(t, apierror.SlotNotAlignedError, apierr)
}

func TestPatchAndDeleteAvailability(t *testing.T) {
	f := newAvailabilityFixture()
	av := f.avs.add(doctor.ID, day(9, 0).UnixMilli(), day(12, 0).UnixMilli())

	end := "2025-03-10T11:00:00Z"
	resp, apierr := f.svc.PatchAvailability(av.ID, &AvailabilityPatchRequest{EndTime: &end}, doctor.SubUUID)
	require.Nil(t, apierr)
	assert.Equal(t, end, resp.EndTime)
	assert.Equal(t, "2025-03-10T09:00:00Z", resp.StartTime)

	assert.Equal(t, apierror.ForbiddenError, f.svc.DeleteAvailability(av.ID, stranger.SubUUID))
	assert.Nil(t, f.svc.DeleteAvailability(av.ID, doctor.SubUUID))
	assert.Equal(t, apierror.NotFoundError, f.svc.DeleteAvailability(av.ID, doctor.SubUUID))
}

func TestGetByDoctorNarrowsToDay(t *testing.T) {
	f := newAvailabilityFixture()
	f.avs.add(doctor.ID, day(9, 0).UnixMilli(), day(10, 0).UnixMilli())
	f.avs.add(doctor.ID, day(9, 0).Add(24*time.Hour).UnixMilli(), day(10, 0).Add(24*time.Hour).UnixMilli())

	all, apierr := f.svc.GetByDoctor(doctor.ID, "")
	require.Nil(t, apierr)
	assert.Len(t, all, 2)

	oneDay, apierr := f.svc.GetByDoctor(doctor.ID, "2025-03-10")
	require.Nil(t, apierr)
	require.Len(t, oneDay, 1)
	assert.Equal(t, "2025-03-10T09:00:00Z", oneDay[0].StartTime)

	_, apierr = f.svc.GetByDoctor(doctor.ID, "10/03/2025")
	assert.Equal(t, apierror.InvalidDateError, apierr)
}

func TestGetSlotsFlagsBookedSlots(t *testing.T) {
	f := newAvailabilityFixture()
	av := f.avs.add(doctor.ID, day(9, 0).UnixMilli(), day(10, 30).UnixMilli())
	f.avs.add(stranger.ID, day(9, 0).UnixMilli(), day(10, 0).UnixMilli())
	_ = f.appts.Save(&entity.Appointment{DoctorID: doctor.ID, PatientID: patient.ID, StartsAt: day(9, 30).UnixMilli(), EndsAt: day(10, 0).UnixMilli()})
	_ = f.appts.Save(&entity.Appointment{DoctorID: doctor.ID, PatientID: patient.ID, StartsAt: day(10, 0).UnixMilli(), EndsAt: day(10, 30).UnixMilli(), IsDeleted: true})

	resp, apierr := f.svc.GetSlots(context.Background(), doctor.ID, "2025-03-10")
	require.Nil(t, apierr)

	require.Len(t, resp.Slots, 3)
	var labels []string
	var booked []bool
	for _, s := range resp.Slots {
		labels = append(labels, s.Time)
		booked = append(booked, s.Booked)
		assert.Equal(t, av.ID, s.AvailabilityID)
	}
	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, labels)
	assert.Equal(t, []bool{false, true, false}, booked)
}

func TestGetSlotsEmptyDay(t *testing.T) {
	f := newAvailabilityFixture()

	resp, apierr := f.svc.GetSlots(context.Background(), doctor.ID, "2025-03-11")
	require.Nil(t, apierr)
	assert.NotNil(t, resp.Slots)
	assert.Empty(t, resp.Slots)
}

func TestGetCalendarSummarizesDays(t *testing.T) {
	f := newAvailabilityFixture()
	f.avs.add(doctor.ID, day(9, 0).UnixMilli(), day(10, 0).UnixMilli())
	f.avs.add(doctor.ID, day(14, 0).UnixMilli(), day(15, 0).UnixMilli())
	f.avs.add(doctor.ID, day(9, 0).AddDate(0, 0, 2).UnixMilli(), day(9, 30).AddDate(0, 0, 2).UnixMilli())
	f.avs.add(doctor.ID, day(9, 0).AddDate(0, 1, 0).UnixMilli(), day(10, 0).AddDate(0, 1, 0).UnixMilli())
	f.avs.add(stranger.ID, day(9, 0).UnixMilli(), day(10, 0).UnixMilli())
	_ = f.appts.Save(&entity.Appointment{DoctorID: doctor.ID, PatientID: patient.ID, StartsAt: day(14, 30).UnixMilli(), EndsAt: day(15, 0).UnixMilli()})

	resp, apierr := f.svc.GetCalendar(doctor.ID, "2025-03")
	require.Nil(t, apierr)
	assert.Equal(t, "2025-03", resp.Month)
	assert.Equal(t, []*ScheduledDay{
		{Date: "2025-03-10", Slots: 4, Booked: 1},
		{Date: "2025-03-12", Slots: 1, Booked: 0},
	}, resp.ScheduledDays)

	empty, apierr := f.svc.GetCalendar(doctor.ID, "2025-05")
	require.Nil(t, apierr)
	assert.Empty(t, empty.ScheduledDays)

	_, apierr = f.svc.GetCalendar(doctor.ID, "March")
	assert.Equal(t, apierror.InvalidMonthError, apierr)
}
