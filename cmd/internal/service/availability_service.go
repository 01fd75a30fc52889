package service

import (
	"context"
	"ecare/cmd/internal/domain/entity"
	"ecare/cmd/internal/schedule"
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	"time"
)

type AvailabilityRepository interface {
	FindByID(id int) (*entity.Availability, error)
	FindByDoctorID(doctorID int) ([]*entity.Availability, error)
	FindStartingBetween(doctorID int, from, to int64) ([]*entity.Availability, error)
	Save(av *entity.Availability) error
	Delete(av *entity.Availability) error
	ReplaceStartingBetween(doctorID int, from, to int64, replacements []*entity.Availability) error
}

type AvailabilityRequest struct {
	DoctorID  int    `json:"doctor_id" validate:"required,min=1"`
	StartTime string `json:"start_time" validate:"required,iso8601"`
	EndTime   string `json:"end_time" validate:"required,iso8601"`
}

type AvailabilityPatchRequest struct {
	StartTime *string `json:"start_time" validate:"omitempty,iso8601"`
	EndTime   *string `json:"end_time" validate:"omitempty,iso8601"`
}

// DayScheduleRequest replaces a doctor's whole day with the picked slots.
type DayScheduleRequest struct {
	Date  string   `json:"date" validate:"required,isodate"`
	Slots []string `json:"slots" validate:"max=48,nodupes,dive,hhmm"`
}

type AvailabilityResponse struct {
	ID        int    `json:"id"`
	DoctorID  int    `json:"doctor_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SlotResponse struct {
	Time           string `json:"time"`
	StartTime      string `json:"start_time"`
	Booked         bool   `json:"booked"`
	AvailabilityID int    `json:"availability_id"`
}

type DaySlotsResponse struct {
	Date     string          `json:"date"`
	DoctorID int             `json:"doctor_id"`
	Slots    []*SlotResponse `json:"slots"`
}

type ScheduledDay struct {
	Date   string `json:"date"`
	Slots  int    `json:"slots"`
	Booked int    `json:"booked"`
}

type CalendarResponse struct {
	Month         string          `json:"month"`
	DoctorID      int             `json:"doctor_id"`
	ScheduledDays []*ScheduledDay `json:"scheduled_days"`
}

type DefaultAvailabilityService struct {
	AvailabilityRepo AvailabilityRepository
	AppointmentRepo  AppointmentRepository
	UserRepo         UserRepository
	Validate         *validator.Validate
	Location         *time.Location
}

func NewAvailabilityService(avRepo AvailabilityRepository, apptRepo AppointmentRepository, userRepo UserRepository, validate *validator.Validate, loc *time.Location) *DefaultAvailabilityService {
	if loc == nil {
		loc = time.Local
	}
	return &DefaultAvailabilityService{
		AvailabilityRepo: avRepo,
		AppointmentRepo:  apptRepo,
		UserRepo:         userRepo,
		Validate:         validate,
		Location:         loc,
	}
}

// GetByDoctor lists a doctor's availabilities, narrowed to one day when
// date ("YYYY-MM-DD") is set.
func (a *DefaultAvailabilityService) GetByDoctor(doctorID int, date string) ([]*AvailabilityResponse, apierror.ErrorResponse) {
	if date == "" {
		avs, err := a.AvailabilityRepo.FindByDoctorID(doctorID)
		if err != nil {
			log.Errorf("failed to fetch availabilities of doctor %d: %v", doctorID, err)
			return nil, apierror.InternalServerError
		}
		return toAvailabilityResponses(avs), nil
	}

	day, err := utils.ParseDate(date, a.Location)
	if err != nil {
		return nil, apierror.InvalidDateError
	}

	windows, apierr := a.windowsOfDay(doctorID, day)
	if apierr != nil {
		return nil, apierr
	}

	resp := make([]*AvailabilityResponse, len(windows))
	for i, w := range windows {
		resp[i] = &AvailabilityResponse{
			ID:        w.ID,
			DoctorID:  w.DoctorID,
			StartTime: utils.FormatEpoch(w.Start.UnixMilli()),
			EndTime:   utils.FormatEpoch(w.End.UnixMilli()),
		}
	}
	return resp, nil
}

func (a *DefaultAvailabilityService) CreateAvailability(req *AvailabilityRequest, sub string) (*AvailabilityResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if valerr := a.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	if apierr := a.authorizeDoctor(sub, req.DoctorID); apierr != nil {
		return nil, apierr
	}

	begin, end, apierr := parseWindow(req.StartTime, req.EndTime)
	if apierr != nil {
		return nil, apierr
	}

	now := utils.NowUTC()
	av := &entity.Availability{
		DoctorID:  req.DoctorID,
		StartsAt:  begin,
		EndsAt:    end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.AvailabilityRepo.Save(av); err != nil {
		log.Errorf("failed to save availability: %v", err)
		return nil, apierror.InternalServerError
	}
	return toAvailabilityResponse(av), nil
}

func (a *DefaultAvailabilityService) PatchAvailability(id int, req *AvailabilityPatchRequest, sub string) (*AvailabilityResponse, apierror.ErrorResponse) {
	if valerr := a.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	av, apierr := a.findOwned(id, sub)
	if apierr != nil {
		return nil, apierr
	}

	start, end := utils.FormatEpoch(av.StartsAt), utils.FormatEpoch(av.EndsAt)
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

	av.StartsAt = begin
	av.EndsAt = finish
	av.UpdatedAt = utils.NowUTC()
	if err := a.AvailabilityRepo.Save(av); err != nil {
		log.Errorf("failed to update availability %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	return toAvailabilityResponse(av), nil
}

func (a *DefaultAvailabilityService) DeleteAvailability(id int, sub string) apierror.ErrorResponse {
	av, apierr := a.findOwned(id, sub)
	if apierr != nil {
		return apierr
	}

	if err := a.AvailabilityRepo.Delete(av); err != nil {
		log.Errorf("failed to delete availability %d: %v", id, err)
		return apierror.InternalServerError
	}
	return nil
}

// ReplaceDay drops every availability of the doctor starting on the given
// day and recreates one per run of consecutive picked slots.
func (a *DefaultAvailabilityService) ReplaceDay(doctorID int, req *DayScheduleRequest, sub string) ([]*AvailabilityResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if valerr := a.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	if apierr := a.authorizeDoctor(sub, doctorID); apierr != nil {
		return nil, apierr
	}

	day, err := utils.ParseDate(req.Date, a.Location)
	if err != nil {
		return nil, apierror.InvalidDateError
	}

	picks, err := schedule.ParseDaySlots(day, req.Slots, a.Location)
	if err != nil {
		return nil, apierror.MalformedBodyError
	}
	for _, p := range picks {
		if !schedule.IsAligned(p) {
			return nil, apierror.SlotNotAlignedError
		}
	}

	now := utils.NowUTC()
	ranges := schedule.GroupConsecutive(picks)
	replacements := make([]*entity.Availability, len(ranges))
	for i, r := range ranges {
		replacements[i] = &entity.Availability{
			DoctorID:  doctorID,
			StartsAt:  r.Start.UnixMilli(),
			EndsAt:    r.End.UnixMilli(),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	from, to := schedule.DayBounds(day, a.Location)
	err = a.AvailabilityRepo.ReplaceStartingBetween(doctorID, from.UnixMilli(), to.UnixMilli(), replacements)
	if err != nil {
		log.Errorf("failed to replace availabilities of doctor %d on %s: %v", doctorID, req.Date, err)
		return nil, apierror.InternalServerError
	}
	return toAvailabilityResponses(replacements), nil
}

// GetSlots lists the 30-minute slots of a doctor's day, each flagged booked
// when an active appointment overlaps it.
func (a *DefaultAvailabilityService) GetSlots(ctx context.Context, doctorID int, date string) (*DaySlotsResponse, apierror.ErrorResponse) {
	day, err := utils.ParseDate(date, a.Location)
	if err != nil {
		return nil, apierror.InvalidDateError
	}

	picker := schedule.NewPicker(&availabilitySource{repo: a.AvailabilityRepo, loc: a.Location}, a.Location)
	if err := picker.SetSelectedDoctor(ctx, doctorID); err != nil {
		log.Errorf("failed to select doctor %d: %v", doctorID, err)
		return nil, apierror.InternalServerError
	}
	if err := picker.SetSelectedDate(ctx, day); err != nil {
		log.Errorf("failed to load availabilities of doctor %d on %s: %v", doctorID, date, err)
		return nil, apierror.InternalServerError
	}

	resp := &DaySlotsResponse{Date: date, DoctorID: doctorID, Slots: make([]*SlotResponse, 0)}
	for _, w := range picker.Availabilities() {
		appts, err := a.AppointmentRepo.FindOverlapping(doctorID, w.Start.UnixMilli(), w.End.UnixMilli())
		if err != nil {
			log.Errorf("failed to fetch appointments of doctor %d: %v", doctorID, err)
			return nil, apierror.InternalServerError
		}

		booked := make([]schedule.Range, len(appts))
		for i, appt := range appts {
			booked[i] = schedule.Range{
				Start: utils.ToTime(appt.StartsAt, a.Location),
				End:   utils.ToTime(appt.EndsAt, a.Location),
			}
		}

		for _, slot := range schedule.BuildSlots(w, booked, a.Location) {
			resp.Slots = append(resp.Slots, &SlotResponse{
				Time:           slot.Label,
				StartTime:      utils.FormatEpoch(slot.Start.UnixMilli()),
				Booked:         slot.Booked,
				AvailabilityID: slot.AvailabilityID,
			})
		}
	}
	return resp, nil
}

// GetCalendar summarizes a doctor's month ("YYYY-MM"): one entry per day
// that has availability, with its slot and booked counts.
func (a *DefaultAvailabilityService) GetCalendar(doctorID int, month string) (*CalendarResponse, apierror.ErrorResponse) {
	first, err := time.ParseInLocation("2006-01", month, a.Location)
	if err != nil {
		return nil, apierror.InvalidMonthError
	}
	next := first.AddDate(0, 1, 0)

	avs, err := a.AvailabilityRepo.FindStartingBetween(doctorID, first.UnixMilli(), next.UnixMilli()-1)
	if err != nil {
		log.Errorf("failed to fetch availabilities of doctor %d for %s: %v", doctorID, month, err)
		return nil, apierror.InternalServerError
	}

	resp := &CalendarResponse{Month: month, DoctorID: doctorID, ScheduledDays: make([]*ScheduledDay, 0)}
	if len(avs) == 0 {
		return resp, nil
	}

	until := next.UnixMilli()
	for _, av := range avs {
		until = max(until, av.EndsAt)
	}
	appts, err := a.AppointmentRepo.FindOverlapping(doctorID, first.UnixMilli(), until)
	if err != nil {
		log.Errorf("failed to fetch appointments of doctor %d for %s: %v", doctorID, month, err)
		return nil, apierror.InternalServerError
	}
	booked := make([]schedule.Range, len(appts))
	for i, appt := range appts {
		booked[i] = schedule.Range{
			Start: utils.ToTime(appt.StartsAt, a.Location),
			End:   utils.ToTime(appt.EndsAt, a.Location),
		}
	}

	days := map[string]*ScheduledDay{}
	for _, w := range toWindows(avs, a.Location) {
		key := w.Start.Format(utils.DateLayout)
		day, ok := days[key]
		if !ok {
			day = &ScheduledDay{Date: key}
			days[key] = day
			resp.ScheduledDays = append(resp.ScheduledDays, day)
		}
		for _, slot := range schedule.BuildSlots(w, booked, a.Location) {
			day.Slots++
			if slot.Booked {
				day.Booked++
			}
		}
	}
	return resp, nil
}

func (a *DefaultAvailabilityService) windowsOfDay(doctorID int, day time.Time) ([]schedule.Window, apierror.ErrorResponse) {
	from, to := schedule.DayBounds(day, a.Location)
	avs, err := a.AvailabilityRepo.FindStartingBetween(doctorID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		log.Errorf("failed to fetch availabilities of doctor %d: %v", doctorID, err)
		return nil, apierror.InternalServerError
	}
	return schedule.FilterByDay(toWindows(avs, a.Location), day, a.Location, &doctorID), nil
}

func (a *DefaultAvailabilityService) findOwned(id int, sub string) (*entity.Availability, apierror.ErrorResponse) {
	av, err := a.AvailabilityRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch availability by id %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if av == nil {
		return nil, apierror.NotFoundError
	}
	if apierr := a.authorizeDoctor(sub, av.DoctorID); apierr != nil {
		return nil, apierr
	}
	return av, nil
}

func (a *DefaultAvailabilityService) authorizeDoctor(sub string, doctorID int) apierror.ErrorResponse {
	caller, apierr := lookupCaller(a.UserRepo, sub)
	if apierr != nil {
		return apierr
	}
	if caller.IsAdmin() {
		return nil
	}
	if !caller.IsDoctor() || caller.ID != doctorID {
		return apierror.ForbiddenError
	}
	return nil
}

// availabilitySource feeds the picker straight from the repository.
type availabilitySource struct {
	repo AvailabilityRepository
	loc  *time.Location
}

func (s *availabilitySource) AvailabilitiesBetween(_ context.Context, from, to time.Time) ([]schedule.Window, error) {
	avs, err := s.repo.FindStartingBetween(0, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	return toWindows(avs, s.loc), nil
}

// parseWindow parses an RFC3339 window and checks the availability
// invariants: start before end, both on slot boundaries.
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
	return begin, finish, nil
}

func toWindows(avs []*entity.Availability, loc *time.Location) []schedule.Window {
	windows := make([]schedule.Window, len(avs))
	for i, av := range avs {
		windows[i] = schedule.Window{
			ID:       av.ID,
			DoctorID: av.DoctorID,
			Start:    utils.ToTime(av.StartsAt, loc),
			End:      utils.ToTime(av.EndsAt, loc),
		}
	}
	return windows
}

func toAvailabilityResponses(avs []*entity.Availability) []*AvailabilityResponse {
	resp := make([]*AvailabilityResponse, len(avs))
	for i, av := range avs {
		resp[i] = toAvailabilityResponse(av)
	}
	return resp
}

func toAvailabilityResponse(av *entity.Availability) *AvailabilityResponse {
	return &AvailabilityResponse{
		ID:        av.ID,
		DoctorID:  av.DoctorID,
		StartTime: utils.FormatEpoch(av.StartsAt),
		EndTime:   utils.FormatEpoch(av.EndsAt),
	}
}
