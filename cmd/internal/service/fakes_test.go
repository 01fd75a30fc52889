package service

import (
	"context"
	"ecare/cmd/internal/domain/entity"
	fcmclient "ecare/cmd/internal/integration/firebase"
	"ecare/cmd/internal/utils/validators"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

func newValidate() *validator.Validate {
	v := validator.New()
	validators.Register(v)
	return v
}

type fakeUserRepo struct {
	users map[int]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int]*entity.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(id int) (*entity.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) FindBySub(sub string) (*entity.User, error) {
	for _, u := range r.users {
		if u.SubUUID == sub {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindAll() ([]*entity.User, error) {
	out := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeUserRepo) FindDoctors(specialty string) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range r.users {
		if !u.IsDoctor() {
			continue
		}
		if specialty != "" && (u.Specialty == nil || *u.Specialty != specialty) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*entity.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ExistsByEmail(email string) (bool, error) {
	u, _ := r.FindByEmail(email)
	return u != nil, nil
}

func (r *fakeUserRepo) Save(user *entity.User) error {
	if user.ID == 0 {
		user.ID = len(r.users) + 100
	}
	r.users[user.ID] = user
	return nil
}

type fakeAvailabilityRepo struct {
	nextID int
	avs    []*entity.Availability
}

func (r *fakeAvailabilityRepo) add(doctorID int, start, end int64) *entity.Availability {
	av := &entity.Availability{DoctorID: doctorID, StartsAt: start, EndsAt: end}
	_ = r.Save(av)
	return av
}

func (r *fakeAvailabilityRepo) FindByID(id int) (*entity.Availability, error) {
	for _, av := range r.avs {
		if av.ID == id {
			return av, nil
		}
	}
	return nil, nil
}

func (r *fakeAvailabilityRepo) FindByDoctorID(doctorID int) ([]*entity.Availability, error) {
	var out []*entity.Availability
	for _, av := range r.avs {
		if av.DoctorID == doctorID {
			out = append(out, av)
		}
	}
	return out, nil
}

func (r *fakeAvailabilityRepo) FindStartingBetween(doctorID int, from, to int64) ([]*entity.Availability, error) {
	var out []*entity.Availability
	for _, av := range r.avs {
		if doctorID != 0 && av.DoctorID != doctorID {
			continue
		}
		if av.StartsAt >= from && av.StartsAt <= to {
			out = append(out, av)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt < out[j].StartsAt })
	return out, nil
}

func (r *fakeAvailabilityRepo) FindCovering(doctorID int, begin, end int64) (*entity.Availability, error) {
	for _, av := range r.avs {
		if av.DoctorID == doctorID && av.StartsAt <= begin && av.EndsAt >= end {
			return av, nil
		}
	}
	return nil, nil
}

func (r *fakeAvailabilityRepo) Save(av *entity.Availability) error {
	if av.ID != 0 {
		return nil
	}
	r.nextID++
	av.ID = r.nextID
	r.avs = append(r.avs, av)
	return nil
}

func (r *fakeAvailabilityRepo) Delete(av *entity.Availability) error {
	kept := r.avs[:0]
	for _, a := range r.avs {
		if a.ID != av.ID {
			kept = append(kept, a)
		}
	}
	r.avs = kept
	return nil
}

func (r *fakeAvailabilityRepo) ReplaceStartingBetween(doctorID int, from, to int64, replacements []*entity.Availability) error {
	kept := make([]*entity.Availability, 0, len(r.avs))
	for _, av := range r.avs {
		if av.DoctorID == doctorID && av.StartsAt >= from && av.StartsAt <= to {
			continue
		}
		kept = append(kept, av)
	}
	r.avs = kept
	for _, av := range replacements {
		_ = r.Save(av)
	}
	return nil
}

type fakeAppointmentRepo struct {
	nextID int
	appts  map[int]*entity.Appointment
	avs    *fakeAvailabilityRepo
}

func newFakeAppointmentRepo(avs *fakeAvailabilityRepo) *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appts: make(map[int]*entity.Appointment), avs: avs}
}

func (r *fakeAppointmentRepo) Save(appt *entity.Appointment) error {
	if appt.ID == 0 {
		r.nextID++
		appt.ID = r.nextID
	}
	r.appts[appt.ID] = appt
	return nil
}

func (r *fakeAppointmentRepo) SaveIfBookable(appt *entity.Appointment) (bool, error) {
	cover, _ := r.avs.FindCovering(appt.DoctorID, appt.StartsAt, appt.EndsAt)
	free, _ := r.IsAvailable(appt.DoctorID, appt.StartsAt, appt.EndsAt, appt.ID)
	if cover == nil || !free {
		return false, nil
	}
	return true, r.Save(appt)
}

// FindByID hands out a copy so rejected edits never reach the stored row.
func (r *fakeAppointmentRepo) FindByID(id int) (*entity.Appointment, error) {
	appt, ok := r.appts[id]
	if !ok {
		return nil, nil
	}
	cp := *appt
	return &cp, nil
}

func (r *fakeAppointmentRepo) FindByLocalID(localID string) (*entity.Appointment, error) {
	for _, a := range r.appts {
		if a.LocalID != nil && *a.LocalID == localID {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAppointmentRepo) FindByQRCode(code string) (*entity.Appointment, error) {
	for _, a := range r.appts {
		if a.QRCode == code && !a.IsDeleted {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAppointmentRepo) IsAvailable(doctorID int, begin, end int64, exclude int) (bool, error) {
	for _, a := range r.appts {
		if a.IsDeleted || a.ID == exclude || a.DoctorID != doctorID {
			continue
		}
		if a.StartsAt < end && a.EndsAt > begin {
			return false, nil
		}
	}
	return true, nil
}

func (r *fakeAppointmentRepo) FindOverlapping(doctorID int, from, to int64) ([]*entity.Appointment, error) {
	var out []*entity.Appointment
	for _, a := range r.appts {
		if !a.IsDeleted && a.DoctorID == doctorID && a.StartsAt < to && a.EndsAt > from {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) FindByDoctorID(id int) ([]*entity.Appointment, error) {
	var out []*entity.Appointment
	for _, a := range r.appts {
		if !a.IsDeleted && a.DoctorID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) FindByPatientID(id int) ([]*entity.Appointment, error) {
	var out []*entity.Appointment
	for _, a := range r.appts {
		if !a.IsDeleted && a.PatientID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) Delete(appt *entity.Appointment) error {
	appt.IsDeleted = true
	r.appts[appt.ID] = appt
	return nil
}

type sentNotification struct {
	UserID    int
	Kind      entity.NotificationType
	RelatedID string
}

type fakeNotifier struct {
	sent []sentNotification
}

func (n *fakeNotifier) Notify(userID int, kind entity.NotificationType, _, _, relatedID string) {
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, RelatedID: relatedID})
}

type fakeNotificationRepo struct {
	notifications []*entity.Notification
	devices       []*entity.Device
}

func (r *fakeNotificationRepo) Save(notification *entity.Notification) error {
	if notification.ID == 0 {
		notification.ID = len(r.notifications) + 1
		r.notifications = append(r.notifications, notification)
	}
	return nil
}

func (r *fakeNotificationRepo) FindByID(id int) (*entity.Notification, error) {
	for _, n := range r.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (r *fakeNotificationRepo) FindByUserID(userID int, unreadOnly bool) ([]*entity.Notification, error) {
	var out []*entity.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkAllRead(userID int) (int64, error) {
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) SaveDevice(device *entity.Device) error {
	for _, d := range r.devices {
		if d.Token == device.Token {
			d.UserID = device.UserID
			d.Platform = device.Platform
			return nil
		}
	}
	device.ID = len(r.devices) + 1
	r.devices = append(r.devices, device)
	return nil
}

func (r *fakeNotificationRepo) FindDevicesByUserID(userID int) ([]*entity.Device, error) {
	var out []*entity.Device
	for _, d := range r.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) DeleteDeviceByToken(token string) error {
	kept := r.devices[:0]
	for _, d := range r.devices {
		if d.Token != token {
			kept = append(kept, d)
		}
	}
	r.devices = kept
	return nil
}

type fakePush struct {
	mu      sync.Mutex
	sent    []*fcmclient.Message
	results map[string]error
}

func (p *fakePush) Send(_ context.Context, msg *fcmclient.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return p.results[msg.Token]
}
