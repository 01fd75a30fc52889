package repository

import (
	"ecare/cmd/internal/domain/entity"
	"errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultAppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *DefaultAppointmentRepository {
	return &DefaultAppointmentRepository{db: db}
}

func (a *DefaultAppointmentRepository) FindByID(id int) (*entity.Appointment, error) {
	var appt entity.Appointment
	err := a.db.Preload("Doctor").First(&appt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &appt, err
}

func (a *DefaultAppointmentRepository) FindByLocalID(localID string) (*entity.Appointment, error) {
	var appt entity.Appointment
	err := a.db.Preload("Doctor").Where("local_id = ?", localID).First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &appt, err
}

func (a *DefaultAppointmentRepository) FindByQRCode(code string) (*entity.Appointment, error) {
	var appt entity.Appointment
	err := a.db.Where("qr_code = ?", code).Where("is_deleted = ?", false).First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &appt, err
}

// IsAvailable reports whether the doctor has no active appointment
// overlapping [begin, end). The appointment with id exclude is ignored,
// which lets a reschedule overlap its own previous window.
func (a *DefaultAppointmentRepository) IsAvailable(doctorID int, begin, end int64, exclude int) (bool, error) {
	if begin >= end {
		return false, errors.New("start time must be before end time")
	}

	var count int64
	err := a.db.Model(&entity.Appointment{}).
		Where("doctor_id = ?", doctorID).
		Where("is_deleted = ?", false).
		Where("id <> ?", exclude).
		Where("starts_at < ?", end).
		Where("ends_at > ?", begin).
		Count(&count).Error

	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// FindOverlapping finds the doctor's active appointments that overlap [from, to).
// This method returns PARTIAL appointment entities, having only `StartsAt` and `EndsAt` fields.
func (a *DefaultAppointmentRepository) FindOverlapping(doctorID int, from, to int64) ([]*entity.Appointment, error) {
	var results []*entity.Appointment

	err := a.db.Model(&entity.Appointment{}).
		Select("starts_at, ends_at").
		Where("doctor_id = ?", doctorID).
		Where("is_deleted = ?", false).
		Where("starts_at < ?", to).
		Where("ends_at > ?", from).
		Order("starts_at asc").
		Find(&results).Error

	if err != nil {
		return nil, err
	}
	return results, nil
}

func (a *DefaultAppointmentRepository) FindByDoctorID(id int) ([]*entity.Appointment, error) {
	var appts []*entity.Appointment
	err := a.db.Preload("Doctor").
		Where("doctor_id = ?", id).
		Where("is_deleted = ?", false).
		Order("starts_at asc").
		Find(&appts).Error
	return appts, err
}

func (a *DefaultAppointmentRepository) FindByPatientID(id int) ([]*entity.Appointment, error) {
	var appts []*entity.Appointment
	err := a.db.Preload("Doctor").
		Where("patient_id = ?", id).
		Where("is_deleted = ?", false).
		Order("starts_at asc").
		Find(&appts).Error
	return appts, err
}

// SaveIfBookable stores the appointment only when [StartsAt, EndsAt) lies
// inside one of the doctor's availabilities and overlaps no other active
// appointment. The check and the write run in one transaction. The returned
// bool reports whether the appointment was stored.
func (a *DefaultAppointmentRepository) SaveIfBookable(appointment *entity.Appointment) (bool, error) {
	stored := false
	err := a.db.Transaction(func(tx *gorm.DB) error {
		cover, err := NewAvailabilityRepository(tx).FindCovering(appointment.DoctorID, appointment.StartsAt, appointment.EndsAt)
		if err != nil || cover == nil {
			return err
		}

		free, err := NewAppointmentRepository(tx).IsAvailable(appointment.DoctorID, appointment.StartsAt, appointment.EndsAt, appointment.ID)
		if err != nil || !free {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(appointment).Error; err != nil {
			return err
		}
		stored = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return stored, nil
}

func (a *DefaultAppointmentRepository) Save(appointment *entity.Appointment) error {
	return a.db.Omit(clause.Associations).Save(appointment).Error
}

// Delete is a soft delete; the row stays so the QR code and local id remain unique.
func (a *DefaultAppointmentRepository) Delete(appointment *entity.Appointment) error {
	appointment.IsDeleted = true
	return a.db.Model(appointment).
		Updates(map[string]any{"is_deleted": true, "updated_at": appointment.UpdatedAt}).Error
}
