package repository

import (
	"ecare/cmd/internal/domain/entity"
	"errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultAvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *DefaultAvailabilityRepository {
	return &DefaultAvailabilityRepository{db: db}
}

func (a *DefaultAvailabilityRepository) FindByID(id int) (*entity.Availability, error) {
	var av entity.Availability
	err := a.db.First(&av, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &av, err
}

func (a *DefaultAvailabilityRepository) FindByDoctorID(doctorID int) ([]*entity.Availability, error) {
	var avs []*entity.Availability
	err := a.db.Where("doctor_id = ?", doctorID).
		Order("starts_at asc").
		Find(&avs).Error
	return avs, err
}

// FindStartingBetween returns the availabilities whose start falls inside
// [from, to], both ends inclusive. A zero doctorID matches every doctor.
func (a *DefaultAvailabilityRepository) FindStartingBetween(doctorID int, from, to int64) ([]*entity.Availability, error) {
	var avs []*entity.Availability
	q := a.db.Where("starts_at >= ?", from).Where("starts_at <= ?", to)
	if doctorID != 0 {
		q = q.Where("doctor_id = ?", doctorID)
	}
	err := q.Order("starts_at asc").Find(&avs).Error
	return avs, err
}

// FindCovering returns one availability of the doctor that fully contains
// [begin, end], or nil when there is none.
func (a *DefaultAvailabilityRepository) FindCovering(doctorID int, begin, end int64) (*entity.Availability, error) {
	var av entity.Availability
	err := a.db.Where("doctor_id = ?", doctorID).
		Where("starts_at <= ?", begin).
		Where("ends_at >= ?", end).
		Order("starts_at asc").
		First(&av).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &av, err
}

func (a *DefaultAvailabilityRepository) Save(av *entity.Availability) error {
	return a.db.Omit(clause.Associations).Save(av).Error
}

func (a *DefaultAvailabilityRepository) Delete(av *entity.Availability) error {
	return a.db.Delete(av).Error
}

// ReplaceStartingBetween deletes the doctor's availabilities starting inside
// [from, to] and inserts the replacements, all in one transaction.
func (a *DefaultAvailabilityRepository) ReplaceStartingBetween(doctorID int, from, to int64, replacements []*entity.Availability) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("doctor_id = ?", doctorID).
			Where("starts_at >= ?", from).
			Where("starts_at <= ?", to).
			Delete(&entity.Availability{}).Error
		if err != nil {
			return err
		}
		if len(replacements) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&replacements).Error
	})
}
