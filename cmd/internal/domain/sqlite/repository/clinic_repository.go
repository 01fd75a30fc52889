package repository

import (
	"ecare/cmd/internal/domain/entity"
	"errors"
	"gorm.io/gorm"
)

type DefaultClinicRepository struct {
	db *gorm.DB
}

func NewClinicRepository(db *gorm.DB) *DefaultClinicRepository {
	return &DefaultClinicRepository{db: db}
}

func (c *DefaultClinicRepository) FindAll() ([]*entity.Clinic, error) {
	var clinics []*entity.Clinic
	err := c.db.Order("name asc").Find(&clinics).Error
	return clinics, err
}

func (c *DefaultClinicRepository) FindByID(id int) (*entity.Clinic, error) {
	var clinic entity.Clinic
	err := c.db.First(&clinic, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &clinic, err
}

func (c *DefaultClinicRepository) Save(clinic *entity.Clinic) error {
	return c.db.Save(clinic).Error
}
