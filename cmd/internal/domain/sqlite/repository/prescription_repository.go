package repository

import (
	"ecare/cmd/internal/domain/entity"
	"errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultPrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) *DefaultPrescriptionRepository {
	return &DefaultPrescriptionRepository{db: db}
}

func (p *DefaultPrescriptionRepository) FindByID(id int) (*entity.Prescription, error) {
	var pr entity.Prescription
	err := p.db.Preload("Items.Medication").First(&pr, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &pr, err
}

func (p *DefaultPrescriptionRepository) FindByPatientID(id int) ([]*entity.Prescription, error) {
	var prs []*entity.Prescription
	err := p.db.Preload("Items.Medication").
		Where("patient_id = ?", id).
		Order("date desc, id desc").
		Find(&prs).Error
	return prs, err
}

func (p *DefaultPrescriptionRepository) FindByDoctorID(id int) ([]*entity.Prescription, error) {
	var prs []*entity.Prescription
	err := p.db.Preload("Items.Medication").
		Where("doctor_id = ?", id).
		Order("date desc, id desc").
		Find(&prs).Error
	return prs, err
}

// Upsert stores a prescription keyed by its client local id. When the local
// id is already known the stored row wins and only items with unseen local
// ids are appended. The returned bool reports whether the prescription row
// itself was created. A local id stored for another doctor or patient, or an
// item local id stored under another prescription, fails with
// entity.ErrLocalIDConflict and nothing is written.
func (p *DefaultPrescriptionRepository) Upsert(pr *entity.Prescription) (*entity.Prescription, bool, error) {
	created := false
	var id int

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var existing entity.Prescription
		err := tx.Where("local_id = ?", pr.LocalID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Omit(clause.Associations).Create(pr).Error; err != nil {
				return err
			}
			id = pr.ID
			created = true
		case err != nil:
			return err
		default:
			if existing.DoctorID != pr.DoctorID || existing.PatientID != pr.PatientID {
				return entity.ErrLocalIDConflict
			}
			id = existing.ID
		}

		for i := range pr.Items {
			item := pr.Items[i]
			item.PrescriptionID = id
			stored, _, err := upsertItem(tx, &item)
			if err != nil {
				return err
			}
			if stored.PrescriptionID != id {
				return entity.ErrLocalIDConflict
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	stored, err := p.FindByID(id)
	return stored, created, err
}

// UpsertItem stores one item keyed by its local id and returns the stored
// row and whether it was created by this call.
func (p *DefaultPrescriptionRepository) UpsertItem(item *entity.PrescriptionItem) (*entity.PrescriptionItem, bool, error) {
	var stored *entity.PrescriptionItem
	created := false
	err := p.db.Transaction(func(tx *gorm.DB) error {
		var err error
		stored, created, err = upsertItem(tx, item)
		return err
	})
	return stored, created, err
}

func (p *DefaultPrescriptionRepository) Delete(pr *entity.Prescription) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("prescription_id = ?", pr.ID).Delete(&entity.PrescriptionItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(pr).Error
	})
}

func upsertItem(tx *gorm.DB, item *entity.PrescriptionItem) (*entity.PrescriptionItem, bool, error) {
	var existing entity.PrescriptionItem
	err := tx.Where("local_id = ?", item.LocalID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	item.ID = 0
	if err := tx.Omit(clause.Associations).Create(item).Error; err != nil {
		return nil, false, err
	}
	return item, true, nil
}

type DefaultMedicationRepository struct {
	db *gorm.DB
}

func NewMedicationRepository(db *gorm.DB) *DefaultMedicationRepository {
	return &DefaultMedicationRepository{db: db}
}

func (m *DefaultMedicationRepository) FindAll() ([]*entity.Medication, error) {
	var meds []*entity.Medication
	err := m.db.Order("name asc").Find(&meds).Error
	return meds, err
}

func (m *DefaultMedicationRepository) FindByID(id int) (*entity.Medication, error) {
	var med entity.Medication
	err := m.db.First(&med, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &med, err
}

func (m *DefaultMedicationRepository) ExistsByName(name string) (bool, error) {
	var count int64
	err := m.db.Model(&entity.Medication{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error
	return count > 0, err
}

func (m *DefaultMedicationRepository) Save(med *entity.Medication) error {
	return m.db.Save(med).Error
}
