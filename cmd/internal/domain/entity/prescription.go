package entity

import "errors"

// ErrLocalIDConflict is returned when a client local id is already stored
// for a record with a different owner.
var ErrLocalIDConflict = errors.New("local id belongs to another record")

type Prescription struct {
	ID        int    `gorm:"primaryKey"`
	LocalID   string `gorm:"uniqueIndex;not null"`
	PatientID int    `gorm:"not null;index"` // References: users(id)
	DoctorID  int    `gorm:"not null;index"` // References: users(id)
	Date      string `gorm:"not null"`
	Notes     *string
	PDFFile   *string
	CreatedAt int64 `gorm:"not null"`
	UpdatedAt int64 `gorm:"not null"`

	Items []PrescriptionItem `gorm:"foreignKey:PrescriptionID;constraint:OnDelete:CASCADE"`
}

type PrescriptionItem struct {
	ID             int    `gorm:"primaryKey"`
	LocalID        string `gorm:"uniqueIndex;not null"`
	PrescriptionID int    `gorm:"not null;index"`
	MedicationID   int    `gorm:"not null;index"` // References: medications(id)
	Dosage         string `gorm:"not null"`
	Duration       string `gorm:"not null"`
	Frequency      string `gorm:"not null"`
	Instructions   string

	Medication Medication `gorm:"foreignKey:MedicationID;references:ID"`
}

type Medication struct {
	ID          int    `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description *string
	CreatedAt   int64 `gorm:"not null"`
	UpdatedAt   int64 `gorm:"not null"`
}
