package entity

// Availability is an open booking window declared by a doctor.
type Availability struct {
	ID        int   `gorm:"primaryKey"`
	DoctorID  int   `gorm:"not null;index"` // References: users(id)
	StartsAt  int64 `gorm:"not null;index"`
	EndsAt    int64 `gorm:"not null"`
	CreatedAt int64 `gorm:"not null"`
	UpdatedAt int64 `gorm:"not null"`

	// Relations
	Doctor User `gorm:"foreignKey:DoctorID;references:ID"`
}
