package entity

type AppointmentStatus string

const (
	StatusConfirmed  AppointmentStatus = "CONFIRMED"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
)

type Appointment struct {
	ID                 int     `gorm:"primaryKey"`
	LocalID            *string `gorm:"uniqueIndex"` // client-generated id, used for idempotent creates
	DoctorID           int     `gorm:"not null;index"` // References: users(id)
	PatientID          int     `gorm:"not null;index"` // References: users(id)
	StartsAt           int64   `gorm:"not null"`
	EndsAt             int64   `gorm:"not null"`
	Name               string  `gorm:"not null"`
	Gender             string
	Age                string
	ProblemDescription string
	Status             AppointmentStatus `gorm:"not null"`
	QRCode             string            `gorm:"uniqueIndex;not null"`
	IsDeleted          bool              `gorm:"not null"`
	CreatedAt          int64             `gorm:"not null"`
	UpdatedAt          int64             `gorm:"not null"`

	// Relations
	Doctor  User `gorm:"foreignKey:DoctorID;references:ID"`
	Patient User `gorm:"foreignKey:PatientID;references:ID"`
}
