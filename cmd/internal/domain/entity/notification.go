package entity

type NotificationType string

const (
	NotifyAppointmentConfirmed   NotificationType = "APPOINTMENT_CONFIRMED"
	NotifyAppointmentRescheduled NotificationType = "APPOINTMENT_RESCHEDULED"
	NotifyAppointmentCanceled    NotificationType = "APPOINTMENT_CANCELED"
	NotifyAppointmentReminder    NotificationType = "APPOINTMENT_REMINDER"
	NotifyPrescriptionCreated    NotificationType = "PRESCRIPTION_CREATED"
	NotifyPrescriptionUpdated    NotificationType = "PRESCRIPTION_UPDATED"
	NotifyMedicationReminder     NotificationType = "MEDICATION_REMINDER"
)

type Notification struct {
	ID          int              `gorm:"primaryKey"`
	UserID      int              `gorm:"not null;index"` // References: users(id)
	Title       string           `gorm:"not null"`
	Description string           `gorm:"not null"`
	Type        NotificationType `gorm:"not null"`
	RelatedID   *string
	IsRead      bool  `gorm:"not null;index"`
	CreatedAt   int64 `gorm:"not null"`
}

// Device is a push registration token for one of the user's phones.
type Device struct {
	ID        int    `gorm:"primaryKey"`
	UserID    int    `gorm:"not null;index"` // References: users(id)
	Token     string `gorm:"uniqueIndex;not null"`
	Platform  string `gorm:"not null"`
	CreatedAt int64  `gorm:"not null"`
	UpdatedAt int64  `gorm:"not null"`
}
