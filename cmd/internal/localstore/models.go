// Package localstore is the offline cache of the sync agent. Rows created
// offline are keyed by a client-generated UUID and carry the server id once
// they have been pushed.
package localstore

type Operation string

const (
	OpCreate Operation = "CREATE"
	OpDelete Operation = "DELETE"
)

type Prescription struct {
	LocalID          string     `gorm:"primaryKey" json:"local_id"`
	ServerID         *int       `gorm:"index" json:"server_id,omitempty"`
	PatientID        int        `gorm:"not null" json:"patient_id"`
	DoctorID         int        `gorm:"not null" json:"doctor_id"`
	Date             string     `gorm:"not null" json:"date"`
	Notes            *string    `json:"notes,omitempty"`
	PDFFile          *string    `json:"pdf_file,omitempty"`
	CreatedAt        int64      `gorm:"not null" json:"created_at"`
	UpdatedAt        int64      `gorm:"not null" json:"updated_at"`
	IsSynced         bool       `gorm:"not null;index" json:"is_synced"`
	PendingOperation *Operation `json:"pending_operation,omitempty"`

	Items []PrescriptionItem `gorm:"foreignKey:PrescriptionLocalID;references:LocalID;constraint:OnDelete:CASCADE" json:"items"`
}

type PrescriptionItem struct {
	LocalID             string `gorm:"primaryKey" json:"local_id"`
	ServerID            *int   `json:"server_id,omitempty"`
	PrescriptionLocalID string `gorm:"not null;index" json:"prescription_local_id"`
	MedicationID        int    `gorm:"not null;index" json:"medication_id"`
	Dosage              string `gorm:"not null" json:"dosage"`
	Duration            string `gorm:"not null" json:"duration"`
	Frequency           string `gorm:"not null" json:"frequency"`
	Instructions        string `json:"instructions"`
	IsSynced            bool   `gorm:"not null;index" json:"is_synced"`
}

// Medication mirrors the server catalogue; ID is the server id.
type Medication struct {
	ID          int     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string  `gorm:"not null" json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type Appointment struct {
	LocalID            string     `gorm:"primaryKey" json:"local_id"`
	ServerID           *int       `gorm:"index" json:"server_id,omitempty"`
	DoctorID           int        `gorm:"not null" json:"doctor_id"`
	PatientID          int        `gorm:"not null;index" json:"patient_id"`
	StartsAt           int64      `gorm:"not null" json:"starts_at"`
	EndsAt             int64      `gorm:"not null" json:"ends_at"`
	Name               string     `gorm:"not null" json:"name"`
	Gender             string     `json:"gender"`
	Age                string     `json:"age"`
	ProblemDescription string     `json:"problem_description"`
	Status             string     `json:"status"`
	QRCode             string     `json:"qr_code"`
	DoctorName         *string    `json:"doctor_name,omitempty"`
	DoctorSpecialty    *string    `json:"doctor_specialty,omitempty"`
	IsSynced           bool       `gorm:"not null;index" json:"is_synced"`
	PendingOperation   *Operation `json:"pending_operation,omitempty"`
}

// SyncStatus is a single-row table.
type SyncStatus struct {
	ID                int   `gorm:"primaryKey;autoIncrement:false" json:"-"`
	LastSyncTimestamp int64 `json:"last_sync_timestamp"`
	IsSyncing         bool  `json:"is_syncing"`
	PendingChanges    int   `json:"pending_changes"`
}

func (SyncStatus) TableName() string { return "sync_status" }
