package entity

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

type User struct {
	ID            int    `gorm:"primaryKey"`
	SubUUID       string `gorm:"uniqueIndex;not null"`
	Username      string `gorm:"not null"`
	Email         string `gorm:"uniqueIndex;not null"`
	EmailVerified bool   `gorm:"not null"`
	Role          Role   `gorm:"not null;index"`
	Specialty     *string
	ClinicID      *int  // References: clinics(id)
	CreatedAt     int64 `gorm:"not null"`
	UpdatedAt     int64 `gorm:"not null"`
}

func (u *User) IsAdmin() bool  { return u.Role == RoleAdmin }
func (u *User) IsDoctor() bool { return u.Role == RoleDoctor }
