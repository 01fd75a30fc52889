package entity

type Clinic struct {
	ID          int    `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Address     string `gorm:"not null"`
	Phone       *string
	Description *string
	CreatedAt   int64 `gorm:"not null"`
	UpdatedAt   int64 `gorm:"not null"`
}
