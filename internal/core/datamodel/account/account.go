package account

import "time"

type Account struct {
	ID           int64      `gorm:"primaryKey"`
	Username     string     `gorm:"column:username;uniqueIndex;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	FullName     string     `gorm:"column:full_name"`
	Email        string     `gorm:"column:email"`
	Role         string     `gorm:"column:role;not null;index"`
	District     *string    `gorm:"column:district;index"`
	Division     *string    `gorm:"column:division"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	CreatedBy    *int64     `gorm:"column:created_by"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}
