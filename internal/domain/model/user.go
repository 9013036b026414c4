package model

import "time"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

type User struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"column:password_hash;not null" json:"-"`
	FirstName     string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName      string     `gorm:"type:varchar(100)" json:"last_name"`
	Phone         string     `gorm:"type:varchar(30)" json:"phone"`
	Role          Role       `gorm:"type:varchar(20);not null;default:'CUSTOMER'" json:"role"`
	TokenVersion  int        `gorm:"not null;default:0" json:"-"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	IsBlocked     bool       `gorm:"not null;default:false" json:"is_blocked"`
	LoyaltyPoints int64      `gorm:"not null;default:0" json:"loyalty_points"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// 表示名（請求書・メール用）
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}
