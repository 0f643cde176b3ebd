package models

import (
	"time"

	"github.com/enterprisecrm/backend/internal/domain/identity"
)

// UserModel is the persistence model for the User aggregate.
type UserModel struct {
	AggregateModel
	Username          string              `gorm:"type:varchar(100);not null;index"`
	Email             string              `gorm:"type:varchar(200);not null;index"`
	PasswordHash      string              `gorm:"type:varchar(255);not null"`
	FirstName         string              `gorm:"type:varchar(100)"`
	LastName          string              `gorm:"type:varchar(100)"`
	Role              identity.Role       `gorm:"type:varchar(20);not null;default:'sales_rep'"`
	Status            identity.UserStatus `gorm:"type:varchar(20);not null;default:'active'"`
	FailedAttempts    int                 `gorm:"not null;default:0"`
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	LastLoginIP       string `gorm:"column:last_login_ip;type:varchar(45)"`
	PasswordChangedAt *time.Time
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Username:          m.Username,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		Role:              m.Role,
		Status:            m.Status,
		FailedAttempts:    m.FailedAttempts,
		LockedUntil:       m.LockedUntil,
		LastLoginAt:       m.LastLoginAt,
		LastLoginIP:       m.LastLoginIP,
		PasswordChangedAt: m.PasswordChangedAt,
	}
}

// UserModelFromDomain creates a persistence model from a domain User.
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{
		Username:          u.Username,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Role:              u.Role,
		Status:            u.Status,
		FailedAttempts:    u.FailedAttempts,
		LockedUntil:       u.LockedUntil,
		LastLoginAt:       u.LastLoginAt,
		LastLoginIP:       u.LastLoginIP,
		PasswordChangedAt: u.PasswordChangedAt,
	}
	m.FromDomainAggregateRoot(&u.BaseAggregateRoot)
	return m
}
