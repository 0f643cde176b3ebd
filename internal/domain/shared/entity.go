package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
	IsDeletedEntity() bool
}

// BaseEntity provides identity, audit and soft-delete fields for all entities
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	CreatedBy *uuid.UUID
	UpdatedAt time.Time
	UpdatedBy *uuid.UUID
	IsDeleted bool
	DeletedAt *time.Time
}

// NewBaseEntity creates a new base entity with a generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// IsDeletedEntity reports whether the entity has been soft deleted
func (e *BaseEntity) IsDeletedEntity() bool {
	return e.IsDeleted
}

// SetCreatedBy records the creating user. Nil user IDs are ignored.
func (e *BaseEntity) SetCreatedBy(userID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	e.CreatedBy = &userID
	e.UpdatedBy = &userID
}

// Touch bumps UpdatedAt and records who made the change
func (e *BaseEntity) Touch(userID uuid.UUID) {
	e.UpdatedAt = time.Now()
	if userID != uuid.Nil {
		e.UpdatedBy = &userID
	}
}

// MarkDeleted soft deletes the entity
func (e *BaseEntity) MarkDeleted(userID uuid.UUID) error {
	if e.IsDeleted {
		return NewDomainError(CodeInvalidState, "Entity is already deleted")
	}
	now := time.Now()
	e.IsDeleted = true
	e.DeletedAt = &now
	e.Touch(userID)
	return nil
}
