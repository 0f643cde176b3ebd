package models

import (
	"time"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides the audit and soft-delete columns shared by every table.
// It maps to the domain's BaseEntity. Timestamps are owned by the domain, so
// gorm's automatic time tracking is switched off.
type BaseModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime:false"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime:false"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
	IsDeleted bool       `gorm:"not null;default:false;index"`
	DeletedAt *time.Time
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		CreatedBy: m.CreatedBy,
		UpdatedAt: m.UpdatedAt,
		UpdatedBy: m.UpdatedBy,
		IsDeleted: m.IsDeleted,
		DeletedAt: m.DeletedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.CreatedBy = e.CreatedBy
	m.UpdatedAt = e.UpdatedAt
	m.UpdatedBy = e.UpdatedBy
	m.IsDeleted = e.IsDeleted
	m.DeletedAt = e.DeletedAt
}

// AggregateModel extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a *shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// ToDomainAggregateRoot converts AggregateModel to a domain BaseAggregateRoot
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: m.BaseModel.ToDomain(),
		Version:    m.Version,
	}
}

// All returns every model, for gorm AutoMigrate in tests
func All() []any {
	return []any{
		&UserModel{},
		&CustomerModel{},
		&ProductModel{},
		&LeadModel{},
		&OpportunityModel{},
		&TaskModel{},
	}
}
