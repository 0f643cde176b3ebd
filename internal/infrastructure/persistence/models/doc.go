// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Key Principles:
// 1. Domain aggregates carry no GORM tags
// 2. Persistence models carry all GORM annotations and table mappings
// 3. Each model has ToDomain / FromDomain conversions
// 4. The schema itself is owned by the SQL files in migrations/
//
// Structure:
// - base.go: audit, soft-delete and version columns
// - crm.go: Customer, Lead, Opportunity, Task
// - catalog.go: Product
// - identity.go: User
package models
