package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// filterFunc applies one filter value to a query
type filterFunc func(db *gorm.DB, value any) *gorm.DB

// queryOptions describes how a shared.Filter maps onto a table
type queryOptions struct {
	// searchColumns are SQL expressions matched case-insensitively against Filter.Search
	searchColumns []string
	// filterColumns maps Filter.Filters keys to columns compared with "="
	filterColumns map[string]string
	// filterFuncs handles Filter.Filters keys that need more than equality
	filterFuncs map[string]filterFunc
	// sortFields is the ORDER BY whitelist
	sortFields map[string]bool
}

// baseRepository implements the generic read/write operations for an
// aggregate E stored as model M. Soft-deleted rows are excluded from every read.
type baseRepository[M any, E any] struct {
	db         *gorm.DB
	resource   string
	toDomain   func(*M) *E
	fromDomain func(*E) *M
	opts       queryOptions
}

func newBaseRepository[M any, E any](db *gorm.DB, resource string, toDomain func(*M) *E, fromDomain func(*E) *M, opts queryOptions) baseRepository[M, E] {
	return baseRepository[M, E]{
		db:         db,
		resource:   resource,
		toDomain:   toDomain,
		fromDomain: fromDomain,
		opts:       opts,
	}
}

// conn returns the transaction bound to ctx by UnitOfWork, or the root connection
func (r *baseRepository[M, E]) conn(ctx context.Context) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// active starts a query over the non-deleted rows of the table
func (r *baseRepository[M, E]) active(ctx context.Context) *gorm.DB {
	return r.conn(ctx).Model(new(M)).Where("is_deleted = ?", false)
}

// FindByID finds a non-deleted aggregate by its ID
func (r *baseRepository[M, E]) FindByID(ctx context.Context, id uuid.UUID) (*E, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *baseRepository[M, E]) findOne(ctx context.Context, query string, args ...any) (*E, error) {
	var model M
	if err := r.active(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NotFound(r.resource)
		}
		return nil, fmt.Errorf("find %s: %w", strings.ToLower(r.resource), err)
	}
	return r.toDomain(&model), nil
}

func (r *baseRepository[M, E]) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	if err := r.active(ctx).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check %s exists: %w", strings.ToLower(r.resource), err)
	}
	return count > 0, nil
}

// FindAll returns one page of aggregates matching the filter
func (r *baseRepository[M, E]) FindAll(ctx context.Context, filter shared.Filter) ([]E, error) {
	filter = filter.Normalize()
	query := r.applyFilter(r.active(ctx), filter)

	sortField := ValidateSortField(filter.OrderBy, r.opts.sortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	order := sortField + " " + sortOrder
	if sortField != "id" {
		// id breaks ties so rows keep their place across pages
		order += ", id " + sortOrder
	}

	var models []M
	err := query.
		Order(order).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", strings.ToLower(r.resource), err)
	}

	items := make([]E, len(models))
	for i := range models {
		items[i] = *r.toDomain(&models[i])
	}
	return items, nil
}

// Count counts aggregates matching the filter, ignoring paging
func (r *baseRepository[M, E]) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.active(ctx), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", strings.ToLower(r.resource), err)
	}
	return count, nil
}

func (r *baseRepository[M, E]) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" && len(r.opts.searchColumns) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		conds := make([]string, len(r.opts.searchColumns))
		args := make([]any, len(r.opts.searchColumns))
		for i, col := range r.opts.searchColumns {
			conds[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
			args[i] = pattern
		}
		query = query.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	// sorted so the generated SQL is stable
	keys := make([]string, 0, len(filter.Filters))
	for key := range filter.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filter.Filters[key]
		if fn, ok := r.opts.filterFuncs[key]; ok {
			query = fn(query, value)
			continue
		}
		if col, ok := r.opts.filterColumns[key]; ok {
			query = query.Where(col+" = ?", value)
		}
	}
	return query
}

// Create inserts a new aggregate
func (r *baseRepository[M, E]) Create(ctx context.Context, entity *E) error {
	if err := r.conn(ctx).Create(r.fromDomain(entity)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists, r.resource+" already exists")
		}
		return fmt.Errorf("create %s: %w", strings.ToLower(r.resource), err)
	}
	return nil
}

// update writes every column of the aggregate guarded by its version.
// The stored row must still carry agg.Version; on success the version is
// bumped, otherwise ErrConcurrencyConflict is returned and agg is unchanged.
func (r *baseRepository[M, E]) update(ctx context.Context, entity *E, agg *shared.BaseAggregateRoot) error {
	expected := agg.Version
	agg.Version = expected + 1
	model := r.fromDomain(entity)

	result := r.conn(ctx).
		Model(model).
		Where("version = ? AND is_deleted = ?", expected, false).
		Select("*").
		Omit("id", "created_at", "created_by").
		Updates(model)
	if result.Error != nil {
		agg.Version = expected
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists, r.resource+" already exists")
		}
		return fmt.Errorf("update %s: %w", strings.ToLower(r.resource), result.Error)
	}
	if result.RowsAffected == 0 {
		agg.Version = expected
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
