package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// withCommonSortFields returns fields plus the audit columns every table has
func withCommonSortFields(fields ...string) map[string]bool {
	allowed := map[string]bool{
		"id":         true,
		"created_at": true,
		"updated_at": true,
	}
	for _, f := range fields {
		allowed[f] = true
	}
	return allowed
}

// CustomerSortFields contains allowed sort fields for customers
var CustomerSortFields = withCommonSortFields("code", "first_name", "last_name", "email", "company_name", "status")

// ProductSortFields contains allowed sort fields for products
var ProductSortFields = withCommonSortFields("sku", "name", "category", "unit_price", "is_active")

// LeadSortFields contains allowed sort fields for leads
var LeadSortFields = withCommonSortFields("first_name", "last_name", "email", "company", "status", "source", "score")

// OpportunitySortFields contains allowed sort fields for opportunities
var OpportunitySortFields = withCommonSortFields("name", "amount", "stage", "probability", "expected_close_date", "closed_at")

// TaskSortFields contains allowed sort fields for tasks
var TaskSortFields = withCommonSortFields("title", "due_date", "priority", "status", "completed_at")

// UserSortFields contains allowed sort fields for users
var UserSortFields = withCommonSortFields("username", "email", "role", "status", "last_login_at")
