package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// DefaultPageSize is used when the caller does not ask for a page size
const DefaultPageSize = 20

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (updated_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "updatedAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config.
// fieldMap maps API field names to column names; unknown fields use defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// Pagination is a normalised page request
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination clamps page and page size to valid values
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// Offset returns the row offset of the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ApplyAgencyFilter scopes a query to the effective agency of the request.
// When no agency can be determined the query matches nothing.
func ApplyAgencyFilter(ctx context.Context, query *gorm.DB) *gorm.DB {
	return ApplyAgencyFilterWithColumn(ctx, query, "agency_id")
}

// ApplyAgencyFilterWithColumn applies the agency filter using a specific column name.
// Use this when joining tables and the column needs table qualification.
func ApplyAgencyFilterWithColumn(ctx context.Context, query *gorm.DB, columnName string) *gorm.DB {
	agencyID, ok := auth.EffectiveAgencyID(ctx)
	if !ok {
		return query.Where(columnName+" = ?", uuid.Nil)
	}
	return query.Where(columnName+" = ?", agencyID)
}

// ApplyLifecycleFilter restricts a query to the requested lifecycle
func ApplyLifecycleFilter(query *gorm.DB, column string, filter domain.LifecycleFilter) *gorm.DB {
	switch filter {
	case domain.LifecycleFilterAny:
		return query
	case domain.LifecycleFilterArchived:
		return query.Where(column+" = ?", domain.LifecycleArchived)
	default:
		return query.Where(column+" = ?", domain.LifecycleActive)
	}
}

// AgencyFromContext returns the effective agency or uuid.Nil
func AgencyFromContext(ctx context.Context) uuid.UUID {
	agencyID, _ := auth.EffectiveAgencyID(ctx)
	return agencyID
}

// conn picks the transaction handle when one is given
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
