package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// DefaultPageSize is used when the caller does not ask for a size
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
// Returns the default sort if field is not in the whitelist.
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

// NormalizePage clamps page and size to sane values
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ApplyZoneFilter limits a query to the caller's zone. Admins and system
// callers see everything.
func ApplyZoneFilter(ctx context.Context, query *gorm.DB, column string) *gorm.DB {
	if zoneID := zoneFilter(ctx); zoneID != nil {
		return query.Where(column+" = ?", *zoneID)
	}
	return query
}

// HasZoneAccess reports whether the caller may see a record in zoneID
func HasZoneAccess(ctx context.Context, zoneID uuid.UUID) bool {
	filter := zoneFilter(ctx)
	return filter == nil || *filter == zoneID
}

func zoneFilter(ctx context.Context) *uuid.UUID {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil
	}
	if user.IsAdmin() {
		return nil
	}
	if user.ZoneID == nil {
		// zone users without a zone see nothing
		nilZone := uuid.Nil
		return &nilZone
	}
	return user.ZoneID
}
