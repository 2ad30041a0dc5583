package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/clinicore/scale-assessment-service/internal/repositories"
)

// SharedHelpers contains query-building logic used by multiple repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyTemplateFilters applies common template filters to a query
func (h *SharedHelpers) ApplyTemplateFilters(query *gorm.DB, filters repositories.TemplateFilters) *gorm.DB {
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.FeaturedOnly {
		query = query.Where("featured = ?", true)
	}
	if filters.SearchText != nil && *filters.SearchText != "" {
		searchQuery := fmt.Sprintf("%%%s%%", *filters.SearchText)
		query = query.Where("name ILIKE ? OR abbreviation ILIKE ?", searchQuery, searchQuery)
	}
	return query
}

// ApplyAssessmentFilters applies common assessment filters to a query
func (h *SharedHelpers) ApplyAssessmentFilters(query *gorm.DB, filters repositories.AssessmentFilters) *gorm.DB {
	if filters.TemplateID != nil {
		query = query.Where("template_id = ?", *filters.TemplateID)
	}
	if filters.PatientID != nil {
		query = query.Where("patient_id = ?", *filters.PatientID)
	}
	if filters.AdministratorID != nil {
		query = query.Where("administrator_id = ?", *filters.AdministratorID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting to a query.
// Sort columns are whitelisted to keep user input out of the ORDER BY clause.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSorts := map[string]bool{
		"name":       true,
		"category":   true,
		"status":     true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query = query.Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
