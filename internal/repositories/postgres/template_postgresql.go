package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
)

type TemplatePostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewTemplatePostgreSQL(db *gorm.DB) repositories.TemplateRepository {
	return &TemplatePostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// GetByID retrieves a fully hydrated template by ID
func (t *TemplatePostgreSQL) GetByID(ctx context.Context, id string) (*models.ScaleTemplate, error) {
	var template models.ScaleTemplate
	err := t.db.WithContext(ctx).
		Where("id = ?", id).
		First(&template).Error

	if err != nil {
		return nil, err
	}

	return &template, nil
}

// GetMetadata retrieves the catalog projection of a template without loading
// the structure, response groups or scoring documents.
func (t *TemplatePostgreSQL) GetMetadata(ctx context.Context, id string) (*models.TemplateMetadata, error) {
	var metadata models.TemplateMetadata
	err := t.db.WithContext(ctx).
		Model(&models.ScaleTemplate{}).
		Select("id", "name", "abbreviation", "version", "category", "featured", "estimated_minutes", "modes").
		Where("id = ?", id).
		First(&metadata).Error

	if err != nil {
		return nil, err
	}

	return &metadata, nil
}

// List retrieves template metadata with filters and pagination
func (t *TemplatePostgreSQL) List(ctx context.Context, filters repositories.TemplateFilters) ([]*models.TemplateMetadata, int64, error) {
	query := t.db.WithContext(ctx).Model(&models.ScaleTemplate{})

	query = t.helpers.ApplyTemplateFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	sortOrder := filters.SortOrder
	if sortOrder == "" {
		sortOrder = "asc"
	}
	query = t.helpers.ApplyPaginationAndSort(query, sortBy, sortOrder, filters.Limit, filters.Offset)

	var templates []*models.TemplateMetadata
	err := query.
		Select("id", "name", "abbreviation", "version", "category", "featured", "estimated_minutes", "modes").
		Find(&templates).Error
	if err != nil {
		return nil, 0, err
	}

	return templates, total, nil
}

// ListCategories returns the distinct catalog categories with template counts
func (t *TemplatePostgreSQL) ListCategories(ctx context.Context) ([]repositories.CategoryCount, error) {
	var categories []repositories.CategoryCount
	err := t.db.WithContext(ctx).
		Model(&models.ScaleTemplate{}).
		Select("category, COUNT(*) as count").
		Group("category").
		Order("category ASC").
		Find(&categories).Error

	if err != nil {
		return nil, err
	}

	return categories, nil
}

// Search performs a case-insensitive search over name, abbreviation and category
func (t *TemplatePostgreSQL) Search(ctx context.Context, query string, limit int) ([]*models.TemplateMetadata, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	searchQuery := fmt.Sprintf("%%%s%%", query)

	var templates []*models.TemplateMetadata
	err := t.db.WithContext(ctx).
		Model(&models.ScaleTemplate{}).
		Select("id", "name", "abbreviation", "version", "category", "featured", "estimated_minutes", "modes").
		Where("name ILIKE ? OR abbreviation ILIKE ? OR category ILIKE ?", searchQuery, searchQuery, searchQuery).
		Order("featured DESC, name ASC").
		Limit(limit).
		Find(&templates).Error

	if err != nil {
		return nil, err
	}

	return templates, nil
}
