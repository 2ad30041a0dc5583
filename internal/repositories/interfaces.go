package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/clinicore/scale-assessment-service/internal/models"
)

// ErrVersionConflict is returned when an assessment write carries a stale
// version: another administration context has applied a write since this
// caller last read the row.
var ErrVersionConflict = errors.New("assessment was modified concurrently")

// IsNotFoundError checks if err represents a missing row
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// ===== SHARED FILTER STRUCTS =====

type TemplateFilters struct {
	Category     *string `json:"category"`
	SearchText   *string `json:"search_text"`
	FeaturedOnly bool    `json:"featured_only"`
	Limit        int     `json:"limit"`
	Offset       int     `json:"offset"`
	SortBy       string  `json:"sort_by"`    // "name", "category", "created_at"
	SortOrder    string  `json:"sort_order"` // "asc", "desc"
}

type AssessmentFilters struct {
	TemplateID      *string                  `json:"template_id"`
	PatientID       *string                  `json:"patient_id"`
	AdministratorID *string                  `json:"administrator_id"`
	Status          *models.AssessmentStatus `json:"status"`
	DateFrom        *time.Time               `json:"date_from"`
	DateTo          *time.Time               `json:"date_to"`
	Limit           int                      `json:"limit"`
	Offset          int                      `json:"offset"`
	SortBy          string                   `json:"sort_by"`
	SortOrder       string                   `json:"sort_order"`
}

// CategoryCount pairs a catalog category with the number of published
// templates it holds.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ===== REPOSITORY INTERFACES =====

// TemplateRepository provides read access to the published scale template
// catalog. Templates are immutable once published, so there are no write
// operations at this boundary.
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.ScaleTemplate, error)
	GetMetadata(ctx context.Context, id string) (*models.TemplateMetadata, error)
	List(ctx context.Context, filters TemplateFilters) ([]*models.TemplateMetadata, int64, error)
	ListCategories(ctx context.Context) ([]CategoryCount, error)
	Search(ctx context.Context, query string, limit int) ([]*models.TemplateMetadata, error)
}

// AssessmentRepository persists administration instances. Update applies an
// optimistic version check: a stale write returns ErrVersionConflict and
// leaves the row untouched.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	GetByID(ctx context.Context, id string) (*models.Assessment, error)
	Update(ctx context.Context, assessment *models.Assessment) error
	List(ctx context.Context, filters AssessmentFilters) ([]*models.Assessment, int64, error)
}
