package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
)

type AssessmentPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAssessmentPostgreSQL(db *gorm.DB) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// Create creates a new assessment with its initial lifecycle state
func (a *AssessmentPostgreSQL) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	assessment.Status = models.StatusNotStarted
	assessment.Version = 1
	assessment.CreatedAt = time.Now()
	assessment.UpdatedAt = assessment.CreatedAt

	if err := a.db.WithContext(ctx).Create(assessment).Error; err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	return nil
}

// GetByID retrieves an assessment by ID
func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, id string) (*models.Assessment, error) {
	var assessment models.Assessment
	err := a.db.WithContext(ctx).
		Where("id = ?", id).
		First(&assessment).Error

	if err != nil {
		return nil, err
	}

	return &assessment, nil
}

// Update persists an assessment with an optimistic version check. The row is
// only written when the stored version matches the version the caller read;
// otherwise the write is rejected with ErrVersionConflict and the caller must
// re-read and retry.
func (a *AssessmentPostgreSQL) Update(ctx context.Context, assessment *models.Assessment) error {
	currentVersion := assessment.Version
	assessment.Version = currentVersion + 1
	assessment.UpdatedAt = time.Now()

	result := a.db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("id = ? AND version = ?", assessment.ID, currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(assessment)

	if result.Error != nil {
		assessment.Version = currentVersion
		return fmt.Errorf("failed to update assessment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		assessment.Version = currentVersion

		// Distinguish a stale version from a missing row
		var count int64
		if err := a.db.WithContext(ctx).
			Model(&models.Assessment{}).
			Where("id = ?", assessment.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return repositories.ErrVersionConflict
	}

	return nil
}

// List retrieves assessments with filters and pagination
func (a *AssessmentPostgreSQL) List(ctx context.Context, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	query := a.db.WithContext(ctx).Model(&models.Assessment{})

	query = a.helpers.ApplyAssessmentFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var assessments []*models.Assessment
	err := query.Find(&assessments).Error
	if err != nil {
		return nil, 0, err
	}

	return assessments, total, nil
}
