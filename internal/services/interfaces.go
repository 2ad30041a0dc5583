package services

import (
	"context"

	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
	"github.com/clinicore/scale-assessment-service/internal/scoring"
)

// ===== SERVICE INTERFACES =====

// TemplateService serves the published scale catalog. Full templates are read
// through the cache; catalog listings go straight to the repository.
type TemplateService interface {
	GetByID(ctx context.Context, id string) (*models.ScaleTemplate, error)
	GetMetadata(ctx context.Context, id string) (*models.TemplateMetadata, error)
	List(ctx context.Context, filters repositories.TemplateFilters) (*TemplateListResponse, error)
	ListCategories(ctx context.Context) ([]repositories.CategoryCount, error)
	Search(ctx context.Context, query string, limit int) ([]*models.TemplateMetadata, error)
}

// AssessmentService drives the administration lifecycle: creation, response
// capture, completion with scoring and interpretation, and cancellation.
type AssessmentService interface {
	Create(ctx context.Context, req *CreateAssessmentRequest) (*models.Assessment, error)
	GetByID(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, filters repositories.AssessmentFilters) (*AssessmentListResponse, error)
	SaveResponses(ctx context.Context, id string, req *SaveResponsesRequest) (*models.Assessment, error)
	Update(ctx context.Context, id string, req *UpdateAssessmentRequest) (*models.Assessment, error)
	Complete(ctx context.Context, id string, req *CompleteAssessmentRequest) (*CompleteAssessmentResponse, error)
	Cancel(ctx context.Context, id string) (*models.Assessment, error)
	CalculateScores(ctx context.Context, req *CalculateScoresRequest) (*ScoreResults, error)
}

// ===== REQUEST DTOS =====

type CreateAssessmentRequest struct {
	TemplateID      string                    `json:"template_id" validate:"required"`
	PatientID       string                    `json:"patient_id" validate:"required"`
	AdministratorID string                    `json:"administrator_id" validate:"required"`
	Mode            models.AdministrationMode `json:"mode" validate:"required,administration_mode"`
}

type SaveResponsesRequest struct {
	Responses   map[string]string `json:"responses" validate:"required,min=1"`
	CurrentStep *int              `json:"current_step,omitempty" validate:"omitempty,min=0"`
	Version     int               `json:"version" validate:"required,min=1"`
}

type UpdateAssessmentRequest struct {
	CurrentStep *int `json:"current_step,omitempty" validate:"omitempty,min=0"`
	Version     int  `json:"version" validate:"required,min=1"`
}

// CompleteAssessmentRequest may carry a final batch of responses; it is
// validated and merged into the stored map before the required-items gate
// runs, so the last answers need no separate save round trip. Demographics
// are opaque caller-supplied context echoed into the results.
type CompleteAssessmentRequest struct {
	Version               int               `json:"version" validate:"required,min=1"`
	Responses             map[string]string `json:"responses,omitempty"`
	Demographics          map[string]string `json:"demographics,omitempty"`
	CompletionTimeSeconds *int              `json:"completion_time_seconds,omitempty" validate:"omitempty,min=0"`
}

type CalculateScoresRequest struct {
	TemplateID   string            `json:"template_id" validate:"required"`
	Responses    map[string]string `json:"responses" validate:"required"`
	Demographics map[string]string `json:"demographics,omitempty"`
}

// ===== RESPONSE DTOS =====

type TemplateListResponse struct {
	Templates []*models.TemplateMetadata `json:"templates"`
	Total     int64                      `json:"total"`
	Limit     int                        `json:"limit"`
	Offset    int                        `json:"offset"`
}

type AssessmentListResponse struct {
	Assessments []*models.Assessment `json:"assessments"`
	Total       int64                `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// ScoreResults is the full scoring and interpretation output: totals,
// classification, guidance and warnings. Completion returns it alongside the
// sealed assessment; CalculateScores returns it alone as a transient preview
// (nothing persisted, no events). Demographics echo the caller-supplied
// context untouched.
type ScoreResults struct {
	TemplateID           string                                    `json:"template_id"`
	TotalScore           int                                       `json:"total_score"`
	SubscaleScores       map[string]int                            `json:"subscale_scores,omitempty"`
	CompletionPercentage int                                       `json:"completion_percentage"`
	AnsweredItems        int                                       `json:"answered_items"`
	Severity             string                                    `json:"severity"`
	Label                string                                    `json:"label,omitempty"`
	Guidance             string                                    `json:"guidance,omitempty"`
	Recommendations      *models.Recommendations                   `json:"recommendations,omitempty"`
	Unclassified         bool                                      `json:"unclassified"`
	Subscales            map[string]scoring.SubscaleInterpretation `json:"subscales,omitempty"`
	Warnings             []models.WarningFlag                      `json:"warnings,omitempty"`
	Demographics         map[string]string                         `json:"demographics,omitempty"`
}

// CompleteAssessmentResponse pairs the sealed assessment with its computed
// results so callers need no follow-up preview call for clinical guidance.
type CompleteAssessmentResponse struct {
	Assessment *models.Assessment `json:"assessment"`
	Results    *ScoreResults      `json:"results"`
}
