package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/clinicore/scale-assessment-service/internal/events"
	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
	"github.com/clinicore/scale-assessment-service/internal/scoring"
	"github.com/clinicore/scale-assessment-service/internal/validator"
)

type assessmentService struct {
	repo      repositories.AssessmentRepository
	templates TemplateService
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAssessmentService(
	repo repositories.AssessmentRepository,
	templates TemplateService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
) AssessmentService {
	return &assessmentService{
		repo:      repo,
		templates: templates,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

// ===== LIFECYCLE OPERATIONS =====

func (s *assessmentService) Create(ctx context.Context, req *CreateAssessmentRequest) (*models.Assessment, error) {
	s.logger.Info("Creating assessment", "template_id", req.TemplateID, "patient_id", req.PatientID, "mode", req.Mode)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if !template.SupportsMode(req.Mode) {
		return nil, fmt.Errorf("%w: template %s, mode %s", ErrModeNotSupported, template.ID, req.Mode)
	}

	assessment := &models.Assessment{
		TemplateID:      template.ID,
		TemplateVersion: template.Version,
		PatientID:       req.PatientID,
		AdministratorID: req.AdministratorID,
		Mode:            req.Mode,
		Status:          models.StatusNotStarted,
		Responses:       datatypes.NewJSONType(map[string]string{}),
	}

	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	s.publish(ctx, events.NewAssessmentCreatedEvent(assessment))

	s.logger.Info("Assessment created", "assessment_id", assessment.ID, "template_id", template.ID)
	return assessment, nil
}

func (s *assessmentService) GetByID(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return assessment, nil
}

func (s *assessmentService) List(ctx context.Context, filters repositories.AssessmentFilters) (*AssessmentListResponse, error) {
	assessments, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	return &AssessmentListResponse{
		Assessments: assessments,
		Total:       total,
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}, nil
}

// SaveResponses validates and applies a batch of item responses. The batch is
// all-or-nothing: a single invalid value rejects the whole write and the
// stored map is untouched. Valid re-saves overwrite the previous value for
// the same item (last-write-wins).
func (s *assessmentService) SaveResponses(ctx context.Context, id string, req *SaveResponsesRequest) (*models.Assessment, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	assessment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if assessment.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: assessment %s is %s", ErrAssessmentTerminal, id, assessment.Status)
	}
	if req.Version != assessment.Version {
		return nil, fmt.Errorf("%w: expected version %d, got %d", ErrAssessmentConflict, assessment.Version, req.Version)
	}

	template, err := s.templates.GetByID(ctx, assessment.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := s.validateBatch(template, id, req.Responses); err != nil {
		return nil, err
	}

	responses := assessment.Responses.Data()
	if responses == nil {
		responses = make(map[string]string)
	}
	for itemID, value := range req.Responses {
		responses[itemID] = value
	}
	assessment.Responses = datatypes.NewJSONType(responses)

	if assessment.Status == models.StatusNotStarted {
		now := time.Now()
		assessment.Status = models.StatusInProgress
		assessment.StartedAt = &now
	}
	if req.CurrentStep != nil {
		assessment.CurrentStep = *req.CurrentStep
	}
	assessment.CompletionPercentage = s.completionPercentage(template, responses)

	if err := s.update(ctx, assessment); err != nil {
		return nil, err
	}

	return assessment, nil
}

// Update applies navigation-state changes without touching responses.
func (s *assessmentService) Update(ctx context.Context, id string, req *UpdateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	assessment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if assessment.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: assessment %s is %s", ErrAssessmentTerminal, id, assessment.Status)
	}
	if req.Version != assessment.Version {
		return nil, fmt.Errorf("%w: expected version %d, got %d", ErrAssessmentConflict, assessment.Version, req.Version)
	}

	if req.CurrentStep != nil {
		assessment.CurrentStep = *req.CurrentStep
	}

	if err := s.update(ctx, assessment); err != nil {
		return nil, err
	}

	return assessment, nil
}

// Complete merges an optional final batch of responses, gates on required
// items, runs the scoring pipeline and seals the assessment. On any failure
// the assessment keeps its current status and stored responses; completion is
// atomic from the caller's point of view.
func (s *assessmentService) Complete(ctx context.Context, id string, req *CompleteAssessmentRequest) (*CompleteAssessmentResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	assessment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !assessment.Status.CanTransitionTo(models.StatusCompleted) {
		return nil, NewStateTransitionError(id, assessment.Status, models.StatusCompleted)
	}
	if req.Version != assessment.Version {
		return nil, fmt.Errorf("%w: expected version %d, got %d", ErrAssessmentConflict, assessment.Version, req.Version)
	}

	template, err := s.templates.GetByID(ctx, assessment.TemplateID)
	if err != nil {
		return nil, err
	}

	responses := assessment.Responses.Data()
	if responses == nil {
		responses = make(map[string]string)
	}

	// Merge the final batch before the required-items gate so the last
	// answers do not need a separate save round trip.
	if len(req.Responses) > 0 {
		if err := s.validateBatch(template, id, req.Responses); err != nil {
			return nil, err
		}
		for itemID, value := range req.Responses {
			responses[itemID] = value
		}
		assessment.Responses = datatypes.NewJSONType(responses)
	}

	if missing := scoring.MissingRequired(template, responses); len(missing) > 0 {
		ids := make([]string, len(missing))
		for i, item := range missing {
			ids[i] = item.ID
		}
		return nil, NewIncompleteAssessmentError(id, ids)
	}

	result, err := scoring.Score(template, responses)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}
	interpretation := scoring.Interpret(template, result, responses)

	now := time.Now()
	assessment.Status = models.StatusCompleted
	assessment.CompletedAt = &now
	assessment.TotalScore = &result.TotalScore
	assessment.CompletionPercentage = result.CompletionPercentage
	if result.SubscaleScores != nil {
		assessment.SubscaleScores = datatypes.NewJSONType(result.SubscaleScores)
	}
	severity := interpretation.Severity
	assessment.SeverityLevel = &severity
	if interpretation.Label != "" {
		label := interpretation.Label
		assessment.Interpretation = &label
	}
	if len(interpretation.Warnings) > 0 {
		assessment.ValidityIndicators = datatypes.NewJSONType(interpretation.Warnings)
	}
	if req.CompletionTimeSeconds != nil {
		assessment.CompletionTimeSeconds = req.CompletionTimeSeconds
	} else if assessment.StartedAt != nil {
		elapsed := int(now.Sub(*assessment.StartedAt).Seconds())
		assessment.CompletionTimeSeconds = &elapsed
	}

	if err := s.update(ctx, assessment); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewAssessmentCompletedEvent(assessment))
	if len(interpretation.Warnings) > 0 {
		s.publish(ctx, events.NewAssessmentAlertFlaggedEvent(assessment, interpretation.Warnings))
	}

	s.logger.Info("Assessment completed",
		"assessment_id", assessment.ID,
		"total_score", result.TotalScore,
		"severity", severity,
		"warnings", len(interpretation.Warnings))

	return &CompleteAssessmentResponse{
		Assessment: assessment,
		Results:    buildScoreResults(template.ID, result, interpretation, req.Demographics),
	}, nil
}

func (s *assessmentService) Cancel(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !assessment.Status.CanTransitionTo(models.StatusCancelled) {
		return nil, NewStateTransitionError(id, assessment.Status, models.StatusCancelled)
	}

	assessment.Status = models.StatusCancelled

	if err := s.update(ctx, assessment); err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewAssessmentCancelledEvent(assessment))

	s.logger.Info("Assessment cancelled", "assessment_id", assessment.ID)
	return assessment, nil
}

// CalculateScores runs the scoring pipeline over ad-hoc responses without
// touching any stored assessment. Invalid responses fail the preview the same
// way they would fail a save.
func (s *assessmentService) CalculateScores(ctx context.Context, req *CalculateScoresRequest) (*ScoreResults, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := s.validateBatch(template, "", req.Responses); err != nil {
		return nil, err
	}

	result, err := scoring.Score(template, req.Responses)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}
	result.Preview = true
	interpretation := scoring.Interpret(template, result, req.Responses)

	return buildScoreResults(template.ID, result, interpretation, req.Demographics), nil
}

// ===== HELPERS =====

// validateBatch checks every response in a batch against the template.
// All-or-nothing: any invalid value rejects the batch with the per-item
// reasons, so callers apply either the whole batch or none of it.
func (s *assessmentService) validateBatch(template *models.ScaleTemplate, assessmentID string, batch map[string]string) error {
	groups := template.ResponseGroups.Data()
	rejections := make(map[string]string)
	for itemID, value := range batch {
		item, ok := template.Item(itemID)
		if !ok {
			rejections[itemID] = "item not in template"
			continue
		}
		if result := s.validator.Response().Validate(item, value, groups); !result.Valid {
			rejections[itemID] = result.Reason
		}
	}
	if len(rejections) > 0 {
		return &ResponseRejectionError{AssessmentID: assessmentID, Rejections: rejections}
	}
	return nil
}

func buildScoreResults(templateID string, result *scoring.Result, interpretation *scoring.Interpretation, demographics map[string]string) *ScoreResults {
	return &ScoreResults{
		TemplateID:           templateID,
		TotalScore:           result.TotalScore,
		SubscaleScores:       result.SubscaleScores,
		CompletionPercentage: result.CompletionPercentage,
		AnsweredItems:        result.AnsweredItems,
		Severity:             interpretation.Severity,
		Label:                interpretation.Label,
		Guidance:             interpretation.Guidance,
		Recommendations:      interpretation.Recommendations,
		Unclassified:         interpretation.Unclassified,
		Subscales:            interpretation.Subscales,
		Warnings:             interpretation.Warnings,
		Demographics:         demographics,
	}
}

// update persists through the repository's optimistic version check and maps
// the conflict sentinel into the service taxonomy.
func (s *assessmentService) update(ctx context.Context, assessment *models.Assessment) error {
	err := s.repo.Update(ctx, assessment)
	if err == nil {
		return nil
	}
	if repositories.IsNotFoundError(err) {
		return ErrAssessmentNotFound
	}
	if errors.Is(err, repositories.ErrVersionConflict) {
		return fmt.Errorf("%w: assessment %s", ErrAssessmentConflict, assessment.ID)
	}
	return fmt.Errorf("failed to update assessment: %w", err)
}

func (s *assessmentService) completionPercentage(template *models.ScaleTemplate, responses map[string]string) int {
	result, err := scoring.Score(template, responses)
	if err != nil {
		// Malformed templates surface at completion; progress stays best-effort.
		s.logger.Warn("Progress scoring failed", "template_id", template.ID, "error", err)
		return 0
	}
	return result.CompletionPercentage
}

func (s *assessmentService) publish(ctx context.Context, event *events.AssessmentEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Event delivery is best-effort; the durable write already succeeded.
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}
