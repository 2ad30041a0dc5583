package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clinicore/scale-assessment-service/internal/events"
	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
	"github.com/clinicore/scale-assessment-service/internal/validator"
)

// fakeAssessmentRepo keeps assessments in a map and mirrors the optimistic
// version behavior of the postgres implementation.
type fakeAssessmentRepo struct {
	assessments map[string]*models.Assessment
	nextID      int
}

func newFakeAssessmentRepo() *fakeAssessmentRepo {
	return &fakeAssessmentRepo{assessments: make(map[string]*models.Assessment)}
}

func (r *fakeAssessmentRepo) Create(_ context.Context, a *models.Assessment) error {
	r.nextID++
	a.ID = fmt.Sprintf("assessment-%d", r.nextID)
	a.Status = models.StatusNotStarted
	a.Version = 1
	stored := *a
	r.assessments[a.ID] = &stored
	return nil
}

func (r *fakeAssessmentRepo) GetByID(_ context.Context, id string) (*models.Assessment, error) {
	stored, ok := r.assessments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *stored
	return &copy, nil
}

func (r *fakeAssessmentRepo) Update(_ context.Context, a *models.Assessment) error {
	stored, ok := r.assessments[a.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != a.Version {
		return repositories.ErrVersionConflict
	}
	a.Version++
	updated := *a
	r.assessments[a.ID] = &updated
	return nil
}

func (r *fakeAssessmentRepo) List(_ context.Context, _ repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	out := make([]*models.Assessment, 0, len(r.assessments))
	for _, a := range r.assessments {
		copy := *a
		out = append(out, &copy)
	}
	return out, int64(len(out)), nil
}

// fakeTemplateService serves a fixed template without cache or store.
type fakeTemplateService struct {
	template *models.ScaleTemplate
}

func (s *fakeTemplateService) GetByID(_ context.Context, id string) (*models.ScaleTemplate, error) {
	if s.template == nil || s.template.ID != id {
		return nil, ErrTemplateNotFound
	}
	return s.template, nil
}

func (s *fakeTemplateService) GetMetadata(_ context.Context, id string) (*models.TemplateMetadata, error) {
	if s.template == nil || s.template.ID != id {
		return nil, ErrTemplateNotFound
	}
	return s.template.Metadata(), nil
}

func (s *fakeTemplateService) List(_ context.Context, _ repositories.TemplateFilters) (*TemplateListResponse, error) {
	return &TemplateListResponse{}, nil
}

func (s *fakeTemplateService) ListCategories(_ context.Context) ([]repositories.CategoryCount, error) {
	return nil, nil
}

func (s *fakeTemplateService) Search(_ context.Context, _ string, _ int) ([]*models.TemplateMetadata, error) {
	return nil, nil
}

func anxietyTemplate() *models.ScaleTemplate {
	options := []models.ResponseOption{
		{Value: "0", Label: "Not at all", Score: 0},
		{Value: "1", Label: "Several days", Score: 1},
		{Value: "2", Label: "More than half the days", Score: 2},
		{Value: "3", Label: "Nearly every day", Score: 3},
	}

	items := make([]models.Item, 7)
	for i := range items {
		items[i] = models.Item{
			Number:        i + 1,
			ID:            fmt.Sprintf("gad7-%d", i+1),
			Prompt:        fmt.Sprintf("Item %d", i+1),
			Kind:          models.KindLikert,
			Required:      true,
			ResponseGroup: "frequency",
		}
	}
	items[6].AlertTrigger = &models.AlertTrigger{
		Values:  []string{"3"},
		Message: "Severe daily anxiety endorsed",
	}

	return &models.ScaleTemplate{
		ID:           "gad-7",
		Name:         "Generalized Anxiety Disorder 7-item",
		Abbreviation: "GAD-7",
		Version:      1,
		Category:     "anxiety",
		Modes:        datatypes.JSONSlice[models.AdministrationMode]{models.ModeProfessional, models.ModeSelfAdministered},
		Structure: datatypes.NewJSONType([]models.Section{
			{Items: items},
		}),
		ResponseGroups: datatypes.NewJSONType(map[string][]models.ResponseOption{
			"frequency": options,
		}),
		Scoring: datatypes.NewJSONType(models.ScoringSpec{
			Method: models.ScoringMethodSum,
			Range:  models.ScoreRange{Min: 0, Max: 21},
		}),
		Interpretation: datatypes.NewJSONType(models.InterpretationSpec{
			Rules: []models.InterpretationRule{
				{MinScore: 0, MaxScore: 4, Severity: "minimal", Label: "Minimal anxiety"},
				{MinScore: 5, MaxScore: 9, Severity: "mild", Label: "Mild anxiety"},
				{MinScore: 10, MaxScore: 14, Severity: "moderate", Label: "Moderate anxiety"},
				{MinScore: 15, MaxScore: 21, Severity: "severe", Label: "Severe anxiety"},
			},
		}),
	}
}

func newTestAssessmentService(t *testing.T) (AssessmentService, *fakeAssessmentRepo, *events.MockEventPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newFakeAssessmentRepo()
	publisher := events.NewMockEventPublisher(logger)
	templates := &fakeTemplateService{template: anxietyTemplate()}
	service := NewAssessmentService(repo, templates, publisher, logger, validator.New())
	return service, repo, publisher
}

func createTestAssessment(t *testing.T, service AssessmentService) *models.Assessment {
	t.Helper()
	assessment, err := service.Create(context.Background(), &CreateAssessmentRequest{
		TemplateID:      "gad-7",
		PatientID:       "patient-1",
		AdministratorID: "clinician-1",
		Mode:            models.ModeProfessional,
	})
	require.NoError(t, err)
	return assessment
}

func fullResponses(value string) map[string]string {
	responses := make(map[string]string, 7)
	for i := 1; i <= 7; i++ {
		responses[fmt.Sprintf("gad7-%d", i)] = value
	}
	return responses
}

func TestCreateAssessment(t *testing.T) {
	service, _, publisher := newTestAssessmentService(t)

	assessment := createTestAssessment(t, service)

	assert.Equal(t, models.StatusNotStarted, assessment.Status)
	assert.Equal(t, 1, assessment.Version)
	assert.Equal(t, "gad-7", assessment.TemplateID)
	assert.Equal(t, 1, assessment.TemplateVersion)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventAssessmentCreated, published[0].Type)
}

func TestCreateAssessmentUnsupportedMode(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)

	_, err := service.Create(context.Background(), &CreateAssessmentRequest{
		TemplateID:      "gad-7",
		PatientID:       "patient-1",
		AdministratorID: "clinician-1",
		Mode:            models.ModeRemote,
	})
	require.ErrorIs(t, err, ErrModeNotSupported)
}

func TestCreateAssessmentUnknownTemplate(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)

	_, err := service.Create(context.Background(), &CreateAssessmentRequest{
		TemplateID:      "nope",
		PatientID:       "patient-1",
		AdministratorID: "clinician-1",
		Mode:            models.ModeProfessional,
	})
	require.ErrorIs(t, err, ErrTemplateNotFound)
	assert.True(t, IsNotFound(err))
}

func TestSaveResponsesStartsAssessment(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	updated, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "2", "gad7-2": "1"},
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, updated.Status)
	require.NotNil(t, updated.StartedAt)
	assert.Equal(t, 2, updated.ResponseCount())
	assert.Equal(t, 29, updated.CompletionPercentage) // 2/7 rounded
	assert.Equal(t, 2, updated.Version)
}

func TestSaveResponsesLastWriteWins(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	first, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "0"},
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	second, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "3"},
		Version:   first.Version,
	})
	require.NoError(t, err)

	value, ok := second.Response("gad7-1")
	require.True(t, ok)
	assert.Equal(t, "3", value)
	assert.Equal(t, 1, second.ResponseCount())
}

func TestSaveResponsesSameValueIsIdempotent(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	first, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "2"},
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	second, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "2"},
		Version:   first.Version,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ResponseCount(), second.ResponseCount())
	assert.Equal(t, first.CompletionPercentage, second.CompletionPercentage)
	value, ok := second.Response("gad7-1")
	require.True(t, ok)
	assert.Equal(t, "2", value)
}

func TestSaveResponsesBatchIsAllOrNothing(t *testing.T) {
	service, repo, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	_, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{
			"gad7-1": "2",
			"gad7-2": "9", // not a declared option
			"gad7-3": "1",
		},
		Version: assessment.Version,
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var rre *ResponseRejectionError
	require.ErrorAs(t, err, &rre)
	assert.Len(t, rre.Rejections, 1)
	assert.Contains(t, rre.Rejections, "gad7-2")

	// Valid values from the same batch were not applied
	stored, err := repo.GetByID(context.Background(), assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ResponseCount())
	assert.Equal(t, models.StatusNotStarted, stored.Status)
}

func TestSaveResponsesRejectsUnknownItem(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	_, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"phq9-1": "2"},
		Version:   assessment.Version,
	})
	var rre *ResponseRejectionError
	require.ErrorAs(t, err, &rre)
	assert.Equal(t, "item not in template", rre.Rejections["phq9-1"])
}

func TestSaveResponsesStaleVersionRejected(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	_, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "1"},
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	// Second writer still holds the original version
	_, err = service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-2": "1"},
		Version:   assessment.Version,
	})
	require.ErrorIs(t, err, ErrAssessmentConflict)
	assert.True(t, IsConflict(err))
}

func TestCompleteAssessment(t *testing.T) {
	service, _, publisher := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	saved, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: fullResponses("2"),
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	resp, err := service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version: saved.Version,
	})
	require.NoError(t, err)

	completed := resp.Assessment
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.TotalScore)
	assert.Equal(t, 14, *completed.TotalScore)
	require.NotNil(t, completed.SeverityLevel)
	assert.Equal(t, "moderate", *completed.SeverityLevel)
	assert.Equal(t, 100, completed.CompletionPercentage)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.CompletionTimeSeconds)

	require.NotNil(t, resp.Results)
	assert.Equal(t, 14, resp.Results.TotalScore)
	assert.Equal(t, "moderate", resp.Results.Severity)
	assert.Equal(t, "Moderate anxiety", resp.Results.Label)

	types := make([]events.EventType, 0)
	for _, e := range publisher.GetPublishedEvents() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.EventAssessmentCompleted)
	assert.NotContains(t, types, events.EventAssessmentAlertFlagged)
}

func TestCompleteMergesFinalResponses(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	saved, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "2", "gad7-2": "2"},
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	// The remaining items arrive in the completion call itself
	final := map[string]string{
		"gad7-3": "2", "gad7-4": "2", "gad7-5": "2", "gad7-6": "2", "gad7-7": "2",
	}
	resp, err := service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version:   saved.Version,
		Responses: final,
	})
	require.NoError(t, err)

	completed := resp.Assessment
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Equal(t, 7, completed.ResponseCount())
	require.NotNil(t, completed.TotalScore)
	assert.Equal(t, 14, *completed.TotalScore)
}

func TestCompleteWithOnlyFinalResponses(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	// All responses delivered in the completion request of a fresh assessment
	resp, err := service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version:   assessment.Version,
		Responses: fullResponses("1"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, resp.Assessment.Status)
	assert.Equal(t, 100, resp.Assessment.CompletionPercentage)
}

func TestCompleteRejectsInvalidFinalBatch(t *testing.T) {
	service, repo, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	saved, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "2", "gad7-2": "2"},
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	_, err = service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version: saved.Version,
		Responses: map[string]string{
			"gad7-3": "2", "gad7-4": "9", "gad7-5": "2", "gad7-6": "2", "gad7-7": "2",
		},
	})
	var rre *ResponseRejectionError
	require.ErrorAs(t, err, &rre)
	assert.Contains(t, rre.Rejections, "gad7-4")

	// The rejected batch left the assessment untouched
	stored, err := repo.GetByID(context.Background(), assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Equal(t, 2, stored.ResponseCount())
}

func TestCompleteCarriesDemographics(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	saved, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: fullResponses("2"),
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	resp, err := service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version:      saved.Version,
		Demographics: map[string]string{"age": "34", "sex": "F"},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Results)
	assert.Equal(t, "34", resp.Results.Demographics["age"])
	assert.Equal(t, "F", resp.Results.Demographics["sex"])
}

func TestCompleteAssessmentRaisesAlertFlag(t *testing.T) {
	service, _, publisher := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	responses := fullResponses("0")
	responses["gad7-7"] = "3" // endorses the alert trigger

	saved, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: responses,
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	resp, err := service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version: saved.Version,
	})
	require.NoError(t, err)

	// Score of 3 stays minimal; the warning flag is independent of severity
	completed := resp.Assessment
	require.NotNil(t, completed.SeverityLevel)
	assert.Equal(t, "minimal", *completed.SeverityLevel)
	warnings := completed.ValidityIndicators.Data()
	require.Len(t, warnings, 1)
	assert.Equal(t, "gad7-7", warnings[0].ItemID)

	types := make([]events.EventType, 0)
	for _, e := range publisher.GetPublishedEvents() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.EventAssessmentAlertFlagged)
}

func TestCompleteAssessmentGatesOnRequiredItems(t *testing.T) {
	service, repo, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	saved, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "2", "gad7-2": "2"},
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	_, err = service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version: saved.Version,
	})
	require.Error(t, err)
	assert.True(t, IsIncomplete(err))

	var iae *IncompleteAssessmentError
	require.ErrorAs(t, err, &iae)
	assert.Equal(t, []string{"gad7-3", "gad7-4", "gad7-5", "gad7-6", "gad7-7"}, iae.MissingItems)

	// Failed completion leaves the assessment exactly as it was
	stored, err := repo.GetByID(context.Background(), assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Nil(t, stored.TotalScore)
	assert.Equal(t, 2, stored.ResponseCount())
}

func TestCompletedAssessmentIsImmutable(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	saved, err := service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: fullResponses("1"),
		Version:   assessment.Version,
	})
	require.NoError(t, err)

	resp, err := service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version: saved.Version,
	})
	require.NoError(t, err)

	completed := resp.Assessment
	_, err = service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "3"},
		Version:   completed.Version,
	})
	require.ErrorIs(t, err, ErrAssessmentTerminal)

	_, err = service.Complete(context.Background(), assessment.ID, &CompleteAssessmentRequest{
		Version: completed.Version,
	})
	assert.True(t, IsStateTransition(err))

	_, err = service.Cancel(context.Background(), assessment.ID)
	assert.True(t, IsStateTransition(err))
}

func TestCancelAssessment(t *testing.T) {
	service, _, publisher := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	cancelled, err := service.Cancel(context.Background(), assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	// Cancellation is terminal; responses can no longer change
	_, err = service.SaveResponses(context.Background(), assessment.ID, &SaveResponsesRequest{
		Responses: map[string]string{"gad7-1": "1"},
		Version:   cancelled.Version,
	})
	require.ErrorIs(t, err, ErrAssessmentTerminal)

	types := make([]events.EventType, 0)
	for _, e := range publisher.GetPublishedEvents() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.EventAssessmentCancelled)
}

func TestCalculateScoresPreviewDoesNotPersist(t *testing.T) {
	service, repo, publisher := newTestAssessmentService(t)

	preview, err := service.CalculateScores(context.Background(), &CalculateScoresRequest{
		TemplateID:   "gad-7",
		Responses:    fullResponses("3"),
		Demographics: map[string]string{"age": "52"},
	})
	require.NoError(t, err)

	assert.Equal(t, 21, preview.TotalScore)
	assert.Equal(t, "severe", preview.Severity)
	assert.Equal(t, 100, preview.CompletionPercentage)
	assert.Equal(t, "52", preview.Demographics["age"])

	assert.Empty(t, repo.assessments)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestCalculateScoresRejectsInvalidResponses(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)

	_, err := service.CalculateScores(context.Background(), &CalculateScoresRequest{
		TemplateID: "gad-7",
		Responses:  map[string]string{"gad7-1": "7"},
	})
	var rre *ResponseRejectionError
	require.ErrorAs(t, err, &rre)
}

func TestUpdateCurrentStep(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)
	assessment := createTestAssessment(t, service)

	step := 3
	updated, err := service.Update(context.Background(), assessment.ID, &UpdateAssessmentRequest{
		CurrentStep: &step,
		Version:     assessment.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.CurrentStep)
	assert.Equal(t, 2, updated.Version)
}

func TestGetByIDNotFound(t *testing.T) {
	service, _, _ := newTestAssessmentService(t)

	_, err := service.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}
