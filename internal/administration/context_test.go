package administration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clinicore/scale-assessment-service/internal/cache"
	"github.com/clinicore/scale-assessment-service/internal/events"
	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
	"github.com/clinicore/scale-assessment-service/internal/services"
	"github.com/clinicore/scale-assessment-service/internal/validator"
)

// memoryAssessmentRepo mirrors the optimistic version behavior of the
// postgres repository for in-process tests.
type memoryAssessmentRepo struct {
	assessments map[string]*models.Assessment
	nextID      int
}

func (r *memoryAssessmentRepo) Create(_ context.Context, a *models.Assessment) error {
	r.nextID++
	a.ID = fmt.Sprintf("assessment-%d", r.nextID)
	a.Status = models.StatusNotStarted
	a.Version = 1
	stored := *a
	r.assessments[a.ID] = &stored
	return nil
}

func (r *memoryAssessmentRepo) GetByID(_ context.Context, id string) (*models.Assessment, error) {
	stored, ok := r.assessments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *stored
	return &out, nil
}

func (r *memoryAssessmentRepo) Update(_ context.Context, a *models.Assessment) error {
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

func (r *memoryAssessmentRepo) List(_ context.Context, _ repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	return nil, 0, nil
}

type staticTemplateRepo struct {
	template *models.ScaleTemplate
}

func (r *staticTemplateRepo) GetByID(_ context.Context, id string) (*models.ScaleTemplate, error) {
	if r.template == nil || r.template.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.template, nil
}

func (r *staticTemplateRepo) GetMetadata(_ context.Context, id string) (*models.TemplateMetadata, error) {
	if r.template == nil || r.template.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.template.Metadata(), nil
}

func (r *staticTemplateRepo) List(_ context.Context, _ repositories.TemplateFilters) ([]*models.TemplateMetadata, int64, error) {
	return nil, 0, nil
}

func (r *staticTemplateRepo) ListCategories(_ context.Context) ([]repositories.CategoryCount, error) {
	return nil, nil
}

func (r *staticTemplateRepo) Search(_ context.Context, _ string, _ int) ([]*models.TemplateMetadata, error) {
	return nil, nil
}

func threeItemTemplate() *models.ScaleTemplate {
	options := []models.ResponseOption{
		{Value: "0", Label: "No", Score: 0},
		{Value: "1", Label: "Yes", Score: 1},
	}
	return &models.ScaleTemplate{
		ID:      "screen-3",
		Name:    "Three Item Screener",
		Version: 1,
		Structure: datatypes.NewJSONType([]models.Section{
			{Items: []models.Item{
				{Number: 1, ID: "s3-1", Kind: models.KindBinary, Required: true, ResponseGroup: "yesno"},
				{Number: 2, ID: "s3-2", Kind: models.KindBinary, Required: true, ResponseGroup: "yesno"},
				{Number: 3, ID: "s3-3", Kind: models.KindBinary, Required: false, ResponseGroup: "yesno"},
			}},
		}),
		ResponseGroups: datatypes.NewJSONType(map[string][]models.ResponseOption{
			"yesno": options,
		}),
		Scoring: datatypes.NewJSONType(models.ScoringSpec{
			Method: models.ScoringMethodSum,
			Range:  models.ScoreRange{Min: 0, Max: 3},
		}),
		Interpretation: datatypes.NewJSONType(models.InterpretationSpec{
			Rules: []models.InterpretationRule{
				{MinScore: 0, MaxScore: 1, Severity: "negative", Label: "Screen negative"},
				{MinScore: 2, MaxScore: 3, Severity: "positive", Label: "Screen positive"},
			},
		}),
	}
}

func newSession(t *testing.T, mode models.AdministrationMode) (Context, services.AssessmentService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	templates := services.NewTemplateService(&staticTemplateRepo{template: threeItemTemplate()}, cache.NewMemoryCache(), time.Minute, logger)
	repo := &memoryAssessmentRepo{assessments: make(map[string]*models.Assessment)}
	assessments := services.NewAssessmentService(repo, templates, events.NewMockEventPublisher(logger), logger, validator.New())

	created, err := assessments.Create(context.Background(), &services.CreateAssessmentRequest{
		TemplateID:      "screen-3",
		PatientID:       "patient-1",
		AdministratorID: "clinician-1",
		Mode:            mode,
	})
	require.NoError(t, err)

	session, err := NewContext(context.Background(), created.ID, templates, assessments)
	require.NoError(t, err)
	return session, assessments
}

func TestProfessionalModeNavigatesFreely(t *testing.T) {
	session, _ := newSession(t, models.ModeProfessional)
	ctx := context.Background()

	current, err := session.CurrentItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3-1", current.ID)

	// A clinician may advance past an unanswered required item
	next, err := session.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3-2", next.ID)

	previous, err := session.Previous(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3-1", previous.ID)
}

func TestSelfAdministeredModeIsForwardOnly(t *testing.T) {
	session, _ := newSession(t, models.ModeSelfAdministered)
	ctx := context.Background()

	_, err := session.Next(ctx)
	require.ErrorIs(t, err, ErrItemRequired)

	require.NoError(t, session.SaveResponse(ctx, "s3-1", "1"))

	next, err := session.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3-2", next.ID)

	_, err = session.Previous(ctx)
	require.ErrorIs(t, err, ErrAtFirstItem)
}

func TestNavigationStopsAtLastItem(t *testing.T) {
	session, _ := newSession(t, models.ModeProfessional)
	ctx := context.Background()

	_, err := session.Next(ctx)
	require.NoError(t, err)
	_, err = session.Next(ctx)
	require.NoError(t, err)
	_, err = session.Next(ctx)
	require.ErrorIs(t, err, ErrAtLastItem)
}

func TestSaveAndGetResponseRoundTrip(t *testing.T) {
	session, _ := newSession(t, models.ModeProfessional)
	ctx := context.Background()

	_, ok, err := session.GetResponse(ctx, "s3-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, session.SaveResponse(ctx, "s3-1", "1"))

	value, ok, err := session.GetResponse(ctx, "s3-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", value)
}

func TestCompleteThroughContext(t *testing.T) {
	session, _ := newSession(t, models.ModeProfessional)
	ctx := context.Background()

	require.NoError(t, session.SaveResponse(ctx, "s3-1", "1"))
	require.NoError(t, session.SaveResponse(ctx, "s3-2", "1"))

	completed, err := session.CompleteAssessment(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.TotalScore)
	assert.Equal(t, 2, *completed.TotalScore)
	require.NotNil(t, completed.SeverityLevel)
	assert.Equal(t, "positive", *completed.SeverityLevel)
}

func TestCompleteThroughContextGatesRequiredItems(t *testing.T) {
	session, _ := newSession(t, models.ModeProfessional)
	ctx := context.Background()

	require.NoError(t, session.SaveResponse(ctx, "s3-1", "1"))

	_, err := session.CompleteAssessment(ctx)
	require.Error(t, err)
	assert.True(t, services.IsIncomplete(err))
}
