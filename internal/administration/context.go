// Package administration adapts the assessment engine to the way an
// instrument is actually conducted: clinician-led, self-administered or
// remote. It sequences calls into the template and assessment services and
// holds no scoring or interpretation logic of its own.
package administration

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/services"
)

var (
	ErrNoCurrent    = errors.New("no current item")
	ErrAtFirstItem  = errors.New("already at the first item")
	ErrAtLastItem   = errors.New("already at the last item")
	ErrItemRequired = errors.New("current item requires a response before advancing")
)

// Context is the mode-specific surface over one assessment session. Item
// order follows the template structure, sections then item sequence numbers.
type Context interface {
	Mode() models.AdministrationMode

	// CurrentItem returns the item at the session's navigation position.
	CurrentItem(ctx context.Context) (models.Item, error)

	Next(ctx context.Context) (models.Item, error)
	Previous(ctx context.Context) (models.Item, error)

	GetResponse(ctx context.Context, itemID string) (string, bool, error)
	SaveResponse(ctx context.Context, itemID, value string) error

	CompleteAssessment(ctx context.Context) (*models.Assessment, error)
}

// policy captures how a mode navigates. Self-administered and remote sessions
// move strictly forward and cannot leave a required item unanswered;
// clinician-led sessions navigate freely.
type policy struct {
	allowBackward       bool
	requireAnswerToMove bool
}

func policyFor(mode models.AdministrationMode) policy {
	switch mode {
	case models.ModeProfessional:
		return policy{allowBackward: true, requireAnswerToMove: false}
	default:
		return policy{allowBackward: false, requireAnswerToMove: true}
	}
}

type sessionContext struct {
	assessmentID string
	mode         models.AdministrationMode
	policy       policy

	templates   services.TemplateService
	assessments services.AssessmentService
}

// NewContext opens a mode-aware navigation surface over an existing
// assessment.
func NewContext(ctx context.Context, assessmentID string, templates services.TemplateService, assessments services.AssessmentService) (Context, error) {
	assessment, err := assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	return &sessionContext{
		assessmentID: assessmentID,
		mode:         assessment.Mode,
		policy:       policyFor(assessment.Mode),
		templates:    templates,
		assessments:  assessments,
	}, nil
}

func (c *sessionContext) Mode() models.AdministrationMode {
	return c.mode
}

// load fetches the current assessment and its template's ordered items.
func (c *sessionContext) load(ctx context.Context) (*models.Assessment, []models.Item, error) {
	assessment, err := c.assessments.GetByID(ctx, c.assessmentID)
	if err != nil {
		return nil, nil, err
	}
	template, err := c.templates.GetByID(ctx, assessment.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	return assessment, template.OrderedItems(), nil
}

func (c *sessionContext) CurrentItem(ctx context.Context) (models.Item, error) {
	assessment, items, err := c.load(ctx)
	if err != nil {
		return models.Item{}, err
	}
	if assessment.CurrentStep < 0 || assessment.CurrentStep >= len(items) {
		return models.Item{}, ErrNoCurrent
	}
	return items[assessment.CurrentStep], nil
}

func (c *sessionContext) Next(ctx context.Context) (models.Item, error) {
	assessment, items, err := c.load(ctx)
	if err != nil {
		return models.Item{}, err
	}
	step := assessment.CurrentStep
	if step >= len(items)-1 {
		return models.Item{}, ErrAtLastItem
	}

	if c.policy.requireAnswerToMove && step >= 0 && step < len(items) {
		current := items[step]
		if _, answered := assessment.Response(current.ID); current.Required && !answered {
			return models.Item{}, fmt.Errorf("%w: %s", ErrItemRequired, current.ID)
		}
	}

	next := step + 1
	if _, err := c.assessments.Update(ctx, c.assessmentID, &services.UpdateAssessmentRequest{
		CurrentStep: &next,
		Version:     assessment.Version,
	}); err != nil {
		return models.Item{}, err
	}
	return items[next], nil
}

func (c *sessionContext) Previous(ctx context.Context) (models.Item, error) {
	if !c.policy.allowBackward {
		return models.Item{}, ErrAtFirstItem
	}

	assessment, items, err := c.load(ctx)
	if err != nil {
		return models.Item{}, err
	}
	if assessment.CurrentStep <= 0 {
		return models.Item{}, ErrAtFirstItem
	}

	previous := assessment.CurrentStep - 1
	if _, err := c.assessments.Update(ctx, c.assessmentID, &services.UpdateAssessmentRequest{
		CurrentStep: &previous,
		Version:     assessment.Version,
	}); err != nil {
		return models.Item{}, err
	}
	return items[previous], nil
}

func (c *sessionContext) GetResponse(ctx context.Context, itemID string) (string, bool, error) {
	assessment, err := c.assessments.GetByID(ctx, c.assessmentID)
	if err != nil {
		return "", false, err
	}
	value, ok := assessment.Response(itemID)
	return value, ok, nil
}

func (c *sessionContext) SaveResponse(ctx context.Context, itemID, value string) error {
	assessment, err := c.assessments.GetByID(ctx, c.assessmentID)
	if err != nil {
		return err
	}
	_, err = c.assessments.SaveResponses(ctx, c.assessmentID, &services.SaveResponsesRequest{
		Responses: map[string]string{itemID: value},
		Version:   assessment.Version,
	})
	return err
}

func (c *sessionContext) CompleteAssessment(ctx context.Context) (*models.Assessment, error) {
	assessment, err := c.assessments.GetByID(ctx, c.assessmentID)
	if err != nil {
		return nil, err
	}
	resp, err := c.assessments.Complete(ctx, c.assessmentID, &services.CompleteAssessmentRequest{
		Version: assessment.Version,
	})
	if err != nil {
		return nil, err
	}
	return resp.Assessment, nil
}
