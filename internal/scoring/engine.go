package scoring

import (
	"fmt"
	"math"

	"github.com/clinicore/scale-assessment-service/internal/models"
)

// Result carries the raw scoring output for one response set. Preview marks a
// score computed for an incomplete or unattached response set; preview
// results are never written into a completed assessment's canonical fields.
type Result struct {
	TotalScore           int            `json:"total_score"`
	SubscaleScores       map[string]int `json:"subscale_scores,omitempty"`
	CompletionPercentage int            `json:"completion_percentage"`
	AnsweredItems        int            `json:"answered_items"`
	Preview              bool           `json:"preview,omitempty"`
}

// Score computes total and subscale scores for the given responses. It is a
// pure function: for a fixed template and response set, repeated calls yield
// identical results.
//
// Per-item contribution is the declared option score, inverted for reverse
// scored items as (groupMax + groupMin) - optionScore, which generalizes
// five-point reversal to any response group shape. Items tagged with a
// subscale accumulate into that subscale; untagged items accumulate into the
// total. Free-text items never contribute a score.
func Score(t *models.ScaleTemplate, responses map[string]string) (*Result, error) {
	spec := t.Scoring.Data()
	if spec.Method != "" && spec.Method != models.ScoringMethodSum {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScoringMethod, spec.Method)
	}

	groups := t.ResponseGroups.Data()
	items := t.OrderedItems()

	result := &Result{
		SubscaleScores: make(map[string]int),
	}
	declared := make(map[string]bool, len(spec.Subscales))
	for _, subscale := range spec.Subscales {
		declared[subscale.Code] = true
		result.SubscaleScores[subscale.Code] = 0
	}

	answered := 0
	for _, item := range items {
		value, ok := responses[item.ID]
		if !ok || value == "" {
			continue
		}
		answered++

		if item.Kind == models.KindText {
			continue
		}

		contribution, err := itemScore(t.ID, item, value, groups)
		if err != nil {
			return nil, err
		}

		if item.Subscale != "" {
			// A tag pointing at an undeclared subscale has nowhere to
			// accumulate; dropping the contribution would corrupt the score.
			if !declared[item.Subscale] {
				return nil, newMalformedTemplateError(t.ID, item.ID,
					fmt.Sprintf("subscale %q is not declared in scoring", item.Subscale))
			}
			result.SubscaleScores[item.Subscale] += contribution
		} else {
			result.TotalScore += contribution
		}
	}

	result.AnsweredItems = answered
	result.CompletionPercentage = completionPercentage(items, answered)

	if len(spec.Subscales) == 0 {
		result.SubscaleScores = nil
	}
	return result, nil
}

// itemScore resolves one item's effective contribution. A missing response
// group or an undeclared option score is a template defect, not a skippable
// condition.
func itemScore(templateID string, item models.Item, value string, groups map[string][]models.ResponseOption) (int, error) {
	options, ok := groups[item.ResponseGroup]
	if !ok || len(options) == 0 {
		return 0, newMalformedTemplateError(templateID, item.ID,
			fmt.Sprintf("response group %q is not declared", item.ResponseGroup))
	}

	score := 0
	found := false
	for _, option := range options {
		if option.Value == value {
			score = option.Score
			found = true
			break
		}
	}
	if !found {
		return 0, newMalformedTemplateError(templateID, item.ID,
			fmt.Sprintf("no declared score for response %q in group %q", value, item.ResponseGroup))
	}

	if item.ReverseScored {
		minScore, maxScore := groupExtremes(options)
		return minScore + maxScore - score, nil
	}
	return score, nil
}

func groupExtremes(options []models.ResponseOption) (int, int) {
	minScore, maxScore := options[0].Score, options[0].Score
	for _, option := range options[1:] {
		if option.Score < minScore {
			minScore = option.Score
		}
		if option.Score > maxScore {
			maxScore = option.Score
		}
	}
	return minScore, maxScore
}

// completionPercentage is answered items over required items, as an integer
// percent. Templates with no required items fall back to the full item count
// so optional-only instruments still report meaningful progress.
func completionPercentage(items []models.Item, answered int) int {
	required := 0
	for _, item := range items {
		if item.Required {
			required++
		}
	}
	if required == 0 {
		required = len(items)
	}
	if required == 0 {
		return 0
	}

	pct := int(math.Round(float64(answered) / float64(required) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// MissingRequired lists the required items with no response, in
// administration order. Completion is gated on this being empty.
func MissingRequired(t *models.ScaleTemplate, responses map[string]string) []models.Item {
	var missing []models.Item
	for _, item := range t.OrderedItems() {
		if !item.Required {
			continue
		}
		if value, ok := responses[item.ID]; !ok || value == "" {
			missing = append(missing, item)
		}
	}
	return missing
}
