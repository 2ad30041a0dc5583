package scoring

import (
	"fmt"

	"github.com/clinicore/scale-assessment-service/internal/models"
)

// SeverityUnclassified is the explicit non-answer returned when no
// interpretation rule contains the score. Defaulting to an arbitrary severity
// would be a misclassification, so the resolver never does.
const SeverityUnclassified = "unclassified"

// Interpretation is the clinical reading of a scored response set.
type Interpretation struct {
	Severity        string                            `json:"severity"`
	Label           string                            `json:"label"`
	Color           string                            `json:"color,omitempty"`
	Guidance        string                            `json:"guidance,omitempty"`
	Recommendations *models.Recommendations           `json:"recommendations,omitempty"`
	Unclassified    bool                              `json:"unclassified,omitempty"`
	Subscales       map[string]SubscaleInterpretation `json:"subscales,omitempty"`
	Warnings        []models.WarningFlag              `json:"warnings,omitempty"`
}

// SubscaleInterpretation classifies one subscale against its own rule set.
type SubscaleInterpretation struct {
	Score        int    `json:"score"`
	Severity     string `json:"severity"`
	Label        string `json:"label,omitempty"`
	Color        string `json:"color,omitempty"`
	Guidance     string `json:"guidance,omitempty"`
	Unclassified bool   `json:"unclassified,omitempty"`
}

// Interpret resolves a total score and subscale scores into severity
// classifications and collects warning flags from endorsed alert-trigger
// items. Rules are evaluated as inclusive ranges in declared order; the first
// containing rule wins.
func Interpret(t *models.ScaleTemplate, result *Result, responses map[string]string) *Interpretation {
	spec := t.Interpretation.Data()

	interpretation := &Interpretation{
		Warnings: collectWarnings(t, responses),
	}

	if rule, ok := matchRule(spec.Rules, result.TotalScore); ok {
		interpretation.Severity = rule.Severity
		interpretation.Label = rule.Label
		interpretation.Color = rule.Color
		interpretation.Guidance = rule.Guidance
		interpretation.Recommendations = rule.Recommendations
	} else {
		interpretation.Severity = SeverityUnclassified
		interpretation.Unclassified = true
	}

	if len(result.SubscaleScores) > 0 && len(spec.SubscaleRules) > 0 {
		interpretation.Subscales = make(map[string]SubscaleInterpretation)
		for code, score := range result.SubscaleScores {
			rules, ok := spec.SubscaleRules[code]
			if !ok {
				continue
			}
			sub := SubscaleInterpretation{Score: score}
			if rule, matched := matchRule(rules, score); matched {
				sub.Severity = rule.Severity
				sub.Label = rule.Label
				sub.Color = rule.Color
				sub.Guidance = rule.Guidance
			} else {
				sub.Severity = SeverityUnclassified
				sub.Unclassified = true
			}
			interpretation.Subscales[code] = sub
		}
	}

	return interpretation
}

// matchRule returns the first rule in declared order whose inclusive range
// contains the score.
func matchRule(rules []models.InterpretationRule, score int) (models.InterpretationRule, bool) {
	for _, rule := range rules {
		if rule.Contains(score) {
			return rule, true
		}
	}
	return models.InterpretationRule{}, false
}

// collectWarnings flags every alert-trigger item whose stored response
// matches one of its declared trigger values. A single endorsed item raises a
// flag even when the aggregate severity is otherwise mild.
func collectWarnings(t *models.ScaleTemplate, responses map[string]string) []models.WarningFlag {
	var warnings []models.WarningFlag
	for _, item := range t.OrderedItems() {
		if item.AlertTrigger == nil {
			continue
		}
		value, ok := responses[item.ID]
		if !ok || value == "" {
			continue
		}
		for _, trigger := range item.AlertTrigger.Values {
			if trigger == value {
				warnings = append(warnings, models.WarningFlag{
					ItemID:  item.ID,
					Value:   value,
					Message: item.AlertTrigger.Message,
				})
				break
			}
		}
	}
	return warnings
}

// CheckRuleCoverage verifies that every integer in the declared score range
// matches exactly one interpretation rule. Well-formed templates declare
// contiguous, non-overlapping ranges; a gap or overlap is reported as a
// malformed template so it can be caught at load time instead of at a
// patient's completion.
func CheckRuleCoverage(t *models.ScaleTemplate) error {
	rules := t.Interpretation.Data().Rules
	if len(rules) == 0 {
		return nil
	}

	scoreRange := t.Scoring.Data().Range
	for score := scoreRange.Min; score <= scoreRange.Max; score++ {
		matches := 0
		for _, rule := range rules {
			if rule.Contains(score) {
				matches++
			}
		}
		if matches == 0 {
			return newMalformedTemplateError(t.ID, "",
				fmt.Sprintf("no interpretation rule covers score %d", score))
		}
		if matches > 1 {
			return newMalformedTemplateError(t.ID, "",
				fmt.Sprintf("overlapping interpretation rules at score %d", score))
		}
	}
	return nil
}
