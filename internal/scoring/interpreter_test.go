package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/clinicore/scale-assessment-service/internal/models"
)

func TestInterpretMatchesFirstContainingRule(t *testing.T) {
	tpl := depressionTemplate()

	tests := []struct {
		score    int
		severity string
	}{
		{0, "minimal"},
		{4, "minimal"},
		{5, "mild"},
		{9, "mild"},
		{10, "moderate"},
		{15, "moderately_severe"},
		{18, "moderately_severe"},
		{20, "severe"},
		{27, "severe"},
	}

	for _, tt := range tests {
		result := &Result{TotalScore: tt.score}
		interpretation := Interpret(tpl, result, nil)
		assert.Equal(t, tt.severity, interpretation.Severity, "score %d", tt.score)
		assert.False(t, interpretation.Unclassified)
	}
}

func TestInterpretEndToEndScenario(t *testing.T) {
	// All nine responses at 2 sum to 18, squarely in the 15-19 band.
	tpl := depressionTemplate()
	responses := allResponses("2")

	result, err := Score(tpl, responses)
	require.NoError(t, err)
	require.Equal(t, 18, result.TotalScore)

	interpretation := Interpret(tpl, result, responses)
	assert.Equal(t, "moderately_severe", interpretation.Severity)
	assert.Equal(t, "Moderately severe depression", interpretation.Label)
}

func TestInterpretOutOfRangeScoreIsUnclassified(t *testing.T) {
	tpl := depressionTemplate()

	interpretation := Interpret(tpl, &Result{TotalScore: 99}, nil)
	assert.True(t, interpretation.Unclassified)
	assert.Equal(t, SeverityUnclassified, interpretation.Severity)
	assert.Empty(t, interpretation.Label)
}

func TestInterpretRuleCoverageScan(t *testing.T) {
	// Every integer in the declared range must match exactly one rule.
	tpl := depressionTemplate()
	require.NoError(t, CheckRuleCoverage(tpl))

	scoreRange := tpl.Scoring.Data().Range
	rules := tpl.Interpretation.Data().Rules
	for score := scoreRange.Min; score <= scoreRange.Max; score++ {
		matches := 0
		for _, rule := range rules {
			if rule.Contains(score) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "score %d", score)
	}
}

func TestCheckRuleCoverageDetectsGapsAndOverlaps(t *testing.T) {
	tpl := depressionTemplate()

	gapped := tpl.Interpretation.Data()
	gapped.Rules = []models.InterpretationRule{
		{MinScore: 0, MaxScore: 4, Severity: "minimal"},
		{MinScore: 6, MaxScore: 27, Severity: "severe"},
	}
	tpl.Interpretation = datatypes.NewJSONType(gapped)
	err := CheckRuleCoverage(tpl)
	require.Error(t, err)
	assert.True(t, IsMalformedTemplate(err))

	overlapping := tpl.Interpretation.Data()
	overlapping.Rules = []models.InterpretationRule{
		{MinScore: 0, MaxScore: 10, Severity: "minimal"},
		{MinScore: 10, MaxScore: 27, Severity: "severe"},
	}
	tpl.Interpretation = datatypes.NewJSONType(overlapping)
	err = CheckRuleCoverage(tpl)
	require.Error(t, err)
	assert.True(t, IsMalformedTemplate(err))
}

func TestInterpretWarningFlagIndependentOfSeverity(t *testing.T) {
	tpl := depressionTemplate()

	// Item 9 endorsed at 3; every other item at 0 keeps the total minimal.
	responses := allResponses("0")
	responses[itemID(9)] = "3"

	result, err := Score(tpl, responses)
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalScore)

	interpretation := Interpret(tpl, result, responses)
	assert.Equal(t, "minimal", interpretation.Severity)
	require.Len(t, interpretation.Warnings, 1)
	assert.Equal(t, itemID(9), interpretation.Warnings[0].ItemID)
	assert.Equal(t, "3", interpretation.Warnings[0].Value)
	assert.Contains(t, interpretation.Warnings[0].Message, "risk protocol")
}

func TestInterpretNoWarningWhenTriggerNotEndorsed(t *testing.T) {
	tpl := depressionTemplate()
	responses := allResponses("0")

	result, err := Score(tpl, responses)
	require.NoError(t, err)

	interpretation := Interpret(tpl, result, responses)
	assert.Empty(t, interpretation.Warnings)
}

func TestInterpretSubscaleCutoffs(t *testing.T) {
	tpl := depressionTemplate()

	sections := tpl.Structure.Data()
	for i := range sections[0].Items {
		sections[0].Items[i].Subscale = "somatic"
	}
	tpl.Structure = datatypes.NewJSONType(sections)

	spec := tpl.Scoring.Data()
	spec.Subscales = []models.Subscale{{Code: "somatic", Name: "Somatic symptoms"}}
	tpl.Scoring = datatypes.NewJSONType(spec)

	interp := tpl.Interpretation.Data()
	interp.SubscaleRules = map[string][]models.InterpretationRule{
		"somatic": {
			{MinScore: 0, MaxScore: 9, Severity: "normal", Label: "Within normal limits"},
			{MinScore: 10, MaxScore: 27, Severity: "elevated", Label: "Elevated"},
		},
	}
	tpl.Interpretation = datatypes.NewJSONType(interp)

	result, err := Score(tpl, allResponses("2"))
	require.NoError(t, err)
	require.Equal(t, 18, result.SubscaleScores["somatic"])

	interpretation := Interpret(tpl, result, nil)
	require.Contains(t, interpretation.Subscales, "somatic")
	assert.Equal(t, "elevated", interpretation.Subscales["somatic"].Severity)
	assert.Equal(t, 18, interpretation.Subscales["somatic"].Score)
}
