package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinicore/scale-assessment-service/internal/models"
)

// ValidationResult is the outcome of checking a single item response.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}

// ResponseValidator checks a single item response against the template's
// declared constraints. It is pure and has no knowledge of session state: the
// same check runs on every incremental save and again as the completion gate.
type ResponseValidator struct{}

func NewResponseValidator() *ResponseValidator {
	return &ResponseValidator{}
}

// Validate applies the rules in order: required, option membership, then
// kind-specific checks dispatched on the item's response kind.
func (v *ResponseValidator) Validate(item models.Item, value string, groups map[string][]models.ResponseOption) ValidationResult {
	if strings.TrimSpace(value) == "" {
		if item.Required {
			return invalid("required")
		}
		return valid()
	}

	switch item.Kind {
	case models.KindLikert, models.KindBinary, models.KindMultipleChoice:
		return v.validateOption(item, value, groups)
	case models.KindNumeric:
		return v.validateNumeric(item, value, groups)
	case models.KindText:
		// Free text carries no score; anything non-empty is acceptable.
		return valid()
	default:
		return invalid(fmt.Sprintf("unknown response kind %q", item.Kind))
	}
}

// validateOption requires the value to equal one of the declared option
// values of the item's response group. An item referencing an unknown group
// is accepted here; the scoring engine reports the malformed template.
func (v *ResponseValidator) validateOption(item models.Item, value string, groups map[string][]models.ResponseOption) ValidationResult {
	options, ok := groups[item.ResponseGroup]
	if !ok {
		return valid()
	}

	for _, option := range options {
		if option.Value == value {
			return valid()
		}
	}
	return invalid("not a valid option")
}

// validateNumeric accepts either a declared option value or, for groups the
// template leaves open, any parseable number.
func (v *ResponseValidator) validateNumeric(item models.Item, value string, groups map[string][]models.ResponseOption) ValidationResult {
	if options, ok := groups[item.ResponseGroup]; ok && len(options) > 0 {
		for _, option := range options {
			if option.Value == value {
				return valid()
			}
		}
		return invalid("not a valid option")
	}

	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return invalid("not a number")
	}
	return valid()
}
