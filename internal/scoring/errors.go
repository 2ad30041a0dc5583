package scoring

import (
	"errors"
	"fmt"
)

// ErrUnsupportedScoringMethod is returned for any scoring.method other than
// "sum". Other methods are a template-declared extension point with no
// specified semantics yet; guessing would corrupt clinical scoring.
var ErrUnsupportedScoringMethod = errors.New("unsupported scoring method")

// MalformedTemplateError reports a template defect that makes scoring or
// interpretation impossible. The engine fails loudly instead of skipping the
// offending item: a silently dropped contribution is a wrong clinical score.
type MalformedTemplateError struct {
	TemplateID string
	ItemID     string
	Reason     string
}

func (e *MalformedTemplateError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("malformed template %s: item %s: %s", e.TemplateID, e.ItemID, e.Reason)
	}
	return fmt.Sprintf("malformed template %s: %s", e.TemplateID, e.Reason)
}

func newMalformedTemplateError(templateID, itemID, reason string) *MalformedTemplateError {
	return &MalformedTemplateError{
		TemplateID: templateID,
		ItemID:     itemID,
		Reason:     reason,
	}
}

// IsMalformedTemplate checks if err represents a malformed template
func IsMalformedTemplate(err error) bool {
	var mte *MalformedTemplateError
	return errors.As(err, &mte)
}
