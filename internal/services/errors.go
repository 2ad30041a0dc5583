package services

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/clinicore/scale-assessment-service/internal/errors"
	"github.com/clinicore/scale-assessment-service/internal/models"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Template specific errors
	ErrTemplateNotFound    = errors.New("scale template not found")
	ErrModeNotSupported    = errors.New("template does not support this administration mode")
	ErrTemplateUnavailable = errors.New("scale template store unavailable")

	// Assessment specific errors
	ErrAssessmentNotFound  = errors.New("assessment not found")
	ErrAssessmentTerminal  = errors.New("assessment is in a terminal state")
	ErrAssessmentConflict  = errors.New("assessment was modified concurrently")
	ErrUnknownResponseItem = errors.New("response references an item not in the template")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// StateTransitionError reports a status change the lifecycle does not allow.
type StateTransitionError struct {
	AssessmentID string                  `json:"assessment_id"`
	From         models.AssessmentStatus `json:"from"`
	To           models.AssessmentStatus `json:"to"`
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition assessment %s from %s to %s", e.AssessmentID, e.From, e.To)
}

// IncompleteAssessmentError reports a completion attempt with required items
// still unanswered. MissingItems preserves presentation order.
type IncompleteAssessmentError struct {
	AssessmentID string   `json:"assessment_id"`
	MissingItems []string `json:"missing_items"`
}

func (e *IncompleteAssessmentError) Error() string {
	return fmt.Sprintf("assessment %s cannot be completed: %d required items unanswered (%s)",
		e.AssessmentID, len(e.MissingItems), strings.Join(e.MissingItems, ", "))
}

// ResponseRejectionError carries the per-item failures of a rejected response
// batch. The batch is all-or-nothing: one bad value rejects the whole write.
type ResponseRejectionError struct {
	AssessmentID string            `json:"assessment_id"`
	Rejections   map[string]string `json:"rejections"` // item id -> reason
}

func (e *ResponseRejectionError) Error() string {
	return fmt.Sprintf("responses rejected for assessment %s: %d invalid items", e.AssessmentID, len(e.Rejections))
}

// ===== ERROR HELPERS =====

func NewStateTransitionError(id string, from, to models.AssessmentStatus) *StateTransitionError {
	return &StateTransitionError{AssessmentID: id, From: from, To: to}
}

func NewIncompleteAssessmentError(id string, missing []string) *IncompleteAssessmentError {
	return &IncompleteAssessmentError{AssessmentID: id, MissingItems: missing}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrAssessmentNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrUnknownResponseItem) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var rre *ResponseRejectionError
	return errors.As(err, &rre)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrAssessmentConflict) {
		return true
	}
	var ste *StateTransitionError
	if errors.As(err, &ste) {
		return true
	}
	var iae *IncompleteAssessmentError
	return errors.As(err, &iae)
}

// IsStateTransition checks if error represents an illegal lifecycle move
func IsStateTransition(err error) bool {
	var ste *StateTransitionError
	return errors.As(err, &ste)
}

// IsIncomplete checks if error represents a premature completion attempt
func IsIncomplete(err error) bool {
	var iae *IncompleteAssessmentError
	return errors.As(err, &iae)
}
