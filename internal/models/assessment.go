package models

import (
	"time"

	"gorm.io/datatypes"
)

type AssessmentStatus string

const (
	StatusNotStarted AssessmentStatus = "not_started"
	StatusInProgress AssessmentStatus = "in_progress"
	StatusCompleted  AssessmentStatus = "completed"
	StatusCancelled  AssessmentStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s AssessmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo enforces the monotonic lifecycle:
// not_started -> in_progress -> {completed | cancelled}.
func (s AssessmentStatus) CanTransitionTo(next AssessmentStatus) bool {
	switch s {
	case StatusNotStarted:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Assessment is one administration instance of a scale template. Patient and
// administrator identifiers are opaque external references passed through
// unchanged.
//
// TotalScore, SubscaleScores, SeverityLevel and Interpretation are derived
// data: they are populated only by the scoring pipeline at completion and are
// never written independently of the responses they summarize.
type Assessment struct {
	ID              string             `json:"id" gorm:"primaryKey;size:36"`
	TemplateID      string             `json:"template_id" gorm:"not null;size:64;index" validate:"required"`
	TemplateVersion int                `json:"template_version" gorm:"not null"`
	PatientID       string             `json:"patient_id" gorm:"not null;size:255;index" validate:"required"`
	AdministratorID string             `json:"administrator_id" gorm:"not null;size:255;index" validate:"required"`
	Mode            AdministrationMode `json:"mode" gorm:"not null;size:32" validate:"required,administration_mode"`
	Status          AssessmentStatus   `json:"status" gorm:"not null;default:not_started;index"`

	// Responses maps item id to the raw stored answer token.
	Responses   datatypes.JSONType[map[string]string] `json:"responses" gorm:"type:jsonb"`
	CurrentStep int                                   `json:"current_step" gorm:"default:0"`

	// Computed fields, present once scoring has run.
	TotalScore            *int                               `json:"total_score,omitempty"`
	SubscaleScores        datatypes.JSONType[map[string]int] `json:"subscale_scores,omitempty" gorm:"type:jsonb"`
	SeverityLevel         *string                            `json:"severity_level,omitempty" gorm:"size:64"`
	Interpretation        *string                            `json:"interpretation,omitempty" gorm:"type:text"`
	ValidityIndicators    datatypes.JSONType[[]WarningFlag]  `json:"validity_indicators,omitempty" gorm:"type:jsonb"`
	CompletionPercentage  int                                `json:"completion_percentage" gorm:"default:0"`
	CompletionTimeSeconds *int                               `json:"completion_time_seconds,omitempty"`

	// Version guards concurrent writes to the response map: every durable
	// write increments it, stale writers are rejected.
	Version int `json:"version" gorm:"not null;default:1"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// WarningFlag records a single endorsed alert-trigger item. A flag is raised
// independent of the aggregate severity classification.
type WarningFlag struct {
	ItemID  string `json:"item_id"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Response returns the stored value for an item, if any.
func (a *Assessment) Response(itemID string) (string, bool) {
	value, ok := a.Responses.Data()[itemID]
	return value, ok
}

// ResponseCount is the number of items with a stored response.
func (a *Assessment) ResponseCount() int {
	return len(a.Responses.Data())
}
