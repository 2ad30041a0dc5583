package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scale-assessment-service/internal/models"
)

// EventType represents different types of assessment lifecycle events
type EventType string

const (
	EventAssessmentCreated   EventType = "assessment.created"
	EventAssessmentCompleted EventType = "assessment.completed"
	EventAssessmentCancelled EventType = "assessment.cancelled"

	// EventAssessmentAlertFlagged fires when an endorsed alert-trigger item
	// raises a warning flag, independent of the aggregate severity.
	EventAssessmentAlertFlagged EventType = "assessment.alert_flagged"
)

// AssessmentEvent is the envelope for all assessment lifecycle events
type AssessmentEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const eventSource = "scale-assessment-service"

type AssessmentCreatedEvent struct {
	AssessmentID    string                    `json:"assessment_id"`
	TemplateID      string                    `json:"template_id"`
	PatientID       string                    `json:"patient_id"`
	AdministratorID string                    `json:"administrator_id"`
	Mode            models.AdministrationMode `json:"mode"`
	CreatedAt       time.Time                 `json:"created_at"`
}

type AssessmentCompletedEvent struct {
	AssessmentID          string         `json:"assessment_id"`
	TemplateID            string         `json:"template_id"`
	PatientID             string         `json:"patient_id"`
	TotalScore            int            `json:"total_score"`
	SubscaleScores        map[string]int `json:"subscale_scores,omitempty"`
	SeverityLevel         string         `json:"severity_level"`
	WarningCount          int            `json:"warning_count"`
	CompletedAt           time.Time      `json:"completed_at"`
	CompletionTimeSeconds int            `json:"completion_time_seconds"`
}

type AssessmentCancelledEvent struct {
	AssessmentID string    `json:"assessment_id"`
	TemplateID   string    `json:"template_id"`
	PatientID    string    `json:"patient_id"`
	CancelledAt  time.Time `json:"cancelled_at"`
}

type AssessmentAlertFlaggedEvent struct {
	AssessmentID string               `json:"assessment_id"`
	TemplateID   string               `json:"template_id"`
	PatientID    string               `json:"patient_id"`
	Warnings     []models.WarningFlag `json:"warnings"`
	FlaggedAt    time.Time            `json:"flagged_at"`
}

// Event factory functions

func NewAssessmentCreatedEvent(a *models.Assessment) *AssessmentEvent {
	return newEvent(EventAssessmentCreated, AssessmentCreatedEvent{
		AssessmentID:    a.ID,
		TemplateID:      a.TemplateID,
		PatientID:       a.PatientID,
		AdministratorID: a.AdministratorID,
		Mode:            a.Mode,
		CreatedAt:       a.CreatedAt,
	})
}

func NewAssessmentCompletedEvent(a *models.Assessment) *AssessmentEvent {
	data := AssessmentCompletedEvent{
		AssessmentID:   a.ID,
		TemplateID:     a.TemplateID,
		PatientID:      a.PatientID,
		SubscaleScores: a.SubscaleScores.Data(),
		WarningCount:   len(a.ValidityIndicators.Data()),
	}
	if a.TotalScore != nil {
		data.TotalScore = *a.TotalScore
	}
	if a.SeverityLevel != nil {
		data.SeverityLevel = *a.SeverityLevel
	}
	if a.CompletedAt != nil {
		data.CompletedAt = *a.CompletedAt
	}
	if a.CompletionTimeSeconds != nil {
		data.CompletionTimeSeconds = *a.CompletionTimeSeconds
	}
	return newEvent(EventAssessmentCompleted, data)
}

func NewAssessmentCancelledEvent(a *models.Assessment) *AssessmentEvent {
	return newEvent(EventAssessmentCancelled, AssessmentCancelledEvent{
		AssessmentID: a.ID,
		TemplateID:   a.TemplateID,
		PatientID:    a.PatientID,
		CancelledAt:  time.Now(),
	})
}

func NewAssessmentAlertFlaggedEvent(a *models.Assessment, warnings []models.WarningFlag) *AssessmentEvent {
	return newEvent(EventAssessmentAlertFlagged, AssessmentAlertFlaggedEvent{
		AssessmentID: a.ID,
		TemplateID:   a.TemplateID,
		PatientID:    a.PatientID,
		Warnings:     warnings,
		FlaggedAt:    time.Now(),
	})
}

func newEvent(eventType EventType, data interface{}) *AssessmentEvent {
	return &AssessmentEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   "1.0",
		Data:      data,
	}
}
