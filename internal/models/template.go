package models

import (
	"time"

	"gorm.io/datatypes"
)

type AdministrationMode string

const (
	ModeProfessional     AdministrationMode = "professional"
	ModeSelfAdministered AdministrationMode = "self_administered"
	ModeRemote           AdministrationMode = "remote"
)

// ResponseKind is the closed set of item response types. Validation strategy
// is dispatched on this value in a single switch at the validator boundary.
type ResponseKind string

const (
	KindLikert         ResponseKind = "likert"
	KindBinary         ResponseKind = "binary"
	KindMultipleChoice ResponseKind = "multiple_choice"
	KindNumeric        ResponseKind = "numeric"
	KindText           ResponseKind = "text"
)

const (
	ScoringMethodSum = "sum"
)

// ScaleTemplate is the declarative, versioned definition of a standardized
// psychometric instrument. Immutable once published: retrieval is cacheable
// by id+version.
//
// Metadata lives in plain columns so catalog listings never deserialize the
// structure/scoring payloads.
type ScaleTemplate struct {
	ID           string `json:"id" gorm:"primaryKey;size:64"`
	Name         string `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Abbreviation string `json:"abbreviation" gorm:"size:20;index"`
	Version      int    `json:"version" gorm:"not null;default:1"`
	Category     string `json:"category" gorm:"size:100;index"`
	Featured     bool   `json:"featured" gorm:"default:false;index"`

	// EstimatedMinutes is the expected administration duration.
	EstimatedMinutes int `json:"estimated_minutes" gorm:"default:5"`

	// Modes lists the administration modes this instrument supports.
	Modes datatypes.JSONSlice[AdministrationMode] `json:"modes" gorm:"type:jsonb"`

	Structure      datatypes.JSONType[[]Section]                      `json:"structure" gorm:"type:jsonb"`
	ResponseGroups datatypes.JSONType[map[string][]ResponseOption]    `json:"response_groups" gorm:"type:jsonb"`
	Scoring        datatypes.JSONType[ScoringSpec]                    `json:"scoring" gorm:"type:jsonb"`
	Interpretation datatypes.JSONType[InterpretationSpec]             `json:"interpretation" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScaleTemplate) TableName() string {
	return "scale_templates"
}

// Section is an ordered block of items within a template.
type Section struct {
	Title string `json:"title,omitempty"`
	Items []Item `json:"items"`
}

// Item is a single prompt within a template section. Number is 1-based and
// unique within the template; ResponseGroup must name a key declared in the
// template's ResponseGroups.
type Item struct {
	Number        int           `json:"number"`
	ID            string        `json:"id"`
	Prompt        string        `json:"prompt"`
	Kind          ResponseKind  `json:"kind"`
	Subscale      string        `json:"subscale,omitempty"`
	Required      bool          `json:"required"`
	ReverseScored bool          `json:"reverse_scored"`
	ResponseGroup string        `json:"response_group"`
	HelpText      string        `json:"help_text,omitempty"`
	AlertTrigger  *AlertTrigger `json:"alert_trigger,omitempty"`
}

// AlertTrigger marks an item whose endorsed responses raise a clinical
// warning flag independent of the aggregate severity classification.
type AlertTrigger struct {
	Values  []string `json:"values"`
	Message string   `json:"message"`
}

// ResponseOption is one selectable answer: the stored token, display label,
// and the numeric contribution when the item is not reverse scored.
type ResponseOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Score int    `json:"score"`
}

type ScoreRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type Subscale struct {
	Code  string      `json:"code"`
	Name  string      `json:"name"`
	Range *ScoreRange `json:"range,omitempty"`
}

type ScoringSpec struct {
	Method    string     `json:"method"`
	Range     ScoreRange `json:"range"`
	Subscales []Subscale `json:"subscales,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// InterpretationRule maps an inclusive score range to a severity
// classification. Rules are evaluated in declared order; the first rule whose
// range contains the score wins.
type InterpretationRule struct {
	MinScore        int              `json:"min_score"`
	MaxScore        int              `json:"max_score"`
	Severity        string           `json:"severity"`
	Label           string           `json:"label"`
	Color           string           `json:"color,omitempty"`
	Guidance        string           `json:"guidance,omitempty"`
	Recommendations *Recommendations `json:"recommendations,omitempty"`
}

// Contains reports whether score falls within the rule's inclusive range.
func (r InterpretationRule) Contains(score int) bool {
	return score >= r.MinScore && score <= r.MaxScore
}

type Recommendations struct {
	ImmediateAction string `json:"immediate_action,omitempty"`
	Treatment       string `json:"treatment,omitempty"`
	Monitoring      string `json:"monitoring,omitempty"`
	RiskAssessment  string `json:"risk_assessment,omitempty"`
}

type InterpretationSpec struct {
	Rules         []InterpretationRule            `json:"rules"`
	SubscaleRules map[string][]InterpretationRule `json:"subscale_rules,omitempty"`
}

// OrderedItems flattens the template structure into administration order,
// following sections and item sequence numbers as declared.
func (t *ScaleTemplate) OrderedItems() []Item {
	var items []Item
	for _, section := range t.Structure.Data() {
		items = append(items, section.Items...)
	}
	return items
}

// Item looks up an item by its stable id.
func (t *ScaleTemplate) Item(itemID string) (Item, bool) {
	for _, item := range t.OrderedItems() {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

// Group resolves a response group key to its declared options.
func (t *ScaleTemplate) Group(key string) ([]ResponseOption, bool) {
	options, ok := t.ResponseGroups.Data()[key]
	return options, ok
}

// SupportsMode reports whether the template declares the given
// administration mode. A template with no declared modes supports all.
func (t *ScaleTemplate) SupportsMode(mode AdministrationMode) bool {
	if len(t.Modes) == 0 {
		return true
	}
	for _, m := range t.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// TemplateMetadata is the lightweight catalog projection of a template. It
// carries no item or response-group payload.
type TemplateMetadata struct {
	ID               string                                  `json:"id"`
	Name             string                                  `json:"name"`
	Abbreviation     string                                  `json:"abbreviation"`
	Version          int                                     `json:"version"`
	Category         string                                  `json:"category"`
	Featured         bool                                    `json:"featured"`
	EstimatedMinutes int                                     `json:"estimated_minutes"`
	Modes            datatypes.JSONSlice[AdministrationMode] `json:"modes"`
}

func (TemplateMetadata) TableName() string {
	return "scale_templates"
}

// Metadata returns the catalog projection of a fully loaded template.
func (t *ScaleTemplate) Metadata() *TemplateMetadata {
	return &TemplateMetadata{
		ID:               t.ID,
		Name:             t.Name,
		Abbreviation:     t.Abbreviation,
		Version:          t.Version,
		Category:         t.Category,
		Featured:         t.Featured,
		EstimatedMinutes: t.EstimatedMinutes,
		Modes:            t.Modes,
	}
}
