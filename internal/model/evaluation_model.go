package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EvaluationStatus string

const (
	StatusUploaded   EvaluationStatus = "uploaded"
	StatusQueued     EvaluationStatus = "queued"
	StatusProcessing EvaluationStatus = "processing"
	StatusCompleted  EvaluationStatus = "completed"
	StatusFailed     EvaluationStatus = "failed"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s EvaluationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Evaluation struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Status           EvaluationStatus `gorm:"type:varchar(50)" json:"status"`
	CvURL            string           `gorm:"type:text" json:"cv_url"`
	ProjectReportURL string           `gorm:"type:text" json:"project_report_url"`
	CvMatchRate      float64          `gorm:"type:float" json:"cv_match_rate"`
	CvFeedback       string           `gorm:"type:text" json:"cv_feedback"`
	ProjectScore     float64          `gorm:"type:float" json:"project_score"`
	ProjectFeedback  string           `gorm:"type:text" json:"project_feedback"`
	OverallSummary   string           `gorm:"type:text" json:"overall_summary"`
	Breakdown        string           `gorm:"type:jsonb" json:"breakdown"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (e *Evaluation) TableName() string {
	return "evaluations"
}

// EvaluationResult is the aggregated outcome attached to a terminal record.
type EvaluationResult struct {
	CvMatchRate     float64        `json:"cv_match_rate"`
	CvFeedback      string         `json:"cv_feedback"`
	ProjectScore    float64        `json:"project_score"`
	ProjectFeedback string         `json:"project_feedback"`
	OverallSummary  string         `json:"overall_summary"`
	InternalScores  map[string]int `json:"internal_scores,omitempty"`
}

// ApplyResult flattens the result onto the record columns. The per-dimension
// scores go into the jsonb breakdown column.
func (e *Evaluation) ApplyResult(result EvaluationResult) {
	e.CvMatchRate = result.CvMatchRate
	e.CvFeedback = result.CvFeedback
	e.ProjectScore = result.ProjectScore
	e.ProjectFeedback = result.ProjectFeedback
	e.OverallSummary = result.OverallSummary
	e.Breakdown = "{}"
	if len(result.InternalScores) > 0 {
		if b, err := json.Marshal(result.InternalScores); err == nil {
			e.Breakdown = string(b)
		}
	}
}

type Experience struct {
	Years       float64 `json:"years"`
	Description string  `json:"description"`
}

// ExtractedCVInfo is the structured CV summary produced by the extraction
// step. It lives only for the duration of one pipeline run.
type ExtractedCVInfo struct {
	Skills       []string     `json:"skills"`
	Experiences  []Experience `json:"experiences"`
	Achievements []string     `json:"achievements"`
}

// Normalize replaces nil slices so downstream prompt building never has to
// distinguish absent from empty.
func (i *ExtractedCVInfo) Normalize() {
	if i.Skills == nil {
		i.Skills = []string{}
	}
	if i.Experiences == nil {
		i.Experiences = []Experience{}
	}
	if i.Achievements == nil {
		i.Achievements = []string{}
	}
}
