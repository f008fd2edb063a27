package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/fadilmartias/cv-evaluator/internal/model"
)

// EvaluationJobPayload is the queue message handed to one worker run.
// Attempt counts transport-level deliveries, not model retries.
type EvaluationJobPayload struct {
	EvaluationID     string `json:"evaluationId"`
	CvURL            string `json:"cvUrl"`
	ProjectReportURL string `json:"projectReportUrl"`
	Attempt          int    `json:"attempt,omitempty"`
}

type EvaluationDTO struct {
	ID              uuid.UUID              `json:"id"`
	Status          model.EvaluationStatus `json:"status"`
	CvMatchRate     float64                `json:"cv_match_rate"`
	CvFeedback      string                 `json:"cv_feedback"`
	ProjectScore    float64                `json:"project_score"`
	ProjectFeedback string                 `json:"project_feedback"`
	OverallSummary  string                 `json:"overall_summary"`
	Breakdown       string                 `json:"breakdown"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func NewEvaluationDTO(e *model.Evaluation) EvaluationDTO {
	return EvaluationDTO{
		ID:              e.ID,
		Status:          e.Status,
		CvMatchRate:     e.CvMatchRate,
		CvFeedback:      e.CvFeedback,
		ProjectScore:    e.ProjectScore,
		ProjectFeedback: e.ProjectFeedback,
		OverallSummary:  e.OverallSummary,
		Breakdown:       e.Breakdown,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

type RubricEntry struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
