package usecase

import (
	"math"
	"strings"

	"github.com/fadilmartias/cv-evaluator/internal/model"
)

// Dimension names the scorers must produce. The two sets are disjoint, the
// aggregator is the single place enforcing that the union is complete.
var (
	cvDimensions      = []string{"technicalSkills", "experienceLevel", "relevantAchievements", "culturalFit"}
	projectDimensions = []string{"correctness", "codeQuality", "resilience", "documentation", "creativity"}
)

// LLMEvaluation is one scorer's parsed response.
type LLMEvaluation struct {
	InternalScores  map[string]int `json:"internal_scores"`
	CvFeedback      string         `json:"cv_feedback"`
	ProjectFeedback string         `json:"project_feedback"`
	OverallSummary  string         `json:"overall_summary"`
}

// AggregationError reports which required score dimensions were missing
// after merging the CV and project score maps.
type AggregationError struct {
	Missing []string
}

func (e *AggregationError) Error() string {
	return "aggregation missing score dimensions: " + strings.Join(e.Missing, ", ")
}

// AggregateScores combines the two disjoint per-dimension score sets into the
// normalized result. For valid inputs (all nine scores in 1..5) the match
// rate lands in [0.2, 1.0] and the project score in [2.0, 10.0].
func AggregateScores(cvEval, projectEval *LLMEvaluation) (*model.EvaluationResult, error) {
	scores := make(map[string]int, len(cvDimensions)+len(projectDimensions))
	for k, v := range cvEval.InternalScores {
		scores[k] = v
	}
	for k, v := range projectEval.InternalScores {
		scores[k] = v
	}

	var missing []string
	for _, k := range cvDimensions {
		if _, ok := scores[k]; !ok {
			missing = append(missing, k)
		}
	}
	for _, k := range projectDimensions {
		if _, ok := scores[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &AggregationError{Missing: missing}
	}

	cvWeighted := (float64(scores["technicalSkills"])*0.4 +
		float64(scores["experienceLevel"])*0.25 +
		float64(scores["relevantAchievements"])*0.2 +
		float64(scores["culturalFit"])*0.15) / 5

	projectWeighted := (float64(scores["correctness"])*0.3 +
		float64(scores["codeQuality"])*0.25 +
		float64(scores["resilience"])*0.2 +
		float64(scores["documentation"])*0.15 +
		float64(scores["creativity"])*0.1) * 2

	return &model.EvaluationResult{
		CvMatchRate:     math.Round(cvWeighted*100) / 100,
		CvFeedback:      cvEval.CvFeedback,
		ProjectScore:    math.Round(projectWeighted*10) / 10,
		ProjectFeedback: projectEval.ProjectFeedback,
		OverallSummary:  strings.TrimSpace(cvEval.OverallSummary + " " + projectEval.OverallSummary),
		InternalScores:  scores,
	}, nil
}
