package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cvScores(v int) map[string]int {
	return map[string]int{
		"technicalSkills":      v,
		"experienceLevel":      v,
		"relevantAchievements": v,
		"culturalFit":          v,
	}
}

func projectScores(v int) map[string]int {
	return map[string]int{
		"correctness":   v,
		"codeQuality":   v,
		"resilience":    v,
		"documentation": v,
		"creativity":    v,
	}
}

func TestAggregateScoresAllMax(t *testing.T) {
	result, err := AggregateScores(
		&LLMEvaluation{InternalScores: cvScores(5), CvFeedback: "strong CV", OverallSummary: "Excellent candidate."},
		&LLMEvaluation{InternalScores: projectScores(5), ProjectFeedback: "solid project", OverallSummary: "Great delivery."},
	)
	require.NoError(t, err)

	assert.Equal(t, 1.00, result.CvMatchRate)
	assert.Equal(t, 10.0, result.ProjectScore)
	assert.Equal(t, "strong CV", result.CvFeedback)
	assert.Equal(t, "solid project", result.ProjectFeedback)
	assert.Equal(t, "Excellent candidate. Great delivery.", result.OverallSummary)
	assert.Len(t, result.InternalScores, 9)
}

func TestAggregateScoresAllMin(t *testing.T) {
	result, err := AggregateScores(
		&LLMEvaluation{InternalScores: cvScores(1)},
		&LLMEvaluation{InternalScores: projectScores(1)},
	)
	require.NoError(t, err)

	assert.Equal(t, 0.20, result.CvMatchRate)
	assert.Equal(t, 2.0, result.ProjectScore)
}

func TestAggregateScoresWeighting(t *testing.T) {
	cv := map[string]int{
		"technicalSkills":      5,
		"experienceLevel":      3,
		"relevantAchievements": 4,
		"culturalFit":          2,
	}
	project := map[string]int{
		"correctness":   4,
		"codeQuality":   3,
		"resilience":    5,
		"documentation": 2,
		"creativity":    1,
	}

	result, err := AggregateScores(
		&LLMEvaluation{InternalScores: cv},
		&LLMEvaluation{InternalScores: project},
	)
	require.NoError(t, err)

	// (5*0.4 + 3*0.25 + 4*0.2 + 2*0.15) / 5 = 0.77
	assert.Equal(t, 0.77, result.CvMatchRate)
	// (4*0.3 + 3*0.25 + 5*0.2 + 2*0.15 + 1*0.1) * 2 = 6.7
	assert.Equal(t, 6.7, result.ProjectScore)
}

func TestAggregateScoresBoundsForAllValidInputs(t *testing.T) {
	for cv := 1; cv <= 5; cv++ {
		for proj := 1; proj <= 5; proj++ {
			result, err := AggregateScores(
				&LLMEvaluation{InternalScores: cvScores(cv)},
				&LLMEvaluation{InternalScores: projectScores(proj)},
			)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, result.CvMatchRate, 0.2)
			assert.LessOrEqual(t, result.CvMatchRate, 1.0)
			assert.GreaterOrEqual(t, result.ProjectScore, 2.0)
			assert.LessOrEqual(t, result.ProjectScore, 10.0)
		}
	}
}

func TestAggregateScoresDeterministic(t *testing.T) {
	cvEval := &LLMEvaluation{InternalScores: cvScores(3), OverallSummary: "ok"}
	projEval := &LLMEvaluation{InternalScores: projectScores(4), OverallSummary: "fine"}

	first, err := AggregateScores(cvEval, projEval)
	require.NoError(t, err)
	second, err := AggregateScores(cvEval, projEval)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAggregateScoresMissingDimension(t *testing.T) {
	cv := cvScores(5)
	delete(cv, "culturalFit")

	result, err := AggregateScores(
		&LLMEvaluation{InternalScores: cv},
		&LLMEvaluation{InternalScores: projectScores(5)},
	)
	assert.Nil(t, result)

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, []string{"culturalFit"}, aggErr.Missing)
}

func TestAggregateScoresEmptyFeedbackDefaults(t *testing.T) {
	result, err := AggregateScores(
		&LLMEvaluation{InternalScores: cvScores(3)},
		&LLMEvaluation{InternalScores: projectScores(3)},
	)
	require.NoError(t, err)

	assert.Equal(t, "", result.CvFeedback)
	assert.Equal(t, "", result.ProjectFeedback)
	assert.Equal(t, "", result.OverallSummary)
}
