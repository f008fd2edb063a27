package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/fadilmartias/cv-evaluator/internal/dto"
	"github.com/fadilmartias/cv-evaluator/internal/model"
	"github.com/fadilmartias/cv-evaluator/internal/service"
)

const retrievalTopK = 3

const extractCVPrompt = `Extract structured information from the CV as JSON:
{
  "skills": [string],
  "experiences": [ { "years": number, "description": string } ],
  "achievements": [string]
}`

const evaluateCVPrompt = `Evaluate CV against job description.
Return JSON with:
{
  "internal_scores": {
    "technicalSkills": int(1..5),
    "experienceLevel": int(1..5),
    "relevantAchievements": int(1..5),
    "culturalFit": int(1..5)
  },
  "cv_feedback": "string",
  "overall_summary": "string"
}`

const evaluateProjectPrompt = `Evaluate Project against rubric.
Return JSON with:
{
  "internal_scores": {
    "correctness": int(1..5),
    "codeQuality": int(1..5),
    "resilience": int(1..5),
    "documentation": int(1..5),
    "creativity": int(1..5)
  },
  "project_feedback": "string",
  "overall_summary": "string"
}`

type EvaluationStore interface {
	Create(evaluation *model.Evaluation) error
	Save(evaluation *model.Evaluation) error
	FindByID(id string) (*model.Evaluation, error)
}

type DocumentStore interface {
	Search(collection string, embedding pgvector.Vector, topK int) ([]model.Document, error)
	Upsert(docs []model.Document) error
}

type Producer interface {
	Enqueue(ctx context.Context, payload dto.EvaluationJobPayload) error
}

type EvaluationUsecase struct {
	evaluations EvaluationStore
	documents   DocumentStore
	storage     service.StorageServiceInterface
	invoker     service.OpenRouterServiceInterface
	embedder    service.GeminiServiceInterface
	producer    Producer
	logger      *zap.Logger
}

func NewEvaluationUsecase(
	evaluations EvaluationStore,
	documents DocumentStore,
	storage service.StorageServiceInterface,
	invoker service.OpenRouterServiceInterface,
	embedder service.GeminiServiceInterface,
	producer Producer,
	logger *zap.Logger,
) *EvaluationUsecase {
	return &EvaluationUsecase{
		evaluations: evaluations,
		documents:   documents,
		storage:     storage,
		invoker:     invoker,
		embedder:    embedder,
		producer:    producer,
		logger:      logger,
	}
}

// CreateEvaluation records a fresh upload pair. The record stays in uploaded
// status until StartEvaluation queues it.
func (uc *EvaluationUsecase) CreateEvaluation(cvURL, projectReportURL string) (*model.Evaluation, error) {
	evaluation := &model.Evaluation{
		Status:           model.StatusUploaded,
		CvURL:            cvURL,
		ProjectReportURL: projectReportURL,
		Breakdown:        "{}",
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := uc.evaluations.Create(evaluation); err != nil {
		return nil, err
	}
	return evaluation, nil
}

// StartEvaluation moves an uploaded record to queued and enqueues exactly one
// job for it. For any other status it is a no-op returning the record as is.
func (uc *EvaluationUsecase) StartEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	evaluation, err := uc.evaluations.FindByID(id)
	if err != nil {
		return nil, err
	}

	if evaluation.Status != model.StatusUploaded {
		return evaluation, nil
	}

	evaluation.Status = model.StatusQueued
	if err := uc.evaluations.Save(evaluation); err != nil {
		return nil, err
	}

	if err := uc.producer.Enqueue(ctx, dto.EvaluationJobPayload{
		EvaluationID:     evaluation.ID.String(),
		CvURL:            evaluation.CvURL,
		ProjectReportURL: evaluation.ProjectReportURL,
	}); err != nil {
		return nil, err
	}

	return evaluation, nil
}

func (uc *EvaluationUsecase) GetResult(id string) (*model.Evaluation, error) {
	return uc.evaluations.FindByID(id)
}

// RunEvaluationJob drives one evaluation end to end. Every failure after the
// record enters processing is absorbed into a terminal failed record; the
// only error surfaced to the queue layer is an unknown evaluation id, which
// leaves no state behind.
func (uc *EvaluationUsecase) RunEvaluationJob(ctx context.Context, payload dto.EvaluationJobPayload) (*model.Evaluation, error) {
	log := uc.logger.With(zap.String("evaluation_id", payload.EvaluationID))
	log.Info("starting evaluation pipeline")

	evaluation, err := uc.evaluations.FindByID(payload.EvaluationID)
	if err != nil {
		return nil, err
	}

	evaluation.Status = model.StatusProcessing
	if err := uc.evaluations.Save(evaluation); err != nil {
		return nil, err
	}

	cvText, err := uc.storage.ResolveToText(uc.storage.RefFromURL(payload.CvURL))
	if err != nil {
		return uc.failEvaluation(log, evaluation, err), nil
	}
	projectText, err := uc.storage.ResolveToText(uc.storage.RefFromURL(payload.ProjectReportURL))
	if err != nil {
		return uc.failEvaluation(log, evaluation, err), nil
	}

	// Best effort: a lost audit trail never fails the evaluation.
	go func() {
		indexCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := uc.indexSubmission(indexCtx, payload.EvaluationID, cvText, projectText); err != nil {
			log.Warn("indexing submission failed", zap.Error(err))
		}
	}()

	jobContext, err := uc.retrieveContext(ctx)
	if err != nil {
		return uc.failEvaluation(log, evaluation, err), nil
	}

	cvInfo, err := uc.extractCVInfo(ctx, cvText)
	if err != nil {
		return uc.failEvaluation(log, evaluation, err), nil
	}

	var (
		wg       sync.WaitGroup
		cvEval   *LLMEvaluation
		projEval *LLMEvaluation
		cvErr    error
		projErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cvEval, cvErr = uc.evaluateCV(ctx, cvInfo, jobContext)
	}()
	go func() {
		defer wg.Done()
		projEval, projErr = uc.evaluateProject(ctx, projectText, jobContext)
	}()
	wg.Wait()
	if cvErr != nil {
		return uc.failEvaluation(log, evaluation, cvErr), nil
	}
	if projErr != nil {
		return uc.failEvaluation(log, evaluation, projErr), nil
	}

	result, err := AggregateScores(cvEval, projEval)
	if err != nil {
		return uc.failEvaluation(log, evaluation, err), nil
	}

	evaluation.Status = model.StatusCompleted
	evaluation.ApplyResult(*result)
	if err := uc.evaluations.Save(evaluation); err != nil {
		return uc.failEvaluation(log, evaluation, err), nil
	}

	log.Info("evaluation pipeline completed",
		zap.Float64("cv_match_rate", result.CvMatchRate),
		zap.Float64("project_score", result.ProjectScore))
	return evaluation, nil
}

func (uc *EvaluationUsecase) failEvaluation(log *zap.Logger, evaluation *model.Evaluation, cause error) *model.Evaluation {
	log.Error("evaluation pipeline failed", zap.Error(cause))

	evaluation.Status = model.StatusFailed
	evaluation.ApplyResult(model.EvaluationResult{
		CvFeedback:      "Evaluation failed",
		ProjectFeedback: "Evaluation failed",
		OverallSummary:  fmt.Sprintf("Evaluation failed: %v", cause),
	})
	if err := uc.evaluations.Save(evaluation); err != nil {
		log.Error("could not persist failed evaluation", zap.Error(err))
	}
	return evaluation
}

// retrieveContext pulls the nearest job description and rubric passages and
// concatenates them in store order.
func (uc *EvaluationUsecase) retrieveContext(ctx context.Context) (string, error) {
	queries := []string{"job description backend role", "scoring rubric"}

	var passages []string
	for _, q := range queries {
		embedding, err := uc.embedder.GenerateEmbedding(ctx, q, service.EmbeddingModeQuery)
		if err != nil {
			return "", fmt.Errorf("embed retrieval query: %w", err)
		}
		docs, err := uc.documents.Search(model.CollectionJobRubric, pgvector.NewVector(embedding), retrievalTopK)
		if err != nil {
			return "", fmt.Errorf("search job rubric collection: %w", err)
		}
		for _, d := range docs {
			passages = append(passages, d.Content)
		}
	}
	return strings.Join(passages, "\n"), nil
}

func (uc *EvaluationUsecase) indexSubmission(ctx context.Context, evaluationID, cvText, projectText string) error {
	docs := make([]model.Document, 0, 2)
	for _, part := range []struct {
		docType string
		text    string
	}{
		{model.DocTypeCV, cvText},
		{model.DocTypeProject, projectText},
	} {
		embedding, err := uc.embedder.GenerateEmbedding(ctx, part.text, service.EmbeddingModeDocument)
		if err != nil {
			return fmt.Errorf("embed %s text: %w", part.docType, err)
		}
		docs = append(docs, model.Document{
			ID:           evaluationID + "-" + part.docType,
			Collection:   model.CollectionEvaluations,
			DocType:      part.docType,
			EvaluationID: evaluationID,
			Content:      part.text,
			Embedding:    pgvector.NewVector(embedding),
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		})
	}
	return uc.documents.Upsert(docs)
}

func (uc *EvaluationUsecase) extractCVInfo(ctx context.Context, cvText string) (*model.ExtractedCVInfo, error) {
	out, err := uc.invoker.Invoke(ctx, extractCVPrompt, cvText, true)
	if err != nil {
		return nil, fmt.Errorf("extract CV info: %w", err)
	}
	var info model.ExtractedCVInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return nil, fmt.Errorf("decode extracted CV info: %w", err)
	}
	info.Normalize()
	return &info, nil
}

func (uc *EvaluationUsecase) evaluateCV(ctx context.Context, cvInfo *model.ExtractedCVInfo, jobContext string) (*LLMEvaluation, error) {
	userPayload, err := json.Marshal(map[string]any{
		"cvInfo":     cvInfo,
		"jobContext": jobContext,
	})
	if err != nil {
		return nil, err
	}
	out, err := uc.invoker.Invoke(ctx, evaluateCVPrompt, string(userPayload), true)
	if err != nil {
		return nil, fmt.Errorf("evaluate CV: %w", err)
	}
	var eval LLMEvaluation
	if err := json.Unmarshal([]byte(out), &eval); err != nil {
		return nil, fmt.Errorf("decode CV evaluation: %w", err)
	}
	return &eval, nil
}

func (uc *EvaluationUsecase) evaluateProject(ctx context.Context, projectText, jobContext string) (*LLMEvaluation, error) {
	userPayload, err := json.Marshal(map[string]any{
		"projectText": projectText,
		"jobContext":  jobContext,
	})
	if err != nil {
		return nil, err
	}
	out, err := uc.invoker.Invoke(ctx, evaluateProjectPrompt, string(userPayload), true)
	if err != nil {
		return nil, fmt.Errorf("evaluate project: %w", err)
	}
	var eval LLMEvaluation
	if err := json.Unmarshal([]byte(out), &eval); err != nil {
		return nil, fmt.Errorf("decode project evaluation: %w", err)
	}
	return &eval, nil
}

// SeedRubric stores job description and rubric passages for retrieval.
func (uc *EvaluationUsecase) SeedRubric(ctx context.Context, entries []dto.RubricEntry) error {
	docs := make([]model.Document, 0, len(entries))
	for i, entry := range entries {
		embedding, err := uc.embedder.GenerateEmbedding(ctx, entry.Content, service.EmbeddingModeDocument)
		if err != nil {
			return fmt.Errorf("embed rubric entry %q: %w", entry.Title, err)
		}
		docs = append(docs, model.Document{
			ID:         fmt.Sprintf("rubric-%d-%s", i, slugify(entry.Title)),
			Collection: model.CollectionJobRubric,
			DocType:    model.DocTypeRubric,
			Content:    entry.Content,
			Embedding:  pgvector.NewVector(embedding),
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		})
	}
	return uc.documents.Upsert(docs)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}
