package handler

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fadilmartias/cv-evaluator/internal/dto"
	"github.com/fadilmartias/cv-evaluator/internal/middleware"
	"github.com/fadilmartias/cv-evaluator/internal/repository"
	"github.com/fadilmartias/cv-evaluator/internal/service"
	"github.com/fadilmartias/cv-evaluator/internal/usecase"
	"github.com/fadilmartias/cv-evaluator/internal/util"
)

const maxUploadBytes = 5 * 1024 * 1024

type EvaluateHandler struct {
	uc      *usecase.EvaluationUsecase
	storage service.StorageServiceInterface
}

func NewEvaluateHandler(uc *usecase.EvaluationUsecase, storage service.StorageServiceInterface) *EvaluateHandler {
	return &EvaluateHandler{uc: uc, storage: storage}
}

func (h *EvaluateHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/evaluate", middleware.RateLimiter(1, 4*time.Second), h.Evaluate)
	app.Post("/evaluate/:id/start", h.Start)
	app.Get("/result/:id", h.Result)
	app.Post("/rubric", h.SeedRubric)
}

// Evaluate accepts the CV and project report uploads and creates the record
// in uploaded status. Processing begins only once the start endpoint is hit.
func (h *EvaluateHandler) Evaluate(c *fiber.Ctx) error {
	cvURL, err := h.processFile(c, "cv")
	if err != nil {
		return h.uploadError(c, err)
	}

	reportURL, err := h.processFile(c, "project_report")
	if err != nil {
		return h.uploadError(c, err)
	}

	evaluation, err := h.uc.CreateEvaluation(cvURL, reportURL)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to submit evaluation",
		}, err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Success submit evaluation",
		Data:    fiber.Map{"id": evaluation.ID, "status": evaluation.Status},
	})
}

func (h *EvaluateHandler) Start(c *fiber.Ctx) error {
	id := c.Params("id")
	evaluation, err := h.uc.StartEvaluation(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusNotFound,
				Message: "evaluation not found",
			}, err)
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to start evaluation",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success start evaluation",
		Data:    fiber.Map{"id": evaluation.ID, "status": evaluation.Status},
	})
}

func (h *EvaluateHandler) Result(c *fiber.Ctx) error {
	id := c.Params("id")
	evaluation, err := h.uc.GetResult(id)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusNotFound,
			Message: "evaluation not found",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success get evaluation result",
		Data:    dto.NewEvaluationDTO(evaluation),
	})
}

// SeedRubric loads job description and rubric passages into the semantic
// store used for retrieval.
func (h *EvaluateHandler) SeedRubric(c *fiber.Ctx) error {
	var entries []dto.RubricEntry
	if err := c.BodyParser(&entries); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid rubric payload",
		}, err)
	}
	if err := h.uc.SeedRubric(c.Context(), entries); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to seed rubric",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success seed rubric",
		Data:    fiber.Map{"count": len(entries)},
	})
}

// uploadError maps validation failures to 400 and everything else to the
// default 500 envelope.
func (h *EvaluateHandler) uploadError(c *fiber.Ctx, err error) error {
	var formErr *util.FormError
	if errors.As(err, &formErr) {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: formErr.Message,
		}, err)
	}
	return util.ErrorResponse(c, util.ErrorResponseFormat{
		Message: "failed to process upload",
	}, err)
}

func (h *EvaluateHandler) processFile(c *fiber.Ctx, fieldName string) (string, error) {
	file, err := c.FormFile(fieldName)
	if err != nil {
		return "", util.NewFormError(fmt.Sprintf("%s file is required", fieldName), nil)
	}

	if file.Size > maxUploadBytes {
		return "", util.NewFormError(fmt.Sprintf("%s file size is too large (max 5MB)", fieldName), nil)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" && ext != ".docx" {
		return "", util.NewFormError(fmt.Sprintf("unsupported %s file type", fieldName), nil)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open %s file: %w", fieldName, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read %s file: %w", fieldName, err)
	}

	url, err := h.storage.SaveUpload(file.Filename, data)
	if err != nil {
		return "", fmt.Errorf("save %s file: %w", fieldName, err)
	}
	return url, nil
}
