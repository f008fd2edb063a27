package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/fadilmartias/cv-evaluator/internal/model"
)

var ErrNotFound = errors.New("evaluation not found")

type EvaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{db}
}

func (r *EvaluationRepository) Create(evaluation *model.Evaluation) error {
	return r.db.Create(evaluation).Error
}

func (r *EvaluationRepository) Save(evaluation *model.Evaluation) error {
	return r.db.Save(evaluation).Error
}

func (r *EvaluationRepository) FindByID(id string) (*model.Evaluation, error) {
	var evaluation model.Evaluation
	err := r.db.First(&evaluation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &evaluation, nil
}
