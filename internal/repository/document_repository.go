package repository

import (
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fadilmartias/cv-evaluator/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db}
}

// Search returns the topK documents of a collection nearest to the embedding,
// closest first.
func (r *DocumentRepository) Search(collection string, embedding pgvector.Vector, topK int) ([]model.Document, error) {
	var docs []model.Document

	err := r.db.Raw(`
        SELECT *, embedding <-> ? AS distance
        FROM documents
        WHERE collection = ?
        ORDER BY embedding <-> ?
        LIMIT ?
    `, embedding, collection, embedding, topK).Scan(&docs).Error

	return docs, err
}

// Upsert writes documents keyed by id, replacing earlier versions so
// re-submitting an evaluation does not duplicate its passages.
func (r *DocumentRepository) Upsert(docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&docs).Error
}
