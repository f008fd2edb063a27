package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

const (
	CollectionJobRubric   = "job_rubric"
	CollectionEvaluations = "evaluations_corpus"

	DocTypeCV      = "cv"
	DocTypeProject = "project"
	DocTypeRubric  = "rubric"
)

// Document is one passage in the semantic store, grouped by collection.
type Document struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	Collection   string          `gorm:"type:varchar(100);index" json:"collection"`
	DocType      string          `gorm:"type:varchar(50)" json:"doc_type"`
	EvaluationID string          `gorm:"type:varchar(100)" json:"evaluation_id"`
	Content      string          `gorm:"type:text" json:"content"`
	Embedding    pgvector.Vector `gorm:"type:vector(3072)" json:"embedding"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (d *Document) TableName() string {
	return "documents"
}
