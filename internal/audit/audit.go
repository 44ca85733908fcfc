package audit

import (
	"collaborative-spec-editor/internal/domain"
	"collaborative-spec-editor/internal/worker"
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type BundleApplied struct {
	DocumentID   uint64
	AuthorID     uint64
	SectionCount int
}

type ConflictSummary struct {
	SectionPath string `json:"sectionPath"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
}

type BundleRejected struct {
	DocumentID uint64
	AuthorID   uint64
	Conflicts  []ConflictSummary
}

// GormRecorder writes bundle audit rows asynchronously through the worker
// pool so the apply path never waits on audit I/O.
type GormRecorder struct {
	db   *gorm.DB
	pool *worker.WorkerPool
	log  zerolog.Logger
}

func NewGormRecorder(db *gorm.DB, pool *worker.WorkerPool, log zerolog.Logger) *GormRecorder {
	return &GormRecorder{db: db, pool: pool, log: log}
}

func (r *GormRecorder) RecordBundleApplied(ctx context.Context, rec BundleApplied) {
	record := domain.BundleAuditRecord{
		DocumentID:   rec.DocumentID,
		AuthorID:     rec.AuthorID,
		Outcome:      domain.BundleOutcomeApplied,
		SectionCount: rec.SectionCount,
		CreatedAt:    time.Now().UTC(),
	}
	r.pool.Submit(func(taskCtx context.Context) error {
		return r.db.WithContext(taskCtx).Create(&record).Error
	})
}

func (r *GormRecorder) RecordBundleRejected(ctx context.Context, rec BundleRejected) {
	details, err := json.Marshal(rec.Conflicts)
	if err != nil {
		r.log.Error().Err(err).Uint64("document", rec.DocumentID).Msg("failed to encode conflict summaries")
		details = []byte("[]")
	}

	record := domain.BundleAuditRecord{
		DocumentID:   rec.DocumentID,
		AuthorID:     rec.AuthorID,
		Outcome:      domain.BundleOutcomeRejected,
		SectionCount: len(rec.Conflicts),
		Details:      string(details),
		CreatedAt:    time.Now().UTC(),
	}
	r.pool.Submit(func(taskCtx context.Context) error {
		return r.db.WithContext(taskCtx).Create(&record).Error
	})
}
