package conflict

import (
	"collaborative-spec-editor/internal/domain"
	"context"

	"gorm.io/gorm"
)

type GormLogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a conflict log repository
func NewLogRepository(db *gorm.DB) *GormLogRepository {
	return &GormLogRepository{db: db}
}

func (r *GormLogRepository) Append(ctx context.Context, entry *domain.ConflictLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormLogRepository) ListBySection(ctx context.Context, sectionID uint64, page, pageSize int) ([]domain.ConflictLogEntry, int64, error) {
	var entries []domain.ConflictLogEntry
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&domain.ConflictLogEntry{}).
		Where("section_id = ?", sectionID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("detected_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}
