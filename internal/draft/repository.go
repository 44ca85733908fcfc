package draft

import (
	"collaborative-spec-editor/internal/domain"
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, draft *domain.SectionDraft) error
	Save(ctx context.Context, draft *domain.SectionDraft) error
	FindByKey(ctx context.Context, draftKey string) (*domain.SectionDraft, error)
	FindBySectionAuthor(ctx context.Context, sectionID, authorID uint64) (*domain.SectionDraft, error)
	Delete(ctx context.Context, draftKey string) error
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new draft repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, draft *domain.SectionDraft) error {
	return r.db.WithContext(ctx).Create(draft).Error
}

func (r *RepositoryImpl) Save(ctx context.Context, draft *domain.SectionDraft) error {
	return r.db.WithContext(ctx).Save(draft).Error
}

func (r *RepositoryImpl) FindByKey(ctx context.Context, draftKey string) (*domain.SectionDraft, error) {
	var draft domain.SectionDraft
	err := r.db.WithContext(ctx).Where("draft_key = ?", draftKey).First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *RepositoryImpl) FindBySectionAuthor(ctx context.Context, sectionID, authorID uint64) (*domain.SectionDraft, error) {
	var draft domain.SectionDraft
	err := r.db.WithContext(ctx).
		Where("section_id = ? AND author_id = ?", sectionID, authorID).
		First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, draftKey string) error {
	return r.db.WithContext(ctx).
		Where("draft_key = ?", draftKey).
		Delete(&domain.SectionDraft{}).Error
}
