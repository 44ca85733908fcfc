package section

import (
	"collaborative-spec-editor/internal/domain"
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, id uint64) (*domain.Section, error)
	ListByDocument(ctx context.Context, documentID uint64) ([]domain.Section, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new section repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Section, error) {
	var section domain.Section
	err := r.db.WithContext(ctx).First(&section, id).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *RepositoryImpl) ListByDocument(ctx context.Context, documentID uint64) ([]domain.Section, error) {
	var sections []domain.Section
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("position ASC").
		Find(&sections).Error
	return sections, err
}
