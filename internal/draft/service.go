package draft

import (
	"collaborative-spec-editor/internal/domain"
	"collaborative-spec-editor/internal/errors"
	"collaborative-spec-editor/internal/ledger"
	"context"
	defError "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger is the slice of the version ledger the draft service needs
type Ledger interface {
	ApprovedVersion(ctx context.Context, sectionID uint64) (*ledger.SectionState, error)
}

type Service interface {
	StartDraft(ctx context.Context, sectionID, authorID uint64) (*domain.SectionDraft, error)
	Autosave(ctx context.Context, draftKey string, authorID uint64, content string, annotations []domain.FormattingAnnotation) (*domain.SectionDraft, error)
	GetDraft(ctx context.Context, draftKey string, authorID uint64) (*domain.SectionDraft, error)
	DiscardDraft(ctx context.Context, draftKey string, authorID uint64) error
	MarkConflictState(ctx context.Context, draftKey string, state string) error
}

type DefaultService struct {
	repository Repository
	ledger     Ledger
}

func NewService(repository Repository, l Ledger) Service {
	return &DefaultService{
		repository: repository,
		ledger:     l,
	}
}

// StartDraft opens a draft on a section for an author. An existing active
// draft for the same (section, author) pair is resumed, never duplicated.
func (s *DefaultService) StartDraft(ctx context.Context, sectionID, authorID uint64) (*domain.SectionDraft, error) {
	existing, err := s.repository.FindBySectionAuthor(ctx, sectionID, authorID)
	if err == nil {
		return existing, nil
	}
	if !defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	state, err := s.ledger.ApprovedVersion(ctx, sectionID)
	if err != nil {
		if defError.Is(err, ledger.ErrSectionNotFound) {
			return nil, errors.NotFound("Section not found", err)
		}
		return nil, err
	}

	draft := &domain.SectionDraft{
		DraftKey:         uuid.NewString(),
		SectionID:        state.SectionID,
		DocumentID:       state.DocumentID,
		AuthorID:         authorID,
		DraftVersion:     1,
		DraftBaseVersion: state.Version,
		ContentMarkdown:  state.Content,
		ConflictState:    domain.ConflictStateClean,
	}
	if err := s.repository.Create(ctx, draft); err != nil {
		return nil, err
	}

	return draft, nil
}

// Autosave bumps the draft version and replaces content and annotations
func (s *DefaultService) Autosave(ctx context.Context, draftKey string, authorID uint64, content string, annotations []domain.FormattingAnnotation) (*domain.SectionDraft, error) {
	draft, err := s.ownedDraft(ctx, draftKey, authorID)
	if err != nil {
		return nil, err
	}

	draft.DraftVersion++
	draft.ContentMarkdown = content
	if annotations != nil {
		draft.FormattingAnnotations = annotations
	}
	if err := s.repository.Save(ctx, draft); err != nil {
		return nil, err
	}

	return draft, nil
}

func (s *DefaultService) GetDraft(ctx context.Context, draftKey string, authorID uint64) (*domain.SectionDraft, error) {
	return s.ownedDraft(ctx, draftKey, authorID)
}

func (s *DefaultService) DiscardDraft(ctx context.Context, draftKey string, authorID uint64) error {
	if _, err := s.ownedDraft(ctx, draftKey, authorID); err != nil {
		return err
	}
	return s.repository.Delete(ctx, draftKey)
}

// MarkConflictState records the outcome of a conflict check on the draft
func (s *DefaultService) MarkConflictState(ctx context.Context, draftKey string, state string) error {
	draft, err := s.repository.FindByKey(ctx, draftKey)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Draft not found", err)
		}
		return err
	}

	draft.ConflictState = state
	return s.repository.Save(ctx, draft)
}

func (s *DefaultService) ownedDraft(ctx context.Context, draftKey string, authorID uint64) (*domain.SectionDraft, error) {
	draft, err := s.repository.FindByKey(ctx, draftKey)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Draft not found", err)
		}
		return nil, err
	}
	if draft.AuthorID != authorID {
		return nil, errors.Forbidden("Draft belongs to another author", nil)
	}
	return draft, nil
}
