package ledger

import (
	"collaborative-spec-editor/internal/domain"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrVersionMismatch is returned by ApplyPatch when the expected version is stale
var ErrVersionMismatch = errors.New("approved version mismatch")

// ErrSectionNotFound is returned when a section id or path resolves to nothing
var ErrSectionNotFound = errors.New("section not found")

// ErrDocumentNotFound is returned when a document id resolves to nothing
var ErrDocumentNotFound = errors.New("document not found")

// SectionState is the authoritative approved state of one section,
// joined with the owning document's workspace for event scoping.
type SectionState struct {
	SectionID   uint64
	DocumentID  uint64
	WorkspaceID string
	Version     uint64
	Content     string
}

// SectionSnapshot is the live server state handed back with baseline
// conflicts so the client can rebase without a second round trip.
type SectionSnapshot struct {
	SectionID     uint64 `json:"-"`
	SectionPath   string `json:"sectionPath"`
	DocumentID    uint64 `json:"documentId"`
	ServerVersion uint64 `json:"serverVersion"`
	ServerContent string `json:"serverContent"`
}

// Ledger reads and writes the approved version/content pair. Every increment
// of the approved version is paired atomically with its content write.
type Ledger interface {
	ApprovedVersion(ctx context.Context, sectionID uint64) (*SectionState, error)
	ApplyPatch(ctx context.Context, sectionID uint64, expectedVersion uint64, newContent string) (uint64, error)
	SectionSnapshot(ctx context.Context, sectionPath string, documentID uint64) (*SectionSnapshot, error)
	RetireDraft(ctx context.Context, draftKey string) error
	InTransaction(ctx context.Context, fn func(tx Ledger) error) error
}

type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger creates a ledger over the given database handle
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) ApprovedVersion(ctx context.Context, sectionID uint64) (*SectionState, error) {
	var row struct {
		ID              uint64
		DocumentID      uint64
		WorkspaceID     string
		ApprovedVersion uint64
		ApprovedContent string
	}

	err := l.db.WithContext(ctx).
		Model(&domain.Section{}).
		Select("sections.id, sections.document_id, sections.approved_version, sections.approved_content, documents.workspace_id").
		Joins("JOIN documents ON documents.id = sections.document_id").
		Where("sections.id = ?", sectionID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, ErrSectionNotFound
	}

	return &SectionState{
		SectionID:   row.ID,
		DocumentID:  row.DocumentID,
		WorkspaceID: row.WorkspaceID,
		Version:     row.ApprovedVersion,
		Content:     row.ApprovedContent,
	}, nil
}

// ApplyPatch bumps the approved version and replaces the content in one
// statement, guarded by the expected version.
func (l *GormLedger) ApplyPatch(ctx context.Context, sectionID uint64, expectedVersion uint64, newContent string) (uint64, error) {
	var newVersion uint64

	err := l.db.WithContext(ctx).Raw(`
		UPDATE sections
		SET approved_version = approved_version + 1,
		    approved_content = ?,
		    updated_at = ?
		WHERE id = ? AND approved_version = ?
		RETURNING approved_version
	`, newContent, time.Now().UTC(), sectionID, expectedVersion).Scan(&newVersion).Error
	if err != nil {
		return 0, err
	}
	if newVersion == 0 {
		return 0, ErrVersionMismatch
	}

	return newVersion, nil
}

func (l *GormLedger) SectionSnapshot(ctx context.Context, sectionPath string, documentID uint64) (*SectionSnapshot, error) {
	var section domain.Section
	err := l.db.WithContext(ctx).
		Where("path = ? AND document_id = ?", sectionPath, documentID).
		First(&section).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &SectionSnapshot{
		SectionID:     section.ID,
		SectionPath:   section.Path,
		DocumentID:    section.DocumentID,
		ServerVersion: section.ApprovedVersion,
		ServerContent: section.ApprovedContent,
	}, nil
}

func (l *GormLedger) RetireDraft(ctx context.Context, draftKey string) error {
	return l.db.WithContext(ctx).
		Where("draft_key = ?", draftKey).
		Delete(&domain.SectionDraft{}).Error
}

// DocumentWorkspace resolves the workspace a document belongs to
func (l *GormLedger) DocumentWorkspace(ctx context.Context, documentID uint64) (string, error) {
	var workspaceID string
	err := l.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", documentID).
		Select("workspace_id").
		Scan(&workspaceID).Error
	if err != nil {
		return "", err
	}
	if workspaceID == "" {
		return "", ErrDocumentNotFound
	}
	return workspaceID, nil
}

// InTransaction runs fn against a ledger bound to one database transaction
func (l *GormLedger) InTransaction(ctx context.Context, fn func(tx Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormLedger{db: tx})
	})
}
