package domain

import (
	"time"
)

// User represents an author in the system
type User struct {
	ID           uint64
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Password     string `gorm:"-"` // input only, not stored in db
	PasswordHash string
	TokenVersion uint64
	IsActive     bool `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser represents a user without sensitive information
type SafeUser struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// ToSafeUser converts a User to a SafeUser
func (u *User) ToSafeUser() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		IsActive:  u.IsActive,
	}
}

// Document is a specification document composed of ordered sections.
// Every document belongs to a workspace; push subscriptions are scoped by it.
type Document struct {
	ID          uint64
	WorkspaceID string `gorm:"index"`
	Title       string
	OwnerID     uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Section holds the authoritative approved state for one document section.
// ApprovedVersion strictly increases on every successful apply.
type Section struct {
	ID              uint64
	DocumentID      uint64 `gorm:"uniqueIndex:idx_sections_doc_path"`
	Path            string `gorm:"uniqueIndex:idx_sections_doc_path"`
	Title           string
	Position        int
	ApprovedVersion uint64
	ApprovedContent string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Draft conflict states
const (
	ConflictStateClean          = "clean"
	ConflictStateRebaseRequired = "rebase_required"
)

// FormattingAnnotation marks a styled range inside a draft's markdown.
type FormattingAnnotation struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Style string `json:"style"`
}

// SectionDraft is an author's in-progress edit of one section.
// At most one active draft per (section, author) pair.
type SectionDraft struct {
	ID                    uint64
	DraftKey              string `gorm:"uniqueIndex"`
	SectionID             uint64 `gorm:"uniqueIndex:idx_drafts_section_author"`
	DocumentID            uint64
	AuthorID              uint64 `gorm:"uniqueIndex:idx_drafts_section_author"`
	DraftVersion          uint64
	DraftBaseVersion      uint64
	ContentMarkdown       string
	FormattingAnnotations []FormattingAnnotation `gorm:"serializer:json"`
	ConflictState         string                 `gorm:"default:clean"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ConflictLogEntry records one detected baseline conflict for audit.
type ConflictLogEntry struct {
	ID              uint64
	SectionID       uint64 `gorm:"index"`
	DocumentID      uint64
	PreviousVersion uint64
	LatestVersion   uint64
	DetectedAt      time.Time
	DetectedBy      uint64
	ResolvedBy      *uint64
	ResolutionNote  *string
}

// Bundle audit outcomes
const (
	BundleOutcomeApplied  = "applied"
	BundleOutcomeRejected = "rejected"
)

// BundleAuditRecord is one row per bundle apply attempt outcome.
type BundleAuditRecord struct {
	ID           uint64
	DocumentID   uint64 `gorm:"index"`
	AuthorID     uint64
	Outcome      string
	SectionCount int
	Details      string
	CreatedAt    time.Time
}
