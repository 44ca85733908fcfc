package conflict

import (
	"collaborative-spec-editor/internal/broker"
	"collaborative-spec-editor/internal/diff"
	"collaborative-spec-editor/internal/domain"
	"collaborative-spec-editor/internal/ledger"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Check statuses
const (
	StatusClean          = "clean"
	StatusRebaseRequired = "rebase_required"
)

type CheckRequest struct {
	SectionID        uint64
	AuthorID         uint64
	DraftBaseVersion uint64
	DraftVersion     uint64
	DraftContent     string
}

type CheckResult struct {
	Status                string       `json:"status"`
	LatestApprovedVersion uint64       `json:"latestApprovedVersion"`
	Diff                  *diff.Result `json:"diff,omitempty"`
}

// SectionConflictEvent is the payload of section.conflict envelopes
type SectionConflictEvent struct {
	SectionID             uint64    `json:"sectionId"`
	DocumentID            uint64    `json:"documentId"`
	ConflictState         string    `json:"conflictState"`
	ConflictReason        string    `json:"conflictReason"`
	LatestApprovedVersion uint64    `json:"latestApprovedVersion"`
	DetectedAt            time.Time `json:"detectedAt"`
}

// SectionDiffEvent is the payload of section.diff envelopes
type SectionDiffEvent struct {
	SectionID    uint64      `json:"sectionId"`
	DocumentID   uint64      `json:"documentId"`
	DraftVersion uint64      `json:"draftVersion"`
	Diff         diff.Result `json:"diff"`
}

type Ledger interface {
	ApprovedVersion(ctx context.Context, sectionID uint64) (*ledger.SectionState, error)
}

type LogRepository interface {
	Append(ctx context.Context, entry *domain.ConflictLogEntry) error
	ListBySection(ctx context.Context, sectionID uint64, page, pageSize int) ([]domain.ConflictLogEntry, int64, error)
}

type Publisher interface {
	Publish(topic, resourceID, workspaceID string, payload any) (broker.Envelope, error)
}

// Detector decides clean vs rebase_required against the live approved version
type Detector struct {
	ledger  Ledger
	differ  *diff.Engine
	logRepo LogRepository
	events  Publisher
	log     zerolog.Logger
}

func NewDetector(l Ledger, differ *diff.Engine, logRepo LogRepository, events Publisher, log zerolog.Logger) *Detector {
	return &Detector{
		ledger:  l,
		differ:  differ,
		logRepo: logRepo,
		events:  events,
		log:     log,
	}
}

// Check compares the draft's claimed baseline against the live approved
// version. A stale baseline is a signal, not an error: it yields a
// rebase_required result, appends one conflict log entry and publishes a
// section.conflict event. A baseline ahead of the approved version is an
// invariant violation and fails the call.
func (d *Detector) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	state, err := d.ledger.ApprovedVersion(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}

	switch {
	case req.DraftBaseVersion == state.Version:
		preview := d.differ.Diff(state.Content, req.DraftContent)
		d.publish(broker.TopicSectionDiff, state, SectionDiffEvent{
			SectionID:    state.SectionID,
			DocumentID:   state.DocumentID,
			DraftVersion: req.DraftVersion,
			Diff:         preview,
		})
		return &CheckResult{
			Status:                StatusClean,
			LatestApprovedVersion: state.Version,
			Diff:                  &preview,
		}, nil

	case req.DraftBaseVersion < state.Version:
		detectedAt := time.Now().UTC()
		entry := &domain.ConflictLogEntry{
			SectionID:       state.SectionID,
			DocumentID:      state.DocumentID,
			PreviousVersion: req.DraftBaseVersion,
			LatestVersion:   state.Version,
			DetectedAt:      detectedAt,
			DetectedBy:      req.AuthorID,
		}
		if err := d.logRepo.Append(ctx, entry); err != nil {
			// audit trail failure must not hide the conflict signal
			d.log.Error().Err(err).Uint64("section", state.SectionID).Msg("failed to append conflict log entry")
		}
		d.publish(broker.TopicSectionConflict, state, SectionConflictEvent{
			SectionID:             state.SectionID,
			DocumentID:            state.DocumentID,
			ConflictState:         StatusRebaseRequired,
			ConflictReason:        fmt.Sprintf("draft base version %d is behind approved version %d", req.DraftBaseVersion, state.Version),
			LatestApprovedVersion: state.Version,
			DetectedAt:            detectedAt,
		})
		return &CheckResult{
			Status:                StatusRebaseRequired,
			LatestApprovedVersion: state.Version,
		}, nil

	default:
		// client claims a future baseline, treat as a defect
		return nil, fmt.Errorf("section %d: draft base version %d is ahead of approved version %d",
			req.SectionID, req.DraftBaseVersion, state.Version)
	}
}

func (d *Detector) publish(topic string, state *ledger.SectionState, payload any) {
	resourceID := fmt.Sprintf("section:%d", state.SectionID)
	if _, err := d.events.Publish(topic, resourceID, state.WorkspaceID, payload); err != nil {
		d.log.Error().Err(err).Str("topic", topic).Str("resource", resourceID).Msg("failed to publish event")
	}
}
