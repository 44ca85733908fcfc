package bundle

import (
	"collaborative-spec-editor/internal/audit"
	"collaborative-spec-editor/internal/broker"
	"collaborative-spec-editor/internal/ledger"
	"collaborative-spec-editor/internal/quality"
	"context"
	defError "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Conflict kinds
const (
	KindQualityGate = "quality_gate"
	KindBaseline    = "baseline"
	KindScope       = "scope"
)

// Failure reason tags for telemetry and lifecycle events
const (
	ReasonQualityGateFailed  = "quality-gate-failed"
	ReasonRepositoryConflict = "repository-conflict"
)

// SectionSubmission is one draft's claim inside a bundle
type SectionSubmission struct {
	DraftKey          string         `json:"draft_key" binding:"required"`
	SectionPath       string         `json:"section_path" binding:"required"`
	Patch             string         `json:"patch"`
	BaselineVersion   uint64         `json:"baseline_version" binding:"required"`
	QualityGateReport quality.Report `json:"quality_gate_report"`
}

type Request struct {
	DocumentID  uint64
	SubmittedBy uint64
	Sections    []SectionSubmission
}

// Conflict carries enough server state for the client to resolve without a
// second round trip.
type Conflict struct {
	SectionPath   string `json:"sectionPath"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	ServerVersion uint64 `json:"serverVersion,omitempty"`
	ServerContent string `json:"serverContent,omitempty"`
}

type Result struct {
	DocumentID      uint64   `json:"documentId"`
	AppliedSections []string `json:"appliedSections"`
}

// ValidationError rejects the whole bundle: either every section applied or
// none did.
type ValidationError struct {
	DocumentID uint64
	Conflicts  []Conflict
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bundle rejected for document %d with %d conflicts", e.DocumentID, len(e.Conflicts))
}

// LifecycleEvent is the payload of project.lifecycle envelopes
type LifecycleEvent struct {
	DocumentID      uint64   `json:"documentId"`
	Phase           string   `json:"phase"`
	Reason          string   `json:"reason,omitempty"`
	AppliedSections []string `json:"appliedSections,omitempty"`
}

// GateProgressEvent is the payload of quality-gate.progress envelopes
type GateProgressEvent struct {
	DocumentID  uint64 `json:"documentId"`
	SectionPath string `json:"sectionPath"`
	Status      string `json:"status"`
}

// GateSummaryEvent is the payload of quality-gate.summary envelopes
type GateSummaryEvent struct {
	DocumentID uint64 `json:"documentId"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
}

type AuditRecorder interface {
	RecordBundleApplied(ctx context.Context, rec audit.BundleApplied)
	RecordBundleRejected(ctx context.Context, rec audit.BundleRejected)
}

type TelemetryEmitter interface {
	EmitBundleAttempt(ctx context.Context, documentID uint64)
	EmitBundleSuccess(ctx context.Context, documentID uint64, sectionCount int, elapsed time.Duration)
	EmitBundleFailure(ctx context.Context, documentID uint64, reason string)
}

type WorkspaceResolver interface {
	DocumentWorkspace(ctx context.Context, documentID uint64) (string, error)
}

type Publisher interface {
	Publish(topic, resourceID, workspaceID string, payload any) (broker.Envelope, error)
}

var errBundleConflicts = defError.New("bundle has conflicts")

// Coordinator applies a document's draft set as a single unit. Every section
// is checked; conflicts are collected, never stop-on-first, and any conflict
// rolls back the whole bundle.
type Coordinator struct {
	ledger     ledger.Ledger
	workspaces WorkspaceResolver
	audit      AuditRecorder
	telemetry  TelemetryEmitter
	events     Publisher
	log        zerolog.Logger
}

func NewCoordinator(
	l ledger.Ledger,
	workspaces WorkspaceResolver,
	auditRecorder AuditRecorder,
	telemetry TelemetryEmitter,
	events Publisher,
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		ledger:     l,
		workspaces: workspaces,
		audit:      auditRecorder,
		telemetry:  telemetry,
		events:     events,
		log:        log,
	}
}

// ApplyBundle validates and applies every section in submission order inside
// one transaction. On success all drafts are retired and all patches are
// final; on any conflict the transaction rolls back and a ValidationError
// listing every failing section is returned.
func (co *Coordinator) ApplyBundle(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	co.telemetry.EmitBundleAttempt(ctx, req.DocumentID)

	workspaceID, err := co.workspaces.DocumentWorkspace(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	var applied []string
	var progress []GateProgressEvent
	passed, failed := 0, 0

	txErr := co.ledger.InTransaction(ctx, func(tx ledger.Ledger) error {
		for _, sub := range req.Sections {
			snapshot, err := tx.SectionSnapshot(ctx, sub.SectionPath, req.DocumentID)
			if err != nil {
				return err
			}
			if snapshot == nil {
				// section path outside this document is a conflict, not a crash
				conflicts = append(conflicts, Conflict{
					SectionPath: sub.SectionPath,
					Kind:        KindScope,
					Message:     fmt.Sprintf("section %q does not belong to document %d", sub.SectionPath, req.DocumentID),
				})
				progress = append(progress, GateProgressEvent{
					DocumentID:  req.DocumentID,
					SectionPath: sub.SectionPath,
					Status:      "skipped",
				})
				continue
			}

			if sub.QualityGateReport.Failed() {
				// one conflict per gate-failing section; baseline validation
				// is skipped since the section needs correction either way
				failed++
				conflicts = append(conflicts, Conflict{
					SectionPath:   sub.SectionPath,
					Kind:          KindQualityGate,
					Message:       sub.QualityGateReport.FirstIssueMessage(),
					ServerVersion: snapshot.ServerVersion,
					ServerContent: snapshot.ServerContent,
				})
				progress = append(progress, GateProgressEvent{
					DocumentID:  req.DocumentID,
					SectionPath: sub.SectionPath,
					Status:      quality.StatusFail,
				})
				continue
			}
			passed++
			progress = append(progress, GateProgressEvent{
				DocumentID:  req.DocumentID,
				SectionPath: sub.SectionPath,
				Status:      quality.StatusPass,
			})

			if sub.BaselineVersion > snapshot.ServerVersion {
				// future baseline claim is a defect, abort the whole bundle
				return fmt.Errorf("section %q: baseline version %d is ahead of approved version %d",
					sub.SectionPath, sub.BaselineVersion, snapshot.ServerVersion)
			}
			if sub.BaselineVersion < snapshot.ServerVersion {
				conflicts = append(conflicts, baselineConflict(sub, snapshot))
				continue
			}

			if _, err := tx.ApplyPatch(ctx, snapshot.SectionID, sub.BaselineVersion, sub.Patch); err != nil {
				if defError.Is(err, ledger.ErrVersionMismatch) {
					// a concurrent apply won the race after our snapshot read
					fresh, ferr := tx.SectionSnapshot(ctx, sub.SectionPath, req.DocumentID)
					if ferr != nil {
						return ferr
					}
					conflicts = append(conflicts, baselineConflict(sub, fresh))
					continue
				}
				return err
			}
			if err := tx.RetireDraft(ctx, sub.DraftKey); err != nil {
				return err
			}
			applied = append(applied, sub.SectionPath)
		}

		if len(conflicts) > 0 {
			// roll back every applied patch and retired draft
			return errBundleConflicts
		}
		return nil
	})

	docResource := fmt.Sprintf("document:%d", req.DocumentID)
	for _, p := range progress {
		co.publish(broker.TopicQualityGateProgress, docResource, workspaceID, p)
	}
	co.publish(broker.TopicQualityGateSummary, docResource, workspaceID, GateSummaryEvent{
		DocumentID: req.DocumentID,
		Passed:     passed,
		Failed:     failed,
	})

	switch {
	case txErr == nil:
		co.audit.RecordBundleApplied(ctx, audit.BundleApplied{
			DocumentID:   req.DocumentID,
			AuthorID:     req.SubmittedBy,
			SectionCount: len(applied),
		})
		co.telemetry.EmitBundleSuccess(ctx, req.DocumentID, len(applied), time.Since(started))
		co.publish(broker.TopicProjectLifecycle, docResource, workspaceID, LifecycleEvent{
			DocumentID:      req.DocumentID,
			Phase:           "bundle-applied",
			AppliedSections: applied,
		})
		return &Result{DocumentID: req.DocumentID, AppliedSections: applied}, nil

	case defError.Is(txErr, errBundleConflicts):
		reason := failureReason(conflicts)
		co.audit.RecordBundleRejected(ctx, audit.BundleRejected{
			DocumentID: req.DocumentID,
			AuthorID:   req.SubmittedBy,
			Conflicts:  toSummaries(conflicts),
		})
		co.telemetry.EmitBundleFailure(ctx, req.DocumentID, reason)
		co.publish(broker.TopicProjectLifecycle, docResource, workspaceID, LifecycleEvent{
			DocumentID: req.DocumentID,
			Phase:      "bundle-rejected",
			Reason:     reason,
		})
		return nil, &ValidationError{DocumentID: req.DocumentID, Conflicts: conflicts}

	default:
		return nil, txErr
	}
}

func baselineConflict(sub SectionSubmission, snapshot *ledger.SectionSnapshot) Conflict {
	return Conflict{
		SectionPath: sub.SectionPath,
		Kind:        KindBaseline,
		Message: fmt.Sprintf("baseline version %d is behind approved version %d",
			sub.BaselineVersion, snapshot.ServerVersion),
		ServerVersion: snapshot.ServerVersion,
		ServerContent: snapshot.ServerContent,
	}
}

// failureReason tags the rejection after the first-seen conflict
func failureReason(conflicts []Conflict) string {
	if len(conflicts) > 0 && conflicts[0].Kind == KindQualityGate {
		return ReasonQualityGateFailed
	}
	return ReasonRepositoryConflict
}

func toSummaries(conflicts []Conflict) []audit.ConflictSummary {
	summaries := make([]audit.ConflictSummary, 0, len(conflicts))
	for _, c := range conflicts {
		summaries = append(summaries, audit.ConflictSummary{
			SectionPath: c.SectionPath,
			Kind:        c.Kind,
			Message:     c.Message,
		})
	}
	return summaries
}

func (co *Coordinator) publish(topic, resourceID, workspaceID string, payload any) {
	if _, err := co.events.Publish(topic, resourceID, workspaceID, payload); err != nil {
		co.log.Error().Err(err).Str("topic", topic).Str("resource", resourceID).Msg("failed to publish event")
	}
}
