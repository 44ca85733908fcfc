package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Segment types
const (
	SegmentAdded     = "added"
	SegmentRemoved   = "removed"
	SegmentUnchanged = "unchanged"
)

type Segment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Result struct {
	Mode     string    `json:"mode"`
	Segments []Segment `json:"segments"`
}

// Engine computes structured segment diffs between two markdown texts.
// Pure and deterministic, no state.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

func NewEngine() *Engine {
	return &Engine{dmp: diffmatchpatch.New()}
}

// Diff compares the approved content against the draft content and returns
// the added/removed/unchanged segments in document order.
func (e *Engine) Diff(approvedContent, draftContent string) Result {
	diffs := e.dmp.DiffMain(approvedContent, draftContent, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)

	segments := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		segments = append(segments, Segment{
			Type: segmentType(d.Type),
			Text: d.Text,
		})
	}

	return Result{
		Mode:     "segments",
		Segments: segments,
	}
}

// HasChanges reports whether the result contains any added or removed segment
func (r Result) HasChanges() bool {
	for _, s := range r.Segments {
		if s.Type != SegmentUnchanged {
			return true
		}
	}
	return false
}

func segmentType(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffInsert:
		return SegmentAdded
	case diffmatchpatch.DiffDelete:
		return SegmentRemoved
	default:
		return SegmentUnchanged
	}
}
