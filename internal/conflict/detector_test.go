package conflict

import (
	"collaborative-spec-editor/internal/broker"
	"collaborative-spec-editor/internal/diff"
	"collaborative-spec-editor/internal/domain"
	"collaborative-spec-editor/internal/ledger"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ApprovedVersion(ctx context.Context, sectionID uint64) (*ledger.SectionState, error) {
	args := m.Called(ctx, sectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.SectionState), args.Error(1)
}

// MockLogRepository is a mock implementation of LogRepository
type MockLogRepository struct {
	mock.Mock
}

func (m *MockLogRepository) Append(ctx context.Context, entry *domain.ConflictLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLogRepository) ListBySection(ctx context.Context, sectionID uint64, page, pageSize int) ([]domain.ConflictLogEntry, int64, error) {
	args := m.Called(ctx, sectionID, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.ConflictLogEntry), args.Get(1).(int64), args.Error(2)
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic, resourceID, workspaceID string, payload any) (broker.Envelope, error) {
	args := m.Called(topic, resourceID, workspaceID, payload)
	return args.Get(0).(broker.Envelope), args.Error(1)
}

func newTestDetector(l *MockLedger, logs *MockLogRepository, events *MockPublisher) *Detector {
	return NewDetector(l, diff.NewEngine(), logs, events, zerolog.Nop())
}

// TestCheck_CleanBaseline tests that a current baseline yields clean plus a diff preview
func TestCheck_CleanBaseline(t *testing.T) {
	mockLedger := new(MockLedger)
	mockLogs := new(MockLogRepository)
	mockEvents := new(MockPublisher)
	detector := newTestDetector(mockLedger, mockLogs, mockEvents)

	mockLedger.On("ApprovedVersion", mock.Anything, uint64(10)).
		Return(&ledger.SectionState{SectionID: 10, DocumentID: 1, WorkspaceID: "ws-1", Version: 4, Content: "approved text"}, nil)
	mockEvents.On("Publish", broker.TopicSectionDiff, "section:10", "ws-1", mock.Anything).
		Return(broker.Envelope{}, nil)

	result, err := detector.Check(context.Background(), CheckRequest{
		SectionID:        10,
		AuthorID:         7,
		DraftBaseVersion: 4,
		DraftVersion:     2,
		DraftContent:     "approved text plus edits",
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusClean, result.Status)
	assert.Equal(t, uint64(4), result.LatestApprovedVersion)
	assert.NotNil(t, result.Diff)
	assert.True(t, result.Diff.HasChanges())
	mockLogs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	mockEvents.AssertExpectations(t)
}

// TestCheck_StaleBaseline tests that base 4 against approved 6 requires a rebase
func TestCheck_StaleBaseline(t *testing.T) {
	mockLedger := new(MockLedger)
	mockLogs := new(MockLogRepository)
	mockEvents := new(MockPublisher)
	detector := newTestDetector(mockLedger, mockLogs, mockEvents)

	mockLedger.On("ApprovedVersion", mock.Anything, uint64(10)).
		Return(&ledger.SectionState{SectionID: 10, DocumentID: 1, WorkspaceID: "ws-1", Version: 6, Content: "newer text"}, nil)
	mockLogs.On("Append", mock.Anything, mock.MatchedBy(func(entry *domain.ConflictLogEntry) bool {
		return entry.SectionID == 10 &&
			entry.PreviousVersion == 4 &&
			entry.LatestVersion == 6 &&
			entry.DetectedBy == 7
	})).Return(nil)
	mockEvents.On("Publish", broker.TopicSectionConflict, "section:10", "ws-1", mock.MatchedBy(func(p any) bool {
		event, ok := p.(SectionConflictEvent)
		return ok && event.ConflictState == StatusRebaseRequired && event.LatestApprovedVersion == 6
	})).Return(broker.Envelope{}, nil)

	result, err := detector.Check(context.Background(), CheckRequest{
		SectionID:        10,
		AuthorID:         7,
		DraftBaseVersion: 4,
		DraftVersion:     3,
		DraftContent:     "stale edits",
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusRebaseRequired, result.Status)
	assert.Equal(t, uint64(6), result.LatestApprovedVersion)
	assert.Nil(t, result.Diff)
	mockLogs.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

// TestCheck_StaleBaselineIsStable tests that repeating the same stale check
// returns the same verdict each time
func TestCheck_StaleBaselineIsStable(t *testing.T) {
	mockLedger := new(MockLedger)
	mockLogs := new(MockLogRepository)
	mockEvents := new(MockPublisher)
	detector := newTestDetector(mockLedger, mockLogs, mockEvents)

	mockLedger.On("ApprovedVersion", mock.Anything, uint64(10)).
		Return(&ledger.SectionState{SectionID: 10, DocumentID: 1, WorkspaceID: "ws-1", Version: 6, Content: "newer"}, nil)
	mockLogs.On("Append", mock.Anything, mock.Anything).Return(nil)
	mockEvents.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(broker.Envelope{}, nil)

	req := CheckRequest{SectionID: 10, AuthorID: 7, DraftBaseVersion: 4, DraftVersion: 3}

	first, err := detector.Check(context.Background(), req)
	assert.NoError(t, err)
	second, err := detector.Check(context.Background(), req)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StatusRebaseRequired, second.Status)
}

// TestCheck_FutureBaselineFails tests that a baseline ahead of the approved
// version is rejected as a defect
func TestCheck_FutureBaselineFails(t *testing.T) {
	mockLedger := new(MockLedger)
	mockLogs := new(MockLogRepository)
	mockEvents := new(MockPublisher)
	detector := newTestDetector(mockLedger, mockLogs, mockEvents)

	mockLedger.On("ApprovedVersion", mock.Anything, uint64(10)).
		Return(&ledger.SectionState{SectionID: 10, DocumentID: 1, WorkspaceID: "ws-1", Version: 6, Content: "approved"}, nil)

	result, err := detector.Check(context.Background(), CheckRequest{
		SectionID:        10,
		AuthorID:         7,
		DraftBaseVersion: 7,
		DraftVersion:     1,
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	mockLogs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	mockEvents.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestCheck_LogFailureDoesNotHideConflict tests that an audit write failure
// still surfaces the rebase signal
func TestCheck_LogFailureDoesNotHideConflict(t *testing.T) {
	mockLedger := new(MockLedger)
	mockLogs := new(MockLogRepository)
	mockEvents := new(MockPublisher)
	detector := newTestDetector(mockLedger, mockLogs, mockEvents)

	mockLedger.On("ApprovedVersion", mock.Anything, uint64(10)).
		Return(&ledger.SectionState{SectionID: 10, DocumentID: 1, WorkspaceID: "ws-1", Version: 6, Content: "approved"}, nil)
	mockLogs.On("Append", mock.Anything, mock.Anything).Return(assert.AnError)
	mockEvents.On("Publish", broker.TopicSectionConflict, "section:10", "ws-1", mock.Anything).
		Return(broker.Envelope{}, nil)

	result, err := detector.Check(context.Background(), CheckRequest{
		SectionID:        10,
		AuthorID:         7,
		DraftBaseVersion: 5,
		DraftVersion:     2,
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusRebaseRequired, result.Status)
	mockEvents.AssertExpectations(t)
}

// TestCheck_SectionNotFound tests that ledger lookup failures propagate
func TestCheck_SectionNotFound(t *testing.T) {
	mockLedger := new(MockLedger)
	mockLogs := new(MockLogRepository)
	mockEvents := new(MockPublisher)
	detector := newTestDetector(mockLedger, mockLogs, mockEvents)

	mockLedger.On("ApprovedVersion", mock.Anything, uint64(99)).
		Return(nil, ledger.ErrSectionNotFound)

	result, err := detector.Check(context.Background(), CheckRequest{SectionID: 99, DraftBaseVersion: 1, DraftVersion: 1})

	assert.ErrorIs(t, err, ledger.ErrSectionNotFound)
	assert.Nil(t, result)
}
