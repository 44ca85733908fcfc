package conflict

import (
	"bytes"
	"collaborative-spec-editor/internal/domain"
	"collaborative-spec-editor/internal/ledger"
	"collaborative-spec-editor/internal/middleware"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockChecker is a mock implementation of Checker
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckResult), args.Error(1)
}

func setupConflictRouter(checker Checker, logs LogRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(zerolog.Nop()))
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint64(7))
		c.Next()
	})

	handler := NewHandler(checker, logs)
	router.POST("/sections/:id/conflict-check", handler.CheckSection)
	router.GET("/sections/:id/conflicts", handler.ListConflicts)
	return router
}

// TestCheckSection_Clean tests the 200 response for a current baseline
func TestCheckSection_Clean(t *testing.T) {
	mockChecker := new(MockChecker)
	router := setupConflictRouter(mockChecker, new(MockLogRepository))

	mockChecker.On("Check", mock.Anything, CheckRequest{
		SectionID:        10,
		AuthorID:         7,
		DraftBaseVersion: 4,
		DraftVersion:     2,
		DraftContent:     "draft text",
	}).Return(&CheckResult{Status: StatusClean, LatestApprovedVersion: 4}, nil)

	body, _ := json.Marshal(gin.H{"draft_base_version": 4, "draft_version": 2, "content": "draft text"})
	req := httptest.NewRequest(http.MethodPost, "/sections/10/conflict-check", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result CheckResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, StatusClean, result.Status)
	mockChecker.AssertExpectations(t)
}

// TestCheckSection_RebaseRequired tests the 409 response for a stale baseline
func TestCheckSection_RebaseRequired(t *testing.T) {
	mockChecker := new(MockChecker)
	router := setupConflictRouter(mockChecker, new(MockLogRepository))

	mockChecker.On("Check", mock.Anything, mock.Anything).
		Return(&CheckResult{Status: StatusRebaseRequired, LatestApprovedVersion: 6}, nil)

	body, _ := json.Marshal(gin.H{"draft_base_version": 4, "draft_version": 3, "content": "stale"})
	req := httptest.NewRequest(http.MethodPost, "/sections/10/conflict-check", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var result CheckResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, StatusRebaseRequired, result.Status)
	assert.Equal(t, uint64(6), result.LatestApprovedVersion)
}

// TestCheckSection_UnknownSection tests the 404 response
func TestCheckSection_UnknownSection(t *testing.T) {
	mockChecker := new(MockChecker)
	router := setupConflictRouter(mockChecker, new(MockLogRepository))

	mockChecker.On("Check", mock.Anything, mock.Anything).
		Return(nil, ledger.ErrSectionNotFound)

	body, _ := json.Marshal(gin.H{"draft_base_version": 1, "draft_version": 1})
	req := httptest.NewRequest(http.MethodPost, "/sections/99/conflict-check", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestCheckSection_MissingBaseVersion tests request validation
func TestCheckSection_MissingBaseVersion(t *testing.T) {
	mockChecker := new(MockChecker)
	router := setupConflictRouter(mockChecker, new(MockLogRepository))

	body, _ := json.Marshal(gin.H{"content": "no versions"})
	req := httptest.NewRequest(http.MethodPost, "/sections/10/conflict-check", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockChecker.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

// TestListConflicts tests the paginated conflict log listing
func TestListConflicts(t *testing.T) {
	mockLogs := new(MockLogRepository)
	router := setupConflictRouter(new(MockChecker), mockLogs)

	entries := []domain.ConflictLogEntry{
		{SectionID: 10, PreviousVersion: 4, LatestVersion: 6, DetectedBy: 7},
	}
	mockLogs.On("ListBySection", mock.Anything, uint64(10), 1, 10).
		Return(entries, int64(1), nil)

	req := httptest.NewRequest(http.MethodGet, "/sections/10/conflicts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data []domain.ConflictLogEntry `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
	assert.Equal(t, int64(1), response.Meta.Total)
	mockLogs.AssertExpectations(t)
}
