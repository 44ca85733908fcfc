package conflict

import (
	"collaborative-spec-editor/internal/errors"
	"collaborative-spec-editor/internal/ledger"
	"collaborative-spec-editor/internal/utils"
	"context"
	defError "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Checker interface {
	Check(ctx context.Context, req CheckRequest) (*CheckResult, error)
}

type Handler struct {
	checker Checker
	logs    LogRepository
}

func NewHandler(checker Checker, logs LogRepository) *Handler {
	return &Handler{checker: checker, logs: logs}
}

type CheckRequestBody struct {
	DraftBaseVersion uint64 `json:"draft_base_version" binding:"required"`
	DraftVersion     uint64 `json:"draft_version" binding:"required"`
	Content          string `json:"content"`
}

// CheckSection validates a draft's claimed baseline against the approved
// version. Responds 200 with a diff preview when clean, 409 with the fresher
// baseline when a rebase is required.
func (h *Handler) CheckSection(c *gin.Context) {
	sectionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NotFound("Section not found", err))
		return
	}

	var body CheckRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	result, err := h.checker.Check(c.Request.Context(), CheckRequest{
		SectionID:        sectionID,
		AuthorID:         userID.(uint64),
		DraftBaseVersion: body.DraftBaseVersion,
		DraftVersion:     body.DraftVersion,
		DraftContent:     body.Content,
	})
	if err != nil {
		if defError.Is(err, ledger.ErrSectionNotFound) {
			c.Error(errors.NotFound("Section not found", err))
			return
		}
		c.Error(err)
		return
	}

	if result.Status == StatusRebaseRequired {
		c.JSON(http.StatusConflict, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListConflicts returns the conflict audit log of one section
func (h *Handler) ListConflicts(c *gin.Context) {
	sectionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NotFound("Section not found", err))
		return
	}

	page, pageSize := utils.GetPaginationParams(c)
	entries, total, err := h.logs.ListBySection(c.Request.Context(), sectionID, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entries,
		"meta": gin.H{
			"total":        total,
			"current_page": page,
			"per_page":     pageSize,
		},
	})
}
