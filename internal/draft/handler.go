package draft

import (
	"collaborative-spec-editor/internal/domain"
	"collaborative-spec-editor/internal/errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// StartDraft opens (or resumes) the caller's draft on a section
func (h *Handler) StartDraft(c *gin.Context) {
	sectionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NotFound("Section not found", err))
		return
	}

	userID, _ := c.Get("user_id")

	draft, err := h.service.StartDraft(c.Request.Context(), sectionID, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, draft)
}

type AutosaveRequest struct {
	Content     string                        `json:"content" binding:"required"`
	Annotations []domain.FormattingAnnotation `json:"annotations"`
}

// Autosave persists in-progress content on an existing draft
func (h *Handler) Autosave(c *gin.Context) {
	draftKey := c.Param("key")

	var req AutosaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	draft, err := h.service.Autosave(c.Request.Context(), draftKey, userID.(uint64), req.Content, req.Annotations)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (h *Handler) ShowDraft(c *gin.Context) {
	draftKey := c.Param("key")
	userID, _ := c.Get("user_id")

	draft, err := h.service.GetDraft(c.Request.Context(), draftKey, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (h *Handler) DiscardDraft(c *gin.Context) {
	draftKey := c.Param("key")
	userID, _ := c.Get("user_id")

	if err := h.service.DiscardDraft(c.Request.Context(), draftKey, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
