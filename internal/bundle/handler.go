package bundle

import (
	"collaborative-spec-editor/internal/errors"
	"context"
	defError "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Service interface {
	ApplyBundle(ctx context.Context, req Request) (*Result, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type ApplyBundleRequest struct {
	SubmittedBy uint64              `json:"submitted_by" binding:"required"`
	Sections    []SectionSubmission `json:"sections" binding:"required,min=1,dive"`
}

// ApplyBundle submits a document's draft set for atomic application.
// 200 with the applied section list, 409 with the full conflict list, or
// 403 when the submitter does not match the authenticated caller.
func (h *Handler) ApplyBundle(c *gin.Context) {
	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NotFound("Document not found", err))
		return
	}

	var req ApplyBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	if req.SubmittedBy != userID.(uint64) {
		// spoofed submitter is rejected before any side effects
		c.Error(errors.Forbidden("Submitter does not match authenticated user", nil))
		return
	}

	result, err := h.service.ApplyBundle(c.Request.Context(), Request{
		DocumentID:  documentID,
		SubmittedBy: userID.(uint64),
		Sections:    req.Sections,
	})
	if err != nil {
		var validationErr *ValidationError
		if defError.As(err, &validationErr) {
			c.JSON(http.StatusConflict, gin.H{
				"documentId": validationErr.DocumentID,
				"conflicts":  validationErr.Conflicts,
			})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
