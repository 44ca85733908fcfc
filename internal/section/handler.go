package section

import (
	"collaborative-spec-editor/internal/errors"
	defError "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	repository Repository
}

func NewHandler(repository Repository) *Handler {
	return &Handler{repository: repository}
}

type SectionShowResponse struct {
	ID              uint64    `json:"id"`
	DocumentID      uint64    `json:"document_id"`
	Path            string    `json:"path"`
	Title           string    `json:"title"`
	Position        int       `json:"position"`
	ApprovedVersion uint64    `json:"approved_version"`
	ApprovedContent string    `json:"approved_content"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ShowSection returns the approved snapshot of one section
func (h *Handler) ShowSection(c *gin.Context) {
	sectionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NotFound("Section not found", err))
		return
	}

	section, err := h.repository.FindByID(c.Request.Context(), sectionID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			c.Error(errors.NotFound("Section not found", err))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, SectionShowResponse{
		ID:              section.ID,
		DocumentID:      section.DocumentID,
		Path:            section.Path,
		Title:           section.Title,
		Position:        section.Position,
		ApprovedVersion: section.ApprovedVersion,
		ApprovedContent: section.ApprovedContent,
		UpdatedAt:       section.UpdatedAt,
	})
}

// ListSections returns a document's sections in order
func (h *Handler) ListSections(c *gin.Context) {
	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NotFound("Document not found", err))
		return
	}

	sections, err := h.repository.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		c.Error(err)
		return
	}

	result := make([]SectionShowResponse, 0, len(sections))
	for _, s := range sections {
		result = append(result, SectionShowResponse{
			ID:              s.ID,
			DocumentID:      s.DocumentID,
			Path:            s.Path,
			Title:           s.Title,
			Position:        s.Position,
			ApprovedVersion: s.ApprovedVersion,
			ApprovedContent: s.ApprovedContent,
			UpdatedAt:       s.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ShowSectionState returns the raw approved state for internal callers
func (h *Handler) ShowSectionState(c *gin.Context) {
	sectionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NotFound("Section not found", err))
		return
	}

	section, err := h.repository.FindByID(c.Request.Context(), sectionID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			c.Error(errors.NotFound("Section not found", err))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version": section.ApprovedVersion,
		"content": section.ApprovedContent,
	})
}
