package api

import (
	"errors"
	"net/http"

	"github.com/elloello/softphone/internal/repository"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type VoicemailHandler struct {
	repo *repository.VoicemailRepository
}

func NewVoicemailHandler(repo *repository.VoicemailRepository) *VoicemailHandler {
	return &VoicemailHandler{repo: repo}
}

func (h *VoicemailHandler) ListVoicemails(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	unread, err := h.repo.UnreadCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   list,
		"unread": unread,
	})
}

func (h *VoicemailHandler) MarkRead(c *gin.Context) {
	err := h.repo.MarkRead(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "voicemail not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *VoicemailHandler) DeleteVoicemail(c *gin.Context) {
	err := h.repo.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "voicemail not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
