package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/elloello/softphone/internal/model"
	"github.com/elloello/softphone/internal/phone"
	"github.com/elloello/softphone/internal/repository"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ContactHandler struct {
	repo *repository.ContactRepository
}

func NewContactHandler(repo *repository.ContactRepository) *ContactHandler {
	return &ContactHandler{repo: repo}
}

func (h *ContactHandler) ListContacts(c *gin.Context) {
	var (
		contacts []model.Contact
		err      error
	)
	if q := c.Query("q"); q != "" {
		contacts, err = h.repo.Search(c.Request.Context(), q)
	} else {
		contacts, err = h.repo.List(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and phone_number are required"})
		return
	}

	dialable := phone.FormatForDialing(req.PhoneNumber)
	if !phone.IsValid(dialable) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
		return
	}

	contact := model.Contact{
		Name:        req.Name,
		PhoneNumber: dialable,
		AvatarURL:   req.AvatarURL,
	}
	if err := h.repo.Create(c.Request.Context(), &contact); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dialable := phone.FormatForDialing(req.PhoneNumber)
	if !phone.IsValid(dialable) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
		return
	}

	contact := model.Contact{
		ID:          uint(id),
		Name:        req.Name,
		PhoneNumber: dialable,
		AvatarURL:   req.AvatarURL,
	}
	err = h.repo.Update(c.Request.Context(), &contact)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}
	err = h.repo.Delete(c.Request.Context(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// LookupContact resolves a number to a contact name, matching the resolution
// the call engine performs for incoming calls.
func (h *ContactHandler) LookupContact(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "number is required"})
		return
	}
	info, err := h.repo.ContactByPhoneNumber(c.Request.Context(), number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no contact for number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"display_name": info.DisplayName,
		"number":       phone.FormatDisplay(number),
	})
}
