package api

import (
	"errors"
	"net/http"

	"github.com/elloello/softphone/internal/calling"
	"github.com/elloello/softphone/internal/phone"
	"github.com/gin-gonic/gin"
)

type CallHandler struct {
	mgr *calling.Manager
	// sim is non-nil only in simulated telephony mode and enables the
	// development-only incoming call injection route.
	sim *calling.SimulatedTransport
}

func NewCallHandler(mgr *calling.Manager, sim *calling.SimulatedTransport) *CallHandler {
	return &CallHandler{mgr: mgr, sim: sim}
}

func (h *CallHandler) PlaceCall(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		DisplayName string `json:"display_name"`
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

	err := h.mgr.Initiate(c.Request.Context(), dialable, req.DisplayName)
	if errors.Is(err, calling.ErrCallInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, h.mgr.Current())
}

func (h *CallHandler) GetCurrentCall(c *gin.Context) {
	call := h.mgr.Current()
	if call == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no current call"})
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h *CallHandler) Accept(c *gin.Context) {
	if err := h.mgr.Accept(c.Request.Context()); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mgr.Current())
}

func (h *CallHandler) Reject(c *gin.Context) {
	if err := h.mgr.Reject(c.Request.Context()); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *CallHandler) End(c *gin.Context) {
	if err := h.mgr.End(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *CallHandler) ToggleMute(c *gin.Context) {
	if err := h.mgr.ToggleMute(c.Request.Context()); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mgr.Current())
}

func (h *CallHandler) ToggleHold(c *gin.Context) {
	if err := h.mgr.ToggleHold(c.Request.Context()); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mgr.Current())
}

func (h *CallHandler) ToggleSpeaker(c *gin.Context) {
	h.mgr.ToggleSpeaker()
	call := h.mgr.Current()
	if call == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no current call"})
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h *CallHandler) SendDigits(c *gin.Context) {
	var req struct {
		Digits string `json:"digits"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Digits == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "digits are required"})
		return
	}
	if err := h.mgr.SendDigits(c.Request.Context(), req.Digits); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *CallHandler) StartRecording(c *gin.Context) {
	if err := h.mgr.StartRecording(c.Request.Context()); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mgr.Current())
}

func (h *CallHandler) StopRecording(c *gin.Context) {
	if err := h.mgr.StopRecording(c.Request.Context()); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mgr.Current())
}

// SimulateIncoming injects an incoming call on the simulated transport.
// Registered only when the daemon runs in simulated telephony mode.
func (h *CallHandler) SimulateIncoming(c *gin.Context) {
	if h.sim == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not available"})
		return
	}
	var req struct {
		From        string `json:"from"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.From == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from is required"})
		return
	}
	h.sim.SimulateIncomingCall(phone.FormatForDialing(req.From), req.DisplayName)
	c.JSON(http.StatusAccepted, gin.H{"status": "ringing"})
}

// callError maps engine precondition failures to HTTP statuses.
func (h *CallHandler) callError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calling.ErrCallInProgress),
		errors.Is(err, calling.ErrNoActiveInvite),
		errors.Is(err, calling.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, calling.ErrRecordingUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
