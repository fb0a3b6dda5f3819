package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusfound/campusfound/internal/portal/repository"
	"github.com/campusfound/campusfound/internal/portal/service"
)

// ClaimHandler handles the claim challenge/verify flow.
type ClaimHandler struct {
	svc    *service.ClaimService
	logger *zap.Logger
}

// NewClaimHandler creates a new ClaimHandler.
func NewClaimHandler(svc *service.ClaimService, logger *zap.Logger) *ClaimHandler {
	return &ClaimHandler{svc: svc, logger: logger}
}

// Register mounts the claim routes. verifyLimit is an extra, stricter rate
// limiter on the verify route so codes cannot be brute forced inside the
// 10-minute window.
func (h *ClaimHandler) Register(rg *gin.RouterGroup, userAuth, verifyLimit gin.HandlerFunc) {
	claims := rg.Group("/items/:id/claim", userAuth)
	{
		claims.POST("", h.IssueChallenge)
		claims.POST("/verify", verifyLimit, h.Verify)
	}
}

// IssueChallenge handles POST /items/:id/claim — emails a one-time code to
// the authenticated claimant.
func (h *ClaimHandler) IssueChallenge(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
		return
	}

	claimantID, claimantEmail := currentUser(c)
	if err := h.svc.IssueChallenge(c.Request.Context(), itemID, claimantID, claimantEmail); err != nil {
		h.writeError(c, err, "issue claim challenge")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "code_sent",
		"message": "A verification code was emailed to you. Submit it within 10 minutes.",
	})
}

// Verify handles POST /items/:id/claim/verify.
func (h *ClaimHandler) Verify(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required,len=6,numeric"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a 6-digit code is required"})
		return
	}

	claimantID, _ := currentUser(c)
	if err := h.svc.Verify(c.Request.Context(), itemID, claimantID, req.Code); err != nil {
		RecordClaimAttempt(outcomeLabel(err))
		h.writeError(c, err, "verify claim")
		return
	}

	RecordClaimAttempt("success")
	c.JSON(http.StatusOK, gin.H{
		"status":  "claimed",
		"message": "Claim verified. The item is now registered to you.",
	})
}

// writeError maps claim flow errors onto HTTP responses.
func (h *ClaimHandler) writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, service.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, service.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "item is not available for claiming"})
	case errors.Is(err, service.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active claim code; request one first"})
	case errors.Is(err, service.ErrChallengeExpired):
		c.JSON(http.StatusGone, gin.H{"error": "claim code expired; request a new one"})
	case errors.Is(err, service.ErrCodeMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "claim code does not match"})
	case errors.Is(err, service.ErrDeliveryFailed):
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not deliver the code, try again"})
	case errors.Is(err, repository.ErrUnavailable):
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable, try again"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// outcomeLabel condenses a verify error into a metrics label.
func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, service.ErrCodeMismatch):
		return "mismatch"
	case errors.Is(err, service.ErrChallengeExpired):
		return "expired"
	case errors.Is(err, service.ErrChallengeNotFound):
		return "not_found"
	case errors.Is(err, service.ErrAlreadyClaimed):
		return "already_claimed"
	default:
		return "error"
	}
}
