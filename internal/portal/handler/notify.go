package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusfound/campusfound/internal/notify"
)

// NotifyHandler manages webhook subscriptions.
type NotifyHandler struct {
	svc    *notify.Service
	logger *zap.Logger
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(svc *notify.Service, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{svc: svc, logger: logger}
}

// Register mounts the subscription routes.
func (h *NotifyHandler) Register(rg *gin.RouterGroup, userAuth gin.HandlerFunc) {
	subs := rg.Group("/notifications/subscriptions", userAuth)
	{
		subs.POST("", h.Subscribe)
		subs.GET("", h.List)
		subs.DELETE("/:id", h.Unsubscribe)
	}
}

// Subscribe handles POST /notifications/subscriptions. The HMAC secret is
// returned once in this response and never again.
func (h *NotifyHandler) Subscribe(c *gin.Context) {
	var req notify.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID, _ := currentUser(c)
	sub, err := h.svc.Subscribe(c.Request.Context(), ownerID, &req)
	if err != nil {
		h.logger.Error("create subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     sub.ID,
		"url":    sub.URL,
		"events": sub.Events,
		"secret": sub.Secret,
	})
}

// List handles GET /notifications/subscriptions.
func (h *NotifyHandler) List(c *gin.Context) {
	ownerID, _ := currentUser(c)
	subs, err := h.svc.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("list subscriptions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list subscriptions"})
		return
	}
	if subs == nil {
		subs = []*notify.Subscription{}
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// Unsubscribe handles DELETE /notifications/subscriptions/:id.
func (h *NotifyHandler) Unsubscribe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}

	ownerID, _ := currentUser(c)
	if err := h.svc.Unsubscribe(c.Request.Context(), ownerID, id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logger.Error("delete subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
