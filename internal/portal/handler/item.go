package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusfound/campusfound/internal/portal/model"
	"github.com/campusfound/campusfound/internal/portal/repository"
	"github.com/campusfound/campusfound/internal/portal/service"
)

// maxPhotoBytes caps uploaded photo size (8 MB).
const maxPhotoBytes = 8 << 20

// ItemHandler handles HTTP requests for postings and match search.
type ItemHandler struct {
	svc    *service.ItemService
	logger *zap.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(svc *service.ItemService, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{svc: svc, logger: logger}
}

// Register mounts the item routes. userAuth guards the reporting and match
// routes; adminAuth guards moderation.
func (h *ItemHandler) Register(rg *gin.RouterGroup, userAuth, adminAuth gin.HandlerFunc) {
	items := rg.Group("/items")
	{
		items.GET("", h.List)
		items.GET("/:id", h.Get)
		items.POST("", userAuth, h.Report)
		items.POST("/:id/photo", userAuth, h.UploadPhoto)
		items.GET("/:id/matches", userAuth, h.Matches)
	}

	admin := rg.Group("/admin/items", userAuth, adminAuth)
	{
		admin.GET("", h.ModerationQueue)
		admin.POST("/:id/approve", h.Approve)
		admin.POST("/:id/reject", h.Reject)
	}
}

// Report handles POST /items.
func (h *ItemHandler) Report(c *gin.Context) {
	var req model.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ReporterID, req.ReporterEmail = currentUser(c)

	item, err := h.svc.Report(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err, "report item")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Get handles GET /items/:id.
func (h *ItemHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
		return
	}

	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "get item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// List handles GET /items — the public listing; only approved postings.
func (h *ItemHandler) List(c *gin.Context) {
	f := model.ListFilter{
		Type:         model.ItemType(c.Query("type")),
		Status:       model.ItemStatus(c.Query("status")),
		ApprovedOnly: true,
		Limit:        intQuery(c, "limit", 50),
		Offset:       intQuery(c, "offset", 0),
	}

	items, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err, "list items")
		return
	}
	if items == nil {
		items = []*model.Item{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// UploadPhoto handles POST /items/:id/photo. The body is the raw image.
func (h *ItemHandler) UploadPhoto(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
		return
	}

	if c.Request.ContentLength <= 0 || c.Request.ContentLength > maxPhotoBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo body required, at most 8 MB"})
		return
	}

	contentType := c.ContentType()
	labels, err := h.svc.AttachPhoto(c.Request.Context(), id, c.Request.Body, c.Request.ContentLength, contentType)
	if err != nil {
		h.writeError(c, err, "upload photo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_labels": labels})
}

// Matches handles GET /items/:id/matches — the interactive search path.
func (h *ItemHandler) Matches(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
		return
	}

	matches, err := h.svc.Matches(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "find matches")
		return
	}
	RecordMatchSearch()

	if matches == nil {
		c.JSON(http.StatusOK, gin.H{"matches": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// ModerationQueue handles GET /admin/items — unapproved postings.
func (h *ItemHandler) ModerationQueue(c *gin.Context) {
	f := model.ListFilter{
		Status: model.ItemStatusPending,
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}

	items, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err, "moderation queue")
		return
	}
	if items == nil {
		items = []*model.Item{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Approve handles POST /admin/items/:id/approve.
func (h *ItemHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
		return
	}

	if err := h.svc.Approve(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "approve item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

// Reject handles POST /admin/items/:id/reject.
func (h *ItemHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
		return
	}

	if err := h.svc.Reject(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "reject item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// writeError maps service errors onto HTTP responses.
func (h *ItemHandler) writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, service.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, repository.ErrUnavailable):
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable, try again"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
