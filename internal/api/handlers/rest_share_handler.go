package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/services"
	"dlnapm/pmpr/internal/tasks"
)

// RestShareHandler handles REST requests for read-only sharing.
type RestShareHandler struct {
	shareService services.IShareService
	userService  services.IUserService
	taskClient   IAsynqClient
}

// NewRestShareHandler creates a new RestShareHandler.
func NewRestShareHandler(shareService services.IShareService, userService services.IUserService, taskClient IAsynqClient) *RestShareHandler {
	return &RestShareHandler{
		shareService: shareService,
		userService:  userService,
		taskClient:   taskClient,
	}
}

type createShareRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type acceptShareRequest struct {
	Token string `json:"token" binding:"required"`
}

// CreateShare handles POST /v1/share
func (h *RestShareHandler) CreateShare(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: email is required"})
		return
	}

	ctx := c.Request.Context()
	grant, err := h.shareService.CreateGrant(ctx, userID, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrGrantExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "This email already has access"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create share"})
		}
		return
	}

	owner, err := h.userService.FindByID(ctx, userID)
	ownerName := "A landlord"
	if err == nil {
		ownerName = owner.Name
	}

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         grant.GranteeEmail,
		TemplateID: "share_invitation",
		Data: map[string]interface{}{
			"owner_name": ownerName,
			"token":      grant.Token,
		},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)
	if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
		// The grant stands either way; the owner can resend the token.
		log.Printf("ERROR enqueuing share invitation email for grant %s: %v", grant.ID.Hex(), enqueueErr)
	}

	c.JSON(http.StatusCreated, grant)
}

// AcceptShare handles POST /v1/share/accept
func (h *RestShareHandler) AcceptShare(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req acceptShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: token is required"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.userService.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept share"})
		}
		return
	}

	grant, err := h.shareService.AcceptGrant(ctx, req.Token, user)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Share token not found or revoked"})
		case errors.Is(err, services.ErrGrantMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "This invitation was issued to a different email"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept share"})
		}
		return
	}
	c.JSON(http.StatusOK, grant)
}

// ListShares handles GET /v1/share
func (h *RestShareHandler) ListShares(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	grants, err := h.shareService.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list shares"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": grants})
}

// ListSharedWithMe handles GET /v1/share/with-me
func (h *RestShareHandler) ListSharedWithMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	grants, err := h.shareService.ListForGrantee(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list shares"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": grants})
}

// RevokeShare handles DELETE /v1/share/:id
func (h *RestShareHandler) RevokeShare(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	grantID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.shareService.RevokeGrant(c.Request.Context(), grantID, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Share not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke share"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
