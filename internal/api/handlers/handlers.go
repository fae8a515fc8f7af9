package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dlnapm/pmpr/internal/services"
)

// IAsynqClient defines the interface for the Asynq client methods used by
// handlers. This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ContextKeyUserID is the Gin context key under which the auth middleware
// stores the authenticated user's hex ID.
const ContextKeyUserID = "userID"

// currentUserID extracts the authenticated user's ID set by the auth
// middleware. Aborts with 401 when absent or malformed.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	hex := c.GetString(ContextKeyUserID)
	userID, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return primitive.NilObjectID, false
	}
	return userID, true
}

// objectIDParam parses a path parameter as an ObjectID hex string. Responds
// with 400 when invalid.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondOwnershipError answers a rejected mutation without leaking record
// existence. A viewer with read visibility gets a 403; a stranger gets the
// same 404 a missing record would produce.
func respondOwnershipError(c *gin.Context, shareService services.IShareService, viewerID, ownerID primitive.ObjectID, forbiddenMsg, notFoundMsg string) {
	visible, err := shareService.HasVisibility(c.Request.Context(), viewerID, ownerID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if visible {
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenMsg})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
}
