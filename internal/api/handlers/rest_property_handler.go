package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/services"
)

// RestPropertyHandler handles REST requests for properties.
type RestPropertyHandler struct {
	propertyService services.IPropertyService
	shareService    services.IShareService
}

// NewRestPropertyHandler creates a new RestPropertyHandler.
func NewRestPropertyHandler(propertyService services.IPropertyService, shareService services.IShareService) *RestPropertyHandler {
	return &RestPropertyHandler{propertyService: propertyService, shareService: shareService}
}

type createPropertyRequest struct {
	Nickname          string   `json:"nickname" binding:"required"`
	Address           string   `json:"address"`
	RentAmount        float64  `json:"rent_amount" binding:"required,gt=0"`
	UtilityCategories []string `json:"utility_categories"`
}

// CreateProperty handles POST /v1/property
func (h *RestPropertyHandler) CreateProperty(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: nickname and a positive rent_amount are required"})
		return
	}

	property, err := h.propertyService.CreateProperty(c.Request.Context(), userID, req.Nickname, req.Address, req.RentAmount, req.UtilityCategories)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create property"})
		return
	}
	c.JSON(http.StatusCreated, property)
}

// GetPropertyByID handles GET /v1/property/:id
func (h *RestPropertyHandler) GetPropertyByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	property, err := h.propertyService.FindPropertyByID(c.Request.Context(), propertyID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve property"})
		}
		return
	}

	visible, err := h.shareService.HasVisibility(c.Request.Context(), userID, property.OwnerID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !visible {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}
	c.JSON(http.StatusOK, property)
}

// ListProperties handles GET /v1/property
func (h *RestPropertyHandler) ListProperties(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	properties, err := h.propertyService.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list properties"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": properties})
}

// UpdateProperty handles PUT /v1/property/:id
func (h *RestPropertyHandler) UpdateProperty(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload"})
		return
	}

	property, err := h.propertyService.UpdateProperty(c.Request.Context(), propertyID, userID, updates)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update property"})
		}
		return
	}
	c.JSON(http.StatusOK, property)
}

// ArchiveProperty handles POST /v1/property/:id/archive
func (h *RestPropertyHandler) ArchiveProperty(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.propertyService.ArchiveProperty(c.Request.Context(), propertyID, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive property"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteProperty handles DELETE /v1/property/:id
func (h *RestPropertyHandler) DeleteProperty(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.propertyService.DeleteProperty(c.Request.Context(), propertyID, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete property"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetHealthScore handles GET /v1/property/:id/health
func (h *RestPropertyHandler) GetHealthScore(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	property, err := h.propertyService.FindPropertyByID(c.Request.Context(), propertyID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve property"})
		}
		return
	}

	visible, err := h.shareService.HasVisibility(c.Request.Context(), userID, property.OwnerID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !visible {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	score, err := h.propertyService.HealthScore(c.Request.Context(), propertyID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute health score"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"property_id": propertyID.Hex(), "health_score": score})
}
