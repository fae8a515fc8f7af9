package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/models"
	"dlnapm/pmpr/internal/services"
)

// RestRepairHandler handles REST requests for repair requests.
type RestRepairHandler struct {
	repairService   services.IRepairService
	propertyService services.IPropertyService
	shareService    services.IShareService
}

// NewRestRepairHandler creates a new RestRepairHandler.
func NewRestRepairHandler(repairService services.IRepairService, propertyService services.IPropertyService, shareService services.IShareService) *RestRepairHandler {
	return &RestRepairHandler{
		repairService:   repairService,
		propertyService: propertyService,
		shareService:    shareService,
	}
}

type createRepairRequest struct {
	Description  string  `json:"description" binding:"required"`
	Cost         float64 `json:"cost"`
	ContractorID string  `json:"contractor_id"`
}

type updateRepairRequest struct {
	Description  *string  `json:"description"`
	Cost         *float64 `json:"cost"`
	ContractorID string   `json:"contractor_id"`
}

type repairStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateRepair handles POST /v1/property/:id/repair
func (h *RestRepairHandler) CreateRepair(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req createRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: description is required"})
		return
	}

	var contractorID *primitive.ObjectID
	if req.ContractorID != "" {
		id, err := primitive.ObjectIDFromHex(req.ContractorID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contractor_id format"})
			return
		}
		contractorID = &id
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
	if property.OwnerID != userID {
		respondOwnershipError(c, h.shareService, userID, property.OwnerID, "Only the owner can file repairs", "Property not found")
		return
	}

	repair, err := h.repairService.CreateRepair(c.Request.Context(), userID, propertyID, req.Description, req.Cost, contractorID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create repair"})
		return
	}
	c.JSON(http.StatusCreated, repair)
}

// ListRepairs handles GET /v1/property/:id/repair
func (h *RestRepairHandler) ListRepairs(c *gin.Context) {
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

	repairs, err := h.repairService.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list repairs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": repairs})
}

// UpdateRepairStatus handles PATCH /v1/repair/:id/status
func (h *RestRepairHandler) UpdateRepairStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	repairID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req repairStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: status is required"})
		return
	}

	repair, err := h.repairService.UpdateStatus(c.Request.Context(), repairID, userID, models.RepairStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown repair status"})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Repair not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update repair status"})
		}
		return
	}
	c.JSON(http.StatusOK, repair)
}

// UpdateRepair handles PUT /v1/repair/:id
func (h *RestRepairHandler) UpdateRepair(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	repairID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req updateRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload"})
		return
	}

	var contractorID *primitive.ObjectID
	if req.ContractorID != "" {
		id, err := primitive.ObjectIDFromHex(req.ContractorID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contractor_id format"})
			return
		}
		contractorID = &id
	}

	repair, err := h.repairService.UpdateRepair(c.Request.Context(), repairID, userID, req.Description, req.Cost, contractorID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Repair not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update repair"})
		}
		return
	}
	c.JSON(http.StatusOK, repair)
}

// DeleteRepair handles DELETE /v1/repair/:id
func (h *RestRepairHandler) DeleteRepair(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	repairID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.repairService.DeleteRepair(c.Request.Context(), repairID, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Repair not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete repair"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
