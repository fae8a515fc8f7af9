package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/services"
)

// RestContractorHandler handles REST requests for the contractor directory.
type RestContractorHandler struct {
	contractorService services.IContractorService
}

// NewRestContractorHandler creates a new RestContractorHandler.
func NewRestContractorHandler(contractorService services.IContractorService) *RestContractorHandler {
	return &RestContractorHandler{contractorService: contractorService}
}

type contractorRequest struct {
	Name  string `json:"name" binding:"required"`
	Trade string `json:"trade"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

// CreateContractor handles POST /v1/contractor
func (h *RestContractorHandler) CreateContractor(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req contractorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: name is required"})
		return
	}

	contractor, err := h.contractorService.CreateContractor(c.Request.Context(), userID, req.Name, req.Trade, req.Phone, req.Email, req.Notes)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contractor"})
		return
	}
	c.JSON(http.StatusCreated, contractor)
}

// ListContractors handles GET /v1/contractor
func (h *RestContractorHandler) ListContractors(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contractors, err := h.contractorService.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contractors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contractors})
}

// UpdateContractor handles PUT /v1/contractor/:id
func (h *RestContractorHandler) UpdateContractor(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	contractorID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload"})
		return
	}

	contractor, err := h.contractorService.UpdateContractor(c.Request.Context(), contractorID, userID, updates)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contractor not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contractor"})
		}
		return
	}
	c.JSON(http.StatusOK, contractor)
}

// DeleteContractor handles DELETE /v1/contractor/:id
func (h *RestContractorHandler) DeleteContractor(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	contractorID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.contractorService.DeleteContractor(c.Request.Context(), contractorID, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contractor not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contractor"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
