package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/services"
)

// RestTenantHandler handles REST requests for tenants.
type RestTenantHandler struct {
	tenantService   services.ITenantService
	propertyService services.IPropertyService
	shareService    services.IShareService
}

// NewRestTenantHandler creates a new RestTenantHandler.
func NewRestTenantHandler(tenantService services.ITenantService, propertyService services.IPropertyService, shareService services.IShareService) *RestTenantHandler {
	return &RestTenantHandler{
		tenantService:   tenantService,
		propertyService: propertyService,
		shareService:    shareService,
	}
}

type createTenantRequest struct {
	Name      string    `json:"name" binding:"required"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	MovedInAt time.Time `json:"moved_in_at" binding:"required"`
}

type moveOutRequest struct {
	MovedOutAt time.Time `json:"moved_out_at" binding:"required"`
}

// CreateTenant handles POST /v1/property/:id/tenant
func (h *RestTenantHandler) CreateTenant(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: name and moved_in_at are required"})
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
	if property.OwnerID != userID {
		respondOwnershipError(c, h.shareService, userID, property.OwnerID, "Only the owner can add tenants", "Property not found")
		return
	}

	tenant, err := h.tenantService.CreateTenant(c.Request.Context(), userID, propertyID, req.Name, req.Email, req.Phone, req.MovedInAt)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tenant"})
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

// ListTenants handles GET /v1/property/:id/tenant
func (h *RestTenantHandler) ListTenants(c *gin.Context) {
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

	tenants, err := h.tenantService.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tenants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tenants})
}

// UpdateTenant handles PUT /v1/tenant/:id
func (h *RestTenantHandler) UpdateTenant(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	tenantID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload"})
		return
	}

	tenant, err := h.tenantService.UpdateTenant(c.Request.Context(), tenantID, userID, updates)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tenant"})
		}
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// MoveOutTenant handles POST /v1/tenant/:id/moveout
func (h *RestTenantHandler) MoveOutTenant(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	tenantID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req moveOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: moved_out_at is required"})
		return
	}

	if err := h.tenantService.MoveOut(c.Request.Context(), tenantID, userID, req.MovedOutAt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to move out tenant"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteTenant handles DELETE /v1/tenant/:id
func (h *RestTenantHandler) DeleteTenant(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	tenantID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.tenantService.DeleteTenant(c.Request.Context(), tenantID, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tenant"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
