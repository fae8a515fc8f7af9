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

// RestPaymentHandler handles REST requests for the monthly payment ledger.
type RestPaymentHandler struct {
	paymentService  services.IPaymentService
	propertyService services.IPropertyService
	shareService    services.IShareService
}

// NewRestPaymentHandler creates a new RestPaymentHandler.
func NewRestPaymentHandler(paymentService services.IPaymentService, propertyService services.IPropertyService, shareService services.IShareService) *RestPaymentHandler {
	return &RestPaymentHandler{
		paymentService:  paymentService,
		propertyService: propertyService,
		shareService:    shareService,
	}
}

type paymentRequest struct {
	Year      int                  `json:"year" binding:"required"`
	Month     int                  `json:"month" binding:"required,min=1,max=12"`
	RentBill  *float64             `json:"rent_bill"`
	RentPaid  float64              `json:"rent_paid"`
	Utilities []models.UtilityLine `json:"utilities"`
	Note      string               `json:"note"`
}

type paymentUpdateRequest struct {
	RentBill  *float64             `json:"rent_bill"`
	RentPaid  float64              `json:"rent_paid"`
	Utilities []models.UtilityLine `json:"utilities"`
	Note      string               `json:"note"`
}

// CreatePayment handles POST /v1/property/:id/payment
func (h *RestPaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: year and month (1-12) are required"})
		return
	}

	record, err := h.paymentService.CreatePayment(c.Request.Context(), userID, propertyID, req.Year, req.Month, services.PaymentInput{
		RentBill:  req.RentBill,
		RentPaid:  req.RentPaid,
		Utilities: req.Utilities,
		Note:      req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		case errors.Is(err, services.ErrNotOwner):
			h.respondPropertyOwnershipError(c, userID, propertyID, "Only the owner can record payments", "Property not found")
		case errors.Is(err, services.ErrDuplicateMonth):
			c.JSON(http.StatusConflict, gin.H{"error": "A payment record already exists for this month"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		}
		return
	}
	c.JSON(http.StatusCreated, record)
}

// respondPropertyOwnershipError resolves the property's owner so the
// shared 403-or-404 policy can be applied to a rejected mutation.
func (h *RestPaymentHandler) respondPropertyOwnershipError(c *gin.Context, userID, propertyID primitive.ObjectID, forbiddenMsg, notFoundMsg string) {
	property, err := h.propertyService.FindPropertyByID(c.Request.Context(), propertyID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
		return
	}
	respondOwnershipError(c, h.shareService, userID, property.OwnerID, forbiddenMsg, notFoundMsg)
}

// respondPaymentOwnershipError is the same policy keyed off a payment record.
func (h *RestPaymentHandler) respondPaymentOwnershipError(c *gin.Context, userID, paymentID primitive.ObjectID, forbiddenMsg string) {
	record, err := h.paymentService.FindPaymentByID(c.Request.Context(), paymentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment record not found"})
		return
	}
	respondOwnershipError(c, h.shareService, userID, record.OwnerID, forbiddenMsg, "Payment record not found")
}

// ListPayments handles GET /v1/property/:id/payment
func (h *RestPaymentHandler) ListPayments(c *gin.Context) {
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

	records, err := h.paymentService.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

// UpdatePayment handles PUT /v1/payment/:id
func (h *RestPaymentHandler) UpdatePayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	paymentID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req paymentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update payload"})
		return
	}

	record, err := h.paymentService.UpdatePayment(c.Request.Context(), paymentID, userID, services.PaymentInput{
		RentBill:  req.RentBill,
		RentPaid:  req.RentPaid,
		Utilities: req.Utilities,
		Note:      req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment record not found"})
		case errors.Is(err, services.ErrNotOwner):
			h.respondPaymentOwnershipError(c, userID, paymentID, "Only the owner can edit payments")
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment"})
		}
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeletePayment handles DELETE /v1/payment/:id
func (h *RestPaymentHandler) DeletePayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	paymentID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.paymentService.DeletePayment(c.Request.Context(), paymentID, userID); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment record not found"})
		case errors.Is(err, services.ErrNotOwner):
			h.respondPaymentOwnershipError(c, userID, paymentID, "Only the owner can delete payments")
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete payment"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
