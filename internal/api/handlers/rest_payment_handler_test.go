package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dlnapm/pmpr/internal/api/handlers"
	"dlnapm/pmpr/internal/models"
	"dlnapm/pmpr/internal/services"
)

func TestRestPaymentHandler_CreatePayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPaymentSvc := new(MockPaymentService)
	handler := handlers.NewRestPaymentHandler(mockPaymentSvc, new(MockPropertyService), new(MockShareService))

	userID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/v1/property/:id/payment", asUser(userID), handler.CreatePayment)

	record := &models.PaymentRecord{ID: primitive.NewObjectID(), PropertyID: propertyID, Year: 2024, Month: 3, RentBill: 1000, RentPaid: 1000}
	mockPaymentSvc.On("CreatePayment", mock.Anything, userID, propertyID, 2024, 3, mock.Anything).Return(record, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/property/"+propertyID.Hex()+"/payment", jsonBody(t, gin.H{
		"year": 2024, "month": 3, "rent_paid": 1000,
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockPaymentSvc.AssertExpectations(t)
}

func TestRestPaymentHandler_CreatePayment_DuplicateMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPaymentSvc := new(MockPaymentService)
	handler := handlers.NewRestPaymentHandler(mockPaymentSvc, new(MockPropertyService), new(MockShareService))

	userID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/v1/property/:id/payment", asUser(userID), handler.CreatePayment)

	mockPaymentSvc.On("CreatePayment", mock.Anything, userID, propertyID, 2024, 3, mock.Anything).
		Return(nil, services.ErrDuplicateMonth)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/property/"+propertyID.Hex()+"/payment", jsonBody(t, gin.H{
		"year": 2024, "month": 3,
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRestPaymentHandler_CreatePayment_InvalidMonth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPaymentSvc := new(MockPaymentService)
	handler := handlers.NewRestPaymentHandler(mockPaymentSvc, new(MockPropertyService), new(MockShareService))

	r := gin.New()
	r.POST("/v1/property/:id/payment", asUser(primitive.NewObjectID()), handler.CreatePayment)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/property/"+primitive.NewObjectID().Hex()+"/payment", jsonBody(t, gin.H{
		"year": 2024, "month": 13,
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockPaymentSvc.AssertNotCalled(t, "CreatePayment")
}

func TestRestPaymentHandler_DeletePayment_ViewerGetsForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPaymentSvc := new(MockPaymentService)
	mockShareSvc := new(MockShareService)
	handler := handlers.NewRestPaymentHandler(mockPaymentSvc, new(MockPropertyService), mockShareSvc)

	userID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	paymentID := primitive.NewObjectID()
	r := gin.New()
	r.DELETE("/v1/payment/:id", asUser(userID), handler.DeletePayment)

	mockPaymentSvc.On("DeletePayment", mock.Anything, paymentID, userID).Return(services.ErrNotOwner)
	mockPaymentSvc.On("FindPaymentByID", mock.Anything, paymentID).
		Return(&models.PaymentRecord{ID: paymentID, OwnerID: ownerID}, nil)
	mockShareSvc.On("HasVisibility", mock.Anything, userID, ownerID).Return(true, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/payment/"+paymentID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRestPaymentHandler_DeletePayment_StrangerGetsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPaymentSvc := new(MockPaymentService)
	mockShareSvc := new(MockShareService)
	handler := handlers.NewRestPaymentHandler(mockPaymentSvc, new(MockPropertyService), mockShareSvc)

	userID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	paymentID := primitive.NewObjectID()
	r := gin.New()
	r.DELETE("/v1/payment/:id", asUser(userID), handler.DeletePayment)

	// A stranger probing a foreign payment ID must get the same 404 a
	// missing record would produce.
	mockPaymentSvc.On("DeletePayment", mock.Anything, paymentID, userID).Return(services.ErrNotOwner)
	mockPaymentSvc.On("FindPaymentByID", mock.Anything, paymentID).
		Return(&models.PaymentRecord{ID: paymentID, OwnerID: ownerID}, nil)
	mockShareSvc.On("HasVisibility", mock.Anything, userID, ownerID).Return(false, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/payment/"+paymentID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestPaymentHandler_CreatePayment_StrangerGetsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPaymentSvc := new(MockPaymentService)
	mockPropertySvc := new(MockPropertyService)
	mockShareSvc := new(MockShareService)
	handler := handlers.NewRestPaymentHandler(mockPaymentSvc, mockPropertySvc, mockShareSvc)

	userID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/v1/property/:id/payment", asUser(userID), handler.CreatePayment)

	mockPaymentSvc.On("CreatePayment", mock.Anything, userID, propertyID, 2024, 3, mock.Anything).
		Return(nil, services.ErrNotOwner)
	mockPropertySvc.On("FindPropertyByID", mock.Anything, propertyID).
		Return(&models.Property{ID: propertyID, OwnerID: ownerID}, nil)
	mockShareSvc.On("HasVisibility", mock.Anything, userID, ownerID).Return(false, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/property/"+propertyID.Hex()+"/payment", jsonBody(t, gin.H{
		"year": 2024, "month": 3,
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
