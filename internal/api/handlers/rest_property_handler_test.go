package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/api/handlers"
	"dlnapm/pmpr/internal/models"
)

func TestRestPropertyHandler_CreateProperty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPropertySvc := new(MockPropertyService)
	mockShareSvc := new(MockShareService)
	handler := handlers.NewRestPropertyHandler(mockPropertySvc, mockShareSvc)

	userID := primitive.NewObjectID()
	r := gin.New()
	r.POST("/v1/property", asUser(userID), handler.CreateProperty)

	property := &models.Property{ID: primitive.NewObjectID(), OwnerID: userID, Nickname: "Elm St", RentAmount: 1000}
	mockPropertySvc.On("CreateProperty", mock.Anything, userID, "Elm St", "12 Elm St", 1000.0, []string{"Water"}).
		Return(property, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/property", jsonBody(t, gin.H{
		"nickname": "Elm St", "address": "12 Elm St", "rent_amount": 1000, "utility_categories": []string{"Water"},
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockPropertySvc.AssertExpectations(t)
}

func TestRestPropertyHandler_CreateProperty_RequiresRent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPropertySvc := new(MockPropertyService)
	handler := handlers.NewRestPropertyHandler(mockPropertySvc, new(MockShareService))

	r := gin.New()
	r.POST("/v1/property", asUser(primitive.NewObjectID()), handler.CreateProperty)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/property", jsonBody(t, gin.H{"nickname": "Elm St"}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockPropertySvc.AssertNotCalled(t, "CreateProperty")
}

func TestRestPropertyHandler_GetPropertyByID_SharedVisibility(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPropertySvc := new(MockPropertyService)
	mockShareSvc := new(MockShareService)
	handler := handlers.NewRestPropertyHandler(mockPropertySvc, mockShareSvc)

	viewerID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.GET("/v1/property/:id", asUser(viewerID), handler.GetPropertyByID)

	property := &models.Property{ID: propertyID, OwnerID: ownerID, Nickname: "Elm St"}
	mockPropertySvc.On("FindPropertyByID", mock.Anything, propertyID).Return(property, nil)
	mockShareSvc.On("HasVisibility", mock.Anything, viewerID, ownerID).Return(true, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/property/"+propertyID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockShareSvc.AssertExpectations(t)
}

func TestRestPropertyHandler_GetPropertyByID_NoVisibility(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPropertySvc := new(MockPropertyService)
	mockShareSvc := new(MockShareService)
	handler := handlers.NewRestPropertyHandler(mockPropertySvc, mockShareSvc)

	viewerID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.GET("/v1/property/:id", asUser(viewerID), handler.GetPropertyByID)

	property := &models.Property{ID: propertyID, OwnerID: ownerID}
	mockPropertySvc.On("FindPropertyByID", mock.Anything, propertyID).Return(property, nil)
	mockShareSvc.On("HasVisibility", mock.Anything, viewerID, ownerID).Return(false, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/property/"+propertyID.Hex(), nil)
	r.ServeHTTP(w, req)

	// Hidden records 404 rather than 403 so strangers learn nothing.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestPropertyHandler_GetHealthScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPropertySvc := new(MockPropertyService)
	mockShareSvc := new(MockShareService)
	handler := handlers.NewRestPropertyHandler(mockPropertySvc, mockShareSvc)

	userID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.GET("/v1/property/:id/health", asUser(userID), handler.GetHealthScore)

	property := &models.Property{ID: propertyID, OwnerID: userID}
	mockPropertySvc.On("FindPropertyByID", mock.Anything, propertyID).Return(property, nil)
	mockShareSvc.On("HasVisibility", mock.Anything, userID, userID).Return(true, nil)
	mockPropertySvc.On("HealthScore", mock.Anything, propertyID).Return(82, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/property/"+propertyID.Hex()+"/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, float64(82), respBody["health_score"])
	mockPropertySvc.AssertExpectations(t)
}

func TestRestPropertyHandler_GetPropertyByID_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockPropertySvc := new(MockPropertyService)
	handler := handlers.NewRestPropertyHandler(mockPropertySvc, new(MockShareService))

	propertyID := primitive.NewObjectID()
	r := gin.New()
	r.GET("/v1/property/:id", asUser(primitive.NewObjectID()), handler.GetPropertyByID)

	mockPropertySvc.On("FindPropertyByID", mock.Anything, propertyID).Return(nil, mongo.ErrNoDocuments)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/property/"+propertyID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
