package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dlnapm/pmpr/internal/api/handlers"
)

func TestRestConfigHandler_GetPublicConfig_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConfigSvc := new(MockConfigService)
	handler := handlers.NewRestConfigHandler(mockConfigSvc)
	r := gin.New()
	r.GET("/v1/config", handler.GetPublicConfig)
	expectedConfig := map[string]interface{}{"APP_NAME": "TestApp", "SOME_PUBLIC_VALUE": true}
	mockConfigSvc.On("GetAllPublic", mock.Anything).Return(expectedConfig, nil)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/config", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Equal(t, expectedConfig, respBody)
	mockConfigSvc.AssertExpectations(t)
}

func TestRestConfigHandler_GetPublicConfig_ServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConfigSvc := new(MockConfigService)
	handler := handlers.NewRestConfigHandler(mockConfigSvc)
	r := gin.New()
	r.GET("/v1/config", handler.GetPublicConfig)
	mockConfigSvc.On("GetAllPublic", mock.Anything).Return(nil, assert.AnError)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/config", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var respBody map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Contains(t, respBody["error"], "Failed to retrieve configuration")
	mockConfigSvc.AssertExpectations(t)
}

func TestRestConfigHandler_SetConfigValue_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConfigSvc := new(MockConfigService)
	handler := handlers.NewRestConfigHandler(mockConfigSvc)
	r := gin.New()
	r.PUT("/v1/admin/config", handler.SetConfigValue)
	mockConfigSvc.On("SetConfigValue", mock.Anything, "RATE_LIMIT_SOFT_REFILL_RATE", float64(5), false).Return(nil)
	w := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"key":"RATE_LIMIT_SOFT_REFILL_RATE","value":5}`)
	req, _ := http.NewRequest("PUT", "/v1/admin/config", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	mockConfigSvc.AssertExpectations(t)
}

func TestRestConfigHandler_SetConfigValue_MissingKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConfigSvc := new(MockConfigService)
	handler := handlers.NewRestConfigHandler(mockConfigSvc)
	r := gin.New()
	r.PUT("/v1/admin/config", handler.SetConfigValue)
	w := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"value":5}`)
	req, _ := http.NewRequest("PUT", "/v1/admin/config", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockConfigSvc.AssertNotCalled(t, "SetConfigValue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRestConfigHandler_SetConfigValue_ServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConfigSvc := new(MockConfigService)
	handler := handlers.NewRestConfigHandler(mockConfigSvc)
	r := gin.New()
	r.PUT("/v1/admin/config", handler.SetConfigValue)
	mockConfigSvc.On("SetConfigValue", mock.Anything, "EXPORT_URL_TTL_HOURS", float64(48), true).Return(assert.AnError)
	w := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"key":"EXPORT_URL_TTL_HOURS","value":48,"public":true}`)
	req, _ := http.NewRequest("PUT", "/v1/admin/config", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockConfigSvc.AssertExpectations(t)
}
