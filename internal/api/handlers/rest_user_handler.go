package handlers

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/auth"
	"dlnapm/pmpr/internal/config"
	"dlnapm/pmpr/internal/models"
	"dlnapm/pmpr/internal/services"
)

// RestUserHandler handles REST requests related to accounts.
type RestUserHandler struct {
	cfg         *config.Config
	userService services.IUserService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(cfg *config.Config, userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{cfg: cfg, userService: userService}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// accountResponse is what authenticated account endpoints return. The
// password hash never leaves the service layer boundary thanks to bson-only
// tags, but a dedicated response type keeps the contract explicit.
type accountResponse struct {
	ID                      string                          `json:"id"`
	Name                    string                          `json:"name"`
	Email                   string                          `json:"email"`
	DateJoined              string                          `json:"date_joined"`
	NotificationPreferences *models.NotificationPreferences `json:"notification_preferences,omitempty"`
}

func toAccountResponse(user *models.User) accountResponse {
	return accountResponse{
		ID:                      user.ID.Hex(),
		Name:                    user.Name,
		Email:                   user.Email,
		DateJoined:              user.CreatedAt.Format("2006-01-02"),
		NotificationPreferences: user.NotificationPreferences,
	}
}

// Register handles POST /v1/auth/register
func (h *RestUserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: name, email and password are required"})
		return
	}

	if matched, err := regexp.MatchString(h.cfg.PasswordRegexp, req.Password); err != nil || !matched {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password does not meet the minimum requirements"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		}
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": toAccountResponse(user)})
}

// Login handles POST /v1/auth/login
func (h *RestUserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: email and password are required"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		}
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": toAccountResponse(user)})
}

// GetMe handles GET /v1/me
func (h *RestUserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve account"})
		}
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(user))
}

// UpdateNotificationPreferences handles PUT /v1/me/notifications
func (h *RestUserHandler) UpdateNotificationPreferences(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var prefs models.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid preferences payload"})
		return
	}

	if err := h.userService.UpdateNotificationPreferences(c.Request.Context(), userID, prefs); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMe handles DELETE /v1/me
func (h *RestUserHandler) DeleteMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
