package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/api/handlers"
	"dlnapm/pmpr/internal/api/middleware"
	"dlnapm/pmpr/internal/captcha"
	"dlnapm/pmpr/internal/config"
	"dlnapm/pmpr/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient, configSvc services.IConfigService) *gin.Engine {
	// Initialize services needed by API handlers HERE
	userService := services.NewUserService(db)
	propertyService := services.NewPropertyService(db, cfg)
	paymentService := services.NewPaymentService(db, cfg, propertyService)
	repairService := services.NewRepairService(db)
	tenantService := services.NewTenantService(db)
	contractorService := services.NewContractorService(db)
	shareService := services.NewShareService(db)
	exportService := services.NewExportService(db)

	// Initialize Captcha Verifier
	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	restConfigHandler := handlers.NewRestConfigHandler(configSvc)
	restUserHandler := handlers.NewRestUserHandler(cfg, userService)
	restPropertyHandler := handlers.NewRestPropertyHandler(propertyService, shareService)
	restPaymentHandler := handlers.NewRestPaymentHandler(paymentService, propertyService, shareService)
	restRepairHandler := handlers.NewRestRepairHandler(repairService, propertyService, shareService)
	restTenantHandler := handlers.NewRestTenantHandler(tenantService, propertyService, shareService)
	restContractorHandler := handlers.NewRestContractorHandler(contractorService)
	restShareHandler := handlers.NewRestShareHandler(shareService, userService, taskClient)
	restExportHandler := handlers.NewRestExportHandler(exportService, paymentService, propertyService, shareService, taskClient)

	v1 := r.Group("/v1")
	{
		// Public Routes (Rate limiting already applied globally)
		v1.GET("/config", restConfigHandler.GetPublicConfig)
		v1.POST("/auth/register", restUserHandler.Register)
		v1.POST("/auth/login", restUserHandler.Login)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated Routes (already have rate limiting from global middleware)
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			// Account
			authRequired.GET("/me", restUserHandler.GetMe)
			authRequired.PUT("/me/notifications", restUserHandler.UpdateNotificationPreferences)
			authRequired.DELETE("/me", restUserHandler.DeleteMe)

			// Properties
			authRequired.POST("/property", restPropertyHandler.CreateProperty)
			authRequired.GET("/property", restPropertyHandler.ListProperties)
			authRequired.GET("/property/:id", restPropertyHandler.GetPropertyByID)
			authRequired.PUT("/property/:id", restPropertyHandler.UpdateProperty)
			authRequired.POST("/property/:id/archive", restPropertyHandler.ArchiveProperty)
			authRequired.DELETE("/property/:id", restPropertyHandler.DeleteProperty)
			authRequired.GET("/property/:id/health", restPropertyHandler.GetHealthScore)

			// Monthly payment records
			authRequired.POST("/property/:id/payment", restPaymentHandler.CreatePayment)
			authRequired.GET("/property/:id/payment", restPaymentHandler.ListPayments)
			authRequired.PUT("/payment/:id", restPaymentHandler.UpdatePayment)
			authRequired.DELETE("/payment/:id", restPaymentHandler.DeletePayment)

			// Repairs
			authRequired.POST("/property/:id/repair", restRepairHandler.CreateRepair)
			authRequired.GET("/property/:id/repair", restRepairHandler.ListRepairs)
			authRequired.PATCH("/repair/:id/status", restRepairHandler.UpdateRepairStatus)
			authRequired.PUT("/repair/:id", restRepairHandler.UpdateRepair)
			authRequired.DELETE("/repair/:id", restRepairHandler.DeleteRepair)

			// Tenants
			authRequired.POST("/property/:id/tenant", restTenantHandler.CreateTenant)
			authRequired.GET("/property/:id/tenant", restTenantHandler.ListTenants)
			authRequired.PUT("/tenant/:id", restTenantHandler.UpdateTenant)
			authRequired.POST("/tenant/:id/moveout", restTenantHandler.MoveOutTenant)
			authRequired.DELETE("/tenant/:id", restTenantHandler.DeleteTenant)

			// Contractors
			authRequired.POST("/contractor", restContractorHandler.CreateContractor)
			authRequired.GET("/contractor", restContractorHandler.ListContractors)
			authRequired.PUT("/contractor/:id", restContractorHandler.UpdateContractor)
			authRequired.DELETE("/contractor/:id", restContractorHandler.DeleteContractor)

			// Read-only sharing
			authRequired.POST("/share", restShareHandler.CreateShare)
			authRequired.POST("/share/accept", restShareHandler.AcceptShare)
			authRequired.GET("/share", restShareHandler.ListShares)
			authRequired.GET("/share/with-me", restShareHandler.ListSharedWithMe)
			authRequired.DELETE("/share/:id", restShareHandler.RevokeShare)

			// Exports
			authRequired.GET("/property/:id/export/csv", restExportHandler.DownloadCSV)
			authRequired.POST("/export", restExportHandler.CreateExport)
			authRequired.GET("/export/:id", restExportHandler.GetExport)
		}

		// Admin Routes (already have rate limiting from global middleware)
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.PUT("/config", restConfigHandler.SetConfigValue)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// Requires the Redis client for the getTestEmail endpoint.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"` // Use RawMessage
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["action_type", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [actionType, email]"})
				return
			}
			actionType := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, actionType)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second) // Short timeout for service call
			defer cancel()
			for i := 0; i < 10; i++ { // Poll up to ~2 seconds
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey) // Delete after fetching
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				// If redis.Nil, wait and retry
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			// Unmarshal the found JSON data
			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			// Return the full email data object
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
