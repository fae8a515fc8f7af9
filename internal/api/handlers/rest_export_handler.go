package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/models"
	"dlnapm/pmpr/internal/services"
	"dlnapm/pmpr/internal/tasks"
)

// RestExportHandler handles ledger exports: synchronous CSV downloads and
// asynchronous spreadsheet jobs processed by the background worker.
type RestExportHandler struct {
	exportService   services.IExportService
	paymentService  services.IPaymentService
	propertyService services.IPropertyService
	shareService    services.IShareService
	taskClient      IAsynqClient
}

// NewRestExportHandler creates a new RestExportHandler.
func NewRestExportHandler(
	exportService services.IExportService,
	paymentService services.IPaymentService,
	propertyService services.IPropertyService,
	shareService services.IShareService,
	taskClient IAsynqClient,
) *RestExportHandler {
	return &RestExportHandler{
		exportService:   exportService,
		paymentService:  paymentService,
		propertyService: propertyService,
		shareService:    shareService,
		taskClient:      taskClient,
	}
}

type createExportRequest struct {
	PropertyID string `json:"property_id"`
	Format     string `json:"format"`
}

// DownloadCSV handles GET /v1/property/:id/export/csv
func (h *RestExportHandler) DownloadCSV(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	propertyID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	property, err := h.propertyService.FindPropertyByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve property"})
		}
		return
	}

	visible, err := h.shareService.HasVisibility(ctx, userID, property.OwnerID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !visible {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	payments, err := h.paymentService.ListByProperty(ctx, propertyID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	filename := fmt.Sprintf("ledger-%s.csv", propertyID.Hex())
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := h.exportService.WritePropertyCSV(c.Writer, property, payments); err != nil {
		// Headers are out; all we can do is log it.
		_ = c.Error(err)
	}
}

// CreateExport handles POST /v1/export. It records a pending job and hands it
// to the background worker via asynq.
func (h *RestExportHandler) CreateExport(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.Format == "" {
		req.Format = models.ExportFormatXLSX
	}
	if req.Format != models.ExportFormatXLSX && req.Format != models.ExportFormatCSV {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported export format"})
		return
	}

	ctx := c.Request.Context()
	var propertyID *primitive.ObjectID
	if req.PropertyID != "" {
		id, err := primitive.ObjectIDFromHex(req.PropertyID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property_id format"})
			return
		}
		property, err := h.propertyService.FindPropertyByID(ctx, id)
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
			respondOwnershipError(c, h.shareService, userID, property.OwnerID, "Only the owner can export a property", "Property not found")
			return
		}
		propertyID = &id
	}

	job, err := h.exportService.CreateJob(ctx, userID, propertyID, req.Format)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create export job"})
		return
	}

	payloadBytes, _ := json.Marshal(tasks.ExportTaskPayload{JobID: job.ID.Hex()})
	task := asynq.NewTask(tasks.TypeExportGenerate, payloadBytes)
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		_ = c.Error(err)
		if markErr := h.exportService.MarkFailed(ctx, job.ID, "failed to enqueue"); markErr != nil {
			_ = c.Error(markErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule export"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetExport handles GET /v1/export/:id
func (h *RestExportHandler) GetExport(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	job, err := h.exportService.FindJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Export job not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve export job"})
		}
		return
	}
	if job.OwnerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}
