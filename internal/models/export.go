package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExportStatus enumerates the states of an asynchronous export job.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusDone       ExportStatus = "done"
	ExportStatusFailed     ExportStatus = "failed"
)

// Export formats accepted by the job API.
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatCSV  = "csv"
)

// ExportJob tracks a background spreadsheet export. The generated workbook is
// uploaded to S3 and DownloadURL holds a time-limited presigned GET link.
type ExportJob struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID     primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	PropertyID  *primitive.ObjectID `bson:"property_id,omitempty" json:"property_id,omitempty"` // nil = all properties
	Format      string              `bson:"format" json:"format"`                               // "xlsx"
	Status      ExportStatus        `bson:"status" json:"status"`
	ObjectKey   string              `bson:"object_key,omitempty" json:"-"`
	DownloadURL string              `bson:"download_url,omitempty" json:"download_url,omitempty"`
	Error       string              `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}
