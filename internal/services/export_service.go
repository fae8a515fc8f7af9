package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/models"
)

// IExportService builds ledger exports and tracks asynchronous export jobs.
type IExportService interface {
	WritePropertyCSV(w io.Writer, property *models.Property, payments []models.PaymentRecord) error
	LedgerRows(property *models.Property, payments []models.PaymentRecord) [][]string
	CreateJob(ctx context.Context, ownerID primitive.ObjectID, propertyID *primitive.ObjectID, format string) (*models.ExportJob, error)
	FindJobByID(ctx context.Context, jobID primitive.ObjectID) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, jobID primitive.ObjectID) error
	MarkDone(ctx context.Context, jobID primitive.ObjectID, objectKey, downloadURL string) error
	MarkFailed(ctx context.Context, jobID primitive.ObjectID, reason string) error
}

const exportJobsCollection = "export_jobs"

type exportService struct {
	db *mongo.Database
}

// NewExportService creates a new ExportService.
func NewExportService(db *mongo.Database) IExportService {
	return &exportService{db: db}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// LedgerRows flattens a property's payment history into spreadsheet rows:
// a header row, then one row per month. Utility columns follow the
// property's tracked category list so every row has the same shape.
func (s *exportService) LedgerRows(property *models.Property, payments []models.PaymentRecord) [][]string {
	header := []string{"Month", "Rent Bill", "Rent Paid", "Unpaid Balance"}
	for _, cat := range property.UtilityCategories {
		header = append(header, cat+" Bill", cat+" Paid")
	}
	rows := [][]string{header}

	for i := range payments {
		p := &payments[i]
		row := []string{
			fmt.Sprintf("%04d-%02d", p.Year, p.Month),
			money(p.RentBill),
			money(p.RentPaid),
			money(p.Shortfall()),
		}
		byCategory := make(map[string]models.UtilityLine, len(p.Utilities))
		for _, u := range p.Utilities {
			byCategory[u.Category] = u
		}
		for _, cat := range property.UtilityCategories {
			if u, ok := byCategory[cat]; ok {
				row = append(row, money(u.Bill), money(u.Paid))
			} else {
				row = append(row, "", "")
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// WritePropertyCSV streams the property's ledger as CSV.
func (s *exportService) WritePropertyCSV(w io.Writer, property *models.Property, payments []models.PaymentRecord) error {
	writer := csv.NewWriter(w)
	for _, row := range s.LedgerRows(property, payments) {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// CreateJob records a pending export job for the background worker.
func (s *exportService) CreateJob(ctx context.Context, ownerID primitive.ObjectID, propertyID *primitive.ObjectID, format string) (*models.ExportJob, error) {
	now := time.Now().UTC()
	job := &models.ExportJob{
		ID:         primitive.NewObjectID(),
		OwnerID:    ownerID,
		PropertyID: propertyID,
		Format:     format,
		Status:     models.ExportStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.Collection(exportJobsCollection).InsertOne(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to insert export job for owner %s: %w", ownerID.Hex(), err)
	}
	return job, nil
}

// FindJobByID finds an export job by ID.
func (s *exportService) FindJobByID(ctx context.Context, jobID primitive.ObjectID) (*models.ExportJob, error) {
	var job models.ExportJob
	err := s.db.Collection(exportJobsCollection).FindOne(ctx, bson.M{"_id": jobID}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding export job by ID %s: %w", jobID.Hex(), err)
	}
	return &job, nil
}

func (s *exportService) setStatus(ctx context.Context, jobID primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.db.Collection(exportJobsCollection).UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("error updating export job %s: %w", jobID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkProcessing flags the job as picked up by a worker.
func (s *exportService) MarkProcessing(ctx context.Context, jobID primitive.ObjectID) error {
	return s.setStatus(ctx, jobID, bson.M{"status": models.ExportStatusProcessing})
}

// MarkDone records the uploaded object and its presigned download URL.
func (s *exportService) MarkDone(ctx context.Context, jobID primitive.ObjectID, objectKey, downloadURL string) error {
	return s.setStatus(ctx, jobID, bson.M{
		"status":       models.ExportStatusDone,
		"object_key":   objectKey,
		"download_url": downloadURL,
	})
}

// MarkFailed records a terminal failure reason.
func (s *exportService) MarkFailed(ctx context.Context, jobID primitive.ObjectID, reason string) error {
	return s.setStatus(ctx, jobID, bson.M{
		"status": models.ExportStatusFailed,
		"error":  reason,
	})
}
