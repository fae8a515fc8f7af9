package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"dlnapm/pmpr/internal/config"
)

// IS3Storage defines the interface for S3 operations on export artifacts.
type IS3Storage interface {
	// UploadExport stores a generated export under a fresh object key and returns the key.
	UploadExport(ctx context.Context, ownerID, extension, contentType string, body []byte) (string, error)
	// GeneratePresignedGetURL creates a time-limited download link for an uploaded export.
	GeneratePresignedGetURL(ctx context.Context, objectKey string) (string, error)
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		// Use static credentials from config for simplicity
		// For production, prefer IAM roles or other secure credential methods
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	presignClient := s3.NewPresignClient(s3Client)

	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: presignClient,
	}, nil
}

// UploadExport uploads the export bytes and returns the generated object key.
// Keys are namespaced per owner so a bucket listing stays navigable.
func (s *s3Storage) UploadExport(ctx context.Context, ownerID, extension, contentType string, body []byte) (string, error) {
	objectKey := fmt.Sprintf("exports/%s/%s.%s", ownerID, uuid.NewString(), extension)

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to key %s: %w", objectKey, err)
	}

	log.Printf("Uploaded export artifact to S3 key: %s (%d bytes)", objectKey, len(body))
	return objectKey, nil
}

// GeneratePresignedGetURL creates a pre-signed URL for downloading an export.
// The link expires after cfg.ExportURLTTL.
func (s *s3Storage) GeneratePresignedGetURL(ctx context.Context, objectKey string) (string, error) {
	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.cfg.ExportURLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned GET URL for key %s: %w", objectKey, err)
	}

	return presignedReq.URL, nil
}
