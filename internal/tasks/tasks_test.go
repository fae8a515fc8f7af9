package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dlnapm/pmpr/internal/config"
	"dlnapm/pmpr/internal/models"
	"dlnapm/pmpr/internal/services"
	"dlnapm/pmpr/internal/tasks"
)

// --- Mocks ---

// MockEmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) UploadExport(ctx context.Context, ownerID, extension, contentType string, body []byte) (string, error) {
	args := m.Called(ctx, ownerID, extension, contentType, body)
	return args.String(0), args.Error(1)
}

func (m *MockS3Storage) GeneratePresignedGetURL(ctx context.Context, objectKey string) (string, error) {
	args := m.Called(ctx, objectKey)
	return args.String(0), args.Error(1)
}

// MockExportService implements services.IExportService
type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) WritePropertyCSV(w io.Writer, property *models.Property, payments []models.PaymentRecord) error {
	args := m.Called(w, property, payments)
	return args.Error(0)
}

func (m *MockExportService) LedgerRows(property *models.Property, payments []models.PaymentRecord) [][]string {
	args := m.Called(property, payments)
	return args.Get(0).([][]string)
}

func (m *MockExportService) CreateJob(ctx context.Context, ownerID primitive.ObjectID, propertyID *primitive.ObjectID, format string) (*models.ExportJob, error) {
	args := m.Called(ctx, ownerID, propertyID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExportJob), args.Error(1)
}

func (m *MockExportService) FindJobByID(ctx context.Context, jobID primitive.ObjectID) (*models.ExportJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExportJob), args.Error(1)
}

func (m *MockExportService) MarkProcessing(ctx context.Context, jobID primitive.ObjectID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockExportService) MarkDone(ctx context.Context, jobID primitive.ObjectID, objectKey, downloadURL string) error {
	args := m.Called(ctx, jobID, objectKey, downloadURL)
	return args.Error(0)
}

func (m *MockExportService) MarkFailed(ctx context.Context, jobID primitive.ObjectID, reason string) error {
	args := m.Called(ctx, jobID, reason)
	return args.Error(0)
}

// MockPaymentService implements services.IPaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, ownerID, propertyID primitive.ObjectID, year, month int, input services.PaymentInput) (*models.PaymentRecord, error) {
	args := m.Called(ctx, ownerID, propertyID, year, month, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentRecord), args.Error(1)
}

func (m *MockPaymentService) UpdatePayment(ctx context.Context, paymentID, ownerID primitive.ObjectID, input services.PaymentInput) (*models.PaymentRecord, error) {
	args := m.Called(ctx, paymentID, ownerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentRecord), args.Error(1)
}

func (m *MockPaymentService) DeletePayment(ctx context.Context, paymentID, ownerID primitive.ObjectID) error {
	args := m.Called(ctx, paymentID, ownerID)
	return args.Error(0)
}

func (m *MockPaymentService) FindPaymentByID(ctx context.Context, paymentID primitive.ObjectID) (*models.PaymentRecord, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentRecord), args.Error(1)
}

func (m *MockPaymentService) ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.PaymentRecord, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentRecord), args.Error(1)
}

// MockPropertyService implements services.IPropertyService
type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) CreateProperty(ctx context.Context, ownerID primitive.ObjectID, nickname, address string, rentAmount float64, utilityCategories []string) (*models.Property, error) {
	args := m.Called(ctx, ownerID, nickname, address, rentAmount, utilityCategories)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) FindPropertyByID(ctx context.Context, propertyID primitive.ObjectID) (*models.Property, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) UpdateProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID, updates map[string]interface{}) (*models.Property, error) {
	args := m.Called(ctx, propertyID, ownerID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) ArchiveProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID) error {
	args := m.Called(ctx, propertyID, ownerID)
	return args.Error(0)
}

func (m *MockPropertyService) DeleteProperty(ctx context.Context, propertyID, ownerID primitive.ObjectID) error {
	args := m.Called(ctx, propertyID, ownerID)
	return args.Error(0)
}

func (m *MockPropertyService) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Property, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyService) HealthScore(ctx context.Context, propertyID primitive.ObjectID) (int, error) {
	args := m.Called(ctx, propertyID)
	return args.Int(0), args.Error(1)
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	args := m.Called(ctx, name, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateNotificationPreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error {
	args := m.Called(ctx, userID, prefs)
	return args.Error(0)
}

func (m *MockUserService) DeleteUser(ctx context.Context, userID primitive.ObjectID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) ListStatementSubscribers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

// MockTaskClient implements tasks.IAsynqClient
type MockTaskClient struct {
	mock.Mock
}

func (m *MockTaskClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	callArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		callArgs = append(callArgs, opt)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

type processorMocks struct {
	emailSender *MockEmailSender
	s3          *MockS3Storage
	export      *MockExportService
	payment     *MockPaymentService
	property    *MockPropertyService
	user        *MockUserService
	client      *MockTaskClient
}

func newTestProcessor(cfg *config.Config) (*tasks.TaskProcessor, *processorMocks) {
	m := &processorMocks{
		emailSender: new(MockEmailSender),
		s3:          new(MockS3Storage),
		export:      new(MockExportService),
		payment:     new(MockPaymentService),
		property:    new(MockPropertyService),
		user:        new(MockUserService),
		client:      new(MockTaskClient),
	}
	p := tasks.NewTaskProcessor(cfg, m.emailSender, m.s3, m.export, m.payment, m.property, m.user, m.client)
	return p, m
}

// --- Tests ---

func TestHandleEmailDeliveryTask_ShareInvitation(t *testing.T) {
	cfg := &config.Config{SmtpFromAddress: "noreply@pmpr.app"}
	p, m := newTestProcessor(cfg)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "viewer@example.com",
		TemplateID: "share_invitation",
		Data: map[string]interface{}{
			"owner_name": "Alice",
			"token":      "tok-123",
		},
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	expectedSubject := "Alice invited you to view their rental records"
	m.emailSender.On("Send",
		mock.Anything,
		[]string{"viewer@example.com"},
		expectedSubject,
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: viewer@example.com", "Raw message should contain To address")
			assert.Contains(t, msgStr, "From: noreply@pmpr.app", "Raw message should contain From address")
			assert.Contains(t, msgStr, fmt.Sprintf("Subject: %s", expectedSubject), "Raw message should contain Subject")
			assert.Contains(t, msgStr, "tok-123", "Raw message should contain the invitation token")
			return true
		}),
	).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.NoError(t, err)
	m.emailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_UnknownTemplate(t *testing.T) {
	p, m := newTestProcessor(&config.Config{})

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:         "test@example.com",
		TemplateID: "nonexistent_template",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Error should be SkipRetry for an unknown template")
	m.emailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleExportGenerateTask_CSV(t *testing.T) {
	p, m := newTestProcessor(&config.Config{})

	ownerID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	jobID := primitive.NewObjectID()

	job := &models.ExportJob{
		ID:         jobID,
		OwnerID:    ownerID,
		PropertyID: &propertyID,
		Format:     models.ExportFormatCSV,
		Status:     models.ExportStatusPending,
	}
	property := &models.Property{ID: propertyID, OwnerID: ownerID, Nickname: "Elm St", Address: "12 Elm St"}
	payments := []models.PaymentRecord{{PropertyID: propertyID, Year: 2024, Month: 1, RentBill: 1000, RentPaid: 1000}}
	owner := &models.User{ID: ownerID, Email: "owner@example.com"}

	m.export.On("FindJobByID", mock.Anything, jobID).Return(job, nil)
	m.export.On("MarkProcessing", mock.Anything, jobID).Return(nil)
	m.property.On("FindPropertyByID", mock.Anything, propertyID).Return(property, nil)
	m.payment.On("ListByProperty", mock.Anything, propertyID).Return(payments, nil)
	m.export.On("WritePropertyCSV", mock.Anything, property, payments).Return(nil)
	m.s3.On("UploadExport", mock.Anything, ownerID.Hex(), "csv", "text/csv", mock.Anything).Return("exports/key.csv", nil)
	m.s3.On("GeneratePresignedGetURL", mock.Anything, "exports/key.csv").Return("https://s3/key.csv?sig", nil)
	m.export.On("MarkDone", mock.Anything, jobID, "exports/key.csv", "https://s3/key.csv?sig").Return(nil)
	m.user.On("FindByID", mock.Anything, ownerID).Return(owner, nil)
	m.client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeEmailDelivery
	})).Return(&asynq.TaskInfo{ID: "email-1"}, nil)

	payloadBytes, _ := json.Marshal(tasks.ExportTaskPayload{JobID: jobID.Hex()})
	err := p.HandleExportGenerateTask(context.Background(), asynq.NewTask(tasks.TypeExportGenerate, payloadBytes))

	assert.NoError(t, err)
	m.export.AssertExpectations(t)
	m.s3.AssertExpectations(t)
	m.client.AssertExpectations(t)
}

func TestHandleExportGenerateTask_UploadFailureMarksJobFailed(t *testing.T) {
	p, m := newTestProcessor(&config.Config{})

	ownerID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	jobID := primitive.NewObjectID()

	job := &models.ExportJob{
		ID:         jobID,
		OwnerID:    ownerID,
		PropertyID: &propertyID,
		Format:     models.ExportFormatCSV,
		Status:     models.ExportStatusPending,
	}
	property := &models.Property{ID: propertyID, OwnerID: ownerID, Nickname: "Elm St"}

	m.export.On("FindJobByID", mock.Anything, jobID).Return(job, nil)
	m.export.On("MarkProcessing", mock.Anything, jobID).Return(nil)
	m.property.On("FindPropertyByID", mock.Anything, propertyID).Return(property, nil)
	m.payment.On("ListByProperty", mock.Anything, propertyID).Return([]models.PaymentRecord{}, nil)
	m.export.On("WritePropertyCSV", mock.Anything, property, mock.Anything).Return(nil)
	m.s3.On("UploadExport", mock.Anything, ownerID.Hex(), "csv", "text/csv", mock.Anything).Return("", assert.AnError)
	m.export.On("MarkFailed", mock.Anything, jobID, mock.AnythingOfType("string")).Return(nil)

	payloadBytes, _ := json.Marshal(tasks.ExportTaskPayload{JobID: jobID.Hex()})
	err := p.HandleExportGenerateTask(context.Background(), asynq.NewTask(tasks.TypeExportGenerate, payloadBytes))

	assert.Error(t, err)
	m.export.AssertCalled(t, "MarkFailed", mock.Anything, jobID, mock.AnythingOfType("string"))
	m.export.AssertNotCalled(t, "MarkDone", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleExportGenerateTask_InvalidJobID(t *testing.T) {
	p, m := newTestProcessor(&config.Config{})

	payloadBytes, _ := json.Marshal(tasks.ExportTaskPayload{JobID: "not-an-object-id"})
	err := p.HandleExportGenerateTask(context.Background(), asynq.NewTask(tasks.TypeExportGenerate, payloadBytes))

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Bad job IDs should not be retried")
	m.export.AssertNotCalled(t, "FindJobByID", mock.Anything, mock.Anything)
}

func TestHandleStatementComposeTask(t *testing.T) {
	p, m := newTestProcessor(&config.Config{})

	ownerID := primitive.NewObjectID()
	propertyID := primitive.NewObjectID()
	subscriber := models.User{ID: ownerID, Name: "Alice", Email: "alice@example.com"}
	property := models.Property{ID: propertyID, OwnerID: ownerID, Nickname: "Elm St"}
	payments := []models.PaymentRecord{
		{PropertyID: propertyID, Year: 2024, Month: 3, RentBill: 1200, RentPaid: 1000},
		{PropertyID: propertyID, Year: 2024, Month: 2, RentBill: 1000, RentPaid: 1000},
	}

	m.user.On("ListStatementSubscribers", mock.Anything).Return([]models.User{subscriber}, nil)
	m.property.On("ListByOwner", mock.Anything, ownerID).Return([]models.Property{property}, nil)
	m.payment.On("ListByProperty", mock.Anything, propertyID).Return(payments, nil)
	m.client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != tasks.TypeEmailDelivery {
			return false
		}
		var payload tasks.EmailTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return false
		}
		assert.Equal(t, "alice@example.com", payload.To)
		assert.Equal(t, "monthly_statement", payload.TemplateID)
		assert.Equal(t, "2024-03", payload.Data["period"])
		assert.Contains(t, payload.Data["summary"], "outstanding 200.00")
		return true
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "stmt-1"}, nil)

	payloadBytes, _ := json.Marshal(tasks.StatementTaskPayload{Year: 2024, Month: 3})
	err := p.HandleStatementComposeTask(context.Background(), asynq.NewTask(tasks.TypeStatementCompose, payloadBytes))

	assert.NoError(t, err)
	m.client.AssertExpectations(t)
}

func TestHandleStatementComposeTask_NothingRecorded(t *testing.T) {
	p, m := newTestProcessor(&config.Config{})

	ownerID := primitive.NewObjectID()
	subscriber := models.User{ID: ownerID, Name: "Bob", Email: "bob@example.com"}

	m.user.On("ListStatementSubscribers", mock.Anything).Return([]models.User{subscriber}, nil)
	m.property.On("ListByOwner", mock.Anything, ownerID).Return([]models.Property{}, nil)

	payloadBytes, _ := json.Marshal(tasks.StatementTaskPayload{Year: 2024, Month: 3})
	err := p.HandleStatementComposeTask(context.Background(), asynq.NewTask(tasks.TypeStatementCompose, payloadBytes))

	assert.NoError(t, err)
	m.client.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything)
}
