package handlers_test

import (
	"context"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"dlnapm/pmpr/internal/models"
	"dlnapm/pmpr/internal/services"
)

// --- Mocks ---

// MockUserService
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

// MockPropertyService
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

// MockPaymentService
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

// MockShareService
type MockShareService struct {
	mock.Mock
}

func (m *MockShareService) CreateGrant(ctx context.Context, ownerID primitive.ObjectID, granteeEmail string) (*models.ShareGrant, error) {
	args := m.Called(ctx, ownerID, granteeEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShareGrant), args.Error(1)
}

func (m *MockShareService) AcceptGrant(ctx context.Context, token string, grantee *models.User) (*models.ShareGrant, error) {
	args := m.Called(ctx, token, grantee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShareGrant), args.Error(1)
}

func (m *MockShareService) RevokeGrant(ctx context.Context, grantID, ownerID primitive.ObjectID) error {
	args := m.Called(ctx, grantID, ownerID)
	return args.Error(0)
}

func (m *MockShareService) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.ShareGrant, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShareGrant), args.Error(1)
}

func (m *MockShareService) ListForGrantee(ctx context.Context, granteeID primitive.ObjectID) ([]models.ShareGrant, error) {
	args := m.Called(ctx, granteeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShareGrant), args.Error(1)
}

func (m *MockShareService) HasVisibility(ctx context.Context, viewerID, ownerID primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, viewerID, ownerID)
	return args.Bool(0), args.Error(1)
}

// MockExportService
type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) WritePropertyCSV(w io.Writer, property *models.Property, payments []models.PaymentRecord) error {
	args := m.Called(w, property, payments)
	return args.Error(0)
}

func (m *MockExportService) LedgerRows(property *models.Property, payments []models.PaymentRecord) [][]string {
	args := m.Called(property, payments)
	if args.Get(0) == nil {
		return nil
	}
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

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// MockConfigService
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}

func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Int(0)
}

func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.String(0)
}

func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Bool(0)
}

func (m *MockConfigService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	if fVal, ok := args.Get(0).(float64); ok {
		return fVal
	}
	return float64(args.Int(0))
}

func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Get(0).(time.Duration)
}

func (m *MockConfigService) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	args := m.Called(ctx, key, value, isPublic)
	return args.Error(0)
}
