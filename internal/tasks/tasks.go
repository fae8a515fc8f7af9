package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"dlnapm/pmpr/internal/config"
	"dlnapm/pmpr/internal/email"
	"dlnapm/pmpr/internal/models"
	"dlnapm/pmpr/internal/services"
	"dlnapm/pmpr/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery    = "email:deliver"
	TypeExportGenerate   = "export:generate"
	TypeStatementCompose = "statement:compose"
)

// --- Task Client (Enqueuing tasks) ---

// IAsynqClient is the slice of asynq.Client the processor needs to chain
// follow-up tasks. Mockable in tests.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed from rdb.Options()
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg             *config.Config
	emailSender     email.Sender
	storageService  storage.IS3Storage
	exportService   services.IExportService
	paymentService  services.IPaymentService
	propertyService services.IPropertyService
	userService     services.IUserService
	taskClient      IAsynqClient
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	exportService services.IExportService,
	paymentService services.IPaymentService,
	propertyService services.IPropertyService,
	userService services.IUserService,
	taskClient IAsynqClient,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		emailSender:     emailSender,
		storageService:  storageService,
		exportService:   exportService,
		paymentService:  paymentService,
		propertyService: propertyService,
		userService:     userService,
		taskClient:      taskClient,
	}
}

// SetupServer configures an Asynq server with all background handlers
// registered. The caller runs it (srv.Run(mux) blocks until shutdown).
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeExportGenerate, processor.HandleExportGenerateTask)
	mux.HandleFunc(TypeStatementCompose, processor.HandleStatementComposeTask)
	fmt.Println("Registered background task handlers (email, exports, statements).")

	return srv, mux
}

// SetupScheduler configures the cron-style scheduler that kicks off the
// monthly statement run.
func SetupScheduler(rdb *redis.Client) *asynq.Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: rdb.Options().Addr},
		&asynq.SchedulerOpts{Location: time.UTC},
	)

	// First day of each month, after all timezones have rolled over.
	if _, err := scheduler.Register("0 12 1 * *", asynq.NewTask(TypeStatementCompose, nil), asynq.Queue("low")); err != nil {
		log.Printf("Could not register statement schedule: %v", err)
	}
	return scheduler
}

// --- Email delivery ---

// EmailTaskPayload carries everything needed to render and send one email.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"` // Optional locale
	Data       map[string]interface{} `json:"data"`
}

// emailTemplate is a subject/body pair with {{.key}} placeholders.
type emailTemplate struct {
	Subject string
	Body    string
}

// Templates are compiled in rather than stored per-locale in the database;
// the app sends only a handful of email kinds.
var emailTemplates = map[string]emailTemplate{
	"share_invitation": {
		Subject: "{{.owner_name}} invited you to view their rental records",
		Body: "Hello,\r\n\r\n{{.owner_name}} has invited you to view their rental records (read-only).\r\n" +
			"Open the app and enter this invitation code to accept:\r\n\r\n    {{.token}}\r\n\r\n" +
			"If you were not expecting this, you can ignore this message.\r\n",
	},
	"export_ready": {
		Subject: "Your rental records export is ready",
		Body: "Hello,\r\n\r\nThe export you requested has finished. Download it here:\r\n\r\n{{.download_url}}\r\n\r\n" +
			"The link expires after a while, so grab it soon.\r\n",
	},
	"monthly_statement": {
		Subject: "Monthly statement for {{.period}}",
		Body: "Hello {{.name}},\r\n\r\nHere is your rental summary for {{.period}}:\r\n\r\n{{.summary}}\r\n" +
			"You can turn this email off in your notification settings.\r\n",
	},
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	fmt.Printf("Sending email task: To=%s, Template=%s\n", payload.To, payload.TemplateID)

	tmpl, ok := emailTemplates[payload.TemplateID]
	if !ok {
		log.Printf("Unknown email template %s for %s", payload.TemplateID, payload.To)
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	// Simple placeholder replacement (replace {{.key}})
	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val)
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Basic email structure with essential headers.
	// Note: Proper MIME encoding for HTML or attachments would be more complex.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	err := p.emailSender.Send(ctx, []string{payload.To}, subjectRendered, []byte(sb.String()))
	if err != nil {
		fmt.Printf("Email sending failed (will retry?): %v\n", err)
		return err
	}

	fmt.Printf("Email task processed successfully: To=%s, Template=%s\n", payload.To, payload.TemplateID)
	return nil
}

// --- Export generation ---

// ExportTaskPayload identifies the export job to build.
type ExportTaskPayload struct {
	JobID string `json:"job_id"`
}

// HandleExportGenerateTask builds the requested spreadsheet, uploads it to S3
// and records the presigned download link on the job.
func (p *TaskProcessor) HandleExportGenerateTask(ctx context.Context, t *asynq.Task) error {
	var payload ExportTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal export task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID, err := primitive.ObjectIDFromHex(payload.JobID)
	if err != nil {
		log.Printf("Invalid JobID in export task payload: %s", payload.JobID)
		return fmt.Errorf("invalid export job ID in payload: %w", asynq.SkipRetry)
	}

	job, err := p.exportService.FindJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Export job %s not found, skipping.", payload.JobID)
			return fmt.Errorf("export job not found: %w", asynq.SkipRetry)
		}
		return err
	}
	if job.Status == models.ExportStatusDone {
		log.Printf("Export job %s already done, skipping.", payload.JobID)
		return nil
	}

	if err := p.exportService.MarkProcessing(ctx, jobID); err != nil {
		return fmt.Errorf("failed to mark export job %s processing: %w", payload.JobID, err)
	}

	properties, err := p.collectExportProperties(ctx, job)
	if err != nil {
		p.failExport(ctx, jobID, err)
		return err
	}

	var artifact []byte
	var contentType, extension string
	switch job.Format {
	case models.ExportFormatCSV:
		artifact, err = p.buildCSVExport(ctx, properties)
		contentType = "text/csv"
		extension = "csv"
	default:
		artifact, err = p.buildXLSXExport(ctx, properties)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		extension = "xlsx"
	}
	if err != nil {
		p.failExport(ctx, jobID, err)
		return err
	}

	objectKey, err := p.storageService.UploadExport(ctx, job.OwnerID.Hex(), extension, contentType, artifact)
	if err != nil {
		p.failExport(ctx, jobID, err)
		return err
	}

	downloadURL, err := p.storageService.GeneratePresignedGetURL(ctx, objectKey)
	if err != nil {
		p.failExport(ctx, jobID, err)
		return err
	}

	if err := p.exportService.MarkDone(ctx, jobID, objectKey, downloadURL); err != nil {
		return fmt.Errorf("failed to mark export job %s done: %w", payload.JobID, err)
	}

	p.notifyExportReady(ctx, job.OwnerID, downloadURL)

	log.Printf("Export job %s finished: %d properties, %d bytes, key %s", payload.JobID, len(properties), len(artifact), objectKey)
	return nil
}

// failExport records the failure reason on the job. The original error still
// propagates to asynq for retry accounting.
func (p *TaskProcessor) failExport(ctx context.Context, jobID primitive.ObjectID, cause error) {
	if err := p.exportService.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		log.Printf("Could not mark export job %s failed: %v", jobID.Hex(), err)
	}
}

// collectExportProperties resolves the job scope: one property or all of the
// owner's properties.
func (p *TaskProcessor) collectExportProperties(ctx context.Context, job *models.ExportJob) ([]models.Property, error) {
	if job.PropertyID != nil {
		property, err := p.propertyService.FindPropertyByID(ctx, *job.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load property %s for export: %w", job.PropertyID.Hex(), err)
		}
		if property.OwnerID != job.OwnerID {
			return nil, fmt.Errorf("property %s does not belong to export owner: %w", job.PropertyID.Hex(), asynq.SkipRetry)
		}
		return []models.Property{*property}, nil
	}
	properties, err := p.propertyService.ListByOwner(ctx, job.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties for export owner %s: %w", job.OwnerID.Hex(), err)
	}
	return properties, nil
}

// buildXLSXExport renders one worksheet per property.
func (p *TaskProcessor) buildXLSXExport(ctx context.Context, properties []models.Property) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i := range properties {
		property := &properties[i]
		payments, err := p.paymentService.ListByProperty(ctx, property.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list payments for property %s: %w", property.ID.Hex(), err)
		}

		sheet := sheetName(property, i)
		if i == 0 {
			// Rename the default sheet instead of leaving an empty Sheet1 around.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("failed to rename sheet for property %s: %w", property.ID.Hex(), err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("failed to create sheet for property %s: %w", property.ID.Hex(), err)
			}
		}

		for rowIdx, row := range p.exportService.LedgerRows(property, payments) {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell coordinates: %w", err)
			}
			cells := make([]interface{}, len(row))
			for c, v := range row {
				cells[c] = v
			}
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return nil, fmt.Errorf("failed to write row %d on sheet %s: %w", rowIdx+1, sheet, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// buildCSVExport concatenates per-property ledgers, one titled section each.
func (p *TaskProcessor) buildCSVExport(ctx context.Context, properties []models.Property) ([]byte, error) {
	var buf bytes.Buffer
	for i := range properties {
		property := &properties[i]
		payments, err := p.paymentService.ListByProperty(ctx, property.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list payments for property %s: %w", property.ID.Hex(), err)
		}
		if i > 0 {
			buf.WriteString("\r\n")
		}
		fmt.Fprintf(&buf, "# %s (%s)\r\n", property.Nickname, property.Address)
		if err := p.exportService.WritePropertyCSV(&buf, property, payments); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// sheetName derives a worksheet name from the property nickname. Excel caps
// sheet names at 31 characters; the index suffix keeps duplicates apart.
func sheetName(property *models.Property, index int) string {
	name := strings.TrimSpace(property.Nickname)
	if name == "" {
		name = "Property"
	}
	// Characters Excel forbids in sheet names.
	for _, ch := range []string{":", "\\", "/", "?", "*", "[", "]"} {
		name = strings.ReplaceAll(name, ch, " ")
	}
	suffix := fmt.Sprintf(" (%d)", index+1)
	if len(name)+len(suffix) > 31 {
		name = name[:31-len(suffix)]
	}
	return name + suffix
}

// notifyExportReady emails the owner a download link. Failure here is logged
// but never fails the export itself.
func (p *TaskProcessor) notifyExportReady(ctx context.Context, ownerID primitive.ObjectID, downloadURL string) {
	owner, err := p.userService.FindByID(ctx, ownerID)
	if err != nil {
		log.Printf("Could not load export owner %s for notification: %v", ownerID.Hex(), err)
		return
	}

	emailPayload, err := json.Marshal(EmailTaskPayload{
		To:         owner.Email,
		TemplateID: "export_ready",
		Data:       map[string]interface{}{"download_url": downloadURL},
	})
	if err != nil {
		log.Printf("Could not marshal export-ready email payload for %s: %v", owner.Email, err)
		return
	}
	if _, err := p.taskClient.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, emailPayload)); err != nil {
		log.Printf("Could not enqueue export-ready email for %s: %v", owner.Email, err)
	}
}

// --- Monthly statements ---

// StatementTaskPayload optionally pins the statement period. A zero value
// means "the previous calendar month".
type StatementTaskPayload struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// HandleStatementComposeTask emails every opted-in user a summary of last
// month's rent position across their properties.
func (p *TaskProcessor) HandleStatementComposeTask(ctx context.Context, t *asynq.Task) error {
	var payload StatementTaskPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal statement task payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	year, month := payload.Year, payload.Month
	if year == 0 || month == 0 {
		prev := time.Now().UTC().AddDate(0, -1, 0)
		year, month = prev.Year(), int(prev.Month())
	}
	period := fmt.Sprintf("%04d-%02d", year, month)

	subscribers, err := p.userService.ListStatementSubscribers(ctx)
	if err != nil {
		log.Printf("Error listing statement subscribers: %v", err)
		return err
	}

	log.Printf("Composing %s statements for %d subscribers...", period, len(subscribers))
	sent := 0

	for i := range subscribers {
		user := &subscribers[i]
		summary, err := p.composeStatementSummary(ctx, user.ID, year, month)
		if err != nil {
			log.Printf("Error composing statement for user %s: %v. Skipping.", user.ID.Hex(), err)
			continue
		}
		if summary == "" {
			// Nothing recorded for the period; no point emailing an empty statement.
			continue
		}

		emailPayload, err := json.Marshal(EmailTaskPayload{
			To:         user.Email,
			TemplateID: "monthly_statement",
			Data: map[string]interface{}{
				"name":    user.Name,
				"period":  period,
				"summary": summary,
			},
		})
		if err != nil {
			log.Printf("Error marshalling statement email for user %s: %v. Skipping.", user.ID.Hex(), err)
			continue
		}
		if _, err := p.taskClient.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, emailPayload), asynq.Queue("low")); err != nil {
			log.Printf("Error enqueueing statement email for user %s: %v", user.ID.Hex(), err)
			continue
		}
		sent++
	}

	log.Printf("Statement compose task finished. Enqueued %d statement emails for %s.", sent, period)
	return nil
}

// composeStatementSummary renders a plain-text per-property rundown for one
// month. Returns "" when the user recorded nothing for the period.
func (p *TaskProcessor) composeStatementSummary(ctx context.Context, ownerID primitive.ObjectID, year, month int) (string, error) {
	properties, err := p.propertyService.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	found := false
	for i := range properties {
		property := &properties[i]
		if property.Archived {
			continue
		}
		payments, err := p.paymentService.ListByProperty(ctx, property.ID)
		if err != nil {
			return "", err
		}
		for j := range payments {
			rec := &payments[j]
			if rec.Year != year || rec.Month != month {
				continue
			}
			found = true
			fmt.Fprintf(&sb, "%s: rent billed %.2f, paid %.2f, outstanding %.2f\r\n",
				property.Nickname, rec.RentBill, rec.RentPaid, rec.Shortfall())
			for _, u := range rec.Utilities {
				if u.Bill > u.Paid {
					fmt.Fprintf(&sb, "  %s unpaid: %.2f\r\n", u.Category, u.Bill-u.Paid)
				}
			}
		}
	}

	if !found {
		return "", nil
	}
	return sb.String(), nil
}
