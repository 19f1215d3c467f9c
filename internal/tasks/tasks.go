package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decode support for uploaded logos
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"eccnsw/memberdesk/internal/config"
	"eccnsw/memberdesk/internal/docs"
	"eccnsw/memberdesk/internal/email"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/storage"
	"eccnsw/memberdesk/internal/utils"
)

// TaskType defines the type of a background task. The invoice document
// render type lives in the services package, which enqueues it.
const (
	TypeInvoiceCheckOverdue = "billing:invoice:check_overdue"
	TypeLogoProcess         = "logo:process"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	storageService storage.IS3Storage
	invoiceService services.IInvoiceService
	memberService  services.IMemberService
	adminService   services.IAdminService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	invoiceService services.IInvoiceService,
	memberService services.IMemberService,
	adminService services.IAdminService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		storageService: storageService,
		invoiceService: invoiceService,
		memberService:  memberService,
		adminService:   adminService,
	}
}

// SetupServer configures an Asynq server and its handler mux. The caller
// runs the server. isDocWorker enables the invoice document queue,
// isBgWorker the rest.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isDocWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"docs":     5,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeInvoiceCheckOverdue, processor.HandleInvoiceCheckOverdueTask)
		mux.HandleFunc(TypeLogoProcess, processor.HandleLogoProcessTask)
		fmt.Println("Registered background task handlers (overdue checks & logo processing).")
	}

	if isDocWorker {
		mux.HandleFunc(services.TypeInvoiceDocRender, processor.HandleInvoiceDocRenderTask)
		fmt.Println("Registered invoice document task handlers.")
	}

	if !isBgWorker && !isDocWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// --- Task Handlers ---

// HandleInvoiceDocRenderTask renders an invoice workbook and uploads it.
func (p *TaskProcessor) HandleInvoiceDocRenderTask(ctx context.Context, t *asynq.Task) error {
	var payload services.InvoiceDocRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal doc render payload: %v: %w", err, asynq.SkipRetry)
	}

	invoiceID, err := utils.ParseSixID(payload.InvoiceID)
	if err != nil {
		log.Printf("Invalid invoice id in doc render payload: %s", payload.InvoiceID)
		return fmt.Errorf("invalid invoice id in payload: %w", asynq.SkipRetry)
	}

	inv, err := p.invoiceService.FindByID(ctx, invoiceID)
	if err != nil {
		// The invoice may have been deleted with its member before the
		// queue drained.
		return fmt.Errorf("invoice %s not found for rendering: %w", payload.InvoiceID, asynq.SkipRetry)
	}
	member, err := p.memberService.FindByID(ctx, inv.MemberID)
	if err != nil {
		return fmt.Errorf("member %s not found for invoice %s: %w", inv.MemberID.String(), payload.InvoiceID, asynq.SkipRetry)
	}
	settings, err := p.adminService.GetSettings(ctx)
	if err != nil {
		return err
	}

	data, err := docs.RenderInvoiceWorkbook(inv, member, settings)
	if err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", payload.InvoiceID, err)
	}

	key := fmt.Sprintf("invoices/%s/%s.xlsx", inv.FinancialYear.Label, inv.ID.String())
	if err := p.storageService.UploadObject(ctx, key,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data); err != nil {
		return err
	}

	if err := p.invoiceService.SetDocumentKey(ctx, inv.ID, key); err != nil {
		return err
	}
	log.Printf("Rendered invoice document %s", key)
	return nil
}

// HandleInvoiceCheckOverdueTask emails the operator about invoices past due,
// once per invoice.
func (p *TaskProcessor) HandleInvoiceCheckOverdueTask(ctx context.Context, t *asynq.Task) error {
	overdue, err := p.invoiceService.FindOverdueInvoices(ctx)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return nil
	}

	noticeTo := p.cfg.OverdueCheckNoticeTo
	if noticeTo == "" {
		account, err := p.adminService.GetAccount(ctx)
		if err != nil {
			return err
		}
		noticeTo = account.Profile.Email
	}
	if noticeTo == "" {
		log.Printf("No overdue notice recipient configured; %d overdue invoices unnotified.", len(overdue))
		return nil
	}

	for i := range overdue {
		inv := &overdue[i]
		member, err := p.memberService.FindByID(ctx, inv.MemberID)
		if err != nil {
			log.Printf("Skipping overdue notice for invoice %s: %v", inv.ID.String(), err)
			continue
		}

		subject := fmt.Sprintf("Invoice overdue: %s (%s)", member.Name, inv.FinancialYear.Label)
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("To: %s\r\n", noticeTo))
		sb.WriteString(fmt.Sprintf("From: %s\r\n", p.cfg.SmtpFromAddress))
		sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
		sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
		sb.WriteString("MIME-Version: 1.0\r\n")
		sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		sb.WriteString("\r\n")
		sb.WriteString(fmt.Sprintf("Invoice %s for %s (%s) is overdue.\r\n",
			inv.ID.String(), member.Name, inv.FinancialYear.Label))
		sb.WriteString(fmt.Sprintf("Amount: $%.2f, paid to date: $%.2f.\r\n", inv.Amount, inv.AmountPaid))
		if inv.DueDate != nil {
			sb.WriteString(fmt.Sprintf("Due date was %s.\r\n", inv.DueDate.Format("2 January 2006")))
		}

		if err := p.emailSender.Send(ctx, []string{noticeTo}, subject, []byte(sb.String())); err != nil {
			log.Printf("Failed to send overdue notice for invoice %s: %v", inv.ID.String(), err)
			continue
		}
		if err := p.invoiceService.MarkInvoiceOverdueNotified(ctx, inv.ID); err != nil {
			log.Printf("Failed to flag invoice %s as notified: %v", inv.ID.String(), err)
		}
	}
	return nil
}

// LogoTaskPayload identifies an uploaded logo object to normalize.
type LogoTaskPayload struct {
	S3Key string `json:"s3_key"`
}

// HandleLogoProcessTask bounds an uploaded logo's dimensions and records it
// in the settings.
func (p *TaskProcessor) HandleLogoProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload LogoTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal logo task payload: %v: %w", err, asynq.SkipRetry)
	}

	data, _, err := p.storageService.DownloadObject(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download logo %s: %w", payload.S3Key, err)
	}

	maxSizeBytes := int64(p.cfg.LogoMaxSizeMB) * 1024 * 1024
	if int64(len(data)) > maxSizeBytes {
		log.Printf("Logo %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(data), maxSizeBytes)
		return fmt.Errorf("logo exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("Error decoding logo %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded logo %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.LogoMaxDimension)
	finalKey := payload.S3Key
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
			return fmt.Errorf("failed to re-encode logo %s: %w", payload.S3Key, err)
		}
		finalKey = strings.TrimSuffix(payload.S3Key, ".jpg") + "_processed.jpg"
		if err := p.storageService.UploadObject(ctx, finalKey, "image/jpeg", buf.Bytes()); err != nil {
			return err
		}
		log.Printf("Resized logo %s -> %s (%dx%d max)", payload.S3Key, finalKey, maxDim, maxDim)
	}

	settings, err := p.adminService.GetSettings(ctx)
	if err != nil {
		return err
	}
	settings.CustomLogoKey = finalKey
	if _, err := p.adminService.UpdateSettings(ctx, *settings); err != nil {
		return err
	}
	return nil
}

// NewOverdueCheckScheduler returns a scheduler that runs the overdue check
// daily. Started alongside the bg worker.
func NewOverdueCheckScheduler(rdb *redis.Client) *asynq.Scheduler {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}, nil)

	task := asynq.NewTask(TypeInvoiceCheckOverdue, nil)
	if _, err := scheduler.Register("@every 24h", task); err != nil {
		log.Fatalf("Could not register overdue check schedule: %v", err)
	}
	return scheduler
}
