package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eccnsw/memberdesk/internal/db"
	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

const (
	invoicesCollection = "invoices"
	membersCollection  = "members"
)

// TypeInvoiceDocRender is the asynq task type for rendering an invoice
// document. The payload is InvoiceDocRenderPayload.
const TypeInvoiceDocRender = "doc:invoice:render"

// InvoiceDocRenderPayload identifies the invoice to render.
type InvoiceDocRenderPayload struct {
	InvoiceID string `json:"invoice_id"`
}

// FYSummary aggregates a financial year for the dashboard.
type FYSummary struct {
	FinancialYear  string                      `json:"financial_year"`
	StatusCounts   map[models.MemberStatus]int `json:"status_counts"`
	TotalMembers   int                         `json:"total_members"`
	AmountInvoiced float64                     `json:"amount_invoiced"`
	AmountPaid     float64                     `json:"amount_paid"`
}

// IInvoiceService defines the interface for invoice operations.
type IInvoiceService interface {
	FindByID(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error)
	ListByMember(ctx context.Context, memberID utils.SixID) ([]models.Invoice, error)
	ListByYear(ctx context.Context, fyLabel string) ([]models.Invoice, error)
	GenerateSingle(ctx context.Context, memberID utils.SixID, opts engine.SingleInvoiceOptions) (*models.Invoice, error)
	GenerateBulk(ctx context.Context, opts engine.BulkOptions) ([]models.Invoice, error)
	RecordPayment(ctx context.Context, invoiceID utils.SixID, amount float64, paidDate time.Time, details string) (*models.Invoice, error)
	MarkFullyPaid(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error)
	Void(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error)
	OutstandingInvoice(ctx context.Context, memberID utils.SixID, fyLabel string) (*models.Invoice, error)
	Summary(ctx context.Context, fy models.FinancialYear) (*FYSummary, error)
	FindOverdueInvoices(ctx context.Context) ([]models.Invoice, error)
	MarkInvoiceOverdueNotified(ctx context.Context, invoiceID utils.SixID) error
	SetDocumentKey(ctx context.Context, invoiceID utils.SixID, key string) error
}

// invoiceService implements IInvoiceService.
type invoiceService struct {
	db           *mongo.Database
	rdb          *redis.Client
	taskClient   *asynq.Client
	levelService ILevelService
	clock        engine.Clock
}

// NewInvoiceService creates a new InvoiceService. rdb and taskClient may be
// nil; status-cache invalidation and document rendering are then skipped.
func NewInvoiceService(db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client, levelService ILevelService) IInvoiceService {
	return &invoiceService{
		db:           db,
		rdb:          rdb,
		taskClient:   taskClient,
		levelService: levelService,
		clock:        engine.SystemClock{},
	}
}

func (s *invoiceService) FindByID(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.Collection(invoicesCollection).FindOne(ctx, bson.M{"_id": invoiceID}).Decode(&inv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: invoice %s", ErrNotFound, invoiceID.String())
		}
		return nil, fmt.Errorf("error finding invoice %s: %w", invoiceID.String(), err)
	}
	return &inv, nil
}

// ListByMember returns a member's invoices, newest first.
func (s *invoiceService) ListByMember(ctx context.Context, memberID utils.SixID) ([]models.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, bson.M{"member_id": memberID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing invoices for member %s: %w", memberID.String(), err)
	}
	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("error decoding invoices: %w", err)
	}
	return invoices, nil
}

// ListByYear returns invoices issued for the given financial-year label.
// Multi-year invoices covering the label but issued for an earlier year are
// not included; use the engine's Covers for coverage questions.
func (s *invoiceService) ListByYear(ctx context.Context, fyLabel string) ([]models.Invoice, error) {
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, bson.M{"financial_year.label": fyLabel})
	if err != nil {
		return nil, fmt.Errorf("error listing invoices for %s: %w", fyLabel, err)
	}
	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("error decoding invoices: %w", err)
	}
	return invoices, nil
}

func (s *invoiceService) allInvoices(ctx context.Context) ([]models.Invoice, error) {
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing invoices: %w", err)
	}
	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("error decoding invoices: %w", err)
	}
	return invoices, nil
}

func (s *invoiceService) findMember(ctx context.Context, memberID utils.SixID) (*models.Member, error) {
	var member models.Member
	err := s.db.Collection(membersCollection).FindOne(ctx, bson.M{"_id": memberID}).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: member %s", ErrNotFound, memberID.String())
		}
		return nil, fmt.Errorf("error finding member %s: %w", memberID.String(), err)
	}
	return &member, nil
}

func (s *invoiceService) insertInvoice(ctx context.Context, inv *models.Invoice) error {
	return db.Try(func() error {
		inv.GenIDIfEmpty()
		_, err := s.db.Collection(invoicesCollection).InsertOne(ctx, inv)
		if db.IsMongoDuplicateKeyError(err) {
			inv.GenID()
		}
		return err
	})
}

// GenerateSingle raises one ad hoc invoice for a member and enqueues its
// document render.
func (s *invoiceService) GenerateSingle(ctx context.Context, memberID utils.SixID, opts engine.SingleInvoiceOptions) (*models.Invoice, error) {
	member, err := s.findMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	inv := engine.SingleInvoice(*member, opts, s.clock.Now())
	if err := s.insertInvoice(ctx, &inv); err != nil {
		return nil, fmt.Errorf("error inserting invoice for member %s: %w", memberID.String(), err)
	}

	s.invalidateStatusCache(ctx)
	s.enqueueDocRender(ctx, inv.ID)
	return &inv, nil
}

// GenerateBulk projects member statuses against the viewed year, selects the
// target subset and raises one invoice per selected member.
func (s *invoiceService) GenerateBulk(ctx context.Context, opts engine.BulkOptions) ([]models.Invoice, error) {
	groups, err := s.levelService.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	opts.Catalog = groups

	cursor, err := s.db.Collection(membersCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing members for bulk generation: %w", err)
	}
	var members []models.Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("error decoding members: %w", err)
	}

	existing, err := s.allInvoices(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	augmented := engine.ProjectStatuses(members, existing, opts.ViewedYear, now)
	invoices := engine.BulkInvoices(augmented, existing, opts, now)

	for i := range invoices {
		if err := s.insertInvoice(ctx, &invoices[i]); err != nil {
			return nil, fmt.Errorf("error inserting bulk invoice for member %s: %w", invoices[i].MemberID.String(), err)
		}
		s.enqueueDocRender(ctx, invoices[i].ID)
	}
	if len(invoices) > 0 {
		s.invalidateStatusCache(ctx)
	}
	return invoices, nil
}

// applyTransition persists a mutated invoice and applies any membership term
// extension the transition produced.
func (s *invoiceService) applyTransition(ctx context.Context, inv *models.Invoice, patch *engine.MemberPatch) error {
	_, err := s.db.Collection(invoicesCollection).ReplaceOne(ctx, bson.M{"_id": inv.ID}, inv)
	if err != nil {
		return fmt.Errorf("error updating invoice %s: %w", inv.ID.String(), err)
	}

	if patch != nil {
		_, err = s.db.Collection(membersCollection).UpdateOne(ctx,
			bson.M{"_id": patch.MemberID},
			bson.M{"$set": bson.M{"end_date": patch.EndDate}})
		if err != nil {
			return fmt.Errorf("error extending member %s term: %w", patch.MemberID.String(), err)
		}
	}

	s.invalidateStatusCache(ctx)
	return nil
}

func (s *invoiceService) RecordPayment(ctx context.Context, invoiceID utils.SixID, amount float64, paidDate time.Time, details string) (*models.Invoice, error) {
	inv, err := s.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	updated, patch, err := engine.RecordPayment(*inv, amount, paidDate, details)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, &updated, patch); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *invoiceService) MarkFullyPaid(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	inv, err := s.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	updated, patch, err := engine.MarkFullyPaid(*inv, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, &updated, patch); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *invoiceService) Void(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	inv, err := s.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	updated, err := engine.VoidInvoice(*inv)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, &updated, nil); err != nil {
		return nil, err
	}
	return &updated, nil
}

// OutstandingInvoice returns the member's latest unsettled invoice issued for
// the given financial-year label, or ErrNotFound when every invoice is
// settled or void.
func (s *invoiceService) OutstandingInvoice(ctx context.Context, memberID utils.SixID, fyLabel string) (*models.Invoice, error) {
	invoices, err := s.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	inv := engine.OutstandingInvoice(invoices, memberID, fyLabel)
	if inv == nil {
		return nil, fmt.Errorf("%w: no outstanding invoice for member %s in %s", ErrNotFound, memberID.String(), fyLabel)
	}
	return inv, nil
}

// Summary aggregates projected statuses and invoice totals for a financial
// year.
func (s *invoiceService) Summary(ctx context.Context, fy models.FinancialYear) (*FYSummary, error) {
	cursor, err := s.db.Collection(membersCollection).Find(ctx, bson.M{"is_globally_archived": false})
	if err != nil {
		return nil, fmt.Errorf("error listing members for summary: %w", err)
	}
	var members []models.Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("error decoding members: %w", err)
	}

	invoices, err := s.allInvoices(ctx)
	if err != nil {
		return nil, err
	}

	summary := &FYSummary{
		FinancialYear: fy.Label,
		StatusCounts:  map[models.MemberStatus]int{},
		TotalMembers:  len(members),
	}
	for _, am := range engine.ProjectStatuses(members, invoices, fy, s.clock.Now()) {
		summary.StatusCounts[am.Status]++
	}
	for i := range invoices {
		inv := &invoices[i]
		if inv.FinancialYear.Label != fy.Label || inv.Status == models.InvoiceStatusVoid {
			continue
		}
		summary.AmountInvoiced += inv.Amount
		if inv.Status == models.InvoiceStatusPaid {
			summary.AmountPaid += inv.Amount
		} else {
			summary.AmountPaid += inv.AmountPaid
		}
	}
	return summary, nil
}

// FindOverdueInvoices returns unsettled invoices past their due date that
// have not yet triggered an overdue notice.
func (s *invoiceService) FindOverdueInvoices(ctx context.Context) ([]models.Invoice, error) {
	now := s.clock.Now()
	filter := bson.M{
		"status":           bson.M{"$in": []models.InvoiceStatus{models.InvoiceStatusUnpaid, models.InvoiceStatusPartiallyPaid}},
		"due_date":         bson.M{"$lt": now},
		"overdue_notified": false,
	}
	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error finding overdue invoices: %w", err)
	}
	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("error decoding overdue invoices: %w", err)
	}
	return invoices, nil
}

func (s *invoiceService) MarkInvoiceOverdueNotified(ctx context.Context, invoiceID utils.SixID) error {
	_, err := s.db.Collection(invoicesCollection).UpdateOne(ctx,
		bson.M{"_id": invoiceID},
		bson.M{"$set": bson.M{"overdue_notified": true}})
	if err != nil {
		return fmt.Errorf("error marking invoice %s overdue-notified: %w", invoiceID.String(), err)
	}
	return nil
}

// SetDocumentKey records the storage key of a rendered invoice document.
func (s *invoiceService) SetDocumentKey(ctx context.Context, invoiceID utils.SixID, key string) error {
	_, err := s.db.Collection(invoicesCollection).UpdateOne(ctx,
		bson.M{"_id": invoiceID},
		bson.M{"$set": bson.M{"document_key": key}})
	if err != nil {
		return fmt.Errorf("error setting document key on invoice %s: %w", invoiceID.String(), err)
	}
	return nil
}

func (s *invoiceService) enqueueDocRender(ctx context.Context, invoiceID utils.SixID) {
	if s.taskClient == nil {
		return
	}
	payload, err := json.Marshal(InvoiceDocRenderPayload{InvoiceID: invoiceID.String()})
	if err != nil {
		log.Printf("Error marshalling doc render payload for invoice %s: %v", invoiceID.String(), err)
		return
	}
	task := asynq.NewTask(TypeInvoiceDocRender, payload)
	if _, err := s.taskClient.EnqueueContext(ctx, task, asynq.Queue("docs")); err != nil {
		// Rendering is best effort; the invoice itself is already persisted.
		log.Printf("Error enqueueing doc render for invoice %s: %v", invoiceID.String(), err)
	}
}

func (s *invoiceService) invalidateStatusCache(ctx context.Context) {
	invalidateStatusCache(ctx, s.rdb)
}
