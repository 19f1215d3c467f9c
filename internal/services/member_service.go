package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
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

// IMemberService defines the interface for member operations.
type IMemberService interface {
	Create(ctx context.Context, member models.Member) (*models.Member, *models.Invoice, error)
	Update(ctx context.Context, member models.Member) (*models.Member, error)
	FindByID(ctx context.Context, memberID utils.SixID) (*models.Member, error)
	List(ctx context.Context, includeArchived bool) ([]models.Member, error)
	ListWithStatus(ctx context.Context, fy models.FinancialYear) ([]engine.AugmentedMember, error)
	ToggleYearCancellation(ctx context.Context, memberID utils.SixID, fyLabel string) (*models.Member, error)
	Archive(ctx context.Context, memberID utils.SixID) (*models.Member, error)
	Unarchive(ctx context.Context, memberID utils.SixID) (*models.Member, error)
	Delete(ctx context.Context, memberID utils.SixID) error
}

// memberService implements IMemberService.
type memberService struct {
	db           *mongo.Database
	rdb          *redis.Client
	taskClient   *asynq.Client
	levelService ILevelService
	cacheTTL     time.Duration
	clock        engine.Clock
}

// NewMemberService creates a new MemberService. rdb and taskClient may be
// nil; projections are then computed uncached and document rendering is
// skipped.
func NewMemberService(db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client, levelService ILevelService, cacheTTL time.Duration) IMemberService {
	return &memberService{
		db:           db,
		rdb:          rdb,
		taskClient:   taskClient,
		levelService: levelService,
		cacheTTL:     cacheTTL,
		clock:        engine.SystemClock{},
	}
}

func validateMember(member *models.Member) error {
	if strings.TrimSpace(member.Name) == "" {
		return fmt.Errorf("%w: member name is required", ErrValidation)
	}
	if member.MembershipLevelID == (utils.SixID{}) {
		return fmt.Errorf("%w: membership level is required", ErrValidation)
	}
	if member.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	return nil
}

// Create inserts a new member and raises their first invoice in the same
// flow. The membership term initially runs to the end of the financial year
// the start date falls in.
func (s *memberService) Create(ctx context.Context, member models.Member) (*models.Member, *models.Invoice, error) {
	if err := validateMember(&member); err != nil {
		return nil, nil, err
	}

	level, err := s.levelService.FindLevel(ctx, member.MembershipLevelID)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	fy := models.FinancialYearForDate(member.StartDate)
	if member.EndDate.IsZero() {
		member.EndDate = fy.End
	}
	member.CreatedDate = now
	member.Delegates = engine.ReconcileDelegates(member.Delegates, level.DelegateOptions)
	if member.CancelledFinancialYears == nil {
		member.CancelledFinancialYears = []string{}
	}

	err = db.Try(func() error {
		member.GenIDIfEmpty()
		_, insertErr := s.db.Collection(membersCollection).InsertOne(ctx, member)
		if db.IsMongoDuplicateKeyError(insertErr) {
			member.GenID()
		}
		return insertErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error inserting member: %w", err)
	}

	inv := engine.NewMemberInvoice(member, *level, fy, now)
	err = db.Try(func() error {
		inv.GenIDIfEmpty()
		_, insertErr := s.db.Collection(invoicesCollection).InsertOne(ctx, inv)
		if db.IsMongoDuplicateKeyError(insertErr) {
			inv.GenID()
		}
		return insertErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error inserting first invoice for member %s: %w", member.ID.String(), err)
	}

	invalidateStatusCache(ctx, s.rdb)
	s.enqueueDocRender(ctx, inv.ID)
	return &member, &inv, nil
}

// Update replaces a member's editable fields. Delegates are rebuilt against
// the (possibly changed) level's seat allocation, preserving existing names
// per delegate type.
func (s *memberService) Update(ctx context.Context, member models.Member) (*models.Member, error) {
	if err := validateMember(&member); err != nil {
		return nil, err
	}

	existing, err := s.FindByID(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	level, err := s.levelService.FindLevel(ctx, member.MembershipLevelID)
	if err != nil {
		return nil, err
	}

	member.Delegates = engine.ReconcileDelegates(member.Delegates, level.DelegateOptions)
	// Immutable bookkeeping fields carry over from the stored document.
	member.CreatedDate = existing.CreatedDate
	member.IsGloballyArchived = existing.IsGloballyArchived
	member.ArchivedDate = existing.ArchivedDate
	if member.CancelledFinancialYears == nil {
		member.CancelledFinancialYears = existing.CancelledFinancialYears
	}

	_, err = s.db.Collection(membersCollection).ReplaceOne(ctx, bson.M{"_id": member.ID}, member)
	if err != nil {
		return nil, fmt.Errorf("error updating member %s: %w", member.ID.String(), err)
	}

	invalidateStatusCache(ctx, s.rdb)
	return &member, nil
}

func (s *memberService) FindByID(ctx context.Context, memberID utils.SixID) (*models.Member, error) {
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

func (s *memberService) List(ctx context.Context, includeArchived bool) ([]models.Member, error) {
	filter := bson.M{}
	if !includeArchived {
		filter["is_globally_archived"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(membersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}
	var members []models.Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("error decoding members: %w", err)
	}
	return members, nil
}

// ListWithStatus returns every member with their payment status projected
// for the given financial year. Results are cached per label until the next
// member or invoice mutation.
func (s *memberService) ListWithStatus(ctx context.Context, fy models.FinancialYear) ([]engine.AugmentedMember, error) {
	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, statusCacheKey(fy.Label)).Bytes()
		if err == nil {
			var augmented []engine.AugmentedMember
			if jsonErr := json.Unmarshal(cached, &augmented); jsonErr == nil {
				return augmented, nil
			}
			// Corrupt cache entry; fall through and recompute.
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("Error reading status cache for %s: %v", fy.Label, err)
		}
	}

	members, err := s.List(ctx, true)
	if err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing invoices for projection: %w", err)
	}
	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("error decoding invoices: %w", err)
	}

	augmented := engine.ProjectStatuses(members, invoices, fy, s.clock.Now())

	if s.rdb != nil {
		if data, jsonErr := json.Marshal(augmented); jsonErr == nil {
			if err := s.rdb.Set(ctx, statusCacheKey(fy.Label), data, s.cacheTTL).Err(); err != nil {
				log.Printf("Error writing status cache for %s: %v", fy.Label, err)
			}
		}
	}
	return augmented, nil
}

// ToggleYearCancellation flips the member's cancellation for one financial
// year.
func (s *memberService) ToggleYearCancellation(ctx context.Context, memberID utils.SixID, fyLabel string) (*models.Member, error) {
	member, err := s.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	updated := engine.ToggleCancellation(*member, fyLabel)

	_, err = s.db.Collection(membersCollection).UpdateOne(ctx,
		bson.M{"_id": memberID},
		bson.M{"$set": bson.M{"cancelled_financial_years": updated.CancelledFinancialYears}})
	if err != nil {
		return nil, fmt.Errorf("error toggling cancellation for member %s: %w", memberID.String(), err)
	}

	invalidateStatusCache(ctx, s.rdb)
	return &updated, nil
}

func (s *memberService) Archive(ctx context.Context, memberID utils.SixID) (*models.Member, error) {
	now := s.clock.Now()
	return s.setArchived(ctx, memberID, true, &now)
}

func (s *memberService) Unarchive(ctx context.Context, memberID utils.SixID) (*models.Member, error) {
	return s.setArchived(ctx, memberID, false, nil)
}

func (s *memberService) setArchived(ctx context.Context, memberID utils.SixID, archived bool, archivedDate *time.Time) (*models.Member, error) {
	update := bson.M{
		"is_globally_archived": archived,
		"archived_date":        archivedDate,
	}
	res, err := s.db.Collection(membersCollection).UpdateOne(ctx,
		bson.M{"_id": memberID}, bson.M{"$set": update})
	if err != nil {
		return nil, fmt.Errorf("error updating archive state for member %s: %w", memberID.String(), err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, memberID.String())
	}

	invalidateStatusCache(ctx, s.rdb)
	return s.FindByID(ctx, memberID)
}

// Delete removes a member and every invoice ever issued to them.
func (s *memberService) Delete(ctx context.Context, memberID utils.SixID) error {
	res, err := s.db.Collection(membersCollection).DeleteOne(ctx, bson.M{"_id": memberID})
	if err != nil {
		return fmt.Errorf("error deleting member %s: %w", memberID.String(), err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: member %s", ErrNotFound, memberID.String())
	}
	if _, err := s.db.Collection(invoicesCollection).DeleteMany(ctx, bson.M{"member_id": memberID}); err != nil {
		return fmt.Errorf("error deleting invoices for member %s: %w", memberID.String(), err)
	}

	invalidateStatusCache(ctx, s.rdb)
	return nil
}

func (s *memberService) enqueueDocRender(ctx context.Context, invoiceID utils.SixID) {
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
		log.Printf("Error enqueueing doc render for invoice %s: %v", invoiceID.String(), err)
	}
}
