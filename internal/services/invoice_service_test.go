package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

func setupTestDBInvoices(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "members", "invoices", "membership_groups")
}

// invoiceFixture creates a catalog with one level and one member on it.
// The member's on-add invoice comes with them; tests that need a clean
// invoice history delete it themselves.
func invoiceFixture(t *testing.T, db *mongo.Database) (ILevelService, IInvoiceService, *models.Member, models.MembershipLevel) {
	levelSvc := NewLevelService(db)
	memberSvc := NewMemberService(db, nil, nil, levelSvc, time.Minute)
	invoiceSvc := NewInvoiceService(db, nil, nil, levelSvc)

	group, err := levelSvc.CreateGroup(context.Background(), models.MembershipGroup{
		GroupName: "Affiliate",
		Levels: []models.MembershipLevel{
			{Name: "2 Delegates", JoiningFee: 22, AnnualFee: 66, DelegateOptions: models.DelegateOptions{Delegates: 2}},
		},
	})
	require.NoError(t, err)
	level := group.Levels[0]

	member, _, err := memberSvc.Create(context.Background(), models.Member{
		Name:              "Merimbula Grasshoppers",
		MembershipLevelID: level.ID,
		StartDate:         time.Date(2023, time.August, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return levelSvc, invoiceSvc, member, level
}

func TestInvoiceService_GenerateSingle(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_single")
	_, svc, member, level := invoiceFixture(t, db)
	ctx := context.Background()

	inv, err := svc.GenerateSingle(ctx, member.ID, engine.SingleInvoiceOptions{
		FinancialYear: models.FinancialYearForStartYear(2024),
		Level:         level,
		NumberOfYears: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 66.0, inv.Amount)
	assert.Equal(t, models.InvoiceStatusUnpaid, inv.Status)
	assert.Equal(t, "2024-2025", inv.FinancialYear.Label)

	// Waived invoices come out already settled
	waived, err := svc.GenerateSingle(ctx, member.ID, engine.SingleInvoiceOptions{
		FinancialYear: models.FinancialYearForStartYear(2025),
		Level:         level,
		WaiveFee:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, waived.Amount)
	assert.Equal(t, models.InvoiceStatusPaid, waived.Status)
	assert.Contains(t, waived.PaymentDetails, "Membership fee waived.")

	_, err = svc.GenerateSingle(ctx, utils.NewSixID(), engine.SingleInvoiceOptions{
		FinancialYear: models.FinancialYearForStartYear(2024),
		Level:         level,
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvoiceService_PaymentLifecycle(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_payments")
	_, svc, member, level := invoiceFixture(t, db)
	ctx := context.Background()

	inv, err := svc.GenerateSingle(ctx, member.ID, engine.SingleInvoiceOptions{
		FinancialYear: models.FinancialYearForStartYear(2024),
		Level:         level,
	})
	require.NoError(t, err)

	// Partial payment
	paid, err := svc.RecordPayment(ctx, inv.ID, 30,
		time.Date(2024, time.August, 5, 0, 0, 0, 0, time.UTC), "EFT ref 1001")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, paid.Status)
	assert.Equal(t, 30.0, paid.AmountPaid)
	assert.Contains(t, paid.PaymentDetails, "[2024-08-05] Paid $30. EFT ref 1001")

	// Remainder settles it
	paid, err = svc.RecordPayment(ctx, inv.ID, 36,
		time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC), "EFT ref 1002")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, 66.0, paid.AmountPaid)

	// Settled invoices reject voiding
	_, err = svc.Void(ctx, inv.ID)
	assert.True(t, errors.Is(err, engine.ErrInvalidTransition))
}

func TestInvoiceService_MultiYearPaymentExtendsTerm(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_multiyear")
	_, svc, member, level := invoiceFixture(t, db)
	ctx := context.Background()

	inv, err := svc.GenerateSingle(ctx, member.ID, engine.SingleInvoiceOptions{
		FinancialYear: models.FinancialYearForStartYear(2024),
		Level:         level,
		NumberOfYears: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 198.0, inv.Amount)
	assert.Contains(t, inv.Notes, "from 2024-2025 to 2026-2027")

	_, err = svc.MarkFullyPaid(ctx, inv.ID)
	require.NoError(t, err)

	var stored models.Member
	err = db.Collection("members").FindOne(ctx, bson.M{"_id": member.ID}).Decode(&stored)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC), stored.EndDate.UTC())
}

func TestInvoiceService_VoidBlocksFurtherPayments(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_void")
	_, svc, member, level := invoiceFixture(t, db)
	ctx := context.Background()

	inv, err := svc.GenerateSingle(ctx, member.ID, engine.SingleInvoiceOptions{
		FinancialYear: models.FinancialYearForStartYear(2024),
		Level:         level,
	})
	require.NoError(t, err)

	voided, err := svc.Void(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVoid, voided.Status)
	assert.Zero(t, voided.AmountPaid)

	_, err = svc.RecordPayment(ctx, inv.ID, 10, time.Now().UTC(), "too late")
	assert.True(t, errors.Is(err, engine.ErrInvoiceVoid))

	_, err = svc.Void(ctx, inv.ID)
	assert.True(t, errors.Is(err, engine.ErrInvalidTransition))
}

func TestInvoiceService_OutstandingInvoice(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_outstanding")
	_, svc, member, _ := invoiceFixture(t, db)
	ctx := context.Background()

	// The fixture member has an unpaid on-add invoice for 2023-2024
	inv, err := svc.OutstandingInvoice(ctx, member.ID, "2023-2024")
	require.NoError(t, err)
	assert.Equal(t, member.ID, inv.MemberID)

	_, err = svc.MarkFullyPaid(ctx, inv.ID)
	require.NoError(t, err)

	_, err = svc.OutstandingInvoice(ctx, member.ID, "2023-2024")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvoiceService_Summary(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_summary")
	_, svc, member, _ := invoiceFixture(t, db)
	ctx := context.Background()

	// Settle part of the on-add invoice (88 total)
	onAdd, err := svc.OutstandingInvoice(ctx, member.ID, "2023-2024")
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, onAdd.ID, 50, time.Now().UTC(), "cheque")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, models.FinancialYearForStartYear(2023))
	require.NoError(t, err)
	assert.Equal(t, "2023-2024", summary.FinancialYear)
	assert.Equal(t, 1, summary.TotalMembers)
	assert.Equal(t, 1, summary.StatusCounts[models.MemberStatusPartiallyPaid])
	assert.Equal(t, 88.0, summary.AmountInvoiced)
	assert.Equal(t, 50.0, summary.AmountPaid)
}

func TestInvoiceService_GenerateBulk(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_bulk")
	levelSvc, svc, _, level := invoiceFixture(t, db)
	ctx := context.Background()

	memberSvc := NewMemberService(db, nil, nil, levelSvc, time.Minute)
	second, _, err := memberSvc.Create(ctx, models.Member{
		Name:              "Pambula Panthers",
		MembershipLevelID: level.ID,
		StartDate:         time.Date(2022, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	target := models.FinancialYearForStartYear(2024)
	due := time.Date(2024, time.July, 31, 0, 0, 0, 0, time.UTC)
	invoices, err := svc.GenerateBulk(ctx, engine.BulkOptions{
		Mode:       engine.BulkModeAll,
		TargetYear: target,
		ViewedYear: target,
		DueDate:    due,
	})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	for _, inv := range invoices {
		assert.Equal(t, "2024-2025", inv.FinancialYear.Label)
		assert.Equal(t, 66.0, inv.Amount)
		require.NotNil(t, inv.DueDate)
		assert.Equal(t, due, inv.DueDate.UTC())
	}

	// Running the same bulk again generates nothing new
	invoices, err = svc.GenerateBulk(ctx, engine.BulkOptions{
		Mode:       engine.BulkModeAll,
		TargetYear: target,
		ViewedYear: target,
		DueDate:    due,
	})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	listed, err := svc.ListByYear(ctx, "2024-2025")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	byMember, err := svc.ListByMember(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, byMember, 2)
}

func TestInvoiceService_OverdueTracking(t *testing.T) {
	db := setupTestDBInvoices(t, "testdb_invoice_service_overdue")
	_, svc, member, level := invoiceFixture(t, db)
	ctx := context.Background()

	past := time.Now().UTC().AddDate(0, 0, -10)
	inv, err := svc.GenerateSingle(ctx, member.ID, engine.SingleInvoiceOptions{
		FinancialYear: models.FinancialYearForStartYear(2024),
		Level:         level,
		DueDate:       &past,
	})
	require.NoError(t, err)

	overdue, err := svc.FindOverdueInvoices(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(overdue))
	for _, o := range overdue {
		ids = append(ids, o.ID.String())
	}
	assert.Contains(t, ids, inv.ID.String())

	err = svc.MarkInvoiceOverdueNotified(ctx, inv.ID)
	require.NoError(t, err)

	overdue, err = svc.FindOverdueInvoices(ctx)
	require.NoError(t, err)
	for _, o := range overdue {
		assert.NotEqual(t, inv.ID, o.ID)
	}
}
