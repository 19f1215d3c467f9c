package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testLevel(name string, joining, annual float64) models.MembershipLevel {
	return models.MembershipLevel{
		ID:         utils.NewSixID(),
		Name:       name,
		JoiningFee: joining,
		AnnualFee:  annual,
	}
}

func testMember(start time.Time, level models.MembershipLevel) models.Member {
	m := models.Member{
		Name:              "Sydney Community Group",
		MembershipLevelID: level.ID,
		StartDate:         start,
		EndDate:           start.AddDate(1, 0, 0).AddDate(0, 0, -1),
		ContactName:       "Jane Doe",
		Telephone:         "0298765432",
		CreatedDate:       start,
	}
	m.GenID()
	return m
}

func testInvoice(member models.Member, level models.MembershipLevel, fy models.FinancialYear, status models.InvoiceStatus, issued time.Time) models.Invoice {
	inv := models.Invoice{
		MemberID:             member.ID,
		FinancialYear:        fy,
		LevelAtTimeOfInvoice: level,
		Date:                 issued,
		Amount:               level.AnnualFee,
		Status:               status,
		NumberOfYears:        1,
	}
	if status == models.InvoiceStatusPaid {
		inv.AmountPaid = inv.Amount
	}
	inv.GenID()
	return inv
}

func TestProjectStatus_NoInvoiceWithinGracePeriodIsPending(t *testing.T) {
	level := testLevel("Individual Member", 8, 22)
	member := testMember(date(2023, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	got := ProjectStatus(member, nil, fy, date(2023, time.July, 15))
	assert.Equal(t, models.MemberStatusPending, got.Status)
	assert.False(t, got.HasInvoice)
}

func TestProjectStatus_NoInvoicePastGracePeriodIsUnpaid(t *testing.T) {
	level := testLevel("Individual Member", 8, 22)
	member := testMember(date(2023, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	got := ProjectStatus(member, nil, fy, date(2023, time.September, 1))
	assert.Equal(t, models.MemberStatusUnpaid, got.Status)
}

func TestProjectStatus_FutureYearIsPending(t *testing.T) {
	level := testLevel("Individual Member", 8, 22)
	member := testMember(date(2023, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2025)

	got := ProjectStatus(member, nil, fy, date(2023, time.September, 1))
	assert.Equal(t, models.MemberStatusPending, got.Status)
}

func TestProjectStatus_FullyElapsedPastYearIsUnpaid(t *testing.T) {
	level := testLevel("Individual Member", 8, 22)
	member := testMember(date(2019, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2019)

	got := ProjectStatus(member, nil, fy, date(2024, time.March, 10))
	assert.Equal(t, models.MemberStatusUnpaid, got.Status)
}

func TestProjectStatus_AnyPaidCoveringInvoiceWins(t *testing.T) {
	level := testLevel("Organisation 2 Delegates", 22, 66)
	member := testMember(date(2022, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	paid := testInvoice(member, level, fy, models.InvoiceStatusPaid, date(2023, time.July, 5))
	newerUnpaid := testInvoice(member, level, fy, models.InvoiceStatusUnpaid, date(2023, time.August, 1))

	got := ProjectStatus(member, []models.Invoice{paid, newerUnpaid}, fy, date(2023, time.December, 1))
	assert.Equal(t, models.MemberStatusPaid, got.Status)
	assert.True(t, got.HasInvoice)
}

func TestProjectStatus_PartialBeatsUnpaid(t *testing.T) {
	level := testLevel("Organisation 1 Delegate", 11, 33)
	member := testMember(date(2022, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	unpaid := testInvoice(member, level, fy, models.InvoiceStatusUnpaid, date(2023, time.July, 5))
	partial := testInvoice(member, level, fy, models.InvoiceStatusPartiallyPaid, date(2023, time.July, 2))

	got := ProjectStatus(member, []models.Invoice{unpaid, partial}, fy, date(2023, time.December, 1))
	assert.Equal(t, models.MemberStatusPartiallyPaid, got.Status)
}

func TestProjectStatus_CoveringUnpaidInvoiceIsUnpaidEvenInGrace(t *testing.T) {
	level := testLevel("Organisation 1 Delegate", 11, 33)
	member := testMember(date(2023, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	unpaid := testInvoice(member, level, fy, models.InvoiceStatusUnpaid, date(2023, time.July, 2))

	got := ProjectStatus(member, []models.Invoice{unpaid}, fy, date(2023, time.July, 10))
	assert.Equal(t, models.MemberStatusUnpaid, got.Status)
	assert.True(t, got.HasInvoice)
}

func TestProjectStatus_MultiYearInvoiceCoversLaterYears(t *testing.T) {
	level := testLevel("Corporate Member", 200, 500)
	member := testMember(date(2023, time.July, 1), level)
	start := models.FinancialYearForStartYear(2023)

	inv := testInvoice(member, level, start, models.InvoiceStatusPaid, date(2023, time.July, 10))
	inv.NumberOfYears = 3
	invoices := []models.Invoice{inv}

	for _, startYear := range []int{2023, 2024, 2025} {
		fy := models.FinancialYearForStartYear(startYear)
		got := ProjectStatus(member, invoices, fy, date(2026, time.January, 1))
		assert.Equal(t, models.MemberStatusPaid, got.Status, "FY %s", fy.Label)
	}

	beyond := models.FinancialYearForStartYear(2026)
	got := ProjectStatus(member, invoices, beyond, date(2027, time.January, 1))
	assert.Equal(t, models.MemberStatusUnpaid, got.Status)
	assert.False(t, got.HasInvoice)
}

func TestProjectStatus_VoidedInvoiceIsIgnored(t *testing.T) {
	level := testLevel("Organisation 2 Delegates", 22, 66)
	member := testMember(date(2022, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	inv := testInvoice(member, level, fy, models.InvoiceStatusPartiallyPaid, date(2023, time.July, 5))
	now := date(2023, time.December, 1)

	before := ProjectStatus(member, []models.Invoice{inv}, fy, now)
	assert.Equal(t, models.MemberStatusPartiallyPaid, before.Status)

	voided, err := VoidInvoice(inv)
	require.NoError(t, err)

	after := ProjectStatus(member, []models.Invoice{voided}, fy, now)
	assert.Equal(t, models.MemberStatusUnpaid, after.Status)
	assert.False(t, after.HasInvoice)

	none := ProjectStatus(member, nil, fy, now)
	assert.Equal(t, none.Status, after.Status)
}

func TestProjectStatus_LatestCoveringInvoiceOverridesLevel(t *testing.T) {
	oldLevel := testLevel("Organisation 1 Delegate", 11, 33)
	newLevel := testLevel("Organisation 3 Delegates", 33, 99)
	member := testMember(date(2022, time.July, 1), oldLevel)
	fy := models.FinancialYearForStartYear(2023)

	older := testInvoice(member, oldLevel, fy, models.InvoiceStatusPaid, date(2023, time.July, 1))
	newer := testInvoice(member, newLevel, fy, models.InvoiceStatusUnpaid, date(2023, time.August, 1))

	got := ProjectStatus(member, []models.Invoice{older, newer}, fy, date(2023, time.December, 1))
	assert.Equal(t, newLevel.ID, got.MembershipLevelID)
	// The member record itself keeps its stored level.
	assert.Equal(t, oldLevel.ID, member.MembershipLevelID)
}

func TestProjectStatuses_ProjectsEveryMember(t *testing.T) {
	level := testLevel("Individual Member", 8, 22)
	a := testMember(date(2023, time.July, 1), level)
	b := testMember(date(2023, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	paid := testInvoice(a, level, fy, models.InvoiceStatusPaid, date(2023, time.July, 3))

	got := ProjectStatuses([]models.Member{a, b}, []models.Invoice{paid}, fy, date(2023, time.October, 1))
	require.Len(t, got, 2)
	assert.Equal(t, models.MemberStatusPaid, got[0].Status)
	assert.Equal(t, models.MemberStatusUnpaid, got[1].Status)
}

func TestOutstandingInvoice_PicksLatestUnsettledForYear(t *testing.T) {
	level := testLevel("Organisation 1 Delegate", 11, 33)
	member := testMember(date(2022, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	paid := testInvoice(member, level, fy, models.InvoiceStatusPaid, date(2023, time.August, 1))
	older := testInvoice(member, level, fy, models.InvoiceStatusUnpaid, date(2023, time.July, 1))
	voided := testInvoice(member, level, fy, models.InvoiceStatusVoid, date(2023, time.September, 1))

	got := OutstandingInvoice([]models.Invoice{paid, older, voided}, member.ID, fy.Label)
	require.NotNil(t, got)
	assert.Equal(t, older.ID, got.ID)
}

func TestOutstandingInvoice_NothingOwing(t *testing.T) {
	level := testLevel("Organisation 1 Delegate", 11, 33)
	member := testMember(date(2022, time.July, 1), level)
	fy := models.FinancialYearForStartYear(2023)

	paid := testInvoice(member, level, fy, models.InvoiceStatusPaid, date(2023, time.August, 1))

	assert.Nil(t, OutstandingInvoice([]models.Invoice{paid}, member.ID, fy.Label))
	assert.Nil(t, OutstandingInvoice(nil, member.ID, fy.Label))
}
