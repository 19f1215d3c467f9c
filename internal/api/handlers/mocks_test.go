package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/utils"
)

// --- Mocks ---

// MockMemberService
type MockMemberService struct {
	mock.Mock
}

func (m *MockMemberService) Create(ctx context.Context, member models.Member) (*models.Member, *models.Invoice, error) {
	args := m.Called(ctx, member)
	var created *models.Member
	var invoice *models.Invoice
	if args.Get(0) != nil {
		created = args.Get(0).(*models.Member)
	}
	if args.Get(1) != nil {
		invoice = args.Get(1).(*models.Invoice)
	}
	return created, invoice, args.Error(2)
}

func (m *MockMemberService) Update(ctx context.Context, member models.Member) (*models.Member, error) {
	args := m.Called(ctx, member)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberService) FindByID(ctx context.Context, memberID utils.SixID) (*models.Member, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberService) List(ctx context.Context, includeArchived bool) ([]models.Member, error) {
	args := m.Called(ctx, includeArchived)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Member), args.Error(1)
}

func (m *MockMemberService) ListWithStatus(ctx context.Context, fy models.FinancialYear) ([]engine.AugmentedMember, error) {
	args := m.Called(ctx, fy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]engine.AugmentedMember), args.Error(1)
}

func (m *MockMemberService) ToggleYearCancellation(ctx context.Context, memberID utils.SixID, fyLabel string) (*models.Member, error) {
	args := m.Called(ctx, memberID, fyLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberService) Archive(ctx context.Context, memberID utils.SixID) (*models.Member, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberService) Unarchive(ctx context.Context, memberID utils.SixID) (*models.Member, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberService) Delete(ctx context.Context, memberID utils.SixID) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

// MockInvoiceService
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) FindByID(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ListByMember(ctx context.Context, memberID utils.SixID) ([]models.Invoice, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ListByYear(ctx context.Context, fyLabel string) ([]models.Invoice, error) {
	args := m.Called(ctx, fyLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GenerateSingle(ctx context.Context, memberID utils.SixID, opts engine.SingleInvoiceOptions) (*models.Invoice, error) {
	args := m.Called(ctx, memberID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GenerateBulk(ctx context.Context, opts engine.BulkOptions) ([]models.Invoice, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) RecordPayment(ctx context.Context, invoiceID utils.SixID, amount float64, paidDate time.Time, details string) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID, amount, paidDate, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) MarkFullyPaid(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) Void(ctx context.Context, invoiceID utils.SixID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) OutstandingInvoice(ctx context.Context, memberID utils.SixID, fyLabel string) (*models.Invoice, error) {
	args := m.Called(ctx, memberID, fyLabel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) Summary(ctx context.Context, fy models.FinancialYear) (*services.FYSummary, error) {
	args := m.Called(ctx, fy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FYSummary), args.Error(1)
}

func (m *MockInvoiceService) FindOverdueInvoices(ctx context.Context) ([]models.Invoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) MarkInvoiceOverdueNotified(ctx context.Context, invoiceID utils.SixID) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

func (m *MockInvoiceService) SetDocumentKey(ctx context.Context, invoiceID utils.SixID, key string) error {
	args := m.Called(ctx, invoiceID, key)
	return args.Error(0)
}

// MockLevelService
type MockLevelService struct {
	mock.Mock
}

func (m *MockLevelService) ListGroups(ctx context.Context) ([]models.MembershipGroup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MembershipGroup), args.Error(1)
}

func (m *MockLevelService) CreateGroup(ctx context.Context, group models.MembershipGroup) (*models.MembershipGroup, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MembershipGroup), args.Error(1)
}

func (m *MockLevelService) UpdateGroup(ctx context.Context, group models.MembershipGroup) (*models.MembershipGroup, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MembershipGroup), args.Error(1)
}

func (m *MockLevelService) DeleteGroup(ctx context.Context, groupID utils.SixID) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *MockLevelService) FindLevel(ctx context.Context, levelID utils.SixID) (*models.MembershipLevel, error) {
	args := m.Called(ctx, levelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MembershipLevel), args.Error(1)
}

func (m *MockLevelService) SeedDefaults(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockAdminService
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) EnsureAccount(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAdminService) Authenticate(ctx context.Context, password string) (string, error) {
	args := m.Called(ctx, password)
	return args.String(0), args.Error(1)
}

func (m *MockAdminService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	args := m.Called(ctx, currentPassword, newPassword)
	return args.Error(0)
}

func (m *MockAdminService) RecordLogout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAdminService) GetAccount(ctx context.Context) (*models.AdminAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminAccount), args.Error(1)
}

func (m *MockAdminService) UpdateProfile(ctx context.Context, profile models.AdminProfile) (*models.AdminAccount, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminAccount), args.Error(1)
}

func (m *MockAdminService) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AppSettings), args.Error(1)
}

func (m *MockAdminService) UpdateSettings(ctx context.Context, settings models.AppSettings) (*models.AppSettings, error) {
	args := m.Called(ctx, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AppSettings), args.Error(1)
}

// MockBackupService
type MockBackupService struct {
	mock.Mock
}

func (m *MockBackupService) Export(ctx context.Context) (*services.Backup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Backup), args.Error(1)
}

func (m *MockBackupService) Import(ctx context.Context, raw []byte) error {
	args := m.Called(ctx, raw)
	return args.Error(0)
}

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedLogoPutURL(ctx context.Context, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) UploadObject(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockS3Storage) DownloadObject(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockS3Storage) GeneratePresignedGetURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
