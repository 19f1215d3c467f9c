package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/models"
)

// ErrImportFormat is returned when an uploaded backup cannot be decoded or
// is missing required sections. Nothing is written in that case.
var ErrImportFormat = errors.New("unrecognized backup format")

// backupVersion tags exported files so future format changes stay detectable.
const backupVersion = 1

// BackupData is the portable snapshot of everything the application stores.
type BackupData struct {
	Members          []models.Member          `json:"members"`
	Invoices         []models.Invoice         `json:"invoices"`
	MembershipLevels []models.MembershipGroup `json:"membership_levels"`
	AdminPassword    string                   `json:"admin_password"`
	AdminProfile     models.AdminProfile      `json:"admin_profile"`
	Settings         models.AppSettings       `json:"settings"`
}

// Backup is the envelope written to an export file.
type Backup struct {
	Version    int        `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Data       BackupData `json:"data"`
}

// IBackupService defines the interface for full-database export and import.
type IBackupService interface {
	Export(ctx context.Context) (*Backup, error)
	Import(ctx context.Context, raw []byte) error
}

// backupService implements IBackupService.
type backupService struct {
	db           *mongo.Database
	adminService IAdminService
	clock        engine.Clock
}

// NewBackupService creates a new BackupService.
func NewBackupService(db *mongo.Database, adminService IAdminService) IBackupService {
	return &backupService{db: db, adminService: adminService, clock: engine.SystemClock{}}
}

// Export snapshots every collection into one portable document.
func (s *backupService) Export(ctx context.Context) (*Backup, error) {
	var data BackupData

	cursor, err := s.db.Collection(membersCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error exporting members: %w", err)
	}
	if err := cursor.All(ctx, &data.Members); err != nil {
		return nil, fmt.Errorf("error decoding members for export: %w", err)
	}

	cursor, err = s.db.Collection(invoicesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error exporting invoices: %w", err)
	}
	if err := cursor.All(ctx, &data.Invoices); err != nil {
		return nil, fmt.Errorf("error decoding invoices for export: %w", err)
	}

	cursor, err = s.db.Collection(membershipGroupsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error exporting membership groups: %w", err)
	}
	if err := cursor.All(ctx, &data.MembershipLevels); err != nil {
		return nil, fmt.Errorf("error decoding membership groups for export: %w", err)
	}

	account, err := s.adminService.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	data.AdminPassword = account.PasswordHash
	data.AdminProfile = account.Profile

	settings, err := s.adminService.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	data.Settings = *settings

	if data.Members == nil {
		data.Members = []models.Member{}
	}
	if data.Invoices == nil {
		data.Invoices = []models.Invoice{}
	}
	if data.MembershipLevels == nil {
		data.MembershipLevels = []models.MembershipGroup{}
	}

	return &Backup{
		Version:    backupVersion,
		ExportedAt: s.clock.Now(),
		Data:       data,
	}, nil
}

// Import decodes and validates a backup fully before touching the database,
// then replaces every collection with its contents.
func (s *backupService) Import(ctx context.Context, raw []byte) error {
	var backup Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		return fmt.Errorf("%w: %v", ErrImportFormat, err)
	}

	// A structurally valid file must carry both core sections, even if they
	// decoded empty. A null members or invoices array means this is not one
	// of our backups.
	var probe struct {
		Data struct {
			Members  json.RawMessage `json:"members"`
			Invoices json.RawMessage `json:"invoices"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrImportFormat, err)
	}
	if len(probe.Data.Members) == 0 || string(probe.Data.Members) == "null" ||
		len(probe.Data.Invoices) == 0 || string(probe.Data.Invoices) == "null" {
		return fmt.Errorf("%w: missing members or invoices section", ErrImportFormat)
	}

	data := backup.Data

	if err := s.replaceCollection(ctx, membersCollection, toDocs(data.Members)); err != nil {
		return err
	}
	if err := s.replaceCollection(ctx, invoicesCollection, toDocs(data.Invoices)); err != nil {
		return err
	}
	if err := s.replaceCollection(ctx, membershipGroupsCollection, toDocs(data.MembershipLevels)); err != nil {
		return err
	}

	if data.AdminPassword != "" {
		_, err := s.db.Collection(adminCollection).UpdateOne(ctx,
			bson.M{"_id": models.AdminAccountID},
			bson.M{"$set": bson.M{
				"password":   data.AdminPassword,
				"profile":    data.AdminProfile,
				"updated_at": s.clock.Now(),
			}})
		if err != nil {
			return fmt.Errorf("error importing admin account: %w", err)
		}
	}

	if _, err := s.adminService.UpdateSettings(ctx, data.Settings); err != nil {
		return err
	}
	return nil
}

func (s *backupService) replaceCollection(ctx context.Context, name string, docs []interface{}) error {
	coll := s.db.Collection(name)
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("error clearing %s for import: %w", name, err)
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error importing %s: %w", name, err)
	}
	return nil
}

func toDocs[T any](items []T) []interface{} {
	docs := make([]interface{}, len(items))
	for i := range items {
		docs[i] = items[i]
	}
	return docs
}
