package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eccnsw/memberdesk/internal/auth"
	"eccnsw/memberdesk/internal/config"
	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/models"
)

// ErrInvalidCredentials is returned when the supplied password does not
// match the stored hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	adminCollection    = "admin"
	settingsCollection = "settings"

	// timestampHistoryLimit caps the stored login/logout history.
	timestampHistoryLimit = 10
)

// IAdminService defines the interface for operator account and settings
// operations.
type IAdminService interface {
	EnsureAccount(ctx context.Context) error
	Authenticate(ctx context.Context, password string) (string, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	RecordLogout(ctx context.Context) error
	GetAccount(ctx context.Context) (*models.AdminAccount, error)
	UpdateProfile(ctx context.Context, profile models.AdminProfile) (*models.AdminAccount, error)
	GetSettings(ctx context.Context) (*models.AppSettings, error)
	UpdateSettings(ctx context.Context, settings models.AppSettings) (*models.AppSettings, error)
}

// adminService implements IAdminService.
type adminService struct {
	db    *mongo.Database
	cfg   *config.Config
	clock engine.Clock
}

// NewAdminService creates a new AdminService.
func NewAdminService(db *mongo.Database, cfg *config.Config) IAdminService {
	return &adminService{db: db, cfg: cfg, clock: engine.SystemClock{}}
}

// EnsureAccount creates the singleton operator account and default settings
// on first run.
func (s *adminService) EnsureAccount(ctx context.Context) error {
	count, err := s.db.Collection(adminCollection).CountDocuments(ctx, bson.M{"_id": models.AdminAccountID})
	if err != nil {
		return fmt.Errorf("error checking admin account: %w", err)
	}
	if count == 0 {
		password := s.cfg.DefaultAdminPassword
		if password == "" {
			return fmt.Errorf("DEFAULT_ADMIN_PASSWORD must be set to bootstrap the admin account")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		account := models.AdminAccount{
			ID:           models.AdminAccountID,
			PasswordHash: hash,
			Profile: models.AdminProfile{
				Name:  s.cfg.AdminName,
				Email: s.cfg.AdminEmail,
			},
			LoginTimestamps:  []time.Time{},
			LogoutTimestamps: []time.Time{},
			UpdatedAt:        s.clock.Now(),
		}
		if _, err := s.db.Collection(adminCollection).InsertOne(ctx, account); err != nil {
			return fmt.Errorf("error creating admin account: %w", err)
		}
		log.Println("Created admin account with default password. Change it after first login.")
	}

	count, err = s.db.Collection(settingsCollection).CountDocuments(ctx, bson.M{"_id": models.AppSettingsID})
	if err != nil {
		return fmt.Errorf("error checking settings: %w", err)
	}
	if count == 0 {
		settings := models.AppSettings{ID: models.AppSettingsID}
		if _, err := s.db.Collection(settingsCollection).InsertOne(ctx, settings); err != nil {
			return fmt.Errorf("error creating default settings: %w", err)
		}
	}
	return nil
}

// Authenticate verifies the operator password and returns a signed session
// token. The login timestamp history keeps the latest entries only.
func (s *adminService) Authenticate(ctx context.Context, password string) (string, error) {
	account, err := s.GetAccount(ctx)
	if err != nil {
		return "", err
	}

	if !auth.CheckPasswordHash(password, account.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(models.AdminAccountID, s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return "", err
	}

	if err := s.pushTimestamp(ctx, "login_timestamps"); err != nil {
		// Timestamp history is informational only; authentication stands.
		log.Printf("Error recording login timestamp: %v", err)
	}
	return token, nil
}

// ChangePassword verifies the current password before replacing the hash.
func (s *adminService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	account, err := s.GetAccount(ctx)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(currentPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}
	if len(newPassword) < auth.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, auth.MinPasswordLength)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(adminCollection).UpdateOne(ctx,
		bson.M{"_id": models.AdminAccountID},
		bson.M{"$set": bson.M{"password": hash, "updated_at": s.clock.Now()}})
	if err != nil {
		return fmt.Errorf("error updating admin password: %w", err)
	}
	return nil
}

// RecordLogout appends a logout timestamp to the capped history.
func (s *adminService) RecordLogout(ctx context.Context) error {
	return s.pushTimestamp(ctx, "logout_timestamps")
}

func (s *adminService) pushTimestamp(ctx context.Context, field string) error {
	_, err := s.db.Collection(adminCollection).UpdateOne(ctx,
		bson.M{"_id": models.AdminAccountID},
		bson.M{"$push": bson.M{field: bson.M{
			"$each":  []interface{}{s.clock.Now()},
			"$slice": -timestampHistoryLimit,
		}}})
	if err != nil {
		return fmt.Errorf("error pushing %s: %w", field, err)
	}
	return nil
}

func (s *adminService) GetAccount(ctx context.Context) (*models.AdminAccount, error) {
	var account models.AdminAccount
	err := s.db.Collection(adminCollection).FindOne(ctx, bson.M{"_id": models.AdminAccountID}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: admin account", ErrNotFound)
		}
		return nil, fmt.Errorf("error finding admin account: %w", err)
	}
	return &account, nil
}

func (s *adminService) UpdateProfile(ctx context.Context, profile models.AdminProfile) (*models.AdminAccount, error) {
	_, err := s.db.Collection(adminCollection).UpdateOne(ctx,
		bson.M{"_id": models.AdminAccountID},
		bson.M{"$set": bson.M{"profile": profile, "updated_at": s.clock.Now()}})
	if err != nil {
		return nil, fmt.Errorf("error updating admin profile: %w", err)
	}
	return s.GetAccount(ctx)
}

func (s *adminService) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	err := s.db.Collection(settingsCollection).FindOne(ctx, bson.M{"_id": models.AppSettingsID}).Decode(&settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.AppSettings{ID: models.AppSettingsID}, nil
		}
		return nil, fmt.Errorf("error finding settings: %w", err)
	}
	return &settings, nil
}

func (s *adminService) UpdateSettings(ctx context.Context, settings models.AppSettings) (*models.AppSettings, error) {
	settings.ID = models.AppSettingsID
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(settingsCollection).ReplaceOne(ctx, bson.M{"_id": models.AppSettingsID}, settings, opts)
	if err != nil {
		return nil, fmt.Errorf("error updating settings: %w", err)
	}
	return &settings, nil
}
