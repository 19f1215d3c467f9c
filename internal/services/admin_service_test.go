package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"eccnsw/memberdesk/internal/config"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

func setupTestDBAdmin(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "admin", "settings")
}

func testAdminConfig() *config.Config {
	return &config.Config{
		JwtSecret:            "test-secret-key",
		JwtTTL:               time.Hour,
		DefaultAdminPassword: "changeme123",
		AdminName:            "Administrator",
		AdminEmail:           "admin@example.com",
	}
}

func TestAdminService_EnsureAccountAndAuthenticate(t *testing.T) {
	db := setupTestDBAdmin(t, "testdb_admin_service_auth")
	svc := NewAdminService(db, testAdminConfig())
	ctx := context.Background()

	err := svc.EnsureAccount(ctx)
	require.NoError(t, err)

	account, err := svc.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AdminAccountID, account.ID)
	assert.Equal(t, "Administrator", account.Profile.Name)

	// EnsureAccount is idempotent
	err = svc.EnsureAccount(ctx)
	require.NoError(t, err)

	token, err := svc.Authenticate(ctx, "changeme123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.Authenticate(ctx, "wrong-password")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	// Successful login left a timestamp behind
	account, err = svc.GetAccount(ctx)
	require.NoError(t, err)
	assert.Len(t, account.LoginTimestamps, 1)

	err = svc.RecordLogout(ctx)
	require.NoError(t, err)
	account, err = svc.GetAccount(ctx)
	require.NoError(t, err)
	assert.Len(t, account.LogoutTimestamps, 1)
}

func TestAdminService_EnsureAccountRequiresBootstrapPassword(t *testing.T) {
	db := setupTestDBAdmin(t, "testdb_admin_service_bootstrap")
	cfg := testAdminConfig()
	cfg.DefaultAdminPassword = ""
	svc := NewAdminService(db, cfg)

	err := svc.EnsureAccount(context.Background())
	assert.Error(t, err)
}

func TestAdminService_ChangePassword(t *testing.T) {
	db := setupTestDBAdmin(t, "testdb_admin_service_password")
	svc := NewAdminService(db, testAdminConfig())
	ctx := context.Background()

	require.NoError(t, svc.EnsureAccount(ctx))

	err := svc.ChangePassword(ctx, "wrong-password", "newpassword1")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	err = svc.ChangePassword(ctx, "changeme123", "short")
	assert.True(t, errors.Is(err, ErrValidation))

	err = svc.ChangePassword(ctx, "changeme123", "newpassword1")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "changeme123")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = svc.Authenticate(ctx, "newpassword1")
	assert.NoError(t, err)
}

func TestAdminService_ProfileAndSettings(t *testing.T) {
	db := setupTestDBAdmin(t, "testdb_admin_service_settings")
	svc := NewAdminService(db, testAdminConfig())
	ctx := context.Background()

	require.NoError(t, svc.EnsureAccount(ctx))

	account, err := svc.UpdateProfile(ctx, models.AdminProfile{
		Name:  "Treasurer",
		Email: "treasurer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Treasurer", account.Profile.Name)

	settings, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings.PaymentInstructions)

	settings.PaymentInstructions = "BSB 000-000 Account 12345678"
	updated, err := svc.UpdateSettings(ctx, *settings)
	require.NoError(t, err)
	assert.Equal(t, "BSB 000-000 Account 12345678", updated.PaymentInstructions)

	settings, err = svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BSB 000-000 Account 12345678", settings.PaymentInstructions)
}
