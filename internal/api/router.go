package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"eccnsw/memberdesk/internal/api/handlers"
	"eccnsw/memberdesk/internal/api/middleware"
	"eccnsw/memberdesk/internal/config"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client) *gin.Engine {
	// Initialize services needed by API handlers
	levelService := services.NewLevelService(db)
	memberService := services.NewMemberService(db, rdb, taskClient, levelService, cfg.GetCacheTTL)
	invoiceService := services.NewInvoiceService(db, rdb, taskClient, levelService)
	adminService := services.NewAdminService(db, cfg)
	backupService := services.NewBackupService(db, adminService)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	memberHandler := handlers.NewMemberHandler(memberService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService, levelService, s3StorageService)
	levelHandler := handlers.NewLevelHandler(levelService, cfg)
	adminHandler := handlers.NewAdminHandler(adminService, s3StorageService, taskClient)
	backupHandler := handlers.NewBackupHandler(backupService)

	v1 := r.Group("/v1")
	{
		// Public routes
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(200, gin.H{"message": "pong"})
		})
		v1.POST("/login", adminHandler.Login)

		// Everything else requires an authenticated operator session.
		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authed.POST("/logout", adminHandler.Logout)
			authed.POST("/password", adminHandler.ChangePassword)
			authed.GET("/profile", adminHandler.GetProfile)
			authed.PUT("/profile", adminHandler.UpdateProfile)
			authed.GET("/settings", adminHandler.GetSettings)
			authed.PUT("/settings", adminHandler.UpdateSettings)
			authed.POST("/settings/logo", adminHandler.RequestLogoUpload)
			authed.POST("/settings/logo/complete", adminHandler.CompleteLogoUpload)

			authed.GET("/financial-years", levelHandler.ListFinancialYears)

			authed.GET("/members", memberHandler.ListMembers)
			authed.POST("/members", memberHandler.CreateMember)
			authed.GET("/members/:id", memberHandler.GetMember)
			authed.PUT("/members/:id", memberHandler.UpdateMember)
			authed.DELETE("/members/:id", memberHandler.DeleteMember)
			authed.POST("/members/:id/cancellation/:label", memberHandler.ToggleCancellation)
			authed.POST("/members/:id/archive", memberHandler.ArchiveMember)
			authed.POST("/members/:id/unarchive", memberHandler.UnarchiveMember)
			authed.GET("/members/:id/invoices", invoiceHandler.ListMemberInvoices)
			authed.GET("/members/:id/outstanding", invoiceHandler.GetOutstandingInvoice)

			authed.GET("/levels", levelHandler.ListGroups)
			authed.POST("/levels", levelHandler.CreateGroup)
			authed.PUT("/levels/:id", levelHandler.UpdateGroup)
			authed.DELETE("/levels/:id", levelHandler.DeleteGroup)

			authed.GET("/invoices", invoiceHandler.ListInvoices)
			authed.POST("/invoices", invoiceHandler.GenerateInvoice)
			authed.POST("/invoices/bulk", invoiceHandler.GenerateBulkInvoices)
			authed.GET("/invoices/:id", invoiceHandler.GetInvoice)
			authed.POST("/invoices/:id/payments", invoiceHandler.RecordPayment)
			authed.POST("/invoices/:id/mark-paid", invoiceHandler.MarkFullyPaid)
			authed.POST("/invoices/:id/void", invoiceHandler.VoidInvoice)
			authed.GET("/invoices/:id/document", invoiceHandler.GetInvoiceDocument)

			authed.GET("/dashboard/summary", invoiceHandler.GetSummary)

			authed.GET("/backup/export", backupHandler.Export)
			authed.POST("/backup/import", backupHandler.Import)
		}
	}

	return r
}
