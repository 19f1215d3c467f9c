package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"eccnsw/memberdesk/internal/api"
	"eccnsw/memberdesk/internal/cache"
	"eccnsw/memberdesk/internal/config"
	"eccnsw/memberdesk/internal/db"
	"eccnsw/memberdesk/internal/email"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/storage"
	"eccnsw/memberdesk/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'doc' (invoice documents), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Initialize Email Sender
	compositeSender := email.NewCompositeEmailSender(email.NewSMTPSender(cfg))

	// Optionally add FileEmailSender if LOG_EMAILS is set
	logEmailsPath := os.Getenv("LOG_EMAILS")
	if logEmailsPath != "" {
		log.Printf("LOG_EMAILS set to '%s', enabling file email logger.", logEmailsPath)
		fileSender, err := email.NewFileEmailSender(logEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
		}
	}
	emailSender := email.Sender(compositeSender)

	// First-run bootstrap: admin account, default settings, level catalog.
	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 30*time.Second)
	adminService := services.NewAdminService(mongoDb, cfg)
	if err := adminService.EnsureAccount(bootstrapCtx); err != nil {
		cancelBootstrap()
		log.Fatalf("Failed to bootstrap admin account: %v", err)
	}
	levelService := services.NewLevelService(mongoDb)
	if err := levelService.SeedDefaults(bootstrapCtx); err != nil {
		cancelBootstrap()
		log.Fatalf("Failed to seed level catalog: %v", err)
	}
	cancelBootstrap()

	// Initialize Task Client and worker dependencies
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	invoiceService := services.NewInvoiceService(mongoDb, redisClient, taskClient, levelService)
	memberService := services.NewMemberService(mongoDb, redisClient, taskClient, levelService, cfg.GetCacheTTL)

	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, s3StorageService, invoiceService, memberService, adminService)

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	var mainApiSrv *http.Server
	var backgroundTaskSrv, docTaskSrv *asynq.Server
	var overdueScheduler *asynq.Scheduler

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		mainApiRouter := api.SetupRouter(cfg, mongoDb, redisClient, taskClient)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	runTaskServer := func(name string, srv *asynq.Server, mux *asynq.ServeMux) {
		if srv == nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("%s task server starting...\n", name)
			if err := srv.Run(mux); err != nil {
				log.Fatalf("%s task server error: %v", name, err)
			}
			fmt.Printf("%s task server stopped.\n", name)
		}()
	}

	bgMode := func() {
		fmt.Println("Starting background worker...")
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, false, true)
		backgroundTaskSrv = srv
		runTaskServer("Background", srv, mux)

		overdueScheduler = tasks.NewOverdueCheckScheduler(redisClient)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := overdueScheduler.Run(); err != nil {
				log.Fatalf("Overdue check scheduler error: %v", err)
			}
		}()
	}

	docMode := func() {
		fmt.Println("Starting invoice document worker...")
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, true, false)
		docTaskSrv = srv
		runTaskServer("Document", srv, mux)
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "doc":
		docMode()
	case "all":
		apiMode()
		bgMode()
		docMode()
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	if overdueScheduler != nil {
		fmt.Println("Shutting down overdue check scheduler...")
		overdueScheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		fmt.Println("Shutting down Background task server...")
		backgroundTaskSrv.Shutdown()
	}
	if docTaskSrv != nil {
		fmt.Println("Shutting down Document task server...")
		docTaskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
