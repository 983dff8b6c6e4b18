package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"growth-ledger/internal/auth"
	"growth-ledger/internal/config"
	"growth-ledger/internal/database"
	"growth-ledger/internal/handlers"
	"growth-ledger/internal/jobs"
	"growth-ledger/internal/notifications"
	"growth-ledger/internal/repository"
	"growth-ledger/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Policy cache (optional)
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	if rdb == nil {
		log.Println("REDIS_ADDR not set, policy cache disabled")
	}

	// Token signing
	signer := auth.NewTokenSigner(cfg.App.ReferralTokenSecret, cfg.App.ReferralTokenTTL)
	adminSigner := auth.NewTokenSigner(cfg.App.AdminTokenSecret, 0)

	// Email delivery
	var sender services.EmailSender
	if brevo := notifications.NewBrevoService(
		cfg.Email.BrevoAPIKey,
		cfg.Email.SenderEmail,
		cfg.Email.SenderName,
		cfg.Email.Templates,
	); brevo != nil {
		sender = brevo
	}

	// Initialize repository
	repo := repository.NewRepository(database.GetDB())

	// Initialize services
	clock := services.SystemClock
	policyService := services.NewPolicyService(repo, rdb, cfg.Redis.PolicyCacheTTL)
	identityService := services.NewIdentityService(repo, clock)
	ledgerService := services.NewLedgerService(repo, clock)
	admissionService := services.NewAdmissionService(repo, identityService, clock)
	claimService := services.NewClaimService(repo, ledgerService, admissionService, signer, cfg.App.Location, clock)
	grantService := services.NewDailyGrantService(repo, ledgerService, clock)
	invitationService := services.NewInvitationService(repo, sender, cfg.App.InviteCodeTTL, cfg.Email.InviteURLBase, clock)

	growthService := services.NewGrowthService(services.GrowthDeps{
		Repo:       repo,
		Policies:   policyService,
		Identities: identityService,
		Ledger:     ledgerService,
		Admission:  admissionService,
		Claims:     claimService,
		Grants:     grantService,
		Verifier:   signer,
		Timeout:    cfg.Server.RequestTimeout,
	})

	// Initialize handlers
	growthHandler := handlers.NewGrowthHandler(growthService)
	adminHandler := handlers.NewAdminHandler(growthService, policyService, invitationService)

	// Start batch invitation job
	batchInviter := jobs.NewBatchInviter(invitationService, cfg.App.InviteCron, cfg.App.Location)
	if err := batchInviter.Start(); err != nil {
		log.Fatalf("Failed to start batch inviter: %v", err)
	}

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000", // Local development
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if cfg.Server.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.Server.FrontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, growthHandler, adminHandler, adminSigner)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	batchInviter.Stop()

	if rdb != nil {
		rdb.Close()
	}

	log.Println("Server exited")
}
