package main

import (
	"context"
	"log"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/application/collaborator"
	"github.com/dukasoft/tillpoint-api/internal/application/service"
	"github.com/dukasoft/tillpoint-api/internal/application/sideeffect"
	"github.com/dukasoft/tillpoint-api/internal/config"
	"github.com/dukasoft/tillpoint-api/internal/infrastructure/database"
	"github.com/dukasoft/tillpoint-api/internal/infrastructure/repository"
	"github.com/dukasoft/tillpoint-api/internal/locking"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/handler"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/routes"
	"github.com/dukasoft/tillpoint-api/pkg/printer"
	"github.com/dukasoft/tillpoint-api/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Structured JSON logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.App.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed default data
	if err := database.SeedDefaultData(db); err != nil {
		log.Printf("Warning: Failed to seed default data: %v", err)
	}

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiryHours,
		cfg.JWT.RefreshExpiryHours,
	)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	periodRepo := repository.NewWorkPeriodRepository(db)
	payoutRepo := repository.NewCashPayoutRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	grantRepo := repository.NewOverrideGrantRepository(db)
	reportRepo := repository.NewReportRepository(db)
	sideEffectRepo := repository.NewSideEffectRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	// Initialize receipt printer
	device, err := printer.NewPrinterFromConfig(cfg.Printer.Type, cfg.Printer.Device, cfg.Printer.Address)
	if err != nil {
		log.Printf("Warning: Failed to initialize printer: %v", err)
		device = printer.NewNullPrinter()
	}

	// Collaborators
	inventory := collaborator.NewStockInventory(productRepo)
	ticketPrinter := collaborator.NewLinePrinter(device)
	gateway := collaborator.NewLoggingGateway(logger)
	notifier := collaborator.NewLoggingNotifier(logger)

	// Side effect dispatcher
	dispatcher := sideeffect.NewDispatcher(sideEffectRepo, ticketPrinter, notifier, logger, sideeffect.DefaultRetryConfig())

	// Coordination primitives shared by the ledger and period services
	receiptLocks := locking.NewKeyedMutex()
	periodGate := locking.NewPeriodGate()

	// Initialize services
	auditService := service.NewAuditService(auditRepo, logger)
	guardService := service.NewGuardService(grantRepo, userRepo, auditService)
	settlementService := service.NewSettlementService(paymentRepo, gateway, auditService, logger)
	reportService := service.NewReportService(reportRepo, receiptRepo, orderRepo, paymentRepo, payoutRepo, periodRepo, auditService, logger)
	ledgerService := service.NewLedgerService(
		receiptRepo, orderRepo, periodRepo, productRepo,
		inventory, settlementService, guardService, auditService,
		dispatcher, receiptLocks, periodGate, logger,
		service.LedgerPolicies{
			SettlementMode:  cfg.Ledger.SettlementMode,
			VoidPolicy:      cfg.Ledger.VoidPolicy,
			AllowOversell:   cfg.Ledger.AllowOversell,
			ConflictRetries: cfg.Ledger.ConflictRetries,
			VATBasisPoints:  cfg.Ledger.VATBasisPoints,
		},
	)
	periodService := service.NewWorkPeriodService(
		periodRepo, payoutRepo, receiptRepo, paymentRepo,
		reportService, guardService, auditService, periodGate, logger,
		service.PeriodPolicies{
			ClosePolicy: cfg.Ledger.ClosePolicy,
			CloseWait:   time.Duration(cfg.Ledger.CloseWaitMs) * time.Millisecond,
		},
	)
	authService := service.NewAuthService(userRepo, jwtManager)
	productService := service.NewProductService(productRepo)

	// Drain the side effect queue in the background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	// Expired idempotency keys pile up fast on a busy till; sweep hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := idempotencyRepo.DeleteExpired(ctx); err != nil {
					logger.WithError(err).Warn("idempotency key sweep failed")
				}
			}
		}
	}()

	// Initialize handlers
	handlers := &routes.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		WorkPeriod: handler.NewWorkPeriodHandler(periodService),
		Receipt:    handler.NewReceiptHandler(ledgerService, guardService),
		Payment:    handler.NewPaymentHandler(settlementService, ledgerService),
		Report:     handler.NewReportHandler(reportService),
		Audit:      handler.NewAuditHandler(auditService),
		Product:    handler.NewProductHandler(productService),
	}

	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		Logger:          logger,
		IdempotencyRepo: idempotencyRepo,
	})

	logger.WithFields(logrus.Fields{
		"port": cfg.App.Port,
		"env":  cfg.App.Env,
	}).Info("starting server")
	if err := router.Run(":" + cfg.App.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
