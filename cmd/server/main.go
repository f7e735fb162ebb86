package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/admin"
	"stall-backend/internal/apperr"
	"stall-backend/internal/approval"
	"stall-backend/internal/audit"
	"stall-backend/internal/auth"
	"stall-backend/internal/config"
	"stall-backend/internal/database"
	"stall-backend/internal/fieldcrypt"
	"stall-backend/internal/ledger"
	"stall-backend/internal/logging"
	"stall-backend/internal/metrics"
	"stall-backend/internal/models"
	"stall-backend/internal/settlement"
	"stall-backend/internal/stats"
	"stall-backend/internal/storage/postgres"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.AppEnv, cfg.LogLevel)

	db := database.Init(cfg)

	cipher, err := fieldcrypt.New(cfg.FieldEncryptionKey)
	if err != nil {
		log.Fatalf("field encryption setup failed: %v", err)
	}
	if cfg.FieldEncryptionKey == "" {
		slog.Warn("FIELD_ENCRYPTION_KEY not set, encrypted fields are returned as stored")
	}

	store := postgres.New(db)
	resolver := access.NewResolver(store)

	ledgerSvc := ledger.NewService(store, store, cipher)
	settlementSvc := settlement.NewService(store, store, cipher)
	approvalSvc := approval.NewService(store, store, cipher)
	statsSvc := stats.NewService(store)

	app := fiber.New(fiber.Config{
		AppName: "stall-backend",
		ErrorHandler: apperr.ErrorHandler(!cfg.IsProduction(), func(c *fiber.Ctx, err error) {
			slog.ErrorContext(c.UserContext(), "unexpected error",
				"path", c.Path(),
				"request_id", c.Locals(logging.CtxRequestIDKey),
				"error", err,
			)
		}),
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(corsOrigins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + logging.RequestIDHeader,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		ExposeHeaders: logging.RequestIDHeader,
	}))
	app.Use(logging.Middleware(apperr.StatusCode))
	app.Use(logging.Deadline(cfg.RequestTimeout))
	app.Use(metrics.Middleware())

	app.Get("/metrics", metrics.Handler())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	loginLimiter := auth.NewLoginLimiter(cfg.LoginRatePerMinute)
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler())
	api.Post("/auth/login", loginLimiter.Middleware(), auth.LoginHandler(cfg))

	// Protected; scope is resolved on every request
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret), auth.ScopeMiddleware(resolver))

	protected.Get("/auth/me", auth.MeHandler())

	// Payments
	protected.Post("/payments/onsite", ledger.RecordOnsitePaymentHandler(ledgerSvc))
	protected.Post("/payments/online", ledger.SubmitOnlinePaymentHandler(ledgerSvc))
	protected.Get("/payments", ledger.ListPaymentsHandler(ledgerSvc))
	protected.Get("/payments/export", ledger.ExportPaymentsHandler(ledgerSvc))
	protected.Get("/payments/pending", approval.ListPendingHandler(approvalSvc))
	protected.Get("/payments/stats", stats.PaymentStatsHandler(statsSvc))

	reviewers := auth.RequireRole(models.RoleSuperAdmin, models.RoleBranchManager)
	protected.Post("/payments/:id/approve", reviewers, approval.ApproveHandler(approvalSvc))
	protected.Post("/payments/:id/decline", reviewers, approval.DeclineHandler(approvalSvc))

	// Violations
	protected.Get("/violations/unpaid", settlement.ListUnpaidViolationsHandler(settlementSvc))
	protected.Get("/violations/stats", stats.PenaltyStatsHandler(statsSvc))
	protected.Post("/violations/:id/settle", settlement.SettleViolationHandler(settlementSvc))

	// Audit trail
	protected.Get("/audit-logs", reviewers, audit.ListAuditLogsHandler(store))

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	adminRoutes.Post("/branches", admin.CreateBranchHandler(store))
	adminRoutes.Get("/branches", admin.ListBranchesHandler())
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler())
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler())
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler())
	adminRoutes.Post("/branches/:id/managers", admin.CreateBranchManagerHandler(store))
	adminRoutes.Get("/branches/:id/managers", admin.ListBranchManagersHandler())

	adminRoutes.Post("/employees", admin.CreateEmployeeHandler(store))
	adminRoutes.Get("/employees", admin.ListEmployeesHandler())
	adminRoutes.Put("/employees/:id/branches", admin.AssignEmployeeBranchesHandler())

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()
	slog.Info("server listening", "port", cfg.HTTPPort, "env", cfg.AppEnv)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
