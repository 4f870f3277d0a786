package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/office360/treasury/internal/budget"
	"github.com/office360/treasury/internal/config"
	"github.com/office360/treasury/internal/ledger"
	"github.com/office360/treasury/internal/middleware"
	"github.com/office360/treasury/internal/notification"
	"github.com/office360/treasury/internal/payroll"
	"github.com/office360/treasury/internal/transactions"
	"github.com/office360/treasury/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. Without a
// database the service runs on in-memory backends, which only makes sense
// in development.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var engine ledger.Ledger
	var walletRepo wallet.Repository
	var payrollRepo payroll.Repository
	if d.DB != nil {
		engine = ledger.NewPostgresLedger(d.DB, d.Cfg.LockTimeout)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		payrollRepo = payroll.NewPostgresRepository(d.DB)
	} else {
		engine = ledger.NewInMemoryWithTimeout(d.Cfg.LockTimeout)
		walletRepo = wallet.NewMemoryRepository()
		payrollRepo = payroll.NewMemoryRepository()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	walletSvc := wallet.NewService(walletRepo, engine)
	transactionSvc := transactions.NewService(engine, walletSvc, notifier)
	budgetSvc := budget.NewService(engine)
	payrollSvc := payroll.NewService(payrollRepo, engine, payroll.NewOwnerWalletDirectory(walletSvc), notifier)

	walletHandler := wallet.NewHandler(walletSvc)
	transactionHandler := transactions.NewHandler(transactionSvc)
	budgetHandler := budget.NewHandler(budgetSvc)
	payrollHandler := payroll.NewHandler(payrollSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)
	RegisterTransactionRoutes(api, transactionHandler)
	RegisterBudgetRoutes(api, budgetHandler)
	RegisterPayrollRoutes(api, payrollHandler)

	return nil
}
