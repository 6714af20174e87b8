package routes

import (
    "fmt"
    "log/slog"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/payvost/corebanking/internal/accounts"
    "github.com/payvost/corebanking/internal/config"
    "github.com/payvost/corebanking/internal/ledger"
    "github.com/payvost/corebanking/internal/middleware"
    "github.com/payvost/corebanking/internal/notification"
    "github.com/payvost/corebanking/internal/transfers"
    "github.com/payvost/corebanking/internal/validation"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger
    // Ledger overrides the backend selected from DB.
    Ledger ledger.Ledger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
    if d.Logger == nil {
        d.Logger = slog.Default()
    }
    if !d.Cfg.IsDevelopment() && d.DB == nil && d.Ledger == nil {
        return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
    }

    // Middlewares
    app.Use(recover.New())
    app.Use(middleware.RequestID())
    app.Use(middleware.Audit(d.Logger))

    // Health endpoints stay reachable without credentials.
    RegisterHealthRoutes(app, d)

    ledgerBackend := d.Ledger
    if ledgerBackend == nil {
        if d.DB != nil {
            ledgerBackend = ledger.NewPostgresLedger(d.DB)
        } else {
            d.Logger.Warn("no database configured, using in-memory ledger")
            ledgerBackend = ledger.NewInMemory()
        }
    }

    v := validation.New()
    notifier := notification.NewLoggerNotifier(d.Logger)
    transferSvc := transfers.NewService(ledgerBackend, notifier, d.Logger, d.Cfg.TransferTimeout)
    accountSvc := accounts.NewService(ledgerBackend, d.Logger)

    protected := app.Group("", middleware.APIKey(d.Cfg.APIKey))
    if d.Cache != nil {
        protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
    }

    RegisterTransferRoutes(protected, transfers.NewHandler(transferSvc, v),
        middleware.RateLimit(d.Cache, "transfer", d.Cfg.TransferRateLimit))
    RegisterAccountRoutes(protected, accounts.NewHandler(accountSvc, v))

    return nil
}
