package routes

import (
    "context"
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/logger"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/yotta-io/tokenledger/internal/account"
    "github.com/yotta-io/tokenledger/internal/auth"
    "github.com/yotta-io/tokenledger/internal/config"
    "github.com/yotta-io/tokenledger/internal/logging"
    "github.com/yotta-io/tokenledger/internal/middleware"
    "github.com/yotta-io/tokenledger/internal/notification"
    "github.com/yotta-io/tokenledger/internal/registry"
    "github.com/yotta-io/tokenledger/internal/token"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger
}

type migrator interface {
    Migrate(ctx context.Context) error
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
    if d.Logger == nil {
        d.Logger = logging.Discard()
    }
    if !d.Cfg.IsDev() {
        if d.DB == nil {
            return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
        }
        if d.Cache == nil {
            return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
        }
    }
    app.Use(recover.New())
    app.Use(middleware.RequestID())
    app.Use(logger.New(logger.Config{
        Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
        TimeFormat: "15:04:05",
        TimeZone:   "Local",
    }))

    RegisterHealthRoutes(app, d)

    var (
        store        token.Store
        accountRepo  account.Repository
        registryRepo registry.Repository
    )
    if d.DB != nil {
        pgStore := token.NewPostgresStore(d.DB)
        pgAccounts := account.NewPostgresRepository(d.DB)
        pgRegistry := registry.NewPostgresRepository(d.DB)
        for _, m := range []migrator{pgAccounts, pgRegistry, pgStore} {
            if err := m.Migrate(context.Background()); err != nil {
                return err
            }
        }
        store, accountRepo, registryRepo = pgStore, pgAccounts, pgRegistry
    } else {
        store = token.NewMemoryStore()
        accountRepo = account.NewMemoryRepository()
        registryRepo = registry.NewMemoryRepository()
    }

    accountSvc := account.NewService(accountRepo)
    registrySvc := registry.NewService(registryRepo, d.Cfg.RegistryAccount, logging.Component(d.Logger, "registry"))

    notifiers := notification.Fanout{notification.NewLoggerNotifier(d.Logger), registrySvc}
    if d.Cache != nil {
        notifiers = append(notifiers, notification.NewRedisNotifier(d.Cache, d.Cfg.EventsChannel))
    }
    ledger, err := token.NewLedger(store, accountSvc, registrySvc,
        token.WithOwner(d.Cfg.OwnerAccount),
        token.WithNotifier(notifiers),
        token.WithLogger(logging.Component(d.Logger, "ledger")),
    )
    if err != nil {
        return err
    }

    authSvc := auth.NewService(d.Cfg, accountSvc)
    authHandler := auth.NewHandler(accountSvc, authSvc)

    api := app.Group("/api/v1")
    api.Get("/ping", func(c *fiber.Ctx) error {
        reqID, _ := c.Locals("X-Request-ID").(string)
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status":     "ok",
            "request_id": reqID,
            "timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
        })
    })

    // Public routes
    RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit))

    // Protected routes
    handlers := []fiber.Handler{middleware.JWTAuth(authSvc), middleware.Audit(d.Logger)}
    if d.Cache != nil {
        handlers = append(handlers, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
    }
    protected := api.Group("", handlers...)
    RegisterProfileRoute(protected, accountSvc)
    RegisterTokenRoutes(protected, token.NewHandler(ledger))
    RegisterRegistryRoutes(protected, registry.NewHandler(registrySvc))

    return nil
}
