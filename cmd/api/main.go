package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/internal/config"
	"github.com/smartpay/smartpay-api/internal/domain/auth"
	"github.com/smartpay/smartpay-api/internal/domain/user"
	"github.com/smartpay/smartpay-api/internal/domain/wallet"
	"github.com/smartpay/smartpay-api/internal/middleware"
	"github.com/smartpay/smartpay-api/internal/pkg/database"
	"github.com/smartpay/smartpay-api/internal/pkg/idempotency"
	"github.com/smartpay/smartpay-api/internal/pkg/jwt"
	"github.com/smartpay/smartpay-api/internal/pkg/logger"
	"github.com/smartpay/smartpay-api/internal/pkg/metrics"
	pkgresponse "github.com/smartpay/smartpay-api/internal/pkg/response"
	"github.com/smartpay/smartpay-api/internal/pkg/revocation"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Pretty:      cfg.IsDevelopment(),
		LogFile:     cfg.LogFile,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting SmartPay API")

	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)

		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = database.Migrate(migrateCtx, db)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	} else {
		log.Warn().Msg("DATABASE_URL is empty, using in-memory stores")
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	app := newApp(cfg, db, redisClient)
	defer app.Close()

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     app.router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the wallet feed holds connections open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type app struct {
	router http.Handler
	hub    *wallet.Hub
	worker *wallet.PeriodWorker
}

func (a *app) Close() {
	a.worker.Stop()
	a.hub.Shutdown()
}

// newApp wires stores, services and routes. A nil db selects the in-memory stores;
// a nil redis client keeps revocation, idempotency and the live feed in process.
func newApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) *app {
	loc := cfg.Location()

	// ---------- Stores ----------
	var (
		userRepo    user.Repository
		walletStore wallet.Store
	)
	if db != nil {
		userRepo = user.NewRepository(db)
		walletStore = wallet.NewRepository(db, cfg.WalletLockTimeout)
	} else {
		memWallets := wallet.NewMemoryStore(cfg.WalletLockTimeout)
		userRepo = user.NewMemoryRepository(memWallets)
		walletStore = memWallets
	}
	revoked := revocation.New(redisClient)
	idemStore := idempotency.New(redisClient)

	// ---------- Services ----------
	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := auth.NewService(userRepo, jwtService, revoked, loc)
	walletService := wallet.NewService(walletStore, userRepo, wallet.Config{
		Location:     loc,
		MaxListLimit: cfg.TransactionsMaxLimit,
	})

	hub := wallet.NewHub(redisClient)
	go hub.Run()
	walletService.SetPublisher(hub)

	worker := wallet.NewPeriodWorker(walletStore, walletService.CurrentPeriod, cfg.PeriodSweepInterval)
	worker.Start()

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	walletHandler := wallet.NewHandler(walletService, hub, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService, revoked)
	idempotent := middleware.Idempotent(idemStore, cfg.IdempotencyTTL)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Mount("/users", authHandler.Routes(authMiddleware))
		r.Mount("/wallet", walletHandler.Routes(authMiddleware, idempotent))
	})

	return &app{router: r, hub: hub, worker: worker}
}
