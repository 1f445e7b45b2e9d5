package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/auth-gateway/internal/auth"
	"github.com/ayush/auth-gateway/internal/config"
	"github.com/ayush/auth-gateway/internal/logger"
	"github.com/ayush/auth-gateway/internal/metrics"
	"github.com/ayush/auth-gateway/internal/middleware"
	"github.com/ayush/auth-gateway/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── Credential store ─────────────────────────────────────
	users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fatal("store", err)
	}
	defer closeStore()

	// ── Redis (optional Google key cache) ────────────────────
	var certCache auth.CertCache
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			fatal("redis connect", err)
		}
		defer rdb.Close()
		certCache = auth.NewRedisCertCache(rdb)
		log.Info("google key cache backed by redis", slog.String("addr", cfg.RedisAddr))
	}

	// ── Auth ─────────────────────────────────────────────────
	tokens, err := newTokenIssuer(cfg)
	if err != nil {
		fatal("token issuer", err)
	}
	googleKeys, err := auth.NewGoogleKeys(ctx, cfg.GoogleCertsURL, nil, certCache)
	if err != nil {
		fatal("google keys", err)
	}
	google, err := auth.NewGoogleVerifier(cfg.GoogleClientID, googleKeys)
	if err != nil {
		fatal("google verifier", err)
	}

	// ── Metrics ──────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	authService := auth.NewService(users, tokens, google, rec)
	authHandler := auth.NewHandler(authService)
	requireAuth := middleware.RequireAuth(tokens, rec)

	r := newRouter(authHandler, requireAuth, log, rec, reg, cfg.CORSAllowedOrigins)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info("server listening", slog.String("addr", srv.Addr), slog.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("shutdown", slog.String("error", err.Error()))
	}
}

func newRouter(
	authHandler *auth.Handler,
	requireAuth func(http.Handler) http.Handler,
	log *slog.Logger,
	rec metrics.Recorder,
	gatherer prometheus.Gatherer,
	origins []string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log, rec))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(gatherer))

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/google-login", authHandler.GoogleLogin)

		// Bearer token required
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/users", authHandler.ListUsers)
			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/link-google", authHandler.LinkGoogle)
		})
	})

	return r
}

// newTokenIssuer builds the bearer token issuer. Tokens always live for
// auth.DefaultTokenTTL.
func newTokenIssuer(cfg *config.Config) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer(cfg.JWTSecret, auth.DefaultTokenTTL)
}

// openStore connects the configured credential store and prepares its
// unique indexes.
func openStore(ctx context.Context, cfg *config.Config) (auth.UserStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		slog.Warn("using in-memory user store; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil

	default:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { client.Disconnect(context.Background()) }
		if err := client.Ping(ctx, nil); err != nil {
			closeFn()
			return nil, nil, err
		}
		ms := store.NewMongoStore(client.Database(cfg.MongoDB), cfg.MongoCollection)
		if err := ms.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return ms, closeFn, nil
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
