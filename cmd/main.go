package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"microfinance-reports/internal/clients"
	"microfinance-reports/internal/config"
	"microfinance-reports/internal/repository"
	"microfinance-reports/internal/service"
	"microfinance-reports/internal/transport/auth"
	"microfinance-reports/internal/transport/rest"
	"microfinance-reports/internal/transport/websocket"
	"microfinance-reports/pkg/database/postgres"
	"microfinance-reports/pkg/logger"
	"microfinance-reports/pkg/metrics"
)

// source bundles the read repositories of one data backend.
type source struct {
	loans   service.LoanRepository
	members service.MemberRepository
	stats   service.StatsRepository
	tokens  auth.TokenFinder
	close   func()
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "microfinance-reports"})
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if envErr != nil {
		log.Info("no .env file found, using system env or defaults")
	}
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc := cfg.Location()

	src := mustInitSource(ctx, cfg, log)
	defer src.close()

	var statusStore service.StatusStore
	redisClient := initRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
		statusStore = redisClient
	}

	files, local := mustInitFileStore(ctx, cfg, log)

	wsHub := websocket.NewHub(log.Named("ws"))
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	reportSvc := service.NewReportService(src.loans, src.members, src.stats, loc, log.Named("reports"))
	exportSvc := service.NewReportExportService(src.loans, statusStore, files, wsClient, int64(cfg.Export.MaxRows), loc, log.Named("export"))
	exportListSvc := service.NewExportListService(statusStore, log.Named("export"))

	httpMetrics := metrics.NewHTTP("microfinance_reports")

	handler := rest.NewHandler(reportSvc, exportSvc, exportListSvc, log.Named("http"),
		rest.WithLocation(loc),
		rest.WithTimeout(time.Duration(cfg.RequestTimeout)*time.Second),
	)
	router := handler.InitRouterWithAuth(auth.SanctumMiddleware(src.tokens, log.Named("auth")), httpMetrics.Middleware)

	// public root router; the protected API router is mounted underneath
	root := chi.NewRouter()

	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		rest.Success(w, "ok", map[string]interface{}{"source": cfg.Source})
	})
	root.Handle("/metrics", httpMetrics.Handler())

	if local != nil {
		root.Get(cfg.Export.FilesPublicPrefix+"/{file}", serveExportFile(local))
	}

	// websocket clients cannot set headers, so ?token= is accepted as well
	root.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		pat, err := auth.AuthenticateWebSocket(r, src.tokens)
		if err != nil {
			rest.ErrorUnauthorized(w, "Unauthorized")
			return
		}
		log.Debug("ws connected", zap.Int64("user_id", pat.UserID))
		wsHub.HandleWebSocket(w, r, pat.UserID)
	})

	root.Mount("/", router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(root),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeout+10) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.Port), zap.String("source", cfg.Source))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	scheduler := startCleanup(cfg.Export, local, loc, log.Named("cleanup"))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	case sig := <-stop:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown", zap.Error(err))
		}

		// stops the websocket hub
		cancel()
		<-scheduler.Stop().Done()

		log.Info("shutdown complete")
	}
}

func mustInitSource(ctx context.Context, cfg config.AppConfig, log *zap.Logger) source {
	switch cfg.Source {
	case config.SourceMemory:
		store, err := repository.LoadFixtures(cfg.FixturesPath)
		if err != nil {
			log.Fatal("fixtures init error", zap.String("path", cfg.FixturesPath), zap.Error(err))
		}
		log.Info("serving reports from fixtures", zap.String("path", cfg.FixturesPath))
		return source{loans: store, members: store, stats: store, tokens: store, close: func() {}}
	default:
		db := mustInitPostgres(ctx, cfg.Postgres, log)
		return source{
			loans:   repository.NewLoanRepository(db),
			members: repository.NewMemberRepository(db),
			stats:   repository.NewDashboardRepository(db),
			tokens:  repository.NewPersonalAccessTokenRepository(db, log.Named("tokens")),
			close: func() {
				if err := postgres.Close(db); err != nil {
					log.Warn("postgres close", zap.Error(err))
				}
			},
		}
	}
}

func mustInitPostgres(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger) *sql.DB {
	db, err := postgres.NewPostgresConnection(ctx, postgres.ConnectionInfo{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Username:        cfg.User,
		DBName:          cfg.DBName,
		SSLMode:         cfg.SSLMode,
		Password:        cfg.Password,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		log.Fatal("postgres init error", zap.Error(err))
	}
	return db
}

// initRedis returns nil when the server is unreachable; exports then run but
// their statuses are not kept.
func initRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Warn("redis init error, export statuses will not be kept", zap.Error(err))
		return nil
	}
	if err := client.Ping(ctx); err != nil {
		log.Warn("redis ping failed, export statuses will not be kept", zap.Error(err))
		client.Close()
		return nil
	}
	return client
}

// mustInitFileStore also returns the local storage when that is the backend,
// so its files can be served and cleaned up.
func mustInitFileStore(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (clients.FileStore, *clients.LocalStorage) {
	if cfg.Export.Storage == config.StorageS3 {
		s3, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			URLExpiry:       time.Duration(cfg.S3.URLExpiry) * time.Second,
		})
		if err != nil {
			log.Fatal("s3 init error", zap.Error(err))
		}
		return s3, nil
	}

	local, err := clients.NewLocalStorage(cfg.Export.Dir, cfg.Export.FilesPublicPrefix, cfg.ExternalURL)
	if err != nil {
		log.Fatal("storage init error", zap.Error(err))
	}
	return local, local
}

func serveExportFile(storage *clients.LocalStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		path, err := storage.Path(file)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to access file", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clients.OriginalName(file)))
		http.ServeFile(w, r, path)
	}
}

// startCleanup schedules removal of expired local export files.
func startCleanup(cfg config.ExportConfig, storage *clients.LocalStorage, loc *time.Location, log *zap.Logger) *cron.Cron {
	c := cron.New(cron.WithLocation(loc))
	if storage == nil {
		return c
	}

	ttl := time.Duration(cfg.FileTTL) * time.Minute
	_, err := c.AddFunc(cfg.CleanupSchedule, func() {
		removed, err := storage.CleanupOlderThan(ttl)
		if err != nil {
			log.Warn("storage cleanup error", zap.Error(err))
			return
		}
		if removed > 0 {
			log.Info("expired exports removed", zap.Int("files", removed))
		}
	})
	if err != nil {
		log.Error("invalid cleanup schedule", zap.String("schedule", cfg.CleanupSchedule), zap.Error(err))
		return c
	}
	c.Start()
	return c
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
