package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/config"
	"github.com/FooledKiwi/hitchmap-api/internal/handler"
	"github.com/FooledKiwi/hitchmap-api/internal/metrics"
	"github.com/FooledKiwi/hitchmap-api/internal/middleware"
	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/service"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBError represents a database-related error.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("db error during %q: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// App holds the application-level dependencies.
type App struct {
	DB      *pgxpool.Pool
	Router  *gin.Engine
	Metrics *metrics.Collector
	cfg     *config.Config
}

// New initializes the application: connects to PostgreSQL, runs migrations,
// wires all domain dependencies, and configures the HTTP engine with routes.
func New(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	if err := storage.RunMigrations(context.Background(), pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: run migrations: %w", err)
	}
	log.Println("database schema up to date")

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	return &App{
		DB:      pool,
		Router:  newEngine(cfg, pool, collector),
		Metrics: collector,
		cfg:     cfg,
	}, nil
}

// Connect opens a pgx pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, &DBError{Op: "parse_dsn", Err: err}
	}

	poolCfg.MaxConns = 20
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &DBError{Op: "connect", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &DBError{Op: "ping", Err: err}
	}

	log.Println("database connection pool established")
	return pool, nil
}

// NewResolver builds the route resolver from the provider settings in cfg.
// rec may be nil.
func NewResolver(cfg *config.Config, rec routing.Recorder) *routing.Resolver {
	opts := []routing.ResolverOption{routing.WithLogger(log.Printf)}
	if rec != nil {
		opts = append(opts, routing.WithRecorder(rec))
	}
	return routing.NewResolver(routing.NewORSClient(cfg.Routing()), opts...)
}

// newEngine wires repositories, services and handlers onto a gin engine.
func newEngine(cfg *config.Config, pool *pgxpool.Pool, collector *metrics.Collector) *gin.Engine {
	// --- Domain dependencies ---
	tripsRepo := storage.NewTripsRepository(pool)
	segmentsRepo := storage.NewSegmentsRepository(pool)
	commentsRepo := storage.NewCommentsRepository(pool)
	suggestionsRepo := storage.NewSuggestionsRepository(pool)

	resolver := NewResolver(cfg, collector)
	segmentService := service.NewSegmentService(segmentsRepo, tripsRepo, resolver)

	// Auth dependencies.
	usersRepo := storage.NewUsersRepository(pool)
	tokensRepo := storage.NewRefreshTokensRepository(pool)
	authService := service.NewAuthService(
		usersRepo, tokensRepo,
		cfg.JWTSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)

	// --- HTTP engine ---
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	router.Use(collector.Middleware())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	uploads := handler.NewUploadHandler(cfg.UploadDir)
	handler.RegisterRoutes(router.Group("/api/v1"), handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Trips:       handler.NewTripHandler(tripsRepo),
		Segments:    handler.NewSegmentHandler(segmentService, uploads),
		Comments:    handler.NewCommentHandler(commentsRepo, segmentService),
		Suggestions: handler.NewSuggestionHandler(suggestionsRepo, tripsRepo),
		Uploads:     uploads,
	}, middleware.JWTAuth(authService), middleware.OptionalAuth(authService))

	return router
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

// Shutdown gracefully closes the database pool.
func (a *App) Shutdown() {
	if a.DB != nil {
		a.DB.Close()
		log.Println("database connection pool closed")
	}
}
