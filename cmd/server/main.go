package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/app"
	"github.com/FooledKiwi/hitchmap-api/internal/config"
	"github.com/FooledKiwi/hitchmap-api/internal/migrations"
	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/FooledKiwi/hitchmap-api/internal/service"
	"github.com/FooledKiwi/hitchmap-api/internal/storage"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "hitchmap-api",
	Short:         "Trip map API: trips, segments and route resolution",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context(), cmd, migrateStatus)
	},
}

var (
	userName     string
	userEmail    string
	userPassword string
	userRole     string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an account; the only way to create admins",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreateUser(cmd.Context(), cmd)
	},
}

var (
	resolveFrom      string
	resolveTo        string
	resolveTransport string
)

var resolveCmd = &cobra.Command{
	Use:     "resolve",
	Short:   "Resolve one route and print it as JSON",
	Example: "  hitchmap-api resolve --from 2.3522,48.8566 --to 4.8357,45.7640 --transport hitchhiking",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(cmd.Context(), cmd)
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "List pending migrations without applying them")

	createUserCmd.Flags().StringVar(&userName, "username", "", "Username")
	createUserCmd.Flags().StringVar(&userEmail, "email", "", "Email address used to log in")
	createUserCmd.Flags().StringVar(&userPassword, "password", "", "Password")
	createUserCmd.Flags().StringVar(&userRole, "role", storage.RoleUser, "Role: user or admin")
	_ = createUserCmd.MarkFlagRequired("username") //nolint:errcheck
	_ = createUserCmd.MarkFlagRequired("email")    //nolint:errcheck
	_ = createUserCmd.MarkFlagRequired("password") //nolint:errcheck

	resolveCmd.Flags().StringVar(&resolveFrom, "from", "", "Start as lng,lat")
	resolveCmd.Flags().StringVar(&resolveTo, "to", "", "End as lng,lat")
	resolveCmd.Flags().StringVar(&resolveTransport, "transport", string(routing.Hitchhiking), "Transport type")
	_ = resolveCmd.MarkFlagRequired("from") //nolint:errcheck
	_ = resolveCmd.MarkFlagRequired("to")   //nolint:errcheck

	rootCmd.AddCommand(serveCmd, migrateCmd, createUserCmd, resolveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Shutdown()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shut down: %w", err)
	}

	log.Println("server stopped")
	return nil
}

func runMigrate(ctx context.Context, cmd *cobra.Command, statusOnly bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	pool, err := app.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if statusOnly {
		pending, err := migrations.Pending(ctx, pool)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			cmd.Println("no pending migrations")
		}
		for _, v := range pending {
			cmd.Println("pending:", v)
		}
		return nil
	}

	applied, err := migrations.Run(ctx, pool)
	for _, v := range applied {
		cmd.Println("applied:", v)
	}
	if err != nil {
		return err
	}
	return migrations.CheckSchema(ctx, pool)
}

func runCreateUser(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	pool, err := app.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	authService := service.NewAuthService(
		storage.NewUsersRepository(pool),
		storage.NewRefreshTokensRepository(pool),
		cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
	)
	user, err := authService.CreateUser(ctx, userName, userEmail, userPassword, userRole)
	if err != nil {
		return err
	}

	cmd.Printf("created %s %q (id %d)\n", user.Role, user.Username, user.ID)
	return nil
}

func runResolve(ctx context.Context, cmd *cobra.Command) error {
	startLng, startLat, err := parsePoint(resolveFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	endLng, endLat, err := parsePoint(resolveTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	tt := routing.TransportType(resolveTransport)
	if !tt.Valid() && tt != routing.Car {
		return fmt.Errorf("--transport: unsupported value %q", resolveTransport)
	}

	cfg, err := config.LoadRouting()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	req := routing.RoutingRequest{
		StartLng: startLng, StartLat: startLat,
		EndLng: endLng, EndLat: endLat,
		TransportType: tt,
	}
	resolver := app.NewResolver(cfg, nil)
	route, err := resolver.ResolveRoute(ctx, req)
	if err != nil {
		log.Printf("provider unavailable, using straight line: %v", err)
		route = resolver.StraightLine(req)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Geometry  routing.LineString `json:"geometry"`
		DistanceM int                `json:"distance_m"`
		DurationS *float64           `json:"duration_s"`
		Source    routing.Source     `json:"source"`
	}{route.Geometry, route.DistanceM, route.DurationS, route.Source})
}

// parsePoint parses "lng,lat" and validates the coordinates.
func parsePoint(raw string) (lng, lat float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want lng,lat, got %q", raw)
	}
	if lng, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	if err := service.ValidateCoordinates(lat, lng); err != nil {
		return 0, 0, err
	}
	return lng, lat, nil
}
