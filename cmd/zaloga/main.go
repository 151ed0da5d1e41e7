package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/activity"
	"github.com/erazemk/zaloga/internal/api"
	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/config"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/realtime"
	"github.com/erazemk/zaloga/internal/service"
	"github.com/erazemk/zaloga/internal/storage"
	"github.com/erazemk/zaloga/internal/store"
)

const settingBootstrapAdmin = "bootstrap_admin"

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	level  slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. If logPath is non-empty, all
// levels are also written to that file. Returns a cleanup function that
// closes the log file (if opened).
func setupLogger(logPath string, level slog.Level) (func(), error) {
	opts := &slog.HandlerOptions{Level: level}

	cleanup := func() {}
	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		level:  level,
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}))
	return cleanup, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("zaloga", flag.ContinueOnError)

	var configPath, envFile string
	fs.StringVar(&configPath, "config", "zaloga.yaml", "")
	fs.StringVar(&envFile, "env", ".env", "")

	var dbPath, addr, adminEmail, logPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")
	fs.StringVar(&adminEmail, "user", "", "")
	fs.StringVar(&adminEmail, "u", "", "")
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	var verbose bool
	fs.BoolVar(&verbose, "v", false, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: zaloga [flags]

Flags:
  -config <path>          YAML settings file (default: zaloga.yaml, optional)
  -env <path>             .env file with ZALOGA_* variables (default: .env, optional)
  -d, -db <path>          SQLite database path (default: zaloga.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <email>       superadmin email on first run (default: admin@zaloga.local)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -v                      log every request
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	// Flags win over file and environment.
	for dst, v := range map[*string]string{
		&cfg.DBPath:     dbPath,
		&cfg.Addr:       addr,
		&cfg.AdminEmail: adminEmail,
		&cfg.LogPath:    logPath,
	} {
		if v != "" {
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	closeLog, err := setupLogger(cfg.LogPath, level)
	if err != nil {
		return err
	}
	defer closeLog()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	ctx := context.Background()
	if err := bootstrapAdmin(ctx, database, cfg.AdminEmail); err != nil {
		return err
	}

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return err
	}

	blobs, err := storage.NewDisk(cfg.StorageDir, cfg.PublicURL)
	if err != nil {
		return err
	}

	versions := &cache.Versions{}
	logger := activity.New(database, cfg.ActivityBuffer, func() {
		versions.Bump(cache.Activity, cache.Stats)
	})
	defer logger.Close()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := realtime.NewHub()
	hub.Follow(versions)
	go hub.Run(hubCtx)

	router := api.NewRouter(api.Deps{
		DB:        database,
		Service:   service.New(database, blobs, logger, versions),
		Hub:       hub,
		Storage:   blobs.Handler(),
		JWTSecret: jwtSecret,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		stopHub()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, flushing activity log and closing database")
	return nil
}

// bootstrapAdmin creates the first superadmin when the database has no
// accounts and prints its generated password once.
func bootstrapAdmin(ctx context.Context, database *sqlx.DB, email string) error {
	n, err := store.CountUsers(ctx, database)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	tx, err := database.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := store.CreateUser(ctx, tx, email, activity.DisplayName(email), hash, model.RoleSuperadmin)
	if err != nil {
		return fmt.Errorf("creating superadmin: %w", err)
	}
	if err := store.PutSetting(ctx, tx, settingBootstrapAdmin, user.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing superadmin: %w", err)
	}

	printInitResult(email, password)
	slog.Info("superadmin created", "email", email)
	return nil
}

// printInitResult prints the first-run credentials to stdout.
func printInitResult(email, password string) {
	fmt.Println("Superadmin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("Change it after logging in.")
	fmt.Println()
}
