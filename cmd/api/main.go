package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/config"
	appHTTP "github.com/cmlabs-hris/timesheet-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/refresh"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/repository/postgresql"
	timesheetService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/timesheet"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.SlogLevel(),
	})).With(
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	clk := clockwork.NewRealClock()
	loc := cfg.Timesheet.Location()

	entryRepo := postgresql.NewTimeEntryRepository(db)
	shiftRepo := postgresql.NewShiftRepository(db)
	transactor := postgresql.NewTransactor(db)

	windowStart, windowEnd := cfg.Timesheet.WindowMinutes()
	engine := timesheetService.NewEngine(loc, clk, timesheetService.TimelineWindow{
		StartMinute: windowStart,
		EndMinute:   windowEnd,
		GapPercent:  cfg.Timesheet.SegmentGap,
	})

	hub := sse.NewHub(cfg.Timesheet.StreamBuffer)
	trigger := refresh.NewTrigger(hub, clk)

	queryService := timesheetService.NewQueryService(entryRepo, shiftRepo, engine)
	commandService := timesheetService.NewCommandService(transactor, entryRepo, shiftRepo, engine, trigger)

	scheduler := cron.NewScheduler(ctx, clk)
	timesheetJobs := cron.NewTimesheetJobs(trigger, clk, loc, cfg.Timesheet.PollInterval)
	if err := timesheetJobs.RegisterJobs(scheduler); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	timesheetHandler := appHTTP.NewTimesheetHandler(queryService, commandService, trigger, JWTService, clk, cfg.Timesheet.TickInterval)
	router := appHTTP.NewRouter(cfg, JWTService, timesheetHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// streams stay open, so no WriteTimeout
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
