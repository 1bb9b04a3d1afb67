package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/config"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(cfg *config.Config, JWTService jwt.Service, timesheetHandler TimesheetHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("env", cfg.App.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  cfg.App.SlogLevel(),
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1/timesheets", func(r chi.Router) {

		// Requires an access token
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired())

			r.Get("/my/week", timesheetHandler.GetMyWeek)
			r.Get("/my/days/{date}", timesheetHandler.GetMyDay)
			r.Get("/my/days/{date}/timeline", timesheetHandler.GetMyTimeline)
			r.Post("/my/stream-token", timesheetHandler.StreamToken)

			r.Post("/my/clock-in", timesheetHandler.ClockIn)
			r.Post("/my/clock-out", timesheetHandler.ClockOut)
			r.Post("/my/breaks/start", timesheetHandler.StartBreak)
			r.Post("/my/breaks/end", timesheetHandler.EndBreak)
			r.Delete("/my/entries/{id}/breaks/{breakID}", timesheetHandler.RemoveBreak)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/employees/{employeeID}/week", timesheetHandler.GetEmployeeWeek)
				r.Get("/entries", timesheetHandler.ListEntries)
				r.Put("/entries/{id}", timesheetHandler.UpdateEntry)
				r.Delete("/entries/{id}", timesheetHandler.DeleteEntry)
			})
		})

		// EventSource cannot set headers, so the stream also takes ?jwt=
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(middleware.AuthRequired(jwt.TokenTypeAccess, jwt.TokenTypeStream))
			r.Get("/my/stream", timesheetHandler.Stream)
		})
	})
	return r
}
