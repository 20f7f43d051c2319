package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpSwagger "github.com/swaggo/http-swagger"
)

// routes wires middlewares and endpoints. CORS origins come from CORS_ORIGINS.
func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.log))
	r.Use(a.metrics.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Handle("/metrics", a.metrics.handler())

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=60")
		_, _ = w.Write(openapiYAML)
	})

	r.Mount("/swagger", httpSwagger.Handler(
		httpSwagger.URL("/api/openapi.yaml"),
	))

	r.Route("/api", func(api chi.Router) {
		api.Post("/predict", a.handlePredict)
		api.Post("/advice", a.handleAdvice)
		api.Get("/weather", a.handleWeather)

		api.Post("/auth/register", a.handleRegister)
		api.Post("/auth/login", a.handleLogin)
		api.With(a.authMiddleware).Get("/me", a.handleMe)

		api.Group(func(dr chi.Router) {
			dr.Use(a.writeGuard)

			dr.Get("/farm", a.handleGetFarm)
			dr.Post("/farm", a.handleSaveFarm)

			dr.Route("/inventory", func(ir chi.Router) {
				ir.Get("/", a.handleListInventory)
				ir.Post("/", a.handleCreateInventory)
				ir.Patch("/", a.handlePatchInventory)
			})

			dr.Route("/tasks", func(tr chi.Router) {
				tr.Get("/", a.handleListTasks)
				tr.Post("/", a.handleCreateTask)
				tr.Patch("/", a.handlePatchTask)
				tr.Post("/from-advice", a.handleTaskFromAdvice)
			})

			dr.Route("/sensor", func(sr chi.Router) {
				sr.Get("/", a.handleListReadings)
				sr.Post("/", a.handleCreateReading)
			})
		})
	})

	return r
}
