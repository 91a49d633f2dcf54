package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maestro-api/maestro/internal/api"
	apiMiddleware "github.com/maestro-api/maestro/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	commandHandler := api.NewCommandHandler(app.orchestrator)
	taskHandler := api.NewTaskHandler(app.orchestrator)
	conversationHandler := api.NewConversationHandler(app.orchestrator)

	r.Route("/api", func(r chi.Router) {
		r.Post("/command", commandHandler.SubmitCommand)

		r.Get("/task/{id}", taskHandler.GetTask)
		r.Delete("/task/{id}", taskHandler.CancelTask)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/queue/status", taskHandler.QueueStatus)
		r.Get("/services/health", taskHandler.ServicesHealth)

		r.Post("/conversation", conversationHandler.CreateConversation)
		r.Get("/conversation/{id}/history", conversationHandler.GetConversation)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
