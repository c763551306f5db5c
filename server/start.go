package server

import (
	"context"
	"net/http"
	"os"
	"strings"

	"checkit-service/auth"
	cachepackage "checkit-service/cache"
	"checkit-service/config"
	"checkit-service/database"
	"checkit-service/handlers"

	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// newCheckAuth builds the authentication callback the httpserver constructor
// requires. Routes are registered with AuthType "none" and wrapped in
// handlers.Authenticated instead, so this service controls the 401/403
// split its clients rely on; the callback delegates to the same verifier.
func newCheckAuth(tokens *auth.TokenManager) func(r *http.Request) (bool, httpserver.RequestAuth) {
	return func(r *http.Request) (bool, httpserver.RequestAuth) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return false, httpserver.RequestAuth{}
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return false, httpserver.RequestAuth{}
		}

		return true, httpserver.RequestAuth{
			Type:   "bearer",
			Client: "checkit-frontend",
			Claims: map[string]interface{}{"user_id": claims.UserID},
		}
	}
}

func StartServer() {
	// Initialize logger
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})

	logger.Info("Starting Checkit Service...")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		os.Exit(1)
	}

	// Initialize database
	dbConn := database.InitializeDatabase(cfg.DatabasePath)
	defer dbConn.Close()

	// Initialize cache
	cache := cachepackage.InitializeCache(cfg)
	defer cache.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	// Initialize handlers
	projectHandler := handlers.NewProjectHandler(dbConn, cache)
	taskHandler := handlers.NewTaskHandler(dbConn, cache)
	checklistHandler := handlers.NewChecklistHandler(dbConn, cache)

	server := httpserver.New(cfg.Port, newCheckAuth(tokens))

	public := func(h httpserver.HandlerFunc) httpserver.HandlerFunc {
		return handlers.WithCORS(h)
	}
	protected := func(h httpserver.HandlerFunc) httpserver.HandlerFunc {
		return handlers.WithCORS(handlers.Authenticated(tokens, h))
	}

	server.Register(httpserver.Route{
		Name:     "HealthCheck",
		Method:   "GET",
		Path:     "/health",
		AuthType: "none",
	}, public(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "checkit-service"}`))
	}))

	server.Register(httpserver.Route{
		Name:     "Signup",
		Method:   "POST",
		Path:     "/api/auth/signup",
		AuthType: "none",
	}, public(handlers.SignupHandler(dbConn, tokens)))

	server.Register(httpserver.Route{
		Name:     "Login",
		Method:   "POST",
		Path:     "/api/auth/login",
		AuthType: "none",
	}, public(handlers.LoginHandler(dbConn, tokens)))

	server.Register(httpserver.Route{
		Name:     "Me",
		Method:   "GET",
		Path:     "/api/auth/me",
		AuthType: "none",
	}, protected(handlers.MeHandler(dbConn)))

	server.Register(httpserver.Route{
		Name:     "ListProjects",
		Method:   "GET",
		Path:     "/projects",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(projectHandler.GetProjects)))

	server.Register(httpserver.Route{
		Name:     "GetProject",
		Method:   "GET",
		Path:     "/projects/{id}",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(projectHandler.GetProject)))

	server.Register(httpserver.Route{
		Name:     "CreateProject",
		Method:   "POST",
		Path:     "/projects",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(projectHandler.CreateProject)))

	server.Register(httpserver.Route{
		Name:     "UpdateProject",
		Method:   "PUT",
		Path:     "/projects/{id}",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(projectHandler.UpdateProject)))

	server.Register(httpserver.Route{
		Name:     "DeleteProject",
		Method:   "DELETE",
		Path:     "/projects/{id}",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(projectHandler.DeleteProject)))

	server.Register(httpserver.Route{
		Name:     "ListTasks",
		Method:   "GET",
		Path:     "/tasks",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(taskHandler.GetTasks)))

	server.Register(httpserver.Route{
		Name:     "CreateTask",
		Method:   "POST",
		Path:     "/tasks",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(taskHandler.CreateTask)))

	server.Register(httpserver.Route{
		Name:     "UpdateTask",
		Method:   "PUT",
		Path:     "/tasks/{id}",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(taskHandler.UpdateTask)))

	server.Register(httpserver.Route{
		Name:     "UpdateTaskStatus",
		Method:   "PATCH",
		Path:     "/tasks/{id}/status",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(taskHandler.UpdateTaskStatus)))

	// Legacy route shape kept for older frontend builds.
	server.Register(httpserver.Route{
		Name:     "UpdateTaskStatusLegacy",
		Method:   "PUT",
		Path:     "/tasks/tasks/{taskId}/status",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(taskHandler.UpdateTaskStatus)))

	server.Register(httpserver.Route{
		Name:     "DeleteTask",
		Method:   "DELETE",
		Path:     "/tasks/{id}",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(taskHandler.DeleteTask)))

	server.Register(httpserver.Route{
		Name:     "ListChecklist",
		Method:   "GET",
		Path:     "/tasks/{id}/checklist",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(checklistHandler.GetChecklist)))

	server.Register(httpserver.Route{
		Name:     "AddChecklistItem",
		Method:   "POST",
		Path:     "/tasks/{id}/checklist",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(checklistHandler.AddChecklistItem)))

	server.Register(httpserver.Route{
		Name:     "UpdateChecklistItem",
		Method:   "PUT",
		Path:     "/checklist/{id}",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(checklistHandler.UpdateChecklistItem)))

	server.Register(httpserver.Route{
		Name:     "DeleteChecklistItem",
		Method:   "DELETE",
		Path:     "/checklist/{id}",
		AuthType: "none",
	}, protected(httpserver.HandlerFunc(checklistHandler.DeleteChecklistItem)))

	// CORS preflight for every browser-facing path.
	for _, path := range []string{
		"/api/auth/signup",
		"/api/auth/login",
		"/api/auth/me",
		"/projects",
		"/projects/{id}",
		"/tasks",
		"/tasks/{id}",
		"/tasks/{id}/status",
		"/tasks/tasks/{taskId}/status",
		"/tasks/{id}/checklist",
		"/checklist/{id}",
	} {
		server.Register(httpserver.Route{
			Name:     "Preflight " + path,
			Method:   "OPTIONS",
			Path:     path,
			AuthType: "none",
		}, httpserver.HandlerFunc(handlers.Preflight))
	}

	logger.Info("Checkit Service started on port " + cfg.Port)

	// Start server
	if err := server.Start(); err != nil {
		logger.Error("Server failed to start", zap.Error(err))
		os.Exit(1)
	}
}
