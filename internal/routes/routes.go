package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meterflow/meterflow-api/internal/authz"
	"github.com/meterflow/meterflow-api/internal/handlers"
	"github.com/meterflow/meterflow-api/internal/models"
)

// NewRouter sets up the API routes
func NewRouter(
	auth *handlers.AuthHandler,
	ingestion *handlers.IngestionHandler,
	measurement *handlers.MeasurementHandler,
	tenant *handlers.TenantHandler,
	notification *handlers.NotificationHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Everything below requires a valid token.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.Handle("/tenants", authz.RequireRoleHandler(models.RoleAdmin,
		http.HandlerFunc(tenant.CreateTenant))).Methods(http.MethodPost)

	api.Handle("/ingest/uploads", authz.RequireRoleHandler(models.RoleAdmin,
		http.HandlerFunc(ingestion.Upload))).Methods(http.MethodPost)
	api.Handle("/ingest/sync", authz.RequireRoleHandler(models.RoleAdmin,
		http.HandlerFunc(ingestion.Sync))).Methods(http.MethodPost)
	api.HandleFunc("/ingest/jobs", ingestion.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/ingest/jobs/stats", ingestion.GetJobStats).Methods(http.MethodGet)
	api.HandleFunc("/ingest/jobs/{jobID}", ingestion.GetJob).Methods(http.MethodGet)

	api.HandleFunc("/measurements", measurement.List).Methods(http.MethodGet)

	api.HandleFunc("/notifications", notification.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}/read", notification.MarkRead).Methods(http.MethodPost)

	return router
}
