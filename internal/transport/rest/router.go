package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clubops/platform/internal/auth"
	"github.com/clubops/platform/internal/authz"
	"github.com/clubops/platform/internal/member"
	"github.com/clubops/platform/internal/transport/middleware"
	"github.com/clubops/platform/internal/transport/swagger"
	"github.com/clubops/platform/internal/user"
)

// RegisterAllRoutes wires every handler behind the authorization pipeline.
// Each protected route names its operation; the policy registry holds the
// matching requirements.
func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	rdb redis.UniversalClient,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	memberHandler *member.Handler,
	guard *authz.Middleware,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db, rdb)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Prometheus scrape endpoint, outside the API prefix
	router.Handle("/metrics", promhttp.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Request/response logging with body redaction; scoped to the API so
		// metrics scrapes and the swagger UI stay out of the log.
		r.Use(middleware.LoggingMiddleware(logger))

		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes: anonymous entry points for the credential flow
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/otp/verify", authHandler.VerifyOtp)
				sr.Post("/refresh", authHandler.RefreshToken)

				sr.With(guard.Require(authz.OpAuthLogout)).Post("/logout", authHandler.Logout)
				sr.With(guard.Require(authz.OpAuthLogoutAll)).Post("/logout-all", authHandler.LogoutAll)
				sr.With(guard.Require(authz.OpAuthRevokeDevice)).Delete("/devices", authHandler.RevokeDevice)
			})
		}

		// Current user
		if userHandler != nil {
			r.With(guard.Require(authz.OpUsersMe)).Get("/users/me", userHandler.GetCurrentUser)
		}

		// Member routes, all tenant-scoped
		if memberHandler != nil {
			r.Route("/members", func(mr chi.Router) {
				mr.With(guard.Require(authz.OpMembersList)).Get("/", memberHandler.ListMembers)
				mr.With(guard.Require(authz.OpMembersCreate)).Post("/", memberHandler.CreateMember)

				mr.With(guard.RequireOwned(authz.OpMembersGet, "members", "id")).Get("/{id}", memberHandler.GetMember)
				mr.With(guard.RequireOwned(authz.OpMembersUpdate, "members", "id")).Patch("/{id}", memberHandler.UpdateMember)
				mr.With(guard.RequireOwned(authz.OpMembersUpdateStatus, "members", "id")).Patch("/{id}/status", memberHandler.UpdateMemberStatus)
			})
		}
	})
}
