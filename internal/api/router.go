package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/izgubljeno/internal/imaging"
	"github.com/erazemk/izgubljeno/internal/items"
	"github.com/erazemk/izgubljeno/internal/model"
)

// Config holds everything the API needs to serve requests.
type Config struct {
	DB        *sql.DB
	Items     *items.Store
	JWTSecret string
	TokenTTL  time.Duration
	Images    imaging.Options
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: cfg.DB, JWTSecret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL}
	usersHandler := &UsersHandler{DB: cfg.DB}
	orgsHandler := &OrganizationsHandler{DB: cfg.DB}
	itemsHandler := &ItemsHandler{DB: cfg.DB, Items: cfg.Items, Images: cfg.Images}
	claimsHandler := &ClaimsHandler{Items: cfg.Items}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)
	requireSuperAdmin := RequireRole(model.RoleSuperAdmin)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (superAdmin only).
	mux.Handle("GET /api/users", authMW(requireSuperAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireSuperAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireSuperAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireSuperAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireSuperAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireSuperAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Organizations: read (all roles), write (superAdmin).
	mux.Handle("GET /api/organizations", authMW(http.HandlerFunc(orgsHandler.List)))
	mux.Handle("POST /api/organizations", authMW(requireSuperAdmin(http.HandlerFunc(orgsHandler.Create))))
	mux.Handle("GET /api/organizations/{id}", authMW(http.HandlerFunc(orgsHandler.Get)))
	mux.Handle("DELETE /api/organizations/{id}", authMW(requireSuperAdmin(http.HandlerFunc(orgsHandler.Delete))))

	// Items: every role may report, the store decides who may change what.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))
	mux.Handle("GET /api/locations", authMW(http.HandlerFunc(itemsHandler.Locations)))

	// Claims.
	mux.Handle("GET /api/items/{id}/claims", authMW(http.HandlerFunc(claimsHandler.List)))
	mux.Handle("POST /api/items/{id}/claims", authMW(http.HandlerFunc(claimsHandler.Submit)))
	mux.Handle("POST /api/claims/{id}/approve", authMW(http.HandlerFunc(claimsHandler.Approve)))
	mux.Handle("POST /api/claims/{id}/reject", authMW(http.HandlerFunc(claimsHandler.Reject)))

	return mux
}
