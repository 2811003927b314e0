package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/izgubljeno/internal/model"
	"github.com/erazemk/izgubljeno/internal/store"
)

// OrganizationsHandler handles organization endpoints.
type OrganizationsHandler struct {
	DB *sql.DB
}

type createOrganizationRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/organizations.
func (h *OrganizationsHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := store.ListOrganizations(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list organizations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}
	if orgs == nil {
		orgs = []model.Organization{}
	}
	jsonResponse(w, http.StatusOK, orgs)
}

// Create handles POST /api/organizations.
func (h *OrganizationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	org, err := store.CreateOrganization(r.Context(), h.DB, name)
	if err != nil {
		slog.Error("failed to create organization", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create organization")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("organization created", "user", claims.Email, "org", org.ID, "name", org.Name)
	jsonResponse(w, http.StatusCreated, org)
}

// Get handles GET /api/organizations/{id}.
func (h *OrganizationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := store.GetOrganization(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get organization", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get organization")
		return
	}
	if org == nil || org.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "organization not found")
		return
	}
	jsonResponse(w, http.StatusOK, org)
}

// Delete handles DELETE /api/organizations/{id}.
func (h *OrganizationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	org, err := store.GetOrganization(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get organization", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete organization")
		return
	}
	if org == nil || org.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "organization not found")
		return
	}

	if err := store.DeleteOrganization(r.Context(), h.DB, id); err != nil {
		if errors.Is(err, model.ErrConflict) {
			jsonError(w, http.StatusConflict, "organization still has members")
			return
		}
		slog.Error("failed to delete organization", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete organization")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("organization deleted", "user", claims.Email, "org", id, "name", org.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "organization deleted"})
}
