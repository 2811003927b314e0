package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/izgubljeno/internal/imaging"
	"github.com/erazemk/izgubljeno/internal/items"
	"github.com/erazemk/izgubljeno/internal/model"
	"github.com/erazemk/izgubljeno/internal/query"
	"github.com/erazemk/izgubljeno/internal/store"
)

// ItemsHandler handles item report endpoints.
type ItemsHandler struct {
	DB     *sql.DB
	Items  *items.Store
	Images imaging.Options
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	q := r.URL.Query()
	spec := query.Spec{
		Term:      q.Get("q"),
		Category:  q.Get("category"),
		Status:    q.Get("status"),
		Location:  q.Get("location"),
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
	}

	all, err := h.Items.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, err, "list items")
		return
	}

	result, err := query.Query(scopeItems(actor, all, &spec, q.Get("org")), spec)
	if err != nil {
		writeDomainError(w, err, "list items")
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Locations handles GET /api/locations.
func (h *ItemsHandler) Locations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	all, err := h.Items.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, err, "list locations")
		return
	}

	var spec query.Spec
	visible := scopeItems(actor, all, &spec, r.URL.Query().Get("org"))
	if spec.OrganizationID != "" {
		visible, err = query.Query(visible, spec)
		if err != nil {
			writeDomainError(w, err, "list locations")
			return
		}
	}
	jsonResponse(w, http.StatusOK, query.Locations(visible))
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in items.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r)
	item, err := h.Items.Create(r.Context(), in, actor)
	if err != nil {
		writeDomainError(w, err, "create item")
		return
	}

	slog.Info("item reported", "user", actor.ID, "item", item.ID, "status", item.Status, "org", item.OrganizationID)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.visibleItem(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch items.Patch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFrom(r)
	item, err := h.Items.Update(r.Context(), r.PathValue("id"), patch, actor)
	if err != nil {
		writeDomainError(w, err, "update item")
		return
	}

	slog.Info("item updated", "user", actor.ID, "item", item.ID, "status", item.Status)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor := actorFrom(r)
	if err := h.Items.Delete(r.Context(), id, actor); err != nil {
		writeDomainError(w, err, "delete item")
		return
	}

	if err := store.DeleteItemImage(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to remove image of deleted item", "item", id, "error", err)
	}

	slog.Info("item deleted", "user", actor.ID, "item", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor := actorFrom(r)

	item, err := h.Items.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "upload image")
		return
	}
	if !actor.CanManage(item) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	if item.Status == model.StatusResolved {
		writeDomainError(w, fmt.Errorf("item %s is resolved: %w", id, model.ErrInvalidState), "upload image")
		return
	}

	limit := h.Images.MaxBytes
	if limit <= 0 {
		limit = imaging.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(limit); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	processed, err := imaging.Process(file, h.Images)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, processed.Data, processed.MIME); err != nil {
		slog.Error("failed to save image", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	url := "/api/items/" + id + "/image"
	updated, err := h.Items.Update(r.Context(), id, items.Patch{ImageURL: &url}, actor)
	if err != nil {
		// The item never pointed at the new image, so it must not linger.
		if item.ImageURL == "" {
			if derr := store.DeleteItemImage(r.Context(), h.DB, id); derr != nil {
				slog.Warn("failed to remove unused image", "item", id, "error", derr)
			}
		}
		writeDomainError(w, err, "upload image")
		return
	}

	slog.Info("item image uploaded", "user", actor.ID, "item", id, "width", processed.Width, "height", processed.Height)
	jsonResponse(w, http.StatusOK, updated)
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.visibleItem(w, r)
	if !ok {
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, item.ID)
	if err != nil {
		slog.Error("failed to get image", "item", item.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// visibleItem loads the item named in the path and writes a 404 when the
// caller may not see it.
func (h *ItemsHandler) visibleItem(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	item, err := h.Items.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, "get item")
		return nil, false
	}
	if !canSee(actorFrom(r), item) {
		jsonError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return item, true
}

// canSee reports whether actor may view item. Items outside any
// organization are visible to unaffiliated users only.
func canSee(actor model.Actor, item *model.Item) bool {
	if actor.Role == model.RoleSuperAdmin || item.OwnerID == actor.ID {
		return true
	}
	return item.OrganizationID == actor.OrganizationID
}

// scopeItems narrows all to what actor may list. Members of an organization
// are pinned to it through spec, superAdmins may pick one with org, and
// unaffiliated users only see unscoped items.
func scopeItems(actor model.Actor, all []model.Item, spec *query.Spec, org string) []model.Item {
	switch {
	case actor.Role == model.RoleSuperAdmin:
		spec.OrganizationID = org
		return all
	case actor.OrganizationID != "":
		spec.OrganizationID = actor.OrganizationID
		return all
	}

	spec.OrganizationID = ""
	scoped := make([]model.Item, 0, len(all))
	for _, item := range all {
		if item.OrganizationID == "" {
			scoped = append(scoped, item)
		}
	}
	return scoped
}
