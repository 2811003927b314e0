package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/izgubljeno/internal/items"
	"github.com/erazemk/izgubljeno/internal/model"
)

// ClaimsHandler handles ownership claim endpoints.
type ClaimsHandler struct {
	Items *items.Store
}

type submitClaimRequest struct {
	Message string `json:"message"`
}

// Submit handles POST /api/items/{id}/claims.
func (h *ClaimsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitClaimRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	actor := actorFrom(r)
	itemID := r.PathValue("id")

	item, err := h.Items.Get(r.Context(), itemID)
	if err != nil {
		writeDomainError(w, err, "submit claim")
		return
	}
	if !canSee(actor, item) {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}

	claim, err := h.Items.SubmitClaim(r.Context(), itemID, actor, req.Message)
	if err != nil {
		writeDomainError(w, err, "submit claim")
		return
	}

	slog.Info("claim submitted", "user", actor.ID, "item", itemID, "claim", claim.ID)
	jsonResponse(w, http.StatusCreated, claim)
}

// List handles GET /api/items/{id}/claims. Moderators of the item see every
// claim, everyone else only their own.
func (h *ClaimsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	itemID := r.PathValue("id")

	item, err := h.Items.Get(r.Context(), itemID)
	if err != nil {
		writeDomainError(w, err, "list claims")
		return
	}
	if !canSee(actor, item) {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}

	claims, err := h.Items.Claims(r.Context(), itemID)
	if err != nil {
		writeDomainError(w, err, "list claims")
		return
	}

	if !actor.CanManage(item) {
		own := make([]model.Claim, 0, len(claims))
		for _, c := range claims {
			if c.ClaimantID == actor.ID {
				own = append(own, c)
			}
		}
		claims = own
	}
	jsonResponse(w, http.StatusOK, claims)
}

// Approve handles POST /api/claims/{id}/approve.
func (h *ClaimsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	claim, err := h.Items.ApproveClaim(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeDomainError(w, err, "approve claim")
		return
	}

	slog.Info("claim approved", "user", actor.ID, "claim", claim.ID, "item", claim.ItemID)
	jsonResponse(w, http.StatusOK, claim)
}

// Reject handles POST /api/claims/{id}/reject.
func (h *ClaimsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	claim, err := h.Items.RejectClaim(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeDomainError(w, err, "reject claim")
		return
	}

	slog.Info("claim rejected", "user", actor.ID, "claim", claim.ID, "item", claim.ItemID)
	jsonResponse(w, http.StatusOK, claim)
}
