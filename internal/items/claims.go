package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/erazemk/izgubljeno/internal/model"
)

// Claims returns the claims filed against an item, oldest first.
func (s *Store) Claims(ctx context.Context, itemID string) ([]model.Claim, error) {
	if _, err := s.Get(ctx, itemID); err != nil {
		return nil, err
	}
	claims, err := s.p.LoadClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading claims: %w", err)
	}
	out := []model.Claim{}
	for _, c := range claims {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	return out, nil
}

// SubmitClaim files a pending claim by claimant and moves the item to
// Claimed.
func (s *Store) SubmitClaim(ctx context.Context, itemID string, claimant model.Actor, message string) (*model.Claim, error) {
	if claimant.ID == "" {
		return nil, fmt.Errorf("claiming item %s: %w", itemID, model.ErrForbidden)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfItem(items, itemID)
	if idx < 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, model.ErrNotFound)
	}
	item := items[idx]

	if item.OwnerID == claimant.ID {
		return nil, fmt.Errorf("owner cannot claim item %s: %w", itemID, model.ErrForbidden)
	}

	claims, err := s.p.LoadClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading claims: %w", err)
	}
	for _, c := range claims {
		if c.ItemID == itemID && c.Status == model.ClaimPending {
			return nil, fmt.Errorf("item %s already has pending claim %s: %w", itemID, c.ID, model.ErrConflict)
		}
	}

	if !model.IsOpenStatus(item.Status) {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, model.ErrInvalidState)
	}

	claim := model.Claim{
		ID:          s.uniqueClaimID(claims),
		ItemID:      itemID,
		ClaimantID:  claimant.ID,
		Status:      model.ClaimPending,
		Message:     strings.TrimSpace(message),
		PriorStatus: item.Status,
		CreatedAt:   s.now(),
	}
	item.SetStatus(model.StatusClaimed)
	items[idx] = item

	if err := s.p.Save(ctx, items, append(claims, claim)); err != nil {
		return nil, fmt.Errorf("saving claim: %w", err)
	}
	return &claim, nil
}

// ApproveClaim approves a pending claim and resolves its item.
func (s *Store) ApproveClaim(ctx context.Context, claimID string, actor model.Actor) (*model.Claim, error) {
	return s.decideClaim(ctx, claimID, actor, model.ClaimApproved)
}

// RejectClaim rejects a pending claim and reverts its item to the status it
// had before the claim, so a new claim can be filed.
func (s *Store) RejectClaim(ctx context.Context, claimID string, actor model.Actor) (*model.Claim, error) {
	return s.decideClaim(ctx, claimID, actor, model.ClaimRejected)
}

func (s *Store) decideClaim(ctx context.Context, claimID string, actor model.Actor, decision string) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims, err := s.p.LoadClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading claims: %w", err)
	}
	ci := -1
	for i := range claims {
		if claims[i].ID == claimID && claims[i].Status == model.ClaimPending {
			ci = i
			break
		}
	}
	if ci < 0 {
		return nil, fmt.Errorf("pending claim %s: %w", claimID, model.ErrNotFound)
	}
	claim := claims[ci]

	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfItem(items, claim.ItemID)
	if idx < 0 {
		return nil, fmt.Errorf("item %s of claim %s: %w", claim.ItemID, claimID, model.ErrNotFound)
	}
	item := items[idx]

	if !actor.CanManage(&item) {
		return nil, fmt.Errorf("deciding claim %s: %w", claimID, model.ErrForbidden)
	}
	if item.Status != model.StatusClaimed {
		return nil, fmt.Errorf("item %s is %s: %w", item.ID, item.Status, model.ErrInvalidState)
	}

	claim.Status = decision
	if decision == model.ClaimApproved {
		item.SetStatus(model.StatusResolved)
	} else {
		prior := claim.PriorStatus
		if !model.IsOpenStatus(prior) {
			prior = model.StatusLost
		}
		item.SetStatus(prior)
	}
	claims[ci] = claim
	items[idx] = item

	if err := s.p.Save(ctx, items, claims); err != nil {
		return nil, fmt.Errorf("saving claim decision: %w", err)
	}
	return &claim, nil
}

func (s *Store) uniqueClaimID(claims []model.Claim) string {
	for {
		id := s.newID()
		taken := false
		for _, c := range claims {
			if c.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}
