// Package items owns the lifecycle of lost and found item reports and the
// claims made against them.
//
// A Store is the only writer of item and claim records. Every mutation loads
// the current snapshot from its Persistence, checks authorization and the
// state machine (Lost/Found -> Claimed -> Resolved), and saves a full
// replacement snapshot. Mutations are serialized by a single writer lock, so
// two concurrent claims on the same item cannot both pass the pending-claim
// guard.
package items

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/izgubljeno/internal/model"
)

// Persistence loads and saves full snapshots of items and claims.
type Persistence interface {
	LoadAll(ctx context.Context) ([]model.Item, error)
	SaveAll(ctx context.Context, items []model.Item) error
	LoadClaims(ctx context.Context) ([]model.Claim, error)
	SaveClaims(ctx context.Context, claims []model.Claim) error
	// Save stores both snapshots atomically: on error neither is changed.
	Save(ctx context.Context, items []model.Item, claims []model.Claim) error
}

// Store enforces the item lifecycle on top of a Persistence.
type Store struct {
	p     Persistence
	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how item and claim IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns a Store backed by p.
func New(p Persistence, opts ...Option) *Store {
	s := &Store{
		p:     p,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput holds the fields of a new item report.
type CreateInput struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Status         string `json:"status"`
	Location       string `json:"location"`
	Contact        string `json:"contact"`
	ImageURL       string `json:"imageUrl"`
	OrganizationID string `json:"organizationId"`
}

// Patch holds optional item changes. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Status      *string `json:"status"`
	Location    *string `json:"location"`
	Contact     *string `json:"contact"`
	ImageURL    *string `json:"imageUrl"`
}

// Snapshot returns every item in insertion order.
func (s *Store) Snapshot(ctx context.Context) ([]model.Item, error) {
	items, err := s.p.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	for i := range items {
		items[i].Claimed = model.ClaimedFor(items[i].Status)
	}
	return items, nil
}

// Get returns a single item.
func (s *Store) Get(ctx context.Context, id string) (*model.Item, error) {
	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfItem(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("item %s: %w", id, model.ErrNotFound)
	}
	return &items[idx], nil
}

// Create validates input and stores a new item owned by actor.
func (s *Store) Create(ctx context.Context, in CreateInput, actor model.Actor) (*model.Item, error) {
	if actor.ID == "" || !model.ValidRole(actor.Role) {
		return nil, fmt.Errorf("creating item: %w", model.ErrForbidden)
	}

	item := model.Item{
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Category:       in.Category,
		Location:       strings.TrimSpace(in.Location),
		Contact:        strings.TrimSpace(in.Contact),
		ImageURL:       strings.TrimSpace(in.ImageURL),
		OrganizationID: in.OrganizationID,
	}

	verr := &model.ValidationError{}
	if item.Title == "" {
		verr.Add("title", "required")
	}
	if item.Description == "" {
		verr.Add("description", "required")
	}
	if item.Location == "" {
		verr.Add("location", "required")
	}
	if !model.ValidCategory(item.Category) {
		verr.Add("category", "must be one of "+strings.Join(model.Categories, ", "))
	}
	if !model.IsOpenStatus(in.Status) {
		verr.Add("status", "must be Lost or Found")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	// Reports land in the reporter's organization unless a platform admin
	// files them elsewhere.
	if item.OrganizationID == "" {
		item.OrganizationID = actor.OrganizationID
	} else if item.OrganizationID != actor.OrganizationID && actor.Role != model.RoleSuperAdmin {
		return nil, fmt.Errorf("creating item in organization %s: %w", item.OrganizationID, model.ErrForbidden)
	}
	if item.Contact == "" {
		item.Contact = actor.Contact
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	item.ID = s.uniqueID(items)
	item.OwnerID = actor.ID
	item.CreatedAt = s.now()
	item.SetStatus(in.Status)

	items = append(items, item)
	if err := s.p.SaveAll(ctx, items); err != nil {
		return nil, fmt.Errorf("saving items: %w", err)
	}
	return &item, nil
}

// Update applies patch to an item. Status may only move between Lost and
// Found; Claimed and Resolved are reached through claims.
func (s *Store) Update(ctx context.Context, id string, patch Patch, actor model.Actor) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfItem(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("item %s: %w", id, model.ErrNotFound)
	}
	item := items[idx]

	if !actor.CanManage(&item) {
		return nil, fmt.Errorf("updating item %s: %w", id, model.ErrForbidden)
	}
	if item.Status == model.StatusResolved {
		return nil, fmt.Errorf("item %s is resolved: %w", id, model.ErrInvalidState)
	}

	verr := &model.ValidationError{}
	setText := func(field string, dst *string, v *string, required bool) {
		if v == nil {
			return
		}
		trimmed := strings.TrimSpace(*v)
		if required && trimmed == "" {
			verr.Add(field, "required")
			return
		}
		*dst = trimmed
	}
	setText("title", &item.Title, patch.Title, true)
	setText("description", &item.Description, patch.Description, true)
	setText("location", &item.Location, patch.Location, true)
	setText("contact", &item.Contact, patch.Contact, false)
	setText("imageUrl", &item.ImageURL, patch.ImageURL, false)

	if patch.Category != nil {
		if model.ValidCategory(*patch.Category) {
			item.Category = *patch.Category
		} else {
			verr.Add("category", "must be one of "+strings.Join(model.Categories, ", "))
		}
	}

	if patch.Status != nil && *patch.Status != item.Status {
		switch {
		case !model.ValidStatus(*patch.Status):
			verr.Add("status", "must be Lost or Found")
		case !model.IsOpenStatus(*patch.Status):
			return nil, fmt.Errorf("status %s can only be reached through a claim: %w", *patch.Status, model.ErrInvalidState)
		case !model.IsOpenStatus(item.Status):
			return nil, fmt.Errorf("item %s is %s: %w", id, item.Status, model.ErrInvalidState)
		default:
			item.SetStatus(*patch.Status)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	items[idx] = item
	if err := s.p.SaveAll(ctx, items); err != nil {
		return nil, fmt.Errorf("saving items: %w", err)
	}
	return &item, nil
}

// Delete removes an item together with all of its claims.
func (s *Store) Delete(ctx context.Context, id string, actor model.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	idx := indexOfItem(items, id)
	if idx < 0 {
		return fmt.Errorf("item %s: %w", id, model.ErrNotFound)
	}
	if !actor.CanManage(&items[idx]) {
		return fmt.Errorf("deleting item %s: %w", id, model.ErrForbidden)
	}
	if items[idx].Status == model.StatusResolved {
		return fmt.Errorf("item %s is resolved: %w", id, model.ErrInvalidState)
	}

	claims, err := s.p.LoadClaims(ctx)
	if err != nil {
		return fmt.Errorf("loading claims: %w", err)
	}
	kept := claims[:0]
	for _, c := range claims {
		if c.ItemID != id {
			kept = append(kept, c)
		}
	}

	items = append(items[:idx], items[idx+1:]...)
	if err := s.p.Save(ctx, items, kept); err != nil {
		return fmt.Errorf("saving items and claims: %w", err)
	}
	return nil
}

func (s *Store) uniqueID(items []model.Item) string {
	for {
		id := s.newID()
		if indexOfItem(items, id) < 0 {
			return id
		}
	}
}

func indexOfItem(items []model.Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
