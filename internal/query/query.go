// Package query filters and orders snapshots of item reports.
//
// Query is pure: it never mutates its input and the same items and Spec
// always produce the same result.
package query

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/erazemk/izgubljeno/internal/model"
)

// All disables the category, status or location filter.
const All = "all"

// Sort keys.
const (
	SortDate     = "date"
	SortTitle    = "title"
	SortLocation = "location"
)

// Sort directions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Spec selects and orders items.
type Spec struct {
	Term           string `json:"term"`
	Category       string `json:"category"`
	Status         string `json:"status"`
	Location       string `json:"location"`
	SortBy         string `json:"sortBy"`
	SortOrder      string `json:"sortOrder"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// DefaultSpec returns a Spec matching every item, newest first.
func DefaultSpec() Spec {
	return Spec{
		Category:  All,
		Status:    All,
		Location:  All,
		SortBy:    SortDate,
		SortOrder: OrderDesc,
	}
}

// withDefaults fills empty fields with their defaults.
func (s Spec) withDefaults() Spec {
	d := DefaultSpec()
	if s.Category == "" {
		s.Category = d.Category
	}
	if s.Status == "" {
		s.Status = d.Status
	}
	if s.Location == "" {
		s.Location = d.Location
	}
	if s.SortBy == "" {
		s.SortBy = d.SortBy
	}
	if s.SortOrder == "" {
		s.SortOrder = d.SortOrder
	}
	return s
}

// Validate checks enumerated fields. Empty fields are treated as their
// defaults.
func (s Spec) Validate() error {
	s = s.withDefaults()
	verr := &model.ValidationError{}
	if s.Category != All && !model.ValidCategory(s.Category) {
		verr.Add("category", "unknown category "+s.Category)
	}
	if s.Status != All && !model.ValidStatus(s.Status) {
		verr.Add("status", "unknown status "+s.Status)
	}
	switch s.SortBy {
	case SortDate, SortTitle, SortLocation:
	default:
		verr.Add("sortBy", "unknown sort key "+s.SortBy)
	}
	switch s.SortOrder {
	case OrderAsc, OrderDesc:
	default:
		verr.Add("sortOrder", "unknown sort order "+s.SortOrder)
	}
	return verr.Err()
}

// Query returns the items matching spec in the requested order. The result
// is a new slice; items is left untouched. Equal sort keys keep their input
// order.
func Query(items []model.Item, spec Spec) ([]model.Item, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.withDefaults()

	fold := cases.Fold()
	term := fold.String(strings.TrimSpace(spec.Term))

	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if spec.OrganizationID != "" && item.OrganizationID != spec.OrganizationID {
			continue
		}
		if term != "" &&
			!strings.Contains(fold.String(item.Title), term) &&
			!strings.Contains(fold.String(item.Description), term) {
			continue
		}
		if spec.Category != All && item.Category != spec.Category {
			continue
		}
		if spec.Status != All && item.Status != spec.Status {
			continue
		}
		if spec.Location != All && item.Location != spec.Location {
			continue
		}
		out = append(out, item)
	}

	compare := comparator(spec.SortBy, fold)
	if spec.SortOrder == OrderDesc {
		asc := compare
		compare = func(a, b model.Item) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)

	return out, nil
}

func comparator(sortBy string, fold cases.Caser) func(a, b model.Item) int {
	switch sortBy {
	case SortTitle:
		return func(a, b model.Item) int {
			return strings.Compare(fold.String(a.Title), fold.String(b.Title))
		}
	case SortLocation:
		return func(a, b model.Item) int {
			return strings.Compare(fold.String(a.Location), fold.String(b.Location))
		}
	default:
		return func(a, b model.Item) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
}

// Locations returns the distinct locations present in items, sorted
// case-insensitively. It feeds the location facet.
func Locations(items []model.Item) []string {
	seen := make(map[string]bool)
	locs := []string{}
	for _, item := range items {
		if item.Location == "" || seen[item.Location] {
			continue
		}
		seen[item.Location] = true
		locs = append(locs, item.Location)
	}
	fold := cases.Fold()
	slices.SortStableFunc(locs, func(a, b string) int {
		return cmp.Compare(fold.String(a), fold.String(b))
	})
	return locs
}
