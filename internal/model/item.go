package model

import "time"

// Item is a lost or found item report.
type Item struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	Location       string    `json:"location"`
	Contact        string    `json:"contact,omitempty"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	OwnerID        string    `json:"ownerId"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Claimed        bool      `json:"claimed"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Item statuses.
const (
	StatusLost     = "Lost"
	StatusFound    = "Found"
	StatusClaimed  = "Claimed"
	StatusResolved = "Resolved"
)

// Item categories.
const (
	CategoryElectronic = "electronic"
	CategoryClothing   = "clothing"
	CategoryAccessory  = "accessory"
	CategoryDocument   = "document"
	CategoryBook       = "book"
	CategoryOther      = "other"
)

// Categories lists every valid category in display order.
var Categories = []string{
	CategoryElectronic,
	CategoryClothing,
	CategoryAccessory,
	CategoryDocument,
	CategoryBook,
	CategoryOther,
}

// Statuses lists every valid item status.
var Statuses = []string{StatusLost, StatusFound, StatusClaimed, StatusResolved}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsOpenStatus reports whether s is a status an item can be created in
// or reverted to (Lost or Found).
func IsOpenStatus(s string) bool {
	return s == StatusLost || s == StatusFound
}

// ClaimedFor returns the claimed flag implied by status.
func ClaimedFor(status string) bool {
	return status == StatusClaimed || status == StatusResolved
}

// SetStatus changes the item's status and keeps Claimed in sync.
func (i *Item) SetStatus(status string) {
	i.Status = status
	i.Claimed = ClaimedFor(status)
}
