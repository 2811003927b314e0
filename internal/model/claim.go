package model

import "time"

// Claim is a request by a user to take back (or hand over) an item.
// Claims are never edited except for their status.
type Claim struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"itemId"`
	ClaimantID  string    `json:"claimantId"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	PriorStatus string    `json:"priorStatus"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Claim statuses.
const (
	ClaimPending  = "pending"
	ClaimApproved = "approved"
	ClaimRejected = "rejected"
)
