package model

import (
	"time"

	"github.com/google/uuid"
)

// ItemType says whether the posting reports a lost or a found object.
type ItemType string

const (
	ItemTypeLost  ItemType = "lost"
	ItemTypeFound ItemType = "found"
)

// Opposite returns the counterpart type used when building a match pool:
// lost reports search found postings and vice versa.
func (t ItemType) Opposite() ItemType {
	if t == ItemTypeLost {
		return ItemTypeFound
	}
	return ItemTypeLost
}

// ItemStatus represents the lifecycle state of a posting.
type ItemStatus string

const (
	// ItemStatusPending — submitted, awaiting admin moderation.
	ItemStatusPending ItemStatus = "pending"
	// ItemStatusUnclaimed — approved and visible; eligible for matching and claims.
	ItemStatusUnclaimed ItemStatus = "unclaimed"
	// ItemStatusClaimed — transferred to a verified claimant. Terminal.
	ItemStatusClaimed ItemStatus = "claimed"
)

// Item is the core domain model for a lost-and-found posting.
//
// ClaimantID and ClaimedAt are set if and only if Status is claimed; the only
// writer of all three fields is the claim-verification transaction.
type Item struct {
	ID            uuid.UUID  `json:"id"                    db:"id"`
	Type          ItemType   `json:"type"                  db:"type"`
	Status        ItemStatus `json:"status"                db:"status"`
	Title         string     `json:"title"                 db:"title"`
	Description   string     `json:"description"           db:"description"`
	Location      string     `json:"location"              db:"location"`
	PhotoKey      string     `json:"photo_key,omitempty"   db:"photo_key"`
	ImageLabels   []string   `json:"image_labels"          db:"image_labels"`
	ReporterID    string     `json:"reporter_id"           db:"reporter_id"`
	ReporterEmail string     `json:"-"                     db:"reporter_email"`
	ClaimantID    *string    `json:"claimant_id,omitempty" db:"claimant_id"`
	IsApproved    bool       `json:"is_approved"           db:"is_approved"`
	CreatedAt     time.Time  `json:"created_at"            db:"created_at"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"  db:"claimed_at"`
}

// ReportRequest is the payload for creating a new posting.
type ReportRequest struct {
	Type        ItemType `json:"type"        binding:"required,oneof=lost found"`
	Title       string   `json:"title"       binding:"required"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	// ReporterID and ReporterEmail are set by the handler from the verified
	// identity token, never from the client body.
	ReporterID    string `json:"-"`
	ReporterEmail string `json:"-"`
}

// ListFilter narrows an item listing.
type ListFilter struct {
	Type   ItemType
	Status ItemStatus
	// ApprovedOnly restricts the listing to moderated postings. The public
	// listing always sets it; the admin queue clears it.
	ApprovedOnly bool
	Limit        int
	Offset       int
}
