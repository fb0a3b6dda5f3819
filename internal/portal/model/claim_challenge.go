package model

import (
	"time"

	"github.com/google/uuid"
)

// ClaimChallengeTTL is how long an issued code stays valid.
const ClaimChallengeTTL = 10 * time.Minute

// ClaimChallenge is a short-lived secret code binding one (item, claimant)
// pair. It is transient state owned by the claim flow: created on claim
// intent, consumed on successful verification, overwritten by any re-issue
// for the same pair. It is never a source of truth for item ownership.
type ClaimChallenge struct {
	ItemID     uuid.UUID `json:"item_id"     db:"item_id"`
	ClaimantID string    `json:"claimant_id" db:"claimant_id"`
	Code       string    `json:"-"           db:"code"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"  db:"expires_at"`
}

// Expired reports whether the challenge window has passed at the given time.
// Expired challenges are not deleted here; verification rejects them and a
// re-issue replaces them.
func (c *ClaimChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
