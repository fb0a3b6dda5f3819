package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusfound/campusfound/internal/portal/model"
)

// ErrChallengeNotFound is returned when no challenge exists for a pair.
var ErrChallengeNotFound = errors.New("claim challenge not found")

// ErrItemNotClaimable is returned by ClaimAndConsume when the item's status
// was not unclaimed at commit time — another claimant won the race, or the
// item was never claimable.
var ErrItemNotClaimable = errors.New("item is not unclaimed")

// ClaimChallengeRepository persists claim challenges and owns the atomic
// claim transition.
type ClaimChallengeRepository struct {
	db *pgxpool.Pool
}

// NewClaimChallengeRepository creates a new ClaimChallengeRepository.
func NewClaimChallengeRepository(db *pgxpool.Pool) *ClaimChallengeRepository {
	return &ClaimChallengeRepository{db: db}
}

// Put stores a challenge, overwriting any live challenge for the same
// (item, claimant) pair. At most one challenge per pair exists at a time.
func (r *ClaimChallengeRepository) Put(ctx context.Context, ch *model.ClaimChallenge) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO claim_challenges (item_id, claimant_id, code, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (item_id, claimant_id)
		 DO UPDATE SET code = $3, created_at = $4, expires_at = $5`,
		ch.ItemID, ch.ClaimantID, ch.Code, ch.CreatedAt, ch.ExpiresAt,
	)
	if err != nil {
		return unavailable("put challenge", err)
	}
	return nil
}

// Get returns the live challenge for the pair.
func (r *ClaimChallengeRepository) Get(ctx context.Context, itemID uuid.UUID, claimantID string) (*model.ClaimChallenge, error) {
	ch := &model.ClaimChallenge{}
	err := r.db.QueryRow(ctx,
		`SELECT item_id, claimant_id, code, created_at, expires_at
		 FROM claim_challenges WHERE item_id = $1 AND claimant_id = $2`,
		itemID, claimantID,
	).Scan(&ch.ItemID, &ch.ClaimantID, &ch.Code, &ch.CreatedAt, &ch.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, unavailable("get challenge", err)
	}
	return ch, nil
}

// Delete removes the challenge for the pair, if present.
func (r *ClaimChallengeRepository) Delete(ctx context.Context, itemID uuid.UUID, claimantID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM claim_challenges WHERE item_id = $1 AND claimant_id = $2`,
		itemID, claimantID,
	)
	if err != nil {
		return unavailable("delete challenge", err)
	}
	return nil
}

// ClaimAndConsume applies the claim transition as one transaction: the item
// status moves unclaimed→claimed with claimant and timestamp set, and the
// claimant's challenge row is deleted. The status change is guarded by its
// pre-claim value so two concurrent verifications cannot both succeed;
// the loser gets ErrItemNotClaimable.
func (r *ClaimChallengeRepository) ClaimAndConsume(ctx context.Context, itemID uuid.UUID, claimantID string, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return unavailable("begin claim tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE items
		 SET status = $3, claimant_id = $4, claimed_at = $5
		 WHERE id = $1 AND status = $2`,
		itemID, model.ItemStatusUnclaimed, model.ItemStatusClaimed, claimantID, now,
	)
	if err != nil {
		return unavailable("claim item", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotClaimable
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM claim_challenges WHERE item_id = $1 AND claimant_id = $2`,
		itemID, claimantID,
	); err != nil {
		return unavailable("consume challenge", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit claim tx", err)
	}
	return nil
}
