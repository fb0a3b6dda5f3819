package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusfound/campusfound/internal/email"
	"github.com/campusfound/campusfound/internal/portal/model"
	"github.com/campusfound/campusfound/internal/portal/repository"
)

// Sentinel errors for the claim flow.
var (
	ErrNotAuthenticated  = errors.New("claimant identity required")
	ErrItemNotFound      = errors.New("item not found")
	ErrAlreadyClaimed    = errors.New("item is not available for claiming")
	ErrChallengeNotFound = errors.New("no claim challenge for this item and claimant")
	ErrChallengeExpired  = errors.New("claim code has expired; request a new one")
	ErrCodeMismatch      = errors.New("claim code does not match")
	ErrDeliveryFailed    = errors.New("could not deliver claim code")
)

// claimItemStore is the item lookup interface required by ClaimService.
// *repository.ItemRepository satisfies it.
type claimItemStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Item, error)
}

// challengeStore is the challenge storage interface required by ClaimService.
// *repository.ClaimChallengeRepository satisfies it.
type challengeStore interface {
	Put(ctx context.Context, ch *model.ClaimChallenge) error
	Get(ctx context.Context, itemID uuid.UUID, claimantID string) (*model.ClaimChallenge, error)
	Delete(ctx context.Context, itemID uuid.UUID, claimantID string) error
	ClaimAndConsume(ctx context.Context, itemID uuid.UUID, claimantID string, now time.Time) error
}

// ClaimService runs the claim-verification state machine: a claimant requests
// a challenge, receives a one-time code by email, and submits it to take
// ownership of an unclaimed item.
type ClaimService struct {
	items      claimItemStore
	challenges challengeStore
	mailer     email.Sender
	dispatcher eventDispatcher
	logger     *zap.Logger
}

// NewClaimService creates a ClaimService.
func NewClaimService(items claimItemStore, challenges challengeStore, mailer email.Sender, logger *zap.Logger) *ClaimService {
	return &ClaimService{items: items, challenges: challenges, mailer: mailer, logger: logger}
}

// SetDispatcher configures the webhook event dispatcher. Optional.
func (s *ClaimService) SetDispatcher(d eventDispatcher) {
	s.dispatcher = d
}

// IssueChallenge generates a fresh one-time code for (item, claimant), stores
// it with a 10-minute expiry — replacing any earlier challenge for the pair —
// and emails it to the claimant. If delivery fails the stored challenge is
// rolled back so no code exists that the claimant was never told about.
func (s *ClaimService) IssueChallenge(ctx context.Context, itemID uuid.UUID, claimantID, claimantEmail string) error {
	if claimantID == "" || claimantEmail == "" {
		return ErrNotAuthenticated
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("get item: %w", err)
	}
	if item.Status != model.ItemStatusUnclaimed {
		return ErrAlreadyClaimed
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate claim code: %w", err)
	}

	now := time.Now().UTC()
	ch := &model.ClaimChallenge{
		ItemID:     itemID,
		ClaimantID: claimantID,
		Code:       code,
		CreatedAt:  now,
		ExpiresAt:  now.Add(model.ClaimChallengeTTL),
	}
	if err := s.challenges.Put(ctx, ch); err != nil {
		return fmt.Errorf("persist challenge: %w", err)
	}

	subject := "Your claim code for \"" + item.Title + "\""
	body := fmt.Sprintf(
		"Your one-time claim code is %s.\n\nIt expires in %d minutes. "+
			"If you did not request this code, ignore this message.",
		code, int(model.ClaimChallengeTTL.Minutes()),
	)
	if err := s.mailer.Send(ctx, claimantEmail, subject, body); err != nil {
		// Roll the challenge back; the claimant never received the code.
		if delErr := s.challenges.Delete(ctx, itemID, claimantID); delErr != nil {
			s.logger.Error("rollback challenge after delivery failure",
				zap.String("item_id", itemID.String()),
				zap.Error(delErr),
			)
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("claim challenge issued",
		zap.String("item_id", itemID.String()),
		zap.String("claimant_id", claimantID),
		zap.Time("expires_at", ch.ExpiresAt),
	)
	return nil
}

// Verify checks the submitted code and, on success, atomically claims the
// item for the claimant and consumes the challenge.
//
// Expired and mismatched codes leave the challenge in place: a mismatch can
// be retried until expiry, and an expired challenge is only replaced by an
// explicit re-issue.
func (s *ClaimService) Verify(ctx context.Context, itemID uuid.UUID, claimantID, submittedCode string) error {
	if claimantID == "" {
		return ErrNotAuthenticated
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("get item: %w", err)
	}
	if item.Status != model.ItemStatusUnclaimed {
		return ErrAlreadyClaimed
	}

	ch, err := s.challenges.Get(ctx, itemID, claimantID)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("get challenge: %w", err)
	}

	now := time.Now().UTC()
	if ch.Expired(now) {
		return ErrChallengeExpired
	}
	if submittedCode != ch.Code {
		return ErrCodeMismatch
	}

	// Single atomic unit: the status CAS closes the window where two
	// claimants both hold valid codes for the same item.
	if err := s.challenges.ClaimAndConsume(ctx, itemID, claimantID, now); err != nil {
		if errors.Is(err, repository.ErrItemNotClaimable) {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("claim item: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, "item.claimed", map[string]string{
			"item_id":     itemID.String(),
			"claimant_id": claimantID,
		})
	}

	s.logger.Info("item claimed",
		zap.String("item_id", itemID.String()),
		zap.String("claimant_id", claimantID),
	)
	return nil
}

// codeSpace spans the 900000 equally likely codes 100000–999999. The lower
// bound keeps every code at six digits; this is the full code space, not a
// truncation.
var codeSpace = big.NewInt(900000)

// generateCode returns a uniformly random 6-digit code as a string.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
