package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusfound/campusfound/internal/email"
	"github.com/campusfound/campusfound/internal/match"
	"github.com/campusfound/campusfound/internal/portal/model"
	"github.com/campusfound/campusfound/internal/portal/repository"
)

// itemStore is the storage interface required by ItemService.
// *repository.ItemRepository satisfies it.
type itemStore interface {
	Create(ctx context.Context, item *model.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Item, error)
	List(ctx context.Context, f model.ListFilter) ([]*model.Item, error)
	ListCandidates(ctx context.Context, t model.ItemType) ([]*model.Item, error)
	SetApproval(ctx context.Context, id uuid.UUID, approved bool) error
	SetPhoto(ctx context.Context, id uuid.UUID, photoKey string, labels []string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// photoStore stores item photos in object storage; *photos.Store satisfies it.
type photoStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

// labeler is the external vision-labeling collaborator; it returns text
// labels for an image reference and is treated as a black box.
type labeler interface {
	LabelImage(ctx context.Context, imageRef string) ([]string, error)
}

// eventDispatcher fans portal events out to webhook subscribers.
// *notify.Service satisfies it.
type eventDispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// ItemService implements posting lifecycle and matching for lost-and-found
// items.
type ItemService struct {
	store      itemStore
	photos     photoStore
	labeler    labeler
	mailer     email.Sender
	dispatcher eventDispatcher
	logger     *zap.Logger
}

// NewItemService creates an ItemService.
func NewItemService(store itemStore, photos photoStore, labeler labeler, mailer email.Sender, logger *zap.Logger) *ItemService {
	return &ItemService{store: store, photos: photos, labeler: labeler, mailer: mailer, logger: logger}
}

// SetDispatcher configures the webhook event dispatcher. Optional.
func (s *ItemService) SetDispatcher(d eventDispatcher) {
	s.dispatcher = d
}

// Report creates a new posting. It enters the moderation queue as pending
// and unapproved; it joins the public pool only once an admin approves it.
func (s *ItemService) Report(ctx context.Context, req *model.ReportRequest) (*model.Item, error) {
	if req.ReporterID == "" || req.ReporterEmail == "" {
		return nil, ErrNotAuthenticated
	}

	item := &model.Item{
		Type:          req.Type,
		Status:        model.ItemStatusPending,
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		ImageLabels:   []string{},
		ReporterID:    req.ReporterID,
		ReporterEmail: req.ReporterEmail,
	}
	if err := s.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.logger.Info("item reported",
		zap.String("item_id", item.ID.String()),
		zap.String("type", string(item.Type)),
		zap.String("reporter_id", item.ReporterID),
	)
	return item, nil
}

// Get retrieves a single posting.
func (s *ItemService) Get(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns postings matching the filter.
func (s *ItemService) List(ctx context.Context, f model.ListFilter) ([]*model.Item, error) {
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// AttachPhoto stores the uploaded photo and asks the vision service to label
// it. A labeling failure is non-fatal: the photo is kept and the posting
// simply has no labels to match on until it is re-uploaded.
func (s *ItemService) AttachPhoto(ctx context.Context, id uuid.UUID, r io.Reader, size int64, contentType string) ([]string, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	key := item.ID.String() + "/photo"
	if err := s.photos.Upload(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	var labels []string
	ref, err := s.photos.URL(ctx, key)
	if err == nil {
		labels, err = s.labeler.LabelImage(ctx, ref)
	}
	if err != nil {
		s.logger.Warn("photo labeling failed",
			zap.String("item_id", id.String()),
			zap.Error(err),
		)
		labels = []string{}
	}

	if err := s.store.SetPhoto(ctx, id, key, labels); err != nil {
		return nil, fmt.Errorf("record photo: %w", err)
	}

	s.logger.Info("photo attached",
		zap.String("item_id", id.String()),
		zap.Int("labels", len(labels)),
	)
	return labels, nil
}

// Approve accepts a pending posting into the public pool, then runs the
// unattended notification pass: reporters of strongly matching counterpart
// postings are emailed, and a match.found event goes to webhook subscribers.
func (s *ItemService) Approve(ctx context.Context, id uuid.UUID) error {
	if err := s.store.SetApproval(ctx, id, true); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("approve item: %w", err)
	}

	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("reload item: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, "item.approved", map[string]string{
			"item_id": item.ID.String(),
			"type":    string(item.Type),
			"title":   item.Title,
		})
	}

	s.notifyMatches(ctx, item)
	return nil
}

// Reject removes a pending posting.
func (s *ItemService) Reject(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("reject item: %w", err)
	}
	s.logger.Info("item rejected", zap.String("item_id", id.String()))
	return nil
}

// Matches is the interactive search path: candidates of the opposite type
// scored against this posting's labels with the search threshold.
func (s *ItemService) Matches(ctx context.Context, id uuid.UUID) ([]match.Match, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	candidates, err := s.store.ListCandidates(ctx, item.Type.Opposite())
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	return match.FindMatches(item.ImageLabels, candidates, match.SearchThreshold), nil
}

// notifyMatches scores the newly approved posting against the counterpart
// pool with the stricter notification threshold. The new posting's labels are
// the query (and the score denominator) for every candidate.
func (s *ItemService) notifyMatches(ctx context.Context, item *model.Item) {
	candidates, err := s.store.ListCandidates(ctx, item.Type.Opposite())
	if err != nil {
		s.logger.Error("match notification: list candidates", zap.Error(err))
		return
	}

	matches := match.FindMatches(item.ImageLabels, candidates, match.NotifyThreshold)
	for _, m := range matches {
		subject := "Possible match for your " + string(m.Item.Type) + " item \"" + m.Item.Title + "\""
		body := fmt.Sprintf(
			"A newly posted %s item, %q, matches yours with a similarity of %.0f%%.\n\n"+
				"Open the portal and review posting %s.",
			item.Type, item.Title, m.Score, item.ID,
		)
		if err := s.mailer.Send(ctx, m.Item.ReporterEmail, subject, body); err != nil {
			s.logger.Warn("match notification email failed",
				zap.String("item_id", m.Item.ID.String()),
				zap.Error(err),
			)
		}

		if s.dispatcher != nil {
			s.dispatcher.Dispatch(ctx, "match.found", map[string]string{
				"item_id":    item.ID.String(),
				"matched_id": m.Item.ID.String(),
				"score":      fmt.Sprintf("%.2f", m.Score),
			})
		}
	}

	if len(matches) > 0 {
		s.logger.Info("match notifications sent",
			zap.String("item_id", item.ID.String()),
			zap.Int("matches", len(matches)),
		)
	}
}
