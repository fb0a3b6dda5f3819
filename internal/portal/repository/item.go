package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusfound/campusfound/internal/portal/model"
)

// ErrItemNotFound is returned when an item is not found in the database.
var ErrItemNotFound = errors.New("item not found")

// ErrUnavailable wraps infrastructure failures talking to PostgreSQL. Callers
// may retry; errors.Is(err, ErrUnavailable) distinguishes these from domain
// errors.
var ErrUnavailable = errors.New("store unavailable")

// unavailable wraps a database error with ErrUnavailable, preserving detail.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

const itemColumns = `id, type, status, title, description, location, photo_key,
	image_labels, reporter_id, reporter_email, claimant_id, is_approved,
	created_at, claimed_at`

// ItemRepository provides CRUD operations for items against PostgreSQL.
type ItemRepository struct {
	db *pgxpool.Pool
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(db *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item. The ID and CreatedAt fields are assigned here.
func (r *ItemRepository) Create(ctx context.Context, item *model.Item) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO items (
			id, type, status, title, description, location, photo_key,
			image_labels, reporter_id, reporter_email, is_approved, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		item.ID, item.Type, item.Status, item.Title, item.Description,
		item.Location, item.PhotoKey, item.ImageLabels, item.ReporterID,
		item.ReporterEmail, item.IsApproved, item.CreatedAt,
	)
	if err != nil {
		return unavailable("insert item", err)
	}
	return nil
}

// GetByID retrieves an item by its UUID.
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, unavailable("get item", err)
	}
	return item, nil
}

// List returns items matching the filter, newest first.
func (r *ItemRepository) List(ctx context.Context, f model.ListFilter) ([]*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	args := []any{}

	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.ApprovedOnly {
		query += " AND is_approved = true"
	}

	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list items", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, unavailable("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list items", err)
	}
	return items, nil
}

// ListCandidates returns the match pool: approved, unclaimed items of the
// given type, oldest first so stable match ordering is deterministic.
func (r *ItemRepository) ListCandidates(ctx context.Context, t model.ItemType) ([]*model.Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE type = $1 AND status = $2 AND is_approved = true
		 ORDER BY created_at ASC`,
		t, model.ItemStatusUnclaimed,
	)
	if err != nil {
		return nil, unavailable("list candidates", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, unavailable("scan candidate", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list candidates", err)
	}
	return items, nil
}

// SetApproval marks the moderation outcome. Approval also moves a pending
// item into the unclaimed pool.
func (r *ItemRepository) SetApproval(ctx context.Context, id uuid.UUID, approved bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE items SET is_approved = $2,
			status = CASE WHEN $2 AND status = $3 THEN $4 ELSE status END
		 WHERE id = $1`,
		id, approved, model.ItemStatusPending, model.ItemStatusUnclaimed,
	)
	if err != nil {
		return unavailable("set approval", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// SetPhoto records the stored photo key and the labels returned by the
// vision service.
func (r *ItemRepository) SetPhoto(ctx context.Context, id uuid.UUID, photoKey string, labels []string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE items SET photo_key = $2, image_labels = $3 WHERE id = $1`,
		id, photoKey, labels,
	)
	if err != nil {
		return unavailable("set photo", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Delete removes an item (admin rejection).
func (r *ItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// CountByStatus returns item counts grouped by status, for metrics.
func (r *ItemRepository) CountByStatus(ctx context.Context) (map[model.ItemStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, unavailable("count items", err)
	}
	defer rows.Close()

	counts := make(map[model.ItemStatus]int)
	for rows.Next() {
		var status model.ItemStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, unavailable("scan count", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// scanItem reads one item row from a pgx.Row or pgx.Rows.
func scanItem(row pgx.Row) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(
		&item.ID, &item.Type, &item.Status, &item.Title, &item.Description,
		&item.Location, &item.PhotoKey, &item.ImageLabels, &item.ReporterID,
		&item.ReporterEmail, &item.ClaimantID, &item.IsApproved,
		&item.CreatedAt, &item.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
