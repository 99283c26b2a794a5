package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/repository"
)

// itemRepository implements repository.ItemRepository for SQLite.
type itemRepository struct {
	db *DB
}

// NewItemRepository creates a new SQLite item repository.
func NewItemRepository(db *DB) repository.ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, name, description, location_found, contact_info, image_ref,
	found_by, is_claimed, claimed_by, claimed_at, created_at`

// Create creates a new item.
func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (name, description, location_found, contact_info, image_ref, found_by, is_claimed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		item.Name,
		item.Description,
		item.LocationFound,
		item.ContactInfo,
		item.ImageRef,
		item.FoundByID,
		item.CreatedAt.Format(time.RFC3339),
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: reporting user does not exist", domain.ErrUserNotFound)
		}
		return fmt.Errorf("failed to create item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	item.ID = id

	return nil
}

// GetByID retrieves an item by ID.
func (r *itemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// List returns items with pagination, newest first.
func (r *itemRepository) List(ctx context.Context, opts repository.ItemListOptions) (*repository.ListResult[domain.Item], error) {
	where, args := buildItemFilter(opts)

	var total int64
	countQuery := `SELECT COUNT(*) FROM items` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := `SELECT ` + itemColumns + ` FROM items` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return &repository.ListResult[domain.Item]{
		Items:  items,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ClaimIfOpen atomically claims an item. The UPDATE only matches when the
// item is unclaimed and was not reported by the claimant, so two concurrent
// claims can never both succeed. Callers classify a false return by
// re-reading the item.
func (r *itemRepository) ClaimIfOpen(ctx context.Context, itemID, claimantID int64, at time.Time) (bool, error) {
	query := `
		UPDATE items
		SET is_claimed = 1, claimed_by = ?, claimed_at = ?
		WHERE id = ? AND is_claimed = 0 AND found_by <> ?
	`

	result, err := r.db.ExecContext(ctx, query,
		claimantID,
		at.Format(time.RFC3339),
		itemID,
		claimantID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// Delete deletes an item by ID.
func (r *itemRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

// ListImageRefs returns the image references of all stored items.
func (r *itemRepository) ListImageRefs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT image_ref FROM items WHERE image_ref <> ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to list image refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan image ref: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image refs: %w", err)
	}
	return refs, nil
}

// buildItemFilter translates list options into a WHERE clause.
func buildItemFilter(opts repository.ItemListOptions) (string, []interface{}) {
	var conds []string
	var args []interface{}

	switch opts.State {
	case domain.ItemStateOpen:
		conds = append(conds, "is_claimed = 0")
	case domain.ItemStateClaimed:
		conds = append(conds, "is_claimed = 1")
	}

	if opts.FoundByID != 0 {
		conds = append(conds, "found_by = ?")
		args = append(args, opts.FoundByID)
	}

	if opts.ClaimedByID != 0 {
		conds = append(conds, "claimed_by = ?")
		args = append(args, opts.ClaimedByID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	var isClaimed int
	var claimedBy sql.NullInt64
	var claimedAt sql.NullString
	var createdAt string

	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.LocationFound,
		&item.ContactInfo,
		&item.ImageRef,
		&item.FoundByID,
		&isClaimed,
		&claimedBy,
		&claimedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	item.IsClaimed = isClaimed != 0
	if claimedBy.Valid {
		v := claimedBy.Int64
		item.ClaimedByID = &v
	}
	if claimedAt.Valid {
		if t, err := time.Parse(time.RFC3339, claimedAt.String); err == nil {
			item.ClaimedAt = &t
		}
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return item, nil
}

// Ensure itemRepository implements repository.ItemRepository.
var _ repository.ItemRepository = (*itemRepository)(nil)
