package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/repository"
)

// itemRepository implements repository.ItemRepository for PostgreSQL.
type itemRepository struct {
	db *DB
}

// NewItemRepository creates a new PostgreSQL item repository.
func NewItemRepository(db *DB) repository.ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, name, description, location_found, contact_info, image_ref,
	found_by, is_claimed, claimed_by, claimed_at, created_at`

// Create creates a new item.
func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (name, description, location_found, contact_info, image_ref, found_by, is_claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		item.Name,
		item.Description,
		item.LocationFound,
		item.ContactInfo,
		item.ImageRef,
		item.FoundByID,
		item.CreatedAt,
	).Scan(&item.ID)

	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: reporting user does not exist", domain.ErrUserNotFound)
		}
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// GetByID retrieves an item by ID.
func (r *itemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = int(total)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+itemColumns+` FROM items%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, limit, opts.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
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
// claims can never both succeed.
func (r *itemRepository) ClaimIfOpen(ctx context.Context, itemID, claimantID int64, at time.Time) (bool, error) {
	query := `
		UPDATE items
		SET is_claimed = TRUE, claimed_by = $1, claimed_at = $2
		WHERE id = $3 AND is_claimed = FALSE AND found_by <> $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, claimantID, at, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to claim item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete deletes an item by ID.
func (r *itemRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

// ListImageRefs returns the image references of all stored items.
func (r *itemRepository) ListImageRefs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT image_ref FROM items WHERE image_ref <> ''`)
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
		conds = append(conds, "is_claimed = FALSE")
	case domain.ItemStateClaimed:
		conds = append(conds, "is_claimed = TRUE")
	}

	if opts.FoundByID != 0 {
		args = append(args, opts.FoundByID)
		conds = append(conds, "found_by = $"+strconv.Itoa(len(args)))
	}

	if opts.ClaimedByID != 0 {
		args = append(args, opts.ClaimedByID)
		conds = append(conds, "claimed_by = $"+strconv.Itoa(len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.LocationFound,
		&item.ContactInfo,
		&item.ImageRef,
		&item.FoundByID,
		&item.IsClaimed,
		&item.ClaimedByID,
		&item.ClaimedAt,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// isForeignKeyViolation checks for PostgreSQL foreign key constraint violations.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// Ensure itemRepository implements repository.ItemRepository.
var _ repository.ItemRepository = (*itemRepository)(nil)
