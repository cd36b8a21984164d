package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/integration-api/internal/model"
)

const itemColumns = `id, name, description, price, quantity, created_at, updated_at`

// Items is the record store for items.
type Items struct {
	DB *sql.DB

	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time
}

// NewItems returns an item store backed by db.
func NewItems(db *sql.DB) *Items {
	return &Items{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new item and returns the stored record.
func (s *Items) Create(ctx context.Context, in model.NewItem) (*model.Item, error) {
	var quantity int64
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	now := s.Now()

	result, err := s.DB.ExecContext(ctx,
		`INSERT INTO items (name, description, price, quantity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, nullString(in.Description), nullFloat(in.Price), quantity, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d vanished after insert", id)
	}
	return item, nil
}

// Get returns an item by ID, or nil if it does not exist.
func (s *Items) Get(ctx context.Context, id int64) (*model.Item, error) {
	item, err := scanItem(s.DB.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// List returns all items ordered by ID.
func (s *Items) List(ctx context.Context) ([]model.Item, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// Update writes the fields set in patch and refreshes updated_at. An empty
// patch returns the item unchanged. Returns nil if the item does not exist.
func (s *Items) Update(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	var sets []string
	var args []any
	if patch.Name.Set {
		sets = append(sets, "name = ?")
		args = append(args, nullString(patch.Name.Ptr()))
	}
	if patch.Description.Set {
		sets = append(sets, "description = ?")
		args = append(args, nullString(patch.Description.Ptr()))
	}
	if patch.Price.Set {
		sets = append(sets, "price = ?")
		args = append(args, nullFloat(patch.Price.Ptr()))
	}
	if patch.Quantity.Set {
		sets = append(sets, "quantity = ?")
		args = append(args, nullInt(patch.Quantity.Ptr()))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.Now(), id)

	result, err := s.DB.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	return s.Get(ctx, id)
}

// Delete permanently removes an item. Reports whether a row was removed.
func (s *Items) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description sql.NullString
	var price sql.NullFloat64
	if err := row.Scan(&item.ID, &item.Name, &description, &price, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		item.Description = &description.String
	}
	if price.Valid {
		item.Price = &price.Float64
	}
	return item, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
