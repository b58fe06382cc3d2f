package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

const shoppingColumns = `id, list_type, name, quantity, unit_price, purchased, created_at, updated_at`

type shoppingRow struct {
	ID        string          `db:"id"`
	ListType  string          `db:"list_type"`
	Name      string          `db:"name"`
	Quantity  sql.NullInt64   `db:"quantity"`
	UnitPrice sql.NullFloat64 `db:"unit_price"`
	Purchased sql.NullBool    `db:"purchased"`
	CreatedAt timestamp       `db:"created_at"`
	UpdatedAt timestamp       `db:"updated_at"`
}

// toEntity coerces missing numbers: quantity defaults to 1, price to 0.
func (r shoppingRow) toEntity() entities.ShoppingItem {
	quantity := 1
	if r.Quantity.Valid && r.Quantity.Int64 > 0 {
		quantity = int(r.Quantity.Int64)
	}
	price := 0.0
	if r.UnitPrice.Valid && !math.IsNaN(r.UnitPrice.Float64) && r.UnitPrice.Float64 > 0 {
		price = r.UnitPrice.Float64
	}
	return entities.ShoppingItem{
		ID:        r.ID,
		List:      r.ListType,
		Name:      r.Name,
		Quantity:  quantity,
		UnitPrice: price,
		Purchased: r.Purchased.Bool,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

// ShoppingRepositoryImpl implements the ShoppingRepository interface
type ShoppingRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewShoppingRepository creates a new shopping item repository
func NewShoppingRepository(db *sqlx.DB) *ShoppingRepositoryImpl {
	return &ShoppingRepositoryImpl{db: db, now: time.Now}
}

var _ ports.ShoppingRepository = (*ShoppingRepositoryImpl)(nil)

// Load returns the items of every list in creation order.
func (r *ShoppingRepositoryImpl) Load(ctx context.Context) ([]entities.ShoppingItem, error) {
	query := `
		SELECT ` + shoppingColumns + `
		FROM shopping_items
		ORDER BY created_at, id`

	var rows []shoppingRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load shopping items: %w", err)
	}

	items := make([]entities.ShoppingItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// Upsert inserts the item or overwrites the row with the same id.
func (r *ShoppingRepositoryImpl) Upsert(ctx context.Context, item entities.ShoppingItem) (entities.ShoppingItem, error) {
	now := stamp(r.now())
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := r.db.Rebind(`
		INSERT INTO shopping_items (` + shoppingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			list_type = excluded.list_type,
			name = excluded.name,
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			purchased = excluded.purchased,
			updated_at = excluded.updated_at
		RETURNING ` + shoppingColumns)

	var row shoppingRow
	err := r.db.QueryRowxContext(ctx, query,
		item.ID, item.List, item.Name, item.Quantity, item.UnitPrice, item.Purchased,
		stamp(createdAt), now,
	).StructScan(&row)
	if err != nil {
		return entities.ShoppingItem{}, fmt.Errorf("upsert shopping item %s: %w", item.ID, err)
	}

	return row.toEntity(), nil
}

// Delete removes the item. Deleting a missing id is not an error.
func (r *ShoppingRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM shopping_items WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete shopping item %s: %w", id, err)
	}
	return nil
}
