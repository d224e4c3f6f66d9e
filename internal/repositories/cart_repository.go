package repositories

import (
	"context"
	"database/sql"
	"time"

	"tokoBack/internal/models"
)

var ErrCartItemNotFound = models.ErrCartItemNotFound

type CartRepository struct {
	DB *sql.DB
}

// AddItem inserts a cart line or, when the product is already in the cart,
// increments its quantity. The stored unit price stays the add-time snapshot.
func (r *CartRepository) AddItem(ctx context.Context, item models.CartItem) (models.CartItem, error) {
	now := time.Now()

	var existing models.CartItem
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, quantity FROM cart_items WHERE user_id = ? AND product_id = ?`,
		item.UserID, item.ProductID).Scan(&existing.ID, &existing.Quantity)
	switch {
	case err == sql.ErrNoRows:
		item.CreatedAt = now
		item.UpdatedAt = now
		result, err := r.DB.ExecContext(ctx,
			`INSERT INTO cart_items (user_id, product_id, quantity, unit_price, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.UserID, item.ProductID, item.Quantity, item.UnitPrice, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return models.CartItem{}, err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return models.CartItem{}, err
		}
		item.ID = int(id)
	case err != nil:
		return models.CartItem{}, err
	default:
		item.ID = existing.ID
		item.Quantity += existing.Quantity
		if _, err := r.DB.ExecContext(ctx,
			`UPDATE cart_items SET quantity = ?, updated_at = ? WHERE id = ?`,
			item.Quantity, now, item.ID); err != nil {
			return models.CartItem{}, err
		}
	}

	item.Subtotal = item.UnitPrice * float64(item.Quantity)
	return item, nil
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, itemID, userID, quantity int) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		quantity, itemID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, itemID, userID int) error {
	result, err := r.DB.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *CartRepository) GetItemsByUser(ctx context.Context, userID int) ([]models.CartItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, product_id, quantity, unit_price, created_at, updated_at
		 FROM cart_items
		 WHERE user_id = ?
		 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		it.Subtotal = it.UnitPrice * float64(it.Quantity)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *CartRepository) ClearCart(ctx context.Context, userID int) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}
