package repositories

import (
	"context"
	"database/sql"
	"time"

	"tokoBack/internal/billing/fsm"
	"tokoBack/internal/models"
)

var ErrInvoiceNotFound = models.ErrInvoiceNotFound

type InvoiceRepository struct {
	DB *sql.DB
}

// CreateInvoiceWithItems persists the invoice and its frozen line items in a
// single transaction. Either everything lands or nothing does.
func (r *InvoiceRepository) CreateInvoiceWithItems(ctx context.Context, invoice models.Invoice, items []models.InvoiceLineItem) (models.Invoice, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Invoice{}, err
	}

	now := time.Now()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	if invoice.InvoiceDate.IsZero() {
		invoice.InvoiceDate = now
	}

	query := `
		INSERT INTO invoices (user_id, external_id, status, checkout_url, payment_amount, payment_date, invoice_date, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		invoice.UserID, invoice.ExternalID, invoice.Status, invoice.CheckoutURL,
		invoice.PaymentAmount, invoice.PaymentDate, invoice.InvoiceDate, invoice.Description,
		invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	invoiceID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	invoice.ID = int(invoiceID)

	for i := range items {
		items[i].InvoiceID = invoice.ID
		res, err := tx.ExecContext(ctx,
			`INSERT INTO invoice_line_items (invoice_id, product_id, quantity, unit_price, line_total)
			 VALUES (?, ?, ?, ?, ?)`,
			items[i].InvoiceID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice, items[i].LineTotal)
		if err != nil {
			tx.Rollback()
			return models.Invoice{}, err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return models.Invoice{}, err
		}
		items[i].ID = int(itemID)
	}

	if err := tx.Commit(); err != nil {
		return models.Invoice{}, err
	}

	invoice.Items = items
	return invoice, nil
}

func (r *InvoiceRepository) GetInvoiceByID(ctx context.Context, id int) (models.Invoice, error) {
	return r.getInvoice(ctx, `WHERE id = ?`, id)
}

func (r *InvoiceRepository) GetInvoiceByExternalID(ctx context.Context, externalID string) (models.Invoice, error) {
	return r.getInvoice(ctx, `WHERE external_id = ?`, externalID)
}

func (r *InvoiceRepository) getInvoice(ctx context.Context, where string, arg any) (models.Invoice, error) {
	var invoice models.Invoice
	query := `
		SELECT id, user_id, external_id, status, checkout_url, payment_amount, payment_date, invoice_date, description, created_at, updated_at
		FROM invoices ` + where
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&invoice.ID, &invoice.UserID, &invoice.ExternalID, &invoice.Status, &invoice.CheckoutURL,
		&invoice.PaymentAmount, &invoice.PaymentDate, &invoice.InvoiceDate, &invoice.Description,
		&invoice.CreatedAt, &invoice.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Invoice{}, ErrInvoiceNotFound
		}
		return models.Invoice{}, err
	}

	items, err := r.getLineItems(ctx, invoice.ID)
	if err != nil {
		return models.Invoice{}, err
	}
	invoice.Items = items
	return invoice, nil
}

func (r *InvoiceRepository) getLineItems(ctx context.Context, invoiceID int) ([]models.InvoiceLineItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, invoice_id, product_id, quantity, unit_price, line_total
		 FROM invoice_line_items
		 WHERE invoice_id = ?
		 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InvoiceLineItem
	for rows.Next() {
		var it models.InvoiceLineItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *InvoiceRepository) ListInvoicesByUser(ctx context.Context, userID int) ([]models.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, external_id, status, checkout_url, payment_amount, payment_date, invoice_date, description, created_at, updated_at
		 FROM invoices
		 WHERE user_id = ?
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.ExternalID, &inv.Status, &inv.CheckoutURL,
			&inv.PaymentAmount, &inv.PaymentDate, &inv.InvoiceDate, &inv.Description,
			&inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// UpdateStatusIfNotPaid performs the conditional read-modify-write that keeps
// replayed webhook deliveries from regressing a paid invoice. paidAt must be
// valid only when status is Paid.
func (r *InvoiceRepository) UpdateStatusIfNotPaid(ctx context.Context, invoiceID int, status string, paidAt sql.NullTime) error {
	return fsm.Apply(ctx, r.DB, invoiceID, status, paidAt)
}

// MarkCancelled cancels the invoice only while it is still cancellable. The
// status list in the guard mirrors fsm's transition table for Cancelled.
func (r *InvoiceRepository) MarkCancelled(ctx context.Context, invoiceID int) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE invoices
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status IN (?, ?)`,
		fsm.StatusCancelled, invoiceID, fsm.StatusAwaitingPayment, fsm.StatusPending)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrInvalidStatusTransition
	}
	return nil
}
