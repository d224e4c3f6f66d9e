package services

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tokoBack/internal/billing/fsm"
	"tokoBack/internal/models"
)

// InvoiceStore is the persistence port for invoices. Implemented by
// repositories.InvoiceRepository; tests inject an in-memory fake.
type InvoiceStore interface {
	CreateInvoiceWithItems(ctx context.Context, invoice models.Invoice, items []models.InvoiceLineItem) (models.Invoice, error)
	GetInvoiceByID(ctx context.Context, id int) (models.Invoice, error)
	GetInvoiceByExternalID(ctx context.Context, externalID string) (models.Invoice, error)
	ListInvoicesByUser(ctx context.Context, userID int) ([]models.Invoice, error)
	UpdateStatusIfNotPaid(ctx context.Context, invoiceID int, status string, paidAt sql.NullTime) error
	MarkCancelled(ctx context.Context, invoiceID int) error
}

// CheckoutGateway is the outbound payment-gateway port.
type CheckoutGateway interface {
	CreateCheckoutInvoice(ctx context.Context, externalID string, amount float64, payerEmail, description string) (*CheckoutSession, error)
	GetInvoiceStatus(ctx context.Context, externalID string) (string, error)
}

// PaidNotifier is told once per invoice when it transitions into Paid.
type PaidNotifier interface {
	InvoicePaid(ctx context.Context, invoice models.Invoice)
}

// InvoiceFeed receives every persisted status change, for live dashboards.
type InvoiceFeed interface {
	BroadcastInvoice(invoice models.Invoice)
}

// InvoiceService owns the invoice state machine from creation to terminal
// status and keeps webhook processing idempotent.
type InvoiceService struct {
	Invoices InvoiceStore
	Gateway  CheckoutGateway
	Notifier PaidNotifier
	Feed     InvoiceFeed
	Logger   *slog.Logger
}

func (s *InvoiceService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// CreateInvoice validates the line items, requests a hosted checkout session
// from the gateway, and persists the invoice with its frozen line items in a
// single transaction. The external id is a fresh UUID generated before the
// gateway call and is never reused. If the gateway call fails nothing is
// persisted and the caller gets a retryable error.
func (s *InvoiceService) CreateInvoice(ctx context.Context, userID int, lineItems []models.NewLineItem, payerEmail, description string) (models.Invoice, error) {
	if len(lineItems) == 0 {
		return models.Invoice{}, models.ErrEmptyLineItems
	}

	var total float64
	items := make([]models.InvoiceLineItem, 0, len(lineItems))
	for _, li := range lineItems {
		if li.Quantity < 1 {
			return models.Invoice{}, models.ErrInvalidQuantity
		}
		if li.UnitPrice < 0 {
			return models.Invoice{}, models.ErrInvalidUnitPrice
		}
		lineTotal := li.UnitPrice * float64(li.Quantity)
		total += lineTotal
		items = append(items, models.InvoiceLineItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			LineTotal: lineTotal,
		})
	}

	externalID := uuid.NewString()

	session, err := s.Gateway.CreateCheckoutInvoice(ctx, externalID, total, payerEmail, description)
	if err != nil {
		s.logger().Error("gateway checkout creation failed", "external_id", externalID, "err", err)
		return models.Invoice{}, err
	}

	status := fsm.StatusAwaitingPayment
	if mapped, ok := fsm.MapGatewayStatus(session.Status); ok {
		status = mapped
	}

	invoice := models.Invoice{
		UserID:        userID,
		ExternalID:    externalID,
		Status:        status,
		CheckoutURL:   session.CheckoutURL,
		PaymentAmount: total,
		InvoiceDate:   time.Now(),
		Description:   description,
	}

	created, err := s.Invoices.CreateInvoiceWithItems(ctx, invoice, items)
	if err != nil {
		// The gateway session already exists at this point; the orphan is
		// attributable by external_id in the gateway dashboard.
		s.logger().Error("persist invoice failed after gateway call", "external_id", externalID, "err", err)
		return models.Invoice{}, err
	}

	s.logger().Info("invoice created",
		"invoice_id", created.ID, "external_id", externalID, "amount", total, "status", created.Status)
	return created, nil
}

// ReconcileFromGateway applies a gateway status to the invoice identified by
// externalID. It is safe under duplicate and concurrent webhook deliveries:
// once the invoice is Paid every further call returns it unchanged, and the
// persisted write is conditional on the row not being Paid yet.
func (s *InvoiceService) ReconcileFromGateway(ctx context.Context, externalID, gatewayStatus string) (models.Invoice, error) {
	invoice, err := s.Invoices.GetInvoiceByExternalID(ctx, externalID)
	if err != nil {
		return models.Invoice{}, err
	}

	if invoice.Status == fsm.StatusPaid {
		s.logger().Debug("duplicate delivery for paid invoice ignored",
			"invoice_id", invoice.ID, "external_id", externalID, "gateway_status", gatewayStatus)
		return invoice, nil
	}

	mapped, ok := fsm.MapGatewayStatus(gatewayStatus)
	if !ok {
		s.logger().Warn("unrecognized gateway status ignored",
			"invoice_id", invoice.ID, "external_id", externalID, "gateway_status", gatewayStatus)
		return invoice, nil
	}
	if mapped == invoice.Status {
		return invoice, nil
	}

	if fsm.IsTerminal(invoice.Status) {
		// The remote checkout session outlives a local cancellation, so the
		// gateway can still settle an invoice we consider closed.
		s.logger().Warn("gateway moved invoice out of a terminal local state",
			"invoice_id", invoice.ID, "external_id", externalID,
			"from", invoice.Status, "to", mapped)
	}

	var paidAt sql.NullTime
	if mapped == fsm.StatusPaid {
		paidAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	if err := s.Invoices.UpdateStatusIfNotPaid(ctx, invoice.ID, mapped, paidAt); err != nil {
		if err == sql.ErrNoRows {
			// A concurrent delivery won the race and the invoice is Paid now.
			return s.Invoices.GetInvoiceByExternalID(ctx, externalID)
		}
		return models.Invoice{}, err
	}

	updated, err := s.Invoices.GetInvoiceByExternalID(ctx, externalID)
	if err != nil {
		return models.Invoice{}, err
	}

	s.logger().Info("invoice reconciled",
		"invoice_id", updated.ID, "external_id", externalID,
		"from", invoice.Status, "to", updated.Status)

	if s.Feed != nil {
		s.Feed.BroadcastInvoice(updated)
	}
	if updated.Status == fsm.StatusPaid && s.Notifier != nil {
		s.Notifier.InvoicePaid(ctx, updated)
	}
	return updated, nil
}

// ReconcileFromWebhook handles an inbound delivery that names an external id.
// The callback body is only a hint: the live status is re-fetched from the
// gateway before it is applied. The invoice lookup happens first so a
// misrouted webhook surfaces as NotFound, not as a gateway error.
func (s *InvoiceService) ReconcileFromWebhook(ctx context.Context, externalID string) (models.Invoice, error) {
	if _, err := s.Invoices.GetInvoiceByExternalID(ctx, externalID); err != nil {
		return models.Invoice{}, err
	}

	gatewayStatus, err := s.Gateway.GetInvoiceStatus(ctx, externalID)
	if err != nil {
		return models.Invoice{}, err
	}
	return s.ReconcileFromGateway(ctx, externalID, gatewayStatus)
}

// Cancel marks the invoice Cancelled. Allowed only while the invoice is still
// AwaitingPayment or Pending and only for its owner. The remote checkout
// session is not voided; the gateway keeps the hosted page alive.
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID, requestingUserID int) (models.Invoice, error) {
	invoice, err := s.Invoices.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return models.Invoice{}, err
	}
	if invoice.UserID != requestingUserID {
		return models.Invoice{}, models.ErrInvoiceOwnershipMismatch
	}
	if invoice.Status != fsm.StatusAwaitingPayment && invoice.Status != fsm.StatusPending {
		return models.Invoice{}, models.ErrInvalidStatusTransition
	}

	if err := s.Invoices.MarkCancelled(ctx, invoiceID); err != nil {
		return models.Invoice{}, err
	}

	s.logger().Warn("invoice cancelled locally, gateway checkout session stays open",
		"invoice_id", invoiceID, "external_id", invoice.ExternalID, "checkout_url", invoice.CheckoutURL)

	updated, err := s.Invoices.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return models.Invoice{}, err
	}
	if s.Feed != nil {
		s.Feed.BroadcastInvoice(updated)
	}
	return updated, nil
}

// RefreshStatus polls the gateway for the live status and reconciles it, for
// cases where a webhook was lost or delayed.
func (s *InvoiceService) RefreshStatus(ctx context.Context, invoiceID, requestingUserID int) (models.Invoice, error) {
	invoice, err := s.Invoices.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return models.Invoice{}, err
	}
	if invoice.UserID != requestingUserID {
		return models.Invoice{}, models.ErrInvoiceOwnershipMismatch
	}

	gatewayStatus, err := s.Gateway.GetInvoiceStatus(ctx, invoice.ExternalID)
	if err != nil {
		return models.Invoice{}, err
	}
	return s.ReconcileFromGateway(ctx, invoice.ExternalID, gatewayStatus)
}

func (s *InvoiceService) GetByID(ctx context.Context, invoiceID int) (models.Invoice, error) {
	return s.Invoices.GetInvoiceByID(ctx, invoiceID)
}

func (s *InvoiceService) ListByUser(ctx context.Context, userID int) ([]models.Invoice, error) {
	return s.Invoices.ListInvoicesByUser(ctx, userID)
}
