package services

import (
	"context"
	"log/slog"

	"tokoBack/internal/models"
)

// CartStore is the persistence port for cart lines.
type CartStore interface {
	AddItem(ctx context.Context, item models.CartItem) (models.CartItem, error)
	UpdateQuantity(ctx context.Context, itemID, userID, quantity int) error
	RemoveItem(ctx context.Context, itemID, userID int) error
	GetItemsByUser(ctx context.Context, userID int) ([]models.CartItem, error)
	ClearCart(ctx context.Context, userID int) error
}

// ProductReader resolves current product prices for add-time snapshotting.
type ProductReader interface {
	GetProductByID(ctx context.Context, id int) (models.Product, error)
}

// CartCache sits in front of GetCart; mutations invalidate it.
type CartCache interface {
	Get(ctx context.Context, userID int) (*models.Cart, error)
	Set(ctx context.Context, userID int, cart *models.Cart) error
	Delete(ctx context.Context, userID int) error
}

// InvoiceCreator is the checkout hand-off into the invoice lifecycle.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, userID int, lineItems []models.NewLineItem, payerEmail, description string) (models.Invoice, error)
}

type CartService struct {
	CartRepo    CartStore
	ProductRepo ProductReader
	Cache       CartCache
	Invoices    InvoiceCreator
	Logger      *slog.Logger
}

func (s *CartService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// AddItem snapshots the product's current price into the cart line. The
// snapshot is what checkout later freezes into the invoice.
func (s *CartService) AddItem(ctx context.Context, userID, productID, quantity int) (models.CartItem, error) {
	if quantity < 1 {
		return models.CartItem{}, models.ErrInvalidQuantity
	}
	product, err := s.ProductRepo.GetProductByID(ctx, productID)
	if err != nil {
		return models.CartItem{}, err
	}

	item, err := s.CartRepo.AddItem(ctx, models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	})
	if err != nil {
		return models.CartItem{}, err
	}
	s.invalidate(ctx, userID)
	return item, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, itemID, userID, quantity int) error {
	if quantity < 1 {
		return models.ErrInvalidQuantity
	}
	if err := s.CartRepo.UpdateQuantity(ctx, itemID, userID, quantity); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, itemID, userID int) error {
	if err := s.CartRepo.RemoveItem(ctx, itemID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// GetCart returns the user's cart with subtotal and item count computed from
// the persisted lines, not from any process-wide counter.
func (s *CartService) GetCart(ctx context.Context, userID int) (models.Cart, error) {
	if s.Cache != nil {
		if cached, err := s.Cache.Get(ctx, userID); err == nil && cached != nil {
			return *cached, nil
		}
	}

	items, err := s.CartRepo.GetItemsByUser(ctx, userID)
	if err != nil {
		return models.Cart{}, err
	}
	cart := models.Cart{
		UserID:   userID,
		Items:    items,
		Subtotal: Subtotal(items),
	}
	for _, it := range items {
		cart.ItemCount += it.Quantity
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, userID, &cart); err != nil {
			s.logger().Warn("cart cache set failed", "user_id", userID, "err", err)
		}
	}
	return cart, nil
}

// Subtotal is the cart arithmetic: Σ(unit price × quantity).
func Subtotal(items []models.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.UnitPrice * float64(it.Quantity)
	}
	return total
}

// Checkout freezes the cart lines into invoice line items, creates the
// invoice, and clears the cart only after the invoice exists. A gateway or
// persistence failure leaves the cart untouched so checkout can be retried.
func (s *CartService) Checkout(ctx context.Context, userID int, payerEmail, description string) (models.Invoice, error) {
	items, err := s.CartRepo.GetItemsByUser(ctx, userID)
	if err != nil {
		return models.Invoice{}, err
	}
	if len(items) == 0 {
		return models.Invoice{}, models.ErrEmptyLineItems
	}

	lineItems := make([]models.NewLineItem, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, models.NewLineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	invoice, err := s.Invoices.CreateInvoice(ctx, userID, lineItems, payerEmail, description)
	if err != nil {
		return models.Invoice{}, err
	}

	if err := s.CartRepo.ClearCart(ctx, userID); err != nil {
		s.logger().Warn("clear cart after checkout failed", "user_id", userID, "err", err)
	}
	s.invalidate(ctx, userID)
	return invoice, nil
}

func (s *CartService) invalidate(ctx context.Context, userID int) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, userID); err != nil {
		s.logger().Warn("cart cache invalidation failed", "user_id", userID, "err", err)
	}
}
