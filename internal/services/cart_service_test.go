package services

import (
	"context"
	"errors"
	"testing"

	"tokoBack/internal/models"
)

type fakeCartStore struct {
	nextID  int
	items   map[int]*models.CartItem
	cleared int
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{nextID: 1, items: make(map[int]*models.CartItem)}
}

func (f *fakeCartStore) AddItem(_ context.Context, item models.CartItem) (models.CartItem, error) {
	for _, it := range f.items {
		if it.UserID == item.UserID && it.ProductID == item.ProductID {
			it.Quantity += item.Quantity
			out := *it
			out.Subtotal = out.UnitPrice * float64(out.Quantity)
			return out, nil
		}
	}
	item.ID = f.nextID
	f.nextID++
	stored := item
	f.items[item.ID] = &stored
	item.Subtotal = item.UnitPrice * float64(item.Quantity)
	return item, nil
}

func (f *fakeCartStore) UpdateQuantity(_ context.Context, itemID, userID, quantity int) error {
	it, ok := f.items[itemID]
	if !ok || it.UserID != userID {
		return models.ErrCartItemNotFound
	}
	it.Quantity = quantity
	return nil
}

func (f *fakeCartStore) RemoveItem(_ context.Context, itemID, userID int) error {
	it, ok := f.items[itemID]
	if !ok || it.UserID != userID {
		return models.ErrCartItemNotFound
	}
	delete(f.items, itemID)
	return nil
}

func (f *fakeCartStore) GetItemsByUser(_ context.Context, userID int) ([]models.CartItem, error) {
	var out []models.CartItem
	for _, it := range f.items {
		if it.UserID == userID {
			c := *it
			c.Subtotal = c.UnitPrice * float64(c.Quantity)
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCartStore) ClearCart(_ context.Context, userID int) error {
	for id, it := range f.items {
		if it.UserID == userID {
			delete(f.items, id)
		}
	}
	f.cleared++
	return nil
}

type fakeProductReader struct {
	prices map[int]float64
}

func (f *fakeProductReader) GetProductByID(_ context.Context, id int) (models.Product, error) {
	price, ok := f.prices[id]
	if !ok {
		return models.Product{}, models.ErrProductNotFound
	}
	return models.Product{ID: id, Price: price}, nil
}

func newTestCartService() (*CartService, *fakeCartStore, *fakeProductReader, *InvoiceService) {
	cartStore := newFakeCartStore()
	products := &fakeProductReader{prices: map[int]float64{1: 100, 2: 50}}
	invSvc, _, _ := newTestInvoiceService()
	return &CartService{
		CartRepo:    cartStore,
		ProductRepo: products,
		Invoices:    invSvc,
	}, cartStore, products, invSvc
}

func TestCartAddItem_SnapshotsCurrentPrice(t *testing.T) {
	svc, _, products, _ := newTestCartService()

	item, err := svc.AddItem(context.Background(), 1, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.UnitPrice != 100 {
		t.Errorf("unit price = %v, want 100", item.UnitPrice)
	}
	if item.Subtotal != 200 {
		t.Errorf("subtotal = %v, want 200", item.Subtotal)
	}

	// A later price change must not affect the stored snapshot.
	products.prices[1] = 999
	cart, err := svc.GetCart(context.Background(), 1)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if cart.Items[0].UnitPrice != 100 {
		t.Errorf("snapshot price changed to %v", cart.Items[0].UnitPrice)
	}
}

func TestCartAddItem_MergesExistingLine(t *testing.T) {
	svc, _, _, _ := newTestCartService()

	if _, err := svc.AddItem(context.Background(), 1, 1, 1); err != nil {
		t.Fatalf("first add: %v", err)
	}
	item, err := svc.AddItem(context.Background(), 1, 1, 2)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if item.Quantity != 3 {
		t.Errorf("quantity = %d, want 3", item.Quantity)
	}
}

func TestCartQuantityRules(t *testing.T) {
	svc, _, _, _ := newTestCartService()

	if _, err := svc.AddItem(context.Background(), 1, 1, 0); !errors.Is(err, models.ErrInvalidQuantity) {
		t.Errorf("add with qty 0: err = %v, want ErrInvalidQuantity", err)
	}
	item, err := svc.AddItem(context.Background(), 1, 1, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.UpdateQuantity(context.Background(), item.ID, 1, 0); !errors.Is(err, models.ErrInvalidQuantity) {
		t.Errorf("update to qty 0: err = %v, want ErrInvalidQuantity", err)
	}
	if err := svc.UpdateQuantity(context.Background(), item.ID, 1, 5); err != nil {
		t.Errorf("update to qty 5: %v", err)
	}
}

func TestCartSubtotal(t *testing.T) {
	items := []models.CartItem{
		{Quantity: 2, UnitPrice: 100},
		{Quantity: 1, UnitPrice: 50},
		{Quantity: 3, UnitPrice: 10},
	}
	if got := Subtotal(items); got != 280 {
		t.Errorf("subtotal = %v, want 280", got)
	}
	if got := Subtotal(nil); got != 0 {
		t.Errorf("empty subtotal = %v, want 0", got)
	}
}

func TestCheckout_FreezesCartAndClearsIt(t *testing.T) {
	svc, cartStore, products, _ := newTestCartService()

	if _, err := svc.AddItem(context.Background(), 1, 1, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), 1, 2, 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Price changes between add and checkout must not leak into the invoice.
	products.prices[1] = 500

	invoice, err := svc.Checkout(context.Background(), 1, "buyer@example.com", "order")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if invoice.PaymentAmount != 250 {
		t.Errorf("payment amount = %v, want 250 (frozen prices)", invoice.PaymentAmount)
	}
	if len(cartStore.items) != 0 {
		t.Error("cart must be cleared after successful checkout")
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, _, _, _ := newTestCartService()
	if _, err := svc.Checkout(context.Background(), 1, "", ""); !errors.Is(err, models.ErrEmptyLineItems) {
		t.Errorf("err = %v, want ErrEmptyLineItems", err)
	}
}

func TestCheckout_GatewayFailureKeepsCart(t *testing.T) {
	svc, cartStore, _, invSvc := newTestCartService()
	gw := invSvc.Gateway.(*fakeGateway)

	if _, err := svc.AddItem(context.Background(), 1, 1, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	gw.createErr = &XenditError{StatusCode: 502, Status: "502 Bad Gateway"}

	if _, err := svc.Checkout(context.Background(), 1, "", ""); err == nil {
		t.Fatal("expected checkout to fail")
	}
	if len(cartStore.items) != 1 {
		t.Error("cart must stay intact when invoice creation fails")
	}
}
