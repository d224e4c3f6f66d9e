package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"tokoBack/internal/billing/fsm"
	"tokoBack/internal/models"
)

// fakeInvoiceStore mimics the conditional-write semantics of the MySQL
// repository, including the status <> 'Paid' guard.
type fakeInvoiceStore struct {
	nextID   int
	invoices map[int]*models.Invoice
	byExt    map[string]int
}

func newFakeInvoiceStore() *fakeInvoiceStore {
	return &fakeInvoiceStore{
		nextID:   1,
		invoices: make(map[int]*models.Invoice),
		byExt:    make(map[string]int),
	}
}

func (f *fakeInvoiceStore) CreateInvoiceWithItems(_ context.Context, invoice models.Invoice, items []models.InvoiceLineItem) (models.Invoice, error) {
	if _, exists := f.byExt[invoice.ExternalID]; exists {
		return models.Invoice{}, fmt.Errorf("duplicate external_id %s", invoice.ExternalID)
	}
	invoice.ID = f.nextID
	f.nextID++
	for i := range items {
		items[i].InvoiceID = invoice.ID
	}
	invoice.Items = items
	stored := invoice
	f.invoices[invoice.ID] = &stored
	f.byExt[invoice.ExternalID] = invoice.ID
	return invoice, nil
}

func (f *fakeInvoiceStore) GetInvoiceByID(_ context.Context, id int) (models.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return models.Invoice{}, models.ErrInvoiceNotFound
	}
	return *inv, nil
}

func (f *fakeInvoiceStore) GetInvoiceByExternalID(_ context.Context, externalID string) (models.Invoice, error) {
	id, ok := f.byExt[externalID]
	if !ok {
		return models.Invoice{}, models.ErrInvoiceNotFound
	}
	return *f.invoices[id], nil
}

func (f *fakeInvoiceStore) ListInvoicesByUser(_ context.Context, userID int) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range f.invoices {
		if inv.UserID == userID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvoiceStore) UpdateStatusIfNotPaid(_ context.Context, invoiceID int, status string, paidAt sql.NullTime) error {
	inv, ok := f.invoices[invoiceID]
	if !ok || inv.Status == fsm.StatusPaid {
		return sql.ErrNoRows
	}
	inv.Status = status
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaymentDate = &t
	}
	return nil
}

func (f *fakeInvoiceStore) MarkCancelled(_ context.Context, invoiceID int) error {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return models.ErrInvalidStatusTransition
	}
	if inv.Status != fsm.StatusAwaitingPayment && inv.Status != fsm.StatusPending {
		return models.ErrInvalidStatusTransition
	}
	inv.Status = fsm.StatusCancelled
	return nil
}

type fakeGateway struct {
	status      string
	createErr   error
	pollStatus  string
	externalIDs []string
}

func (g *fakeGateway) CreateCheckoutInvoice(_ context.Context, externalID string, amount float64, payerEmail, description string) (*CheckoutSession, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.externalIDs = append(g.externalIDs, externalID)
	status := g.status
	if status == "" {
		status = "pending"
	}
	return &CheckoutSession{
		GatewayInvoiceID: "gw-" + externalID,
		ExternalID:       externalID,
		CheckoutURL:      "https://checkout.example/" + externalID,
		Status:           status,
	}, nil
}

func (g *fakeGateway) GetInvoiceStatus(_ context.Context, externalID string) (string, error) {
	if g.pollStatus == "" {
		return "", fmt.Errorf("no invoice for %s", externalID)
	}
	return g.pollStatus, nil
}

func newTestInvoiceService() (*InvoiceService, *fakeInvoiceStore, *fakeGateway) {
	store := newFakeInvoiceStore()
	gw := &fakeGateway{}
	return &InvoiceService{Invoices: store, Gateway: gw}, store, gw
}

func TestCreateInvoice_ComputesTotalAndFreezesLines(t *testing.T) {
	svc, _, _ := newTestInvoiceService()

	inv, err := svc.CreateInvoice(context.Background(), 7, []models.NewLineItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 100},
		{ProductID: 2, Quantity: 1, UnitPrice: 50},
	}, "buyer@example.com", "two items")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.PaymentAmount != 250 {
		t.Errorf("payment amount = %v, want 250", inv.PaymentAmount)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(inv.Items))
	}
	if inv.Items[0].LineTotal != 200 || inv.Items[1].LineTotal != 50 {
		t.Errorf("line totals = %v/%v, want 200/50", inv.Items[0].LineTotal, inv.Items[1].LineTotal)
	}
	if inv.ExternalID == "" {
		t.Error("expected external id to be set")
	}
	if inv.CheckoutURL == "" {
		t.Error("expected checkout url to be set")
	}
	if inv.UserID != 7 {
		t.Errorf("user id = %d, want 7", inv.UserID)
	}
}

func TestCreateInvoice_ExternalIDsAreUnique(t *testing.T) {
	svc, _, gw := newTestInvoiceService()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		_, err := svc.CreateInvoice(context.Background(), 1, []models.NewLineItem{
			{ProductID: 1, Quantity: 1, UnitPrice: 10},
		}, "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, id := range gw.externalIDs {
		if seen[id] {
			t.Fatalf("external id %s reused", id)
		}
		seen[id] = true
	}
}

func TestCreateInvoice_Validation(t *testing.T) {
	svc, store, _ := newTestInvoiceService()

	cases := []struct {
		name  string
		items []models.NewLineItem
		want  error
	}{
		{"empty", nil, models.ErrEmptyLineItems},
		{"zero quantity", []models.NewLineItem{{ProductID: 1, Quantity: 0, UnitPrice: 10}}, models.ErrInvalidQuantity},
		{"negative price", []models.NewLineItem{{ProductID: 1, Quantity: 1, UnitPrice: -1}}, models.ErrInvalidUnitPrice},
	}
	for _, c := range cases {
		if _, err := svc.CreateInvoice(context.Background(), 1, c.items, "", ""); !errors.Is(err, c.want) {
			t.Errorf("%s: err = %v, want %v", c.name, err, c.want)
		}
	}
	if len(store.invoices) != 0 {
		t.Error("validation failures must not persist invoices")
	}
}

func TestCreateInvoice_GatewayFailurePersistsNothing(t *testing.T) {
	svc, store, gw := newTestInvoiceService()
	gw.createErr = &XenditError{StatusCode: 503, Status: "503 Service Unavailable"}

	_, err := svc.CreateInvoice(context.Background(), 1, []models.NewLineItem{
		{ProductID: 1, Quantity: 1, UnitPrice: 10},
	}, "", "")
	if err == nil {
		t.Fatal("expected gateway error")
	}
	var apiErr *XenditError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected XenditError, got %T", err)
	}
	if len(store.invoices) != 0 {
		t.Error("no invoice row may be persisted when the gateway call fails")
	}
}

func mustCreate(t *testing.T, svc *InvoiceService) models.Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), 1, []models.NewLineItem{
		{ProductID: 1, Quantity: 1, UnitPrice: 100},
	}, "", "")
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func TestReconcile_MappingTable(t *testing.T) {
	cases := []struct {
		gateway string
		want    string
	}{
		{"pending", fsm.StatusPending},
		{"settled", fsm.StatusPaid},
		{"paid", fsm.StatusPaid},
		{"unpaid", fsm.StatusAwaitingPayment},
		{"failed", fsm.StatusAwaitingPayment},
	}
	for _, c := range cases {
		svc, store, _ := newTestInvoiceService()
		inv := mustCreate(t, svc)
		store.invoices[inv.ID].Status = fsm.StatusAwaitingPayment

		got, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, c.gateway)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.gateway, err)
		}
		if got.Status != c.want {
			t.Errorf("reconcile(%q): status = %q, want %q", c.gateway, got.Status, c.want)
		}
	}
}

func TestReconcile_PaidIsIdempotent(t *testing.T) {
	svc, _, _ := newTestInvoiceService()
	inv := mustCreate(t, svc)

	first, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, "paid")
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if first.Status != fsm.StatusPaid {
		t.Fatalf("status = %q, want Paid", first.Status)
	}
	if first.PaymentDate == nil {
		t.Fatal("payment date must be set on the transition into Paid")
	}

	second, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, "paid")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Status != fsm.StatusPaid {
		t.Errorf("replay changed status to %q", second.Status)
	}
	if second.PaymentDate == nil || !second.PaymentDate.Equal(*first.PaymentDate) {
		t.Error("replay must not change the payment date")
	}
}

func TestReconcile_PaidIsMonotonic(t *testing.T) {
	svc, _, _ := newTestInvoiceService()
	inv := mustCreate(t, svc)

	paid, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, "settled")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if paid.Status != fsm.StatusPaid {
		t.Fatalf("status = %q, want Paid", paid.Status)
	}

	for _, gateway := range []string{"pending", "unpaid", "failed", "expired", "bogus"} {
		got, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, gateway)
		if err != nil {
			t.Fatalf("reconcile(%q): %v", gateway, err)
		}
		if got.Status != fsm.StatusPaid {
			t.Errorf("reconcile(%q) regressed status to %q", gateway, got.Status)
		}
		if got.PaymentDate == nil || !got.PaymentDate.Equal(*paid.PaymentDate) {
			t.Errorf("reconcile(%q) touched the payment date", gateway)
		}
	}
}

func TestReconcile_UnknownStatusIsNoOp(t *testing.T) {
	svc, _, _ := newTestInvoiceService()
	inv := mustCreate(t, svc)

	got, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, "bogus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != inv.Status {
		t.Errorf("unknown gateway status changed status from %q to %q", inv.Status, got.Status)
	}
}

func TestReconcile_UnknownExternalID(t *testing.T) {
	svc, _, _ := newTestInvoiceService()
	if _, err := svc.ReconcileFromGateway(context.Background(), "no-such-id", "paid"); !errors.Is(err, models.ErrInvoiceNotFound) {
		t.Errorf("err = %v, want ErrInvoiceNotFound", err)
	}
}

func TestCancel_Guards(t *testing.T) {
	cancellable := map[string]bool{
		fsm.StatusAwaitingPayment: true,
		fsm.StatusPending:         true,
		fsm.StatusPaid:            false,
		fsm.StatusCancelled:       false,
		fsm.StatusExpired:         false,
	}
	for status, ok := range cancellable {
		svc, store, _ := newTestInvoiceService()
		inv := mustCreate(t, svc)
		store.invoices[inv.ID].Status = status

		got, err := svc.Cancel(context.Background(), inv.ID, inv.UserID)
		if ok {
			if err != nil {
				t.Errorf("cancel from %s: unexpected error %v", status, err)
				continue
			}
			if got.Status != fsm.StatusCancelled {
				t.Errorf("cancel from %s: status = %q", status, got.Status)
			}
		} else if !errors.Is(err, models.ErrInvalidStatusTransition) {
			t.Errorf("cancel from %s: err = %v, want ErrInvalidStatusTransition", status, err)
		}
	}
}

func TestCancel_OwnershipAndNotFound(t *testing.T) {
	svc, _, _ := newTestInvoiceService()
	inv := mustCreate(t, svc)

	if _, err := svc.Cancel(context.Background(), inv.ID, inv.UserID+1); !errors.Is(err, models.ErrInvoiceOwnershipMismatch) {
		t.Errorf("foreign user cancel: err = %v, want ErrInvoiceOwnershipMismatch", err)
	}
	if _, err := svc.Cancel(context.Background(), inv.ID+99, inv.UserID); !errors.Is(err, models.ErrInvoiceNotFound) {
		t.Errorf("missing invoice cancel: err = %v, want ErrInvoiceNotFound", err)
	}
}

func TestRefreshStatus_PollsGateway(t *testing.T) {
	svc, _, gw := newTestInvoiceService()
	inv := mustCreate(t, svc)
	gw.pollStatus = "settled"

	got, err := svc.RefreshStatus(context.Background(), inv.ID, inv.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != fsm.StatusPaid {
		t.Errorf("status = %q, want Paid", got.Status)
	}
}

// The end-to-end checkout scenario: two line items, settle, then a stale
// "pending" replay that must not undo the payment.
func TestInvoiceLifecycleScenario(t *testing.T) {
	svc, _, _ := newTestInvoiceService()

	inv, err := svc.CreateInvoice(context.Background(), 42, []models.NewLineItem{
		{ProductID: 10, Quantity: 2, UnitPrice: 100},
		{ProductID: 11, Quantity: 1, UnitPrice: 50},
	}, "buyer@example.com", "checkout")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.PaymentAmount != 250 {
		t.Fatalf("payment amount = %v, want 250", inv.PaymentAmount)
	}

	settled, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, "settled")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != fsm.StatusPaid || settled.PaymentDate == nil {
		t.Fatalf("after settle: status = %q, payment_date = %v", settled.Status, settled.PaymentDate)
	}

	replayed, err := svc.ReconcileFromGateway(context.Background(), inv.ExternalID, "pending")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.Status != fsm.StatusPaid {
		t.Errorf("replay changed status to %q", replayed.Status)
	}
	if replayed.PaymentDate == nil || !replayed.PaymentDate.Equal(*settled.PaymentDate) {
		t.Error("replay changed the payment date")
	}
}
