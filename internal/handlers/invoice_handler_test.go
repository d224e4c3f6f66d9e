package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tokoBack/internal/billing/fsm"
	"tokoBack/internal/models"
	"tokoBack/internal/services"
)

type fakeInvoiceStore struct {
	invoices map[int]models.Invoice
}

func newFakeInvoiceStore(invs ...models.Invoice) *fakeInvoiceStore {
	s := &fakeInvoiceStore{invoices: make(map[int]models.Invoice)}
	for _, inv := range invs {
		s.invoices[inv.ID] = inv
	}
	return s
}

func (s *fakeInvoiceStore) CreateInvoiceWithItems(ctx context.Context, invoice models.Invoice, items []models.InvoiceLineItem) (models.Invoice, error) {
	invoice.ID = len(s.invoices) + 1
	invoice.Items = items
	s.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (s *fakeInvoiceStore) GetInvoiceByID(ctx context.Context, id int) (models.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return models.Invoice{}, models.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *fakeInvoiceStore) GetInvoiceByExternalID(ctx context.Context, externalID string) (models.Invoice, error) {
	for _, inv := range s.invoices {
		if inv.ExternalID == externalID {
			return inv, nil
		}
	}
	return models.Invoice{}, models.ErrInvoiceNotFound
}

func (s *fakeInvoiceStore) ListInvoicesByUser(ctx context.Context, userID int) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range s.invoices {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *fakeInvoiceStore) UpdateStatusIfNotPaid(ctx context.Context, invoiceID int, status string, paidAt sql.NullTime) error {
	inv, ok := s.invoices[invoiceID]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	if inv.Status == fsm.StatusPaid {
		return sql.ErrNoRows
	}
	inv.Status = status
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaymentDate = &t
	}
	s.invoices[invoiceID] = inv
	return nil
}

func (s *fakeInvoiceStore) MarkCancelled(ctx context.Context, invoiceID int) error {
	inv, ok := s.invoices[invoiceID]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	if inv.Status != fsm.StatusAwaitingPayment && inv.Status != fsm.StatusPending {
		return models.ErrInvalidStatusTransition
	}
	inv.Status = fsm.StatusCancelled
	s.invoices[invoiceID] = inv
	return nil
}

type fakeGateway struct {
	statuses map[string]string
	polls    int
}

func (g *fakeGateway) CreateCheckoutInvoice(ctx context.Context, externalID string, amount float64, payerEmail, description string) (*services.CheckoutSession, error) {
	return &services.CheckoutSession{
		GatewayInvoiceID: "gw-" + externalID,
		ExternalID:       externalID,
		CheckoutURL:      "https://checkout.example/" + externalID,
		Status:           "pending",
	}, nil
}

func (g *fakeGateway) GetInvoiceStatus(ctx context.Context, externalID string) (string, error) {
	g.polls++
	status, ok := g.statuses[externalID]
	if !ok {
		return "", &services.XenditError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	}
	return status, nil
}

const testCallbackToken = "cb-token-for-tests"

func newInvoiceHandler(t *testing.T, store *fakeInvoiceStore, gateway *fakeGateway) *InvoiceHandler {
	t.Helper()
	xendit, err := services.NewXenditService(services.XenditConfig{
		SecretKey:     "xnd_test_key",
		BaseURL:       "https://api.example.test",
		CallbackToken: testCallbackToken,
	})
	if err != nil {
		t.Fatalf("NewXenditService: %v", err)
	}
	return &InvoiceHandler{
		Service: &services.InvoiceService{Invoices: store, Gateway: gateway},
		Xendit:  xendit,
	}
}

func callbackRequest(externalID, token string) *http.Request {
	body := strings.NewReader(`{"external_id":"` + externalID + `","status":"PAID"}`)
	r := httptest.NewRequest(http.MethodPost, "/payment/callback", body)
	if token != "" {
		r.Header.Set("x-callback-token", token)
	}
	return r
}

func authedRequest(method, target string, userID int, role string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(r.Context(), "user_id", userID)
	ctx = context.WithValue(ctx, "role", role)
	return r.WithContext(ctx)
}

func TestCallback_MarksInvoicePaid(t *testing.T) {
	store := newFakeInvoiceStore(models.Invoice{
		ID: 1, UserID: 7, ExternalID: "ext-1", Status: fsm.StatusAwaitingPayment,
	})
	gateway := &fakeGateway{statuses: map[string]string{"ext-1": "settled"}}
	h := newInvoiceHandler(t, store, gateway)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("ext-1", testCallbackToken))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if gateway.polls != 1 {
		t.Errorf("gateway polls = %d, want 1 (live status must be re-queried)", gateway.polls)
	}
	inv, _ := store.GetInvoiceByID(context.Background(), 1)
	if inv.Status != fsm.StatusPaid {
		t.Errorf("stored status = %q, want %q", inv.Status, fsm.StatusPaid)
	}
	if inv.PaymentDate == nil {
		t.Error("payment date not set on paid invoice")
	}
}

func TestCallback_ReplayIsIdempotent(t *testing.T) {
	paidAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newFakeInvoiceStore(models.Invoice{
		ID: 1, UserID: 7, ExternalID: "ext-1", Status: fsm.StatusPaid, PaymentDate: &paidAt,
	})
	gateway := &fakeGateway{statuses: map[string]string{"ext-1": "settled"}}
	h := newInvoiceHandler(t, store, gateway)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("ext-1", testCallbackToken))
		if w.Code != http.StatusOK {
			t.Fatalf("replay %d: status = %d, want 200", i, w.Code)
		}
	}

	inv, _ := store.GetInvoiceByID(context.Background(), 1)
	if inv.Status != fsm.StatusPaid {
		t.Errorf("status = %q after replays, want %q", inv.Status, fsm.StatusPaid)
	}
	if inv.PaymentDate == nil || !inv.PaymentDate.Equal(paidAt) {
		t.Errorf("payment date changed by replay: %v", inv.PaymentDate)
	}
}

func TestCallback_UnknownExternalID(t *testing.T) {
	h := newInvoiceHandler(t, newFakeInvoiceStore(), &fakeGateway{})

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("no-such-id", testCallbackToken))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCallback_RejectsBadToken(t *testing.T) {
	store := newFakeInvoiceStore(models.Invoice{
		ID: 1, UserID: 7, ExternalID: "ext-1", Status: fsm.StatusAwaitingPayment,
	})
	h := newInvoiceHandler(t, store, &fakeGateway{statuses: map[string]string{"ext-1": "settled"}})

	for _, token := range []string{"", "wrong-token"} {
		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("ext-1", token))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, w.Code)
		}
	}

	inv, _ := store.GetInvoiceByID(context.Background(), 1)
	if inv.Status != fsm.StatusAwaitingPayment {
		t.Errorf("unauthenticated callback changed status to %q", inv.Status)
	}
}

func TestCallback_MissingExternalID(t *testing.T) {
	h := newInvoiceHandler(t, newFakeInvoiceStore(), &fakeGateway{})

	r := httptest.NewRequest(http.MethodPost, "/payment/callback", strings.NewReader(`{"status":"PAID"}`))
	r.Header.Set("x-callback-token", testCallbackToken)
	w := httptest.NewRecorder()
	h.Callback(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name       string
		invoice    models.Invoice
		userID     int
		wantCode   int
		wantStatus string
	}{
		{
			name:       "awaiting payment is cancellable",
			invoice:    models.Invoice{ID: 1, UserID: 7, Status: fsm.StatusAwaitingPayment},
			userID:     7,
			wantCode:   http.StatusOK,
			wantStatus: fsm.StatusCancelled,
		},
		{
			name:       "pending is cancellable",
			invoice:    models.Invoice{ID: 1, UserID: 7, Status: fsm.StatusPending},
			userID:     7,
			wantCode:   http.StatusOK,
			wantStatus: fsm.StatusCancelled,
		},
		{
			name:       "paid is not cancellable",
			invoice:    models.Invoice{ID: 1, UserID: 7, Status: fsm.StatusPaid},
			userID:     7,
			wantCode:   http.StatusConflict,
			wantStatus: fsm.StatusPaid,
		},
		{
			name:       "other user's invoice is forbidden",
			invoice:    models.Invoice{ID: 1, UserID: 7, Status: fsm.StatusAwaitingPayment},
			userID:     8,
			wantCode:   http.StatusForbidden,
			wantStatus: fsm.StatusAwaitingPayment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeInvoiceStore(tt.invoice)
			h := newInvoiceHandler(t, store, &fakeGateway{})

			w := httptest.NewRecorder()
			h.Cancel(w, authedRequest(http.MethodPost, "/invoices/cancel?:id=1", tt.userID, "user"))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tt.wantCode, w.Body.String())
			}
			inv, _ := store.GetInvoiceByID(context.Background(), 1)
			if inv.Status != tt.wantStatus {
				t.Errorf("stored status = %q, want %q", inv.Status, tt.wantStatus)
			}
		})
	}
}

func TestCancel_UnknownInvoice(t *testing.T) {
	h := newInvoiceHandler(t, newFakeInvoiceStore(), &fakeGateway{})

	w := httptest.NewRecorder()
	h.Cancel(w, authedRequest(http.MethodPost, "/invoices/cancel?:id=99", 7, "user"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRefresh_PollsGateway(t *testing.T) {
	store := newFakeInvoiceStore(models.Invoice{
		ID: 1, UserID: 7, ExternalID: "ext-1", Status: fsm.StatusAwaitingPayment,
	})
	gateway := &fakeGateway{statuses: map[string]string{"ext-1": "pending"}}
	h := newInvoiceHandler(t, store, gateway)

	w := httptest.NewRecorder()
	h.Refresh(w, authedRequest(http.MethodPost, "/invoices/refresh?:id=1", 7, "user"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var got models.Invoice
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != fsm.StatusPending {
		t.Errorf("status = %q, want %q", got.Status, fsm.StatusPending)
	}
	if gateway.polls != 1 {
		t.Errorf("gateway polls = %d, want 1", gateway.polls)
	}
}

func TestGetHistory_OwnershipScope(t *testing.T) {
	store := newFakeInvoiceStore(
		models.Invoice{ID: 1, UserID: 7, ExternalID: "ext-1", Status: fsm.StatusPaid},
		models.Invoice{ID: 2, UserID: 8, ExternalID: "ext-2", Status: fsm.StatusPending},
	)
	h := newInvoiceHandler(t, store, &fakeGateway{})

	w := httptest.NewRecorder()
	h.GetHistory(w, authedRequest(http.MethodGet, "/invoices/history?:user_id=8", 7, "user"))
	if w.Code != http.StatusForbidden {
		t.Errorf("other user's history: status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	h.GetHistory(w, authedRequest(http.MethodGet, "/invoices/history?:user_id=8", 7, "admin"))
	if w.Code != http.StatusOK {
		t.Errorf("admin history: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	h.GetHistory(w, authedRequest(http.MethodGet, "/invoices/history?:user_id=7", 7, "user"))
	if w.Code != http.StatusOK {
		t.Fatalf("own history: status = %d, want 200", w.Code)
	}
	var invoices []models.Invoice
	if err := json.NewDecoder(w.Body).Decode(&invoices); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(invoices) != 1 || invoices[0].UserID != 7 {
		t.Errorf("got %d invoices, want exactly the owner's one", len(invoices))
	}
}
