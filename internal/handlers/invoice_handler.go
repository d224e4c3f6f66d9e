package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tokoBack/internal/models"
	"tokoBack/internal/services"
)

type InvoiceHandler struct {
	Service *services.InvoiceService
	Xendit  *services.XenditService
}

func xenditErrorStatus(err error) int {
	var apiErr *services.XenditError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
	}
	return http.StatusBadGateway
}

// Callback is the inbound gateway webhook. The delivery names an external id;
// the live status is re-queried from the gateway before reconciliation. The
// response is 200 for every successfully processed delivery, including
// idempotent no-ops, so the gateway stops retrying.
func (h *InvoiceHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil || h.Xendit == nil {
		http.Error(w, "payments not initialized", http.StatusInternalServerError)
		return
	}

	if !h.Xendit.ValidateCallbackToken(r) {
		http.Error(w, "invalid callback token", http.StatusUnauthorized)
		return
	}

	payload, err := h.Xendit.ParseCallback(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.ExternalID) == "" {
		http.Error(w, "missing external_id", http.StatusBadRequest)
		return
	}

	invoice, err := h.Service.ReconcileFromWebhook(r.Context(), payload.ExternalID)
	if err != nil {
		if errors.Is(err, models.ErrInvoiceNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "reconcile: "+err.Error(), xenditErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"external_id": invoice.ExternalID,
		"invoice":     invoice.Status,
	})
}

func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	idStr := r.URL.Query().Get(":id")
	invoiceID, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}

	invoice, err := h.Service.Cancel(r.Context(), invoiceID, userID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvoiceNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, models.ErrInvoiceOwnershipMismatch):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, models.ErrInvalidStatusTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invoice)
}

// Refresh manually polls the gateway for the live status, for lost webhooks.
func (h *InvoiceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	idStr := r.URL.Query().Get(":id")
	invoiceID, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}

	invoice, err := h.Service.RefreshStatus(r.Context(), invoiceID, userID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvoiceNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, models.ErrInvoiceOwnershipMismatch):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, "refresh: "+err.Error(), xenditErrorStatus(err))
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invoice)
}

func (h *InvoiceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := r.Context().Value("role").(string)

	idStr := r.URL.Query().Get(":id")
	invoiceID, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}

	invoice, err := h.Service.GetByID(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, models.ErrInvoiceNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if invoice.UserID != userID && role != "admin" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invoice)
}

// GetHistory lists invoices of the authenticated user. Admins may pass any
// user id; everyone else only sees their own.
func (h *InvoiceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := r.Context().Value("role").(string)

	targetStr := r.URL.Query().Get(":user_id")
	targetID, err := strconv.Atoi(targetStr)
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	if targetID != userID && role != "admin" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	invoices, err := h.Service.ListByUser(r.Context(), targetID)
	if err != nil {
		http.Error(w, "get invoices: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invoices)
}

func (h *InvoiceHandler) SuccessRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (h *InvoiceHandler) FailureRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "failure"})
}
