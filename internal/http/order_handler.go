package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/order"
)

// OrderService is the slice of the order service the handler needs.
type OrderService interface {
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID, in order.CheckoutInput) (*order.Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	MarkProcessing(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error)
	MarkPaymentPaid(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) (*order.Order, error)
}

type OrderHandler struct {
	svc    OrderService
	logger *log.Logger
}

func NewOrderHandler(svc OrderService, logger *log.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

type checkoutRequest struct {
	Shipping         order.ShippingDetails `json:"shipping"`
	Billing          *order.BillingDetails `json:"billing"`
	PaymentMethod    order.PaymentMethod   `json:"paymentMethod"`
	ShippingFeeCents int64                 `json:"shippingFeeCents"`
	TaxCents         int64                 `json:"taxCents"`
	Notes            string                `json:"notes"`
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = order.PaymentMethodCOD
	} else if !req.PaymentMethod.Valid() {
		writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}
	if req.Shipping.Address == "" || req.Shipping.Recipient == "" {
		writeError(w, http.StatusBadRequest, "missing shipping details")
		return
	}
	if req.ShippingFeeCents < 0 || req.TaxCents < 0 {
		writeError(w, http.StatusBadRequest, "negative charge")
		return
	}

	o, err := h.svc.CreateOrderFromCart(r.Context(), userID, order.CheckoutInput{
		Shipping:      req.Shipping,
		Billing:       req.Billing,
		PaymentMethod: req.PaymentMethod,
		ShippingCents: req.ShippingFeeCents,
		TaxCents:      req.TaxCents,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "orderId")
	if !ok {
		return
	}

	o, err := h.svc.GetByID(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "orderNumber")
	if number == "" {
		writeError(w, http.StatusBadRequest, "missing orderNumber")
		return
	}

	o, err := h.svc.GetByNumber(r.Context(), number)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}

	orders, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Confirm)
}

func (h *OrderHandler) MarkProcessing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkProcessing)
}

func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Ship)
}

func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Deliver)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "orderId")
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "missing reason")
		return
	}

	o, err := h.svc.Cancel(r.Context(), orderID, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) MarkPaymentPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkPaymentPaid)
}

func (h *OrderHandler) MarkPaymentFailed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkPaymentFailed)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *OrderHandler) SetAdminNotes(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "orderId")
	if !ok {
		return
	}

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	o, err := h.svc.SetAdminNotes(r.Context(), orderID, req.Notes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, uuid.UUID) (*order.Order, error)) {

	orderID, ok := pathUUID(w, r, "orderId")
	if !ok {
		return
	}

	o, err := fn(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
