package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/catalog"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/inventory"
)

// StockAdmin is the slice of the stock ledger the admin handler needs.
type StockAdmin interface {
	Stock(ctx context.Context, variantID uuid.UUID) (inventory.VariantStock, error)
	SetStock(ctx context.Context, variantID uuid.UUID, stock int) error
}

type AdminHandler struct {
	catalog catalog.Repository
	stock   StockAdmin
	logger  *log.Logger
}

func NewAdminHandler(cat catalog.Repository, stock StockAdmin, logger *log.Logger) *AdminHandler {
	return &AdminHandler{catalog: cat, stock: stock, logger: logger}
}

type upsertProductRequest struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"isActive"`
}

func (h *AdminHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == uuid.Nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing id or name")
		return
	}

	p := catalog.Product{ID: req.ID, Name: req.Name, IsActive: req.IsActive}
	if err := h.catalog.UpsertProduct(r.Context(), p); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type upsertVariantRequest struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"productId"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"priceCents"`
	IsActive   bool      `json:"isActive"`
}

func (h *AdminHandler) UpsertVariant(w http.ResponseWriter, r *http.Request) {
	var req upsertVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == uuid.Nil || req.ProductID == uuid.Nil || req.SKU == "" {
		writeError(w, http.StatusBadRequest, "missing id, productId or sku")
		return
	}
	if req.PriceCents < 0 {
		writeError(w, http.StatusBadRequest, "negative price")
		return
	}

	v := catalog.Variant{
		ID:         req.ID,
		ProductID:  req.ProductID,
		SKU:        req.SKU,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		IsActive:   req.IsActive,
	}
	if err := h.catalog.UpsertVariant(r.Context(), v); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type setStockRequest struct {
	Stock int `json:"stock"`
}

func (h *AdminHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	variantID, ok := pathUUID(w, r, "variantId")
	if !ok {
		return
	}

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "negative stock")
		return
	}

	if err := h.stock.SetStock(r.Context(), variantID, req.Stock); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	vs, err := h.stock.Stock(r.Context(), variantID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *AdminHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	variantID, ok := pathUUID(w, r, "variantId")
	if !ok {
		return
	}

	vs, err := h.stock.Stock(r.Context(), variantID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}
