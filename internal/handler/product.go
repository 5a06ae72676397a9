package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/shelf/internal/auth"
	"github.com/dukerupert/shelf/internal/model"
	"github.com/dukerupert/shelf/internal/product"
	"github.com/dukerupert/shelf/internal/store"
	"github.com/dukerupert/shelf/internal/websocket"
)

type ProductHandler struct {
	productStore *store.ProductStore
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewProductHandler(db *sql.DB, hub *websocket.Hub, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		productStore: store.NewProductStore(db),
		hub:          hub,
		logger:       logger,
	}
}

type productResponse struct {
	model.Product
	LowStock bool `json:"low_stock"`
}

func toResponse(p *model.Product) productResponse {
	return productResponse{Product: *p, LowStock: p.LowStock()}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productStore.ListByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toResponse(&products[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in product.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	p, err := h.productStore.Create(&ac.HouseholdID, in.Name, in.Tag, in.Amount, in.MinAmount, &ac.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(ac.HouseholdID, websocket.NewMessage("product", "created", p.ID, nil))
	writeJSON(w, http.StatusCreated, toResponse(p))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}

	var in product.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	p, err := h.productStore.Update(p.ID, in.Name, in.Tag, in.Amount, in.MinAmount, ac.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(ac.HouseholdID, websocket.NewMessage("product", "updated", p.ID, nil))
	writeJSON(w, http.StatusOK, toResponse(p))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.productStore.Delete(p.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(auth.HouseholdID(r.Context()), websocket.NewMessage("product", "deleted", p.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the product named in the path. Products of other households
// are reported as missing.
func (h *ProductHandler) load(w http.ResponseWriter, r *http.Request) (*model.Product, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, h.logger, errBadID)
		return nil, false
	}
	p, err := h.productStore.GetByID(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if p == nil || p.HouseholdID == nil || *p.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, r, h.logger, errNotFound)
		return nil, false
	}
	return p, true
}
