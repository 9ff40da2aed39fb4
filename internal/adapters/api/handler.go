package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/lelang/item-service/internal/domain/items"
)

// Client-facing messages
const (
	msgRunning      = "Item Service with Timer & Image is Running!"
	msgCreated      = "Barang lelang berhasil dipublikasikan!"
	msgUpdated      = "Data lelang diperbarui"
	msgDeleted      = "Barang dihapus dari lelang"
	msgItemNotFound = "Barang tidak ditemukan"
	msgInternal     = "Internal Server Error"
	msgDBDown       = "database unavailable"
)

// ItemService is the set of item use cases the HTTP layer depends on
type ItemService interface {
	CreateItem(ctx context.Context, cmd items.ItemCommand) (*items.Item, error)
	ListItems(ctx context.Context) ([]*items.Item, error)
	GetItem(ctx context.Context, itemID int64) (*items.Item, error)
	UpdateItem(ctx context.Context, itemID int64, cmd items.ItemCommand) (*items.Item, error)
	DeleteItem(ctx context.Context, itemID int64) error
}

// Pinger reports database reachability; *pgxpool.Pool satisfies it
type Pinger interface {
	Ping(ctx context.Context) error
}

// ItemResponse is the JSON form of an item
type ItemResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nama_barang"`
	Description string  `json:"deskripsi"`
	StartPrice  float64 `json:"harga_awal"`
	OwnerID     int64   `json:"owner_id"`
	ImageURL    *string `json:"image_url"`
	EndTime     *string `json:"end_time"`
}

// MessageResponse wraps a status message and, for writes, the stored item
type MessageResponse struct {
	Message string        `json:"message"`
	Data    *ItemResponse `json:"data,omitempty"`
}

// ErrorResponse is returned for 404, 500 and 503
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationErrorResponse is returned for 422
type ValidationErrorResponse struct {
	Detail []ValidationDetail `json:"detail"`
}

// ItemHandler serves the item endpoints
type ItemHandler struct {
	service  ItemService
	db       Pinger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(service ItemService, db Pinger, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		service:  service,
		db:       db,
		validate: newValidator(),
		logger:   logger,
	}
}

// Register mounts the item routes on r
func (h *ItemHandler) Register(r chi.Router) {
	r.Get("/", h.root)
	r.Get("/health", h.health)

	r.Post("/items", h.createItem)
	r.Get("/items", h.listItems)
	r.Get("/items/{item_id}", h.getItem)
	r.Put("/items/{item_id}", h.updateItem)
	r.Delete("/items/{item_id}", h.deleteItem)
}

func (h *ItemHandler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgRunning})
}

func (h *ItemHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: msgDBDown})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *ItemHandler) createItem(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.readCommand(w, r)
	if !ok {
		return
	}

	item, err := h.service.CreateItem(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: msgCreated, Data: mapItemToResponse(item)})
}

func (h *ItemHandler) listItems(w http.ResponseWriter, r *http.Request) {
	itemList, err := h.service.ListItems(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res := make([]*ItemResponse, len(itemList))
	for i, item := range itemList {
		res[i] = mapItemToResponse(item)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ItemHandler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := readItemID(w, r)
	if !ok {
		return
	}

	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapItemToResponse(item))
}

func (h *ItemHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := readItemID(w, r)
	if !ok {
		return
	}
	cmd, ok := h.readCommand(w, r)
	if !ok {
		return
	}

	item, err := h.service.UpdateItem(r.Context(), itemID, cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgUpdated, Data: mapItemToResponse(item)})
}

func (h *ItemHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := readItemID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteItem(r.Context(), itemID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgDeleted})
}

// readCommand decodes and validates the request body, writing a 422 on failure
func (h *ItemHandler) readCommand(w http.ResponseWriter, r *http.Request) (items.ItemCommand, bool) {
	payload, details := decodeItemPayload(h.validate, http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if details != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: details})
		return items.ItemCommand{}, false
	}

	cmd, err := payload.command()
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: []ValidationDetail{{
			Loc:  []string{"body", "end_time"},
			Msg:  "invalid datetime format",
			Type: "value_error.datetime",
		}}})
		return items.ItemCommand{}, false
	}
	return cmd, true
}

// readItemID parses the item_id path parameter, writing a 422 on failure
func readItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: []ValidationDetail{{
			Loc:  []string{"path", "item_id"},
			Msg:  "value is not a valid integer",
			Type: "type_error.integer",
		}}})
		return 0, false
	}
	return itemID, true
}

// writeError maps domain errors to HTTP responses
func (h *ItemHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, items.ErrItemNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: msgItemNotFound})
		return
	}

	h.logger.ErrorContext(r.Context(), "Request failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: msgInternal})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// mapItemToResponse converts a domain Item to its JSON form
func mapItemToResponse(item *items.Item) *ItemResponse {
	res := &ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		StartPrice:  item.StartPrice,
		OwnerID:     item.OwnerID,
		ImageURL:    item.ImageURL,
	}
	if item.EndTime != nil {
		endTime := FormatTimestamp(*item.EndTime)
		res.EndTime = &endTime
	}
	return res
}
