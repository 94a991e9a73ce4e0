package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/food-diary/internal/model"
)

// SearchHandler serves food search and barcode lookup.
//
// TWO KINDS OF SEARCH:
//   - GET /api/search/cache only consults local data (exact cache, prefix
//     cache, meal history). The client falls back to calling the food
//     database itself and posts the results back with POST /api/search/cache.
//   - GET /api/search goes to the food database from the server and caches
//     what it gets.
type SearchHandler struct {
	foods  FoodService
	logger *slog.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(foods FoodService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{foods: foods, logger: logger}
}

type storeSearchRequest struct {
	Query   string              `json:"query"`
	Results []model.FoodProduct `json:"results"`
}

// HandleCached resolves a query from local data.
//
// HTTP: GET /api/search/cache?q=banana
// RESPONSE: 200 {"results": [...], "source": "exact"}
//
// A miss is still 200, with "results": null and "source": "none".
func (h *SearchHandler) HandleCached(w http.ResponseWriter, r *http.Request) {
	res, err := h.foods.Resolve(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleStore caches a result set fetched by the client.
//
// HTTP: POST /api/search/cache
// REQUEST BODY: {"query": "banana", "results": [FoodProduct, ...]}
func (h *SearchHandler) HandleStore(w http.ResponseWriter, r *http.Request) {
	var req storeSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.foods.Store(r.Context(), req.Query, req.Results); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Search results cached"})
}

// HandleLive searches the food database from the server.
//
// HTTP: GET /api/search?q=banana
// RESPONSE: 200 {"results": [...], "source": "api"} | 502 when the food
// database is down and nothing local matches.
func (h *SearchHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	res, err := h.foods.SearchLive(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if res.Results == nil {
		res.Results = []model.FoodProduct{}
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleBarcode looks up one product by its EAN/UPC code.
//
// HTTP: GET /api/products/{barcode}
func (h *SearchHandler) HandleBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := h.foods.LookupBarcode(r.Context(), r.PathValue("barcode"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}
