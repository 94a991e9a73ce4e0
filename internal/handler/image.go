package handler

import (
	"log/slog"
	"net/http"
	"strconv"
)

// imageMaxAge is how long browsers may keep a proxied image.
const imageMaxAge = 24 * 60 * 60

// ImageHandler proxies product images so the browser only ever talks to
// this server, and repeated views come from the local cache.
type ImageHandler struct {
	images ImageService
	logger *slog.Logger
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(images ImageService, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{images: images, logger: logger}
}

type clearImagesResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

// HandleGet serves the image at ?url=, fetching it on first use.
//
// HTTP: GET /api/images?url=https://images.openfoodfacts.org/...
// RESPONSE: the raw image bytes with the upstream Content-Type.
func (h *ImageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	img, err := h.images.Get(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(imageMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img.Data); err != nil {
		h.logger.Warn("failed to write image", slog.String("error", err.Error()))
	}
}

// HandleClear empties the image cache.
//
// HTTP: DELETE /api/images (authenticated)
func (h *ImageHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.images.Clear(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, clearImagesResponse{Message: "Image cache cleared", Removed: n})
}
