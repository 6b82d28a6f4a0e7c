package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "filer-api/internal/errors"
	"filer-api/internal/middleware"
	"filer-api/internal/models"
)

const maxUpdateBody = 64 << 10

// Validates the id query parameter.
func imageID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" || len(id) > 255 || strings.ContainsAny(id, "/\\") {
		return "", false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		http.Error(w, "Image not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrUnauthorized):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrPermissionDenied):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrInvalidInput):
		http.Error(w, "Bad request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("component", "handlers").Msg("Failed to encode response")
	}
}

// HandleImage returns the metadata of one image.
//
//	@Summary		Get an image
//	@Description	Retrieve an image record with its derived metadata
//	@Tags			images
//	@Produce		json
//	@Param			id	query		string	true	"Image ID"
//	@Success		200	{object}	models.ImageResponse
//	@Failure		400	{string}	string	"Bad Request"
//	@Failure		403	{string}	string	"Forbidden"
//	@Failure		404	{string}	string	"Not Found"
//	@Security		ApiKeyAuth
//	@Router			/image [get]
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := imageID(r)
	if !ok {
		http.Error(w, "Missing or invalid id parameter", http.StatusBadRequest)
		return
	}

	rec, err := h.imageService.GetImage(r.Context(), id, middleware.UserFromContext(r.Context()))
	if err != nil {
		log.Warn().Err(err).Str("component", "image").Str("id", id).Msg("Failed to get image")
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, rec.Response())
}

// HandleImagesList returns a page of images the caller may read.
//
//	@Summary		List images
//	@Tags			images
//	@Produce		json
//	@Param			limit	query		int	false	"Number of items to return (max 1000, default 1000)"	default(1000)
//	@Param			page	query		int	false	"Page number (0-indexed, default 0)"				default(0)
//	@Success		200		{array}		models.ImageResponse
//	@Failure		400		{string}	string	"Bad Request"
//	@Security		ApiKeyAuth
//	@Router			/images/list [get]
func (h *Handler) HandleImagesList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	limit := 1000
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	page := 0
	if pageStr := query.Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid page parameter", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	records, err := h.imageService.ListImages(r.Context(), middleware.UserFromContext(r.Context()), limit, page)
	if err != nil {
		log.Error().Err(err).Str("component", "images").Msg("Failed to list images")
		writeError(w, err)
		return
	}

	out := make([]models.ImageResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Response())
	}

	log.Debug().Str("component", "images").Int("count", len(out)).Int("limit", limit).Int("page", page).Msg("Served images")
	writeJSON(w, out)
}

// HandleImageUpdate changes the editable fields of an image and saves it,
// which re-derives its metadata.
//
//	@Summary		Update an image
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			id		query		string				true	"Image ID"
//	@Param			body	body		models.ImageUpdate	true	"Fields to change"
//	@Success		200		{object}	models.ImageResponse
//	@Failure		400		{string}	string	"Bad Request"
//	@Failure		403		{string}	string	"Forbidden"
//	@Failure		404		{string}	string	"Not Found"
//	@Security		ApiKeyAuth
//	@Router			/image/update [post]
func (h *Handler) HandleImageUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := imageID(r)
	if !ok {
		http.Error(w, "Missing or invalid id parameter", http.StatusBadRequest)
		return
	}

	var update models.ImageUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.imageService.UpdateImage(r.Context(), id, update, middleware.UserFromContext(r.Context()))
	if err != nil {
		log.Warn().Err(err).Str("component", "image").Str("id", id).Msg("Failed to update image")
		writeError(w, err)
		return
	}

	writeJSON(w, rec.Response())
}
