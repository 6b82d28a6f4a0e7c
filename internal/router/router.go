package router

import (
	"net/http"

	"filer-api/internal/handlers"
)

// Setup configures and returns the HTTP router with all application routes.
func Setup(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.HandleHealth)

	mux.HandleFunc("/image", h.HandleImage)
	mux.HandleFunc("/image/update", h.HandleImageUpdate)
	mux.HandleFunc("/images/list", h.HandleImagesList)

	return mux
}
