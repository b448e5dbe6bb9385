package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/romariotrain/hls-vod/internal/metrics"
)

func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/videos", h.CreateVideo).Methods(http.MethodPost)
	r.HandleFunc("/videos", h.ListVideos).Methods(http.MethodGet)
	r.HandleFunc("/videos/{id}", h.GetVideo).Methods(http.MethodGet)
	r.HandleFunc("/videos/{id}/reprocess", h.Reprocess).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorJSON(w, http.StatusNotFound, "not found")
	})
	return r
}
