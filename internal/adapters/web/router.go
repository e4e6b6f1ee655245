package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	if s.auth != nil {
		protected.Use(s.auth.Middleware)
	}

	protected.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	protected.HandleFunc("/ws", s.ws.HandleWebSocket)

	api := protected.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tags", s.handleTags).Methods(http.MethodGet)
	api.HandleFunc("/tags/{address}", s.handleTag).Methods(http.MethodGet)
	api.HandleFunc("/networks", s.handleNetworks).Methods(http.MethodGet)
	api.HandleFunc("/networks/{bssid}", s.handleNetwork).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/autoconnect", s.handleAutoConnect).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)

	return r
}
