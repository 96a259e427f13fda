package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

type StatusProvider interface {
	GetLastSyncWatermarks(ctx context.Context) (map[string]int64, error)
}

type Handler struct {
	statusProvider StatusProvider
}

type HealthResponse struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	LastSyncWatermarks map[string]int64 `json:"lastSyncWatermarks"`
}

func NewHandler(statusProvider StatusProvider) *Handler {
	return &Handler{statusProvider: statusProvider}
}

func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{
		Status: "UP",
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	watermarks, err := h.statusProvider.GetLastSyncWatermarks(r.Context())
	if err != nil {
		log.Printf("Error getting status: %v", err)
		http.Error(w, "Error getting status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, StatusResponse{
		LastSyncWatermarks: watermarks,
	})
}

// Routes registers the handler endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.GetHealth)
	mux.HandleFunc("GET /v1/status", h.GetStatus)
}

func writeJSON(w http.ResponseWriter, response any) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Error encoding response", 500)
		return
	}
}
