// Package web is the HTTP surface: ticket lifecycle events in, usage and
// spend-limit administration out.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deskmind/deskmind/internal"
	"github.com/deskmind/deskmind/internal/costgov"
	"github.com/deskmind/deskmind/internal/knowledge"
	"github.com/deskmind/deskmind/internal/metrics"
	"github.com/deskmind/deskmind/internal/storage"
	"github.com/deskmind/deskmind/internal/storage/dto"
)

type httpHandlers struct {
	service  *internal.Service
	governor *costgov.Governor
	tickets  *storage.TicketStore
	search   knowledge.Searcher
}

func New(service *internal.Service, governor *costgov.Governor, tickets *storage.TicketStore, search knowledge.Searcher) http.Handler {
	handlers := &httpHandlers{
		service:  service,
		governor: governor,
		tickets:  tickets,
		search:   search,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/tickets/{id}/created", handlers.ticketCreated)
	mux.HandleFunc("POST /api/tickets/{id}/resolved", handlers.ticketResolved)
	mux.HandleFunc("GET /api/usage/daily", handlers.dailyUsage)
	mux.HandleFunc("GET /api/usage/monthly", handlers.monthlyUsage)
	mux.HandleFunc("GET /api/limits", handlers.getLimits)
	mux.HandleFunc("PATCH /api/limits", handlers.updateLimits)
	mux.HandleFunc("GET /api/knowledge/search", handlers.searchKnowledge)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *httpHandlers) ticketCreated(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("id")
	if err := h.service.OnTicketCreated(r.Context(), ticketID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"ticket_id": ticketID, "status": "triage_scheduled"})
}

func (h *httpHandlers) ticketResolved(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("id")
	ticket, err := h.tickets.GetTicket(r.Context(), ticketID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := h.service.OnTicketResolved(r.Context(), ticket); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"ticket_id": ticketID, "status": "queued_for_mining"})
}

func (h *httpHandlers) dailyUsage(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw))
			return
		}
		date = parsed
	}

	summary, err := h.governor.DailyUsage(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *httpHandlers) monthlyUsage(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year, month := now.Year(), now.Month()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid month %q, want YYYY-MM", raw))
			return
		}
		year, month = parsed.Year(), parsed.Month()
	}

	summary, err := h.governor.MonthlyUsage(r.Context(), year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *httpHandlers) getLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.governor.Limits())
}

func (h *httpHandlers) updateLimits(w http.ResponseWriter, r *http.Request) {
	var update dto.CostLimitsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding body: %w", err))
		return
	}

	limits, err := h.governor.UpdateLimits(r.Context(), update)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

func (h *httpHandlers) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing query parameter q"))
		return
	}

	snippets, err := h.search.Search(r.Context(), query, 5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}
