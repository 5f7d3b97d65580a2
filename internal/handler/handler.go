package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/pavelanni/flashquiz/internal/handler/views"
	"github.com/pavelanni/flashquiz/internal/store"
)

// Handler serves the stored quiz history as HTML pages, with the same data
// as JSON under /api.
type Handler struct {
	store *store.Store
}

// New creates a new Handler.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/", h.handleIndex)
	r.Get("/results/{resultID}", h.handleResultPage)
	r.Get("/stats", h.handleStatsPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/results", h.handleListResults)
		r.Get("/results/{resultID}", h.handleGetResult)
		r.Get("/stats", h.handleStats)
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	results, err := h.store.ListResults(limit)
	if err != nil {
		slog.Error("list results", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st, err := h.store.Stats()
	if err != nil {
		slog.Error("stats", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ResultsPage(results, st).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "resultID")
	res, err := h.store.GetResult(id)
	if err != nil {
		slog.Error("get result", "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if res == nil {
		http.Error(w, "Result not found.", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ResultPage(*res).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleStatsPage(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats()
	if err != nil {
		slog.Error("stats", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.StatsPage(st).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid limit")
		return
	}

	results, err := h.store.ListResults(limit)
	if err != nil {
		slog.Error("list results", "error", err)
		renderError(w, r, http.StatusInternalServerError, "database error listing results")
		return
	}
	total, err := h.store.ResultCount()
	if err != nil {
		slog.Error("count results", "error", err)
		renderError(w, r, http.StatusInternalServerError, "database error counting results")
		return
	}
	render.JSON(w, r, map[string]any{"results": results, "total": total})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "resultID")
	res, err := h.store.GetResult(id)
	if err != nil {
		slog.Error("get result", "id", id, "error", err)
		renderError(w, r, http.StatusInternalServerError, "database error loading result")
		return
	}
	if res == nil {
		renderError(w, r, http.StatusNotFound, "result not found")
		return
	}
	render.JSON(w, r, res)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats()
	if err != nil {
		slog.Error("stats", "error", err)
		renderError(w, r, http.StatusInternalServerError, "database error computing stats")
		return
	}
	render.JSON(w, r, st)
}

// parseLimit reads the optional ?limit= query value; 0 means no limit.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative limit %d", n)
	}
	return n, nil
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{
		"error": map[string]any{
			"statusCode": status,
			"message":    msg,
		},
	})
}
