package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
)

// RegisterRoutes mounts the answer history endpoints under /api/answers.
func RegisterRoutes(r chi.Router, store *Store, monitor *MonitorStore) {
	r.Route("/api/answers", func(r chi.Router) {
		r.Get("/logs", handleList(store))
		r.Get("/logs/{logID}", handleGet(store))
		r.Get("/stats", handleStats(store))
		r.Get("/monitored", handleMonitored(monitor))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		out, err := store.List(r.Context(), page, limit, Status(q.Get("status")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "logID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid log id", http.StatusBadRequest)
			return
		}
		l, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func handleStats(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleMonitored(monitor *MonitorStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		posts, err := monitor.List(r.Context(), q.Get("board"), MonitorStatus(q.Get("status")), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
