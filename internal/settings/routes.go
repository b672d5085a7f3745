package settings

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
)

// RegisterRoutes mounts settings endpoints under /api/settings.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", handleGetAll(store))
		r.Post("/", handleSet(store))
		r.Post("/batch", handleSetBatch(store))
		r.Post("/reset", handleReset(store))
		r.Get("/{key}", handleGet(store))
		r.Delete("/{key}", handleDelete(store))
	})
}

func handleGetAll(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := store.GetAll(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		v, err := store.Get(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Setting{Key: key, Value: v})
	}
}

func handleSet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Key == "" || len(req.Value) == 0 {
			http.Error(w, "key and value are required", http.StatusBadRequest)
			return
		}
		value := rawToString(req.Value)
		if err := store.Set(r.Context(), req.Key, value); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Setting{Key: req.Key, Value: value})
	}
}

func handleSetBatch(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil || raw == nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		values := make(map[string]string, len(raw))
		for k, v := range raw {
			values[k] = rawToString(v)
		}
		if err := store.SetBatch(r.Context(), values); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, values)
	}
}

func handleReset(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Reset(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Defaults)
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// rawToString accepts JSON strings as-is and stores numbers and booleans
// in their literal form, the way the admin UI submits them.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
