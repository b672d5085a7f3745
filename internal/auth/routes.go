package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
)

// RegisterRoutes mounts the install and OAuth callback endpoints.
// defaultMall is used when a request names no mall.
func RegisterRoutes(r chi.Router, oauth *Cafe24OAuth, defaultMall string) {
	mallOf := func(r *http.Request) string {
		if m := r.URL.Query().Get("mall_id"); m != "" {
			return m
		}
		return defaultMall
	}

	r.Route("/cafe24/install", func(r chi.Router) {
		r.Get("/", handleInstall(oauth, mallOf))
		r.Get("/status", handleStatus(oauth, mallOf))
		r.Delete("/", handleUninstall(oauth, mallOf))
	})
	r.Get("/auth/callback", handleCallback(oauth))
}

func handleInstall(oauth *Cafe24OAuth, mallOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mall := mallOf(r)
		if mall == "" {
			http.Error(w, "mall_id is required", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, oauth.AuthCodeURL(mall), http.StatusFound)
	}
}

func handleStatus(oauth *Cafe24OAuth, mallOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mall := mallOf(r)
		inst, err := oauth.Status(r.Context(), mall)
		if err != nil {
			if apperr.HTTPStatus(err) == http.StatusNotFound {
				writeJSON(w, http.StatusOK, map[string]any{"mall_id": mall, "installed": false})
				return
			}
			http.Error(w, err.Error(), apperr.HTTPStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"mall_id":    inst.MallID,
			"installed":  true,
			"expires_at": inst.ExpiresAt,
			"updated_at": inst.UpdatedAt,
		})
	}
}

func handleUninstall(oauth *Cafe24OAuth, mallOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := oauth.Uninstall(r.Context(), mallOf(r)); err != nil {
			http.Error(w, err.Error(), apperr.HTTPStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func handleCallback(oauth *Cafe24OAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization failed: "+e, http.StatusBadRequest)
			return
		}
		mall, code := q.Get("state"), q.Get("code")
		if mall == "" || code == "" {
			http.Error(w, "code and state are required", http.StatusBadRequest)
			return
		}
		tok, err := oauth.Exchange(r.Context(), mall, code)
		if err != nil {
			http.Error(w, err.Error(), apperr.HTTPStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"mall_id":    mall,
			"expires_at": tok.Expiry,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
