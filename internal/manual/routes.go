package manual

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
)

// maxUploadBytes caps manual uploads.
const maxUploadBytes = 10 << 20

// RegisterRoutes mounts manual endpoints under /api/manual.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/manual", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Get("/index", handleIndex(store))
		r.Post("/text", handleCreateText(store))
		r.Post("/upload", handleUpload(store))
		r.Get("/{id}", handleGet(store))
		r.Put("/{id}", handleUpdate(store))
		r.Delete("/{id}", handleDelete(store))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := store.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleIndex(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := store.Index(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		keywords := make(map[string]string, idx.Keywords.Len())
		for _, k := range idx.Keywords.Keys() {
			keywords[k], _ = idx.Keywords.Get(k)
		}
		sizes := make(map[string]string, idx.Sizes.Len())
		for _, k := range idx.Sizes.Keys() {
			sizes[k], _ = idx.Sizes.Get(k)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"keywords":      keywords,
			"keyword_order": idx.Keywords.Keys(),
			"sizes":         sizes,
		})
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		e, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleCreateText(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title    string `json:"title"`
			Content  string `json:"content"`
			Type     Type   `json:"type"`
			SizeData string `json:"size_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		e, err := store.Create(r.Context(), Entry{
			Title:    strings.TrimSpace(req.Title),
			Content:  req.Content,
			Type:     req.Type,
			SizeData: req.SizeData,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// handleUpload accepts plain-text and markdown files. Size-chart images
// are stored by name only; their table comes from the size_data field.
func handleUpload(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("manual")
		if err != nil {
			http.Error(w, "manual file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		typ := Type(r.FormValue("type"))
		if typ == "" {
			typ = TypeFile
		}
		ext := strings.ToLower(filepath.Ext(header.Filename))

		var content string
		switch {
		case typ == TypeSizeChart || isImage(ext):
			content = "사이즈표 이미지: " + header.Filename
		case ext == ".txt" || ext == ".md" || ext == ".markdown":
			data, err := io.ReadAll(file)
			if err != nil {
				http.Error(w, "reading upload", http.StatusBadRequest)
				return
			}
			if !utf8.Valid(data) {
				writeError(w, fmt.Errorf("%s is not UTF-8 text: %w", header.Filename, apperr.ErrValidation))
				return
			}
			content = string(data)
		default:
			writeError(w, fmt.Errorf("unsupported manual format %q: %w", ext, apperr.ErrValidation))
			return
		}

		e, err := store.Create(r.Context(), Entry{
			Title:    strings.TrimSpace(r.FormValue("title")),
			Content:  content,
			Type:     typ,
			SizeData: r.FormValue("size_data"),
			FileName: header.Filename,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func handleUpdate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var req struct {
			Title    string `json:"title"`
			Content  string `json:"content"`
			SizeData string `json:"size_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		e, err := store.Update(r.Context(), id, req.Title, req.Content, req.SizeData)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func isImage(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid manual id: %w", apperr.ErrValidation)
	}
	return id, nil
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
