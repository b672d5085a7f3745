package orchestrator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/notifications"
)

// RegisterRoutes mounts the board and answer endpoints. The targets of
// notification links are mounted only when links is non-nil.
func RegisterRoutes(r chi.Router, svc *Service, links *notifications.LinkSigner) {
	r.Route("/api/cafe24", func(r chi.Router) {
		r.Get("/boards", handleListBoards(svc))
		r.Route("/boards/{boardID}", func(r chi.Router) {
			r.Get("/posts", handleListPosts(svc))
			r.Get("/posts/{postID}", handleGetPost(svc))
			r.Post("/posts/{postID}/replies", handleReply(svc))
			r.Post("/posts/{postID}/suggest-reply", handleSuggest(svc))
			r.Post("/posts/{postID}/auto-reply", handleAutoReply(svc))
			r.Get("/unanswered", handleUnanswered(svc))
			r.Get("/stats", handleStats(svc))
			r.Get("/monitor", handleMonitor(svc))
		})
		r.Post("/answers/{logID}/approve", handleApprove(svc))
		r.Post("/answers/{logID}/reject", handleReject(svc))
		r.Post("/answers/{logID}/stage", handleStage(svc))
	})
	r.Post("/api/answers/validate", handleValidate(svc))

	if links != nil {
		registerLinkRoutes(r, svc, links)
	}
}

func handleListBoards(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boards, err := svc.ListBoards(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, boards)
	}
}

func handleListPosts(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		posts, err := svc.ListPosts(r.Context(), chi.URLParam(r, "boardID"), page, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

func handleGetPost(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := svc.GetPost(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "postID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

func handleReply(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		res, err := svc.Reply(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "postID"), req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func handleSuggest(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := svc.Suggest(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "postID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func handleAutoReply(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := svc.AutoReply(r.Context(), chi.URLParam(r, "boardID"), chi.URLParam(r, "postID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func handleUnanswered(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.ClassifyUnanswered(r.Context(), chi.URLParam(r, "boardID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleStats(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.BoardStats(r.Context(), chi.URLParam(r, "boardID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleMonitor(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Sweep(r.Context(), chi.URLParam(r, "boardID"), nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleApprove(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := logID(w, r)
		if !ok {
			return
		}
		var body struct {
			BoardID      string `json:"board_id"`
			PostID       string `json:"post_id"`
			CustomAnswer string `json:"custom_answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		l, err := svc.Approve(r.Context(), ApproveRequest{
			LogID:   id,
			BoardID: body.BoardID,
			PostID:  body.PostID,
			Answer:  body.CustomAnswer,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func handleReject(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := logID(w, r)
		if !ok {
			return
		}
		l, err := svc.Reject(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func handleStage(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := logID(w, r)
		if !ok {
			return
		}
		var body struct {
			Answer string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		l, err := svc.Stage(r.Context(), id, body.Answer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func handleValidate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		v, err := svc.Validate(r.Context(), body.Question, body.Answer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func logID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "logID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid log id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
