// Package webhook receives Cafe24 push events and feeds them to the reply pipeline.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/chosahoo/cafe24-cs-bot/internal/board"
)

// maxBodyBytes caps a webhook payload.
const maxBodyBytes = 1 << 20

// Processor is the part of the orchestrator the webhook drives.
type Processor interface {
	OnWebhookNewPost(ctx context.Context, boardID string, post board.Post) error
	MarkAdminReplied(ctx context.Context, boardID, postID string) error
}

// Handler handles Cafe24 webhook deliveries. Events are acknowledged as
// soon as they parse and are processed in the background.
type Handler struct {
	proc   Processor
	secret string
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewHandler creates a webhook handler. An empty secret disables signature checks.
func NewHandler(proc Processor, secret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{proc: proc, secret: secret, logger: logger.Named("webhook")}
}

// Wait blocks until every event accepted so far has been processed.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// HandleEvent handles POST /api/webhook/cafe24.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.secret != "" && !h.verifySignature(r.Header.Get(signatureHeader), body) {
		h.logger.Warn("rejected webhook with bad signature", zap.String("remote", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	job, err := h.route(env)
	if err != nil {
		http.Error(w, "invalid event data: "+err.Error(), http.StatusBadRequest)
		return
	}
	if job != nil {
		ctx := context.WithoutCancel(r.Context())
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if err := job(ctx); err != nil {
				h.logger.Error("processing webhook event", zap.String("event", env.Event), zap.Error(err))
			}
		}()
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "웹훅 처리 완료"})
}

// HandleVerify handles POST /api/webhook/cafe24/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Challenge string `json:"challenge"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"challenge": req.Challenge})
}

// route decodes the event data and returns the work to run, or nil when
// the event only needs logging.
func (h *Handler) route(env envelope) (func(context.Context) error, error) {
	switch env.Event {
	case EventPostCreated:
		var d postCreated
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		if d.BoardID == "" || d.PostID == "" {
			return nil, errMissingIDs
		}
		post := d.post()
		h.logger.Info("new board post",
			zap.String("board_id", post.BoardID),
			zap.String("post_id", post.ID),
			zap.String("title", post.Title))
		return func(ctx context.Context) error {
			return h.proc.OnWebhookNewPost(ctx, post.BoardID, post)
		}, nil

	case EventReplyCreated:
		var d replyCreated
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		if !d.IsAdmin {
			return nil, nil
		}
		if d.BoardID == "" || d.PostID == "" {
			return nil, errMissingIDs
		}
		boardID, postID := string(d.BoardID), string(d.PostID)
		h.logger.Info("admin reply", zap.String("board_id", boardID), zap.String("post_id", postID))
		return func(ctx context.Context) error {
			return h.proc.MarkAdminReplied(ctx, boardID, postID)
		}, nil

	case EventInquiryCreated:
		var d inquiryCreated
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, err
		}
		h.logger.Info("customer inquiry", zap.String("inquiry_id", string(d.InquiryID)), zap.String("subject", d.Subject))
		return nil, nil

	default:
		h.logger.Info("ignoring webhook event", zap.String("event", env.Event))
		return nil, nil
	}
}

func (d postCreated) post() board.Post {
	p := board.Post{
		ID:       string(d.PostID),
		BoardID:  string(d.BoardID),
		Title:    d.Title,
		Content:  d.Content,
		Author:   string(d.CustomerID),
		IsNotice: bool(d.IsNotice),
	}
	if parent := string(d.ParentID); parent != "" && parent != "0" {
		p.ParentID = &parent
	}
	if depth, err := strconv.Atoi(string(d.ReplyDepth)); err == nil {
		p.ReplyDepth = depth
	}
	return p
}

// verifySignature checks a hex HMAC-SHA256 of the raw body, with or
// without a "sha256=" prefix.
func (h *Handler) verifySignature(signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
