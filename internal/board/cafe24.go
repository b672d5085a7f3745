package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
)

// kst is the offset Cafe24 uses for timestamps without a zone.
var kst = time.FixedZone("KST", 9*60*60)

// Cafe24Config holds the per-mall settings of the board API client.
type Cafe24Config struct {
	MallID            string
	ClientID          string
	ShopNo            int
	APIVersion        string
	ReplyWriter       string
	ReplyTitle        string
	RequestsPerSecond float64
	// BaseURL overrides https://{mall}.cafe24api.com/api/v2 (tests).
	BaseURL string
}

// Cafe24Client implements Gateway against the Cafe24 Admin API.
type Cafe24Client struct {
	cfg     Cafe24Config
	base    string
	http    *http.Client
	tokens  oauth2.TokenSource
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCafe24Client creates a client that authenticates with tokens from ts.
func NewCafe24Client(cfg Cafe24Config, ts oauth2.TokenSource, logger *zap.Logger) *Cafe24Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShopNo == 0 {
		cfg.ShopNo = 1
	}
	if cfg.ReplyWriter == "" {
		cfg.ReplyWriter = "CS"
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.cafe24api.com/api/v2", cfg.MallID)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Cafe24Client{
		cfg:     cfg,
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  ts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("cafe24"),
	}
}

// article is the Cafe24 wire form of a board post.
type article struct {
	ArticleNo       flexInt `json:"article_no"`
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	Writer          string  `json:"writer"`
	CreatedDate     string  `json:"created_date"`
	ReplyCount      flexInt `json:"reply_count"`
	ParentArticleNo flexInt `json:"parent_article_no"`
	ReplyDepth      flexInt `json:"reply_depth"`
	Notice          string  `json:"notice"`
	ReplyStatus     string  `json:"reply_status"`
}

// flexInt accepts a JSON number, a numeric string, or null.
type flexInt struct {
	Value int
	Valid bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = flexInt{}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parsing %s as integer: %w", b, err)
	}
	*f = flexInt{Value: n, Valid: true}
	return nil
}

func (a article) toPost(boardID string) Post {
	p := Post{
		ID:          strconv.Itoa(a.ArticleNo.Value),
		BoardID:     boardID,
		Title:       a.Title,
		Content:     a.Content,
		Author:      a.Writer,
		CreatedAt:   parseCafe24Time(a.CreatedDate),
		ReplyCount:  a.ReplyCount.Value,
		ReplyDepth:  a.ReplyDepth.Value,
		IsNotice:    a.Notice == "T",
		ReplyStatus: ReplyStatus(a.ReplyStatus),
	}
	if a.ParentArticleNo.Valid && a.ParentArticleNo.Value != 0 && a.ParentArticleNo.Value != a.ArticleNo.Value {
		parent := strconv.Itoa(a.ParentArticleNo.Value)
		p.ParentID = &parent
	}
	return p
}

func parseCafe24Time(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, kst); err == nil {
		return t
	}
	return time.Time{}
}

// ListBoards returns the boards of the mall.
func (c *Cafe24Client) ListBoards(ctx context.Context) ([]Board, error) {
	var resp struct {
		Boards []struct {
			BoardNo   flexInt `json:"board_no"`
			BoardName string  `json:"board_name"`
		} `json:"boards"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/boards", c.shopQuery(), nil, &resp); err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	boards := make([]Board, 0, len(resp.Boards))
	for _, b := range resp.Boards {
		boards = append(boards, Board{ID: strconv.Itoa(b.BoardNo.Value), Name: b.BoardName})
	}
	return boards, nil
}

// ListPosts returns one page of posts, newest first as the API returns them.
func (c *Cafe24Client) ListPosts(ctx context.Context, boardID string, page, pageSize int) ([]Post, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}
	q := c.shopQuery()
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa((page-1)*pageSize))

	var resp struct {
		Articles []article `json:"articles"`
	}
	path := "/admin/boards/" + url.PathEscape(boardID) + "/articles"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing posts of board %s: %w", boardID, err)
	}
	posts := make([]Post, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		posts = append(posts, a.toPost(boardID))
	}
	return posts, nil
}

// GetPost returns a single post.
func (c *Cafe24Client) GetPost(ctx context.Context, boardID, postID string) (*Post, error) {
	var resp struct {
		Article *article `json:"article"`
	}
	path := "/admin/boards/" + url.PathEscape(boardID) + "/articles/" + url.PathEscape(postID)
	if err := c.do(ctx, http.MethodGet, path, c.shopQuery(), nil, &resp); err != nil {
		return nil, fmt.Errorf("getting post %s: %w", postID, err)
	}
	if resp.Article == nil {
		return nil, fmt.Errorf("getting post %s: %w", postID, apperr.ErrNotFound)
	}
	p := resp.Article.toPost(boardID)
	return &p, nil
}

// CreateReply writes content as a reply article under postID.
func (c *Cafe24Client) CreateReply(ctx context.Context, boardID, postID, content string) (*ReplyResult, error) {
	parent, err := strconv.Atoi(postID)
	if err != nil {
		return nil, fmt.Errorf("post id %q: %w", postID, apperr.ErrValidation)
	}
	title := c.cfg.ReplyTitle
	if title == "" {
		title = "Re:"
	}
	body := map[string]any{
		"shop_no": c.cfg.ShopNo,
		"requests": []map[string]any{{
			"writer":           c.cfg.ReplyWriter,
			"title":            title,
			"content":          content,
			"reply_article_no": parent,
			"client_ip":        "127.0.0.1",
		}},
	}
	var resp struct {
		Articles []article `json:"articles"`
	}
	path := "/admin/boards/" + url.PathEscape(boardID) + "/articles"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return nil, fmt.Errorf("creating reply to post %s: %w", postID, err)
	}

	res := &ReplyResult{PostID: postID, CreatedAt: time.Now()}
	if len(resp.Articles) > 0 {
		res.ReplyID = strconv.Itoa(resp.Articles[0].ArticleNo.Value)
		if t := parseCafe24Time(resp.Articles[0].CreatedDate); !t.IsZero() {
			res.CreatedAt = t
		}
	}
	c.logger.Info("reply created", zap.String("board_id", boardID), zap.String("post_id", postID), zap.String("reply_id", res.ReplyID))
	return res, nil
}

func (c *Cafe24Client) shopQuery() url.Values {
	q := url.Values{}
	q.Set("shop_no", strconv.Itoa(c.cfg.ShopNo))
	return q
}

// do performs one API call and classifies failures into apperr kinds.
func (c *Cafe24Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait also fails early when the deadline is too close to wait out.
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("waiting for rate limit: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return classifyTokenError(err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)
	if c.cfg.ClientID != "" {
		req.Header.Set("X-Cafe24-Client-Id", c.cfg.ClientID)
	}
	if c.cfg.APIVersion != "" {
		req.Header.Set("X-Cafe24-Api-Version", c.cfg.APIVersion)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %v: %w", method, path, err, apperr.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}

	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		msg = payload.Error.Message
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = apperr.ErrAuthExpired
	case status == http.StatusNotFound:
		kind = apperr.ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		kind = apperr.ErrUpstreamUnavailable
	default:
		kind = apperr.ErrValidation
	}
	return fmt.Errorf("cafe24 status %d: %s: %w", status, msg, kind)
}

func classifyTokenError(err error) error {
	if errors.Is(err, apperr.ErrAuthExpired) {
		return err
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= 500 {
			return fmt.Errorf("refreshing token: %v: %w", err, apperr.ErrUpstreamUnavailable)
		}
		return fmt.Errorf("refreshing token: %v: %w", err, apperr.ErrAuthExpired)
	}
	return fmt.Errorf("obtaining token: %v: %w", err, apperr.ErrUpstreamUnavailable)
}
