package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chosahoo/cafe24-cs-bot/internal/answer"
	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/board"
	"github.com/chosahoo/cafe24-cs-bot/internal/classify"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
	"github.com/chosahoo/cafe24-cs-bot/internal/ledger"
	"github.com/chosahoo/cafe24-cs-bot/internal/notifications"
	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
)

type fakeGateway struct {
	mu       sync.Mutex
	posts    map[string]board.Post
	replies  []string
	replyErr error
	// started receives once per CreateReply call; block, when set, holds
	// the call until it is closed.
	started chan struct{}
	block   chan struct{}
}

func newFakeGateway(posts ...board.Post) *fakeGateway {
	g := &fakeGateway{posts: map[string]board.Post{}}
	for _, p := range posts {
		g.posts[p.ID] = p
	}
	return g
}

func (g *fakeGateway) ListBoards(context.Context) ([]board.Board, error) {
	return []board.Board{{ID: "4", Name: "상품 Q&A"}}, nil
}

func (g *fakeGateway) ListPosts(_ context.Context, boardID string, _, _ int) ([]board.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []board.Post
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		if p, ok := g.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *fakeGateway) GetPost(_ context.Context, _, postID string) (*board.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", postID, apperr.ErrNotFound)
	}
	return &p, nil
}

func (g *fakeGateway) CreateReply(_ context.Context, _, postID, content string) (*board.ReplyResult, error) {
	g.mu.Lock()
	started, block := g.started, g.block
	g.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.replyErr != nil {
		return nil, g.replyErr
	}
	g.replies = append(g.replies, postID+":"+content)
	return &board.ReplyResult{ReplyID: "r" + postID, PostID: postID}, nil
}

func (g *fakeGateway) replyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.replies)
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, question, _ string) (*answer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &answer.Result{Text: "답변: " + strings.SplitN(question, "\n", 2)[0], Source: answer.SourceManual}, nil
}

func (f *fakeGenerator) Validate(context.Context, string, string) (*answer.Validation, error) {
	return &answer.Validation{Score: 80, Feedback: "좋음"}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (f *fakeSink) Send(_ context.Context, ev notifications.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type harness struct {
	svc      *Service
	gateway  *fakeGateway
	gen      *fakeGenerator
	sink     *fakeSink
	settings *settings.Store
	logs     *ledger.Store
	monitor  *ledger.MonitorStore
}

func newHarness(t *testing.T, posts ...board.Post) *harness {
	t.Helper()
	d, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	h := &harness{
		gateway:  newFakeGateway(posts...),
		gen:      &fakeGenerator{},
		sink:     &fakeSink{},
		settings: settings.NewStore(d),
		logs:     ledger.NewStore(d),
		monitor:  ledger.NewMonitorStore(d),
	}
	h.svc = New(Deps{
		Gateway:   h.gateway,
		Generator: h.gen,
		Settings:  h.settings,
		Logs:      h.logs,
		Monitor:   h.monitor,
		Sink:      h.sink,
	}, Options{PageSize: 10, Location: time.UTC}, zaptest.NewLogger(t))
	return h
}

func (h *harness) setMode(t *testing.T, mode settings.Mode, auto bool) {
	t.Helper()
	require.NoError(t, h.settings.SetBatch(context.Background(), map[string]string{
		settings.KeyAnswerMode:       string(mode),
		settings.KeyAutoReplyEnabled: fmt.Sprint(auto),
	}))
}

func customerPost(id string) board.Post {
	return board.Post{ID: id, BoardID: "4", Title: "[문의] 배송 " + id, Content: "언제 오나요?", ReplyStatus: board.ReplyOpen}
}

func TestHandleNewPostAutoPostsAndFinalizes(t *testing.T) {
	h := newHarness(t)
	h.setMode(t, settings.ModeAuto, true)
	ctx := context.Background()

	require.NoError(t, h.svc.HandleNewPost(ctx, "4", customerPost("1")))
	assert.Equal(t, 1, h.gateway.replyCount())

	page, err := h.logs.List(ctx, 1, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Logs, 1)
	l := page.Logs[0]
	assert.Equal(t, ledger.StatusPosted, l.Status)
	assert.Equal(t, settings.ModeAuto, l.Mode)
	require.NotNil(t, l.FinalAnswer)
	assert.Equal(t, l.SuggestedAnswer, *l.FinalAnswer)

	mp, err := h.monitor.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ledger.MonitorAnswered, mp.Status)
}

func TestHandleNewPostIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.setMode(t, settings.ModeAuto, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.svc.HandleNewPost(ctx, "4", customerPost("1")))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.gateway.replyCount())
	assert.Equal(t, 1, h.gen.calls)
}

func TestHandleNewPostAutoPostFailure(t *testing.T) {
	h := newHarness(t)
	h.setMode(t, settings.ModeAuto, true)
	h.gateway.replyErr = fmt.Errorf("board down: %w", apperr.ErrUpstreamUnavailable)
	ctx := context.Background()

	err := h.svc.HandleNewPost(ctx, "4", customerPost("1"))
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.True(t, apperr.Retryable(err))

	page, err := h.logs.List(ctx, 1, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Logs, 1)
	assert.Equal(t, ledger.StatusPending, page.Logs[0].Status)

	mp, err := h.monitor.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ledger.MonitorError, mp.Status)

	require.Len(t, h.sink.events, 1)
	assert.Equal(t, notifications.TypeReplyFailed, h.sink.events[0].Type)
}

func TestHandleNewPostGenerationFailureWritesNoLog(t *testing.T) {
	h := newHarness(t)
	h.setMode(t, settings.ModeSemiAuto, false)
	h.gen.err = fmt.Errorf("model timeout: %w", apperr.ErrUpstreamUnavailable)
	ctx := context.Background()

	err := h.svc.HandleNewPost(ctx, "4", customerPost("1"))
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	page, err := h.logs.List(ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	mp, err := h.monitor.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ledger.MonitorError, mp.Status)
	assert.Empty(t, h.sink.events)
}

func TestHandleNewPostSemiAutoNotifies(t *testing.T) {
	h := newHarness(t)
	h.setMode(t, settings.ModeSemiAuto, false)
	ctx := context.Background()

	require.NoError(t, h.svc.HandleNewPost(ctx, "4", customerPost("1")))
	assert.Zero(t, h.gateway.replyCount())

	page, err := h.logs.List(ctx, 1, 10, ledger.StatusPending)
	require.NoError(t, err)
	require.Len(t, page.Logs, 1)

	require.Len(t, h.sink.events, 1)
	ev := h.sink.events[0]
	assert.Equal(t, notifications.TypeSuggestionReady, ev.Type)
	assert.Equal(t, "1", ev.PostID)
	assert.Equal(t, page.Logs[0].ID, ev.LogID)
	assert.Equal(t, page.Logs[0].SuggestedAnswer, ev.SuggestedAnswer)

	mp, err := h.monitor.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ledger.MonitorProcessing, mp.Status)
}

func TestHandleNewPostManualOnlyTracks(t *testing.T) {
	for _, tc := range []struct {
		name string
		mode settings.Mode
		auto bool
	}{
		{"manual", settings.ModeManual, true},
		{"auto disabled", settings.ModeAuto, false},
		{"unknown", settings.Mode("weird"), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.setMode(t, tc.mode, tc.auto)
			ctx := context.Background()

			require.NoError(t, h.svc.HandleNewPost(ctx, "4", customerPost("1")))
			assert.Zero(t, h.gen.calls)
			mp, err := h.monitor.Get(ctx, "1")
			require.NoError(t, err)
			assert.Equal(t, ledger.MonitorNew, mp.Status)
		})
	}
}

func TestApproveUsesCustomAnswer(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	l, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)

	done, err := h.svc.Approve(ctx, ApproveRequest{LogID: l.ID, Answer: "직접 쓴 답변"})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPosted, done.Status)
	assert.Equal(t, "직접 쓴 답변", *done.FinalAnswer)
	assert.Equal(t, []string{"1:직접 쓴 답변"}, h.gateway.replies)

	// A repeated approval with the same answer posts nothing new.
	again, err := h.svc.Approve(ctx, ApproveRequest{LogID: l.ID, Answer: "직접 쓴 답변"})
	require.NoError(t, err)
	assert.Equal(t, done.ID, again.ID)
	assert.Equal(t, 1, h.gateway.replyCount())

	_, err = h.svc.Approve(ctx, ApproveRequest{LogID: l.ID, Answer: "다른 답변"})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestApprovePrefersStagedAnswer(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	l, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)
	_, err = h.svc.Stage(ctx, l.ID, "수정한 답변")
	require.NoError(t, err)

	done, err := h.svc.Approve(ctx, ApproveRequest{LogID: l.ID})
	require.NoError(t, err)
	assert.Equal(t, "수정한 답변", *done.FinalAnswer)
}

func TestApprovePostFailureLeavesLogOpen(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	l, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)

	h.gateway.replyErr = fmt.Errorf("token: %w", apperr.ErrAuthExpired)
	_, err = h.svc.Approve(ctx, ApproveRequest{LogID: l.ID})
	require.ErrorIs(t, err, apperr.ErrAuthExpired)
	assert.False(t, apperr.Retryable(err))

	got, err := h.logs.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)

	h.gateway.replyErr = nil
	done, err := h.svc.Approve(ctx, ApproveRequest{LogID: l.ID})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPosted, done.Status)
}

func TestApproveChecksPost(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	_, err := h.svc.Approve(ctx, ApproveRequest{LogID: 42})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	l, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)
	_, err = h.svc.Approve(ctx, ApproveRequest{LogID: l.ID, PostID: "999"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReject(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	_, err := h.svc.Reject(ctx, 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	l, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)
	rejected, err := h.svc.Reject(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRejected, rejected.Status)
	assert.Nil(t, rejected.FinalAnswer)

	_, err = h.svc.Reject(ctx, l.ID)
	assert.NoError(t, err)

	_, err = h.svc.Approve(ctx, ApproveRequest{LogID: l.ID})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Zero(t, h.gateway.replyCount())
}

func TestOverlappingDecisionsOnOneLog(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	l, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)

	h.gateway.started = make(chan struct{}, 4)
	h.gateway.block = make(chan struct{})

	type result struct {
		log *ledger.AnswerLog
		err error
	}
	first := make(chan result, 1)
	go func() {
		got, err := h.svc.Approve(ctx, ApproveRequest{LogID: l.ID, Answer: "custom A"})
		first <- result{got, err}
	}()
	<-h.gateway.started

	rejected := make(chan result, 1)
	second := make(chan result, 1)
	go func() {
		got, err := h.svc.Reject(ctx, l.ID)
		rejected <- result{got, err}
	}()
	go func() {
		got, err := h.svc.Approve(ctx, ApproveRequest{LogID: l.ID, Answer: "custom B"})
		second <- result{got, err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(h.gateway.block)

	a := <-first
	require.NoError(t, a.err)
	assert.Equal(t, ledger.StatusPosted, a.log.Status)
	assert.Equal(t, "custom A", *a.log.FinalAnswer)

	r := <-rejected
	assert.ErrorIs(t, r.err, apperr.ErrInvalidTransition)
	b := <-second
	assert.ErrorIs(t, b.err, apperr.ErrInvalidTransition)

	assert.Equal(t, 1, h.gateway.replyCount())
	got, err := h.logs.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPosted, got.Status)
}

func TestSuggestReusesOpenLog(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	first, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)
	second, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.gen.calls)

	_, err = h.svc.Suggest(ctx, "4", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAutoReplyRetriesPendingLog(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()

	h.gateway.replyErr = errors.New("boom")
	_, err := h.svc.AutoReply(ctx, "4", "1")
	require.Error(t, err)

	h.gateway.replyErr = nil
	l, err := h.svc.AutoReply(ctx, "4", "1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPosted, l.Status)
	assert.Equal(t, 1, h.gen.calls)

	page, err := h.logs.List(ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestOnWebhookNewPostSkipsAnswerThreads(t *testing.T) {
	h := newHarness(t)
	h.setMode(t, settings.ModeSemiAuto, false)
	ctx := context.Background()
	require.NoError(t, h.settings.SetBatch(ctx, map[string]string{
		settings.KeyCustomerTitle: "[문의]",
		settings.KeyAnswerTitle:   "[답변]",
	}))

	answerThread := board.Post{ID: "9", Title: "[답변] 배송 안내"}
	require.NoError(t, h.svc.OnWebhookNewPost(ctx, "4", answerThread))
	_, err := h.monitor.Get(ctx, "9")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	reply := customerPost("10")
	parent := "1"
	reply.ParentID = &parent
	require.NoError(t, h.svc.OnWebhookNewPost(ctx, "4", reply))
	assert.Zero(t, h.gen.calls)

	require.NoError(t, h.svc.OnWebhookNewPost(ctx, "4", customerPost("11")))
	assert.Equal(t, 1, h.gen.calls)
}

func TestSweep(t *testing.T) {
	notice := customerPost("3")
	notice.IsNotice = true
	done := customerPost("4")
	done.ReplyStatus = board.ReplyCompleted
	h := newHarness(t, customerPost("1"), customerPost("2"), notice, done)
	h.setMode(t, settings.ModeSemiAuto, false)
	ctx := context.Background()

	report, err := h.svc.Sweep(ctx, "4", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Unanswered)
	assert.Equal(t, 2, report.Suggested)
	assert.NotEmpty(t, report.Warnings)

	report, err = h.svc.Sweep(ctx, "4", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Duplicates)
	assert.Zero(t, report.Suggested)
}

func TestMarkAdminReplied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.svc.MarkAdminReplied(ctx, "4", "77"))
	mp, err := h.monitor.Get(ctx, "77")
	require.NoError(t, err)
	assert.Equal(t, ledger.MonitorAnswered, mp.Status)

	assert.ErrorIs(t, h.svc.MarkAdminReplied(ctx, "4", ""), apperr.ErrValidation)
}

func TestBoardStats(t *testing.T) {
	now := time.Date(2024, 6, 5, 15, 0, 0, 0, time.UTC) // Wednesday
	today := customerPost("1")
	today.CreatedAt = now.Add(-time.Hour)
	today.ReplyCount = 1
	monday := customerPost("2")
	monday.CreatedAt = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, today, monday)
	h.svc.now = func() time.Time { return now }

	st, err := h.svc.BoardStats(context.Background(), "4")
	require.NoError(t, err)
	assert.Equal(t, 1, st.TodayAnswered)
	assert.Equal(t, 0, st.TodayUnanswered)
	assert.Equal(t, 1, st.WeekAnswered)
	assert.Equal(t, 1, st.WeekUnanswered)
}

func TestBoardStatsLogsDegradedFilters(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	core, logs := observer.New(zapcore.WarnLevel)
	h.svc.logger = zap.New(core)
	ctx := context.Background()
	require.NoError(t, h.settings.Set(ctx, settings.KeyCustomerTitle, ""))

	st, err := h.svc.BoardStats(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, []string{classify.WarnNoCustomerPrefix}, st.Warnings)

	entries := logs.FilterMessage("stats degraded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, classify.WarnNoCustomerPrefix, entries[0].ContextMap()["warning"])
}

func TestRoutes(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	r := chi.NewRouter()
	RegisterRoutes(r, h.svc, nil)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/cafe24/boards", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/cafe24/boards/4/unanswered", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/cafe24/boards/4/posts/999", "").Code)

	rec := do(http.MethodPost, "/api/cafe24/boards/4/posts/1/suggest-reply", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/cafe24/answers/abc/approve", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/api/cafe24/answers/99/reject", "").Code)

	rec = do(http.MethodPost, "/api/cafe24/answers/1/approve", `{"custom_answer":"승인 답변"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"posted"`)

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/answers/1/reject", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/cafe24/boards/4/posts/1/replies", `{"content":" "}`).Code)

	rec = do(http.MethodPost, "/api/answers/validate", `{"question":"q","answer":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":80`)
}

func TestLinkRoutes(t *testing.T) {
	h := newHarness(t, customerPost("1"))
	ctx := context.Background()
	links, err := notifications.NewLinkSigner("link-secret")
	require.NoError(t, err)
	r := chi.NewRouter()
	RegisterRoutes(r, h.svc, links)

	l, err := h.svc.Suggest(ctx, "4", "1")
	require.NoError(t, err)
	approve := fmt.Sprintf("/answers/%d/approve", l.ID)
	reject := fmt.Sprintf("/answers/%d/reject", l.ID)
	approveToken := links.Sign(l.ID, notifications.ActionApprove)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}
	submit := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(url.Values{"token": {token}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	// Opening a link only renders the confirmation page.
	rec := get(approve + "?token=" + approveToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<form method="post">`)
	assert.Contains(t, rec.Body.String(), l.SuggestedAnswer)
	assert.Zero(t, h.gateway.replyCount())
	got, err := h.logs.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)

	assert.Equal(t, http.StatusForbidden, get(approve).Code)
	assert.Equal(t, http.StatusForbidden, get(reject+"?token="+approveToken).Code)
	assert.Equal(t, http.StatusForbidden, submit(approve, "").Code)
	assert.Equal(t, http.StatusForbidden, submit(reject, approveToken).Code)
	assert.Zero(t, h.gateway.replyCount())

	rec = submit(approve, approveToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.gateway.replyCount())
	got, err = h.logs.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPosted, got.Status)

	// A used link cannot be turned into a different decision.
	rejectToken := links.Sign(l.ID, notifications.ActionReject)
	assert.Equal(t, http.StatusConflict, submit(reject, rejectToken).Code)
	rec = get(reject + "?token=" + rejectToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<form")
	assert.Equal(t, 1, h.gateway.replyCount())
}
