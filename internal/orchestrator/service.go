// Package orchestrator runs the reply pipeline: it takes board posts in,
// asks for answers, records them in the ledger, and posts or holds them
// according to the operator's answer mode.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chosahoo/cafe24-cs-bot/internal/answer"
	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/board"
	"github.com/chosahoo/cafe24-cs-bot/internal/classify"
	"github.com/chosahoo/cafe24-cs-bot/internal/ledger"
	"github.com/chosahoo/cafe24-cs-bot/internal/notifications"
	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
)

// Generator produces and scores answers.
type Generator interface {
	Generate(ctx context.Context, question, extra string) (*answer.Result, error)
	Validate(ctx context.Context, question, answer string) (*answer.Validation, error)
}

// Deps are the collaborators of a Service. Sink may be nil.
type Deps struct {
	Gateway   board.Gateway
	Generator Generator
	Settings  *settings.Store
	Logs      *ledger.Store
	Monitor   *ledger.MonitorStore
	Sink      notifications.Sink
}

// Options tune a Service.
type Options struct {
	// PageSize is how many recent posts are classified per board.
	PageSize int
	// Location is the shop's time zone for day and week statistics.
	Location *time.Location
}

// Service coordinates the reply pipeline.
type Service struct {
	gateway   board.Gateway
	generator Generator
	settings  *settings.Store
	logs      *ledger.Store
	monitor   *ledger.MonitorStore
	sink      notifications.Sink
	opts      Options
	logger    *zap.Logger

	// flights collapses concurrent generation requests for the same post.
	flights singleflight.Group
	// locks serializes state changes of one answer log.
	locks logLocks
	now   func() time.Time
}

// New creates a Service.
func New(deps Deps, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		gateway:   deps.Gateway,
		generator: deps.Generator,
		settings:  deps.Settings,
		logs:      deps.Logs,
		monitor:   deps.Monitor,
		sink:      deps.Sink,
		opts:      opts,
		logger:    logger.Named("orchestrator"),
		now:       time.Now,
	}
}

// Question is the text sent to the generator for a post.
func Question(p board.Post) string {
	return strings.TrimSpace(p.Title + "\n\n" + p.Content)
}

// ListBoards returns the shop's boards.
func (s *Service) ListBoards(ctx context.Context) ([]board.Board, error) {
	return s.gateway.ListBoards(ctx)
}

// ListPosts returns one page of raw board posts.
func (s *Service) ListPosts(ctx context.Context, boardID string, page, pageSize int) ([]board.Post, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.opts.PageSize
	}
	return s.gateway.ListPosts(ctx, boardID, page, pageSize)
}

// GetPost returns one board post.
func (s *Service) GetPost(ctx context.Context, boardID, postID string) (*board.Post, error) {
	return s.gateway.GetPost(ctx, boardID, postID)
}

// ClassifyUnanswered lists recent posts of a board and keeps the
// unanswered customer questions.
func (s *Service) ClassifyUnanswered(ctx context.Context, boardID string) (*classify.Result, error) {
	filters, err := s.settings.Filters(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.gateway.ListPosts(ctx, boardID, 1, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing posts of board %s: %w", boardID, err)
	}
	res := classify.Classify(posts, filters)
	for _, w := range res.Warnings {
		s.logger.Warn("classification degraded", zap.String("board_id", boardID), zap.String("warning", w))
	}
	return &res, nil
}

// BoardStats counts answered and unanswered posts for today and this week.
func (s *Service) BoardStats(ctx context.Context, boardID string) (*classify.Stats, error) {
	filters, err := s.settings.Filters(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.gateway.ListPosts(ctx, boardID, 1, s.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing posts of board %s: %w", boardID, err)
	}
	st := classify.ComputeStats(posts, filters, s.now().In(s.opts.Location))
	for _, w := range st.Warnings {
		s.logger.Warn("stats degraded", zap.String("board_id", boardID), zap.String("warning", w))
	}
	return &st, nil
}

// Reply posts free text written by the operator.
func (s *Service) Reply(ctx context.Context, boardID, postID, content string) (*board.ReplyResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty reply: %w", apperr.ErrValidation)
	}
	res, err := s.gateway.CreateReply(ctx, boardID, postID, content)
	if err != nil {
		return nil, err
	}
	s.markMonitored(ctx, postID, boardID, ledger.MonitorAnswered)
	return res, nil
}

// Suggest generates a semi-auto answer for a post without posting it. An
// open semi-auto answer for the post is returned instead of a new one.
func (s *Service) Suggest(ctx context.Context, boardID, postID string) (*ledger.AnswerLog, error) {
	v, err, _ := s.flights.Do("suggest:"+postID, func() (any, error) {
		if l, err := s.logs.FindOpen(ctx, postID, settings.ModeSemiAuto); err == nil {
			return l, nil
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		post, err := s.gateway.GetPost(ctx, boardID, postID)
		if err != nil {
			return nil, err
		}
		return s.record(ctx, boardID, *post, settings.ModeSemiAuto)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ledger.AnswerLog), nil
}

// AutoReply generates an answer and posts it at once. An auto answer left
// pending by an earlier failed post is posted again instead of being
// regenerated.
func (s *Service) AutoReply(ctx context.Context, boardID, postID string) (*ledger.AnswerLog, error) {
	v, err, _ := s.flights.Do("auto:"+postID, func() (any, error) {
		l, err := s.logs.FindOpen(ctx, postID, settings.ModeAuto)
		if errors.Is(err, apperr.ErrNotFound) {
			post, gerr := s.gateway.GetPost(ctx, boardID, postID)
			if gerr != nil {
				return nil, gerr
			}
			l, err = s.record(ctx, boardID, *post, settings.ModeAuto)
		}
		if err != nil {
			return nil, err
		}

		unlock := s.locks.lock(l.ID)
		defer unlock()
		// An approval may have finished it while we waited.
		if l, err = s.logs.Get(ctx, l.ID); err != nil {
			return nil, err
		}
		if l.Status.Terminal() {
			return nil, fmt.Errorf("answer log %d is already %s: %w", l.ID, l.Status, apperr.ErrInvalidTransition)
		}
		return s.post(ctx, l, answerOf(l))
	})
	if err != nil {
		return nil, err
	}
	return v.(*ledger.AnswerLog), nil
}

// ApproveRequest approves a suggested answer. BoardID and PostID default
// to the log's own; Answer, when set, replaces the stored answer.
type ApproveRequest struct {
	LogID   int64
	BoardID string
	PostID  string
	Answer  string
}

// Approve posts an answer and finalizes its log. The posted text is the
// custom answer if given, else the staged answer, else the suggestion. A
// failed post leaves the log open so the operator can retry.
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (*ledger.AnswerLog, error) {
	unlock := s.locks.lock(req.LogID)
	defer unlock()

	l, err := s.logs.Get(ctx, req.LogID)
	if err != nil {
		return nil, err
	}
	if (req.PostID != "" && req.PostID != l.PostID) || (req.BoardID != "" && req.BoardID != l.BoardID) {
		return nil, fmt.Errorf("answer log %d belongs to post %s on board %s: %w",
			l.ID, l.PostID, l.BoardID, apperr.ErrValidation)
	}

	text := strings.TrimSpace(req.Answer)
	if text == "" {
		text = answerOf(l)
	}
	if l.Status.Terminal() {
		// Absorbs repeated approvals without posting twice.
		if l.Status == ledger.StatusPosted && l.FinalAnswer != nil && *l.FinalAnswer == text {
			return l, nil
		}
		return nil, fmt.Errorf("answer log %d is already %s: %w", l.ID, l.Status, apperr.ErrInvalidTransition)
	}
	return s.post(ctx, l, text)
}

// AnswerLog returns one answer log.
func (s *Service) AnswerLog(ctx context.Context, logID int64) (*ledger.AnswerLog, error) {
	return s.logs.Get(ctx, logID)
}

// Stage saves an edited answer without posting it.
func (s *Service) Stage(ctx context.Context, logID int64, text string) (*ledger.AnswerLog, error) {
	unlock := s.locks.lock(logID)
	defer unlock()
	return s.logs.Stage(ctx, logID, text)
}

// Reject discards a suggested answer.
func (s *Service) Reject(ctx context.Context, logID int64) (*ledger.AnswerLog, error) {
	unlock := s.locks.lock(logID)
	defer unlock()

	if _, err := s.logs.Get(ctx, logID); err != nil {
		return nil, err
	}
	return s.logs.Finalize(ctx, logID, nil, ledger.StatusRejected)
}

// Validate scores an answer to a question.
func (s *Service) Validate(ctx context.Context, question, text string) (*answer.Validation, error) {
	return s.generator.Validate(ctx, question, text)
}

// MarkAdminReplied records that the operator answered a post on the board itself.
func (s *Service) MarkAdminReplied(ctx context.Context, boardID, postID string) error {
	if postID == "" {
		return fmt.Errorf("admin reply without post id: %w", apperr.ErrValidation)
	}
	return s.monitor.SetStatus(ctx, postID, boardID, ledger.MonitorAnswered)
}

// record generates an answer for post and stores it as a pending log. A
// concurrent pending log for the same post and mode is returned instead.
func (s *Service) record(ctx context.Context, boardID string, post board.Post, mode settings.Mode) (*ledger.AnswerLog, error) {
	question := Question(post)
	res, err := s.generator.Generate(ctx, question, "")
	if err != nil {
		return nil, err
	}
	l, err := s.logs.Create(ctx, post.ID, boardID, question, res.Text, mode)
	if errors.Is(err, apperr.ErrDuplicateDelivery) {
		return s.logs.FindOpen(ctx, post.ID, mode)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("answer recorded",
		zap.Int64("log_id", l.ID),
		zap.String("post_id", post.ID),
		zap.String("mode", string(mode)),
		zap.String("source", string(res.Source)))
	return l, nil
}

// post sends text to the board and finalizes the log. Nothing is
// finalized when posting fails.
func (s *Service) post(ctx context.Context, l *ledger.AnswerLog, text string) (*ledger.AnswerLog, error) {
	if _, err := s.gateway.CreateReply(ctx, l.BoardID, l.PostID, text); err != nil {
		return nil, fmt.Errorf("posting answer %d: %w", l.ID, err)
	}
	done, err := s.logs.Finalize(ctx, l.ID, &text, ledger.StatusPosted)
	if err != nil {
		return nil, err
	}
	s.markMonitored(ctx, l.PostID, l.BoardID, ledger.MonitorAnswered)
	s.logger.Info("answer posted", zap.Int64("log_id", l.ID), zap.String("post_id", l.PostID))
	return done, nil
}

func (s *Service) markMonitored(ctx context.Context, postID, boardID string, status ledger.MonitorStatus) {
	if err := s.monitor.SetStatus(ctx, postID, boardID, status); err != nil {
		s.logger.Warn("updating monitored post", zap.String("post_id", postID), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, ev notifications.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Send(ctx, ev); err != nil {
		s.logger.Warn("sending notification", zap.String("post_id", ev.PostID), zap.Error(err))
	}
}

func answerOf(l *ledger.AnswerLog) string {
	if l.FinalAnswer != nil && *l.FinalAnswer != "" {
		return *l.FinalAnswer
	}
	return l.SuggestedAnswer
}

// logLocks hands out one mutex per answer log id and drops it once no
// caller holds or waits on it.
type logLocks struct {
	mu    sync.Mutex
	locks map[int64]*logLock
}

type logLock struct {
	sync.Mutex
	refs int
}

func (l *logLocks) lock(id int64) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*logLock)
	}
	ll := l.locks[id]
	if ll == nil {
		ll = &logLock{}
		l.locks[id] = ll
	}
	ll.refs++
	l.mu.Unlock()

	ll.Lock()
	return func() {
		ll.Unlock()
		l.mu.Lock()
		ll.refs--
		if ll.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
