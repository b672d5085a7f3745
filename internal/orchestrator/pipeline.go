package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/board"
	"github.com/chosahoo/cafe24-cs-bot/internal/classify"
	"github.com/chosahoo/cafe24-cs-bot/internal/ledger"
	"github.com/chosahoo/cafe24-cs-bot/internal/notifications"
	"github.com/chosahoo/cafe24-cs-bot/internal/progress"
	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
)

// Outcome is what HandleNewPost did with a post.
type Outcome string

const (
	// OutcomeDuplicate means the post was already taken in.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeTracked means the post was recorded for manual handling.
	OutcomeTracked Outcome = "tracked"
	// OutcomeSuggested means an answer awaits approval.
	OutcomeSuggested Outcome = "suggested"
	// OutcomePosted means an answer was posted automatically.
	OutcomePosted Outcome = "posted"
	// OutcomeFailed means generation or posting failed.
	OutcomeFailed Outcome = "failed"
)

// HandleNewPost takes a new board post in exactly once and acts on it
// according to the answer mode.
func (s *Service) HandleNewPost(ctx context.Context, boardID string, post board.Post) error {
	_, err := s.handleNewPost(ctx, boardID, post)
	return err
}

func (s *Service) handleNewPost(ctx context.Context, boardID string, post board.Post) (Outcome, error) {
	log := s.logger.With(zap.String("board_id", boardID), zap.String("post_id", post.ID))

	_, err := s.monitor.Track(ctx, ledger.MonitoredPost{
		PostID:  post.ID,
		BoardID: boardID,
		Title:   post.Title,
		Content: post.Content,
	})
	if errors.Is(err, apperr.ErrDuplicateDelivery) {
		log.Debug("post already taken in")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	mode, err := s.settings.AnswerMode(ctx)
	if err != nil {
		return s.fail(ctx, boardID, post.ID, err)
	}
	autoEnabled, err := s.settings.AutoReplyEnabled(ctx)
	if err != nil {
		return s.fail(ctx, boardID, post.ID, err)
	}

	switch {
	case mode == settings.ModeAuto && autoEnabled:
		l, err := s.record(ctx, boardID, post, settings.ModeAuto)
		if err != nil {
			return s.fail(ctx, boardID, post.ID, err)
		}
		if _, err := s.post(ctx, l, answerOf(l)); err != nil {
			s.notify(ctx, notifications.Event{
				Type:            notifications.TypeReplyFailed,
				PostID:          post.ID,
				BoardID:         boardID,
				Title:           post.Title,
				SuggestedAnswer: l.SuggestedAnswer,
				LogID:           l.ID,
			})
			return s.fail(ctx, boardID, post.ID, err)
		}
		log.Info("auto reply posted", zap.Int64("log_id", l.ID))
		return OutcomePosted, nil

	case mode == settings.ModeSemiAuto:
		l, err := s.record(ctx, boardID, post, settings.ModeSemiAuto)
		if err != nil {
			return s.fail(ctx, boardID, post.ID, err)
		}
		s.markMonitored(ctx, post.ID, boardID, ledger.MonitorProcessing)
		s.notify(ctx, notifications.Event{
			Type:            notifications.TypeSuggestionReady,
			PostID:          post.ID,
			BoardID:         boardID,
			Title:           post.Title,
			SuggestedAnswer: l.SuggestedAnswer,
			LogID:           l.ID,
		})
		return OutcomeSuggested, nil

	default:
		log.Debug("post left for manual handling", zap.String("mode", string(mode)), zap.Bool("auto_reply_enabled", autoEnabled))
		return OutcomeTracked, nil
	}
}

// fail marks the post as errored and returns err.
func (s *Service) fail(ctx context.Context, boardID, postID string, err error) (Outcome, error) {
	s.markMonitored(ctx, postID, boardID, ledger.MonitorError)
	s.logger.Error("handling new post",
		zap.String("board_id", boardID),
		zap.String("post_id", postID),
		zap.Bool("retryable", apperr.Retryable(err)),
		zap.Error(err))
	return OutcomeFailed, err
}

// OnWebhookNewPost handles a post announced by a webhook. Posts that are
// not unanswered customer questions, such as the operator's own answer
// threads, are ignored.
func (s *Service) OnWebhookNewPost(ctx context.Context, boardID string, post board.Post) error {
	filters, err := s.settings.Filters(ctx)
	if err != nil {
		return err
	}
	if len(classify.ClassifyUnanswered([]board.Post{post}, filters)) == 0 {
		s.logger.Debug("webhook post filtered out", zap.String("post_id", post.ID), zap.String("title", post.Title))
		return nil
	}
	return s.HandleNewPost(ctx, boardID, post)
}

// SweepReport summarizes one sweep of a board.
type SweepReport struct {
	BoardID    string   `json:"board_id"`
	Unanswered int      `json:"unanswered"`
	Tracked    int      `json:"tracked"`
	Suggested  int      `json:"suggested"`
	Posted     int      `json:"posted"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Sweep classifies a board and feeds every unanswered post through
// HandleNewPost. A failing post is counted and the sweep goes on. rep may
// be nil.
func (s *Service) Sweep(ctx context.Context, boardID string, rep progress.Reporter) (*SweepReport, error) {
	if rep == nil {
		rep = progress.Nop{}
	}
	res, err := s.ClassifyUnanswered(ctx, boardID)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{BoardID: boardID, Unanswered: len(res.Posts), Warnings: res.Warnings}
	rep.Start(len(res.Posts))
	defer rep.Finish()

	for i, p := range res.Posts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, _ := s.handleNewPost(ctx, boardID, p)
		switch outcome {
		case OutcomeDuplicate:
			report.Duplicates++
		case OutcomeTracked:
			report.Tracked++
		case OutcomeSuggested:
			report.Suggested++
		case OutcomePosted:
			report.Posted++
		default:
			report.Failed++
		}
		rep.Update(i+1, fmt.Sprintf("post %s: %s", p.ID, outcome))
	}

	s.logger.Info("board swept",
		zap.String("board_id", boardID),
		zap.Int("unanswered", report.Unanswered),
		zap.Int("suggested", report.Suggested),
		zap.Int("posted", report.Posted),
		zap.Int("failed", report.Failed))
	return report, nil
}
