// Package classify decides which board posts are open customer questions
// and computes the dashboard answer counts.
package classify

import (
	"strings"
	"time"

	"github.com/chosahoo/cafe24-cs-bot/internal/board"
)

// Filters are the operator's title conventions.
type Filters struct {
	// CustomerTitlePrefix marks customer questions. Without it the result is unreliable.
	CustomerTitlePrefix string `json:"customer_title_prefix"`
	// AnswerTitlePrefix marks threads the shop itself opened to answer.
	AnswerTitlePrefix string `json:"answer_title_prefix"`
}

// Warning texts returned when filtering runs degraded.
const (
	WarnNoCustomerPrefix = "customer title prefix is not set; every original post is treated as a customer question"
	WarnNoAnswerPrefix   = "answer title prefix is not set; answer threads posted as top-level articles are not excluded"
)

// Result is the classified set plus any degraded-mode warnings.
type Result struct {
	Posts    []board.Post `json:"posts"`
	Degraded bool         `json:"degraded"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Classify returns the unanswered posts, preserving input order. Stages
// run in a fixed order because each assumes the previous exclusions.
func Classify(posts []board.Post, f Filters) Result {
	res := Result{Posts: []board.Post{}}
	if f.CustomerTitlePrefix == "" {
		res.Degraded = true
		res.Warnings = append(res.Warnings, WarnNoCustomerPrefix)
	}
	if f.AnswerTitlePrefix == "" {
		res.Warnings = append(res.Warnings, WarnNoAnswerPrefix)
	}

	for _, p := range posts {
		if p.IsNotice {
			continue
		}
		if !f.titleMatches(p.Title) {
			continue
		}
		if !p.IsOriginal() {
			continue
		}
		if p.ReplyStatus == board.ReplyCompleted {
			continue
		}
		res.Posts = append(res.Posts, p)
	}
	return res
}

// ClassifyUnanswered is Classify without the warnings.
func ClassifyUnanswered(posts []board.Post, f Filters) []board.Post {
	return Classify(posts, f).Posts
}

// titleMatches applies the answer-prefix exclusion then the customer-prefix inclusion.
func (f Filters) titleMatches(title string) bool {
	if f.AnswerTitlePrefix != "" && strings.HasPrefix(title, f.AnswerTitlePrefix) {
		return false
	}
	if f.CustomerTitlePrefix != "" && !strings.HasPrefix(title, f.CustomerTitlePrefix) {
		return false
	}
	return true
}

// Stats are the dashboard counts for a board.
type Stats struct {
	TodayAnswered   int      `json:"today_answered"`
	TodayUnanswered int      `json:"today_unanswered"`
	WeekAnswered    int      `json:"week_answered"`
	WeekUnanswered  int      `json:"week_unanswered"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ComputeStats counts posts created today and this week (weeks start on
// Monday) in ref's location. Only the title filters apply, and a post
// counts as answered when it has at least one reply.
func ComputeStats(posts []board.Post, f Filters, ref time.Time) Stats {
	var s Stats
	if f.CustomerTitlePrefix == "" {
		s.Warnings = append(s.Warnings, WarnNoCustomerPrefix)
	}

	dayStart := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	offset := (int(dayStart.Weekday()) + 6) % 7
	weekStart := dayStart.AddDate(0, 0, -offset)
	weekEnd := weekStart.AddDate(0, 0, 7)

	for _, p := range posts {
		if !f.titleMatches(p.Title) {
			continue
		}
		answered := p.ReplyCount > 0
		created := p.CreatedAt.In(ref.Location())

		if inWindow(created, weekStart, weekEnd) {
			if answered {
				s.WeekAnswered++
			} else {
				s.WeekUnanswered++
			}
		}
		if inWindow(created, dayStart, dayEnd) {
			if answered {
				s.TodayAnswered++
			} else {
				s.TodayUnanswered++
			}
		}
	}
	return s
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
