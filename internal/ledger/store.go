package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
)

// Store persists answer logs.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

const logColumns = "id, post_id, board_id, question, suggested_answer, final_answer, answer_mode, status, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanLog(sc scanner) (*AnswerLog, error) {
	var (
		l     AnswerLog
		final sql.NullString
	)
	if err := sc.Scan(&l.ID, &l.PostID, &l.BoardID, &l.Question, &l.SuggestedAnswer,
		&final, &l.Mode, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if final.Valid {
		s := final.String
		l.FinalAnswer = &s
	}
	return &l, nil
}

// Create inserts a pending log. A second pending log for the same post and
// mode fails with apperr.ErrDuplicateDelivery.
func (s *Store) Create(ctx context.Context, postID, boardID, question, suggested string, mode settings.Mode) (*AnswerLog, error) {
	if postID == "" {
		return nil, fmt.Errorf("answer log without post id: %w", apperr.ErrValidation)
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO answer_logs (post_id, board_id, question, suggested_answer, answer_mode, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		postID, boardID, question, suggested, string(mode), string(StatusPending), now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("pending %s answer for post %s: %w", mode, postID, apperr.ErrDuplicateDelivery)
		}
		return nil, fmt.Errorf("inserting answer log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading answer log id: %w", err)
	}
	return &AnswerLog{
		ID:              id,
		PostID:          postID,
		BoardID:         boardID,
		Question:        question,
		SuggestedAnswer: suggested,
		Mode:            mode,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Get returns a log or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*AnswerLog, error) {
	return getLog(ctx, s.db, id)
}

func getLog(ctx context.Context, q querier, id int64) (*AnswerLog, error) {
	l, err := scanLog(q.QueryRowContext(ctx, "SELECT "+logColumns+" FROM answer_logs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("answer log %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading answer log %d: %w", id, err)
	}
	return l, nil
}

// FindOpen returns the newest pending or approved log for the post and
// mode, or apperr.ErrNotFound.
func (s *Store) FindOpen(ctx context.Context, postID string, mode settings.Mode) (*AnswerLog, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+logColumns+` FROM answer_logs
		 WHERE post_id = ? AND answer_mode = ? AND status IN ('pending', 'approved')
		 ORDER BY id DESC LIMIT 1`, postID, string(mode))
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open %s answer for post %s: %w", mode, postID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding open answer log: %w", err)
	}
	return l, nil
}

// Stage stores an operator-edited answer without posting it, moving the
// log from pending to approved. An approved log may be staged again.
func (s *Store) Stage(ctx context.Context, id int64, answer string) (*AnswerLog, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("empty answer: %w", apperr.ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getLog(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l.Status.Terminal() {
		return nil, fmt.Errorf("staging %s answer log %d: %w", l.Status, id, apperr.ErrInvalidTransition)
	}
	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE answer_logs SET final_answer = ?, status = ?, updated_at = ? WHERE id = ?",
		answer, string(StatusApproved), now, id); err != nil {
		return nil, fmt.Errorf("staging answer log %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing answer log %d: %w", id, err)
	}
	l.FinalAnswer = &answer
	l.Status = StatusApproved
	l.UpdatedAt = now
	return l, nil
}

// Finalize moves a pending or approved log to posted or rejected.
// Finalizing a terminal log again with the same status and answer returns
// it unchanged; any other change to a terminal log is
// apperr.ErrInvalidTransition.
func (s *Store) Finalize(ctx context.Context, id int64, finalAnswer *string, status Status) (*AnswerLog, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("finalizing answer log %d to %q: %w", id, status, apperr.ErrInvalidTransition)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getLog(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l.Status.Terminal() {
		if l.Status == status && sameAnswer(l.FinalAnswer, finalAnswer) {
			return l, nil
		}
		return nil, fmt.Errorf("answer log %d is already %s: %w", id, l.Status, apperr.ErrInvalidTransition)
	}

	now := s.now().UTC()
	var final sql.NullString
	if finalAnswer != nil {
		final = sql.NullString{String: *finalAnswer, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE answer_logs SET final_answer = ?, status = ?, updated_at = ? WHERE id = ?",
		final, string(status), now, id); err != nil {
		return nil, fmt.Errorf("finalizing answer log %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing answer log %d: %w", id, err)
	}
	l.FinalAnswer = finalAnswer
	l.Status = status
	l.UpdatedAt = now
	return l, nil
}

func sameAnswer(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// List returns logs newest first. An empty status lists every log.
func (s *Store) List(ctx context.Context, page, pageSize int, status Status) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, apperr.ErrValidation)
	}

	where, args := "", []any{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, string(status))
	}

	out := &Page{Page: page, PageSize: pageSize, Logs: []AnswerLog{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM answer_logs"+where, args...).Scan(&out.Total); err != nil {
		return nil, fmt.Errorf("counting answer logs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+logColumns+" FROM answer_logs"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, fmt.Errorf("querying answer logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning answer log: %w", err)
		}
		out.Logs = append(out.Logs, *l)
	}
	return out, rows.Err()
}

// Stats counts logs by mode and status and buckets the last seven UTC days.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByMode: map[string]int{}, ByStatus: map[string]int{}}

	rows, err := s.db.QueryContext(ctx,
		"SELECT answer_mode, status, COUNT(*) FROM answer_logs GROUP BY answer_mode, status")
	if err != nil {
		return nil, fmt.Errorf("counting answer logs: %w", err)
	}
	for rows.Next() {
		var mode, status string
		var n int
		if err := rows.Scan(&mode, &status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning answer counts: %w", err)
		}
		st.Total += n
		st.ByMode[mode] += n
		st.ByStatus[status] += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -6)
	buckets := make(map[string]int, 7)
	rows, err = s.db.QueryContext(ctx, "SELECT created_at FROM answer_logs WHERE created_at >= ?", since)
	if err != nil {
		return nil, fmt.Errorf("querying recent answer logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning answer log time: %w", err)
		}
		buckets[t.UTC().Format(time.DateOnly)]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		st.LastWeek = append(st.LastWeek, DayCount{Date: key, Count: buckets[key]})
	}
	return st, nil
}
