package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
)

// MonitorStore tracks which board posts have been taken in.
type MonitorStore struct {
	db  *db.DB
	now func() time.Time
}

// NewMonitorStore creates a MonitorStore backed by the given database.
func NewMonitorStore(database *db.DB) *MonitorStore {
	return &MonitorStore{db: database, now: time.Now}
}

const monitorColumns = "id, post_id, board_id, title, content, status, created_at, updated_at"

func scanMonitored(sc scanner) (*MonitoredPost, error) {
	var p MonitoredPost
	if err := sc.Scan(&p.ID, &p.PostID, &p.BoardID, &p.Title, &p.Content, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Track records a post with status new. A post that is already tracked
// fails with apperr.ErrDuplicateDelivery and is left unchanged.
func (s *MonitorStore) Track(ctx context.Context, p MonitoredPost) (*MonitoredPost, error) {
	if p.PostID == "" {
		return nil, fmt.Errorf("monitored post without id: %w", apperr.ErrValidation)
	}
	now := s.now().UTC()
	p.Status = MonitorNew
	p.CreatedAt, p.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO monitored_posts (post_id, board_id, title, content, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PostID, p.BoardID, p.Title, p.Content, string(p.Status), now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("post %s: %w", p.PostID, apperr.ErrDuplicateDelivery)
		}
		return nil, fmt.Errorf("tracking post %s: %w", p.PostID, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading monitored post id: %w", err)
	}
	return &p, nil
}

// SetStatus updates a tracked post, inserting it when it is not tracked yet.
func (s *MonitorStore) SetStatus(ctx context.Context, postID, boardID string, status MonitorStatus) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitored_posts (post_id, board_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(post_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		postID, boardID, string(status), now, now)
	if err != nil {
		return fmt.Errorf("setting post %s to %s: %w", postID, status, err)
	}
	return nil
}

// Get returns a tracked post or apperr.ErrNotFound.
func (s *MonitorStore) Get(ctx context.Context, postID string) (*MonitoredPost, error) {
	p, err := scanMonitored(s.db.QueryRowContext(ctx,
		"SELECT "+monitorColumns+" FROM monitored_posts WHERE post_id = ?", postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("monitored post %s: %w", postID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading monitored post %s: %w", postID, err)
	}
	return p, nil
}

// List returns tracked posts newest first, optionally for one board and status.
func (s *MonitorStore) List(ctx context.Context, boardID string, status MonitorStatus, limit int) ([]MonitoredPost, error) {
	if limit < 1 {
		limit = 50
	}
	query := "SELECT " + monitorColumns + " FROM monitored_posts WHERE 1=1"
	var args []any
	if boardID != "" {
		query += " AND board_id = ?"
		args = append(args, boardID)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying monitored posts: %w", err)
	}
	defer rows.Close()

	out := []MonitoredPost{}
	for rows.Next() {
		p, err := scanMonitored(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning monitored post: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
