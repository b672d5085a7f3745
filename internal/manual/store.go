package manual

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
)

// Store provides CRUD operations for manuals.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

const entryColumns = "id, title, content, type, size_data, file_name, created_at, updated_at"

// List returns all manuals in insertion order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM manuals ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying manuals: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Get returns one manual or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM manuals WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manual %d: %w", id, apperr.ErrNotFound)
	}
	return e, err
}

// Create inserts e and returns it with its id and timestamps set.
func (s *Store) Create(ctx context.Context, e Entry) (*Entry, error) {
	if e.Type == "" {
		e.Type = TypeText
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO manuals (title, content, type, size_data, file_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Content, string(e.Type), e.SizeData, e.FileName, now, now)
	if err != nil {
		return nil, fmt.Errorf("inserting manual: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading manual id: %w", err)
	}
	e.ID = id
	e.CreatedAt, e.UpdatedAt = now, now
	return &e, nil
}

// Update replaces the title and content (and size data for size charts).
func (s *Store) Update(ctx context.Context, id int64, title, content, sizeData string) (*Entry, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("title and content are required: %w", apperr.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE manuals SET title = ?, content = ?,
			size_data = CASE WHEN ? != '' THEN ? ELSE size_data END,
			updated_at = ?
		WHERE id = ?`,
		title, content, sizeData, sizeData, s.now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("updating manual %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("manual %d: %w", id, apperr.ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Delete removes a manual.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM manuals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting manual %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("manual %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Index builds a fresh lookup index from the stored manuals.
func (s *Store) Index(ctx context.Context) (*Index, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildIndex(entries), nil
}

func validate(e Entry) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required: %w", apperr.ErrValidation)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unknown manual type %q: %w", e.Type, apperr.ErrValidation)
	}
	if e.Type == TypeSizeChart {
		if strings.TrimSpace(e.SizeData) == "" {
			return fmt.Errorf("size chart needs size_data: %w", apperr.ErrValidation)
		}
		return nil
	}
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("content is required: %w", apperr.ErrValidation)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var e Entry
	var typ string
	if err := sc.Scan(&e.ID, &e.Title, &e.Content, &typ, &e.SizeData, &e.FileName, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Type = Type(typ)
	return &e, nil
}
