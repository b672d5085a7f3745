package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/classify"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
)

// Store persists settings in SQLite.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Lookup returns the value for key and whether it is set.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return v, true, nil
}

// Get returns the value for key or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.Lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("setting %s: %w", key, apperr.ErrNotFound)
	}
	return v, nil
}

// GetAll returns every stored setting.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set stores one value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.SetBatch(ctx, map[string]string{key: value})
}

// SetBatch stores all values in one transaction.
func (s *Store) SetBatch(ctx context.Context, values map[string]string) error {
	for k := range values {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("empty setting key: %w", apperr.ErrValidation)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for k, v := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now)
		if err != nil {
			return fmt.Errorf("saving setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Delete removes a setting.
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("setting %s: %w", key, apperr.ErrNotFound)
	}
	return nil
}

// Reset restores Defaults. Other keys are left alone.
func (s *Store) Reset(ctx context.Context) error {
	return s.SetBatch(ctx, Defaults)
}

func (s *Store) valueOr(ctx context.Context, key string) (string, error) {
	v, ok, err := s.Lookup(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return Defaults[key], nil
	}
	return v, nil
}

func (s *Store) boolValue(ctx context.Context, key string) (bool, error) {
	v, err := s.valueOr(ctx, key)
	if err != nil {
		return false, err
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b, nil
}

// AnswerMode returns the configured mode. Unknown values come back as-is
// so callers can treat them like manual.
func (s *Store) AnswerMode(ctx context.Context) (Mode, error) {
	v, err := s.valueOr(ctx, KeyAnswerMode)
	return Mode(strings.TrimSpace(v)), err
}

func (s *Store) AutoReplyEnabled(ctx context.Context) (bool, error) {
	return s.boolValue(ctx, KeyAutoReplyEnabled)
}

func (s *Store) MonitoringEnabled(ctx context.Context) (bool, error) {
	return s.boolValue(ctx, KeyMonitoringEnabled)
}

func (s *Store) NotificationEnabled(ctx context.Context) (bool, error) {
	return s.boolValue(ctx, KeyNotificationEnabled)
}

// Filters returns the title conventions used for classification.
func (s *Store) Filters(ctx context.Context) (classify.Filters, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return classify.Filters{}, err
	}
	return classify.Filters{
		CustomerTitlePrefix: strings.TrimSpace(all[KeyCustomerTitle]),
		AnswerTitlePrefix:   strings.TrimSpace(all[KeyAnswerTitle]),
	}, nil
}

// Generation holds model overrides. Zero fields mean "use the static config".
type Generation struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// GenerationOverrides reads ai_model, ai_temperature and max_answer_length.
func (s *Store) GenerationOverrides(ctx context.Context) (Generation, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return Generation{}, err
	}
	var g Generation
	g.Model = strings.TrimSpace(all[KeyModel])
	if t, err := strconv.ParseFloat(strings.TrimSpace(all[KeyTemperature]), 64); err == nil && t >= 0 && t <= 2 {
		g.Temperature = t
	}
	if n, err := strconv.Atoi(strings.TrimSpace(all[KeyMaxAnswerLength])); err == nil && n > 0 {
		g.MaxTokens = n
	}
	return g, nil
}
