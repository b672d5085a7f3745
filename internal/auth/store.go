package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
)

// Installation is the stored credential of one mall.
type Installation struct {
	MallID       string     `json:"mall_id"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenType    string     `json:"token_type"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Token converts the installation to an oauth2 token.
func (i *Installation) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  i.AccessToken,
		RefreshToken: i.RefreshToken,
		TokenType:    i.TokenType,
	}
	if i.ExpiresAt != nil {
		t.Expiry = *i.ExpiresAt
	}
	return t
}

// TokenStore persists mall credentials in install_settings.
type TokenStore struct {
	db  *db.DB
	now func() time.Time
}

// NewTokenStore creates a TokenStore backed by the given database.
func NewTokenStore(database *db.DB) *TokenStore {
	return &TokenStore{db: database, now: time.Now}
}

// Save upserts the token for mallID. An empty refresh token keeps the
// stored one.
func (s *TokenStore) Save(ctx context.Context, mallID string, tok *oauth2.Token) error {
	if mallID == "" || tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("saving token: mall id and access token are required: %w", apperr.ErrValidation)
	}
	var expires sql.NullTime
	if !tok.Expiry.IsZero() {
		expires = sql.NullTime{Time: tok.Expiry.UTC(), Valid: true}
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO install_settings (mall_id, access_token, refresh_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(mall_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN install_settings.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		mallID, tok.AccessToken, tok.RefreshToken, tokenType, expires, s.now().UTC())
	if err != nil {
		return fmt.Errorf("saving token for %s: %w", mallID, err)
	}
	return nil
}

// Load returns the installation for mallID or apperr.ErrNotFound.
func (s *TokenStore) Load(ctx context.Context, mallID string) (*Installation, error) {
	var (
		inst    Installation
		expires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT mall_id, access_token, refresh_token, token_type, expires_at, updated_at
		FROM install_settings WHERE mall_id = ?`, mallID).
		Scan(&inst.MallID, &inst.AccessToken, &inst.RefreshToken, &inst.TokenType, &expires, &inst.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("installation %s: %w", mallID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading installation %s: %w", mallID, err)
	}
	if expires.Valid {
		t := expires.Time
		inst.ExpiresAt = &t
	}
	return &inst, nil
}

// Delete removes the installation for mallID.
func (s *TokenStore) Delete(ctx context.Context, mallID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM install_settings WHERE mall_id = ?", mallID)
	if err != nil {
		return fmt.Errorf("deleting installation %s: %w", mallID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("installation %s: %w", mallID, apperr.ErrNotFound)
	}
	return nil
}
