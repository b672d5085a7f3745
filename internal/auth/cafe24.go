// Package auth obtains and refreshes the Cafe24 Admin API credential.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
)

// Scope grants read and write access to the mall's boards.
const Scope = "mall.read_community,mall.write_community"

// kst is the zone of Cafe24's expires_at timestamps.
var kst = time.FixedZone("KST", 9*60*60)

// Cafe24OAuth runs the authorization code flow against a mall.
type Cafe24OAuth struct {
	clientID     string
	clientSecret string
	redirectURL  string
	store        *TokenStore
	logger       *zap.Logger

	// baseURL returns the API origin of a mall.
	baseURL func(mallID string) string
}

// NewCafe24OAuth creates a Cafe24OAuth persisting tokens in store.
func NewCafe24OAuth(clientID, clientSecret, redirectURL string, store *TokenStore, logger *zap.Logger) *Cafe24OAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cafe24OAuth{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		store:        store,
		logger:       logger.Named("auth"),
		baseURL: func(mallID string) string {
			return fmt.Sprintf("https://%s.cafe24api.com", mallID)
		},
	}
}

// Config returns the oauth2 configuration for mallID.
func (o *Cafe24OAuth) Config(mallID string) *oauth2.Config {
	base := o.baseURL(mallID)
	return &oauth2.Config{
		ClientID:     o.clientID,
		ClientSecret: o.clientSecret,
		RedirectURL:  o.redirectURL,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/api/v2/oauth/authorize",
			TokenURL:  base + "/api/v2/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthCodeURL returns the consent page URL. The state carries the mall id
// back to the callback.
func (o *Cafe24OAuth) AuthCodeURL(mallID string) string {
	return o.Config(mallID).AuthCodeURL(mallID)
}

// Exchange trades an authorization code for a token and stores it.
func (o *Cafe24OAuth) Exchange(ctx context.Context, mallID, code string) (*oauth2.Token, error) {
	if mallID == "" || code == "" {
		return nil, fmt.Errorf("mall id and code are required: %w", apperr.ErrValidation)
	}
	tok, err := o.Config(mallID).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %v: %w", err, apperr.ErrAuthExpired)
	}
	tok = withCafe24Expiry(tok)
	if err := o.store.Save(ctx, mallID, tok); err != nil {
		return nil, err
	}
	o.logger.Info("mall authorized", zap.String("mall_id", mallID), zap.Time("expires_at", tok.Expiry))
	return tok, nil
}

// Status returns the stored installation for mallID.
func (o *Cafe24OAuth) Status(ctx context.Context, mallID string) (*Installation, error) {
	return o.store.Load(ctx, mallID)
}

// Uninstall forgets the credential of mallID.
func (o *Cafe24OAuth) Uninstall(ctx context.Context, mallID string) error {
	return o.store.Delete(ctx, mallID)
}

// TokenSource returns a source that serves the stored token for mallID,
// refreshes it when it expires and stores the rotated token. Without a
// stored token it fails with apperr.ErrAuthExpired.
func (o *Cafe24OAuth) TokenSource(ctx context.Context, mallID string) oauth2.TokenSource {
	return &storedTokenSource{ctx: ctx, mallID: mallID, oauth: o}
}

type storedTokenSource struct {
	ctx    context.Context
	mallID string
	oauth  *Cafe24OAuth

	mu  sync.Mutex
	tok *oauth2.Token
}

func (s *storedTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reload when the cached token is unusable: a reinstall may have
	// stored a new one.
	if s.tok == nil || !s.tok.Valid() {
		inst, err := s.oauth.store.Load(s.ctx, s.mallID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("mall %s is not installed: %w", s.mallID, apperr.ErrAuthExpired)
		}
		if err != nil {
			return nil, err
		}
		s.tok = inst.Token()
	}
	if s.tok.Valid() {
		return s.tok, nil
	}
	if s.tok.RefreshToken == "" {
		return nil, fmt.Errorf("token for %s expired without a refresh token: %w", s.mallID, apperr.ErrAuthExpired)
	}

	fresh, err := s.oauth.Config(s.mallID).TokenSource(s.ctx, s.tok).Token()
	if err != nil {
		return nil, err
	}
	fresh = withCafe24Expiry(fresh)
	if err := s.oauth.store.Save(s.ctx, s.mallID, fresh); err != nil {
		s.oauth.logger.Warn("storing refreshed token", zap.String("mall_id", s.mallID), zap.Error(err))
	}
	s.oauth.logger.Info("token refreshed", zap.String("mall_id", s.mallID))
	s.tok = fresh
	return fresh, nil
}

// withCafe24Expiry fills Expiry from Cafe24's expires_at field when the
// response had no expires_in.
func withCafe24Expiry(tok *oauth2.Token) *oauth2.Token {
	if tok == nil || !tok.Expiry.IsZero() {
		return tok
	}
	raw, _ := tok.Extra("expires_at").(string)
	if raw == "" {
		return tok
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, kst); err == nil {
			tok.Expiry = t
			break
		}
	}
	return tok
}
