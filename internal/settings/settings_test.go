package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/classify"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewStore(d)
}

func TestDefaultsWhenUnset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mode, err := s.AnswerMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeSemiAuto, mode)

	auto, err := s.AutoReplyEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, auto)

	mon, err := s.MonitoringEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, mon)

	_, err = s.Get(ctx, KeyAnswerMode)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetBatchAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetBatch(ctx, map[string]string{
		KeyCustomerTitle: " [문의] ",
		KeyAnswerTitle:   "[답변]",
		KeyAnswerMode:    "auto",
	}))
	require.NoError(t, s.Set(ctx, KeyAnswerMode, "manual"))

	f, err := s.Filters(ctx)
	require.NoError(t, err)
	assert.Equal(t, classify.Filters{CustomerTitlePrefix: "[문의]", AnswerTitlePrefix: "[답변]"}, f)

	mode, err := s.AnswerMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeManual, mode)
}

func TestSetBatchRejectsEmptyKey(t *testing.T) {
	s := newTestStore(t)
	err := s.SetBatch(context.Background(), map[string]string{"": "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResetKeepsUnrelatedKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetBatch(ctx, map[string]string{KeyAnswerMode: "auto", KeyCustomerTitle: "[Q]"}))
	require.NoError(t, s.Reset(ctx))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "semi-auto", all[KeyAnswerMode])
	assert.Equal(t, "[Q]", all[KeyCustomerTitle])
}

func TestGenerationOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetBatch(ctx, map[string]string{
		KeyTemperature:     "0.3",
		KeyMaxAnswerLength: "abc",
		KeyModel:           "gpt-4o-mini",
	}))
	g, err := s.GenerationOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, Generation{Model: "gpt-4o-mini", Temperature: 0.3}, g)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "x", "1"))
	require.NoError(t, s.Delete(ctx, "x"))
	assert.ErrorIs(t, s.Delete(ctx, "x"), apperr.ErrNotFound)
}

func TestRoutes(t *testing.T) {
	s := newTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, s)

	body, _ := json.Marshal(map[string]any{"auto_reply_enabled": true, "max_answer_length": 300, "answer_mode": "auto"})
	req := httptest.NewRequest(http.MethodPost, "/api/settings/batch", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/settings/auto_reply_enabled", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Setting
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "true", got.Value)

	req = httptest.NewRequest(http.MethodGet, "/api/settings/missing", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/settings", bytes.NewReader([]byte(`{"key":"cs_title_filter"}`)))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	enabled, err := s.AutoReplyEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)
}
