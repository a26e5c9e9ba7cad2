package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger/internal/access"
	"github.com/angelmondragon/stockledger/pkg/config"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/security"
)

func newAccessRouter(t *testing.T) http.Handler {
	t.Helper()
	hash, err := security.HashPassword("open-sesame", config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	require.NoError(t, err)
	gate, err := access.NewGate(access.GateParams{
		Store:        access.NewMemoryStore(),
		PasswordHash: hash,
		MaxAttempts:  2,
		Logger:       testLogger(),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Post("/access/attempts", AccessAttempt(gate, testLogger()))
	r.Get("/access/{userID}", AccessStatus(gate, testLogger()))
	r.Post("/access/{userID}/ban", AccessBan(gate, testLogger()))
	return r
}

func postAttempt(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, accessAttemptResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/access/attempts", strings.NewReader(body)))
	var out accessAttemptResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &out))
	}
	return rec, out
}

func accessStatus(t *testing.T, h http.Handler, userID string) accessStatusResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/"+userID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out accessStatusResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &out))
	return out
}

func TestAccessAttemptGrantsAndBans(t *testing.T) {
	h := newAccessRouter(t)

	_, granted := postAttempt(t, h, `{"user_id":"100","password":"open-sesame"}`)
	assert.Equal(t, string(access.OutcomeGranted), granted.Outcome)
	assert.True(t, accessStatus(t, h, "100").Authorized)

	_, denied := postAttempt(t, h, `{"user_id":"200","password":"guess"}`)
	assert.Equal(t, string(access.OutcomeDenied), denied.Outcome)
	assert.Equal(t, 1, denied.Remaining)

	_, banned := postAttempt(t, h, `{"user_id":"200","password":"guess again"}`)
	assert.Equal(t, string(access.OutcomeBanned), banned.Outcome)

	status := accessStatus(t, h, "200")
	assert.True(t, status.Banned)
	assert.False(t, status.Authorized)
}

func TestAccessAttemptValidatesBody(t *testing.T) {
	h := newAccessRouter(t)

	rec, _ := postAttempt(t, h, `{"user_id":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decode(t, rec).Error.Code)
}

func TestAccessBan(t *testing.T) {
	h := newAccessRouter(t)
	postAttempt(t, h, `{"user_id":"300","password":"open-sesame"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/access/300/ban", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	status := accessStatus(t, h, "300")
	assert.True(t, status.Banned)
	assert.False(t, status.Authorized)
}
