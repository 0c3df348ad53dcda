package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHashAndVerifyPIN(t *testing.T) {
	hash, err := HashPIN("2468")
	require.NoError(t, err)
	assert.True(t, IsHashed(hash))

	ok, err := VerifyPIN("2468", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPIN("1357", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPIN("2468")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")

	_, err = VerifyPIN("2468", "plain")
	assert.Error(t, err)
	_, err = VerifyPIN("2468", "argon2id$nodollar")
	assert.Error(t, err)
	_, err = VerifyPIN("2468", "argon2id$!!$!!")
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	guestHash, err := HashPIN("1111")
	require.NoError(t, err)
	a, err := New("9999", guestHash, 5, discardLogger())
	require.NoError(t, err)
	require.True(t, a.Enabled())

	role, err := a.Authenticate("10.0.0.1", RoleAdmin, "9999")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = a.Authenticate("10.0.0.1", RoleGuest, "1111")
	require.NoError(t, err)
	assert.Equal(t, RoleGuest, role)

	_, err = a.Authenticate("10.0.0.1", RoleAdmin, "1111")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = a.Authenticate("10.0.0.1", "janitor", "9999")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFailedAttemptsAreThrottledPerClient(t *testing.T) {
	a, err := New("9999", "", 2, discardLogger())
	require.NoError(t, err)

	for range 2 {
		_, err := a.Authenticate("10.0.0.66", RoleAdmin, "0000")
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	_, err = a.Authenticate("10.0.0.66", RoleAdmin, "9999")
	assert.ErrorIs(t, err, ErrRateLimited)

	role, err := a.Authenticate("10.0.0.1", RoleAdmin, "9999")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
}

func TestMissingCredentialsDoNotDrainTheBucket(t *testing.T) {
	a, err := New("1234", "", 5, discardLogger())
	require.NoError(t, err)

	for range 20 {
		_, err := a.Authenticate("10.0.0.1", "", "")
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = a.Authenticate("10.0.0.1", "", "0000")
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	role, err := a.Authenticate("10.0.0.1", RoleAdmin, "1234")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
}

func TestVerifiedPINSkipsTheKDF(t *testing.T) {
	a, err := New("9999", "1111", 5, discardLogger())
	require.NoError(t, err)
	calls := 0
	a.verify = func(pin, encoded string) (bool, error) {
		calls++
		return VerifyPIN(pin, encoded)
	}

	for range 3 {
		role, err := a.Authenticate("10.0.0.1", RoleAdmin, "9999")
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, role)
	}
	assert.Equal(t, 1, calls)

	_, err = a.Authenticate("10.0.0.1", RoleAdmin, "9998")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = a.Authenticate("10.0.0.1", RoleGuest, "9999")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 3, calls)
}

func TestDisabledAuthenticatorGrantsAdmin(t *testing.T) {
	a, err := New("", "", 5, discardLogger())
	require.NoError(t, err)
	assert.False(t, a.Enabled())

	role, err := a.Authenticate("10.0.0.1", "", "")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
}

func TestNewRejectsNonPositiveRate(t *testing.T) {
	_, err := New("9999", "", 0, discardLogger())
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a, err := New("9999", "1111", 50, discardLogger())
	require.NoError(t, err)

	var seen Role
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RoleFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		method string
		role   Role
		pin    string
		want   int
		code   string
	}{
		{"guest read", http.MethodGet, RoleGuest, "1111", http.StatusNoContent, ""},
		{"guest write", http.MethodPost, RoleGuest, "1111", http.StatusForbidden, "forbidden"},
		{"admin write", http.MethodDelete, RoleAdmin, "9999", http.StatusNoContent, ""},
		{"missing headers", http.MethodGet, "", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong pin", http.MethodGet, RoleAdmin, "1111", http.StatusUnauthorized, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(tt.method, "/books", nil)
			if tt.role != "" {
				req.Header.Set(HeaderRole, string(tt.role))
				req.Header.Set(HeaderPIN, tt.pin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.code == "" {
				assert.Equal(t, tt.role, seen)
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body["code"])
			assert.Empty(t, seen)
		})
	}
}
