package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccenter/internal/auth"
	"doccenter/internal/library"
)

func TestRemoteClientSendsCredentialsAndJSON(t *testing.T) {
	var gotRole, gotPIN, gotType string
	var got library.Commit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, gotPIN = r.Header.Get(auth.HeaderRole), r.Header.Get(auth.HeaderPIN)
		gotType = r.Header.Get("Content-Type")
		assert.Equal(t, "/api/commits", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL+"/api", WithCredentials(auth.RoleAdmin, "9999"))
	commit := library.Commit{Version: 3, Operation: "add_book", At: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, c.PushCommit(context.Background(), commit))

	assert.Equal(t, "admin", gotRole)
	assert.Equal(t, "9999", gotPIN)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, uint64(3), got.Version)
	assert.Equal(t, "add_book", got.Operation)
}

func TestRemoteClientDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(library.Snapshot{Books: []library.Book{{ID: "b1", Title: "Dune", TotalCopies: 1}}})
	}))
	defer srv.Close()

	snap, err := NewRemoteClient(srv.URL).FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Books, 1)
	assert.Equal(t, "Dune", snap.Books[0].Title)
}

func TestRemoteClientErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field", http.StatusConflict, `{"error":"book has active loans"}`, "book has active loans"},
		{"message field", http.StatusBadRequest, `{"message":"bad due date"}`, "bad due date"},
		{"plain text", http.StatusUnauthorized, `nope`, "Unauthorized"},
		{"empty json", http.StatusNotFound, `{}`, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewRemoteClient(srv.URL).PutSnapshot(context.Background(), library.Snapshot{})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestRemoteClientBreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, WithBreakerSettings(gobreaker.Settings{
		Name:        "test",
		Timeout:     time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 },
	}))
	ctx := context.Background()
	for range 2 {
		var apiErr *APIError
		require.ErrorAs(t, c.PutSnapshot(ctx, library.Snapshot{}), &apiErr)
	}
	err := c.PutSnapshot(ctx, library.Snapshot{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
}

func TestRemoteClientClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, WithBreakerSettings(gobreaker.Settings{
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
	}))
	for range 3 {
		err := c.PutSnapshot(context.Background(), library.Snapshot{})
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
}
