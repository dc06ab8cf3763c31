package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micvant/timecheck/internal/model"
)

func newServer(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("non-success status", func(t *testing.T) {
		c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		err := c.Health(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1")
		err := c.Health(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestSync_RequestAndResponse(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:              "t1",
		Title:           "from server",
		CreatedAt:       at,
		UpdatedAt:       at,
		ClientUpdatedAt: at,
	}

	c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sync", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.LastSyncAt)
		assert.Equal(t, "prev-cursor", *req.LastSyncAt)
		require.Len(t, req.Changes.Tasks, 1)
		assert.Equal(t, model.OpUpsert, req.Changes.Tasks[0].Op)

		require.NoError(t, json.NewEncoder(w).Encode(SyncResult{
			Tasks:       []model.Task{task},
			TimeEntries: []model.TimeEntry{},
			ServerTime:  "next-cursor",
		}))
	}))

	cursor := "prev-cursor"
	payload, err := json.Marshal(task)
	require.NoError(t, err)

	result, err := c.Sync(context.Background(), "tok", SyncRequest{
		LastSyncAt: &cursor,
		Changes: ChangeSet{
			Tasks:       []ChangeItem{{Op: model.OpUpsert, Data: payload}},
			TimeEntries: []ChangeItem{},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "next-cursor", result.ServerTime)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "from server", result.Tasks[0].Title)
}

func TestSync_FailureClassification(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"bad token"}`, ErrUnauthorized},
		{"server error", http.StatusInternalServerError, "boom", ErrProtocol},
		{"unparseable body", http.StatusOK, "{not json", ErrProtocol},
		{"missing server_time", http.StatusOK, `{"tasks":[],"time_entries":[]}`, ErrProtocol},
		{"task without id", http.StatusOK,
			`{"tasks":[{"title":"x"}],"time_entries":[],"server_time":"c"}`, ErrProtocol},
		{"entry without task_id", http.StatusOK,
			`{"tasks":[],"time_entries":[{"id":"e1","started_at":"2026-08-29T10:00:00Z","updated_at":"2026-08-29T10:00:00Z","client_updated_at":"2026-08-29T10:00:00Z"}],"server_time":"c"}`,
			ErrProtocol},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))

			_, err := c.Sync(context.Background(), "tok", SyncRequest{})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestLogin_SendsFormCredentials(t *testing.T) {
	c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		w.Write([]byte(`{"access_token":"tok-1"}`))
	}))

	token, err := c.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestRegister_SendsJSONCredentials(t *testing.T) {
	c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice@example.com", body["email"])
		w.Write([]byte(`{"access_token":"tok-2"}`))
	}))

	token, err := c.Register(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
}

func TestAuth_Failures(t *testing.T) {
	t.Run("rejected credentials", func(t *testing.T) {
		c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"wrong password"}`, http.StatusUnauthorized)
		}))
		_, err := c.Login(context.Background(), "a", "b")
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.Contains(t, err.Error(), "wrong password")
	})

	t.Run("missing token in response", func(t *testing.T) {
		c := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		_, err := c.Register(context.Background(), "a", "b")
		assert.ErrorIs(t, err, ErrProtocol)
	})
}
