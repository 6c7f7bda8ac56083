package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/", Options{Timeout: 5 * time.Second})
}

func TestLoginInstallsToken(t *testing.T) {
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","user_id":"u1","username":"alice","token_type":"bearer"}`))
	})

	resp, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "tok", c.Token())
	assert.Equal(t, map[string]string{"username": "alice", "password": "secret"}, gotBody)
}

func TestLoginRejectsIncompleteResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"username":"alice"}`))
	})

	_, err := c.Login(context.Background(), "alice", "secret")
	assert.Error(t, err)
	assert.Empty(t, c.Token())
}

func TestErrorDetailDecoding(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", http.StatusUnauthorized, `{"detail":"Incorrect username or password"}`, "Incorrect username or password"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`, "field required; too short"},
		{"plain body", http.StatusBadGateway, "upstream down\n", "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Users(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Detail)
			assert.Equal(t, tt.status == http.StatusUnauthorized, IsUnauthorized(err))
		})
	}
}

func TestUsersSendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"u2","username":"bob","full_name":"Bob B"}]`))
	})
	c.SetToken("tok")

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bob B", users[0].DisplayName())
}

func TestMessagesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/u2/messages", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "u1", q.Get("current_user_id"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "40", q.Get("skip"))
		_, _ = w.Write([]byte(`[
			{"id":"m1","sender_id":"u2","receiver_id":"u1","content":"hi","created_at":"2025-03-01T09:30:00"},
			{"id":"m2","sender_id":"u1","receiver_id":"u2","content":"yo","created_at":"2025-03-01T09:31:00"}
		]`))
	})

	msgs, err := c.Messages(context.Background(), "u1", "u2", 20, 40)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt.Time))
}

func TestResolveConversation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/conversations", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("current_user_id"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u2", body["participant_id"])
		_, _ = w.Write([]byte(`{"conversation_id":"c9"}`))
	})

	id, err := c.ResolveConversation(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "c9", id)
}

func TestResolveConversationMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.ResolveConversation(context.Background(), "u1", "u2")
	assert.Error(t, err)
}

func TestFriendEndpoints(t *testing.T) {
	var paths []string
	var bodies []map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Method == http.MethodGet {
			assert.Equal(t, "u1", r.URL.Query().Get("current_user_id"))
			_, _ = w.Write([]byte(`[{"id":"u3","username":"carol"}]`))
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	ctx := context.Background()
	require.NoError(t, c.SendFriendRequest(ctx, "u1", "u2"))
	require.NoError(t, c.AcceptFriendRequest(ctx, "u1", "u3"))
	pending, err := c.ReceivedRequests(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/friends/request", "/api/friends/accept", "/api/friends/requests/received"}, paths)
	assert.Equal(t, map[string]string{"receiver_id": "u2", "current_user_id": "u1"}, bodies[0])
	assert.Equal(t, map[string]string{"sender_id": "u3", "current_user_id": "u1"}, bodies[1])
	require.Len(t, pending, 1)
	assert.Equal(t, "carol", pending[0].Username)
}

func TestRegister(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/register", r.URL.Path)
		var body RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice@example.com", body.Email)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"u1","username":"alice"}`))
	})

	err := c.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice",
		Password: "secret",
	})
	assert.NoError(t, err)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c.limiter = rate.NewLimiter(rate.Limit(1), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Users(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
