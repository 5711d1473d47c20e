package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"

	"github.com/at-ishikawa/recipebook/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Client{
		httpClient:       resty.New().SetBaseURL(server.URL),
		configured:       true,
		maxRetryAttempts: 1,
		retryDelay:       time.Millisecond,
	}
}

func decodeName(t *testing.T, r *http.Request) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body["name"]
}

func TestNewClient(t *testing.T) {
	var gotAuth, gotPath, gotName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotName = decodeName(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := NewClient(config.HomeAssistantConfig{BaseURL: server.URL + "/", Token: "t0k", TimeoutSeconds: 5})
	defer client.Close()
	require.True(t, client.Configured())

	require.NoError(t, client.AddItem(context.Background(), "egg 6"))
	assert.Equal(t, "Bearer t0k", gotAuth)
	assert.Equal(t, "/api/services/shopping_list/add_item", gotPath)
	assert.Equal(t, "egg 6", gotName)

	unconfigured := NewClient(config.HomeAssistantConfig{BaseURL: server.URL, TimeoutSeconds: 5})
	assert.False(t, unconfigured.Configured())
	assert.ErrorIs(t, unconfigured.AddItem(context.Background(), "egg"), ErrNotConfigured)
}

func TestClient_Services(t *testing.T) {
	tests := []struct {
		name     string
		call     func(ctx context.Context, c *Client) error
		wantPath string
		wantName string
	}{
		{name: "remove", call: func(ctx context.Context, c *Client) error { return c.RemoveItem(ctx, "milk") }, wantPath: "/api/services/shopping_list/remove_item", wantName: "milk"},
		{name: "complete", call: func(ctx context.Context, c *Client) error { return c.CompleteItem(ctx, "milk") }, wantPath: "/api/services/shopping_list/complete_item", wantName: "milk"},
		{name: "incomplete", call: func(ctx context.Context, c *Client) error { return c.IncompleteItem(ctx, "milk") }, wantPath: "/api/services/shopping_list/incomplete_item", wantName: "milk"},
		{name: "clear completed", call: func(ctx context.Context, c *Client) error { return c.ClearCompleted(ctx) }, wantPath: "/api/services/shopping_list/clear_completed_items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, tt.wantName, decodeName(t, r))
				w.WriteHeader(http.StatusOK)
			})
			require.NoError(t, tt.call(context.Background(), client))
		})
	}
}

func TestClient_Ping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/", r.URL.Path)
		_, _ = w.Write([]byte(`{"message": "API running."}`))
	})
	assert.NoError(t, client.Ping(context.Background()))
}

func TestClient_Retry(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		wantCalls  int32
		wantStatus int
	}{
		{name: "server error then success", statuses: []int{http.StatusBadGateway, http.StatusOK}, wantCalls: 2},
		{name: "rate limited then success", statuses: []int{http.StatusTooManyRequests, http.StatusOK}, wantCalls: 2},
		{name: "unauthorized is not retried", statuses: []int{http.StatusUnauthorized, http.StatusOK}, wantCalls: 1, wantStatus: http.StatusUnauthorized},
		{name: "gives up after the configured retries", statuses: []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK}, wantCalls: 2, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[n-1])
			})

			err := client.AddItem(context.Background(), "rice")
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				return
			}
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
		})
	}
}

func TestClient_AddItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if decodeName(t, r) == "broken" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid item"))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	got := client.AddItems(context.Background(), []string{"egg 6", "broken", "salt"})
	require.Len(t, got, 3)
	assert.NoError(t, got[0].Err)
	assert.EqualError(t, got[1].Err, "home assistant responded 400: invalid item")
	assert.Equal(t, "salt", got[2].Name)
	assert.NoError(t, got[2].Err)
}
