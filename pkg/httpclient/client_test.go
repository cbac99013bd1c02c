package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{ServerURL: server.URL, ClientID: "test-client"})
	require.NoError(t, err)
	client.SetToken("test-token")
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("valid_config", func(t *testing.T) {
		client, err := NewClient(Config{
			ServerURL: "http://localhost:8081",
			ClientID:  "test-client",
		})
		require.NoError(t, err)
		assert.Equal(t, "test-client", client.config.ClientID)
		assert.Equal(t, 30*time.Second, client.config.Timeout)
		assert.False(t, client.IsAuthenticated())
	})

	t.Run("preset_token", func(t *testing.T) {
		client, err := NewClient(Config{
			ServerURL: "http://localhost:8081",
			ClientID:  "test-client",
			Token:     "saved",
		})
		require.NoError(t, err)
		assert.True(t, client.IsAuthenticated())
		assert.Equal(t, "saved", client.GetToken())
	})

	t.Run("missing_server_url", func(t *testing.T) {
		client, err := NewClient(Config{ClientID: "test-client"})
		assert.Nil(t, client)
		assert.ErrorContains(t, err, "ServerURL is required")
	})

	t.Run("missing_client_id", func(t *testing.T) {
		client, err := NewClient(Config{ServerURL: "http://localhost:8081"})
		assert.Nil(t, client)
		assert.ErrorContains(t, err, "ClientID is required")
	})

	t.Run("invalid_server_url", func(t *testing.T) {
		client, err := NewClient(Config{ServerURL: "://invalid-url", ClientID: "test-client"})
		assert.Nil(t, client)
		assert.ErrorContains(t, err, "invalid ServerURL")
	})
}

func TestClient_Authenticate(t *testing.T) {
	t.Run("successful_authentication", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Empty(t, r.Header.Get("Authorization"))

			var authReq map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&authReq))
			assert.Equal(t, "test-client", authReq["clientId"])

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(AuthResponse{
				Token:     "issued-token",
				ClientID:  "test-client",
				ExpiresAt: time.Now().Add(time.Hour),
			})
		})
		client.SetToken("")

		require.NoError(t, client.Authenticate(context.Background()))
		assert.Equal(t, "issued-token", client.GetToken())
	})

	t.Run("server_error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{
				Error:   "Bad Request",
				Message: "clientId is required",
				Code:    http.StatusBadRequest,
			})
		})

		err := client.Authenticate(context.Background())
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "clientId is required", apiErr.Message)
	})
}

func TestClient_RequiresAuthentication(t *testing.T) {
	client, err := NewClient(Config{ServerURL: "http://localhost:8081", ClientID: "test-client"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.PublishEvent(ctx, "a", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = client.CreateSubscription(ctx, "a")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = client.ListSubscriptions(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, client.DeleteSubscription(ctx, "a"), ErrNotAuthenticated)
	_, err = client.AdminGetStats(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = client.AdminListClients(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = client.AdminListChannels(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_PublishEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/events", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "orders.created", req["channel"])
		assert.Equal(t, map[string]any{"id": float64(7)}, req["payload"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(PublishResponse{
			EventID:     "evt-1",
			Channel:     "orders.created",
			Subscribers: 3,
		})
	})

	resp, err := client.PublishEvent(context.Background(), "orders.created", map[string]int{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", resp.EventID)
	assert.Equal(t, 3, resp.Subscribers)
}

func TestClient_Subscriptions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req SubscriptionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(SubscriptionResponse{ClientID: "test-client", Channel: req.Channel, Pattern: true})
		case http.MethodGet:
			json.NewEncoder(w).Encode(SubscriptionsListResponse{
				ClientID:      "test-client",
				Subscriptions: []SubscriptionResponse{{ClientID: "test-client", Channel: "news.*", Pattern: true}},
			})
		case http.MethodDelete:
			if r.URL.Query().Get("channel") != "news.*" {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(ErrorResponse{Message: "not subscribed", Code: http.StatusNotFound})
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	sub, err := client.CreateSubscription(ctx, "news.*")
	require.NoError(t, err)
	assert.Equal(t, "news.*", sub.Channel)
	assert.True(t, sub.Pattern)

	subs, err := client.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "news.*", subs[0].Channel)

	require.NoError(t, client.DeleteSubscription(ctx, "news.*"))

	err = client.DeleteSubscription(ctx, "other")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClient_AdminAndHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/admin/stats":
			json.NewEncoder(w).Encode(AdminStatsResponse{NodeID: "node", ConnectedClients: 2})
		case "/api/v1/admin/channels":
			json.NewEncoder(w).Encode(AdminChannelsResponse{Channels: []ChannelInfo{{Channel: "a", Subscribers: 1}}})
		case "/api/v1/admin/clients":
			json.NewEncoder(w).Encode(AdminClientsResponse{Clients: []ClientInfo{{ID: "x", Subscriptions: []string{"a"}}}})
		case "/api/v1/health":
			assert.Empty(t, r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(HealthResponse{Healthy: true, ConnectedClients: 2})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	stats, err := client.AdminGetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ConnectedClients)

	channels, err := client.AdminListChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ChannelInfo{{Channel: "a", Subscribers: 1}}, channels.Channels)

	clients, err := client.AdminListClients(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", clients.Clients[0].ID)

	health, err := client.GetHealth(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
}

func TestAPIError_PlainBody(t *testing.T) {
	err := apiError(http.StatusBadGateway, []byte("upstream down\n"))
	assert.EqualError(t, err, "API error (502): upstream down")
}
