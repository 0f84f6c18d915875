package cloud

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-switchbot/internal/config"
)

func TestAvailable(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   bool
	}{
		"active":          {status: http.StatusOK, body: `{"subscription_active":true,"connected":true}`, want: true},
		"no subscription": {status: http.StatusOK, body: `{"subscription_active":false,"connected":true}`, want: false},
		"disconnected":    {status: http.StatusOK, body: `{"subscription_active":true,"connected":false}`, want: false},
		"server error":    {status: http.StatusInternalServerError, body: `boom`, want: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/status", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()

			client := NewClientWithHTTP(server.URL, server.Client())
			assert.Equal(t, tc.want, client.Available(context.Background()))
		})
	}
}

func TestNilClientIsUnavailable(t *testing.T) {
	var client *Client
	assert.False(t, client.Available(context.Background()))
}

func TestCreateCloudhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/cloudhooks", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc123", body["webhook_id"])
		_, _ = io.WriteString(w, `{"cloudhook_url":"https://hooks.example.com/abc123"}`)
	}))
	defer server.Close()

	client := NewClientWithHTTP(server.URL+"/", nil)
	hookURL, err := client.CreateCloudhook(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/abc123", hookURL)

	_, err = client.CreateCloudhook(context.Background(), "")
	assert.Error(t, err)
}

func TestNewClientUsesClientCredentials(t *testing.T) {
	var tokenRequests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenRequests++
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"relay-token","token_type":"Bearer","expires_in":3600}`)
		case "/v1/status":
			assert.Equal(t, "Bearer relay-token", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"subscription_active":true,"connected":true}`)
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	secretPath := filepath.Join(t.TempDir(), "client_secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("secret\n"), 0o600))

	client, err := NewClient(&config.CloudConfig{
		RelayURL:         server.URL,
		TokenURL:         server.URL + "/token",
		ClientID:         "gohome",
		ClientSecretFile: secretPath,
	})
	require.NoError(t, err)
	assert.True(t, client.Available(context.Background()))
	assert.Equal(t, 1, tokenRequests)
}
