package prolific

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendMessage(t *testing.T) {
	var got sendMessageRequest
	var auth, path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/api/v1/", "secret-token")
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), "study-a", "participant-1", "hello")
	require.NoError(t, err)

	assert.Equal(t, "Token secret-token", auth)
	assert.Equal(t, "/api/v1/messages/", path)
	assert.Equal(t, "study-a", got.StudyID)
	assert.Equal(t, "participant-1", got.RecipientID)
	assert.Equal(t, "hello", got.Body)
}

func TestClient_SendMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad recipient"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "token")
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), "study", "nobody", "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad recipient")
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("", "")
	assert.Error(t, err)
}
