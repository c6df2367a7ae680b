package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_ValidatesConfig(t *testing.T) {
	_, err := NewClient(&Config{APIURL: "https://api.example.com", Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestSimpleChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "A thirty second hype script."}}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(&Config{
		APIKey: "test-key",
		APIURL: srv.URL,
		Model:  "openai/gpt-3.5-turbo",
	})
	require.NoError(t, err)

	content, err := client.SimpleChat(context.Background(), "Write an intro", "You are a game hype narrator.")
	require.NoError(t, err)
	assert.Equal(t, "A thirty second hype script.", content)
}

func TestSimpleChat_APIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(&Config{APIKey: "k", APIURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "prompt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSimpleChat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer srv.Close()

	client, err := NewClient(&Config{APIKey: "k", APIURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "prompt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
