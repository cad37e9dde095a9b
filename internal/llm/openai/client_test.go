package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MathAgent/internal/llm"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestCompleteSendsJSONModeAndReturnsContent(t *testing.T) {
	var captured struct {
		Authorization string
		Path          string
		Body          map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Authorization = r.Header.Get("Authorization")
		captured.Path = r.URL.Path
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&captured.Body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": ` {"intent":"calculation"} `},
			}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second, HTTPClient: srv.Client()})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), llm.Prompt{System: "sys", User: "Add 2 and 3", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"calculation"}`, out)

	assert.Equal(t, "Bearer test", captured.Authorization)
	assert.Equal(t, "/chat/completions", captured.Path)
	assert.Equal(t, "gpt-4o-mini", captured.Body["model"])
	format, _ := captured.Body["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
	messages, _ := captured.Body["messages"].([]any)
	assert.Len(t, messages, 2)
}

func TestCompleteSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), llm.Prompt{User: "x"})
	assert.Error(t, err)
}
