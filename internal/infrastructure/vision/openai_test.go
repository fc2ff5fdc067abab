package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	}
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestOpenAIClient_RecognizeProducts(t *testing.T) {
	reply := "```json\n{\"products\":[{\"name\":\"삼다수 2L\",\"price\":1200,\"rawPrice\":\"1,200원\"}," +
		"{\"name\":\"신라면\",\"price\":\"3,980\"}]}\n```"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, 1000, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].Content, 2)
		assert.Contains(t, req.Messages[0].Content[0].Text, "마트 가격표")
		assert.Equal(t, "data:image/jpeg;base64,AAAA", req.Messages[0].Content[1].ImageURL.URL)

		chatReply(t, w, reply)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL}, nil)

	records, raw, err := client.RecognizeProducts(context.Background(), "AAAA")

	require.NoError(t, err)
	assert.Equal(t, reply, raw)
	assert.Equal(t, []domain.ProductRecord{
		{Name: "삼다수 2L", Price: 1200, RawPrice: "1,200원"},
		{Name: "신라면", Price: 3980, RawPrice: "3980원"},
	}, records)
}

func TestOpenAIClient_ProseReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "두부 1,500원 입니다")
	}))
	defer server.Close()

	records, raw, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL}, nil).
		RecognizeProducts(context.Background(), "data:image/png;base64,AAAA")

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "두부 1,500원 입니다", raw)
}

func TestOpenAIClient_NotConfigured(t *testing.T) {
	_, _, err := NewOpenAIClient(OpenAIConfig{}, nil).RecognizeProducts(context.Background(), "AAAA")

	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
		message  string
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","code":"invalid_api_key"}}`, domain.ErrVisionAPIFailure, "Incorrect API key"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, domain.ErrRateLimited, "Rate limit reached"},
		{"plain body", http.StatusBadGateway, `upstream down`, domain.ErrVisionAPIFailure, "502"},
		{"invalid json", http.StatusOK, `not json`, domain.ErrVisionAPIFailure, "failed to decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL}, nil).
				RecognizeProducts(context.Background(), "AAAA")

			assert.ErrorIs(t, err, tt.expected)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestOpenAIClient_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL}, nil).RecognizeProducts(ctx, "AAAA")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseProducts(t *testing.T) {
	t.Run("missing object", func(t *testing.T) {
		_, err := ParseProducts("가격표를 읽을 수 없습니다")
		assert.Error(t, err)
	})

	t.Run("empty list", func(t *testing.T) {
		records, err := ParseProducts(`{"products": []}`)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("broken json", func(t *testing.T) {
		_, err := ParseProducts(`{"products": [{"name": }`)
		assert.Error(t, err)
	})
}

func TestParseLLMPrice(t *testing.T) {
	tests := []struct {
		raw      string
		expected int64
	}{
		{`5290`, 5290},
		{`5290.0`, 5290},
		{`"5290"`, 5290},
		{`"5,290원"`, 5290},
		{`" 1,200 "`, 1200},
		{`"약 5000원"`, 0},
		{`null`, 0},
		{``, 0},
		{`true`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLLMPrice(json.RawMessage(tt.raw)))
		})
	}
}
