package naver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	client := NewClient(Config{ClientID: "test-id", ClientSecret: "test-secret", BaseURL: baseURL}, nil)
	client.backoff = func(int) time.Duration { return 0 }
	return client
}

func writeItems(t *testing.T, w http.ResponseWriter, items ...Item) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(SearchResponse{Total: len(items), Display: len(items), Items: items}))
}

func TestNewClient(t *testing.T) {
	client := NewClient(Config{ClientID: "id", ClientSecret: "secret"}, nil)

	assert.NotNil(t, client)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, 5, client.display)
	assert.Equal(t, "asc", client.sort)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
	assert.Equal(t, "naver", client.Name())
}

func TestSetDebug(t *testing.T) {
	client := NewClient(Config{}, nil)

	client.SetDebug(true)
	assert.True(t, client.debug)

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
	}
}

func TestSearchOffers_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search/shop.json", r.URL.Path)
		assert.Equal(t, "삼다수", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("display"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort"))
		assert.Equal(t, "test-id", r.Header.Get("X-Naver-Client-Id"))
		assert.Equal(t, "test-secret", r.Header.Get("X-Naver-Client-Secret"))

		writeItems(t, w,
			Item{Title: "제주 <b>삼다수</b> 2L 6개", LPrice: "6480", Link: "https://shop/1", MallName: "쿠팡", Image: "https://img/1"},
			Item{Title: "가격 없음", LPrice: ""},
		)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetDebug(true)

	offers, err := client.SearchOffers(context.Background(), "삼다수")

	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "제주 삼다수 2L 6개", offers[0].Title)
	assert.Equal(t, int64(6480), offers[0].Price)
	assert.Equal(t, "https://shop/1", offers[0].URL)
	assert.Equal(t, "쿠팡", offers[0].MallName)
	assert.Contains(t, offers[0].SearchURL, "search.shopping.naver.com")
}

func TestSearchOffers_NotConfigured(t *testing.T) {
	client := NewClient(Config{ClientID: "id"}, nil)

	offers, err := client.SearchOffers(context.Background(), "삼다수")

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
}

func TestSearchOffers_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	offers, err := newTestClient(server.URL).SearchOffers(context.Background(), "없는상품")

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestSearchOffers_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeItems(t, w)
	}))
	defer server.Close()

	offers, err := newTestClient(server.URL).SearchOffers(context.Background(), "없는상품")

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestSearchOffers_ServerError_Retries(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeItems(t, w, Item{Title: "신라면", LPrice: "3980"})
	}))
	defer server.Close()

	offers, err := newTestClient(server.URL).SearchOffers(context.Background(), "신라면")

	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSearchOffers_TooManyRequests_Retries(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeItems(t, w, Item{Title: "신라면", LPrice: "3980"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SearchOffers(context.Background(), "신라면")

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestSearchOffers_TooManyRequests_Exhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SearchOffers(context.Background(), "신라면")

	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestSearchOffers_ClientError_NoRetry(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessage":"Authentication failed","errorCode":"024"}`))
	}))
	defer server.Close()

	offers, err := newTestClient(server.URL).SearchOffers(context.Background(), "신라면")

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, domain.ErrShoppingAPIFailure)
	assert.Contains(t, err.Error(), "Authentication failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestSearchOffers_AllRetriesFail(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	offers, err := newTestClient(server.URL).SearchOffers(context.Background(), "신라면")

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, domain.ErrShoppingAPIFailure)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSearchOffers_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SearchOffers(context.Background(), "신라면")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSearchOffers_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	offers, err := newTestClient(server.URL).SearchOffers(ctx, "신라면")

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearchOffers_RequestCreationError(t *testing.T) {
	client := newTestClient("://invalid-url")

	offers, err := client.SearchOffers(context.Background(), "test")

	assert.Nil(t, offers)
	assert.Error(t, err)
}
