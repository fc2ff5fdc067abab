package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"
)

// DefaultGoogleBaseURL is the Cloud Vision endpoint
const DefaultGoogleBaseURL = "https://vision.googleapis.com"

// GoogleConfig holds Cloud Vision settings
type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GoogleClient runs TEXT_DETECTION on price-tag photos
type GoogleClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *zap.Logger
}

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateImageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features     []annotateFeature `json:"features"`
	ImageContext struct {
		LanguageHints []string `json:"languageHints"`
	} `json:"imageContext"`
}

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Locale      string `json:"locale,omitempty"`
			Description string `json:"description"`
		} `json:"textAnnotations"`
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation,omitempty"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"responses"`
}

// NewGoogleClient creates a Cloud Vision client
func NewGoogleClient(cfg GoogleConfig, logger *zap.Logger) *GoogleClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &GoogleClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger.With(zap.String("provider", "google")),
	}
}

// RecognizeText returns the full text detected on the image, or "" when there is none
func (c *GoogleClient) RecognizeText(ctx context.Context, image string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: google cloud api key missing", domain.ErrProviderNotConfigured)
	}

	item := annotateImageRequest{
		Features: []annotateFeature{{Type: "TEXT_DETECTION", MaxResults: 50}},
	}
	item.Image.Content = stripDataURL(image)
	item.ImageContext.LanguageHints = []string{"ko", "en"}

	endpoint := c.baseURL + "/v1/images:annotate?key=" + url.QueryEscape(c.apiKey)

	var resp annotateResponse
	if err := postJSON(ctx, c.httpClient, "google", endpoint, nil, annotateRequest{Requests: []annotateImageRequest{item}}, &resp); err != nil {
		return "", err
	}

	if len(resp.Responses) == 0 {
		return "", nil
	}
	first := resp.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		return "", fmt.Errorf("%w: google: %s", domain.ErrVisionAPIFailure, first.Error.Message)
	}

	if len(first.TextAnnotations) > 0 {
		return first.TextAnnotations[0].Description, nil
	}
	if first.FullTextAnnotation != nil {
		return first.FullTextAnnotation.Text, nil
	}

	c.logger.Debug("no text detected")
	return "", nil
}
