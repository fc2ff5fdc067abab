package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIBaseURL is the OpenAI API host
	DefaultOpenAIBaseURL = "https://api.openai.com"

	// DefaultOpenAIModel reads images and answers in Korean
	DefaultOpenAIModel = "gpt-4o"

	defaultMaxTokens = 1000
)

const priceTagPrompt = `이 이미지는 마트 가격표입니다. 이미지에서 상품명과 가격을 추출해주세요.

반드시 아래 JSON 형식으로만 응답해주세요. 다른 텍스트는 포함하지 마세요:
{
  "products": [
    {"name": "상품명", "price": 숫자, "rawPrice": "원본가격문자열"}
  ]
}

규칙:
- price는 숫자만 (예: 5290)
- rawPrice는 원본 그대로 (예: "5,290원")
- 상품명이 불분명하면 가격표에 보이는 텍스트를 사용
- 가격을 찾을 수 없으면 빈 배열 반환`

// jsonObject matches from the first '{' to the last '}' of a reply
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// OpenAIConfig holds chat completions settings
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIClient asks a multimodal model to list the products on a price tag
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	logger     *zap.Logger
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type llmProducts struct {
	Products []llmProduct `json:"products"`
}

// llmProduct is one product as the model wrote it; price may arrive as 5290 or "5,290"
type llmProduct struct {
	Name     string          `json:"name"`
	Price    json.RawMessage `json:"price"`
	RawPrice string          `json:"rawPrice"`
}

// NewOpenAIClient creates an OpenAI vision client
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &OpenAIClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		logger:     logger.With(zap.String("provider", "openai")),
	}
}

// RecognizeProducts returns the records the model listed together with its raw reply.
// A reply without a JSON object yields no records and the raw text, so the caller can fall back
// to pattern extraction.
func (c *OpenAIClient) RecognizeProducts(ctx context.Context, image string) ([]domain.ProductRecord, string, error) {
	if c.apiKey == "" {
		return nil, "", fmt.Errorf("%w: openai api key missing", domain.ErrProviderNotConfigured)
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: priceTagPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: ensureDataURL(image)}},
			},
		}},
		MaxTokens: c.maxTokens,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var resp chatResponse
	if err := postJSON(ctx, c.httpClient, "openai", c.baseURL+"/v1/chat/completions", header, payload, &resp); err != nil {
		return nil, "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, "", nil
	}
	content := resp.Choices[0].Message.Content

	records, err := ParseProducts(content)
	if err != nil {
		c.logger.Warn("could not parse model reply", zap.Error(err))
		return nil, content, nil
	}
	return records, content, nil
}

// ParseProducts reads the {"products": [...]} object embedded in a model reply.
// Records are returned as written; range and length checks belong to the caller.
func ParseProducts(content string) ([]domain.ProductRecord, error) {
	raw := jsonObject.FindString(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var parsed llmProducts
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	records := make([]domain.ProductRecord, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		price := parseLLMPrice(p.Price)
		rawPrice := p.RawPrice
		if rawPrice == "" {
			rawPrice = strconv.FormatInt(price, 10) + "원"
		}
		records = append(records, domain.ProductRecord{
			Name:     strings.TrimSpace(p.Name),
			Price:    price,
			RawPrice: rawPrice,
		})
	}
	return records, nil
}

// parseLLMPrice accepts 5290, 5290.0, "5290" and "5,290원". Text must start with the digits.
func parseLLMPrice(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return int64(number)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	end := strings.IndexFunc(text, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		text = text[:end]
	}
	price, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0
	}
	return price
}
