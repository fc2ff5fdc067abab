// Package vision talks to the hosted OCR and multimodal LLM providers that read price tags.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/pkg/metrics"
)

const (
	maxResponseSize = 4 << 20
	defaultTimeout  = 30 * time.Second
)

var dataURLPrefix = regexp.MustCompile(`^data:image/[\w.+-]+;base64,`)

// stripDataURL returns the bare base64 payload of an image
func stripDataURL(image string) string {
	return dataURLPrefix.ReplaceAllString(strings.TrimSpace(image), "")
}

// ensureDataURL wraps a bare base64 payload as a JPEG data URL
func ensureDataURL(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		return image
	}
	return "data:image/jpeg;base64," + image
}

// apiError is the error envelope shared by Google and OpenAI APIs
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
}

// postJSON sends payload and decodes a 200 response into out.
// Non-200 answers become ErrVisionAPIFailure carrying the provider's message.
func postJSON(ctx context.Context, client *http.Client, upstream, url string, header http.Header, payload, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamRequestsTotal.WithLabelValues(upstream, metrics.Status(err)).Inc()
		metrics.UpstreamRequestDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrVisionAPIFailure, upstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", domain.ErrVisionAPIFailure, upstream, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: %s", domain.ErrRateLimited, upstream, errorMessage(data, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", domain.ErrVisionAPIFailure, upstream, errorMessage(data, resp.StatusCode))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", domain.ErrVisionAPIFailure, upstream, err)
	}
	return nil
}

func errorMessage(body []byte, status int) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fmt.Sprintf("API 요청 실패: %d", status)
}
