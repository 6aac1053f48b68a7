// Package attachments provides the HTTP client for downloading form
// attachments from the forms platform.
package attachments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"journalize_robot_backend/platform/apperr"
	"journalize_robot_backend/platform/logger"

	"golang.org/x/time/rate"
)

// Client downloads attachment bytes with an API key. Downloads are paced so a
// large batch does not hammer the forms platform.
type Client struct {
	httpClient *http.Client
	apiKey     string
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates a new attachments client. interval is the minimum spacing
// between download calls.
func New(apiKey string, interval time.Duration, log *logger.Logger) *Client {
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		log:        log,
	}
}

// DownloadBytes fetches the attachment at url.
func (c *Client) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Transport("download cancelled while waiting for rate limiter", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Transport("failed to create download request", err)
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("attachment download failed", "error", err, "url", url)
		return nil, apperr.Transport("attachment download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindTransport,
			fmt.Sprintf("attachment download returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport("failed to read attachment body", err)
	}

	return data, nil
}
