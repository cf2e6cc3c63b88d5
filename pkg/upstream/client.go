package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const statusBodyLimit = 500

// Client performs HTTP exchanges with Foundry endpoints. A single client
// is shared across all models; the per-model endpoint arrives with each
// call. The timeout covers the whole exchange including body reads, which
// is the only bound a streamed response gets.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient returns a client with the given exchange timeout.
func NewClient(timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: slog.Default().With("component", "upstream"),
	}
}

// Complete performs a non-streaming chat completion and returns the raw
// response body. Non-200 responses become a StatusError carrying a body
// excerpt; transport failures become TimeoutError or ConnectionError.
func (c *Client) Complete(ctx context.Context, url, bearer string, body *Request) ([]byte, error) {
	resp, err := c.post(ctx, url, bearer, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "upstream returned error",
			"status", resp.StatusCode, "body", excerpt(raw))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: excerpt(raw)}
	}
	return raw, nil
}

// Stream performs a streaming chat completion. The returned reader owns
// the response body; the caller must Close it.
func (c *Client) Stream(ctx context.Context, url, bearer string, body *Request) (*StreamReader, error) {
	resp, err := c.post(ctx, url, bearer, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, statusBodyLimit))
		resp.Body.Close()
		c.logger.ErrorContext(ctx, "upstream stream returned error",
			"status", resp.StatusCode, "body", string(raw))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return newStreamReader(resp.Body), nil
}

func (c *Client) post(ctx context.Context, url, bearer string, body *Request) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

func excerpt(b []byte) string {
	if len(b) <= statusBodyLimit {
		return string(b)
	}
	return string(b[:statusBodyLimit])
}
