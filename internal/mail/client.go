// Package mail sends email through the Gmail REST API using a user's
// delegated access token.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mrlokans/secrets/internal/config"
)

const (
	defaultBaseURL = "https://gmail.googleapis.com"
	defaultTimeout = 30 * time.Second
)

// ErrDispatchFailed wraps every send failure, network or HTTP.
var ErrDispatchFailed = errors.New("mail dispatch failed")

// DispatchError carries the HTTP status the Gmail API answered with.
type DispatchError struct {
	StatusCode int
	Body       string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("gmail api returned status %d: %s", e.StatusCode, e.Body)
}

func (e *DispatchError) Unwrap() error {
	return ErrDispatchFailed
}

// Client interfaces with the Gmail send endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Gmail API client. The base URL is configurable so
// tests can point at a local server.
func NewClient(cfg config.Mail) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// MakeBody assembles an RFC 822 plain-text message and encodes it with
// URL-safe base64, the format the Gmail API expects in the "raw" field.
func MakeBody(to, from, subject, message string) string {
	raw := "Content-Type: text/plain; charset=\"UTF-8\"\n" +
		"MIME-Version: 1.0\n" +
		"Content-Transfer-Encoding: 7bit\n" +
		"to: " + to + "\n" +
		"from: " + from + "\n" +
		"subject: " + subject + "\n\n" +
		message
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

type sendRequest struct {
	Raw string `json:"raw"`
}

// Send dispatches a plain-text email as the given sender using their
// delegated access token. There is no retry: a failed send surfaces
// immediately so the user can decide what to do.
func (c *Client) Send(ctx context.Context, accessToken, from, to, subject, message string) error {
	endpoint := fmt.Sprintf("%s/gmail/v1/users/%s/messages/send", c.baseURL, url.PathEscape(from))

	payload, err := json.Marshal(sendRequest{Raw: MakeBody(to, from, subject, message)})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &DispatchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}
