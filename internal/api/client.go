// Package api is the REST half of a conversation: paginated history backfill
// and thread-level read marking. The live socket covers everything else.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valsssa/tutorhub-chat/internal/timeline"
)

// Client is what the session layer needs from the REST backend.
type Client interface {
	// Messages fetches one history page, newest page first.
	Messages(ctx context.Context, conversationID int64, page int) (timeline.Page, error)
	// MarkThreadRead marks every message in the conversation read.
	MarkThreadRead(ctx context.Context, conversationID int64) error
}

// StatusError is a non-2xx REST response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: unexpected status %d: %s", e.Code, e.Body)
}

// HTTPClient talks to the backend with a bearer token.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client rooted at baseURL (no trailing slash).
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Messages implements Client.
func (c *HTTPClient) Messages(ctx context.Context, conversationID int64, page int) (timeline.Page, error) {
	url := fmt.Sprintf("%s/api/conversations/%d/messages/?page=%d", c.baseURL, conversationID, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return timeline.Page{}, fmt.Errorf("api: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return timeline.Page{}, fmt.Errorf("api: fetch messages: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return timeline.Page{}, err
	}

	var p timeline.Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return timeline.Page{}, fmt.Errorf("api: decode messages page: %w", err)
	}
	if p.Page == 0 {
		p.Page = page
	}
	return p, nil
}

// MarkThreadRead implements Client.
func (c *HTTPClient) MarkThreadRead(ctx context.Context, conversationID int64) error {
	url := fmt.Sprintf("%s/api/conversations/%d/read/", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: mark thread read: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *HTTPClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}
