package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrTicketNotFound is returned when no ticket is linked to a conversation.
var ErrTicketNotFound = errors.New("zendesk: no ticket linked to conversation")

// Credentials authenticate as an agent using an API token.
type Credentials struct {
	Subdomain string `json:"subdomain"`
	Email     string `json:"email"`
	APIToken  string `json:"token"`
}

type ticket struct {
	ID         int64    `json:"id"`
	Tags       []string `json:"tags"`
	ResultType string   `json:"result_type"`
}

type searchResponse struct {
	Results []ticket `json:"results"`
	Count   int      `json:"count"`
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

// HTTPStatusError captures non-2xx responses from the Support API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("zendesk: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client reads and writes ticket tags. Tickets are linked to conversations
// through their external_id.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if b := strings.TrimSpace(baseURL); b != "" {
			c.baseURL = b
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(creds Credentials, opts ...Option) (*Client, error) {
	creds.Subdomain = strings.TrimSpace(creds.Subdomain)
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Subdomain == "" {
		return nil, errors.New("zendesk: subdomain must not be empty")
	}
	if creds.Email == "" || creds.APIToken == "" {
		return nil, errors.New("zendesk: email and api token must not be empty")
	}
	c := &Client{
		baseURL:    fmt.Sprintf("https://%s.zendesk.com", creds.Subdomain),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		creds:      creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tags returns the tags of the ticket linked to conversationID. A
// conversation without a ticket has no tags.
func (c *Client) Tags(ctx context.Context, conversationID string) ([]string, error) {
	t, err := c.findTicket(ctx, conversationID)
	if errors.Is(err, ErrTicketNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t.Tags, nil
}

// AddTag adds tag to the ticket linked to conversationID, keeping existing tags.
func (c *Client) AddTag(ctx context.Context, conversationID, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("zendesk: tag must not be empty")
	}
	t, err := c.findTicket(ctx, conversationID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(tagsRequest{Tags: []string{tag}})
	if err != nil {
		return fmt.Errorf("zendesk: marshal tags: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/v2/tickets/%s/tags.json", strings.TrimRight(c.baseURL, "/"), strconv.FormatInt(t.ID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("zendesk: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := c.do(req, endpoint); err != nil {
		return fmt.Errorf("zendesk: add tag: %w", err)
	}
	return nil
}

func (c *Client) findTicket(ctx context.Context, conversationID string) (ticket, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return ticket{}, errors.New("zendesk: conversation id must not be empty")
	}
	q := url.Values{}
	q.Set("query", fmt.Sprintf("type:ticket external_id:%q", conversationID))
	endpoint := strings.TrimRight(c.baseURL, "/") + "/api/v2/search.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ticket{}, fmt.Errorf("zendesk: create request: %w", err)
	}
	raw, err := c.do(req, endpoint)
	if err != nil {
		return ticket{}, fmt.Errorf("zendesk: search ticket: %w", err)
	}

	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ticket{}, fmt.Errorf("zendesk: decode search response: %w", err)
	}
	for _, t := range out.Results {
		if t.ResultType == "" || t.ResultType == "ticket" {
			return t, nil
		}
	}
	return ticket{}, ErrTicketNotFound
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	req.SetBasicAuth(c.creds.Email+"/token", c.creds.APIToken)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
