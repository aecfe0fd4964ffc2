package sunshine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"support-agent/internal/domain"
)

const (
	defaultBaseURL = "https://api.smooch.io"
	tokenTTL       = 5 * time.Minute
)

// AuthMode selects how requests are authenticated.
type AuthMode string

const (
	AuthBasic AuthMode = "basic"
	AuthJWT   AuthMode = "jwt"
)

// Credentials identify the app and its API key.
type Credentials struct {
	AppID  string `json:"app_id"`
	KeyID  string `json:"key_id"`
	Secret string `json:"secret"`
}

type author struct {
	Type string `json:"type"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type postMessageRequest struct {
	Author   author            `json:"author"`
	Content  content           `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HTTPStatusError captures non-2xx responses from the conversations API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sunshine: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts messages into conversations.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	mode       AuthMode
	now        func() time.Time
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

func WithAuthMode(mode AuthMode) Option {
	return func(c *Client) {
		if mode != "" {
			c.mode = mode
		}
	}
}

// New creates a Client for the app in creds.
func New(creds Credentials, opts ...Option) (*Client, error) {
	creds.AppID = strings.TrimSpace(creds.AppID)
	creds.KeyID = strings.TrimSpace(creds.KeyID)
	if creds.AppID == "" {
		return nil, errors.New("sunshine: app id must not be empty")
	}
	if creds.KeyID == "" || creds.Secret == "" {
		return nil, errors.New("sunshine: key id and secret must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		creds:      creds,
		mode:       AuthBasic,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mode != AuthBasic && c.mode != AuthJWT {
		return nil, fmt.Errorf("sunshine: unsupported auth mode %q", c.mode)
	}
	return c, nil
}

func (c *Client) messagesURL(conversationID string) string {
	return fmt.Sprintf("%s/v2/apps/%s/conversations/%s/messages",
		strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.creds.AppID), url.PathEscape(conversationID))
}

// SendMessage posts a text message authored by msg.AuthorRole.
func (c *Client) SendMessage(ctx context.Context, msg domain.Outbound) error {
	conversationID := strings.TrimSpace(msg.ConversationID)
	if conversationID == "" {
		return errors.New("sunshine: conversation id must not be empty")
	}
	role := msg.AuthorRole
	if role == "" {
		role = domain.AuthorTypeBusiness
	}

	body, err := json.Marshal(postMessageRequest{
		Author:   author{Type: role},
		Content:  content{Type: "text", Text: msg.Text},
		Metadata: msg.Metadata,
	})
	if err != nil {
		return fmt.Errorf("sunshine: marshal message: %w", err)
	}

	endpoint := c.messagesURL(conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sunshine: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sunshine: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	if c.mode == AuthBasic {
		req.SetBasicAuth(c.creds.KeyID, c.creds.Secret)
		return nil
	}
	token, err := c.signToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// signToken issues a short-lived app-scoped HS256 token.
func (c *Client) signToken() (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope": "app",
		"iss":   c.creds.AppID,
		"sub":   c.creds.KeyID,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	})
	token.Header["kid"] = c.creds.KeyID
	signed, err := token.SignedString([]byte(c.creds.Secret))
	if err != nil {
		return "", fmt.Errorf("sunshine: sign token: %w", err)
	}
	return signed, nil
}
