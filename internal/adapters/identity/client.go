package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/pkg/logger"
)

// Refresh a token this long before its reported expiry.
const tokenExpirySkew = 2 * time.Minute

// Client implements Provider against an identity-toolkit style REST API
// (signInWithPassword / signUp, with a separate secure-token refresh
// endpoint).
type Client struct {
	baseURL  string
	tokenURL string
	apiKey   string
	http     *http.Client
	log      logger.Logger

	eventsMu sync.Mutex
	events   chan *Session
	closed   bool

	mu        sync.Mutex
	idToken   string
	refresh   string
	expiresAt time.Time
}

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTokenURL overrides the secure-token refresh endpoint.
func WithTokenURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.tokenURL = u
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a provider client. baseURL points at the identity
// toolkit (e.g. "https://identitytoolkit.googleapis.com/v1").
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenURL: "https://securetoken.googleapis.com/v1/token",
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      logger.Discard(),
		events:   make(chan *Session, 8),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the session event stream.
func (c *Client) Events() <-chan *Session {
	return c.events
}

// Close shuts the event stream down. Emits racing with or following Close
// are dropped.
func (c *Client) Close() {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges email/password for a session and emits it on the stream.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "accounts:signInWithPassword", email, password)
}

// Register creates a new identity and signs it in.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "accounts:signUp", email, password)
}

func (c *Client) authenticate(ctx context.Context, endpoint, email, password string) error {
	body, err := json.Marshal(map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentity, err)
	}

	u := fmt.Sprintf("%s/%s?key=%s", c.baseURL, endpoint, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentity, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentity, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentity, err)
	}
	if resp.StatusCode != http.StatusOK {
		var pe providerError
		if json.Unmarshal(raw, &pe) == nil && pe.Error.Message != "" {
			return fmt.Errorf("%w: %s", ErrIdentity, pe.Error.Message)
		}
		return fmt.Errorf("%w: status %d", ErrIdentity, resp.StatusCode)
	}

	var auth authResponse
	if err := json.Unmarshal(raw, &auth); err != nil {
		return fmt.Errorf("%w: %w", ErrIdentity, err)
	}

	c.storeTokens(auth)
	c.emit(&Session{
		Identity: model.Identity{UID: auth.LocalID, Email: auth.Email},
		Token:    c.tokenSource(),
	})
	return nil
}

// SignOut drops the local tokens and confirms on the stream with a nil
// event. The imperative call may return before the consumer observes the
// confirmation.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.idToken = ""
	c.refresh = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()

	c.emit(nil)
	return nil
}

func (c *Client) storeTokens(auth authResponse) {
	ttl, err := strconv.Atoi(auth.ExpiresIn)
	if err != nil {
		// Unparseable expiry falls back to the toolkit's default hour.
		ttl = 3600
	}
	// A reported expiry of zero or less is honored as already expired, so
	// the next token call takes the refresh path.
	expiresAt := time.Now()
	if ttl > 0 {
		expiresAt = expiresAt.Add(time.Duration(ttl) * time.Second)
	}

	c.mu.Lock()
	c.idToken = auth.IDToken
	c.refresh = auth.RefreshToken
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

// tokenSource returns the session's bearer-token supplier. The cached token
// is served until near expiry, then refreshed through the token endpoint.
func (c *Client) tokenSource() TokenSource {
	return func(ctx context.Context) (string, error) {
		c.mu.Lock()
		token, refresh, expiresAt := c.idToken, c.refresh, c.expiresAt
		c.mu.Unlock()

		if token == "" {
			return "", fmt.Errorf("%w: signed out", ErrIdentity)
		}
		if time.Until(expiresAt) > tokenExpirySkew {
			return token, nil
		}
		return c.refreshToken(ctx, refresh)
	}
}

func (c *Client) refreshToken(ctx context.Context, refresh string) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
	}
	u := fmt.Sprintf("%s?key=%s", c.tokenURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIdentity, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIdentity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token refresh failed with status %d", ErrIdentity, resp.StatusCode)
	}

	var out struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIdentity, err)
	}

	c.storeTokens(authResponse{
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	})
	return out.IDToken, nil
}

func (c *Client) emit(s *Session) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.events <- s:
	default:
		// The consumer is the sync actor; if its mailbox wedged, dropping
		// the oldest view of "current identity" is safe because only the
		// latest event matters.
		select {
		case <-c.events:
		default:
		}
		c.events <- s
	}
}
