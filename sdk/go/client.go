package sdk

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

	"github.com/gorilla/websocket"

	"loyaltykit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the loyaltykit HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Ingest records one activity event on a participant track and returns the
// updated stats.
func (c *Client) Ingest(ctx context.Context, participant string, track core.Track, ev core.Event) (Stats, error) {
	if strings.TrimSpace(participant) == "" {
		return Stats{}, ErrEmptyParticipantID
	}
	if ev == nil {
		return Stats{}, errors.New("event is required")
	}
	body, err := core.EncodeEvent(ev)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	err = c.do(ctx, http.MethodPost, c.participantPath(participant, string(track), "events"), nil, body, &st)
	return st, err
}

// Stats fetches the current view of a participant track.
func (c *Client) Stats(ctx context.Context, participant string, track core.Track) (Stats, error) {
	if strings.TrimSpace(participant) == "" {
		return Stats{}, ErrEmptyParticipantID
	}
	var st Stats
	err := c.do(ctx, http.MethodGet, c.participantPath(participant, string(track)), nil, nil, &st)
	return st, err
}

// SetProfile stores the country and city used by partitioned rankings.
func (c *Client) SetProfile(ctx context.Context, participant string, p Profile) (Profile, error) {
	if strings.TrimSpace(participant) == "" {
		return Profile{}, ErrEmptyParticipantID
	}
	body, err := json.Marshal(p)
	if err != nil {
		return Profile{}, err
	}
	var saved Profile
	err = c.do(ctx, http.MethodPut, c.participantPath(participant, "profile"), nil, body, &saved)
	return saved, err
}

// Profile fetches the stored profile of a participant.
func (c *Client) Profile(ctx context.Context, participant string) (Profile, error) {
	if strings.TrimSpace(participant) == "" {
		return Profile{}, ErrEmptyParticipantID
	}
	var p Profile
	err := c.do(ctx, http.MethodGet, c.participantPath(participant, "profile"), nil, nil, &p)
	return p, err
}

// Notifications returns the newest queued notifications, oldest first.
// limit <= 0 uses the server default.
func (c *Client) Notifications(ctx context.Context, participant string, limit int) ([]Notification, error) {
	if strings.TrimSpace(participant) == "" {
		return nil, ErrEmptyParticipantID
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var body struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, c.participantPath(participant, "notifications"), q, nil, &body); err != nil {
		return nil, err
	}
	return body.Notifications, nil
}

// Rankings fetches the ranking of a track.
func (c *Client) Rankings(ctx context.Context, track core.Track, query RankingQuery) (Rankings, error) {
	q := url.Values{}
	if query.By != "" {
		q.Set("by", string(query.By))
	}
	if query.Key != "" {
		q.Set("key", query.Key)
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	var r Rankings
	err := c.do(ctx, http.MethodGet, "/rankings/"+url.PathEscape(string(track)), q, nil, &r)
	return r, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	// unhealthy responses still carry a status body
	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("decode health: %w", err)
	}
	return hs, nil
}

// SubscribeNotifications connects to the WebSocket stream and emits
// notifications, optionally only those of one participant.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeNotifications(ctx context.Context, participant string) (<-chan Notification, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if participant != "" {
		target += "?participant=" + url.QueryEscape(participant)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	// unblock ReadJSON when ctx ends
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	out := make(chan Notification, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var n Notification
			if err := conn.ReadJSON(&n); err != nil {
				return
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) participantPath(participant string, rest ...string) string {
	parts := []string{"/participants", url.PathEscape(participant)}
	for _, r := range rest {
		parts = append(parts, url.PathEscape(r))
	}
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, target any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
