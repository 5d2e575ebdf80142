// Package ibroadcast talks to the iBroadcast HTTP API: play queue tokens,
// library downloads and signed stream URLs.
package ibroadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/player"
)

const (
	DefaultAPIURL          = "https://api.ibroadcast.com"
	DefaultLibraryURL      = "https://library.ibroadcast.com"
	DefaultStreamingServer = "https://streaming.ibroadcast.com"
	DefaultQueueURL        = "wss://queue.ibroadcast.com/ws?onequeue=1"

	// StreamVersion is reported in stream URLs.
	StreamVersion = "0.1"

	defaultTimeout = 30 * time.Second
)

// ErrUnauthenticated is returned when the API rejects the access token.
var ErrUnauthenticated = errors.New("ibroadcast: not authenticated")

// Config holds API endpoints and credentials.
type Config struct {
	APIURL      string
	LibraryURL  string
	AccessToken string
	// Platform is the client name sent with stream requests.
	Platform string
	Timeout  time.Duration
}

// Client is an iBroadcast API client. It implements player.TokenSource,
// player.Streamer and library.Source.
type Client struct {
	cfg  Config
	http *resty.Client
	now  func() time.Time

	mu              sync.RWMutex
	streamingServer string
}

// NewClient creates a client, filling unset endpoints with the public ones.
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.LibraryURL == "" {
		cfg.LibraryURL = DefaultLibraryURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.LibraryURL = strings.TrimRight(cfg.LibraryURL, "/")

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.AccessToken)

	return &Client{
		cfg:             cfg,
		http:            httpClient,
		now:             time.Now,
		streamingServer: DefaultStreamingServer,
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

type statusResponse struct {
	Result  bool            `json:"result"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
	User    json.RawMessage `json:"user"`
}

// PlayQueueToken requests a one-time token for the play queue socket.
func (c *Client) PlayQueueToken(ctx context.Context) (player.Session, error) {
	var out statusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"mode": "playqueue_token"}).
		SetResult(&out).
		Post(c.cfg.APIURL + "/s/JSON/status")
	if err != nil {
		return player.Session{}, fmt.Errorf("play queue token request failed: %w", err)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return player.Session{}, ErrUnauthenticated
	}
	if resp.IsError() {
		return player.Session{}, fmt.Errorf("play queue token request failed: status %d", resp.StatusCode())
	}
	if !out.Result || out.Token == "" {
		if out.Message != "" {
			return player.Session{}, fmt.Errorf("%w: %s", ErrUnauthenticated, out.Message)
		}
		return player.Session{}, ErrUnauthenticated
	}

	session := player.Session{Token: out.Token, SessionUUID: sessionUUID(out.User)}
	log.Debug().Bool("session", session.SessionUUID != "").Msg("Play queue token issued")
	return session, nil
}

// sessionUUID finds the session id in the user block. It appears either as
// user.session_uuid, user.session.session_uuid or a plain user.session string.
func sessionUUID(raw json.RawMessage) string {
	var user map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &user) != nil {
		return ""
	}

	var s string
	if json.Unmarshal(user["session_uuid"], &s) == nil && s != "" {
		return s
	}

	session := user["session"]
	if json.Unmarshal(session, &s) == nil && s != "" {
		return s
	}
	var obj struct {
		SessionUUID string `json:"session_uuid"`
	}
	if json.Unmarshal(session, &obj) == nil {
		return obj.SessionUUID
	}
	return ""
}

// StreamURL builds a signed URL for a track. It returns "" when the track
// has no file.
func (c *Client) StreamURL(t library.Track) string {
	if t.File == "" {
		return ""
	}

	q := url.Values{}
	q.Set("Expires", strconv.FormatInt(c.now().UnixMilli(), 10))
	q.Set("Signature", c.cfg.AccessToken)
	q.Set("file_id", t.File)
	q.Set("platform", c.cfg.Platform)
	q.Set("version", StreamVersion)

	return c.StreamingServer() + t.File + "?" + q.Encode()
}

// StreamingServer returns the server announced by the last library download.
func (c *Client) StreamingServer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamingServer
}
