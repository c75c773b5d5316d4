// Package turn fetches short-lived relay credentials from a hosted TURN
// provider's token API and narrows the result to relay-only servers.
package turn

import (
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

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConfigured = errors.New("turn provider not configured")
	ErrUpstream      = errors.New("turn upstream error")
	// ErrNoRelay is returned when the provider answered but offered no TURN
	// server, so callers can tell it apart from a STUN-only setup.
	ErrNoRelay = fmt.Errorf("%w: no turn servers in response", ErrUpstream)
)

const (
	DefaultAPIBase = "https://api.twilio.com"
	DefaultTTL     = 600 * time.Second
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

type Config struct {
	AccountSID string
	AuthToken  string
	APIBase    string
	TTL        time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (c Config) WithDefaults() Config {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.WithDefaults()}
}

func (c *Client) Configured() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != ""
}

type tokenResponse struct {
	ICEServers []upstreamServer `json:"ice_servers"`
}

// Credentials requests a token valid for the configured TTL and returns its
// TURN entries.
func (c *Client) Credentials(ctx context.Context) ([]webrtc.ICEServer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Tokens.json",
		strings.TrimRight(c.cfg.APIBase, "/"), url.PathEscape(c.cfg.AccountSID))
	form := url.Values{"Ttl": {strconv.Itoa(int(c.cfg.TTL / time.Second))}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Str("module", "turn").Int("status", resp.StatusCode).Msg("token api rejected request")
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	relays := FilterRelay(tr.ICEServers)
	if len(relays) == 0 {
		return nil, ErrNoRelay
	}
	log.Debug().Str("module", "turn").Int("upstream", len(tr.ICEServers)).Int("relays", len(relays)).Msg("fetched turn credentials")
	return relays, nil
}
