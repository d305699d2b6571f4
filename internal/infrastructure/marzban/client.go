// Package marzban is a provisioning.Client for Marzban-compatible relay panels.
package marzban

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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

const (
	// Panel tokens live 30 minutes; refresh early.
	tokenLifetime = 25 * time.Minute
	// Maximum response body size read from a panel (1MB)
	maxResponseSize = 1 << 20
)

var errNotFound = errors.New("marzban: not found")

// proxyOrder is the preference used when picking a protocol for new accounts.
var proxyOrder = []string{"vless", "vmess", "trojan", "shadowsocks"}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	Username        string `json:"username"`
	Status          string `json:"status"`
	UsedTraffic     int64  `json:"used_traffic"`
	DataLimit       *int64 `json:"data_limit"`
	Expire          *int64 `json:"expire"`
	SubscriptionURL string `json:"subscription_url"`
}

type userRequest struct {
	Username               string                       `json:"username,omitempty"`
	Proxies                map[string]map[string]string `json:"proxies,omitempty"`
	Inbounds               map[string][]string          `json:"inbounds,omitempty"`
	DataLimit              int64                        `json:"data_limit"`
	DataLimitResetStrategy string                       `json:"data_limit_reset_strategy,omitempty"`
	Expire                 int64                        `json:"expire"`
	Status                 string                       `json:"status,omitempty"`
	Note                   string                       `json:"note,omitempty"`
}

type systemResponse struct {
	TotalUser   int `json:"total_user"`
	UsersActive int `json:"users_active"`
}

type inbound struct {
	Tag      string `json:"tag"`
	Protocol string `json:"protocol"`
}

// Client talks to one panel. It is safe for concurrent use.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     logger.Interface
	now        biztime.Clock

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

var _ provisioning.Client = (*Client)(nil)

func NewClient(endpoint, username, password string, httpClient *http.Client, logger logger.Interface) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(endpoint, "/"),
		username:   username,
		password:   password,
		httpClient: httpClient,
		logger:     logger,
		now:        biztime.SystemClock,
	}
}

func (c *Client) CreateAccount(ctx context.Context, spec provisioning.AccountSpec) (*provisioning.Account, error) {
	proxies, err := c.proxiesForNewAccount(ctx)
	if err != nil {
		return nil, err
	}
	req := userRequest{
		Username:               spec.Username,
		Proxies:                proxies,
		DataLimit:              spec.TrafficLimitBytes,
		DataLimitResetStrategy: "no_reset",
		Expire:                 expireUnix(spec.ExpiresAt),
		Status:                 "active",
		Note:                   deviceNote(spec.DeviceLimit),
	}
	var user userResponse
	if err := c.do(ctx, http.MethodPost, "/api/user", req, &user); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", provisioning.ErrProvisioningFailed, spec.Username, err)
	}
	return toAccount(user), nil
}

func (c *Client) GetAccount(ctx context.Context, username string) (*provisioning.Account, error) {
	var user userResponse
	err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username), nil, &user)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", provisioning.ErrProvisioningFailed, username, err)
	}
	return toAccount(user), nil
}

func (c *Client) UpdateAccount(ctx context.Context, spec provisioning.AccountSpec) (*provisioning.Account, error) {
	req := userRequest{
		DataLimit: spec.TrafficLimitBytes,
		Expire:    expireUnix(spec.ExpiresAt),
		Status:    "active",
		Note:      deviceNote(spec.DeviceLimit),
	}
	var user userResponse
	if err := c.do(ctx, http.MethodPut, "/api/user/"+url.PathEscape(spec.Username), req, &user); err != nil {
		return nil, fmt.Errorf("%w: update %s: %v", provisioning.ErrProvisioningFailed, spec.Username, err)
	}
	return toAccount(user), nil
}

func (c *Client) DeleteAccount(ctx context.Context, username string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/api/user/"+url.PathEscape(username), nil, nil)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", provisioning.ErrProvisioningFailed, username, err)
	}
	return true, nil
}

// GetConnectionDescriptor returns the panel's subscription URL, made absolute
// against the panel endpoint when the panel reports a relative path.
func (c *Client) GetConnectionDescriptor(ctx context.Context, username string) (string, error) {
	acc, err := c.GetAccount(ctx, username)
	if err != nil {
		return "", err
	}
	if acc == nil || acc.SubscriptionURL == "" {
		return "", fmt.Errorf("%w: no subscription for %s", provisioning.ErrProvisioningFailed, username)
	}
	if strings.HasPrefix(acc.SubscriptionURL, "/") {
		return c.baseURL + acc.SubscriptionURL, nil
	}
	return acc.SubscriptionURL, nil
}

func (c *Client) GetLoadStats(ctx context.Context) (*provisioning.LoadStats, error) {
	var stats systemResponse
	if err := c.do(ctx, http.MethodGet, "/api/system", nil, &stats); err != nil {
		return nil, fmt.Errorf("%w: system stats: %v", provisioning.ErrProvisioningFailed, err)
	}
	current := stats.TotalUser
	if current == 0 {
		current = stats.UsersActive
	}
	return &provisioning.LoadStats{CurrentUsers: current}, nil
}

// proxiesForNewAccount picks the first protocol the panel has inbounds for.
func (c *Client) proxiesForNewAccount(ctx context.Context) (map[string]map[string]string, error) {
	var inbounds map[string][]inbound
	if err := c.do(ctx, http.MethodGet, "/api/inbounds", nil, &inbounds); err != nil {
		return nil, fmt.Errorf("%w: inbounds: %v", provisioning.ErrProvisioningFailed, err)
	}
	for _, protocol := range proxyOrder {
		if len(inbounds[protocol]) == 0 {
			continue
		}
		switch protocol {
		case "vless":
			return map[string]map[string]string{"vless": {"id": uuid.NewString(), "flow": ""}}, nil
		case "vmess":
			return map[string]map[string]string{"vmess": {"id": uuid.NewString()}}, nil
		case "trojan":
			return map[string]map[string]string{"trojan": {"password": uuid.NewString()}}, nil
		case "shadowsocks":
			return map[string]map[string]string{"shadowsocks": {"password": uuid.NewString(), "method": "chacha20-ietf-poly1305"}}, nil
		}
	}
	return nil, fmt.Errorf("%w: panel has no proxy inbounds", provisioning.ErrProvisioningFailed)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpires) {
		return c.token, nil
	}

	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request rejected: %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}
	c.token = tok.AccessToken
	c.tokenExpires = c.now().Add(tokenLifetime)
	return c.token, nil
}

func (c *Client) dropToken(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == stale {
		c.token = ""
	}
}

// do sends an authenticated request, re-authenticating once on 401.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = data
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.logger.Debugw("panel token rejected, re-authenticating",
				"endpoint", c.baseURL,
				"token", utils.MaskSecret(token),
			)
			c.dropToken(token)
			continue
		}
		err = decodeResponse(resp, out)
		resp.Body.Close()
		return err
	}
	return fmt.Errorf("unauthorized")
}

func decodeResponse(resp *http.Response, out any) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	case out == nil || resp.StatusCode == http.StatusNoContent:
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func toAccount(u userResponse) *provisioning.Account {
	acc := &provisioning.Account{
		Username:         u.Username,
		Status:           u.Status,
		UsedTrafficBytes: u.UsedTraffic,
		SubscriptionURL:  u.SubscriptionURL,
	}
	if u.DataLimit != nil {
		acc.DataLimitBytes = *u.DataLimit
	}
	if u.Expire != nil && *u.Expire > 0 {
		t := time.Unix(*u.Expire, 0).UTC()
		acc.ExpiresAt = &t
	}
	return acc
}

// expireUnix maps "never" to 0, which the panel reads as no expiry.
func expireUnix(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func deviceNote(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("device_limit=%d", limit)
}
