package guard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the dashboard service's security and session endpoints
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given service base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken sets the bearer token used on authenticated calls
func (c *Client) SetToken(token string) {
	c.token = token
}

// LockoutStatus mirrors the locked surface payload
type LockoutStatus struct {
	Locked      bool  `json:"locked"`
	RemainingMs int64 `json:"remaining_ms"`
	LockoutEnd  int64 `json:"lockout_end"` // epoch milliseconds
}

// SessionStatus mirrors the session guard poll payload
type SessionStatus struct {
	ForceLogoutAt   *time.Time `json:"force_logout_at"`
	MaintenanceMode bool       `json:"maintenance_mode"`
	Role            string     `json:"role"`
}

// VerifyResult mirrors the verify-key response
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// UnlockResult mirrors the unlock response
type UnlockResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckIPLockout asks the server for the caller's lockout state
func (c *Client) CheckIPLockout() (*LockoutStatus, error) {
	var status LockoutStatus
	if err := c.getJSON("/locked", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SessionStatus fetches the signals the session guard watches
func (c *Client) SessionStatus() (*SessionStatus, error) {
	var status SessionStatus
	if err := c.getJSON("/api/session/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// VerifyKey validates the override secret without changing state
func (c *Client) VerifyKey(key string) (*VerifyResult, error) {
	var result VerifyResult
	err := c.postJSON("/api/security/verify-key", map[string]string{"key": key}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Unlock submits the override secret to lift the caller's lockout
func (c *Client) Unlock(key string) (*UnlockResult, error) {
	var result UnlockResult
	err := c.postJSON("/api/security/unlock", map[string]string{"key": key}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LogSecurityEvent reports a security event; fire-and-forget on the server
func (c *Client) LogSecurityEvent(userID, reason string) error {
	payload := map[string]string{"reason": reason}
	if userID != "" {
		payload["user_id"] = userID
	}
	return c.postJSON("/api/security/events", payload, nil)
}

// Signout ends the current session
func (c *Client) Signout() error {
	return c.postJSON("/api/auth/signout", struct{}{}, nil)
}

// WebSocketURL returns the guard push endpoint for the given user
func (c *Client) WebSocketURL(userID string) string {
	wsBase := c.baseURL
	if strings.HasPrefix(wsBase, "https://") {
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	} else if strings.HasPrefix(wsBase, "http://") {
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	return wsBase + "/ws/guard/" + userID
}

func (c *Client) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) postJSON(path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request to %s failed with status %d", req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
