package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkproof/internal/services"
)

// ErrCodeRejected is returned when the panel refuses an operator code.
var ErrCodeRejected = errors.New("invalid or expired code")

// HTTPDoer describes the HTTP client used for panel calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Grant is the panel's answer to a successful code exchange.
type Grant struct {
	CustomToken string `json:"customToken"`
	TenantID    string `json:"tenantId"`
	OperatorID  string `json:"operatorId"`
	Label       string `json:"label"`
}

// Client exchanges one-time operator codes for a session grant.
type Client struct {
	baseURL string
	client  HTTPDoer
}

// New builds a panel client. A nil doer uses an http.Client with timeout.
func New(baseURL string, timeout time.Duration, doer HTTPDoer) *Client {
	if doer == nil {
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), client: doer}
}

// Exchange posts the code to /api/code/exchange.
func (c *Client) Exchange(ctx context.Context, code string) (Grant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Grant{}, services.Wrap(services.ErrValidation, "panel", "exchange", "code is empty", nil)
	}
	if c.baseURL == "" {
		return Grant{}, services.Wrap(services.ErrConfiguration, "panel", "exchange", "session.panel_url is not set", nil)
	}

	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return Grant{}, fmt.Errorf("marshal exchange request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/code/exchange", bytes.NewReader(body))
	if err != nil {
		return Grant{}, services.Wrap(services.ErrConfiguration, "panel", "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return Grant{}, services.Wrap(marker, "panel", "exchange", "network error while validating code", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return Grant{}, services.Wrap(services.ErrTransient, "panel", "exchange", fmt.Sprintf("panel returned %d", resp.StatusCode), nil)
		}
		return Grant{}, fmt.Errorf("%w (status %d)", ErrCodeRejected, resp.StatusCode)
	}

	var grant Grant
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&grant); err != nil {
		return Grant{}, services.Wrap(services.ErrExternalTool, "panel", "exchange", "decode response", err)
	}
	if grant.CustomToken == "" || grant.OperatorID == "" {
		return Grant{}, services.Wrap(services.ErrExternalTool, "panel", "exchange", "response missing customToken or operatorId", nil)
	}
	return grant, nil
}
