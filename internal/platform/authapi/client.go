package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hrmportal/internal/domain/session"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 8 << 20
)

// Client talks to the external Auth API and proxies protected calls to the
// HRM REST API that lives behind the same base URL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != nil {
		return e.Error.Message
	}
	return ""
}

type tokenPayload struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

type grantPayload struct {
	Access  tokenPayload   `json:"access"`
	Refresh tokenPayload   `json:"refresh"`
	Profile *session.User  `json:"profile"`
	Admin   *session.Admin `json:"admin"`
}

func (g grantPayload) tokens() session.Tokens {
	return session.Tokens{
		Access:         g.Access.Token,
		Refresh:        g.Refresh.Token,
		AccessExpires:  parseExpiry(g.Access.Expires),
		RefreshExpires: parseExpiry(g.Refresh.Expires),
	}
}

func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.UserGrant, error) {
	var out grantPayload
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", creds, &out, session.KindInvalidCredentials); err != nil {
		return session.UserGrant{}, err
	}
	if out.Access.Token == "" || out.Profile == nil {
		return session.UserGrant{}, session.NewError(session.KindNetworkFailure, "", errors.New("login response missing token or profile"))
	}
	return session.UserGrant{Tokens: out.tokens(), Profile: *out.Profile}, nil
}

func (c *Client) AdminLogin(ctx context.Context, creds session.Credentials) (session.AdminGrant, error) {
	var out grantPayload
	if err := c.call(ctx, http.MethodPost, "/auth/admin-login", "", creds, &out, session.KindInvalidCredentials); err != nil {
		return session.AdminGrant{}, err
	}
	if out.Access.Token == "" || out.Admin == nil {
		return session.AdminGrant{}, session.NewError(session.KindNetworkFailure, "", errors.New("admin login response missing token or admin"))
	}
	return session.AdminGrant{Tokens: out.tokens(), Admin: *out.Admin}, nil
}

func (c *Client) Logout(ctx context.Context, tokens session.Tokens) error {
	body := map[string]string{"access_token": tokens.Access, "refresh_token": tokens.Refresh}
	return c.call(ctx, http.MethodPost, "/auth/logout", tokens.Access, body, nil, session.KindInvalidCredentials)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.Tokens, error) {
	var out grantPayload
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.call(ctx, http.MethodPost, "/auth/refresh-token", "", body, &out, session.KindInvalidCredentials); err != nil {
		return session.Tokens{}, err
	}
	return out.tokens(), nil
}

func (c *Client) ChangePassword(ctx context.Context, accessToken string, in session.ChangePasswordInput) error {
	return c.call(ctx, http.MethodPut, "/auth/change-password", accessToken, in, nil, session.KindValidationFailure)
}

func (c *Client) ForgetPassword(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPut, "/auth/forget-password", "", map[string]string{"email": email}, nil, session.KindValidationFailure)
}

func (c *Client) VerifyForgetPasswordCode(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "code": code}
	return c.call(ctx, http.MethodPut, "/auth/verify-forget-password-code", "", body, nil, session.KindValidationFailure)
}

func (c *Client) ResetPassword(ctx context.Context, in session.ResetPasswordInput) error {
	return c.call(ctx, http.MethodPut, "/auth/reset-password", "", in, nil, session.KindValidationFailure)
}

func (c *Client) ResendVerificationCode(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPut, "/auth/resend-verification-code", "", map[string]string{"email": email}, nil, session.KindValidationFailure)
}

// Do forwards a protected request with the bearer token and hands back the raw
// response. Status handling belongs to the caller.
func (c *Client) Do(ctx context.Context, accessToken string, req session.Request) (session.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(req.Path), body)
	if err != nil {
		return session.Response{}, err
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return session.Response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return session.Response{}, fmt.Errorf("read %s %s: %w", method, req.Path, err)
	}
	return session.Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}

// call sends one JSON request and decodes the envelope. 4xx answers become
// clientKind failures carrying the server message; transport errors, 5xx
// answers and unreadable bodies become network failures.
func (c *Client) call(ctx context.Context, method, path, bearer string, in, out any, clientKind session.Kind) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return session.NewError(session.KindNetworkFailure, "", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return session.NewError(session.KindNetworkFailure, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger().Debug("auth api unreachable", "method", method, "path", path, "err", err)
		return session.NewError(session.KindNetworkFailure, "", err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&env)

	switch {
	case resp.StatusCode >= 500:
		return session.NewError(session.KindNetworkFailure, "", fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
	case resp.StatusCode >= 400:
		kind := clientKind
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = session.KindInvalidCredentials
		}
		return session.NewError(kind, env.text(), fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
	}
	if decodeErr != nil {
		return session.NewError(session.KindNetworkFailure, "", fmt.Errorf("decode %s: %w", path, decodeErr))
	}
	if !env.Success {
		return session.NewError(clientKind, env.text(), nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return session.NewError(session.KindNetworkFailure, "", fmt.Errorf("decode %s data: %w", path, err))
	}
	return nil
}

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func parseExpiry(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
