package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// TokenGrant is the result of an OAuth code exchange or refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
}

type tokenPayload struct {
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	ExpiresIn        json.Number `json:"expires_in"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

// ExchangeCode trades an authorization code for a token pair. The
// exchange goes through the tenant portal itself, not the OAuth host.
func (c *Client) ExchangeCode(ctx context.Context, domain, code string) (*TokenGrant, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {c.redirectURI},
	}
	endpoint := fmt.Sprintf("%s://%s/oauth/token/", c.scheme, domain)
	return c.requestToken(ctx, endpoint, form)
}

// RefreshToken trades a refresh token for a fresh pair via the shared
// OAuth host. The submitted refresh token is consumed whether or not
// the caller sees the response, so the result must be persisted before
// anything else uses it. A rejected grant returns ErrInvalidGrant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}
	return c.requestToken(ctx, c.oauthHost+"/oauth/token/", form)
}

func (c *Client) requestToken(ctx context.Context, endpoint string, form url.Values) (*TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("token response: %w", err)
	}

	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("token decode (status %d): %w", resp.StatusCode, err)
	}
	if payload.Error != "" {
		if payload.Error == "invalid_grant" {
			return nil, fmt.Errorf("%s: %w", payload.ErrorDescription, ErrInvalidGrant)
		}
		return nil, &APIError{Code: payload.Error, Description: payload.ErrorDescription}
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token (status %d)", resp.StatusCode)
	}

	expires, err := strconv.ParseInt(payload.ExpiresIn.String(), 10, 64)
	if err != nil {
		expires = 3600
	}
	return &TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    expires,
	}, nil
}
