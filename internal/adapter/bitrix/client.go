// Package bitrix provides an HTTP client for the Bitrix24 REST API and
// its OAuth token endpoints.
package bitrix

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

	"github.com/Iceeze/BitrixAssistant/internal/resilience"
)

// ErrInvalidGrant marks a permanently rejected OAuth grant. The refresh
// flow rotates the refresh token on every use, so this is terminal for
// the stored credential.
var ErrInvalidGrant = errors.New("bitrix: invalid grant")

// APIError is a REST-level error payload returned by the portal.
type APIError struct {
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("bitrix API %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("bitrix API %s", e.Code)
}

// Client talks to a Bitrix24 portal's REST surface. REST methods are
// addressed per tenant domain; token refresh goes through the shared
// OAuth host.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	oauthHost    string
	scheme       string // "https"; tests switch to "http"
	httpClient   *http.Client
	breaker      *resilience.Breaker
}

// NewClient creates a portal client with the given application credentials.
func NewClient(clientID, clientSecret, redirectURI, oauthHost string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		oauthHost:    oauthHost,
		scheme:       "https",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// restEnvelope is the common REST response wrapper.
type restEnvelope struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (c *Client) restURL(domain, method string) string {
	return fmt.Sprintf("%s://%s/rest/%s", c.scheme, domain, method)
}

// getREST issues a GET REST call. params must already include "auth".
func (c *Client) getREST(ctx context.Context, domain, method string, params url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.restURL(domain, method)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	return c.doREST(req, method)
}

// postJSON issues a POST REST call with a JSON body, authenticating via
// the "auth" query parameter.
func (c *Client) postJSON(ctx context.Context, domain, method, token string, body any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s marshal: %w", method, err)
	}

	u := c.restURL(domain, method) + "?" + url.Values{"auth": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doREST(req, method)
}

// postForm issues a POST REST call with a form-encoded body. form must
// already include "auth".
func (c *Client) postForm(ctx context.Context, domain, method string, form url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.restURL(domain, method), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doREST(req, method)
}

// doREST executes the request through the breaker and unwraps the REST
// envelope, converting portal error payloads into *APIError.
func (c *Client) doREST(req *http.Request, method string) (json.RawMessage, error) {
	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var env restEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s decode (status %d): %w", method, status, err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%s: %w", method, &APIError{Code: env.Error, Description: env.ErrorDescription})
	}
	if status >= 400 {
		return nil, fmt.Errorf("%s: unexpected status %d", method, status)
	}
	return env.Result, nil
}

// do sends the request, optionally through the circuit breaker, and
// returns the response body and status code.
func (c *Client) do(req *http.Request) (body []byte, status int, err error) {
	call := func() error {
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		defer func() { _ = resp.Body.Close() }()

		status = resp.StatusCode
		body, doErr = io.ReadAll(resp.Body)
		if doErr != nil {
			return doErr
		}
		// 5xx counts as a breaker failure; 4xx carries a portal error
		// payload and is handled by the caller.
		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	return body, status, err
}

// flexString decodes a JSON value that may arrive as either a string or
// a number; the portal is not consistent about numeric field types.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
