// Package girder is a thin client for the Girder REST API. Each exported
// method wraps exactly one endpoint; there is no retry logic here beyond
// the documented file-download behavior, so callers own their own fan-out
// and error policy.
package girder

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/girdertools/girder-nav/internal/config"
	"github.com/girdertools/girder-nav/internal/constants"
	internalhttp "github.com/girdertools/girder-nav/internal/http"
	"github.com/girdertools/girder-nav/internal/logging"
)

// retryLogger adapts our logger to the retryablehttp.LeveledLogger interface.
// Only errors and warnings are surfaced; retryablehttp is chatty at info.
type retryLogger struct {
	log *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Msgf("%s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Msgf("%s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{})  {}
func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

// Client talks to one Girder server.
//
// Browse calls (list folders/items/files/users/collections, root path,
// current user) go over a plain HTTP client: a failed browse call fails the
// whole fetch by contract, and the fetcher must see the failure rather than
// have the transport quietly retry it. Authentication goes over a
// retryablehttp client since it happens once at startup and transient
// failures there are just noise.
type Client struct {
	httpClient     *nethttp.Client // browse calls, no transport retries
	authClient     *nethttp.Client // auth calls, transport retries allowed
	downloadClient *nethttp.Client // streaming downloads, no overall timeout
	baseURL        string

	// backoff pacing for the download 400-retry, overridable in tests
	downloadRetryWait    time.Duration
	downloadRetryWaitMax time.Duration

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the given configuration. The token may be
// empty at construction and set later via SetToken once authentication
// completes.
func NewClient(cfg *config.Config, log *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, fmt.Errorf("girder API base URL is empty")
	}

	httpClient, err := internalhttp.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	downloadClient, err := internalhttp.CreateDownloadClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure download client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.APIRetryMax
	retryClient.RetryWaitMin = constants.APIRetryWaitMin
	retryClient.RetryWaitMax = constants.APIRetryWaitMax
	if log != nil {
		retryClient.Logger = &retryLogger{log: log}
	} else {
		retryClient.Logger = nil
	}

	return &Client{
		httpClient:     httpClient,
		authClient:     retryClient.StandardClient(),
		downloadClient: downloadClient,
		baseURL:        strings.TrimSuffix(cfg.APIURL, "/"),
		token:          cfg.Token,

		downloadRetryWait:    constants.DownloadRetryWaitMin,
		downloadRetryWaitMax: constants.DownloadRetryWaitMax,
	}, nil
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken replaces the session token. Safe to call while requests are in
// flight; in-flight requests keep the token they were issued with.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// get issues one authenticated GET and returns the response body. A non-2xx
// response becomes a *StatusError carrying the status code and raw body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := nethttp.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Girder-Token", token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// postForm issues one POST with a form-encoded body over the retrying auth
// client. Used only by the authentication endpoints.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, basicUser, basicPass string) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, "POST", c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}

	resp, err := c.authClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// unlimited returns the query values that disable pagination. Girder treats
// limit=0 as "return everything".
func unlimited() url.Values {
	return url.Values{"limit": []string{"0"}}
}
