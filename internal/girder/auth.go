package girder

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"

	"github.com/girdertools/girder-nav/internal/constants"
)

// tokenFromCookies extracts the session token from the girderToken cookie.
func tokenFromCookies(resp *nethttp.Response) (string, error) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "girderToken" && cookie.Value != "" {
			return cookie.Value, nil
		}
	}
	return "", ErrNoToken
}

// AuthenticateAPIKey exchanges an API key for a session token and installs
// the token on the client.
func (c *Client) AuthenticateAPIKey(ctx context.Context, apiKey string) (string, error) {
	form := url.Values{}
	form.Set("key", apiKey)
	form.Set("duration", strconv.Itoa(constants.TokenDurationDays))

	resp, err := c.postForm(ctx, "/api_key/token", form, "", "")
	if err != nil {
		return "", fmt.Errorf("api key authentication failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("api key authentication failed: status %d", resp.StatusCode)
	}

	token, err := tokenFromCookies(resp)
	if err != nil {
		return "", err
	}
	c.SetToken(token)
	return token, nil
}

// AuthenticatePassword logs in with basic auth against /user/authentication
// and installs the resulting session token on the client.
func (c *Client) AuthenticatePassword(ctx context.Context, login, password string) (string, error) {
	req, err := nethttp.NewRequestWithContext(ctx, "GET", c.baseURL+"/user/authentication", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(login, password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.authClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("password authentication failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("password authentication failed: status %d", resp.StatusCode)
	}

	var raw struct {
		AuthToken struct {
			Token string `json:"token"`
		} `json:"authToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("invalid response to authentication: %w", err)
	}

	token := raw.AuthToken.Token
	if token == "" {
		// Older servers only set the cookie.
		token, err = tokenFromCookies(resp)
		if err != nil {
			return "", err
		}
	}
	c.SetToken(token)
	return token, nil
}
