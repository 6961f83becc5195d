package girder

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/girdertools/girder-nav/internal/constants"
	internalhttp "github.com/girdertools/girder-nav/internal/http"
)

// DownloadFile streams a file's bytes into w and returns the number of bytes
// written.
//
// Two server quirks are handled here. Girder occasionally answers 400 while
// an assetstore is still materializing the file, so a 400 is retried up to
// DownloadRetryMax times with backoff. And when the assetstore is object
// storage, the server answers with a redirect to a pre-signed URL; that URL
// must be followed exactly once and without the Girder-Token header, since
// forwarding credentials to a third-party host both leaks the token and
// breaks pre-signed request validation.
func (c *Client) DownloadFile(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	u := c.baseURL + "/file/" + url.PathEscape(fileID) + "/download"

	// The initial attempt plus DownloadRetryMax retries.
	var lastErr error
	for attempt := 0; attempt <= constants.DownloadRetryMax; attempt++ {
		if attempt > 0 {
			delay := internalhttp.CalculateBackoff(attempt, c.downloadRetryWait, c.downloadRetryWaitMax)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		n, retryable, err := c.downloadOnce(ctx, u, w)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if !retryable {
			return 0, err
		}
	}
	return 0, fmt.Errorf("download failed after %d attempts: %w", constants.DownloadRetryMax+1, lastErr)
}

// downloadOnce performs a single download attempt. The bool result reports
// whether the failure is worth retrying.
func (c *Client) downloadOnce(ctx context.Context, u string, w io.Writer) (int64, bool, error) {
	// Redirects are intercepted so the pre-signed URL can be fetched without
	// the token header.
	client := *c.downloadClient
	client.CheckRedirect = func(req *nethttp.Request, via []*nethttp.Request) error {
		return nethttp.ErrUseLastResponse
	}

	req, err := nethttp.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create request: %w", err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Girder-Token", token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode <= 399 {
		location := resp.Header.Get("Location")
		if location == "" {
			return 0, false, fmt.Errorf("redirect response without Location header")
		}
		return c.downloadRedirect(ctx, location, w)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		return 0, resp.StatusCode == nethttp.StatusBadRequest, err
	}

	n, err := copyBody(w, resp.Body)
	if err != nil {
		return 0, false, fmt.Errorf("failed to stream file: %w", err)
	}
	return n, false, nil
}

// downloadRedirect fetches a pre-signed URL. No token header, no further
// redirects are expected.
func (c *Client) downloadRedirect(ctx context.Context, location string, w io.Writer) (int64, bool, error) {
	req, err := nethttp.NewRequestWithContext(ctx, "GET", location, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create redirect request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("redirected download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		return 0, resp.StatusCode == nethttp.StatusBadRequest, err
	}

	n, err := copyBody(w, resp.Body)
	if err != nil {
		return 0, false, fmt.Errorf("failed to stream file: %w", err)
	}
	return n, false, nil
}

func copyBody(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, constants.DownloadBufferSize)
	return io.CopyBuffer(w, r, buf)
}
