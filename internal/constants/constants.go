// Package constants centralizes tuning values shared across packages.
package constants

import (
	"time"
)

// HTTP transport configuration
const (
	// HTTPDialTimeout - TCP connect timeout
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - TCP keep-alive interval
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long idle connections stay in the pool
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - extended for slow networks
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - for HTTP 100-continue
	HTTPExpectContinueTimeout = 5 * time.Second

	// HTTPRequestTimeout - overall per-request timeout for API calls.
	// Downloads clear this and rely on context deadlines instead.
	HTTPRequestTimeout = 300 * time.Second
)

// Girder protocol
const (
	// TokenDurationDays - requested lifetime for tokens minted from an API key
	TokenDurationDays = 90

	// DownloadRetryMax - retries (after the initial attempt) for a file
	// download that returns HTTP 400. Girder occasionally 400s a download
	// whose offload URL is still being signed.
	DownloadRetryMax = 5

	// DownloadRetryWaitMin - initial backoff delay between download retries
	DownloadRetryWaitMin = 1 * time.Second

	// DownloadRetryWaitMax - backoff ceiling between download retries
	DownloadRetryWaitMax = 10 * time.Second
)

// Transport retry configuration (retryablehttp)
const (
	// APIRetryMax - maximum retries for transient API transport failures
	APIRetryMax = 5

	// APIRetryWaitMin - initial backoff delay
	APIRetryWaitMin = 1 * time.Second

	// APIRetryWaitMax - backoff ceiling
	APIRetryWaitMax = 15 * time.Second
)

// Event system
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - cap on per-subscriber buffering
	EventBusMaxBuffer = 2048
)

// Download pipeline
const (
	// DownloadBufferSize - copy buffer for streaming file bodies to disk
	DownloadBufferSize = 64 * 1024

	// ProgressUpdateInterval - interval for progress bar refreshes
	ProgressUpdateInterval = 250 * time.Millisecond
)
