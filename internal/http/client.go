package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/girdertools/girder-nav/internal/config"
)

// CreateDownloadClient creates an HTTP client tuned for streaming file
// bodies, sharing the proxy configuration of the API client.
//
// Key differences from the API client:
//   - No overall request timeout; downloads run until the context says stop
//   - Larger connection pool for the recursive download pipeline
//   - Compression disabled (no benefit for already-compressed payloads)
//   - HTTP/2 with a runtime toggle (DISABLE_HTTP2 env var), forced off when
//     a proxy is active since proxies often mishandle HTTP/2 multiplexing
func CreateDownloadClient(cfg *config.Config) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM mode wraps the transport in a Negotiator; leave it alone and
		// just clear the request timeout for long transfers.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 512
	tr.MaxIdleConnsPerHost = 64
	tr.MaxConnsPerHost = 64
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true

	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	if proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0

	return baseClient, nil
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.Proxy.Mode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}
