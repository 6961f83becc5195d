package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/girdertools/girder-nav/internal/config"
	"github.com/girdertools/girder-nav/internal/constants"
)

// ConfigureHTTPClient builds the HTTP client used for all Girder API calls,
// applying the configured proxy mode.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	switch strings.ToLower(cfg.Proxy.Mode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm":
		// Fall back to no-proxy if host is missing (incomplete saved config)
		// so the CLI still starts and the user can reconfigure.
		if cfg.Proxy.Host == "" {
			log.Printf("[WARN] Proxy mode is NTLM but host is missing - falling back to no-proxy mode")
			transport.Proxy = nil
			break
		}

		proxyURL := buildProxyURL(cfg)
		transport.Proxy = proxyFuncWithBypass(proxyURL, cfg.Proxy.NoProxy)

		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{
				RoundTripper: transport,
			},
			Timeout: constants.HTTPRequestTimeout,
		}, nil

	case "basic":
		if cfg.Proxy.Host == "" {
			log.Printf("[WARN] Proxy mode is basic but host is missing - falling back to no-proxy mode")
			transport.Proxy = nil
			break
		}

		proxyURL := buildProxyURL(cfg)
		transport.Proxy = proxyFuncWithBypass(proxyURL, cfg.Proxy.NoProxy)

		if cfg.Proxy.User != "" && cfg.Proxy.Password == "" {
			log.Printf("[WARN] Proxy user configured but password missing - proxy auth disabled until password is set")
		}

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.Proxy.Mode)
	}

	return &nethttp.Client{
		Transport: transport,
		Timeout:   constants.HTTPRequestTimeout,
	}, nil
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	host := cfg.Proxy.Host
	port := cfg.Proxy.Port

	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	// Only embed credentials if both user AND password are provided. An
	// empty password in the URL can cause auth failures with some proxies.
	if cfg.Proxy.User != "" && cfg.Proxy.Password != "" {
		proxyURL.User = url.UserPassword(cfg.Proxy.User, cfg.Proxy.Password)
	}

	return proxyURL
}

// WarmupProxy performs one lightweight request through the configured client
// to establish the proxy tunnel before interactive use.
func WarmupProxy(client *nethttp.Client, cfg *config.Config) error {
	warmupURL := strings.TrimSuffix(cfg.APIURL, "/")
	if warmupURL == "" {
		return fmt.Errorf("cannot warm up proxy without api_url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, "GET", warmupURL+"/system/version", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}

	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy
// bypass list. If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match
// hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Printf("[PROXY] Bypass: %s (direct connection)", req.URL.Host)
		} else {
			log.Printf("[PROXY] Proxied: %s -> %s", req.URL.Host, result.Host)
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a
// password but one has not been provided. Used by the CLI to decide whether
// an interactive prompt is needed.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.Proxy.Mode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.Proxy.User != "" && cfg.Proxy.Password == ""
}
