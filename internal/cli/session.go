package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/girdertools/girder-nav/internal/browser"
	"github.com/girdertools/girder-nav/internal/config"
	"github.com/girdertools/girder-nav/internal/constants"
	"github.com/girdertools/girder-nav/internal/events"
	"github.com/girdertools/girder-nav/internal/girder"
	internalhttp "github.com/girdertools/girder-nav/internal/http"
	"github.com/girdertools/girder-nav/internal/models"
)

// session bundles everything a browsing command needs: the configured
// client, the fetcher, and a subscription to its events.
type session struct {
	cfg     *config.Config
	client  *girder.Client
	bus     *events.EventBus
	fetcher *browser.Fetcher
	eventCh <-chan events.Event
}

// newSession loads configuration, connects, and authenticates if needed.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if internalhttp.NeedsProxyPassword(cfg) {
		password, err := promptPassword(fmt.Sprintf("Proxy password for %s: ", cfg.Proxy.User))
		if err != nil {
			return nil, err
		}
		cfg.Proxy.Password = password
	}

	client, err := girder.NewClient(cfg, GetLogger())
	if err != nil {
		return nil, err
	}

	if strings.ToLower(cfg.Proxy.Mode) == "basic" || strings.ToLower(cfg.Proxy.Mode) == "ntlm" {
		if err := internalhttp.WarmupProxy(clientHTTP(cfg), cfg); err != nil {
			GetLogger().Warn().Err(err).Msg("proxy warmup failed")
		}
	}

	if err := ensureAuthenticated(ctx, client, cfg); err != nil {
		return nil, err
	}

	policy, err := browser.ParsePolicy(cfg.ItemMode)
	if err != nil {
		return nil, err
	}
	customRoot, err := cfg.CustomRootNode()
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	fetcher := browser.NewFetcher(client, bus, GetLogger(), policy, customRoot)

	return &session{
		cfg:     cfg,
		client:  client,
		bus:     bus,
		fetcher: fetcher,
		eventCh: bus.SubscribeAll(),
	}, nil
}

func clientHTTP(cfg *config.Config) *http.Client {
	httpClient, err := internalhttp.ConfigureHTTPClient(cfg)
	if err != nil {
		return http.DefaultClient
	}
	return httpClient
}

// ensureAuthenticated verifies the saved token and falls back to the API
// key when the token is missing or expired.
func ensureAuthenticated(ctx context.Context, client *girder.Client, cfg *config.Config) error {
	if cfg.Token != "" {
		_, err := client.CurrentUser(ctx)
		if err == nil {
			return nil
		}
		if !girder.HasStatus(err, http.StatusUnauthorized) || cfg.APIKey == "" {
			return fmt.Errorf("session token rejected: %w", err)
		}
		GetLogger().Debug().Msg("saved token rejected, re-authenticating with api key")
	}

	if cfg.APIKey == "" {
		return config.ErrMissingCredentials
	}
	if _, err := client.AuthenticateAPIKey(ctx, cfg.APIKey); err != nil {
		return err
	}
	cfg.Token = client.Token()
	return nil
}

// navigate runs one navigation to completion and returns the listing.
func (s *session) navigate(ctx context.Context, target models.NodeRef) (models.Listing, error) {
	if !s.fetcher.NavigateTo(ctx, target) {
		return models.Listing{}, fmt.Errorf("a fetch is already in progress")
	}
	return s.await(ctx)
}

// navigateHome navigates to the logged-in user's subtree.
func (s *session) navigateHome(ctx context.Context) (models.Listing, error) {
	if !s.fetcher.NavigateHome(ctx) {
		return models.Listing{}, fmt.Errorf("a fetch is already in progress")
	}
	return s.await(ctx)
}

func (s *session) await(ctx context.Context) (models.Listing, error) {
	for {
		select {
		case ev := <-s.eventCh:
			switch e := ev.(type) {
			case *events.ListingEvent:
				return e.Listing, nil
			case *events.FetchErrorEvent:
				return models.Listing{}, fmt.Errorf("%s: %s", e.Op, e.Message)
			}
		case <-ctx.Done():
			return models.Listing{}, ctx.Err()
		}
	}
}

func (s *session) close() {
	s.bus.Close()
}
