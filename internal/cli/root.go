// Package cli provides the command-line interface for girder-nav.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/girdertools/girder-nav/internal/config"
	"github.com/girdertools/girder-nav/internal/logging"
)

var (
	// Global flags
	cfgFile  string
	apiURL   string
	apiKey   string
	token    string
	itemMode string
	verbose  bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - set by main package at startup via LDFLAGS, with a
// fallback for plain `go build`.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "girder-nav",
		Short: "Browse and download data from a Girder server",
		Long: `girder-nav ` + Version + ` - Built: ` + BuildTime + `
Navigate the folder hierarchy of a Girder data server from the terminal,
inspect listings, and download files, items, or whole folder trees.

Authenticate once with "girder-nav login", then browse:

  girder-nav login --api-key <key>
  girder-nav ls
  girder-nav browse
  girder-nav download folder <id> ./dest`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultLogger()
			if verbose {
				logging.SetGlobalLevel(-1) // zerolog.DebugLevel
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Girder API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Girder API key (overrides config)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Girder session token (overrides config)")
	rootCmd.PersistentFlags().StringVar(&itemMode, "item-mode", "", "Item display mode: files, folders, or bump")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if token != "" {
		cfg.Token = token
	}
	if itemMode != "" {
		cfg.ItemMode = itemMode
	}
	return cfg, nil
}
