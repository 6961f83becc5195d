package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/girdertools/girder-nav/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				fmt.Println(cfgFile)
				return nil
			}
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("api_url:    %s\n", cfg.APIURL)
			fmt.Printf("api_key:    %s\n", maskSecret(cfg.APIKey))
			fmt.Printf("token:      %s\n", maskSecret(cfg.Token))
			fmt.Printf("item_mode:  %s\n", cfg.ItemMode)
			if cfg.CustomRoot != (config.CustomRootConfig{}) {
				fmt.Printf("custom root: %s %s (%s)\n",
					cfg.CustomRoot.Type, cfg.CustomRoot.Name, cfg.CustomRoot.ID)
			}
			fmt.Printf("proxy mode: %s\n", cfg.Proxy.Mode)
			if cfg.Proxy.Host != "" {
				fmt.Printf("proxy:      %s:%d\n", cfg.Proxy.Host, cfg.Proxy.Port)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one configuration value and save",
		Long: `Set one configuration value and save the file.

Keys: api_url, api_key, token, item_mode, custom_root.id, custom_root.type,
custom_root.name, proxy.mode, proxy.host, proxy.port, proxy.user,
proxy.no_proxy`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := setConfigKey(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				// Incomplete configs are fine while setting keys one at a
				// time; only reject values that can never be valid.
				if err == config.ErrInvalidItemMode {
					return err
				}
			}
			return config.Save(cfg, cfgFile)
		},
	})

	return cmd
}

func setConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "api_url":
		cfg.APIURL = value
	case "api_key":
		cfg.APIKey = value
	case "token":
		cfg.Token = value
	case "item_mode":
		cfg.ItemMode = value
	case "custom_root.id":
		cfg.CustomRoot.ID = value
	case "custom_root.type":
		cfg.CustomRoot.Type = value
	case "custom_root.name":
		cfg.CustomRoot.Name = value
	case "proxy.mode":
		cfg.Proxy.Mode = value
	case "proxy.host":
		cfg.Proxy.Host = value
	case "proxy.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("proxy.port must be a number: %w", err)
		}
		cfg.Proxy.Port = port
	case "proxy.user":
		cfg.Proxy.User = value
	case "proxy.no_proxy":
		cfg.Proxy.NoProxy = value
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
