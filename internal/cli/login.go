package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/girdertools/girder-nav/internal/config"
	"github.com/girdertools/girder-nav/internal/girder"
)

func newLoginCmd() *cobra.Command {
	var username string
	var save bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the Girder server",
		Long: `Authenticate with the Girder server and store the session token.

With --api-key (or api_key in the config file), exchanges the key for a
session token. With --user, prompts for the password and logs in with
basic authentication.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.APIURL == "" {
				return config.ErrMissingAPIURL
			}

			client, err := girder.NewClient(cfg, GetLogger())
			if err != nil {
				return err
			}

			switch {
			case username != "":
				password, err := promptPassword(fmt.Sprintf("Password for %s: ", username))
				if err != nil {
					return err
				}
				if _, err := client.AuthenticatePassword(ctx, username, password); err != nil {
					return err
				}
			case cfg.APIKey != "":
				if _, err := client.AuthenticateAPIKey(ctx, cfg.APIKey); err != nil {
					return err
				}
			default:
				return fmt.Errorf("provide --api-key or --user to log in")
			}

			user, err := client.CurrentUser(ctx)
			if err != nil {
				return fmt.Errorf("authenticated but user lookup failed: %w", err)
			}
			if user != nil {
				fmt.Printf("Logged in as %s\n", user.Login)
			} else {
				fmt.Println("Logged in (anonymous token)")
			}

			if save {
				cfg.Token = client.Token()
				if err := config.Save(cfg, cfgFile); err != nil {
					return fmt.Errorf("login succeeded but saving config failed: %w", err)
				}
				fmt.Println("Session token saved")
			} else {
				fmt.Printf("Token: %s\n", client.Token())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Log in with username and password instead of an API key")
	cmd.Flags().BoolVar(&save, "save", true, "Save the session token to the config file")

	return cmd
}
