package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/plugins/switchbot"
)

func newSetupCommand(opts *rootOptions) *cobra.Command {
	var (
		token            string
		secret           string
		secretFile       string
		configureWebhook bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Link a SwitchBot account",
		Example: `  gohome setup --api-token "$TOKEN" --api-key-file /run/secrets/switchbot
  gohome setup --api-token "$TOKEN" --api-key "$SECRET" --configure-webhook=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secretFile != "" {
				value, err := config.ReadSecret(secretFile)
				if err != nil {
					return fmt.Errorf("read api key: %w", err)
				}
				secret = value
			}
			token = strings.TrimSpace(token)
			if token == "" || secret == "" {
				return fmt.Errorf("--api-token and --api-key (or --api-key-file) are required")
			}

			ctx := cmd.Context()
			env, closeEnv, err := openEnv(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer closeEnv()

			plugin, ok := switchbot.NewPlugin(switchbot.Options{
				Config: opts.cfg.SwitchBot,
				Store:  env.Entries,
				Relay:  env.Relay,
				Logger: opts.logger,
			})
			if !ok {
				return fmt.Errorf("switchbot section missing from %s", opts.configPath)
			}
			flow := plugin.Flow()
			if flow == nil {
				return fmt.Errorf("switchbot plugin: %s", plugin.HealthMessage())
			}

			result, err := flow.StepUser(ctx, &switchbot.Input{
				APIToken:         token,
				APIKey:           secret,
				ConfigureWebhook: configureWebhook,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch result.Type {
			case switchbot.ResultCreateEntry:
				data, _ := switchbot.DecodeEntry(*result.Entry)
				fmt.Fprintf(out, "created entry %s (%s)\n", result.Entry.ID, result.Entry.Title)
				if data.HasWebhook() {
					fmt.Fprintf(out, "webhook: %s\n", *data.WebhookID)
				}
				opts.logger.Info("setup complete", zap.String("entry_id", result.Entry.ID))
				return nil
			case switchbot.ResultAbort:
				fmt.Fprintf(out, "aborted: %s\n", result.Reason)
				return nil
			default:
				return fmt.Errorf("setup failed: %s", result.Errors[switchbot.ErrorBase])
			}
		},
	}
	cmd.Flags().StringVar(&token, "api-token", os.Getenv("SWITCHBOT_API_TOKEN"), "SwitchBot API token")
	cmd.Flags().StringVar(&secret, "api-key", "", "SwitchBot API secret")
	cmd.Flags().StringVar(&secretFile, "api-key-file", "", "File holding the SwitchBot API secret")
	cmd.Flags().BoolVar(&configureWebhook, "configure-webhook", true, "Register a push webhook when the cloud relay is available")
	return cmd
}
