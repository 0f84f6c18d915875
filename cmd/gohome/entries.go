package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshp123/gohome-switchbot/plugins/switchbot"
)

func newEntriesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage linked accounts",
	}
	cmd.AddCommand(newEntriesListCommand(opts), newEntriesRemoveCommand(opts))
	return cmd
}

func newEntriesListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List linked accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, closeEnv, err := openEnv(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer closeEnv()

			list, err := env.Entries.List(cmd.Context(), switchbot.Domain)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tWEBHOOK\tCREATED")
			for _, e := range list {
				webhook := "-"
				if data, err := switchbot.DecodeEntry(e); err == nil && data.HasWebhook() {
					webhook = *data.WebhookID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Title, webhook, e.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newEntriesRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <entry_id>",
		Short: "Remove a linked account and its webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, closeEnv, err := openEnv(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer closeEnv()

			var relay switchbot.CloudhookReleaser
			if env.Relay != nil {
				relay = env.Relay
			}
			if err := switchbot.RemoveEntry(cmd.Context(), env.Entries, webhookDeleter(opts.cfg), relay, args[0], opts.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
