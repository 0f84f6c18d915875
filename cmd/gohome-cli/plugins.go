package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/gohome-switchbot/internal/core"
	"github.com/joshp123/gohome-switchbot/internal/rpc"
)

var registryService = core.RegistryPackage + "." + core.RegistryName

func newPluginsCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect loaded plugins",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, conn, done, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resp, err := rpc.Invoke(ctx, conn, registryService, "ListPlugins", nil)
			if err != nil {
				return fmt.Errorf("list plugins: %w", err)
			}
			out := outputMode{json: opts.json, w: cmd.OutOrStdout()}
			if out.json {
				return out.printJSON(resp)
			}
			rows := [][]string{{"ID", "NAME", "VERSION", "STATUS"}}
			for _, p := range objects(resp["plugins"]) {
				rows = append(rows, []string{str(p["plugin_id"]), str(p["display_name"]), str(p["version"]), str(p["status"])})
			}
			return out.table(rows)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "describe <plugin_id>",
		Short: "Describe a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, conn, done, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resp, err := rpc.Invoke(ctx, conn, registryService, "DescribePlugin", map[string]any{"plugin_id": args[0]})
			if err != nil {
				return fmt.Errorf("describe plugin: %w", err)
			}
			out := outputMode{json: opts.json, w: cmd.OutOrStdout()}
			if out.json {
				return out.printJSON(resp)
			}
			plugin, _ := resp["plugin"].(map[string]any)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "id: %s\n", str(plugin["plugin_id"]))
			fmt.Fprintf(w, "name: %s\n", str(plugin["display_name"]))
			fmt.Fprintf(w, "version: %s\n", str(plugin["version"]))
			fmt.Fprintf(w, "status: %s\n", str(plugin["status"]))
			if msg := str(plugin["health_message"]); msg != "" {
				fmt.Fprintf(w, "health: %s\n", msg)
			}
			fmt.Fprintln(w, "services:")
			if services, ok := plugin["services"].([]any); ok {
				for _, svc := range services {
					fmt.Fprintf(w, "  - %s\n", str(svc))
				}
			}
			fmt.Fprintln(w, "dashboards:")
			for _, dash := range objects(plugin["dashboards"]) {
				fmt.Fprintf(w, "  - %s (%s)\n", str(dash["name"]), str(dash["path"]))
			}
			fmt.Fprintln(w, "agents_md:")
			fmt.Fprintln(w, str(plugin["agents_md"]))
			return nil
		},
	})
	return cmd
}
