package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-switchbot/internal/rpc"
)

// The CLI only speaks gRPC; it does not link the plugin itself.
const switchbotService = "gohome.plugins.switchbot.v1.SwitchBotService"

func newVacuumCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "SwitchBot vacuums",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List vacuums",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, conn, done, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resp, err := rpc.Invoke(ctx, conn, switchbotService, "ListVacuums", nil)
			if err != nil {
				return fmt.Errorf("list vacuums: %w", err)
			}
			out := outputMode{json: opts.json, w: cmd.OutOrStdout()}
			if out.json {
				return out.printJSON(resp)
			}
			rows := [][]string{{"NAME", "ID", "STATE", "BATTERY"}}
			for _, v := range objects(resp["vacuums"]) {
				rows = append(rows, vacuumRow(v))
			}
			return out.table(rows)
		},
	})

	for _, action := range []struct {
		use, short, method string
	}{
		{"status", "Show one vacuum", "GetVacuum"},
		{"start", "Start cleaning", "Start"},
		{"stop", "Pause cleaning", "Stop"},
		{"dock", "Return to the dock", "ReturnToBase"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   action.use + " <name|device_id>",
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, conn, done, err := opts.dial(cmd.Context())
				if err != nil {
					return err
				}
				defer done()

				deviceID, err := resolveVacuum(ctx, conn, args[0])
				if err != nil {
					return err
				}
				resp, err := rpc.Invoke(ctx, conn, switchbotService, action.method, map[string]any{"device_id": deviceID})
				if err != nil {
					return fmt.Errorf("vacuum %s: %w", action.use, err)
				}
				out := outputMode{json: opts.json, w: cmd.OutOrStdout()}
				if out.json {
					return out.printJSON(resp)
				}
				vacuum, _ := resp["vacuum"].(map[string]any)
				return out.table([][]string{{"NAME", "ID", "STATE", "BATTERY"}, vacuumRow(vacuum)})
			},
		})
	}
	return cmd
}

func vacuumRow(v map[string]any) []string {
	battery := "-"
	if pct := str(v["battery_percent"]); pct != "" {
		battery = pct + "%"
	}
	state := str(v["state"])
	if state == "" {
		state = "unknown"
	}
	return []string{str(v["name"]), str(v["device_id"]), state, battery}
}

// resolveVacuum accepts a device id or a vacuum name.
func resolveVacuum(ctx context.Context, conn *grpc.ClientConn, input string) (string, error) {
	resp, err := rpc.Invoke(ctx, conn, switchbotService, "ListVacuums", nil)
	if err != nil {
		return "", fmt.Errorf("list vacuums: %w", err)
	}
	options := make(map[string]string)
	for _, v := range objects(resp["vacuums"]) {
		id := str(v["device_id"])
		if id == input {
			return id, nil
		}
		options[str(v["name"])] = id
	}
	return resolveNamedID("vacuum", input, options)
}
