package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joshp123/gohome-switchbot/internal/config"
)

type cliOptions struct {
	addr    string
	json    bool
	timeout time.Duration
}

func main() {
	opts := &cliOptions{}
	rootCmd := &cobra.Command{
		Use:           "gohome-cli",
		Short:         "Talk to a running gohome over gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "gRPC address (default from $GOHOME_GRPC_ADDR or config)")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		newPluginsCommand(opts),
		newServicesCommand(opts),
		newMethodsCommand(opts),
		newCallCommand(opts),
		newVacuumCommand(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gohome-cli: %v\n", err)
		os.Exit(1)
	}
}

// dial connects and returns a context bounded by --timeout.
func (o *cliOptions) dial(parent context.Context) (context.Context, *grpc.ClientConn, func(), error) {
	ctx, cancel := context.WithTimeout(parent, o.timeout)
	addr := o.addr
	if addr == "" {
		addr = resolveAddr()
	}
	conn, err := grpcurl.BlockingDial(ctx, "tcp", addr, insecure.NewCredentials())
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return ctx, conn, func() {
		_ = conn.Close()
		cancel()
	}, nil
}

func newServicesCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List gRPC services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, conn, done, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			services, err := grpcurl.ListServices(reflectionSource(ctx, conn))
			if err != nil {
				return fmt.Errorf("list services: %w", err)
			}
			for _, service := range services {
				fmt.Fprintln(cmd.OutOrStdout(), service)
			}
			return nil
		},
	}
}

func newMethodsCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "methods <service>",
		Short: "List methods of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, conn, done, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			methods, err := grpcurl.ListMethods(reflectionSource(ctx, conn), args[0])
			if err != nil {
				return fmt.Errorf("list methods: %w", err)
			}
			for _, method := range methods {
				fmt.Fprintln(cmd.OutOrStdout(), method)
			}
			return nil
		},
	}
}

func newCallCommand(opts *cliOptions) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "call <service/method>",
		Short: "Invoke a method with a JSON body (--data or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, conn, done, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			var reader io.Reader
			switch {
			case data != "":
				reader = strings.NewReader(data)
			case isStdinTerminal():
				reader = strings.NewReader("{}")
			default:
				reader = os.Stdin
			}

			source := reflectionSource(ctx, conn)
			parser, formatter, err := grpcurl.RequestParserAndFormatter(grpcurl.FormatJSON, source, reader, grpcurl.FormatOptions{})
			if err != nil {
				return fmt.Errorf("parse request: %w", err)
			}
			handler := grpcurl.NewDefaultEventHandler(cmd.OutOrStdout(), source, formatter, false)
			if err := grpcurl.InvokeRPC(ctx, source, conn, args[0], nil, handler, parser.Next); err != nil {
				return fmt.Errorf("invoke: %w", err)
			}
			if handler.Status != nil && handler.Status.Err() != nil {
				return handler.Status.Err()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	return cmd
}

func reflectionSource(ctx context.Context, conn *grpc.ClientConn) grpcurl.DescriptorSource {
	client := grpcreflect.NewClientAuto(ctx, conn)
	return grpcurl.DescriptorSourceFromServer(ctx, client)
}

func isStdinTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func resolveAddr() string {
	if value := os.Getenv("GOHOME_GRPC_ADDR"); value != "" {
		return value
	}
	for _, path := range configSearchPaths() {
		if addr := addrFromConfig(path); addr != "" {
			return addr
		}
	}
	return "gohome:9000"
}

func configSearchPaths() []string {
	paths := []string{config.DefaultPath}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "gohome", "config.yaml"))
	}
	return paths
}

func addrFromConfig(path string) string {
	cfg, err := config.Load(path)
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Core.GRPCAddr
}
