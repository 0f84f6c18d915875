package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/core"
	"github.com/joshp123/gohome-switchbot/internal/plugins"
	"github.com/joshp123/gohome-switchbot/internal/rate"
	"github.com/joshp123/gohome-switchbot/internal/router"
	"github.com/joshp123/gohome-switchbot/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hub (gRPC, HTTP, pollers)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, opts.cfg, opts.logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	env, closeEnv, err := openEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEnv()

	compiled := plugins.Compiled(env)
	if err := core.ValidatePlugins(compiled); err != nil {
		return err
	}
	enabled := config.EnabledPlugins(cfg)
	if err := core.ValidateEnabledPlugins(compiled, enabled, false); err != nil {
		return err
	}
	active := core.FilterPlugins(compiled, enabled, false)

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr, logger.Named("grpc"))
	if err != nil {
		return err
	}
	if err := router.RegisterPlugins(grpcServer.Server, active); err != nil {
		return err
	}

	shared := append(rate.MetricsCollectors(), prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gohome_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))
	registry := core.MetricsRegistry(active, shared...)

	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.NewRouter(active, registry, logger.Named("http")))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", cfg.Core.GRPCAddr))
		return grpcServer.Serve(ctx)
	})
	group.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.Core.HTTPAddr))
		return httpServer.ListenAndServe(ctx)
	})
	for _, p := range active {
		runner, ok := p.(core.Runner)
		if !ok {
			continue
		}
		group.Go(func() error {
			return runner.Run(ctx)
		})
	}
	return group.Wait()
}
