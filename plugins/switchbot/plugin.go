package switchbot

import (
	"context"
	_ "embed"
	"errors"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-switchbot/internal/cloud"
	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/core"
	"github.com/joshp123/gohome-switchbot/internal/entries"
	"github.com/joshp123/gohome-switchbot/internal/rpc"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

const PluginID = "switchbot"

const maxLoadRetryDelay = time.Hour

// Store is the entry persistence the plugin needs.
type Store interface {
	EntryStore
	EntryLister
}

// Options wires the plugin. NewAPI overrides the vendor client factory.
type Options struct {
	Config *config.SwitchBotConfig
	MQTT   *config.MQTTConfig
	Store  Store
	Relay  cloud.Relay
	Logger *zap.Logger
	NewAPI APIFactory
}

// Plugin implements the GoHome plugin contract.
type Plugin struct {
	hub       *Hub
	flow      *Flow
	store     Store
	webhook   *WebhookHandler
	collector *MetricsCollector
	mqtt      *config.MQTTConfig
	logger    *zap.Logger

	// retryDelay is the first wait before reloading entries whose account
	// was unreachable at startup.
	retryDelay time.Duration

	mu            sync.RWMutex
	health        core.HealthStatus
	healthMessage string
}

// NewPlugin constructs the plugin. ok is false when SwitchBot is not configured.
func NewPlugin(opts Options) (*Plugin, bool) {
	if opts.Config == nil {
		return nil, false
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runtimeCfg, err := ConfigFromFile(opts.Config)
	if err != nil {
		return &Plugin{logger: logger, health: core.HealthError, healthMessage: err.Error()}, true
	}
	newAPI := opts.NewAPI
	if newAPI == nil {
		newAPI = runtimeCfg.APIFactory()
	}

	hub := NewHub(newAPI, runtimeCfg.PollInterval, logger)
	webhook, err := NewWebhookHandler(hub, logger)
	if err != nil {
		return &Plugin{logger: logger, health: core.HealthError, healthMessage: err.Error()}, true
	}

	return &Plugin{
		hub: hub,
		flow: NewFlow(FlowConfig{
			NewAPI:         newAPI,
			Store:          opts.Store,
			Relay:          opts.Relay,
			Logger:         logger,
			WebhookFailure: runtimeCfg.WebhookFailure,
		}),
		store:      opts.Store,
		webhook:    webhook,
		collector:  NewMetricsCollector(hub),
		mqtt:       opts.MQTT,
		logger:     logger.Named("switchbot"),
		retryDelay: runtimeCfg.PollInterval,
		health:     core.HealthHealthy,
	}, true
}

func (p *Plugin) ID() string {
	return PluginID
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    PluginID,
		DisplayName: "SwitchBot Cloud",
		Version:     "0.1.0",
		Services:    []string{ServicePackage + "." + ServiceName},
	}
}

func (p *Plugin) AgentsMD() string {
	return agentsMD
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "switchbot-vacuums", JSON: dashboardJSON}}
}

func (p *Plugin) RegisterGRPC(server *grpc.Server) error {
	if p.hub == nil {
		return nil
	}
	return rpc.Register(server, newService(p.hub, p.flow, p.store, p.logger).rpcService())
}

func (p *Plugin) RegisterHTTP(r chi.Router) {
	if p.webhook == nil {
		return
	}
	p.webhook.Register(r)
}

func (p *Plugin) Collectors() []prometheus.Collector {
	if p.collector == nil {
		return nil
	}
	return []prometheus.Collector{p.collector}
}

func (p *Plugin) Health() core.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Plugin) HealthMessage() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthMessage
}

func (p *Plugin) setHealth(health core.HealthStatus, message string) {
	p.mu.Lock()
	p.health = health
	p.healthMessage = message
	p.mu.Unlock()
}

// Flow returns the setup flow, or nil when the plugin failed to configure.
func (p *Plugin) Flow() *Flow {
	return p.flow
}

// Hub returns the device hub, or nil when the plugin failed to configure.
func (p *Plugin) Hub() *Hub {
	return p.hub
}

// Run loads every stored entry and polls until ctx is done.
func (p *Plugin) Run(ctx context.Context) error {
	if p.hub == nil {
		<-ctx.Done()
		return nil
	}

	if p.mqtt != nil {
		publisher, err := NewMQTTPublisher(p.mqtt, p.logger)
		if err != nil {
			p.logger.Warn("mqtt disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			p.hub.Observe(publisher.Observe)
			if err := publisher.HandleCommands(p.hub); err != nil {
				p.logger.Warn("mqtt commands disabled", zap.Error(err))
			}
		}
	}

	var (
		pending   []entries.Entry
		permanent int
	)
	if p.store != nil {
		list, err := p.store.List(ctx, Domain)
		if err != nil {
			p.setHealth(core.HealthError, err.Error())
			return err
		}
		for _, entry := range list {
			err := p.hub.Load(ctx, entry)
			if err == nil {
				continue
			}
			p.logger.Warn("switchbot entry not loaded", zap.String("entry_id", entry.ID), zap.Error(err))
			if errors.Is(err, ErrCannotConnect) {
				pending = append(pending, entry)
			} else {
				permanent++
			}
		}
		switch {
		case len(list) == 0:
			p.setHealth(core.HealthDegraded, "no switchbot accounts linked")
		case len(pending) > 0 || permanent > 0:
			p.setHealth(core.HealthDegraded, "some switchbot accounts failed to load")
		}
	}

	var wg sync.WaitGroup
	if len(pending) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.retryLoads(ctx, pending, permanent)
		}()
	}

	p.hub.Run(ctx)
	wg.Wait()
	return nil
}

// retryLoads reloads unreachable entries with exponential backoff until they
// load, fail permanently, or ctx is done.
func (p *Plugin) retryLoads(ctx context.Context, pending []entries.Entry, permanent int) {
	delay := p.retryDelay
	if delay <= 0 {
		delay = time.Minute
	}
	ceiling := max(maxLoadRetryDelay, delay)

	for len(pending) > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		remaining := pending[:0]
		for _, entry := range pending {
			err := p.hub.Load(ctx, entry)
			switch {
			case err == nil:
				p.logger.Info("switchbot entry loaded after retry", zap.String("entry_id", entry.ID))
			case errors.Is(err, ErrCannotConnect):
				remaining = append(remaining, entry)
				p.logger.Debug("switchbot entry still unreachable",
					zap.String("entry_id", entry.ID), zap.Duration("retry_in", min(delay*2, ceiling)), zap.Error(err))
			default:
				permanent++
				p.logger.Warn("switchbot entry not loaded", zap.String("entry_id", entry.ID), zap.Error(err))
			}
		}
		pending = remaining
		delay = min(delay*2, ceiling)
	}

	if permanent == 0 {
		p.setHealth(core.HealthHealthy, "")
	}
}
