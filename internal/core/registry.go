package core

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/gohome-switchbot/internal/rpc"
)

const (
	RegistryPackage = "gohome.registry.v1"
	RegistryName    = "Registry"
)

// RegistryService provides plugin discovery to clients.
type RegistryService struct {
	plugins []Plugin
	mu      sync.RWMutex
}

func NewRegistryService(plugins []Plugin) *RegistryService {
	return &RegistryService{plugins: plugins}
}

// Service exposes the registry as an rpc.Service.
func (r *RegistryService) Service() rpc.Service {
	return rpc.Service{
		Package: RegistryPackage,
		Name:    RegistryName,
		Methods: []rpc.Method{
			{Name: "ListPlugins", Handler: r.ListPlugins},
			{Name: "DescribePlugin", Handler: r.DescribePlugin},
		},
	}
}

func (r *RegistryService) ListPlugins(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]any, 0, len(r.plugins))
	for _, p := range r.plugins {
		manifest := p.Manifest()
		summaries = append(summaries, map[string]any{
			"plugin_id":    manifest.PluginID,
			"display_name": manifest.DisplayName,
			"version":      manifest.Version,
			"status":       string(p.Health()),
		})
	}
	return rpc.Reply(map[string]any{"plugins": summaries})
}

func (r *RegistryService) DescribePlugin(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pluginID := rpc.String(req, "plugin_id")
	if pluginID == "" {
		return nil, status.Error(codes.InvalidArgument, "plugin_id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		manifest := p.Manifest()
		if manifest.PluginID != pluginID {
			continue
		}

		services := make([]any, 0, len(manifest.Services))
		for _, svc := range manifest.Services {
			services = append(services, svc)
		}
		dashboards := make([]any, 0)
		for _, d := range p.Dashboards() {
			dashboards = append(dashboards, map[string]any{
				"name": d.Name,
				"path": DashboardPath(manifest.PluginID, d.Name),
			})
		}

		return rpc.Reply(map[string]any{"plugin": map[string]any{
			"plugin_id":      manifest.PluginID,
			"display_name":   manifest.DisplayName,
			"version":        manifest.Version,
			"services":       services,
			"agents_md":      p.AgentsMD(),
			"status":         string(p.Health()),
			"health_message": p.HealthMessage(),
			"dashboards":     dashboards,
		}})
	}

	return nil, status.Errorf(codes.NotFound, "plugin %q not found", pluginID)
}
