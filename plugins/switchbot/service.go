package switchbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/gohome-switchbot/internal/entries"
	"github.com/joshp123/gohome-switchbot/internal/rate"
	"github.com/joshp123/gohome-switchbot/internal/rpc"
)

const (
	ServicePackage = "gohome.plugins.switchbot.v1"
	ServiceName    = "SwitchBotService"
)

// EntryLister lists persisted config entries.
type EntryLister interface {
	List(ctx context.Context, domain string) ([]entries.Entry, error)
}

type service struct {
	hub     *Hub
	flow    *Flow
	entries EntryLister
	logger  *zap.Logger
}

func newService(hub *Hub, flow *Flow, lister EntryLister, logger *zap.Logger) *service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{hub: hub, flow: flow, entries: lister, logger: logger}
}

func (s *service) rpcService() rpc.Service {
	return rpc.Service{
		Package: ServicePackage,
		Name:    ServiceName,
		Methods: []rpc.Method{
			{Name: "ListVacuums", Handler: s.ListVacuums},
			{Name: "GetVacuum", Handler: s.GetVacuum},
			{Name: "Start", Handler: s.Start},
			{Name: "Stop", Handler: s.Stop},
			{Name: "ReturnToBase", Handler: s.ReturnToBase},
			{Name: "Setup", Handler: s.Setup},
			{Name: "ListEntries", Handler: s.ListEntries},
		},
	}
}

func (s *service) ListVacuums(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	vacuums := s.hub.Vacuums()
	out := make([]any, 0, len(vacuums))
	for _, v := range vacuums {
		out = append(out, vacuumFields(v))
	}
	return rpc.Reply(map[string]any{"vacuums": out})
}

func (s *service) GetVacuum(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.requireVacuum(req)
	if err != nil {
		return nil, err
	}
	return rpc.Reply(map[string]any{"vacuum": vacuumFields(v)})
}

func (s *service) Start(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.command(ctx, req, CommandStart)
}

func (s *service) Stop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.command(ctx, req, CommandStop)
}

func (s *service) ReturnToBase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.command(ctx, req, CommandDock)
}

func (s *service) command(ctx context.Context, req *structpb.Struct, cmd Command) (*structpb.Struct, error) {
	v, err := s.requireVacuum(req)
	if err != nil {
		return nil, err
	}
	if err := v.SendCommand(ctx, cmd); err != nil {
		return nil, mapAPIError(string(cmd), err)
	}
	return rpc.Reply(map[string]any{"vacuum": vacuumFields(v)})
}

func (s *service) Setup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.flow == nil {
		return nil, status.Error(codes.FailedPrecondition, "switchbot setup not configured")
	}
	in := Input{
		APIToken:         rpc.String(req, FieldAPIToken),
		APIKey:           rpc.String(req, FieldAPIKey),
		ConfigureWebhook: rpc.Bool(req, FieldConfigureWebhook, true),
	}
	if in.APIToken == "" || in.APIKey == "" {
		return nil, status.Error(codes.InvalidArgument, "api_token and api_key are required")
	}

	result, err := s.flow.StepUser(ctx, &in)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "setup: %v", err)
	}

	reply := map[string]any{"type": string(result.Type)}
	switch result.Type {
	case ResultCreateEntry:
		reply["entry"] = entryFields(*result.Entry)
		if err := s.hub.Load(ctx, *result.Entry); err != nil {
			s.logger.Warn("load new switchbot entry", zap.String("entry_id", result.Entry.ID), zap.Error(err))
		}
	case ResultAbort:
		reply["reason"] = result.Reason
	case ResultForm:
		errs := make(map[string]any, len(result.Errors))
		for k, v := range result.Errors {
			errs[k] = v
		}
		reply["errors"] = errs
	}
	return rpc.Reply(reply)
}

func (s *service) ListEntries(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.entries == nil {
		return nil, status.Error(codes.FailedPrecondition, "entry store not configured")
	}
	list, err := s.entries.List(ctx, Domain)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list entries: %v", err)
	}
	out := make([]any, 0, len(list))
	for _, e := range list {
		out = append(out, entryFields(e))
	}
	return rpc.Reply(map[string]any{"entries": out})
}

func (s *service) requireVacuum(req *structpb.Struct) (*Vacuum, error) {
	deviceID := rpc.String(req, "device_id")
	if deviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}
	v, ok := s.hub.Vacuum(deviceID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "vacuum %q not found", deviceID)
	}
	return v, nil
}

func vacuumFields(v *Vacuum) map[string]any {
	device := v.Device()
	fields := map[string]any{
		"device_id":   device.ID,
		"name":        device.Name,
		"device_type": device.Type,
		"features":    float64(v.SupportedFeatures()),
	}
	if state, ok := v.State(); ok {
		fields["state"] = string(state.State)
		if state.Battery != nil {
			fields["battery_percent"] = float64(*state.Battery)
		}
	}
	return fields
}

// entryFields omits credentials.
func entryFields(e entries.Entry) map[string]any {
	fields := map[string]any{
		"entry_id":   e.ID,
		"title":      e.Title,
		"created_at": e.CreatedAt.Format(time.RFC3339),
	}
	if data, err := DecodeEntry(e); err == nil {
		fields["webhook"] = data.HasWebhook()
		if data.HasWebhook() {
			fields["webhook_id"] = *data.WebhookID
		}
	}
	return fields
}

func mapAPIError(action string, err error) error {
	var limited rate.RateLimitError
	var apiErr *APIError
	switch {
	case errors.As(err, &limited):
		return status.Errorf(codes.ResourceExhausted, "%s: %v", action, err)
	case errors.Is(err, ErrInvalidAuth):
		return status.Errorf(codes.PermissionDenied, "%s: %v", action, err)
	case errors.Is(err, ErrCannotConnect):
		return status.Errorf(codes.Unavailable, "%s: %v", action, err)
	case errors.As(err, &apiErr):
		return status.Errorf(codes.FailedPrecondition, "%s: %v", action, err)
	default:
		return status.Error(codes.Internal, fmt.Sprintf("%s: %v", action, err))
	}
}
