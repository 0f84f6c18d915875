package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// String returns the string field key of req, or "".
func String(req *structpb.Struct, key string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[key].GetStringValue()
}

// Bool returns the bool field key of req, or fallback when absent.
func Bool(req *structpb.Struct, key string, fallback bool) bool {
	if req == nil {
		return fallback
	}
	v, ok := req.GetFields()[key]
	if !ok {
		return fallback
	}
	if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
		return fallback
	}
	return v.GetBoolValue()
}

// Reply converts a plain map into a response message.
func Reply(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return out, nil
}

// Invoke calls a Struct-typed method on conn.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, method string, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, MethodPath(service, method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
