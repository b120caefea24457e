// Package grpcjson registers a JSON codec with gRPC so that services can be
// described with plain Go structs instead of generated protobuf messages.
//
// Clients select it per call with grpc.CallContentSubtype(grpcjson.Name);
// servers pick it up automatically once this package is imported.
package grpcjson

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const Name = "json"

type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grpc message: %w", err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal grpc message: %w", err)
	}
	return nil
}

func (Codec) Name() string {
	return Name
}

// CallOption selects the JSON codec for a client call or connection.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}

func init() {
	encoding.RegisterCodec(Codec{})
}
