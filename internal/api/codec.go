// Package api defines the wire messages of the tontine RPC services.
//
// Messages are plain structs encoded as JSON. Codec registers the encoding
// with Connect under the name "json", so the Connect and gRPC-Web protocols
// negotiate it with application/json and application/connect+json content
// types.
package api

import (
	"encoding/json"
	"fmt"
)

// Codec is the Connect codec for api messages.
var Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}
