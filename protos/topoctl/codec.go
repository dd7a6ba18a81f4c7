package topoctl

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec is the gRPC content subtype every Controller call is made with.
const Codec = "json"

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (codec) Name() string                               { return Codec }

func init() {
	encoding.RegisterCodec(codec{})
}
