package api

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec encodes messages as JSON. It registers under the name "json", so
// Connect serves and sends them as application/json.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("invalid %T: %w", msg, err)
	}
	return nil
}

// WithCodec returns the option that makes clients and handlers use Codec.
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}
