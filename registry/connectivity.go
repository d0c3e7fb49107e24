package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/masukame/connectivity"
	"github.com/hazyhaar/masukame/kit"
)

// RegisterConnectivity registers the registry operations as local
// connectivity services with JSON payloads, under the MCP tool names.
func (c *Client) RegisterConnectivity(r *connectivity.Router) {
	for name, ep := range c.Endpoints() {
		r.RegisterLocal(name, jsonHandler(name, ep))
	}
}

func jsonHandler(service string, ep kit.Endpoint) connectivity.Handler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req := newRequest(service)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, req); err != nil {
				return nil, fmt.Errorf("registry: %s: decode: %w", service, err)
			}
		}
		resp, err := ep(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}
}
