package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/masukame/kit"
)

// Request shapes shared by the MCP tools and connectivity handlers.
type (
	SearchRequest struct {
		Query string `json:"query"`
	}
	StatisticsRequest struct{}
	VerifyRequest     struct {
		TokenID       string `json:"tokenId"`
		WalletAddress string `json:"walletAddress"`
	}
	TransfersRequest struct {
		TokenID string `json:"tokenId"`
	}
)

// SearchResponse wraps a search result; Sculpture is nil when not found.
type SearchResponse struct {
	Sculpture *Sculpture `json:"sculpture"`
}

// ErrMissingArgument is returned by the endpoints when a required field is empty.
var ErrMissingArgument = errors.New("registry: missing argument")

// Endpoints exposes the client operations as kit endpoints, keyed by
// service name.
func (c *Client) Endpoints() map[string]kit.Endpoint {
	return map[string]kit.Endpoint{
		"registry_search": func(ctx context.Context, req any) (any, error) {
			r := req.(*SearchRequest)
			if strings.TrimSpace(r.Query) == "" {
				return nil, fmt.Errorf("%w: query", ErrMissingArgument)
			}
			s, err := c.Search(ctx, r.Query)
			if err != nil {
				return nil, err
			}
			return SearchResponse{Sculpture: s}, nil
		},
		"registry_statistics": func(ctx context.Context, _ any) (any, error) {
			return c.Statistics(ctx), nil
		},
		"registry_verify": func(ctx context.Context, req any) (any, error) {
			r := req.(*VerifyRequest)
			if r.TokenID == "" || r.WalletAddress == "" {
				return nil, fmt.Errorf("%w: tokenId and walletAddress", ErrMissingArgument)
			}
			return c.VerifyOwnership(ctx, r.TokenID, r.WalletAddress), nil
		},
		"registry_transfers": func(ctx context.Context, req any) (any, error) {
			r := req.(*TransfersRequest)
			if r.TokenID == "" {
				return nil, fmt.Errorf("%w: tokenId", ErrMissingArgument)
			}
			return c.TransferHistory(ctx, r.TokenID), nil
		},
	}
}

// newRequest returns a zero request value for a service name.
func newRequest(service string) any {
	switch service {
	case "registry_search":
		return &SearchRequest{}
	case "registry_verify":
		return &VerifyRequest{}
	case "registry_transfers":
		return &TransfersRequest{}
	}
	return &StatisticsRequest{}
}
