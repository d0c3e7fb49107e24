// CLAUDE:SUMMARY JSON-over-HTTP transport to the remote registry API with optional X-API-Key.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hazyhaar/masukame/horosafe"
)

// TransportError is a failed registry API call.
type TransportError struct {
	Op     string
	Status int // 0 when the request never got a response
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("registry: %s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("registry: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type remote struct {
	base   string
	apiKey string
	client *http.Client
	guard  func(string) error
}

func (r *remote) do(ctx context.Context, op, method, path string, in, out any) error {
	endpoint := strings.TrimRight(r.base, "/") + path
	if r.guard != nil {
		if err := r.guard(endpoint); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &TransportError{Op: op, Status: resp.StatusCode}
	}

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func (r *remote) search(ctx context.Context, query string) (*Sculpture, error) {
	var out struct {
		Sculpture *Sculpture `json:"sculpture"`
	}
	if err := r.do(ctx, "search", http.MethodPost, "/search", map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return out.Sculpture, nil
}

func (r *remote) statistics(ctx context.Context) (Statistics, error) {
	var out Statistics
	err := r.do(ctx, "statistics", http.MethodGet, "/statistics", nil, &out)
	return out, err
}

func (r *remote) verify(ctx context.Context, tokenID, address string) (Verification, error) {
	var out Verification
	err := r.do(ctx, "verify", http.MethodPost, "/verify",
		map[string]string{"tokenId": tokenID, "walletAddress": address}, &out)
	return out, err
}

func (r *remote) transfers(ctx context.Context, tokenID string) ([]Transfer, error) {
	var out []Transfer
	err := r.do(ctx, "transfers", http.MethodGet, "/transfers/"+url.PathEscape(tokenID), nil, &out)
	return out, err
}
