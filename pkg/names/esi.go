package names

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultESIEndpoint = "https://esi.evetech.net/latest/universe/names/"

// esiBatchLimit is the maximum ids ESI accepts per request.
const esiBatchLimit = 1000

// ESIResolver resolves ids against the EVE Swagger Interface.
type ESIResolver struct {
	endpoint string
	http     *http.Client
}

// NewESIResolver creates a resolver. endpoint defaults to the public
// ESI universe/names route if empty.
func NewESIResolver(endpoint string) *ESIResolver {
	if endpoint == "" {
		endpoint = defaultESIEndpoint
	}
	return &ESIResolver{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Resolve posts id batches to ESI. Unknown ids are simply absent from
// the result, not an error.
func (r *ESIResolver) Resolve(ctx context.Context, ids []int64) (map[int64]Name, error) {
	out := make(map[int64]Name, len(ids))

	for start := 0; start < len(ids); start += esiBatchLimit {
		end := start + esiBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		if err := r.resolveBatch(ctx, ids[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ESIResolver) resolveBatch(ctx context.Context, ids []int64, out map[int64]Name) error {
	body, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal id batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("resolve names: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resolve names: unexpected status %d", resp.StatusCode)
	}

	var entries []Name
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("resolve names: decode response: %w", err)
	}
	for _, e := range entries {
		out[e.ID] = e
	}
	return nil
}
