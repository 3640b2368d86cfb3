// Package metadata fetches and validates the external document a
// token's metadata URI points to. A fetch failure is a recoverable
// per-token condition, never fatal for a reconciliation pass.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nft-market-client/internal/domain"
)

// DefaultGateway is the IPFS HTTP gateway used when none is configured.
const DefaultGateway = "https://ipfs.io/ipfs/"

// maxDocumentSize caps metadata document reads.
const maxDocumentSize = 1 << 20 // 1 MiB

// Fetcher resolves metadata URIs to documents.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*domain.Metadata, error)
}

// HTTPFetcher implements Fetcher over HTTP, routing ipfs:// URIs and
// bare CIDs through a gateway.
type HTTPFetcher struct {
	client  *http.Client
	gateway string
}

// FetcherOption configures HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithGateway sets the IPFS gateway base URL.
func WithGateway(base string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.gateway = base
	}
}

// WithClient sets a custom http.Client.
func WithClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// NewHTTPFetcher creates a metadata fetcher.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		gateway: DefaultGateway,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Compile-time interface check.
var _ Fetcher = (*HTTPFetcher)(nil)

// Fetch retrieves and decodes the metadata document at uri.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) (*domain.Metadata, error) {
	resolved, err := f.resolve(uri)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta domain.Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	return &meta, nil
}

// resolve maps a token URI to a fetchable HTTP URL.
func (f *HTTPFetcher) resolve(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri, nil
	case strings.HasPrefix(uri, "ipfs://"):
		return f.gateway + strings.TrimPrefix(uri, "ipfs://"), nil
	case ValidateCID(uri) == nil:
		return f.gateway + uri, nil
	}
	return "", fmt.Errorf("unresolvable metadata URI %q", uri)
}
