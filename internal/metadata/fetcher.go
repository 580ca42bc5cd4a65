package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/uri"
)

// Fetcher resolves a token URI and fetches the metadata document behind it
type Fetcher interface {
	// Fetch returns the parsed metadata and the raw document. A 4xx response
	// is a structural failure and comes back wrapped as a permanent error;
	// network and server errors stay retryable.
	Fetch(ctx context.Context, tokenURI string) (*domain.TokenMetadata, json.RawMessage, error)
}

type httpFetcher struct {
	httpClient adapter.HTTPClient
	resolver   uri.Resolver
}

// NewFetcher creates a metadata fetcher
func NewFetcher(httpClient adapter.HTTPClient, resolver uri.Resolver) Fetcher {
	return &httpFetcher{
		httpClient: httpClient,
		resolver:   resolver,
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, tokenURI string) (*domain.TokenMetadata, json.RawMessage, error) {
	if tokenURI == "" {
		return nil, nil, backoff.Permanent(fmt.Errorf("%w: empty token uri", domain.ErrMetadataUnavailable))
	}

	url := f.resolver.Resolve(tokenURI)

	var raw json.RawMessage
	if err := f.httpClient.Get(ctx, url, &raw); err != nil {
		if adapter.IsClientError(err) {
			return nil, nil, backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrMetadataUnavailable, err))
		}
		return nil, nil, fmt.Errorf("failed to fetch metadata from %s: %w", url, err)
	}

	var meta domain.TokenMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, backoff.Permanent(fmt.Errorf("%w: malformed document: %s", domain.ErrMetadataUnavailable, err))
	}

	return &meta, raw, nil
}
