package metadata_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/logger"
	"github.com/u2u-labs/nft-ingest/internal/metadata"
	"github.com/u2u-labs/nft-ingest/internal/uri"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// fakeHTTPClient serves canned bodies per URL
type fakeHTTPClient struct {
	bodies map[string][]byte
	errs   map[string]error

	requested []string
}

func newFakeHTTPClient() *fakeHTTPClient {
	return &fakeHTTPClient{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
	}
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, result interface{}) error {
	f.requested = append(f.requested, url)
	if err, ok := f.errs[url]; ok {
		return err
	}
	body, ok := f.bodies[url]
	if !ok {
		return &adapter.StatusError{Code: 404, Body: "not found"}
	}
	return json.Unmarshal(body, result)
}

func (f *fakeHTTPClient) Post(context.Context, string, string, io.Reader) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func newFetcher(httpClient adapter.HTTPClient) metadata.Fetcher {
	return metadata.NewFetcher(httpClient, uri.NewResolver("https://gateway.example/ipfs/"))
}

// TestFetcher_Fetch_ParsesDocument tests the happy path including the raw
// document passthrough
func TestFetcher_Fetch_ParsesDocument(t *testing.T) {
	httpClient := newFakeHTTPClient()
	doc := []byte(`{"name":"Token #1","description":"d","image":"ipfs://QmImg","attributes":[{"trait_type":"Color","value":"Red"}]}`)
	httpClient.bodies["https://meta.example/1"] = doc

	meta, raw, err := newFetcher(httpClient).Fetch(context.Background(), "https://meta.example/1")
	require.NoError(t, err)
	assert.Equal(t, "Token #1", meta.Name)
	assert.Equal(t, "ipfs://QmImg", meta.Image)
	require.Len(t, meta.Attributes, 1)
	assert.Equal(t, "Red", meta.Attributes[0].ValueString())
	assert.JSONEq(t, string(doc), string(raw))
}

// TestFetcher_Fetch_ResolvesIPFS tests that ipfs URIs are rewritten onto the
// gateway before the request
func TestFetcher_Fetch_ResolvesIPFS(t *testing.T) {
	httpClient := newFakeHTTPClient()
	httpClient.bodies["https://gateway.example/ipfs/QmDoc"] = []byte(`{"name":"n"}`)

	_, _, err := newFetcher(httpClient).Fetch(context.Background(), "ipfs://QmDoc")
	require.NoError(t, err)
	require.Len(t, httpClient.requested, 1)
	assert.Equal(t, "https://gateway.example/ipfs/QmDoc", httpClient.requested[0])
}

// TestFetcher_Fetch_EmptyURIIsPermanent tests that a token without a URI is
// not worth retrying
func TestFetcher_Fetch_EmptyURIIsPermanent(t *testing.T) {
	_, _, err := newFetcher(newFakeHTTPClient()).Fetch(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm))
}

// TestFetcher_Fetch_ClientErrorIsPermanent tests that a 4xx from the metadata
// host aborts instead of retrying
func TestFetcher_Fetch_ClientErrorIsPermanent(t *testing.T) {
	httpClient := newFakeHTTPClient()
	httpClient.errs["https://meta.example/gone"] = &adapter.StatusError{Code: 410, Body: "gone"}

	_, _, err := newFetcher(httpClient).Fetch(context.Background(), "https://meta.example/gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm))
}

// TestFetcher_Fetch_ServerErrorStaysRetryable tests that a 5xx keeps the
// retry budget in play
func TestFetcher_Fetch_ServerErrorStaysRetryable(t *testing.T) {
	httpClient := newFakeHTTPClient()
	httpClient.errs["https://meta.example/flaky"] = &adapter.StatusError{Code: 502, Body: "bad gateway"}

	_, _, err := newFetcher(httpClient).Fetch(context.Background(), "https://meta.example/flaky")
	require.Error(t, err)

	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))
}

// TestFetcher_Fetch_MalformedDocumentIsPermanent tests that an unparseable
// document is dropped rather than retried
func TestFetcher_Fetch_MalformedDocumentIsPermanent(t *testing.T) {
	httpClient := newFakeHTTPClient()
	// Valid JSON that is not a metadata document
	httpClient.bodies["https://meta.example/array"] = []byte(`["not","an","object"]`)

	_, _, err := newFetcher(httpClient).Fetch(context.Background(), "https://meta.example/array")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm))
}
