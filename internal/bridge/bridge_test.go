package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/bridge"
	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/jobs"
	"github.com/u2u-labs/nft-ingest/internal/logger"
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

type fakePubSub struct {
	ch chan *redis.Message
}

func (f *fakePubSub) Channel() <-chan *redis.Message { return f.ch }
func (f *fakePubSub) Close() error                   { return nil }

type fakeRedisClient struct {
	mu       sync.Mutex
	sub      *fakePubSub
	channels []string
}

func (f *fakeRedisClient) Ping(context.Context) error { return nil }
func (f *fakeRedisClient) Subscribe(_ context.Context, channels ...string) adapter.PubSub {
	f.mu.Lock()
	f.channels = channels
	f.mu.Unlock()
	return f.sub
}

func (f *fakeRedisClient) subscribedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels
}
func (f *fakeRedisClient) Publish(context.Context, string, []byte) error { return nil }
func (f *fakeRedisClient) Close() error                                  { return nil }

type submission struct {
	class   string
	payload json.RawMessage
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []submission
	err       error
}

func (f *fakeSubmitter) Submit(class string, payload json.RawMessage) (*jobs.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, submission{class: class, payload: payload})
	return &jobs.Handle{ID: "01JTEST", Class: class}, nil
}

func (f *fakeSubmitter) all() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.submitted...)
}

func runBridge(t *testing.T, redisClient *fakeRedisClient, submitter *fakeSubmitter) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	b := bridge.NewBridge(redisClient, submitter, adapter.NewJSON())
	go func() {
		defer close(done)
		err := b.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	}()
	return func() {
		cancelCtx()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("bridge did not stop")
		}
	}
}

func waitSubmissions(t *testing.T, submitter *fakeSubmitter, n int) []submission {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := submitter.all()
		if len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d submissions, got %d", n, len(submitter.all()))
	return nil
}

// TestBridge_SubscribesFixedChannels tests that the bridge listens on all
// three notification channels
func TestBridge_SubscribesFixedChannels(t *testing.T) {
	redisClient := &fakeRedisClient{sub: &fakePubSub{ch: make(chan *redis.Message)}}
	submitter := &fakeSubmitter{}

	stop := runBridge(t, redisClient, submitter)
	defer stop()

	deadline := time.Now().Add(time.Second)
	for redisClient.subscribedChannels() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, []string{domain.ChannelCollection, domain.ChannelNFT, domain.ChannelIPFS}, redisClient.subscribedChannels())
}

// TestBridge_ForwardsEnvelope tests that a well-formed notification becomes a
// job submission with the process name as the class and the data as payload
func TestBridge_ForwardsEnvelope(t *testing.T) {
	msgCh := make(chan *redis.Message, 1)
	redisClient := &fakeRedisClient{sub: &fakePubSub{ch: msgCh}}
	submitter := &fakeSubmitter{}

	stop := runBridge(t, redisClient, submitter)
	defer stop()

	msgCh <- &redis.Message{
		Channel: domain.ChannelNFT,
		Payload: `{"process":"nft-create","data":{"txCreation":"0xabc","type":"ERC721"}}`,
	}

	got := waitSubmissions(t, submitter, 1)
	require.Len(t, got, 1)
	assert.Equal(t, domain.JobNFTCreate, got[0].class)
	assert.JSONEq(t, `{"txCreation":"0xabc","type":"ERC721"}`, string(got[0].payload))
}

// TestBridge_DropsMalformedMessage tests that bad input is dropped without a
// submission and without stopping the bridge
func TestBridge_DropsMalformedMessage(t *testing.T) {
	msgCh := make(chan *redis.Message, 3)
	redisClient := &fakeRedisClient{sub: &fakePubSub{ch: msgCh}}
	submitter := &fakeSubmitter{}

	stop := runBridge(t, redisClient, submitter)
	defer stop()

	msgCh <- &redis.Message{Channel: domain.ChannelNFT, Payload: `not json at all`}
	msgCh <- &redis.Message{Channel: domain.ChannelNFT, Payload: `{"data":{"txCreation":"0x1"}}`}
	msgCh <- &redis.Message{
		Channel: domain.ChannelNFT,
		Payload: `{"process":"nft-crawl-single","data":{"txCreation":"0x2","type":"ERC721"}}`,
	}

	got := waitSubmissions(t, submitter, 1)
	require.Len(t, got, 1)
	assert.Equal(t, domain.JobNFTCrawlSingle, got[0].class)
}

// TestBridge_DropsOnSubmitError tests that a rejected submission does not
// stop the bridge loop
func TestBridge_DropsOnSubmitError(t *testing.T) {
	msgCh := make(chan *redis.Message, 2)
	redisClient := &fakeRedisClient{sub: &fakePubSub{ch: msgCh}}
	submitter := &fakeSubmitter{err: errors.New("unknown job class")}

	stop := runBridge(t, redisClient, submitter)

	msgCh <- &redis.Message{Channel: domain.ChannelCollection, Payload: `{"process":"bogus","data":{}}`}

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, submitter.all())
	stop()
}
