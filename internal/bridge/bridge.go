package bridge

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/jobs"
	"github.com/u2u-labs/nft-ingest/internal/logger"
)

// Submitter is the dispatch engine surface the bridge forwards work to
type Submitter interface {
	Submit(class string, payload json.RawMessage) (*jobs.Handle, error)
}

// envelope is the fixed message body published on notification channels
type envelope struct {
	Process string          `json:"process"`
	Data    json.RawMessage `json:"data"`
}

// Bridge is a thin fan-in adapter: it subscribes to the fixed notification
// channels and translates each inbound message into a job submission.
// Malformed messages are logged and dropped; bad input is not transient and
// must never be retried.
type Bridge struct {
	redis     adapter.RedisClient
	submitter Submitter
	json      adapter.JSON
}

// NewBridge creates a notification bridge
func NewBridge(redis adapter.RedisClient, submitter Submitter, jsonAdapter adapter.JSON) *Bridge {
	return &Bridge{
		redis:     redis,
		submitter: submitter,
		json:      jsonAdapter,
	}
}

// Run subscribes to the notification channels and forwards messages until the
// context is cancelled
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.redis.Subscribe(ctx,
		domain.ChannelCollection,
		domain.ChannelNFT,
		domain.ChannelIPFS,
	)
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Warn("failed to close subscription", zap.Error(err))
		}
	}()

	logger.Info("notification bridge subscribed",
		zap.Strings("channels", []string{domain.ChannelCollection, domain.ChannelNFT, domain.ChannelIPFS}))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleMessage(msg.Channel, []byte(msg.Payload))
		}
	}
}

// handleMessage parses one notification and submits it as a job
func (b *Bridge) handleMessage(channel string, payload []byte) {
	var env envelope
	if err := b.json.Unmarshal(payload, &env); err != nil {
		logger.Warn("dropping malformed notification",
			zap.String("channel", channel),
			zap.Error(err))
		return
	}
	if env.Process == "" {
		logger.Warn("dropping notification without process",
			zap.String("channel", channel))
		return
	}

	handle, err := b.submitter.Submit(env.Process, env.Data)
	if err != nil {
		logger.Warn("dropping notification, submit failed",
			zap.String("channel", channel),
			zap.String("process", env.Process),
			zap.Error(err))
		return
	}

	logger.Debug("notification forwarded",
		zap.String("channel", channel),
		zap.String("process", env.Process),
		zap.String("job_id", handle.ID))
}
