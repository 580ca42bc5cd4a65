package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/jobs"
	"github.com/u2u-labs/nft-ingest/internal/logger"
	"github.com/u2u-labs/nft-ingest/internal/providers/subgraph"
	"github.com/u2u-labs/nft-ingest/internal/store"
)

// StatusWorker confirms that submitted mint transactions have become visible
// to the indexer and flips NFT status accordingly. It never creates rows.
type StatusWorker struct {
	store    store.Store
	subgraph subgraph.Client
}

// NewStatusWorker creates a status worker
func NewStatusWorker(st store.Store, sg subgraph.Client) *StatusWorker {
	return &StatusWorker{store: st, subgraph: sg}
}

// CheckMint handles one nft-create attempt. An indexer that has not yet seen
// the transaction is a transient condition: the chain is ahead of the indexer
// and the dispatch engine retries.
func (w *StatusWorker) CheckMint(ctx context.Context, payload json.RawMessage) error {
	var req NFTCreatePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return backoff.Permanent(fmt.Errorf("malformed nft-create payload: %w", err))
	}

	tokens, err := w.subgraph.GetTokensByTxCreation(ctx, req.Type, req.TxCreation)
	if err != nil {
		return fmt.Errorf("failed to query indexer for tx %s: %w", req.TxCreation, err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: tx %s", domain.ErrTokenNotYetIndexed, req.TxCreation)
	}

	if err := w.store.UpdateNFTStatusByTxHash(ctx, req.TxCreation, domain.TxStatusSuccess); err != nil {
		return err
	}

	logger.Info("mint confirmed",
		zap.String("tx_creation", req.TxCreation),
		zap.String("token_id", tokens[0].TokenID))
	return nil
}

// MarkFailed is the terminal action for mint-tracking job classes: when the
// retry budget is exhausted the NFT correlated by the creation transaction is
// marked failed.
func (w *StatusWorker) MarkFailed() jobs.TerminalFunc {
	return func(ctx context.Context, payload json.RawMessage) {
		var req NFTCreatePayload
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Warn("cannot mark nft failed, malformed payload", zap.Error(err))
			return
		}
		if req.TxCreation == "" {
			logger.Warn("cannot mark nft failed, no correlation key")
			return
		}

		if err := w.store.UpdateNFTStatusByTxHash(ctx, req.TxCreation, domain.TxStatusFailed); err != nil {
			logger.Error(err, zap.String("tx_creation", req.TxCreation))
			return
		}
		logger.Warn("nft marked failed after retry exhaustion",
			zap.String("tx_creation", req.TxCreation))
	}
}
