package workers

import (
	"github.com/u2u-labs/nft-ingest/internal/domain"
)

// NFTCreatePayload is the payload of nft-create jobs: confirm a submitted
// mint transaction against the indexer
type NFTCreatePayload struct {
	TxCreation string              `json:"txCreation"`
	Type       domain.ContractType `json:"type"`
}

// NFTCrawlPayload is the payload of nft-crawl-single and nft-crawl-collection
// jobs. TxCreation drives the single-token path, CollectionAddress the
// whole-collection path.
type NFTCrawlPayload struct {
	Type              domain.ContractType `json:"type"`
	CollectionAddress string              `json:"collectionAddress,omitempty"`
	TxCreation        string              `json:"txCreation,omitempty"`
}
