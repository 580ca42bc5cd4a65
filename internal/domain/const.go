package domain

// Notification channels the bridge subscribes to. The names are fixed by the
// publishing side and must not change.
const (
	ChannelCollection = "collection-channel"
	ChannelNFT        = "nft-channel"
	ChannelIPFS       = "ipfs"
)

// Job classes accepted by the dispatch engine
const (
	JobNFTCreate          = "nft-create"
	JobNFTCrawlSingle     = "nft-crawl-single"
	JobNFTCrawlCollection = "nft-crawl-collection"
)
