package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// ContractType identifies the token contract standard
type ContractType string

const (
	// ContractTypeERC721 represents ERC-721 non-fungible token contracts
	ContractTypeERC721 ContractType = "ERC721"
	// ContractTypeERC1155 represents ERC-1155 multi-token contracts
	ContractTypeERC1155 ContractType = "ERC1155"
)

// TxStatus represents the lifecycle status of an on-chain entity
type TxStatus string

const (
	// TxStatusPending means the creation transaction has been submitted but not confirmed by the indexer
	TxStatusPending TxStatus = "PENDING"
	// TxStatusSuccess means the entity is confirmed and fully ingested
	TxStatusSuccess TxStatus = "SUCCESS"
	// TxStatusFailed means the retry budget for confirming the entity was exhausted
	TxStatusFailed TxStatus = "FAILED"
)

// TokenMetadata is the off-chain metadata document served by a token URI
type TokenMetadata struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Attributes  []TraitAttribute `json:"attributes"`
}

// TraitAttribute is a single metadata attribute. Value may arrive as a JSON
// string or number depending on the collection; ValueString coerces it to text.
type TraitAttribute struct {
	TraitType   string `json:"trait_type"`
	Value       any    `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

// ValueString returns the attribute value coerced to text. Whole numbers are
// rendered without a decimal point so {"value": 7} persists as "7".
func (a TraitAttribute) ValueString() string {
	switch v := a.Value.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// IndexedToken is a token record returned by the indexer
type IndexedToken struct {
	TokenID    string `json:"tokenId"`
	TxCreation string `json:"txCreation"`
	Contract   struct {
		ID string `json:"id"`
	} `json:"contract"`
}

// CollectionStats are the pre-aggregated per-contract statistics reported by
// the primary indexer. Volume is the raw amount in wei.
type CollectionStats struct {
	ItemCount   int64
	HolderCount int64
	Volume      string
}
