package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/domain"
)

// Client is the indexer query capability: a subgraph-style GraphQL read API
// over on-chain events.
type Client interface {
	// GetCollectionStats fetches the pre-aggregated contract statistics for a
	// collection (token count, holder count, traded volume in wei)
	GetCollectionStats(ctx context.Context, contractType domain.ContractType, address string) (*domain.CollectionStats, error)

	// GetCollectionHoldings walks all token and holder data for a collection
	// on the secondary endpoint. This is the slower aggregation path used for
	// extended-tracking collections.
	GetCollectionHoldings(ctx context.Context, address string) (items int64, owners int64, err error)

	// GetTokensByTxCreation fetches the tokens minted by a creation transaction
	GetTokensByTxCreation(ctx context.Context, contractType domain.ContractType, txHash string) ([]domain.IndexedToken, error)

	// GetTokensByCollection fetches every token the indexer knows for a collection
	GetTokensByCollection(ctx context.Context, contractType domain.ContractType, address string) ([]domain.IndexedToken, error)
}

// graphQLRequest represents a GraphQL request body
type graphQLRequest struct {
	Query         string      `json:"query"`
	Variables     interface{} `json:"variables"`
	OperationName string      `json:"operationName"`
}

// graphQLError represents a single error in a GraphQL response
type graphQLError struct {
	Message string `json:"message"`
}

// Subgraph BigInt fields arrive as JSON strings, Int fields as numbers;
// raw values are parsed leniently downstream
type contractStats struct {
	Count       json.RawMessage `json:"count"`
	HolderCount json.RawMessage `json:"holderCount"`
	Volume      string          `json:"volume"`
}

type statsResponse struct {
	Data struct {
		ERC721Contract  *contractStats `json:"erc721Contract"`
		ERC1155Contract *contractStats `json:"erc1155Contract"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type tokensResponse struct {
	Data struct {
		ERC721Tokens  []domain.IndexedToken `json:"erc721Tokens"`
		ERC1155Tokens []domain.IndexedToken `json:"erc1155Tokens"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type holdingsResponse struct {
	Data struct {
		Tokens []struct {
			ID    string `json:"id"`
			Owner struct {
				ID string `json:"id"`
			} `json:"owner"`
		} `json:"tokens"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// holdingsPageSize bounds the secondary-endpoint walk per request
const holdingsPageSize = 1000

// SubgraphClient implements Client against primary and secondary subgraph endpoints
type SubgraphClient struct {
	httpClient  adapter.HTTPClient
	url         string
	externalURL string
	json        adapter.JSON
}

// NewClient creates a new subgraph client. externalURL may equal url when no
// secondary indexer is deployed.
func NewClient(httpClient adapter.HTTPClient, url, externalURL string, jsonAdapter adapter.JSON) Client {
	if externalURL == "" {
		externalURL = url
	}
	return &SubgraphClient{
		httpClient:  httpClient,
		url:         url,
		externalURL: externalURL,
		json:        jsonAdapter,
	}
}

func (c *SubgraphClient) query(ctx context.Context, endpoint, operationName, query string, variables interface{}, response interface{}) error {
	request := graphQLRequest{
		Query:         query,
		Variables:     variables,
		OperationName: operationName,
	}

	requestBody, err := c.json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	responseBody, err := c.httpClient.Post(ctx, endpoint, "application/json", bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to call subgraph: %w", err)
	}

	if err := c.json.Unmarshal(responseBody, response); err != nil {
		return fmt.Errorf("failed to unmarshal subgraph response: %w", err)
	}

	return nil
}

func graphQLErrs(errs []graphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("subgraph returned error: %s", errs[0].Message)
}

// GetCollectionStats fetches the pre-aggregated contract statistics for a collection
func (c *SubgraphClient) GetCollectionStats(ctx context.Context, contractType domain.ContractType, address string) (*domain.CollectionStats, error) {
	query := `query GetCollectionCount($address: ID!) {
  erc721Contract(id: $address) {
    count
    holderCount
    volume
  }
  erc1155Contract(id: $address) {
    count
    holderCount
    volume
  }
}`

	var response statsResponse
	err := c.query(ctx, c.url, "GetCollectionCount", query, map[string]interface{}{"address": address}, &response)
	if err != nil {
		return nil, err
	}
	if err := graphQLErrs(response.Errors); err != nil {
		return nil, err
	}

	stats := response.Data.ERC721Contract
	if contractType == domain.ContractTypeERC1155 {
		stats = response.Data.ERC1155Contract
	}

	// An unknown contract reports zero stats rather than null fields so
	// downstream arithmetic stays total
	if stats == nil {
		return &domain.CollectionStats{Volume: "0"}, nil
	}

	out := &domain.CollectionStats{
		ItemCount:   numberToInt64(stats.Count),
		HolderCount: numberToInt64(stats.HolderCount),
		Volume:      stats.Volume,
	}
	if out.Volume == "" {
		out.Volume = "0"
	}
	return out, nil
}

// GetCollectionHoldings walks all token and holder data for a collection on
// the secondary endpoint
func (c *SubgraphClient) GetCollectionHoldings(ctx context.Context, address string) (int64, int64, error) {
	query := `query GetCollectionHoldings($address: String!, $first: Int!, $skip: Int!) {
  tokens(first: $first, skip: $skip, where: {contract: $address}) {
    id
    owner {
      id
    }
  }
}`

	var items int64
	owners := make(map[string]struct{})

	for skip := 0; ; skip += holdingsPageSize {
		var response holdingsResponse
		err := c.query(ctx, c.externalURL, "GetCollectionHoldings", query, map[string]interface{}{
			"address": address,
			"first":   holdingsPageSize,
			"skip":    skip,
		}, &response)
		if err != nil {
			return 0, 0, err
		}
		if err := graphQLErrs(response.Errors); err != nil {
			return 0, 0, err
		}

		for _, token := range response.Data.Tokens {
			items++
			if token.Owner.ID != "" {
				owners[token.Owner.ID] = struct{}{}
			}
		}

		if len(response.Data.Tokens) < holdingsPageSize {
			break
		}
	}

	return items, int64(len(owners)), nil
}

// GetTokensByTxCreation fetches the tokens minted by a creation transaction
func (c *SubgraphClient) GetTokensByTxCreation(ctx context.Context, contractType domain.ContractType, txHash string) ([]domain.IndexedToken, error) {
	query := `query Get721NFTs($txCreation: String!) {
  erc721Tokens(where: {txCreation: $txCreation}) {
    tokenId
    txCreation
    contract {
      id
    }
  }
}`
	if contractType == domain.ContractTypeERC1155 {
		query = `query Get1155NFTs($txCreation: String!) {
  erc1155Tokens(where: {txCreation: $txCreation}) {
    tokenId
    txCreation
    contract {
      id
    }
  }
}`
	}

	var response tokensResponse
	err := c.query(ctx, c.url, operationName(contractType, "Get721NFTs", "Get1155NFTs"), query,
		map[string]interface{}{"txCreation": txHash}, &response)
	if err != nil {
		return nil, err
	}
	if err := graphQLErrs(response.Errors); err != nil {
		return nil, err
	}

	if contractType == domain.ContractTypeERC1155 {
		return response.Data.ERC1155Tokens, nil
	}
	return response.Data.ERC721Tokens, nil
}

// GetTokensByCollection fetches every token the indexer knows for a collection
func (c *SubgraphClient) GetTokensByCollection(ctx context.Context, contractType domain.ContractType, address string) ([]domain.IndexedToken, error) {
	query := `query GetNFTFromCollection721($address: String!) {
  erc721Tokens(where: {contract: $address}) {
    tokenId
    txCreation
    contract {
      id
    }
  }
}`
	if contractType == domain.ContractTypeERC1155 {
		query = `query GetNFTFromCollection1155($address: String!) {
  erc1155Tokens(where: {contract: $address}) {
    tokenId
    txCreation
    contract {
      id
    }
  }
}`
	}

	var response tokensResponse
	err := c.query(ctx, c.url, operationName(contractType, "GetNFTFromCollection721", "GetNFTFromCollection1155"), query,
		map[string]interface{}{"address": address}, &response)
	if err != nil {
		return nil, err
	}
	if err := graphQLErrs(response.Errors); err != nil {
		return nil, err
	}

	if contractType == domain.ContractTypeERC1155 {
		return response.Data.ERC1155Tokens, nil
	}
	return response.Data.ERC721Tokens, nil
}

func operationName(contractType domain.ContractType, erc721, erc1155 string) string {
	if contractType == domain.ContractTypeERC1155 {
		return erc1155
	}
	return erc721
}

// numberToInt64 parses a subgraph numeric field, quoted or bare, defaulting
// to 0 when the field is absent or malformed
func numberToInt64(raw json.RawMessage) int64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
