package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/domain"
)

// ChainReader is the on-chain read capability: direct, synchronous metadata
// URI lookups against token contracts over a fixed RPC endpoint.
type ChainReader interface {
	// TokenURI fetches a token's metadata URI, dispatching on the contract standard
	TokenURI(ctx context.Context, contractType domain.ContractType, contractAddress, tokenID string) (string, error)

	// Close closes the underlying RPC connection
	Close()
}

const (
	erc721TokenURIABI = `[{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}]`
	erc1155URIABI     = `[{"constant":true,"inputs":[{"name":"id","type":"uint256"}],"name":"uri","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}]`
)

type chainReader struct {
	client adapter.EthClient

	erc721ABI  abi.ABI
	erc1155ABI abi.ABI
}

// NewChainReader creates a chain reader over an established RPC client
func NewChainReader(client adapter.EthClient) (ChainReader, error) {
	erc721ABI, err := abi.JSON(strings.NewReader(erc721TokenURIABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC721 ABI: %w", err)
	}
	erc1155ABI, err := abi.JSON(strings.NewReader(erc1155URIABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC1155 ABI: %w", err)
	}

	return &chainReader{
		client:     client,
		erc721ABI:  erc721ABI,
		erc1155ABI: erc1155ABI,
	}, nil
}

// TokenURI fetches a token's metadata URI. ERC721 contracts expose
// tokenURI(uint256), ERC1155 contracts expose uri(uint256).
func (r *chainReader) TokenURI(ctx context.Context, contractType domain.ContractType, contractAddress, tokenID string) (string, error) {
	switch contractType {
	case domain.ContractTypeERC1155:
		return r.callString(ctx, r.erc1155ABI, "uri", contractAddress, tokenID)
	default:
		return r.callString(ctx, r.erc721ABI, "tokenURI", contractAddress, tokenID)
	}
}

// callString performs an eth_call of a string-returning uint256 accessor
func (r *chainReader) callString(ctx context.Context, contractABI abi.ABI, method, contractAddress, tokenID string) (string, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", fmt.Errorf("invalid token id: %s", tokenID)
	}

	data, err := contractABI.Pack(method, id)
	if err != nil {
		return "", fmt.Errorf("failed to pack data: %w", err)
	}

	contractAddr := common.HexToAddress(contractAddress)
	result, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contractAddr,
		Data: data,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call contract: %w", err)
	}

	var uri string
	if err := contractABI.UnpackIntoInterface(&uri, method, result); err != nil {
		return "", fmt.Errorf("failed to unpack result: %w", err)
	}

	return uri, nil
}

// Close closes the underlying RPC connection
func (r *chainReader) Close() {
	r.client.Close()
}
