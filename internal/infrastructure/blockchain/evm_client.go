package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	domainerrors "gatekeeper.backend/internal/domain/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	dialEVMClient    = ethclient.Dial
	getClientChainID = func(client *ethclient.Client, ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}
)

var (
	// decimals() selector
	decimalsSelector = common.Hex2Bytes("313ce567")
	// balanceOf(address) selector
	balanceOfSelector = common.Hex2Bytes("70a08231")
)

// contractReader is the subset of ethclient used for token reads.
type contractReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// EVMClient reads fungible token state from an EVM ledger
type EVMClient struct {
	client  *ethclient.Client
	reader  contractReader
	chainID *big.Int
	rpcURL  string
}

// NewEVMClient creates a new EVM client
func NewEVMClient(ctx context.Context, rpcURL string) (*EVMClient, error) {
	client, err := dialEVMClient(rpcURL)
	if err != nil {
		return nil, err
	}

	chainID, err := getClientChainID(client, ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &EVMClient{
		client:  client,
		reader:  client,
		chainID: chainID,
		rpcURL:  rpcURL,
	}, nil
}

// ChainID returns the chain ID
func (c *EVMClient) ChainID() *big.Int {
	return c.chainID
}

// HasCode reports whether a contract is deployed at address
func (c *EVMClient) HasCode(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: malformed address %q", domainerrors.ErrAssetInvalid, address)
	}
	code, err := c.reader.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, classifyRPCError(err)
	}
	return len(code) > 0, nil
}

// TokenDecimals resolves the decimal precision of an ERC-20 token.
// It fails with ErrAssetInvalid when the address is malformed, has no code,
// or does not answer decimals().
func (c *EVMClient) TokenDecimals(ctx context.Context, tokenAddress string) (uint8, error) {
	if !common.IsHexAddress(tokenAddress) {
		return 0, fmt.Errorf("%w: malformed address %q", domainerrors.ErrAssetInvalid, tokenAddress)
	}
	token := common.HexToAddress(tokenAddress)

	hasCode, err := c.HasCode(ctx, tokenAddress)
	if err != nil {
		return 0, err
	}
	if !hasCode {
		return 0, fmt.Errorf("%w: no contract at %s", domainerrors.ErrAssetInvalid, token.Hex())
	}

	result, err := c.reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsSelector}, nil)
	if err != nil {
		return 0, classifyRPCError(err)
	}
	if len(result) < 32 {
		return 0, fmt.Errorf("%w: decimals() not implemented by %s", domainerrors.ErrAssetInvalid, token.Hex())
	}
	decimals := new(big.Int).SetBytes(result[:32])
	if !decimals.IsUint64() || decimals.Uint64() > 77 {
		return 0, fmt.Errorf("%w: implausible decimals %s", domainerrors.ErrAssetInvalid, decimals)
	}
	return uint8(decimals.Uint64()), nil
}

// GetTokenBalance gets the ERC20 token balance of an address in raw units.
// A wallet that never held the token reads as zero.
func (c *EVMClient) GetTokenBalance(ctx context.Context, tokenAddress, ownerAddress string) (*big.Int, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("%w: malformed address %q", domainerrors.ErrAssetInvalid, tokenAddress)
	}
	if !common.IsHexAddress(ownerAddress) {
		return nil, fmt.Errorf("%w: malformed wallet %q", domainerrors.ErrInvalidInput, ownerAddress)
	}
	token := common.HexToAddress(tokenAddress)
	owner := common.HexToAddress(ownerAddress)

	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(owner.Bytes(), 32)...)
	result, err := c.reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, classifyRPCError(err)
	}
	if len(result) == 0 {
		return new(big.Int), nil
	}
	return new(big.Int).SetBytes(result), nil
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// classifyRPCError separates node-side rejections (the node answered, the
// call itself is bad) from transport failures that are safe to retry.
func classifyRPCError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && (rpcErr.ErrorCode() == 3 || strings.Contains(strings.ToLower(rpcErr.Error()), "revert")) {
		return fmt.Errorf("%w: %v", domainerrors.ErrAssetInvalid, err)
	}
	return fmt.Errorf("%w: %v", domainerrors.ErrNetwork, err)
}
