package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
)

const defaultLedgerTimeout = 10 * time.Second

// AssetOracle answers holding questions against the ledger. Token decimals
// are immutable, so each asset is resolved once and then only balances are read.
type AssetOracle struct {
	ledger  TokenLedger
	timeout time.Duration

	mu       sync.RWMutex
	resolved map[string]uint8
}

// NewAssetOracle creates a new asset oracle. Every ledger call is bounded by timeout.
func NewAssetOracle(ledger TokenLedger, timeout time.Duration) *AssetOracle {
	if timeout <= 0 {
		timeout = defaultLedgerTimeout
	}
	return &AssetOracle{ledger: ledger, timeout: timeout, resolved: make(map[string]uint8)}
}

// ValidateAsset checks that asset resolves to a real token
func (o *AssetOracle) ValidateAsset(ctx context.Context, asset string) error {
	_, err := o.decimals(ctx, strings.TrimSpace(asset))
	return err
}

// Holding returns the raw amount of asset held by wallet, with the asset's decimals.
// A wallet that never held the asset holds zero.
func (o *AssetOracle) Holding(ctx context.Context, asset, wallet string) (*big.Int, uint8, error) {
	asset = strings.TrimSpace(asset)
	decimals, err := o.decimals(ctx, asset)
	if err != nil {
		return nil, 0, err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	balance, err := o.ledger.GetTokenBalance(callCtx, asset, wallet)
	if err != nil {
		return nil, 0, classifyLedgerError(err)
	}
	if balance == nil {
		balance = new(big.Int)
	}
	return balance, decimals, nil
}

// Compliant reports whether wallet meets requirement. Without an asset there is
// nothing to hold and every wallet is compliant. Without a minimum any positive
// holding suffices.
func (o *AssetOracle) Compliant(ctx context.Context, requirement entities.AssetRequirement, wallet string) (bool, error) {
	if !requirement.Asset.Valid || strings.TrimSpace(requirement.Asset.String) == "" {
		return true, nil
	}

	balance, decimals, err := o.Holding(ctx, requirement.Asset.String, wallet)
	if err != nil {
		return false, err
	}

	if !requirement.MinimumAmount.Valid || requirement.MinimumAmount.Int64 <= 0 {
		return balance.Sign() > 0, nil
	}
	return balance.Cmp(RawAmount(requirement.MinimumAmount.Int64, decimals)) >= 0, nil
}

func (o *AssetOracle) decimals(ctx context.Context, asset string) (uint8, error) {
	if asset == "" {
		return 0, fmt.Errorf("%w: empty asset", domainerrors.ErrAssetInvalid)
	}
	key := strings.ToLower(asset)
	o.mu.RLock()
	decimals, ok := o.resolved[key]
	o.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	decimals, err := o.ledger.TokenDecimals(callCtx, asset)
	if err != nil {
		return 0, classifyLedgerError(err)
	}
	o.mu.Lock()
	o.resolved[key] = decimals
	o.mu.Unlock()
	return decimals, nil
}

// RawAmount converts a human-unit amount to raw units: amount * 10^decimals.
func RawAmount(amount int64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(amount), scale)
}

func classifyLedgerError(err error) error {
	if errors.Is(err, domainerrors.ErrAssetInvalid) ||
		errors.Is(err, domainerrors.ErrNetwork) ||
		errors.Is(err, domainerrors.ErrInvalidInput) {
		return err
	}
	// Anything else, timeouts included, is a failure to reach the ledger.
	return fmt.Errorf("%w: %v", domainerrors.ErrNetwork, err)
}
