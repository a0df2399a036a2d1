package commands

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/preflight"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type adminOutput struct {
	Action        string `json:"action"`
	PoolID        *int64 `json:"poolId,omitempty"`
	TransactionID string `json:"transactionId"`
}

// PausePool suspends entry purchase and rolling for a pool.
func (a *App) PausePool(ctx context.Context, poolID int64) error {
	return a.adminPoolCall(ctx, "pausePool", poolID, "pause-pool", "are you an admin?")
}

// UnpausePool re-opens a paused pool.
func (a *App) UnpausePool(ctx context.Context, poolID int64) error {
	return a.adminPoolCall(ctx, "unpausePool", poolID, "unpause-pool", "are you an admin?")
}

// ClosePool permanently closes a pool. The contract refuses while entries
// are outstanding.
func (a *App) ClosePool(ctx context.Context, poolID int64) error {
	return a.adminPoolCall(ctx, "closePool", poolID, "close-pool",
		"pool may have outstanding entries")
}

func (a *App) adminPoolCall(ctx context.Context, fn string, poolID int64, action, hint string) error {
	result, err := a.execute(ctx, "LazyLotto", a.Wiring.Main, fn,
		pipeline.ClassDeterministic, 0, big.NewInt(poolID))
	if err != nil {
		return err
	}
	if err := checkResult(result, hint); err != nil {
		return err
	}
	out := adminOutput{Action: action, PoolID: &poolID, TransactionID: result.TransactionID}
	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "%s: pool %d (tx %s)\n", action, poolID, result.TransactionID)
	})
}

// AddPrizes funds a pool with additional fungible prize packages. The
// amounts move from the operator into storage, so the preflight grants the
// storage contract an exact allowance first.
func (a *App) AddPrizes(ctx context.Context, poolID int64, token refs.TokenRef, amountEach int64, count int64) error {
	if count <= 0 || amountEach <= 0 {
		return fmt.Errorf("prize count and amount must be positive")
	}
	total := amountEach * count

	if err := a.Preflight.Ensure(ctx, preflight.Requirements{
		Fungible: []preflight.FungibleNeed{{
			Token:          token,
			Amount:         total,
			NeedsAllowance: !token.IsHbar(),
		}},
	}); err != nil {
		return err
	}

	var payable int64
	if token.IsHbar() {
		payable = total
	}
	result, err := a.execute(ctx, "LazyLotto", a.Wiring.Main, "addPrizePackages",
		pipeline.ClassDeterministic, payable,
		big.NewInt(poolID), token.EvmAddress, big.NewInt(amountEach), big.NewInt(count))
	if err != nil {
		return err
	}
	if err := checkResult(result, "are you an admin or the pool owner?"); err != nil {
		return err
	}
	out := adminOutput{Action: "add-prizes", PoolID: &poolID, TransactionID: result.TransactionID}
	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "added %d prize package(s) of %d %s to pool %d (tx %s)\n",
			count, amountEach, token.String(), poolID, result.TransactionID)
	})
}

// BonusKind selects which bonus table SetBonus writes.
type BonusKind string

const (
	BonusTime        BonusKind = "time"
	BonusNft         BonusKind = "nft"
	BonusLazyBalance BonusKind = "lazy-balance"
)

// SetBonus writes one boost rule on the pool manager. Threshold semantics
// depend on the kind: a unix timestamp window start for time bonuses, a
// minimum balance in base units for lazy-balance bonuses; for NFT bonuses
// the token reference selects the collection and threshold is unused.
func (a *App) SetBonus(ctx context.Context, kind BonusKind, token *refs.TokenRef, threshold int64, multiplierBps int64) error {
	if a.Wiring.PoolManager == nil {
		return fmt.Errorf("no pool manager configured for this environment")
	}
	if multiplierBps <= 0 {
		return fmt.Errorf("multiplier must be positive basis points, got %d", multiplierBps)
	}

	var (
		fn   string
		args []interface{}
	)
	switch kind {
	case BonusTime:
		fn = "setTimeBonus"
		args = []interface{}{big.NewInt(threshold), big.NewInt(multiplierBps)}
	case BonusNft:
		if token == nil {
			return fmt.Errorf("nft bonus requires a collection token")
		}
		fn = "setNFTBonus"
		args = []interface{}{token.EvmAddress, big.NewInt(multiplierBps)}
	case BonusLazyBalance:
		fn = "setLazyBalanceBonus"
		args = []interface{}{big.NewInt(threshold), big.NewInt(multiplierBps)}
	default:
		return fmt.Errorf("unknown bonus kind %q (want time, nft or lazy-balance)", kind)
	}

	result, err := a.execute(ctx, "LazyLottoPoolManager", *a.Wiring.PoolManager, fn,
		pipeline.ClassDeterministic, 0, args...)
	if err != nil {
		return err
	}
	if err := checkResult(result, "are you an admin?"); err != nil {
		return err
	}
	out := adminOutput{Action: "set-bonus:" + string(kind), TransactionID: result.TransactionID}
	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "set %s bonus (tx %s)\n", kind, result.TransactionID)
	})
}
