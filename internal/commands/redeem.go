package commands

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/preflight"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type redeemOutput struct {
	PoolID        int64  `json:"poolId"`
	Direction     string `json:"direction"`
	Count         int64  `json:"count"`
	TransactionID string `json:"transactionId"`
}

// Redeem converts held entries into NFT-wrapped tickets, or unwraps ticket
// NFTs back into entries. Wrapping mints into the pool's ticket collection,
// so the operator must be associated with it first.
func (a *App) Redeem(ctx context.Context, poolID, count int64, toNft bool) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	direction := "entries-to-nft"
	fn := "redeemEntriesToNft"
	if !toNft {
		direction = "nft-to-entries"
		fn = "redeemNftToEntries"
	}

	if toNft {
		ticketCollection, err := a.poolTicketCollection(ctx, poolID)
		if err != nil {
			return err
		}
		if ticketCollection != nil {
			if err := a.Preflight.Ensure(ctx, preflight.Requirements{
				PrizeCollections: []refs.TokenRef{*ticketCollection},
			}); err != nil {
				return err
			}
		}
	}

	result, err := a.execute(ctx, "LazyLotto", a.Wiring.Main, fn,
		pipeline.ClassDeterministic, 0, big.NewInt(poolID), big.NewInt(count))
	if err != nil {
		return err
	}
	if err := checkResult(result, "check your entry and ticket balances for this pool"); err != nil {
		return err
	}

	out := redeemOutput{PoolID: poolID, Direction: direction, Count: count, TransactionID: result.TransactionID}
	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "redeemed %d (%s) in pool %d (tx %s)\n", count, direction, poolID, result.TransactionID)
	})
}

// poolTicketCollection reads the pool's ticket NFT collection; nil when the
// pool has none configured.
func (a *App) poolTicketCollection(ctx context.Context, poolID int64) (*refs.TokenRef, error) {
	ret, err := a.read(ctx, "LazyLotto", a.Wiring.Main, "getPoolDetails", big.NewInt(poolID))
	if err != nil {
		return nil, fmt.Errorf("reading pool %d: %w", poolID, err)
	}
	if len(ret) < 7 {
		return nil, fmt.Errorf("pool %d details tuple has %d values", poolID, len(ret))
	}
	addr, ok := ret[6].(common.Address)
	if !ok {
		return nil, fmt.Errorf("pool %d NFT collection is %T", poolID, ret[6])
	}
	if addr == (common.Address{}) {
		return nil, nil
	}
	token, err := refs.ParseToken(refs.EvmHex(addr))
	if err != nil {
		return nil, err
	}
	token.Kind = refs.TokenNonFungible
	return &token, nil
}
