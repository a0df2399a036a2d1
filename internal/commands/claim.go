package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/preflight"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type claimOutput struct {
	PrizesClaimed    int    `json:"prizesClaimed"`
	NftCollections   int    `json:"nftCollections"`
	TransactionID    string `json:"transactionId"`
	PreflightSkipped bool   `json:"preflightSkipped,omitempty"`
}

// Claim transfers every pending prize to the operator. Before submission
// the destination is associated with each distinct NFT collection in the
// prize set and the storage contract gets its HBAR transfer buffer.
func (a *App) Claim(ctx context.Context) error {
	collections, err := a.pendingPrizeCollections(ctx)
	if err != nil {
		return err
	}

	if err := a.Preflight.Ensure(ctx, preflight.Requirements{
		PrizeCollections: collections,
		WithdrawsNfts:    len(collections) > 0,
	}); err != nil {
		return err
	}

	result, err := a.execute(ctx, "LazyLotto", a.Wiring.Main, "claimAllPrizes",
		pipeline.ClassRoll, 0)
	if err != nil {
		return err
	}
	if err := checkResult(result, "you may have no pending prizes"); err != nil {
		return err
	}

	out := claimOutput{
		PrizesClaimed:  len(result.Events),
		NftCollections: len(collections),
		TransactionID:  result.TransactionID,
	}
	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "claimed prizes (%d event(s), tx %s)\n", len(result.Events), result.TransactionID)
	})
}

// pendingPrizeCollections reads the NFT collections across the operator's
// unclaimed prizes.
func (a *App) pendingPrizeCollections(ctx context.Context) ([]refs.TokenRef, error) {
	ret, err := a.read(ctx, "LazyLotto", a.Wiring.Main, "getPendingPrizeCollections", a.Operator.EvmAddress)
	if err != nil {
		return nil, fmt.Errorf("reading pending prizes: %w", err)
	}
	if len(ret) == 0 {
		return nil, nil
	}
	addrs, ok := ret[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("pending prize collections is %T", ret[0])
	}

	seen := map[common.Address]bool{}
	var collections []refs.TokenRef
	for _, addr := range addrs {
		if addr == (common.Address{}) || seen[addr] {
			continue
		}
		seen[addr] = true
		token, err := refs.ParseToken(refs.EvmHex(addr))
		if err != nil {
			return nil, fmt.Errorf("prize collection %s: %w", refs.EvmHex(addr), err)
		}
		token.Kind = refs.TokenNonFungible
		collections = append(collections, token)
	}
	return collections, nil
}
