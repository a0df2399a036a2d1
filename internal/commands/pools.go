package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lazysuperheroes/lazylotto-cli/internal/indexer"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// appReader adapts the app's mirror read path to the indexer's interface.
type appReader struct{ app *App }

func (r appReader) Read(ctx context.Context, contract refs.ContractRef, artifact, fn string, args ...interface{}) ([]interface{}, error) {
	return r.app.read(ctx, artifact, contract, fn, args...)
}

// Pools lists every pool; activeOnly filters the output to rollable pools.
func (a *App) Pools(ctx context.Context, activeOnly bool) error {
	ix := indexer.New(appReader{a}, a.Wiring.Main, a.Wiring.PoolManager, string(a.Environment), a.Logger)
	doc, err := ix.Run(ctx, indexer.Options{ActiveOnly: activeOnly, Throttle: 100 * time.Millisecond})
	if err != nil {
		return err
	}
	return a.render(doc, func(w io.Writer) {
		fmt.Fprintf(w, "%d pool(s) on chain, %d shown\n", doc.Stats.TotalPoolsOnChain, doc.Stats.IndexedPools)
		for _, p := range doc.Pools {
			renderPoolLine(w, p)
		}
	})
}

// Pool shows a single pool by id.
func (a *App) Pool(ctx context.Context, poolID int64) error {
	ix := indexer.New(appReader{a}, a.Wiring.Main, a.Wiring.PoolManager, string(a.Environment), a.Logger)
	doc, err := ix.Run(ctx, indexer.Options{})
	if err != nil {
		return err
	}
	for _, p := range doc.Pools {
		if p.ID == poolID {
			return a.render(p, func(w io.Writer) {
				renderPoolLine(w, p)
				for _, prize := range p.Prizes {
					if prize.Note != "" {
						fmt.Fprintf(w, "  prize: %s\n", prize.Note)
					} else {
						fmt.Fprintf(w, "  prize: %s %s + %d NFT collection(s)\n", prize.Amount, prize.Token, prize.NftCollections)
					}
				}
			})
		}
	}
	return fmt.Errorf("pool %d not found (%d pools on chain)", poolID, doc.Stats.TotalPoolsOnChain)
}

func renderPoolLine(w io.Writer, p indexer.PoolSummary) {
	if p.Status == indexer.StatusError {
		fmt.Fprintf(w, "pool %d: error: %s\n", p.ID, p.Error)
		return
	}
	kind := "global"
	if p.IsCommunityPool {
		kind = "community"
	}
	fmt.Fprintf(w, "pool %d [%s, %s]: win %.4f%%, fee %s %s, %d prize(s), %d outstanding\n",
		p.ID, p.Status, kind, p.WinRatePercent, p.EntryFee, p.FeeToken, p.PrizeCount, p.OutstandingEntries)
}
