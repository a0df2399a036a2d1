package commands

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
)

type rollOutput struct {
	PoolID        int64  `json:"poolId"`
	Wins          *int64 `json:"wins,omitempty"`
	TransactionID string `json:"transactionId"`
}

// Roll resolves all of the operator's outstanding entries in a pool. Gas is
// roll-class: execution cost varies with how many wins land.
func (a *App) Roll(ctx context.Context, poolID int64) error {
	result, err := a.execute(ctx, "LazyLotto", a.Wiring.Main, "rollAll",
		pipeline.ClassRoll, 0, big.NewInt(poolID))
	if err != nil {
		return err
	}
	if err := checkResult(result, "you may have no outstanding entries in this pool"); err != nil {
		return err
	}

	out := rollOutput{PoolID: poolID, TransactionID: result.TransactionID}
	if wins, ok := winsFromEvents(result); ok {
		out.Wins = &wins
	}
	return a.render(out, func(w io.Writer) {
		if out.Wins != nil {
			fmt.Fprintf(w, "rolled pool %d: %d win(s) (tx %s)\n", poolID, *out.Wins, result.TransactionID)
		} else {
			fmt.Fprintf(w, "rolled pool %d (tx %s)\n", poolID, result.TransactionID)
		}
	})
}
