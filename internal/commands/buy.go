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

type buyOutput struct {
	PoolID        int64  `json:"poolId"`
	Tickets       int64  `json:"tickets"`
	FeeToken      string `json:"feeToken"`
	TotalFee      string `json:"totalFee"`
	Rolled        bool   `json:"rolled"`
	Wins          *int64 `json:"wins,omitempty"`
	TransactionID string `json:"transactionId"`
}

// Buy purchases tickets in a pool, optionally rolling them in the same
// call. The preflight associates the fee token and grants the exact total
// fee to the token's spender before anything is submitted.
func (a *App) Buy(ctx context.Context, poolID, tickets int64, andRoll bool) error {
	if tickets <= 0 {
		return fmt.Errorf("ticket count must be positive, got %d", tickets)
	}
	info, err := a.poolInfo(ctx, poolID)
	if err != nil {
		return err
	}
	if info.closed {
		return fmt.Errorf("pool %d is closed", poolID)
	}
	if info.paused {
		return fmt.Errorf("pool %d is paused", poolID)
	}

	totalFee := new(big.Int).Mul(info.entryFeeBaseUnits, big.NewInt(tickets))
	if err := a.Preflight.Ensure(ctx, preflight.Requirements{
		Fungible: []preflight.FungibleNeed{{
			Token:          info.feeToken,
			Amount:         totalFee.Int64(),
			NeedsAllowance: !info.feeToken.IsHbar(),
		}},
	}); err != nil {
		return err
	}

	fn := "buyEntry"
	class := pipeline.ClassDeterministic
	if andRoll {
		fn = "buyAndRollEntry"
		class = pipeline.ClassRoll
	}
	var payable int64
	if info.feeToken.IsHbar() {
		payable = totalFee.Int64()
	}

	result, err := a.execute(ctx, "LazyLotto", a.Wiring.Main, fn, class, payable,
		big.NewInt(poolID), big.NewInt(tickets))
	if err != nil {
		return err
	}
	if err := checkResult(result, "check pool status and fee balance"); err != nil {
		return err
	}

	out := buyOutput{
		PoolID:        poolID,
		Tickets:       tickets,
		FeeToken:      info.feeToken.String(),
		TotalFee:      renderAmount(totalFee, info.feeToken),
		Rolled:        andRoll,
		TransactionID: result.TransactionID,
	}
	if andRoll {
		if wins, ok := winsFromEvents(result); ok {
			out.Wins = &wins
		}
	}
	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "bought %d ticket(s) in pool %d for %s %s (tx %s)\n",
			tickets, poolID, out.TotalFee, out.FeeToken, result.TransactionID)
		if out.Wins != nil {
			fmt.Fprintf(w, "rolled: %d win(s)\n", *out.Wins)
		} else if andRoll {
			fmt.Fprintln(w, "rolled: win count not reported in logs")
		}
	})
}

// winsFromEvents extracts the win count from a RollCompleted log.
func winsFromEvents(result *pipeline.CallResult) (int64, bool) {
	for _, ev := range result.Events {
		if ev.Name != "RollCompleted" {
			continue
		}
		for _, key := range []string{"wins", "winCount", "numberOfWins"} {
			if v, ok := ev.Args[key]; ok {
				if n, ok := v.(*big.Int); ok {
					return n.Int64(), true
				}
			}
		}
	}
	return 0, false
}

// renderAmount converts base units using the token's decimals; HBAR uses 8.
func renderAmount(baseUnits *big.Int, token refs.TokenRef) string {
	decimals := int64(token.Decimals)
	if decimals == 0 {
		return baseUnits.String()
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	whole, frac := new(big.Int).QuoRem(baseUnits, divisor, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	return fmt.Sprintf("%s.%0*d", whole.String(), int(decimals), frac)
}
