package commands

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type userOutput struct {
	Account     string `json:"account"`
	HbarTinybar int64  `json:"hbarTinybar"`
	Hbar        string `json:"hbar"`

	// LazyAssociated distinguishes "no LAZY row" from a zero balance.
	LazyAssociated bool   `json:"lazyAssociated"`
	LazyBalance    string `json:"lazyBalance,omitempty"`

	PendingEntries int64 `json:"pendingEntries"`
	PendingPrizes  int64 `json:"pendingPrizes"`
}

// User reports an account's standing: balances and outstanding lotto state.
// With no argument it reports the operator.
func (a *App) User(ctx context.Context, accountArg string) error {
	account := a.Operator
	if accountArg != "" {
		resolved, err := a.Mirror.ResolveAccount(ctx, accountArg)
		if err != nil {
			return fmt.Errorf("resolving account %q: %w", accountArg, err)
		}
		account = resolved
	}

	hbar, err := a.Mirror.HbarBalance(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("reading HBAR balance: %w", err)
	}

	out := userOutput{
		Account:     account.String(),
		HbarTinybar: hbar,
		Hbar:        renderAmount(big.NewInt(hbar), refs.Hbar),
	}

	rel, err := a.Mirror.TokenRelationship(ctx, account.ID, a.Wiring.LazyToken.ID)
	if err != nil {
		return fmt.Errorf("reading LAZY balance: %w", err)
	}
	if rel != nil {
		out.LazyAssociated = true
		out.LazyBalance = renderAmount(big.NewInt(rel.Balance), a.Wiring.LazyToken)
	}

	if entries, err := a.readUserCount(ctx, "getUsersEntries", account); err == nil {
		out.PendingEntries = entries
	}
	if prizes, err := a.readUserCount(ctx, "getUsersPendingPrizes", account); err == nil {
		out.PendingPrizes = prizes
	}

	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "account %s\n", out.Account)
		fmt.Fprintf(w, "  HBAR: %s\n", out.Hbar)
		if out.LazyAssociated {
			fmt.Fprintf(w, "  LAZY: %s\n", out.LazyBalance)
		} else {
			fmt.Fprintln(w, "  LAZY: not associated")
		}
		fmt.Fprintf(w, "  entries pending roll: %d\n", out.PendingEntries)
		fmt.Fprintf(w, "  prizes pending claim: %d\n", out.PendingPrizes)
	})
}

func (a *App) readUserCount(ctx context.Context, fn string, account refs.AccountRef) (int64, error) {
	ret, err := a.read(ctx, "LazyLotto", a.Wiring.Main, fn, account.EvmAddress)
	if err != nil {
		return 0, err
	}
	if len(ret) == 0 {
		return 0, fmt.Errorf("%s returned nothing", fn)
	}
	n, ok := ret[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%s returned %T", fn, ret[0])
	}
	return n.Int64(), nil
}
