package commands

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type healthOutput struct {
	Environment     string            `json:"environment"`
	MirrorReachable bool              `json:"mirrorReachable"`
	OperatorTinybar int64             `json:"operatorTinybar"`
	Contracts       map[string]string `json:"contracts"`
	Healthy         bool              `json:"healthy"`
}

// Health checks mirror reachability, operator funds, and that each wired
// contract answers a trivial read.
func (a *App) Health(ctx context.Context) error {
	out := healthOutput{
		Environment: string(a.Environment),
		Contracts:   map[string]string{},
		Healthy:     true,
	}

	balance, err := a.Mirror.HbarBalance(ctx, a.Operator.ID)
	if err != nil {
		out.Healthy = false
		out.Contracts["mirror"] = err.Error()
	} else {
		out.MirrorReachable = true
		out.OperatorTinybar = balance
		if balance == 0 {
			out.Healthy = false
		}
	}

	checks := []struct {
		name     string
		contract refs.ContractRef
	}{
		{"main", a.Wiring.Main},
		{"storage", a.Wiring.Storage},
		{"gasStation", a.Wiring.GasStation},
	}
	if a.Wiring.PoolManager != nil {
		checks = append(checks, struct {
			name     string
			contract refs.ContractRef
		}{"poolManager", *a.Wiring.PoolManager})
	}

	for _, check := range checks {
		if _, err := a.Mirror.ResolveContract(ctx, check.contract.ID.String()); err != nil {
			out.Contracts[check.name] = fmt.Sprintf("unreachable: %v", err)
			out.Healthy = false
		} else {
			out.Contracts[check.name] = "ok"
		}
	}

	err = a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "environment: %s\n", out.Environment)
		fmt.Fprintf(w, "mirror: reachable=%v\n", out.MirrorReachable)
		fmt.Fprintf(w, "operator balance: %s HBAR\n", renderAmount(big.NewInt(out.OperatorTinybar), refs.Hbar))
		for name, status := range out.Contracts {
			fmt.Fprintf(w, "%s: %s\n", name, status)
		}
	})
	if err != nil {
		return err
	}
	if !out.Healthy {
		return fmt.Errorf("health check failed")
	}
	return nil
}

type infoOutput struct {
	Environment string            `json:"environment"`
	Mirror      string            `json:"mirror"`
	Operator    string            `json:"operator"`
	Contracts   map[string]string `json:"contracts"`
}

// Info prints the resolved wiring without touching the network.
func (a *App) Info(_ context.Context) error {
	out := infoOutput{
		Environment: string(a.Environment),
		Mirror:      a.Environment.MirrorBaseURL(),
		Operator:    a.Operator.String(),
		Contracts: map[string]string{
			"main":       a.Wiring.Main.ID.String(),
			"storage":    a.Wiring.Storage.ID.String(),
			"gasStation": a.Wiring.GasStation.ID.String(),
			"lazyToken":  a.Wiring.LazyToken.String(),
		},
	}
	if a.Wiring.PoolManager != nil {
		out.Contracts["poolManager"] = a.Wiring.PoolManager.ID.String()
	}
	return a.render(out, func(w io.Writer) {
		fmt.Fprintf(w, "environment: %s (mirror %s)\n", out.Environment, out.Mirror)
		fmt.Fprintf(w, "operator: %s\n", out.Operator)
		for name, id := range out.Contracts {
			fmt.Fprintf(w, "%s: %s\n", name, id)
		}
	})
}
