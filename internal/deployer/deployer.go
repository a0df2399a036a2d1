// Package deployer drives the LazyLotto contract set from nothing (or any
// partially-deployed state) to a fully wired, verified installation. Every
// step commits a checkpoint, so an interrupted run resumes without
// re-executing completed work.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

var (
	ErrStateRequired = errors.New("no deployment state to resume; run without --resume to start fresh")
	ErrStateExists   = errors.New("deployment state exists; pass --resume to continue or remove the file")
	ErrUnknownStep   = errors.New("state names a step this build does not know")
	ErrInterrupted   = errors.New("deployment interrupted; state saved, rerun with --resume")
)

// Backend is the network side of the orchestrator. The production
// implementation wraps the Hedera client, pipeline, and mirror adapter.
type Backend interface {
	// Deploy creates a contract from a named artifact with ABI-encoded
	// constructor args and the artifact's fixed gas budget.
	Deploy(ctx context.Context, artifact string, args ...interface{}) (refs.ContractRef, error)

	// Call executes a state-changing function through the pipeline with
	// deterministic-class gas. A REVERT result is returned as an error
	// carrying the decoded reason.
	Call(ctx context.Context, contract refs.ContractRef, artifact, fn string, payableTinybar int64, args ...interface{}) ([]interface{}, error)

	// Read performs a read-only call via the mirror.
	Read(ctx context.Context, contract refs.ContractRef, artifact, fn string, args ...interface{}) ([]interface{}, error)

	// ResolveContract and ResolveToken validate reuse ids against the
	// ledger.
	ResolveContract(ctx context.Context, idOrAddress string) (refs.ContractRef, error)
	ResolveToken(ctx context.Context, idOrAddress string) (refs.TokenRef, error)

	// TransferHbar moves tinybars from the operator to a contract.
	TransferHbar(ctx context.Context, to refs.ContractRef, tinybar int64) error
}

// Orchestrator runs the deployment pipeline against one environment.
type Orchestrator struct {
	Config  *Config
	Backend Backend
	Store   *StateStore
	Logger  logging.Logger

	// In and Out carry the mainnet confirmation dialogue.
	In  io.Reader
	Out io.Writer

	// Prompt asks the operator a free-form question; nil disables all
	// optional prompts.
	Prompt func(question string) (string, error)
}

// Run advances the deployment to completion, or to the first failure. The
// mainnet gate fires before any network I/O.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Config.Validate(); err != nil {
		return err
	}
	if o.Config.Environment == network.Mainnet {
		if err := network.ConfirmMainnet(o.In, o.Out); err != nil {
			return err
		}
	}

	if o.Config.VerifyOnly {
		st, err := o.Store.Load()
		if err != nil {
			return err
		}
		if st == nil {
			return ErrStateRequired
		}
		return o.Verify(ctx, st)
	}

	st, err := o.loadOrCreateState()
	if err != nil {
		return err
	}

	steps := o.steps()
	start, err := stepIndex(steps, st.CurrentStep)
	if err != nil {
		return err
	}

	for i := start; i < len(steps); i++ {
		if err := ctx.Err(); err != nil {
			o.Logger.Warnf("interrupted before step %s", steps[i].name)
			if saveErr := o.Store.Save(st); saveErr != nil {
				return fmt.Errorf("%w; state not persisted: %v", ErrInterrupted, saveErr)
			}
			return ErrInterrupted
		}

		s := steps[i]
		st.CurrentStep = s.name
		o.Logger.Infof("step %d/%d: %s", i+1, len(steps), s.name)

		// The step runs to its terminal outcome even after an interrupt,
		// so a submitted transaction's receipt is observed and
		// checkpointed. Cancellation takes effect between steps.
		if err := s.run(context.WithoutCancel(ctx), st); err != nil {
			st.AppendError(s.name, err)
			if saveErr := o.Store.Save(st); saveErr != nil {
				return fmt.Errorf("step %s failed (%v); state not persisted: %w", s.name, err, saveErr)
			}
			return fmt.Errorf("step %s: %w (state saved; rerun with --resume)", s.name, err)
		}

		if i+1 < len(steps) {
			st.CurrentStep = steps[i+1].name
		} else {
			st.CurrentStep = StepComplete
			now := time.Now().UTC()
			st.CompletedAt = &now
		}
		if err := o.Store.Save(st); err != nil {
			return err
		}
	}

	o.Logger.Infof("deployment complete: %d contracts recorded", len(st.Contracts))
	return nil
}

// loadOrCreateState applies the resume policy: --resume requires an existing
// incomplete state; a fresh run refuses to clobber one.
func (o *Orchestrator) loadOrCreateState() (*State, error) {
	st, err := o.Store.Load()
	if err != nil {
		return nil, err
	}
	if o.Config.Resume {
		if st == nil {
			return nil, ErrStateRequired
		}
		o.Logger.Infof("resuming from step %s", st.CurrentStep)
		return st, nil
	}
	if st != nil && st.CurrentStep != StepComplete {
		return nil, fmt.Errorf("%w: %s (currentStep=%s)", ErrStateExists, o.Store.Path, st.CurrentStep)
	}
	return NewState(string(o.Config.Environment), o.steps()[0].name), nil
}

func stepIndex(steps []step, name string) (int, error) {
	if name == StepComplete {
		return len(steps), nil
	}
	for i, s := range steps {
		if s.name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

func bigInt(v int64) *big.Int { return new(big.Int).SetInt64(v) }

// addressReturn pulls a common.Address out of a decoded return tuple.
func addressReturn(ret []interface{}, idx int) (common.Address, error) {
	if idx >= len(ret) {
		return common.Address{}, fmt.Errorf("return tuple has %d values, want index %d", len(ret), idx)
	}
	addr, ok := ret[idx].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("return value %d is %T, want address", idx, ret[idx])
	}
	return addr, nil
}

// tokenFromAddress converts a long-zero token address to a TokenRef.
func tokenFromAddress(addr common.Address) (refs.TokenRef, error) {
	return refs.ParseToken(refs.EvmHex(addr))
}
