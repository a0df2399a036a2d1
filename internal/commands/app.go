// Package commands implements the operator-facing lotto commands on top of
// the execution pipeline, preflight, and mirror adapter.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/preflight"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// Wiring names the deployed contract set a command invocation targets.
type Wiring struct {
	Main        refs.ContractRef
	PoolManager *refs.ContractRef
	Storage     refs.ContractRef
	GasStation  refs.ContractRef
	LazyToken   refs.TokenRef
}

// Executor runs state-changing calls. *pipeline.Pipeline is the production
// implementation.
type Executor interface {
	Execute(ctx context.Context, req pipeline.CallRequest, opts pipeline.Options) (*pipeline.CallResult, error)
}

// MirrorReader is the slice of the mirror adapter the commands consult.
type MirrorReader interface {
	ContractCall(ctx context.Context, to common.Address, calldata []byte, sender *refs.AccountRef) ([]byte, error)
	TokenInfo(ctx context.Context, id hedera.TokenID) (*mirror.TokenMetadata, error)
	HbarBalance(ctx context.Context, account hedera.AccountID) (int64, error)
	TokenRelationship(ctx context.Context, account hedera.AccountID, token hedera.TokenID) (*mirror.TokenRelationship, error)
	ResolveAccount(ctx context.Context, idOrAddress string) (refs.AccountRef, error)
	ResolveContract(ctx context.Context, idOrAddress string) (refs.ContractRef, error)
}

// Preflighter brings the operator account into shape before value moves.
type Preflighter interface {
	Ensure(ctx context.Context, req preflight.Requirements) error
}

// App carries the shared dependencies of every command.
type App struct {
	Environment network.Environment
	Operator    refs.AccountRef
	Client      *hedera.Client
	Mirror      MirrorReader
	Pipeline    Executor
	Preflight   Preflighter
	Artifacts   *artifacts.Registry
	Wiring      Wiring
	Logger      logging.Logger

	// Submitter is non-nil when --multisig is active.
	Submitter pipeline.Submitter

	// JSON switches machine-readable rendering; Out receives all command
	// output.
	JSON bool
	Out  io.Writer
}

// execute runs a state-changing call through the pipeline with the app's
// submitter. REVERT comes back as a result, not an error.
func (a *App) execute(ctx context.Context, artifact string, contract refs.ContractRef, fn string, class pipeline.CallClass, payableTinybar int64, args ...interface{}) (*pipeline.CallResult, error) {
	art, err := a.Artifacts.Load(artifact)
	if err != nil {
		return nil, err
	}
	return a.Pipeline.Execute(ctx, pipeline.CallRequest{
		Contract:       contract,
		Artifact:       art,
		Function:       fn,
		Args:           args,
		PayableTinybar: payableTinybar,
		Class:          class,
	}, pipeline.Options{Submitter: a.Submitter})
}

// read performs a read-only call through the mirror.
func (a *App) read(ctx context.Context, artifact string, contract refs.ContractRef, fn string, args ...interface{}) ([]interface{}, error) {
	art, err := a.Artifacts.Load(artifact)
	if err != nil {
		return nil, err
	}
	calldata, err := art.Encode(fn, args...)
	if err != nil {
		return nil, err
	}
	raw, err := a.Mirror.ContractCall(ctx, contract.EvmAddress, calldata, &a.Operator)
	if err != nil {
		return nil, err
	}
	return art.DecodeReturn(fn, raw)
}

// render writes either the JSON form or the human text produced by the
// callback.
func (a *App) render(v interface{}, text func(w io.Writer)) error {
	if a.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(a.Out)
	return nil
}

// checkResult converts a non-success CallResult into a command error with
// the call-specific hint.
func checkResult(result *pipeline.CallResult, hint string) error {
	switch result.Status {
	case pipeline.StatusSuccess:
		return nil
	case pipeline.StatusRevert:
		msg := result.RevertReason
		if msg == "" {
			msg = "no revert reason"
		}
		if hint != "" {
			return fmt.Errorf("reverted: %s (%s; tx %s)", msg, hint, result.TransactionID)
		}
		return fmt.Errorf("reverted: %s (tx %s)", msg, result.TransactionID)
	default:
		return fmt.Errorf("%s: %v (tx %q; re-query the mirror to learn the outcome)",
			result.Status, result.Err, result.TransactionID)
	}
}

// poolInfo reads the pool's fee parameters needed by value-moving commands.
type poolInfo struct {
	winRate            uint64
	entryFeeBaseUnits  *big.Int
	prizeCount         int64
	outstandingEntries int64
	paused             bool
	closed             bool
	feeToken           refs.TokenRef
}

func (a *App) poolInfo(ctx context.Context, poolID int64) (*poolInfo, error) {
	ret, err := a.read(ctx, "LazyLotto", a.Wiring.Main, "getPoolDetails", big.NewInt(poolID))
	if err != nil {
		return nil, fmt.Errorf("reading pool %d: %w", poolID, err)
	}
	if len(ret) < 10 {
		return nil, fmt.Errorf("pool %d details tuple has %d values", poolID, len(ret))
	}
	info := &poolInfo{}
	winRate, ok := ret[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("pool %d win rate is %T", poolID, ret[2])
	}
	info.winRate = winRate.Uint64()
	if info.entryFeeBaseUnits, ok = ret[3].(*big.Int); !ok {
		return nil, fmt.Errorf("pool %d entry fee is %T", poolID, ret[3])
	}
	if pc, ok := ret[4].(*big.Int); ok {
		info.prizeCount = pc.Int64()
	}
	if oe, ok := ret[5].(*big.Int); ok {
		info.outstandingEntries = oe.Int64()
	}
	if info.paused, ok = ret[7].(bool); !ok {
		return nil, fmt.Errorf("pool %d paused flag is %T", poolID, ret[7])
	}
	if info.closed, ok = ret[8].(bool); !ok {
		return nil, fmt.Errorf("pool %d closed flag is %T", poolID, ret[8])
	}

	feeAddr, ok := ret[9].(common.Address)
	if !ok {
		return nil, fmt.Errorf("pool %d fee token is %T", poolID, ret[9])
	}
	token, err := a.feeTokenRef(ctx, feeAddr)
	if err != nil {
		return nil, err
	}
	info.feeToken = token
	return info, nil
}

// feeTokenRef resolves a fee-token address, filling in decimals and kind
// from the mirror for non-HBAR tokens.
func (a *App) feeTokenRef(ctx context.Context, addr common.Address) (refs.TokenRef, error) {
	token, err := refs.ParseToken(refs.EvmHex(addr))
	if err != nil {
		return refs.TokenRef{}, fmt.Errorf("fee token %s: %w", refs.EvmHex(addr), err)
	}
	if token.IsHbar() {
		return token, nil
	}
	meta, err := a.Mirror.TokenInfo(ctx, token.ID)
	if err != nil {
		return refs.TokenRef{}, fmt.Errorf("fee token %s metadata: %w", token.String(), err)
	}
	return meta.Ref, nil
}
