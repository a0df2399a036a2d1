package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/preflight"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

const lottoAbi = `{
  "contractName": "LazyLotto",
  "abi": [
    {"type":"function","name":"getPoolDetails","stateMutability":"view",
     "inputs":[{"name":"poolId","type":"uint256"}],
     "outputs":[
       {"name":"ticketCid","type":"string"},
       {"name":"winCid","type":"string"},
       {"name":"winRate","type":"uint256"},
       {"name":"entryFee","type":"uint256"},
       {"name":"prizeCount","type":"uint256"},
       {"name":"outstandingEntries","type":"uint256"},
       {"name":"poolNft","type":"address"},
       {"name":"paused","type":"bool"},
       {"name":"closed","type":"bool"},
       {"name":"feeToken","type":"address"}]},
    {"type":"function","name":"buyEntry","stateMutability":"payable",
     "inputs":[{"name":"poolId","type":"uint256"},{"name":"tickets","type":"uint256"}],"outputs":[]},
    {"type":"function","name":"buyAndRollEntry","stateMutability":"payable",
     "inputs":[{"name":"poolId","type":"uint256"},{"name":"tickets","type":"uint256"}],"outputs":[]},
    {"type":"function","name":"rollAll","stateMutability":"nonpayable",
     "inputs":[{"name":"poolId","type":"uint256"}],"outputs":[]},
    {"type":"function","name":"pausePool","stateMutability":"nonpayable",
     "inputs":[{"name":"poolId","type":"uint256"}],"outputs":[]}
  ],
  "bytecode": "0x"
}`

var (
	testLazy  = refs.TokenRef{ID: hedera.TokenID{Token: 111}, EvmAddress: refs.TokenFromID(hedera.TokenID{Token: 111}).EvmAddress, Symbol: "LAZY", Decimals: 1, Kind: refs.TokenFungible}
	testMain  = refs.ContractFromID(hedera.ContractID{Contract: 4000})
	testOwner = refs.AccountFromID(hedera.AccountID{Account: 1001})
)

type poolFixture struct {
	entryFee int64
	paused   bool
	closed   bool
	feeToken common.Address
}

// fakeMirror serves getPoolDetails from fixtures and token metadata for the
// LAZY token.
type fakeMirror struct {
	t        *testing.T
	registry *artifacts.Registry
	pools    map[int64]poolFixture
}

func (f *fakeMirror) ContractCall(_ context.Context, _ common.Address, calldata []byte, _ *refs.AccountRef) ([]byte, error) {
	art, err := f.registry.Load("LazyLotto")
	require.NoError(f.t, err)
	method, err := art.ABI.MethodById(calldata[:4])
	require.NoError(f.t, err)
	if method.Name != "getPoolDetails" {
		return nil, fmt.Errorf("unexpected mirror call %s", method.Name)
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	require.NoError(f.t, err)
	pool, ok := f.pools[args[0].(*big.Int).Int64()]
	if !ok {
		return nil, &mirror.RevertError{Message: "INVALID_POOL"}
	}
	return method.Outputs.Pack(
		"ipfs://ticket", "ipfs://win",
		big.NewInt(1_000_000), big.NewInt(pool.entryFee),
		big.NewInt(1), big.NewInt(0),
		common.Address{}, pool.paused, pool.closed, pool.feeToken)
}

func (f *fakeMirror) TokenInfo(_ context.Context, id hedera.TokenID) (*mirror.TokenMetadata, error) {
	if id == testLazy.ID {
		return &mirror.TokenMetadata{Ref: testLazy}, nil
	}
	return nil, mirror.ErrNotFound
}

func (f *fakeMirror) HbarBalance(context.Context, hedera.AccountID) (int64, error) {
	return 500_000_000, nil
}

func (f *fakeMirror) TokenRelationship(context.Context, hedera.AccountID, hedera.TokenID) (*mirror.TokenRelationship, error) {
	return nil, nil
}

func (f *fakeMirror) ResolveAccount(_ context.Context, idOrAddress string) (refs.AccountRef, error) {
	return refs.ParseAccount(idOrAddress)
}

func (f *fakeMirror) ResolveContract(_ context.Context, idOrAddress string) (refs.ContractRef, error) {
	return refs.ParseContract(idOrAddress)
}

type fakeExecutor struct {
	requests []pipeline.CallRequest
	result   *pipeline.CallResult
}

func (f *fakeExecutor) Execute(_ context.Context, req pipeline.CallRequest, _ pipeline.Options) (*pipeline.CallResult, error) {
	f.requests = append(f.requests, req)
	if f.result != nil {
		return f.result, nil
	}
	return &pipeline.CallResult{Status: pipeline.StatusSuccess, TransactionID: "0.0.1001@123.456"}, nil
}

type fakePreflighter struct {
	requirements []preflight.Requirements
	err          error
}

func (f *fakePreflighter) Ensure(_ context.Context, req preflight.Requirements) error {
	f.requirements = append(f.requirements, req)
	return f.err
}

type testHarness struct {
	app       *App
	mirror    *fakeMirror
	executor  *fakeExecutor
	preflight *fakePreflighter
	out       *bytes.Buffer
}

func newHarness(t *testing.T, pools map[int64]poolFixture) *testHarness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LazyLotto.json"), []byte(lottoAbi), 0644))
	registry := artifacts.NewRegistry(dir)

	h := &testHarness{
		mirror:    &fakeMirror{t: t, registry: registry, pools: pools},
		executor:  &fakeExecutor{},
		preflight: &fakePreflighter{},
		out:       &bytes.Buffer{},
	}
	h.app = &App{
		Environment: network.Testnet,
		Operator:    testOwner,
		Mirror:      h.mirror,
		Pipeline:    h.executor,
		Preflight:   h.preflight,
		Artifacts:   registry,
		Wiring: Wiring{
			Main:       testMain,
			Storage:    refs.ContractFromID(hedera.ContractID{Contract: 4002}),
			GasStation: refs.ContractFromID(hedera.ContractID{Contract: 4003}),
			LazyToken:  testLazy,
		},
		Logger: logging.NoopLogger{},
		JSON:   true,
		Out:    h.out,
	}
	return h
}

func TestBuy_FungibleFeePreflightAndRollClass(t *testing.T) {
	h := newHarness(t, map[int64]poolFixture{
		0: {entryFee: 100, feeToken: testLazy.EvmAddress},
	})
	wins := big.NewInt(2)
	h.executor.result = &pipeline.CallResult{
		Status:        pipeline.StatusSuccess,
		TransactionID: "0.0.1001@123.456",
		Events: []artifacts.DecodedEvent{
			{Name: "RollCompleted", Args: map[string]interface{}{"wins": wins}},
		},
	}

	require.NoError(t, h.app.Buy(context.Background(), 0, 3, true))

	// Preflight asked for exactly fee*tickets with an allowance.
	require.Len(t, h.preflight.requirements, 1)
	needs := h.preflight.requirements[0].Fungible
	require.Len(t, needs, 1)
	assert.Equal(t, testLazy.ID, needs[0].Token.ID)
	assert.Equal(t, int64(300), needs[0].Amount)
	assert.True(t, needs[0].NeedsAllowance)

	// The combined call goes out roll-class with nothing attached.
	require.Len(t, h.executor.requests, 1)
	req := h.executor.requests[0]
	assert.Equal(t, "buyAndRollEntry", req.Function)
	assert.Equal(t, pipeline.ClassRoll, req.Class)
	assert.Zero(t, req.PayableTinybar)

	var out buyOutput
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &out))
	require.NotNil(t, out.Wins)
	assert.Equal(t, int64(2), *out.Wins)
	assert.Equal(t, "30", out.TotalFee, "300 base units at 1 decimal")
}

func TestBuy_HbarFeeGoesPayable(t *testing.T) {
	h := newHarness(t, map[int64]poolFixture{
		0: {entryFee: 50_000_000, feeToken: common.Address{}},
	})

	require.NoError(t, h.app.Buy(context.Background(), 0, 2, false))

	require.Len(t, h.preflight.requirements, 1)
	needs := h.preflight.requirements[0].Fungible
	require.Len(t, needs, 1)
	assert.True(t, needs[0].Token.IsHbar())
	assert.False(t, needs[0].NeedsAllowance, "HBAR entry fees ride the payable amount")

	req := h.executor.requests[0]
	assert.Equal(t, "buyEntry", req.Function)
	assert.Equal(t, pipeline.ClassDeterministic, req.Class)
	assert.Equal(t, int64(100_000_000), req.PayableTinybar)
}

func TestBuy_RefusesClosedAndPausedPools(t *testing.T) {
	h := newHarness(t, map[int64]poolFixture{
		0: {entryFee: 100, closed: true, feeToken: testLazy.EvmAddress},
		1: {entryFee: 100, paused: true, feeToken: testLazy.EvmAddress},
	})

	err := h.app.Buy(context.Background(), 0, 1, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	err = h.app.Buy(context.Background(), 1, 1, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paused")

	assert.Empty(t, h.executor.requests, "nothing submitted")
	assert.Empty(t, h.preflight.requirements, "preflight not even attempted")
}

func TestBuy_PreflightFailureBlocksSubmission(t *testing.T) {
	h := newHarness(t, map[int64]poolFixture{
		0: {entryFee: 100, feeToken: testLazy.EvmAddress},
	})
	h.preflight.err = fmt.Errorf("%w: need 300", preflight.ErrInsufficientBalance)

	err := h.app.Buy(context.Background(), 0, 3, false)
	assert.True(t, errors.Is(err, preflight.ErrInsufficientBalance))
	assert.Empty(t, h.executor.requests, "pipeline refuses to submit")
}

func TestRoll_RevertSurfacesHintAndReason(t *testing.T) {
	h := newHarness(t, nil)
	h.executor.result = &pipeline.CallResult{
		Status:        pipeline.StatusRevert,
		RevertReason:  "NoEntries",
		TransactionID: "0.0.1001@123.456",
	}

	err := h.app.Roll(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoEntries")
	assert.Contains(t, err.Error(), "outstanding entries")
}

func TestPausePool_AdminCall(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.app.PausePool(context.Background(), 7))
	require.Len(t, h.executor.requests, 1)
	assert.Equal(t, "pausePool", h.executor.requests[0].Function)
	assert.Equal(t, pipeline.ClassDeterministic, h.executor.requests[0].Class)
}

func TestUser_NotAssociatedIsDistinctFromZero(t *testing.T) {
	h := newHarness(t, nil)

	// fakeMirror reports no LAZY relationship row; the user read for
	// entries/prizes fails and falls back to zero.
	require.NoError(t, h.app.User(context.Background(), ""))

	var out userOutput
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &out))
	assert.False(t, out.LazyAssociated)
	assert.Empty(t, out.LazyBalance, "no balance rendered for a missing association")
	assert.Equal(t, "5", out.Hbar, "500,000,000 tinybar")
}

func TestRenderAmount(t *testing.T) {
	tests := []struct {
		baseUnits int64
		decimals  uint32
		want      string
	}{
		{300, 1, "30"},
		{305, 1, "30.5"},
		{100_000_000, 8, "1"},
		{123_456_789, 8, "1.23456789"},
		{7, 0, "7"},
	}
	for _, tt := range tests {
		token := refs.TokenRef{Decimals: tt.decimals, Kind: refs.TokenFungible}
		assert.Equal(t, tt.want, renderAmount(big.NewInt(tt.baseUnits), token), "%d @ %d decimals", tt.baseUnits, tt.decimals)
	}
}
