package deployer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// fakeBackend records everything the orchestrator does and mimics the
// wiring reads the verification step performs.
type fakeBackend struct {
	deploys []string
	calls   []string

	nextContract uint64
	lazyTokenID  hedera.TokenID

	// wiring captured from deploys and calls, served back by Read.
	mainLazyToken   common.Address
	mainGasStation  common.Address
	mainStorage     common.Address
	mainPoolManager common.Address
	pmLazyLotto     common.Address
	contractUser    common.Address

	gasUsers map[common.Address]bool

	failCall string // function name that fails once reached
	failSkip int    // matching calls that succeed before the failure

	cancelOn   string // function name that triggers cancel mid-step
	cancel     context.CancelFunc
	stepCtxErr error // step context state observed after the cancel fired
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextContract: 5000,
		lazyTokenID:  hedera.TokenID{Token: 9001},
		gasUsers:     map[common.Address]bool{},
	}
}

func (f *fakeBackend) Deploy(_ context.Context, artifact string, args ...interface{}) (refs.ContractRef, error) {
	f.deploys = append(f.deploys, artifact)
	f.nextContract++
	ref := refs.ContractFromID(hedera.ContractID{Contract: f.nextContract})
	if artifact == "LazyLotto" {
		f.mainLazyToken = args[0].(common.Address)
		f.mainGasStation = args[1].(common.Address)
		f.mainStorage = args[5].(common.Address)
	}
	return ref, nil
}

func (f *fakeBackend) Call(ctx context.Context, contract refs.ContractRef, artifact, fn string, _ int64, args ...interface{}) ([]interface{}, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s.%s@%s", artifact, fn, contract.ID.String()))
	if fn == f.failCall {
		if f.failSkip > 0 {
			f.failSkip--
		} else {
			return nil, errors.New("injected failure")
		}
	}
	if fn == f.cancelOn {
		f.cancel()
		f.stepCtxErr = ctx.Err()
	}
	switch fn {
	case "createFungibleWithBurn":
		return []interface{}{refs.TokenFromID(f.lazyTokenID).EvmAddress}, nil
	case "setContractUser":
		f.contractUser = args[0].(common.Address)
	case "setPoolManager":
		f.mainPoolManager = args[0].(common.Address)
	case "setLazyLotto":
		f.pmLazyLotto = args[0].(common.Address)
	case "addContractUser":
		f.gasUsers[args[0].(common.Address)] = true
	}
	return nil, nil
}

func (f *fakeBackend) Read(_ context.Context, _ refs.ContractRef, _, fn string, args ...interface{}) ([]interface{}, error) {
	switch fn {
	case "isContractUser":
		return []interface{}{f.gasUsers[args[0].(common.Address)]}, nil
	case "lazyToken":
		return []interface{}{f.mainLazyToken}, nil
	case "lazyGasStation":
		return []interface{}{f.mainGasStation}, nil
	case "storageContract":
		return []interface{}{f.mainStorage}, nil
	case "poolManager":
		return []interface{}{f.mainPoolManager}, nil
	case "lazyLotto":
		return []interface{}{f.pmLazyLotto}, nil
	case "contractUser":
		return []interface{}{f.contractUser}, nil
	case "isAdmin":
		return []interface{}{true}, nil
	}
	return nil, fmt.Errorf("unexpected read %s", fn)
}

func (f *fakeBackend) ResolveContract(_ context.Context, idOrAddress string) (refs.ContractRef, error) {
	return refs.ParseContract(idOrAddress)
}

func (f *fakeBackend) ResolveToken(_ context.Context, idOrAddress string) (refs.TokenRef, error) {
	return refs.ParseToken(idOrAddress)
}

func (f *fakeBackend) TransferHbar(_ context.Context, to refs.ContractRef, tinybar int64) error {
	f.calls = append(f.calls, fmt.Sprintf("transfer %d -> %s", tinybar, to.ID.String()))
	return nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	key, err := hedera.PrivateKeyGenerateEd25519()
	require.NoError(t, err)
	return &Config{
		Environment: network.Testnet,
		Operator: network.Operator{
			Account: hedera.AccountID{Account: 1001},
			Key:     key,
		},
		Token: TokenParams{
			Name: "LAZY", Symbol: "LAZY", Decimals: 1,
			MaxSupply: 2_500_000_000, BurnPercent: 25, CreationFeeTinybar: 5_000_000_000,
		},
		NonInteractive: true,
	}
}

func newOrchestrator(t *testing.T, cfg *Config, backend Backend) *Orchestrator {
	t.Helper()
	cfg.StateFile = filepath.Join(t.TempDir(), "deployment-state.json")
	return &Orchestrator{
		Config:  cfg,
		Backend: backend,
		Store:   &StateStore{Path: cfg.StateFile},
		Logger:  logging.NoopLogger{},
	}
}

func TestRun_FreshDeployment(t *testing.T) {
	backend := newFakeBackend()
	o := newOrchestrator(t, testConfig(t), backend)

	require.NoError(t, o.Run(context.Background()))

	st, err := o.Store.Load()
	require.NoError(t, err)
	assert.Equal(t, StepComplete, st.CurrentStep)
	assert.NotNil(t, st.CompletedAt)
	assert.Equal(t, "TEST", st.Environment)

	for _, component := range []string{
		CompLazyToken, CompTokenCreator, CompGasStation, CompDelegateRegistry,
		CompPrng, CompStorage, CompMain, CompPoolManager,
	} {
		assert.NotEmpty(t, st.Contract(component), component)
	}
	assert.Empty(t, st.Contract(CompTradeLotto), "trade lotto not requested")

	assert.Equal(t, []string{
		"LAZYTokenCreator", "LazyGasStation", "LazyDelegateRegistry",
		"PrngSystemContract", "LazyLottoStorage", "LazyLotto", "LazyLottoPoolManager",
	}, backend.deploys, "deploys happen in pipeline order")

	// Step 7 wired storage to the main id recorded in state.
	mainRef, err := refs.ParseContract(st.Contract(CompMain))
	require.NoError(t, err)
	assert.Equal(t, mainRef.EvmAddress, backend.contractUser)
}

func TestRun_ResumeSkipsCompletedSteps(t *testing.T) {
	backend := newFakeBackend()
	backend.failCall = "setContractUser" // dies at step 7, after main deployed
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, backend)

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire-storage")

	st, err := o.Store.Load()
	require.NoError(t, err)
	assert.Equal(t, StepWireStorage, st.CurrentStep)
	require.Len(t, st.Errors, 1)
	assert.Equal(t, StepWireStorage, st.Errors[0].Step)
	mainID := st.Contract(CompMain)
	require.NotEmpty(t, mainID)

	// Restart with --resume on a fresh process.
	backend.failCall = ""
	deploysBefore := len(backend.deploys)
	cfg.Resume = true
	o2 := &Orchestrator{Config: cfg, Backend: backend, Store: &StateStore{Path: cfg.StateFile}, Logger: logging.NoopLogger{}}

	require.NoError(t, o2.Run(context.Background()))
	assert.Len(t, backend.deploys, deploysBefore+1, "only the pool manager deploys after resume")

	st2, err := o2.Store.Load()
	require.NoError(t, err)
	assert.Equal(t, StepComplete, st2.CurrentStep)
	assert.Equal(t, mainID, st2.Contract(CompMain), "resume keeps the recorded main id")

	mainRef, err := refs.ParseContract(mainID)
	require.NoError(t, err)
	assert.Equal(t, mainRef.EvmAddress, backend.contractUser,
		"storage wired to the main id from state")
}

func TestRun_ResumeSkipsLandedGasUserRegistration(t *testing.T) {
	backend := newFakeBackend()
	// The storage registration lands; the main registration fails.
	backend.failCall = "addContractUser"
	backend.failSkip = 1
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, backend)

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register-gas-users")

	// Resume must not re-issue the landed registration, which would
	// revert on-chain.
	backend.failCall = ""
	registered := countWith(backend.calls, "addContractUser")
	cfg.Resume = true
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, registered+1, countWith(backend.calls, "addContractUser"),
		"only the failed registration is retried")
}

func TestRun_ResumeSkipsLandedPoolManagerLink(t *testing.T) {
	backend := newFakeBackend()
	// main -> pool manager lands; the reverse link fails.
	backend.failCall = "setLazyLotto"
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, backend)

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link-pool-manager")

	backend.failCall = ""
	cfg.Resume = true
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, 1, countWith(backend.calls, "setPoolManager"),
		"the landed link is not repeated")
	assert.Equal(t, 2, countWith(backend.calls, "setLazyLotto"),
		"one failed attempt plus the retried one")
}

func TestRun_InterruptFinishesInFlightStepThenStops(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, backend)

	// The interrupt arrives while step 7 is mid-flight.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend.cancelOn = "setContractUser"
	backend.cancel = cancel

	err := o.Run(ctx)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.NoError(t, backend.stepCtxErr,
		"the in-flight step keeps an uncancelled context to observe its outcome")

	st, loadErr := o.Store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, StepRegisterGasUsers, st.CurrentStep,
		"the interrupted run checkpointed past the in-flight step")
	assert.Empty(t, st.Errors, "an interrupt is not a step failure")

	// Resume completes without repeating the wiring call.
	wiringCalls := countWith(backend.calls, "setContractUser")
	cfg.Resume = true
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, wiringCalls, countWith(backend.calls, "setContractUser"))

	st2, loadErr := o.Store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, StepComplete, st2.CurrentStep)
}

func countWith(calls []string, substr string) int {
	n := 0
	for _, c := range calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func TestRun_CompletedStateIsNoOpUnderResume(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, backend)
	require.NoError(t, o.Run(context.Background()))

	deploys, calls := len(backend.deploys), len(backend.calls)
	cfg.Resume = true
	require.NoError(t, o.Run(context.Background()))
	assert.Len(t, backend.deploys, deploys, "no new deployments")
	assert.Len(t, backend.calls, calls, "no new calls")
}

func TestRun_RefusesExistingIncompleteStateWithoutResume(t *testing.T) {
	backend := newFakeBackend()
	backend.failCall = "addContractUser"
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, backend)
	require.Error(t, o.Run(context.Background()))

	err := o.Run(context.Background())
	assert.True(t, errors.Is(err, ErrStateExists))
}

func TestRun_ReuseIDsValidatedNotDeployed(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t)
	cfg.Reuse.LazyToken = "0.0.9001"
	cfg.Reuse.TokenCreator = "0.0.4000"
	cfg.Reuse.GasStation = "0.0.4001"
	o := newOrchestrator(t, cfg, backend)

	require.NoError(t, o.Run(context.Background()))
	for _, artifact := range backend.deploys {
		assert.NotContains(t, []string{"LAZYTokenCreator", "LazyGasStation"}, artifact)
	}
	st, err := o.Store.Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.9001", st.Contract(CompLazyToken))
	assert.Equal(t, "0.0.4001", st.Contract(CompGasStation))
}

func TestRun_MainnetRefusedWithoutConfirmation(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t)
	cfg.Environment = network.Mainnet
	o := newOrchestrator(t, cfg, backend)
	o.Out = &strings.Builder{}
	// o.In stays nil: no interactive input available.

	err := o.Run(context.Background())
	assert.True(t, errors.Is(err, network.ErrMainnetConfirmationRequired))
	assert.Empty(t, backend.deploys, "no network I/O before the gate")
	assert.Empty(t, backend.calls)
}

func TestRun_MainnetProceedsWithLiteralConfirmation(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t)
	cfg.Environment = network.Mainnet
	o := newOrchestrator(t, cfg, backend)
	o.In = strings.NewReader("MAINNET\n")
	o.Out = &strings.Builder{}

	require.NoError(t, o.Run(context.Background()))
}

func TestRun_ResumeAndVerifyOnlyMutuallyExclusive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resume = true
	cfg.VerifyOnly = true
	o := newOrchestrator(t, cfg, newFakeBackend())

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestVerify_ReportsEveryMismatch(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t)
	o := newOrchestrator(t, cfg, backend)
	require.NoError(t, o.Run(context.Background()))

	st, err := o.Store.Load()
	require.NoError(t, err)

	// Corrupt two observed values; both must appear in the report.
	backend.mainGasStation = common.HexToAddress("0xdead")
	backend.pmLazyLotto = common.HexToAddress("0xbeef")

	err = o.Verify(context.Background(), st)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerificationFailed))
	assert.Contains(t, err.Error(), "main.lazyGasStation")
	assert.Contains(t, err.Error(), "poolManager.lazyLotto")

	// Verification is read-only: a second run reports the same outcome.
	err2 := o.Verify(context.Background(), st)
	assert.Equal(t, err.Error(), err2.Error())
}

func TestStateStore_RefusesForeignModification(t *testing.T) {
	dir := t.TempDir()
	store := &StateStore{Path: filepath.Join(dir, "state.json")}

	st := NewState("TEST", StepLazyToken)
	require.NoError(t, store.Save(st))

	// Another process rewrites the file.
	other := &StateStore{Path: store.Path}
	loaded, err := other.Load()
	require.NoError(t, err)
	loaded.SetContract(CompMain, "0.0.42")
	require.NoError(t, other.Save(loaded))

	err = store.Save(st)
	assert.True(t, errors.Is(err, ErrStateFileModified))
}
