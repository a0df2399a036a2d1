package deployer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// Component names as recorded in the checkpoint's contracts map.
const (
	CompLazyToken        = "lazyToken"
	CompTokenCreator     = "tokenCreator"
	CompGasStation       = "gasStation"
	CompDelegateRegistry = "delegateRegistry"
	CompPrng             = "prng"
	CompStorage          = "storage"
	CompMain             = "lazyLotto"
	CompPoolManager      = "poolManager"
	CompTradeLotto       = "tradeLotto"
)

// Step names form the checkpoint's currentStep enum, in execution order.
const (
	StepLazyToken        = "lazy-token"
	StepGasStation       = "gas-station"
	StepDelegateRegistry = "delegate-registry"
	StepRandomness       = "randomness"
	StepStorage          = "storage"
	StepMain             = "main"
	StepWireStorage      = "wire-storage"
	StepRegisterGasUsers = "register-gas-users"
	StepFundGasStation   = "fund-gas-station"
	StepPoolManager      = "pool-manager"
	StepLinkPoolManager  = "link-pool-manager"
	StepTradeLotto       = "trade-lotto"
	StepVerify           = "verify"
	StepComplete         = "complete"
)

type step struct {
	name string
	run  func(ctx context.Context, st *State) error
}

// steps returns the ordered pipeline. Later steps consume earlier artifacts
// by reference, so the order is never changed or parallelized.
func (o *Orchestrator) steps() []step {
	return []step{
		{StepLazyToken, o.stepLazyToken},
		{StepGasStation, o.stepGasStation},
		{StepDelegateRegistry, o.stepDelegateRegistry},
		{StepRandomness, o.stepRandomness},
		{StepStorage, o.stepStorage},
		{StepMain, o.stepMain},
		{StepWireStorage, o.stepWireStorage},
		{StepRegisterGasUsers, o.stepRegisterGasUsers},
		{StepFundGasStation, o.stepFundGasStation},
		{StepPoolManager, o.stepPoolManager},
		{StepLinkPoolManager, o.stepLinkPoolManager},
		{StepTradeLotto, o.stepTradeLotto},
		{StepVerify, func(ctx context.Context, st *State) error { return o.Verify(ctx, st) }},
	}
}

// stepLazyToken deploys the token creator and mints the LAZY token through
// it, or validates both when reuse ids are supplied.
func (o *Orchestrator) stepLazyToken(ctx context.Context, st *State) error {
	if o.Config.Reuse.LazyToken != "" && o.Config.Reuse.TokenCreator != "" {
		token, err := o.Backend.ResolveToken(ctx, o.Config.Reuse.LazyToken)
		if err != nil {
			return fmt.Errorf("reusing LAZY token %s: %w", o.Config.Reuse.LazyToken, err)
		}
		creator, err := o.Backend.ResolveContract(ctx, o.Config.Reuse.TokenCreator)
		if err != nil {
			return fmt.Errorf("reusing token creator %s: %w", o.Config.Reuse.TokenCreator, err)
		}
		st.SetContract(CompLazyToken, token.ID.String())
		st.SetContract(CompTokenCreator, creator.ID.String())
		o.Logger.Infof("reusing LAZY token %s (creator %s)", token.ID.String(), creator.ID.String())
		return nil
	}

	creator, err := o.Backend.Deploy(ctx, "LAZYTokenCreator")
	if err != nil {
		return err
	}
	st.SetContract(CompTokenCreator, creator.ID.String())

	p := o.Config.Token
	ret, err := o.Backend.Call(ctx, creator, "LAZYTokenCreator", "createFungibleWithBurn",
		p.CreationFeeTinybar,
		p.Name, p.Symbol,
		bigInt(p.MaxSupply), bigInt(p.Decimals), bigInt(p.BurnPercent))
	if err != nil {
		return fmt.Errorf("creating LAZY token: %w", err)
	}
	tokenAddr, err := addressReturn(ret, 0)
	if err != nil {
		return fmt.Errorf("createFungibleWithBurn return: %w", err)
	}
	token, err := tokenFromAddress(tokenAddr)
	if err != nil {
		return err
	}
	st.SetContract(CompLazyToken, token.ID.String())
	o.Logger.Infof("created LAZY token %s via %s", token.ID.String(), creator.ID.String())
	return nil
}

func (o *Orchestrator) stepGasStation(ctx context.Context, st *State) error {
	return o.deployOrReuse(ctx, st, CompGasStation, "LazyGasStation", o.Config.Reuse.GasStation,
		func() ([]interface{}, error) {
			lazy, err := o.tokenAddr(st, CompLazyToken)
			if err != nil {
				return nil, err
			}
			creator, err := o.contractAddr(st, CompTokenCreator)
			if err != nil {
				return nil, err
			}
			return []interface{}{lazy, creator}, nil
		})
}

func (o *Orchestrator) stepDelegateRegistry(ctx context.Context, st *State) error {
	return o.deployOrReuse(ctx, st, CompDelegateRegistry, "LazyDelegateRegistry", o.Config.Reuse.DelegateRegistry, noArgs)
}

func (o *Orchestrator) stepRandomness(ctx context.Context, st *State) error {
	return o.deployOrReuse(ctx, st, CompPrng, "PrngSystemContract", o.Config.Reuse.Prng, noArgs)
}

func (o *Orchestrator) stepStorage(ctx context.Context, st *State) error {
	return o.deployOrReuse(ctx, st, CompStorage, "LazyLottoStorage", o.Config.Reuse.Storage,
		func() ([]interface{}, error) {
			gasStation, err := o.contractAddr(st, CompGasStation)
			if err != nil {
				return nil, err
			}
			lazy, err := o.tokenAddr(st, CompLazyToken)
			if err != nil {
				return nil, err
			}
			return []interface{}{gasStation, lazy}, nil
		})
}

func (o *Orchestrator) stepMain(ctx context.Context, st *State) error {
	return o.deployOrReuse(ctx, st, CompMain, "LazyLotto", o.Config.Reuse.Main,
		func() ([]interface{}, error) {
			args := make([]interface{}, 0, 6)
			for _, dep := range []struct {
				component string
				token     bool
			}{
				{CompLazyToken, true},
				{CompGasStation, false},
				{CompDelegateRegistry, false},
				{CompPrng, false},
			} {
				var addr common.Address
				var err error
				if dep.token {
					addr, err = o.tokenAddr(st, dep.component)
				} else {
					addr, err = o.contractAddr(st, dep.component)
				}
				if err != nil {
					return nil, err
				}
				args = append(args, addr)
			}
			args = append(args, bigInt(o.Config.Token.BurnPercent))
			storageAddr, err := o.contractAddr(st, CompStorage)
			if err != nil {
				return nil, err
			}
			return append(args, storageAddr), nil
		})
}

// stepWireStorage sets storage.contractUser to the main contract. The write
// is one-shot on the storage side, so the main id always comes from state,
// never from configuration.
func (o *Orchestrator) stepWireStorage(ctx context.Context, st *State) error {
	mainID := st.Contract(CompMain)
	if mainID == "" {
		return fmt.Errorf("main contract id missing from state; cannot wire storage")
	}
	storage, err := o.stateContract(st, CompStorage)
	if err != nil {
		return err
	}
	mainAddr, err := o.contractAddr(st, CompMain)
	if err != nil {
		return err
	}
	if _, err := o.Backend.Call(ctx, storage, "LazyLottoStorage", "setContractUser", 0, mainAddr); err != nil {
		return fmt.Errorf("wiring storage to %s: %w", mainID, err)
	}
	o.Logger.Infof("storage %s wired to main %s (irreversible)", storage.ID.String(), mainID)
	return nil
}

// stepRegisterGasUsers runs two writes; a resumed run skips the ones the
// ledger already shows so a repeated addContractUser cannot revert the step.
func (o *Orchestrator) stepRegisterGasUsers(ctx context.Context, st *State) error {
	gasStation, err := o.stateContract(st, CompGasStation)
	if err != nil {
		return err
	}
	for _, component := range []string{CompStorage, CompMain} {
		addr, err := o.contractAddr(st, component)
		if err != nil {
			return err
		}
		if err := o.registerGasUser(ctx, gasStation, component, addr); err != nil {
			return err
		}
	}
	return nil
}

// registerGasUser adds addr as a gas station user unless it already is one.
// A failed read falls through to the write.
func (o *Orchestrator) registerGasUser(ctx context.Context, gasStation refs.ContractRef, component string, addr common.Address) error {
	ret, err := o.Backend.Read(ctx, gasStation, "LazyGasStation", "isContractUser", addr)
	if err == nil && len(ret) > 0 {
		if registered, ok := ret[0].(bool); ok && registered {
			o.Logger.Infof("%s already registered with gas station", component)
			return nil
		}
	}
	if _, err := o.Backend.Call(ctx, gasStation, "LazyGasStation", "addContractUser", 0, addr); err != nil {
		return fmt.Errorf("registering %s with gas station: %w", component, err)
	}
	return nil
}

// stepFundGasStation optionally tops up the gas station with HBAR. Skipped
// without prompting in non-interactive mode.
func (o *Orchestrator) stepFundGasStation(ctx context.Context, st *State) error {
	if o.Config.NonInteractive || o.Prompt == nil {
		o.Logger.Info("skipping gas station funding (non-interactive)")
		return nil
	}
	answer, err := o.Prompt("HBAR amount to fund the gas station with (empty to skip): ")
	if err != nil {
		return fmt.Errorf("funding prompt: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || answer == "0" {
		return nil
	}
	hbar, err := strconv.ParseFloat(answer, 64)
	if err != nil || hbar < 0 {
		return fmt.Errorf("invalid HBAR amount %q", answer)
	}
	gasStation, err := o.stateContract(st, CompGasStation)
	if err != nil {
		return err
	}
	tinybar := int64(hbar * 100_000_000)
	if err := o.Backend.TransferHbar(ctx, gasStation, tinybar); err != nil {
		return fmt.Errorf("funding gas station: %w", err)
	}
	o.Logger.Infof("funded gas station %s with %d tinybar", gasStation.ID.String(), tinybar)
	return nil
}

func (o *Orchestrator) stepPoolManager(ctx context.Context, st *State) error {
	return o.deployOrReuse(ctx, st, CompPoolManager, "LazyLottoPoolManager", o.Config.Reuse.PoolManager,
		func() ([]interface{}, error) {
			lazy, err := o.tokenAddr(st, CompLazyToken)
			if err != nil {
				return nil, err
			}
			gasStation, err := o.contractAddr(st, CompGasStation)
			if err != nil {
				return nil, err
			}
			registry, err := o.contractAddr(st, CompDelegateRegistry)
			if err != nil {
				return nil, err
			}
			return []interface{}{lazy, gasStation, registry}, nil
		})
}

// stepLinkPoolManager cross-links main and the pool manager. Each direction
// is read back first so a resumed run never repeats a landed link.
func (o *Orchestrator) stepLinkPoolManager(ctx context.Context, st *State) error {
	main, err := o.stateContract(st, CompMain)
	if err != nil {
		return err
	}
	poolManager, err := o.stateContract(st, CompPoolManager)
	if err != nil {
		return err
	}
	if o.addressGetterHolds(ctx, main, "LazyLotto", "poolManager", poolManager.EvmAddress) {
		o.Logger.Info("main already linked to pool manager")
	} else if _, err := o.Backend.Call(ctx, main, "LazyLotto", "setPoolManager", 0, poolManager.EvmAddress); err != nil {
		return fmt.Errorf("linking main -> pool manager: %w", err)
	}
	if o.addressGetterHolds(ctx, poolManager, "LazyLottoPoolManager", "lazyLotto", main.EvmAddress) {
		o.Logger.Info("pool manager already linked to main")
	} else if _, err := o.Backend.Call(ctx, poolManager, "LazyLottoPoolManager", "setLazyLotto", 0, main.EvmAddress); err != nil {
		return fmt.Errorf("linking pool manager -> main: %w", err)
	}
	return nil
}

// addressGetterHolds reports whether an address getter already returns want.
// Read failures count as "not yet", letting the write proceed.
func (o *Orchestrator) addressGetterHolds(ctx context.Context, contract refs.ContractRef, artifact, fn string, want common.Address) bool {
	ret, err := o.Backend.Read(ctx, contract, artifact, fn)
	if err != nil || len(ret) == 0 {
		return false
	}
	got, ok := ret[0].(common.Address)
	return ok && got == want
}

// stepTradeLotto deploys the optional companion contract and registers it
// with the gas station.
func (o *Orchestrator) stepTradeLotto(ctx context.Context, st *State) error {
	if !o.Config.IncludeTradeLotto {
		return nil
	}
	signer, err := network.ParsePrivateKey(o.Config.TradeLottoSigner)
	if err != nil {
		return fmt.Errorf("trade-lotto signing key: %w", err)
	}

	err = o.deployOrReuse(ctx, st, CompTradeLotto, "LazyTradeLotto", o.Config.Reuse.TradeLotto,
		func() ([]interface{}, error) {
			lazy, err := o.tokenAddr(st, CompLazyToken)
			if err != nil {
				return nil, err
			}
			gasStation, err := o.contractAddr(st, CompGasStation)
			if err != nil {
				return nil, err
			}
			prng, err := o.contractAddr(st, CompPrng)
			if err != nil {
				return nil, err
			}
			signerAddr := common.HexToAddress(signer.PublicKey().ToEthereumAddress())
			return []interface{}{lazy, gasStation, prng, signerAddr}, nil
		})
	if err != nil {
		return err
	}

	gasStation, err := o.stateContract(st, CompGasStation)
	if err != nil {
		return err
	}
	tradeAddr, err := o.contractAddr(st, CompTradeLotto)
	if err != nil {
		return err
	}
	return o.registerGasUser(ctx, gasStation, CompTradeLotto, tradeAddr)
}

// deployOrReuse validates a reuse id when supplied, otherwise deploys the
// artifact with constructor args built from established state.
func (o *Orchestrator) deployOrReuse(ctx context.Context, st *State, component, artifact, reuse string, buildArgs func() ([]interface{}, error)) error {
	if reuse != "" {
		ref, err := o.Backend.ResolveContract(ctx, reuse)
		if err != nil {
			return fmt.Errorf("reusing %s %s: %w", component, reuse, err)
		}
		st.SetContract(component, ref.ID.String())
		o.Logger.Infof("reusing %s %s", component, ref.ID.String())
		return nil
	}
	args, err := buildArgs()
	if err != nil {
		return err
	}
	ref, err := o.Backend.Deploy(ctx, artifact, args...)
	if err != nil {
		return fmt.Errorf("deploying %s: %w", component, err)
	}
	st.SetContract(component, ref.ID.String())
	o.Logger.Infof("deployed %s as %s", component, ref.ID.String())
	return nil
}

func noArgs() ([]interface{}, error) { return nil, nil }

// stateContract parses the recorded id for a component.
func (o *Orchestrator) stateContract(st *State, component string) (refs.ContractRef, error) {
	id := st.Contract(component)
	if id == "" {
		return refs.ContractRef{}, fmt.Errorf("component %s missing from state", component)
	}
	return refs.ParseContract(id)
}

func (o *Orchestrator) contractAddr(st *State, component string) (common.Address, error) {
	ref, err := o.stateContract(st, component)
	if err != nil {
		return common.Address{}, err
	}
	return ref.EvmAddress, nil
}

func (o *Orchestrator) tokenAddr(st *State, component string) (common.Address, error) {
	id := st.Contract(component)
	if id == "" {
		return common.Address{}, fmt.Errorf("component %s missing from state", component)
	}
	ref, err := refs.ParseToken(id)
	if err != nil {
		return common.Address{}, err
	}
	return ref.EvmAddress, nil
}
