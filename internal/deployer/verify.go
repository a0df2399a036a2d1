package deployer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// ErrVerificationFailed carries the full mismatch report; state is never
// mutated by verification.
var ErrVerificationFailed = errors.New("deployment verification failed")

type verifyCheck struct {
	description string
	contract    string // component whose getter is read
	artifact    string
	fn          string
	args        []interface{}
	expected    func(st *State) (interface{}, error)
}

// Verify re-reads the immutable wiring of every deployed contract and
// asserts it matches state. All checks run even after a mismatch so the
// report is complete.
func (o *Orchestrator) Verify(ctx context.Context, st *State) error {
	checks := []verifyCheck{
		{
			description: "main.lazyToken == lazyToken",
			contract:    CompMain, artifact: "LazyLotto", fn: "lazyToken",
			expected: func(st *State) (interface{}, error) { return o.tokenAddr(st, CompLazyToken) },
		},
		{
			description: "main.lazyGasStation == gasStation",
			contract:    CompMain, artifact: "LazyLotto", fn: "lazyGasStation",
			expected: func(st *State) (interface{}, error) { return o.contractAddr(st, CompGasStation) },
		},
		{
			description: "main.storageContract == storage",
			contract:    CompMain, artifact: "LazyLotto", fn: "storageContract",
			expected: func(st *State) (interface{}, error) { return o.contractAddr(st, CompStorage) },
		},
		{
			description: "main.poolManager == poolManager",
			contract:    CompMain, artifact: "LazyLotto", fn: "poolManager",
			expected: func(st *State) (interface{}, error) { return o.contractAddr(st, CompPoolManager) },
		},
		{
			description: "poolManager.lazyLotto == main",
			contract:    CompPoolManager, artifact: "LazyLottoPoolManager", fn: "lazyLotto",
			expected: func(st *State) (interface{}, error) { return o.contractAddr(st, CompMain) },
		},
		{
			description: "storage.contractUser == main",
			contract:    CompStorage, artifact: "LazyLottoStorage", fn: "contractUser",
			expected: func(st *State) (interface{}, error) { return o.contractAddr(st, CompMain) },
		},
		{
			description: "operator is admin on main",
			contract:    CompMain, artifact: "LazyLotto", fn: "isAdmin",
			args:        []interface{}{refs.AccountFromID(o.Config.Operator.Account).EvmAddress},
			expected:    func(*State) (interface{}, error) { return true, nil },
		},
	}

	var mismatches []string
	for _, check := range checks {
		expected, err := check.expected(st)
		if err != nil {
			mismatches = append(mismatches, fmt.Sprintf("%s: %v", check.description, err))
			continue
		}
		target, err := o.stateContract(st, check.contract)
		if err != nil {
			mismatches = append(mismatches, fmt.Sprintf("%s: %v", check.description, err))
			continue
		}
		ret, err := o.Backend.Read(ctx, target, check.artifact, check.fn, check.args...)
		if err != nil {
			mismatches = append(mismatches, fmt.Sprintf("%s: read failed: %v", check.description, err))
			continue
		}
		if len(ret) == 0 {
			mismatches = append(mismatches, fmt.Sprintf("%s: empty return", check.description))
			continue
		}
		if !valuesEqual(expected, ret[0]) {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, observed %v",
				check.description, renderValue(expected), renderValue(ret[0])))
			continue
		}
		o.Logger.Infof("verified %s", check.description)
	}

	if len(mismatches) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrVerificationFailed, strings.Join(mismatches, "\n  "))
	}
	return nil
}


func valuesEqual(expected, observed interface{}) bool {
	if ea, ok := expected.(common.Address); ok {
		oa, ok := observed.(common.Address)
		return ok && ea == oa
	}
	return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", observed)
}

func renderValue(v interface{}) string {
	if addr, ok := v.(common.Address); ok {
		return "0x" + common.Bytes2Hex(addr.Bytes())
	}
	return fmt.Sprintf("%v", v)
}
