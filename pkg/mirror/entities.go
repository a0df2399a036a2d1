package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type contractEntity struct {
	ContractID string `json:"contract_id"`
	EvmAddress string `json:"evm_address"`
	Deleted    bool   `json:"deleted"`
}

type accountEntity struct {
	Account    string `json:"account"`
	EvmAddress string `json:"evm_address"`
	Balance    struct {
		Balance int64 `json:"balance"`
		Tokens  []struct {
			TokenID string `json:"token_id"`
			Balance int64  `json:"balance"`
		} `json:"tokens"`
	} `json:"balance"`
}

// ResolveContract looks up a contract by native id or EVM address and returns
// the normalized ref carrying both forms.
func (a *Adapter) ResolveContract(ctx context.Context, idOrAddress string) (refs.ContractRef, error) {
	var entity contractEntity
	if err := a.getJSON(ctx, "/api/v1/contracts/"+idOrAddress, &entity); err != nil {
		return refs.ContractRef{}, err
	}
	id, err := hedera.ContractIDFromString(entity.ContractID)
	if err != nil {
		return refs.ContractRef{}, fmt.Errorf("%w: contract id %q: %v", ErrDecode, entity.ContractID, err)
	}
	ref := refs.ContractFromID(id)
	if entity.EvmAddress != "" {
		addr, err := refs.ParseAddress(entity.EvmAddress)
		if err != nil {
			return refs.ContractRef{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		ref.EvmAddress = addr
	}
	return ref, nil
}

// ResolveAccount looks up an account by native id, alias or EVM address.
func (a *Adapter) ResolveAccount(ctx context.Context, idOrAddress string) (refs.AccountRef, error) {
	var entity accountEntity
	if err := a.getJSON(ctx, "/api/v1/accounts/"+idOrAddress, &entity); err != nil {
		return refs.AccountRef{}, err
	}
	id, err := hedera.AccountIDFromString(entity.Account)
	if err != nil {
		return refs.AccountRef{}, fmt.Errorf("%w: account id %q: %v", ErrDecode, entity.Account, err)
	}
	ref := refs.AccountFromID(id)
	if entity.EvmAddress != "" {
		addr, err := refs.ParseAddress(entity.EvmAddress)
		if err != nil {
			return refs.AccountRef{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		ref.EvmAddress = addr
	}
	return ref, nil
}

// ResolveAddress translates a 20-byte EVM address to a native entity id.
// With an unknown kind the probe order is contract, token, account; the
// first match wins. An address that is both a contract and an account
// resolves as the contract, and the ambiguity is logged.
func (a *Adapter) ResolveAddress(ctx context.Context, addr common.Address, hint refs.EntityKind) (refs.EntityKind, string, error) {
	hex := refs.EvmHex(addr)

	probe := func(kind refs.EntityKind) (string, error) {
		switch kind {
		case refs.KindContract:
			ref, err := a.ResolveContract(ctx, hex)
			if err != nil {
				return "", err
			}
			return ref.ID.String(), nil
		case refs.KindToken:
			// The tokens endpoint only takes native ids; only long-zero
			// addresses can be token addresses.
			if !refs.IsLongZero(addr) {
				return "", fmt.Errorf("%w: token address %s", ErrNotFound, hex)
			}
			id := hedera.TokenID{Token: refs.LongZeroNum(addr)}
			if _, err := a.TokenInfo(ctx, id); err != nil {
				return "", err
			}
			return id.String(), nil
		case refs.KindAccount:
			ref, err := a.ResolveAccount(ctx, hex)
			if err != nil {
				return "", err
			}
			return ref.ID.String(), nil
		}
		return "", fmt.Errorf("%w: unknown entity kind", ErrNotFound)
	}

	if hint != refs.KindUnknown {
		id, err := probe(hint)
		if err != nil {
			return refs.KindUnknown, "", err
		}
		return hint, id, nil
	}

	for _, kind := range []refs.EntityKind{refs.KindContract, refs.KindToken, refs.KindAccount} {
		id, err := probe(kind)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return refs.KindUnknown, "", err
		}
		if kind == refs.KindContract {
			if _, accErr := probe(refs.KindAccount); accErr == nil {
				a.logger.Warnf("address %s resolves as both contract and account; preferring contract", hex)
			}
		}
		return kind, id, nil
	}
	return refs.KindUnknown, "", fmt.Errorf("%w: %s matches no entity", ErrNotFound, hex)
}
