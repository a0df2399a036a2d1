package deployer

import (
	"context"
	"fmt"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// NetworkBackend is the production Backend: contract creation through the
// SDK's create flow, calls through the pipeline, reads through the mirror.
type NetworkBackend struct {
	Client    *hedera.Client
	Pipeline  *pipeline.Pipeline
	Mirror    *mirror.Adapter
	Artifacts *artifacts.Registry
	Logger    logging.Logger
}

func NewNetworkBackend(client *hedera.Client, p *pipeline.Pipeline, m *mirror.Adapter, reg *artifacts.Registry, logger logging.Logger) *NetworkBackend {
	return &NetworkBackend{Client: client, Pipeline: p, Mirror: m, Artifacts: reg, Logger: logger}
}

func (b *NetworkBackend) Deploy(ctx context.Context, artifact string, args ...interface{}) (refs.ContractRef, error) {
	art, err := b.Artifacts.Load(artifact)
	if err != nil {
		return refs.ContractRef{}, err
	}
	var ctorParams []byte
	if len(args) > 0 {
		ctorParams, err = art.ABI.Constructor.Inputs.Pack(args...)
		if err != nil {
			return refs.ContractRef{}, fmt.Errorf("%s constructor args: %w", artifact, err)
		}
	}

	gas := artifacts.CreateGasFor(artifact)
	b.Logger.Infof("deploying %s (gas %d)", artifact, gas)

	flow := hedera.NewContractCreateFlow().
		SetBytecode(art.Bytecode).
		SetGas(int64(gas))
	if len(ctorParams) > 0 {
		flow = flow.SetConstructorParametersRaw(ctorParams)
	}
	resp, err := flow.Execute(b.Client)
	if err != nil {
		return refs.ContractRef{}, fmt.Errorf("deploying %s: %w", artifact, err)
	}
	receipt, err := hedera.NewTransactionReceiptQuery().
		SetTransactionID(resp.TransactionID).
		Execute(b.Client)
	if err != nil {
		return refs.ContractRef{}, fmt.Errorf("deploy receipt for %s: %w", artifact, err)
	}
	if receipt.ContractID == nil {
		return refs.ContractRef{}, fmt.Errorf("deploy of %s returned no contract id", artifact)
	}
	return refs.ContractFromID(*receipt.ContractID), nil
}

func (b *NetworkBackend) Call(ctx context.Context, contract refs.ContractRef, artifact, fn string, payableTinybar int64, args ...interface{}) ([]interface{}, error) {
	art, err := b.Artifacts.Load(artifact)
	if err != nil {
		return nil, err
	}
	result, err := b.Pipeline.Execute(ctx, pipeline.CallRequest{
		Contract:       contract,
		Artifact:       art,
		Function:       fn,
		Args:           args,
		PayableTinybar: payableTinybar,
		Class:          pipeline.ClassDeterministic,
	}, pipeline.Options{})
	if err != nil {
		return nil, err
	}
	switch result.Status {
	case pipeline.StatusSuccess:
		return result.Return, nil
	case pipeline.StatusRevert:
		if result.RevertReason != "" {
			return nil, fmt.Errorf("%s.%s reverted: %s", artifact, fn, result.RevertReason)
		}
		return nil, fmt.Errorf("%s.%s reverted (tx %s)", artifact, fn, result.TransactionID)
	default:
		return nil, fmt.Errorf("%s.%s: %s: %v", artifact, fn, result.Status, result.Err)
	}
}

func (b *NetworkBackend) Read(ctx context.Context, contract refs.ContractRef, artifact, fn string, args ...interface{}) ([]interface{}, error) {
	art, err := b.Artifacts.Load(artifact)
	if err != nil {
		return nil, err
	}
	calldata, err := art.Encode(fn, args...)
	if err != nil {
		return nil, err
	}
	raw, err := b.Mirror.ContractCall(ctx, contract.EvmAddress, calldata, nil)
	if err != nil {
		return nil, err
	}
	return art.DecodeReturn(fn, raw)
}

func (b *NetworkBackend) ResolveContract(ctx context.Context, idOrAddress string) (refs.ContractRef, error) {
	return b.Mirror.ResolveContract(ctx, idOrAddress)
}

func (b *NetworkBackend) ResolveToken(ctx context.Context, idOrAddress string) (refs.TokenRef, error) {
	ref, err := refs.ParseToken(idOrAddress)
	if err != nil {
		return refs.TokenRef{}, err
	}
	meta, err := b.Mirror.TokenInfo(ctx, ref.ID)
	if err != nil {
		return refs.TokenRef{}, fmt.Errorf("validating token %s: %w", idOrAddress, err)
	}
	return meta.Ref, nil
}

func (b *NetworkBackend) TransferHbar(ctx context.Context, to refs.ContractRef, tinybar int64) error {
	accountForm := hedera.AccountID{Shard: to.ID.Shard, Realm: to.ID.Realm, Account: to.ID.Contract}
	resp, err := hedera.NewTransferTransaction().
		AddHbarTransfer(b.Pipeline.Operator.ID, hedera.HbarFromTinybar(-tinybar)).
		AddHbarTransfer(accountForm, hedera.HbarFromTinybar(tinybar)).
		Execute(b.Client)
	if err != nil {
		return fmt.Errorf("transferring %d tinybar to %s: %w", tinybar, to.ID.String(), err)
	}
	_, err = hedera.NewTransactionReceiptQuery().
		SetTransactionID(resp.TransactionID).
		Execute(b.Client)
	if err != nil {
		return fmt.Errorf("transfer receipt: %w", err)
	}
	return nil
}
