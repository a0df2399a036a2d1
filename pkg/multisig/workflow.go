package multisig

import (
	"context"
	"errors"
	"fmt"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
)

// ErrExported signals that the transaction was written to disk for offline
// signing instead of being submitted. It wraps the pipeline's abort sentinel
// so the pipeline surfaces it as an error rather than a NETWORK_ERROR result;
// callers treat it as a clean stop, not a failure.
var ErrExported = fmt.Errorf("%w: transaction exported for offline signing", pipeline.ErrSubmissionAborted)

// IsExported reports whether the error chain ends in an offline export.
func IsExported(err error) bool {
	return errors.Is(err, ErrExported)
}

// ExportSubmitter freezes the transaction and writes the <base>.bin/.json
// export pair instead of submitting. The frozen transaction must be signed
// and merged within its validity window; the descriptor carries the expiry.
type ExportSubmitter struct {
	Coordinator *Coordinator
	Base        string
}

func (s *ExportSubmitter) SubmitContractExecute(_ context.Context, tx *hedera.ContractExecuteTransaction) (hedera.TransactionResponse, error) {
	frozen, err := s.Coordinator.Freeze(tx)
	if err != nil {
		return hedera.TransactionResponse{}, err
	}
	if err := Export(frozen, s.Base, s.Coordinator.Threshold); err != nil {
		return hedera.TransactionResponse{}, err
	}
	s.Coordinator.Logger.Infof("Exported frozen transaction to %s.bin (descriptor %s.json, expires %s)",
		s.Base, s.Base, frozen.Deadline().Format("15:04:05"))
	return hedera.TransactionResponse{}, fmt.Errorf("%w: %s.bin", ErrExported, s.Base)
}

// OfflineSubmitter completes an offline workflow: it loads a previously
// exported frozen transaction, merges the signature files collected
// out-of-band, and submits. The freshly built transaction from the pipeline
// is discarded; the exported one is what the signers actually signed.
type OfflineSubmitter struct {
	Coordinator    *Coordinator
	FrozenPath     string
	SignaturePaths []string
}

func (s *OfflineSubmitter) SubmitContractExecute(ctx context.Context, _ *hedera.ContractExecuteTransaction) (hedera.TransactionResponse, error) {
	frozen, err := LoadFrozen(s.FrozenPath)
	if err != nil {
		return hedera.TransactionResponse{}, err
	}
	descriptors, err := ReadSignatureFiles(s.SignaturePaths)
	if err != nil {
		return hedera.TransactionResponse{}, err
	}
	if _, err := Assemble(frozen, descriptors, s.Coordinator.Threshold); err != nil {
		return hedera.TransactionResponse{}, err
	}
	s.Coordinator.Logger.Infof("Assembled %d signature file(s) from %s", len(descriptors), s.FrozenPath)
	return s.Coordinator.Submit(ctx, frozen)
}
