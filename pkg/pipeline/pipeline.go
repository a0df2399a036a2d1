// Package pipeline is the shared transaction machinery: every interactive
// command encodes its call, estimates gas, optionally routes through the
// multi-sig coordinator, submits, and interprets the receipt through this
// package.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

var (
	ErrNotPayable = errors.New("function is not payable")

	// ErrSubmissionAborted marks a submitter that deliberately stopped
	// before the network saw anything, e.g. an offline export. It is
	// returned as an error, not folded into a NETWORK_ERROR result.
	ErrSubmissionAborted = errors.New("submission aborted before reaching the network")
)

// Status is the terminal state of a call.
type Status int

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusNetworkError
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusRevert:
		return "REVERT"
	case StatusNetworkError:
		return "NETWORK_ERROR"
	case StatusTimeout:
		return "TIMEOUT"
	}
	return "UNKNOWN"
}

// CallRequest describes one contract call.
type CallRequest struct {
	Contract       refs.ContractRef
	Artifact       *artifacts.Artifact
	Function       string
	Args           []interface{}
	PayableTinybar int64
	GasLimit       uint64 // 0 means estimate via the mirror
	Class          CallClass
}

// CallResult is the uniform outcome. REVERT is a result, not an error:
// callers still get the transaction id and any decoded logs. On
// NETWORK_ERROR and TIMEOUT the chain state is unknown; callers that must
// know re-query the mirror with the transaction id.
type CallResult struct {
	Status        Status
	Return        []interface{}
	TransactionID string
	RevertReason  string
	Events        []artifacts.DecodedEvent
	Err           error
}

// Submitter abstracts how a built transaction reaches the network. The
// default submitter signs with the operator only; the multi-sig coordinator
// provides the other implementation.
type Submitter interface {
	SubmitContractExecute(ctx context.Context, tx *hedera.ContractExecuteTransaction) (hedera.TransactionResponse, error)
}

// Options modify a single execution.
type Options struct {
	Submitter Submitter // nil: direct submission with the operator as sole signer
}

// Pipeline executes contract calls against one network client.
type Pipeline struct {
	Client   *hedera.Client
	Mirror   *mirror.Adapter
	Operator refs.AccountRef
	Logger   logging.Logger
}

// New creates a pipeline.
func New(client *hedera.Client, mirrorAdapter *mirror.Adapter, operator refs.AccountRef, logger logging.Logger) *Pipeline {
	return &Pipeline{
		Client:   client,
		Mirror:   mirrorAdapter,
		Operator: operator,
		Logger:   logger,
	}
}

// BuildCalldata validates the request against the ABI and encodes it.
// Payability is checked here, before anything touches the network.
func BuildCalldata(req CallRequest) ([]byte, error) {
	if req.PayableTinybar > 0 {
		payable, err := req.Artifact.IsPayable(req.Function)
		if err != nil {
			return nil, err
		}
		if !payable {
			return nil, fmt.Errorf("%w: %s.%s with %d tinybar attached",
				ErrNotPayable, req.Artifact.Name, req.Function, req.PayableTinybar)
		}
	}
	return req.Artifact.Encode(req.Function, req.Args...)
}

// Execute runs the full pipeline. The returned error covers pre-submission
// failures only; anything after submission is reported in the CallResult.
func (p *Pipeline) Execute(ctx context.Context, req CallRequest, opts Options) (*CallResult, error) {
	calldata, err := BuildCalldata(req)
	if err != nil {
		return nil, err
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimate, err := p.Mirror.EstimateGas(ctx, req.Contract.EvmAddress, calldata, &p.Operator, req.PayableTinybar)
		if err != nil {
			return nil, fmt.Errorf("gas estimation for %s.%s: %w", req.Artifact.Name, req.Function, err)
		}
		gasLimit = ApplyMultiplier(req.Class, estimate)
	}

	p.Logger.Debug("executing contract call",
		"contract", req.Contract.String(),
		"function", req.Function,
		"gas", gasLimit,
		"payable", req.PayableTinybar,
	)

	tx := hedera.NewContractExecuteTransaction().
		SetContractID(req.Contract.ID).
		SetGas(gasLimit).
		SetFunctionParameters(calldata)
	if req.PayableTinybar > 0 {
		tx.SetPayableAmount(hedera.HbarFromTinybar(req.PayableTinybar))
	}

	var resp hedera.TransactionResponse
	if opts.Submitter != nil {
		resp, err = opts.Submitter.SubmitContractExecute(ctx, tx)
	} else {
		resp, err = tx.Execute(p.Client)
	}
	if err != nil {
		if errors.Is(err, ErrSubmissionAborted) {
			return nil, err
		}
		return p.submissionFailure(err), nil
	}

	return p.interpret(resp, req), nil
}

func (p *Pipeline) submissionFailure(err error) *CallResult {
	status := StatusNetworkError
	if errors.Is(err, context.DeadlineExceeded) {
		status = StatusTimeout
	}
	return &CallResult{Status: status, Err: err}
}

// interpret waits for the receipt and turns it into a uniform CallResult.
func (p *Pipeline) interpret(resp hedera.TransactionResponse, req CallRequest) *CallResult {
	txID := resp.TransactionID.String()

	receipt, err := hedera.NewTransactionReceiptQuery().
		SetTransactionID(resp.TransactionID).
		Execute(p.Client)
	if err != nil {
		return &CallResult{Status: StatusNetworkError, TransactionID: txID, Err: err}
	}

	record, recordErr := hedera.NewTransactionRecordQuery().
		SetTransactionID(resp.TransactionID).
		Execute(p.Client)

	result := &CallResult{TransactionID: txID}

	var fnResult hedera.ContractFunctionResult
	haveFnResult := false
	if recordErr == nil {
		if fr, err := record.GetContractExecuteResult(); err == nil {
			fnResult = fr
			haveFnResult = true
		}
	}

	if receipt.Status != hedera.StatusSuccess {
		result.Status = StatusRevert
		result.RevertReason = receipt.Status.String()
		if haveFnResult {
			if reason := DecodeRevertReason(fnResult.ContractCallResult); reason != "" {
				result.RevertReason = reason
			} else if fnResult.ErrorMessage != "" {
				result.RevertReason = fnResult.ErrorMessage
			}
			result.Events = p.decodeLogs(req, fnResult)
		}
		return result
	}

	result.Status = StatusSuccess
	if haveFnResult {
		ret, err := req.Artifact.DecodeReturn(req.Function, fnResult.ContractCallResult)
		if err != nil {
			p.Logger.Warnf("decoding return of %s.%s: %v", req.Artifact.Name, req.Function, err)
		} else {
			result.Return = ret
		}
		result.Events = p.decodeLogs(req, fnResult)
	}
	return result
}

func (p *Pipeline) decodeLogs(req CallRequest, fnResult hedera.ContractFunctionResult) []artifacts.DecodedEvent {
	var events []artifacts.DecodedEvent
	for _, log := range fnResult.LogInfo {
		topics := make([]common.Hash, 0, len(log.Topics))
		for _, t := range log.Topics {
			topics = append(topics, common.BytesToHash(t))
		}
		event, err := req.Artifact.DecodeLog(topics, log.Data)
		if err != nil {
			// Logs from other contracts in the call tree may not match
			// this ABI.
			continue
		}
		events = append(events, *event)
	}
	return events
}

// MirrorPropagationDelay is how long the mirror typically lags consensus.
// Sleeps of this order after writes are part of the write-then-read-back
// contract, not optimistic retries.
const MirrorPropagationDelay = 4 * time.Second
