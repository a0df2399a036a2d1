// Package multisig collects the required signatures on a frozen transaction
// and submits it before the network's validity window closes. Two workflows:
// interactive (signers available now) and offline (export the frozen bytes,
// merge signature files later).
package multisig

import (
	"context"
	"errors"
	"fmt"
	"time"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/keys"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
)

var (
	ErrExpired                = errors.New("transaction validity window expired; start over with a fresh freeze")
	ErrInsufficientSignatures = errors.New("insufficient signatures; request additional signers")
	ErrWrongTransaction       = errors.New("signature does not verify against this transaction; verify file integrity")
	ErrInvalidSignatureFile   = errors.New("invalid signature file")
)

// The network rejects a transaction ~2 minutes after its valid start. The
// coordinator stops collecting earlier, leaving room for assembly and
// submission latency.
const (
	networkValidityWindow = 2 * time.Minute
	submissionBuffer      = 30 * time.Second
)

// FrozenTx is a frozen contract-execute transaction plus its serialized
// form. Freezing is idempotent: re-freezing returns byte-equal content.
type FrozenTx struct {
	Tx    *hedera.ContractExecuteTransaction
	Bytes []byte
}

// Deadline is the internal cutoff for collection and submission, strictly
// inside the network window.
func (f *FrozenTx) Deadline() time.Time {
	validStart := time.Now()
	if id := f.Tx.GetTransactionID(); id.ValidStart != nil {
		validStart = *id.ValidStart
	}
	return validStart.Add(networkValidityWindow - submissionBuffer)
}

// Expired reports whether the internal deadline has passed.
func (f *FrozenTx) Expired(now time.Time) bool {
	return now.After(f.Deadline())
}

// Coordinator drives signature collection for one client.
type Coordinator struct {
	Client    *hedera.Client
	Threshold int
	Signers   []keys.Source // interactive workflow signers, tried in order
	Logger    logging.Logger

	now func() time.Time // test hook
}

// New creates a coordinator.
func New(client *hedera.Client, threshold int, signers []keys.Source, logger logging.Logger) *Coordinator {
	return &Coordinator{
		Client:    client,
		Threshold: threshold,
		Signers:   signers,
		Logger:    logger,
		now:       time.Now,
	}
}

// Freeze freezes the transaction against the client's network. Freezing an
// already frozen transaction is a no-op that returns the same bytes.
func (c *Coordinator) Freeze(tx *hedera.ContractExecuteTransaction) (*FrozenTx, error) {
	if !tx.IsFrozen() {
		if _, err := tx.FreezeWith(c.Client); err != nil {
			return nil, fmt.Errorf("freezing transaction: %w", err)
		}
	}
	raw, err := tx.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing frozen transaction: %w", err)
	}
	return &FrozenTx{Tx: tx, Bytes: raw}, nil
}

// Sign produces a detached signature descriptor for the frozen transaction
// using the given key source.
func Sign(frozen *FrozenTx, source keys.Source, accountID string) (*SignatureDescriptor, error) {
	key, err := source.Load()
	if err != nil {
		return nil, err
	}
	sig, err := key.SignTransaction(frozen.Tx)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}
	return &SignatureDescriptor{
		SignerPublicKey: key.PublicKey().String(),
		AccountID:       accountID,
		Signature:       fmt.Sprintf("%x", sig),
	}, nil
}

// Assemble merges signature descriptors onto the frozen transaction.
// Contributions are deduplicated by signer public key, so the result is
// invariant under permutation and duplicate inputs. Fails with
// ErrInsufficientSignatures when fewer than threshold unique valid
// signatures remain, and ErrWrongTransaction when a signature does not
// verify against the transaction.
func Assemble(frozen *FrozenTx, descriptors []*SignatureDescriptor, threshold int) (*hedera.ContractExecuteTransaction, error) {
	unique := make(map[string]*SignatureDescriptor)
	for _, d := range descriptors {
		if d == nil {
			continue
		}
		if _, seen := unique[d.SignerPublicKey]; seen {
			continue
		}
		unique[d.SignerPublicKey] = d
	}

	if len(unique) < threshold {
		return nil, fmt.Errorf("%w: have %d unique, need %d", ErrInsufficientSignatures, len(unique), threshold)
	}

	for _, d := range unique {
		pub, sig, err := d.decode()
		if err != nil {
			return nil, err
		}
		frozen.Tx.AddSignature(pub, sig)
		if !pub.VerifyTransaction(frozen.Tx) {
			return nil, fmt.Errorf("%w: signer %s", ErrWrongTransaction, d.SignerPublicKey)
		}
	}

	return frozen.Tx, nil
}

// Submit sends the assembled transaction, enforcing the internal deadline
// one last time: the window may have closed between assembly and now.
func (c *Coordinator) Submit(ctx context.Context, frozen *FrozenTx) (hedera.TransactionResponse, error) {
	if frozen.Expired(c.nowFn()) {
		return hedera.TransactionResponse{}, ErrExpired
	}
	resp, err := frozen.Tx.Execute(c.Client)
	if err != nil {
		return hedera.TransactionResponse{}, fmt.Errorf("submitting multi-sig transaction: %w", err)
	}
	return resp, nil
}

// SubmitContractExecute implements the pipeline's Submitter: freeze, collect
// interactively from the configured signers, assemble, submit.
func (c *Coordinator) SubmitContractExecute(ctx context.Context, tx *hedera.ContractExecuteTransaction) (hedera.TransactionResponse, error) {
	frozen, err := c.Freeze(tx)
	if err != nil {
		return hedera.TransactionResponse{}, err
	}

	var collected []*SignatureDescriptor
	for _, source := range c.Signers {
		if frozen.Expired(c.nowFn()) {
			return hedera.TransactionResponse{}, ErrExpired
		}
		select {
		case <-ctx.Done():
			return hedera.TransactionResponse{}, ctx.Err()
		default:
		}

		c.Logger.Infof("Collecting signature from %s", source.Describe())
		desc, err := Sign(frozen, source, "")
		if err != nil {
			c.Logger.Warnf("Signer %s failed: %v", source.Describe(), err)
			continue
		}
		collected = append(collected, desc)
		if uniqueSigners(collected) >= c.Threshold {
			break
		}
	}

	if _, err := Assemble(frozen, collected, c.Threshold); err != nil {
		return hedera.TransactionResponse{}, err
	}
	return c.Submit(ctx, frozen)
}

func (c *Coordinator) nowFn() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func uniqueSigners(descriptors []*SignatureDescriptor) int {
	seen := make(map[string]struct{})
	for _, d := range descriptors {
		seen[d.SignerPublicKey] = struct{}{}
	}
	return len(seen)
}
