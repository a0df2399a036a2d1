// Package preflight brings the operator account into a state where a
// value-moving contract call will not fail for mechanical reasons: token
// associations, fungible and HBAR allowances, and the HBAR headroom needed
// to move NFTs out of the storage contract.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"time"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/mirror"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/pipeline"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrAssociationFailed    = errors.New("token association failed")
	ErrAllowanceFailed      = errors.New("allowance grant failed")
	ErrUnsupportedTokenKind = errors.New("unsupported token kind")
)

// nftTransferHbarBuffer is the tinybar allowance the storage contract needs
// to cover per-NFT transfer fees when prizes leave it. 1 HBAR covers any
// realistic prize package.
const nftTransferHbarBuffer int64 = 100_000_000

// Reader is the subset of the mirror adapter the preflight consults.
// *mirror.Adapter satisfies it.
type Reader interface {
	TokenRelationship(ctx context.Context, account hedera.AccountID, token hedera.TokenID) (*mirror.TokenRelationship, error)
	IsAssociated(ctx context.Context, account hedera.AccountID, token hedera.TokenID) (bool, error)
	TokenAllowance(ctx context.Context, owner, spender hedera.AccountID, token hedera.TokenID) (int64, error)
	HbarAllowance(ctx context.Context, owner, spender hedera.AccountID) (int64, error)
	HbarBalance(ctx context.Context, account hedera.AccountID) (int64, error)
}

// Writer submits the corrective transactions. The production implementation
// wraps the Hedera SDK client; tests substitute a recorder.
type Writer interface {
	AssociateToken(ctx context.Context, token hedera.TokenID) error
	ApproveTokenAllowance(ctx context.Context, token hedera.TokenID, spender hedera.AccountID, amount int64) error
	ApproveHbarAllowance(ctx context.Context, spender hedera.AccountID, tinybar int64) error
}

// Wiring names the deployed contracts the spender selection depends on.
type Wiring struct {
	LazyToken  refs.TokenRef
	GasStation refs.ContractRef
	Storage    refs.ContractRef
}

// FungibleNeed is one token the operation requires the operator to hold,
// and optionally to have approved to the token's spender contract.
type FungibleNeed struct {
	Token          refs.TokenRef
	Amount         int64 // base units held; also the exact allowance when NeedsAllowance
	NeedsAllowance bool
}

// Requirements describes everything an operation needs before submission.
type Requirements struct {
	Fungible []FungibleNeed

	// PrizeCollections are NFT collections the operator may receive; each
	// must be associated before the claim.
	PrizeCollections []refs.TokenRef

	// WithdrawsNfts marks operations that move NFTs out of the storage
	// contract, which needs an HBAR allowance for the transfer fees.
	WithdrawsNfts bool
}

// Preflight checks and repairs the operator's account state. Ensure never
// reports success unless every requirement holds.
type Preflight struct {
	Reader   Reader
	Writer   Writer
	Operator refs.AccountRef
	Wiring   Wiring
	Logger   logging.Logger

	delay time.Duration // mirror propagation wait, overridable in tests
}

// New creates a preflight with the standard mirror propagation delay.
func New(reader Reader, writer Writer, operator refs.AccountRef, wiring Wiring, logger logging.Logger) *Preflight {
	return &Preflight{
		Reader:   reader,
		Writer:   writer,
		Operator: operator,
		Wiring:   wiring,
		Logger:   logger,
		delay:    pipeline.MirrorPropagationDelay,
	}
}

// SpenderFor selects the contract that must be approved to pull the token:
// the gas station for the LAZY token, the storage contract for every other
// fungible. Non-fungible tokens have no fungible spender.
func (p *Preflight) SpenderFor(token refs.TokenRef) (refs.ContractRef, error) {
	switch token.Kind {
	case refs.TokenNonFungible:
		return refs.ContractRef{}, fmt.Errorf("%w: %s is non-fungible, no allowance spender", ErrUnsupportedTokenKind, token.String())
	case refs.TokenHbar, refs.TokenFungible:
	default:
		return refs.ContractRef{}, fmt.Errorf("%w: %s", ErrUnsupportedTokenKind, token.String())
	}
	if token.Kind == refs.TokenFungible && token.ID == p.Wiring.LazyToken.ID {
		return p.Wiring.GasStation, nil
	}
	return p.Wiring.Storage, nil
}

// Ensure runs the preflight steps in order: association, balance, allowance,
// prize-collection associations, NFT-withdrawal HBAR buffer. It returns on
// the first unmet requirement it cannot repair.
func (p *Preflight) Ensure(ctx context.Context, req Requirements) error {
	for _, need := range req.Fungible {
		if err := p.ensureFungible(ctx, need); err != nil {
			return err
		}
	}
	for _, coll := range req.PrizeCollections {
		if coll.Kind != refs.TokenNonFungible {
			return fmt.Errorf("%w: prize collection %s is not an NFT collection", ErrUnsupportedTokenKind, coll.String())
		}
		if err := p.ensureAssociation(ctx, coll); err != nil {
			return err
		}
	}
	if req.WithdrawsNfts {
		if err := p.ensureHbarAllowance(ctx, refs.SpenderAccount(p.Wiring.Storage), nftTransferHbarBuffer); err != nil {
			return err
		}
	}
	return nil
}

func (p *Preflight) ensureFungible(ctx context.Context, need FungibleNeed) error {
	if need.Token.Kind == refs.TokenHbar {
		return p.ensureHbar(ctx, need)
	}
	if need.Token.Kind != refs.TokenFungible {
		return fmt.Errorf("%w: %s", ErrUnsupportedTokenKind, need.Token.String())
	}

	if err := p.ensureAssociation(ctx, need.Token); err != nil {
		return err
	}

	rel, err := p.Reader.TokenRelationship(ctx, p.Operator.ID, need.Token.ID)
	if err != nil {
		return fmt.Errorf("reading %s balance: %w", need.Token.String(), err)
	}
	var balance int64
	if rel != nil {
		balance = rel.Balance
	}
	if balance < need.Amount {
		return fmt.Errorf("%w: need %d base units of %s, account %s holds %d",
			ErrInsufficientBalance, need.Amount, need.Token.String(), p.Operator.String(), balance)
	}

	if !need.NeedsAllowance {
		return nil
	}
	spender, err := p.SpenderFor(need.Token)
	if err != nil {
		return err
	}
	return p.ensureTokenAllowance(ctx, need.Token, refs.SpenderAccount(spender), need.Amount)
}

func (p *Preflight) ensureHbar(ctx context.Context, need FungibleNeed) error {
	balance, err := p.Reader.HbarBalance(ctx, p.Operator.ID)
	if err != nil {
		return fmt.Errorf("reading HBAR balance: %w", err)
	}
	if balance < need.Amount {
		return fmt.Errorf("%w: need %d tinybar, account %s holds %d",
			ErrInsufficientBalance, need.Amount, p.Operator.String(), balance)
	}
	if !need.NeedsAllowance {
		return nil
	}
	return p.ensureHbarAllowance(ctx, refs.SpenderAccount(p.Wiring.Storage), need.Amount)
}

// ensureAssociation associates the operator with the token when the mirror
// shows no relationship row, then waits until the row is visible.
func (p *Preflight) ensureAssociation(ctx context.Context, token refs.TokenRef) error {
	rel, err := p.Reader.TokenRelationship(ctx, p.Operator.ID, token.ID)
	if err != nil {
		return fmt.Errorf("%w: checking %s: %v", ErrAssociationFailed, token.String(), err)
	}
	if rel != nil {
		return nil
	}

	p.Logger.Infof("associating %s with token %s", p.Operator.String(), token.String())
	err = pipeline.WriteThenReadBackDelay(ctx, p.Logger,
		func() error { return p.Writer.AssociateToken(ctx, token.ID) },
		func() (bool, error) { return p.Reader.IsAssociated(ctx, p.Operator.ID, token.ID) },
		true, p.delay)
	if err != nil {
		return fmt.Errorf("%w: token %s: %v", ErrAssociationFailed, token.String(), err)
	}
	return nil
}

// ensureTokenAllowance grants the spender exactly amount when the current
// allowance is below it. An existing allowance at or above the requirement
// is left untouched.
func (p *Preflight) ensureTokenAllowance(ctx context.Context, token refs.TokenRef, spender hedera.AccountID, amount int64) error {
	current, err := p.Reader.TokenAllowance(ctx, p.Operator.ID, spender, token.ID)
	if err != nil {
		return fmt.Errorf("%w: reading %s allowance for %s: %v", ErrAllowanceFailed, token.String(), spender.String(), err)
	}
	if current >= amount {
		return nil
	}

	p.Logger.Infof("approving %d base units of %s to spender %s", amount, token.String(), spender.String())
	err = pipeline.WriteThenReadBackDelay(ctx, p.Logger,
		func() error { return p.Writer.ApproveTokenAllowance(ctx, token.ID, spender, amount) },
		func() (bool, error) {
			got, err := p.Reader.TokenAllowance(ctx, p.Operator.ID, spender, token.ID)
			return got >= amount, err
		},
		true, p.delay)
	if err != nil {
		return fmt.Errorf("%w: %d base units of %s to spender %s: %v",
			ErrAllowanceFailed, amount, token.String(), spender.String(), err)
	}
	return nil
}

// ensureHbarAllowance grants the spender exactly tinybar when the current
// HBAR allowance is below it. Approvals replace rather than add, so the
// grant is the full required amount, never a top-up.
func (p *Preflight) ensureHbarAllowance(ctx context.Context, spender hedera.AccountID, tinybar int64) error {
	current, err := p.Reader.HbarAllowance(ctx, p.Operator.ID, spender)
	if err != nil {
		return fmt.Errorf("%w: reading HBAR allowance for %s: %v", ErrAllowanceFailed, spender.String(), err)
	}
	if current >= tinybar {
		return nil
	}

	p.Logger.Infof("approving %d tinybar to spender %s", tinybar, spender.String())
	err = pipeline.WriteThenReadBackDelay(ctx, p.Logger,
		func() error { return p.Writer.ApproveHbarAllowance(ctx, spender, tinybar) },
		func() (bool, error) {
			got, err := p.Reader.HbarAllowance(ctx, p.Operator.ID, spender)
			return got >= tinybar, err
		},
		true, p.delay)
	if err != nil {
		return fmt.Errorf("%w: %d tinybar to spender %s: %v", ErrAllowanceFailed, tinybar, spender.String(), err)
	}
	return nil
}
