package preflight

import (
	"context"
	"fmt"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// ClientWriter submits corrective transactions through the Hedera SDK as
// the operator account.
type ClientWriter struct {
	Client   *hedera.Client
	Operator refs.AccountRef
}

func NewClientWriter(client *hedera.Client, operator refs.AccountRef) *ClientWriter {
	return &ClientWriter{Client: client, Operator: operator}
}

func (w *ClientWriter) AssociateToken(ctx context.Context, token hedera.TokenID) error {
	resp, err := hedera.NewTokenAssociateTransaction().
		SetAccountID(w.Operator.ID).
		SetTokenIDs(token).
		Execute(w.Client)
	if err != nil {
		return fmt.Errorf("associate %s: %w", token.String(), err)
	}
	return w.awaitReceipt(ctx, resp)
}

func (w *ClientWriter) ApproveTokenAllowance(ctx context.Context, token hedera.TokenID, spender hedera.AccountID, amount int64) error {
	resp, err := hedera.NewAccountAllowanceApproveTransaction().
		ApproveTokenAllowance(token, w.Operator.ID, spender, amount).
		Execute(w.Client)
	if err != nil {
		return fmt.Errorf("approve %d of %s to %s: %w", amount, token.String(), spender.String(), err)
	}
	return w.awaitReceipt(ctx, resp)
}

func (w *ClientWriter) ApproveHbarAllowance(ctx context.Context, spender hedera.AccountID, tinybar int64) error {
	resp, err := hedera.NewAccountAllowanceApproveTransaction().
		ApproveHbarAllowance(w.Operator.ID, spender, hedera.HbarFromTinybar(tinybar)).
		Execute(w.Client)
	if err != nil {
		return fmt.Errorf("approve %d tinybar to %s: %w", tinybar, spender.String(), err)
	}
	return w.awaitReceipt(ctx, resp)
}

// awaitReceipt confirms consensus. A non-SUCCESS status surfaces as an
// error from GetReceipt.
func (w *ClientWriter) awaitReceipt(ctx context.Context, resp hedera.TransactionResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := hedera.NewTransactionReceiptQuery().
		SetTransactionID(resp.TransactionID).
		Execute(w.Client)
	if err != nil {
		return fmt.Errorf("receipt for %s: %w", resp.TransactionID.String(), err)
	}
	return nil
}
