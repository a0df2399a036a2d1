package mirror

import (
	"context"
	"errors"
	"fmt"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
)

// TokenRelationship is one ledger row linking an account to a token. Its
// absence (nil) means the account is not associated, which every caller must
// treat differently from a zero balance.
type TokenRelationship struct {
	Token   hedera.TokenID
	Balance int64
}

type tokenRelationshipPage struct {
	Tokens []struct {
		TokenID string `json:"token_id"`
		Balance int64  `json:"balance"`
	} `json:"tokens"`
}

// TokenRelationship returns the association row for (account, token), or nil
// when the account is not associated with the token.
func (a *Adapter) TokenRelationship(ctx context.Context, account hedera.AccountID, token hedera.TokenID) (*TokenRelationship, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/tokens?token.id=%s", account.String(), token.String())
	var page tokenRelationshipPage
	if err := a.getJSON(ctx, path, &page); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: account %s", ErrNotFound, account.String())
		}
		return nil, err
	}
	for _, row := range page.Tokens {
		if row.TokenID == token.String() {
			id, err := hedera.TokenIDFromString(row.TokenID)
			if err != nil {
				return nil, fmt.Errorf("%w: token id %q: %v", ErrDecode, row.TokenID, err)
			}
			return &TokenRelationship{Token: id, Balance: row.Balance}, nil
		}
	}
	// No row: not associated.
	return nil, nil
}

// HbarBalance returns the account's balance in tinybars.
func (a *Adapter) HbarBalance(ctx context.Context, account hedera.AccountID) (int64, error) {
	var entity accountEntity
	if err := a.getJSON(ctx, "/api/v1/accounts/"+account.String(), &entity); err != nil {
		return 0, err
	}
	return entity.Balance.Balance, nil
}

type nftPage struct {
	Nfts []struct {
		SerialNumber int64  `json:"serial_number"`
		TokenID      string `json:"token_id"`
	} `json:"nfts"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// NftSerials returns the serials of a collection owned by the account,
// following mirror pagination.
func (a *Adapter) NftSerials(ctx context.Context, account hedera.AccountID, collection hedera.TokenID) ([]int64, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/nfts?token.id=%s&limit=100", account.String(), collection.String())
	var serials []int64
	for path != "" {
		var page nftPage
		if err := a.getJSON(ctx, path, &page); err != nil {
			return nil, err
		}
		for _, nft := range page.Nfts {
			serials = append(serials, nft.SerialNumber)
		}
		path = page.Links.Next
	}
	return serials, nil
}

type tokenAllowancePage struct {
	Allowances []struct {
		Amount  int64  `json:"amount"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		TokenID string `json:"token_id"`
	} `json:"allowances"`
}

// TokenAllowance returns the remaining fungible allowance the owner has
// granted to the spender for the token. No row means no allowance; that is
// reported as zero since allowances, unlike associations, have no
// present-but-empty state worth distinguishing.
func (a *Adapter) TokenAllowance(ctx context.Context, owner, spender hedera.AccountID, token hedera.TokenID) (int64, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/allowances/tokens?spender.id=%s&token.id=%s",
		owner.String(), spender.String(), token.String())
	var page tokenAllowancePage
	if err := a.getJSON(ctx, path, &page); err != nil {
		return 0, err
	}
	for _, row := range page.Allowances {
		if row.Spender == spender.String() && row.TokenID == token.String() {
			return row.Amount, nil
		}
	}
	return 0, nil
}

type cryptoAllowancePage struct {
	Allowances []struct {
		Amount  int64  `json:"amount"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
	} `json:"allowances"`
}

// HbarAllowance returns the remaining HBAR allowance (tinybars) the owner
// has granted to the spender.
func (a *Adapter) HbarAllowance(ctx context.Context, owner, spender hedera.AccountID) (int64, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/allowances/crypto?spender.id=%s", owner.String(), spender.String())
	var page cryptoAllowancePage
	if err := a.getJSON(ctx, path, &page); err != nil {
		return 0, err
	}
	for _, row := range page.Allowances {
		if row.Spender == spender.String() {
			return row.Amount, nil
		}
	}
	return 0, nil
}

// IsAssociated is a convenience wrapper preserving the three-way outcome:
// (true, _) associated, (false, nil) not associated, error unknown.
func (a *Adapter) IsAssociated(ctx context.Context, account hedera.AccountID, token hedera.TokenID) (bool, error) {
	rel, err := a.TokenRelationship(ctx, account, token)
	if err != nil {
		return false, err
	}
	return rel != nil, nil
}
