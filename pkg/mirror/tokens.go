package mirror

import (
	"context"
	"fmt"
	"strconv"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type tokenEntity struct {
	TokenID   string `json:"token_id"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Decimals  string `json:"decimals"`
	MaxSupply string `json:"max_supply"`
	Type      string `json:"type"`
	Deleted   bool   `json:"deleted"`
}

// TokenMetadata is the display-relevant subset of a token's mirror record.
type TokenMetadata struct {
	Ref       refs.TokenRef
	Name      string
	MaxSupply int64
}

// TokenInfo fetches token metadata and returns a fully-populated TokenRef.
// Decimals come back from the mirror as a string.
func (a *Adapter) TokenInfo(ctx context.Context, id hedera.TokenID) (*TokenMetadata, error) {
	var entity tokenEntity
	if err := a.getJSON(ctx, "/api/v1/tokens/"+id.String(), &entity); err != nil {
		return nil, err
	}

	decimals, err := strconv.ParseUint(entity.Decimals, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: token %s decimals %q", ErrDecode, id.String(), entity.Decimals)
	}
	maxSupply, _ := strconv.ParseInt(entity.MaxSupply, 10, 64)

	kind := refs.TokenFungible
	if entity.Type == "NON_FUNGIBLE_UNIQUE" {
		kind = refs.TokenNonFungible
	}

	ref := refs.TokenFromID(id)
	ref.Symbol = entity.Symbol
	ref.Decimals = uint32(decimals)
	ref.Kind = kind

	return &TokenMetadata{
		Ref:       ref,
		Name:      entity.Name,
		MaxSupply: maxSupply,
	}, nil
}
