// Package refs carries the two isomorphic representations of every ledger
// entity the toolkit touches: the native shard.realm.num id and the 20-byte
// EVM address. Both forms are accepted at every boundary and normalized on
// entry; long-zero addresses convert without a mirror lookup.
package refs

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
)

// EntityKind disambiguates what a bare EVM address points at.
type EntityKind int

const (
	KindUnknown EntityKind = iota
	KindContract
	KindToken
	KindAccount
)

func (k EntityKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindToken:
		return "token"
	case KindAccount:
		return "account"
	default:
		return "unknown"
	}
}

// TokenKind tags the three token classes the system deals with.
type TokenKind int

const (
	TokenHbar TokenKind = iota
	TokenFungible
	TokenNonFungible
)

func (k TokenKind) String() string {
	switch k {
	case TokenHbar:
		return "HBAR"
	case TokenFungible:
		return "fungible"
	case TokenNonFungible:
		return "nft-collection"
	}
	return "invalid"
}

// ContractRef holds both forms of a contract identity.
type ContractRef struct {
	ID         hedera.ContractID
	EvmAddress common.Address
}

// TokenRef holds both forms of a token identity plus the metadata every
// display conversion needs. HBAR is the distinguished all-zero sentinel.
type TokenRef struct {
	ID         hedera.TokenID
	EvmAddress common.Address
	Symbol     string
	Decimals   uint32
	Kind       TokenKind
}

// AccountRef holds both forms of an account identity.
type AccountRef struct {
	ID         hedera.AccountID
	EvmAddress common.Address
}

// Hbar is the fee-token sentinel: zero id, zero address, 8 decimals
// (tinybars).
var Hbar = TokenRef{Symbol: "HBAR", Decimals: 8, Kind: TokenHbar}

// IsHbar reports whether the ref is the HBAR sentinel.
func (t TokenRef) IsHbar() bool {
	return t.Kind == TokenHbar
}

// EvmHex renders the canonical lowercase hex form.
func EvmHex(addr common.Address) string {
	return "0x" + hex.EncodeToString(addr.Bytes())
}

func (c ContractRef) String() string { return c.ID.String() }
func (t TokenRef) String() string {
	if t.IsHbar() {
		return "HBAR"
	}
	return t.ID.String()
}
func (a AccountRef) String() string { return a.ID.String() }

// LongZeroAddress derives the EVM address of a native entity: 4 bytes of
// shard, 8 of realm, 8 of entity number, all big-endian.
func LongZeroAddress(shard, realm, num uint64) common.Address {
	var addr common.Address
	binary.BigEndian.PutUint32(addr[0:4], uint32(shard))
	binary.BigEndian.PutUint64(addr[4:12], realm)
	binary.BigEndian.PutUint64(addr[12:20], num)
	return addr
}

// IsLongZero reports whether the address is in the long-zero form, i.e.
// directly convertible to a native id without a mirror lookup.
func IsLongZero(addr common.Address) bool {
	for _, b := range addr[0:12] {
		if b != 0 {
			return false
		}
	}
	return true
}

// LongZeroNum extracts the entity number of a long-zero address.
func LongZeroNum(addr common.Address) uint64 {
	return binary.BigEndian.Uint64(addr[12:20])
}

// ContractFromID builds a ContractRef from a native id.
func ContractFromID(id hedera.ContractID) ContractRef {
	return ContractRef{
		ID:         id,
		EvmAddress: LongZeroAddress(id.Shard, id.Realm, id.Contract),
	}
}

// AccountFromID builds an AccountRef from a native id.
func AccountFromID(id hedera.AccountID) AccountRef {
	return AccountRef{
		ID:         id,
		EvmAddress: LongZeroAddress(id.Shard, id.Realm, id.Account),
	}
}

// TokenFromID builds a TokenRef carrying only identity; metadata (symbol,
// decimals, kind) is filled in by the mirror adapter.
func TokenFromID(id hedera.TokenID) TokenRef {
	return TokenRef{
		ID:         id,
		EvmAddress: LongZeroAddress(id.Shard, id.Realm, id.Token),
		Kind:       TokenFungible,
	}
}

// ParseAddress normalizes a hex EVM address string. Case-insensitive, 0x
// prefix optional.
func ParseAddress(s string) (common.Address, error) {
	h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(h) != 40 {
		return common.Address{}, fmt.Errorf("not a 20-byte address: %q", s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return common.Address{}, fmt.Errorf("not a hex address: %q", s)
	}
	return common.BytesToAddress(b), nil
}

// ParseContract accepts either form of a contract identity. A non-long-zero
// address cannot be resolved locally and is rejected; callers resolve those
// through the mirror adapter.
func ParseContract(s string) (ContractRef, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		id, err := hedera.ContractIDFromString(s)
		if err != nil {
			return ContractRef{}, fmt.Errorf("invalid contract id %q: %w", s, err)
		}
		return ContractFromID(id), nil
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return ContractRef{}, err
	}
	if !IsLongZero(addr) {
		return ContractRef{}, fmt.Errorf("address %s is not long-zero; resolve it via the mirror", EvmHex(addr))
	}
	return ContractRef{
		ID:         hedera.ContractID{Contract: LongZeroNum(addr)},
		EvmAddress: addr,
	}, nil
}

// ParseToken accepts either form of a token identity.
func ParseToken(s string) (TokenRef, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		id, err := hedera.TokenIDFromString(s)
		if err != nil {
			return TokenRef{}, fmt.Errorf("invalid token id %q: %w", s, err)
		}
		return TokenFromID(id), nil
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return TokenRef{}, err
	}
	if addr == (common.Address{}) {
		return Hbar, nil
	}
	if !IsLongZero(addr) {
		return TokenRef{}, fmt.Errorf("address %s is not long-zero; resolve it via the mirror", EvmHex(addr))
	}
	t := TokenFromID(hedera.TokenID{Token: LongZeroNum(addr)})
	return t, nil
}

// ParseAccount accepts either form of an account identity.
func ParseAccount(s string) (AccountRef, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		id, err := hedera.AccountIDFromString(s)
		if err != nil {
			return AccountRef{}, fmt.Errorf("invalid account id %q: %w", s, err)
		}
		return AccountFromID(id), nil
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return AccountRef{}, err
	}
	if !IsLongZero(addr) {
		return AccountRef{}, fmt.Errorf("address %s is not long-zero; resolve it via the mirror", EvmHex(addr))
	}
	return AccountRef{
		ID:         hedera.AccountID{Account: LongZeroNum(addr)},
		EvmAddress: addr,
	}, nil
}

// SpenderAccount maps a contract to the account form used when granting it
// an allowance.
func SpenderAccount(c ContractRef) hedera.AccountID {
	return hedera.AccountID{Shard: c.ID.Shard, Realm: c.ID.Realm, Account: c.ID.Contract}
}
