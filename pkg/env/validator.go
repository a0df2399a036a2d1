package env

import (
	"regexp"
)

var (
	entityIDPattern   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	evmAddressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)
	rawHexKeyPattern  = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

func IsEmpty(value string) bool {
	return value == ""
}

// Hedera entity id, form shard.realm.num
func IsValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// 20-byte EVM address, 0x prefix optional
func IsValidEvmAddress(address string) bool {
	return evmAddressPattern.MatchString(address)
}

// Raw 32-byte hex key. DER-encoded keys are longer and validated by the SDK
// parser instead.
func IsRawHexKey(key string) bool {
	return rawHexKeyPattern.MatchString(key)
}
