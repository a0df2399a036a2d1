// Package keys provides the operator key-source strategies. The encrypted
// keyfile variants are the production paths; the environment variable
// variant exists for development convenience only.
package keys

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
	"golang.org/x/term"
)

var (
	ErrNoKey         = errors.New("no key material available")
	ErrWrongKeyAlgo  = errors.New("wrong key algorithm for this slot")
	ErrBadPassphrase = errors.New("could not decrypt key file (wrong passphrase?)")
)

// Source yields the operator signing key. Implementations tagged
// development-only must never be wired into production code paths.
type Source interface {
	// Load produces the private key, prompting if the variant needs a
	// passphrase or raw key entry.
	Load() (hedera.PrivateKey, error)
	// DevelopmentOnly reports whether this source is unfit for production.
	DevelopmentOnly() bool
	// Describe names the source for logs without leaking material.
	Describe() string
}

// parseAnyKey accepts Ed25519 and ECDSA-secp256k1, DER or raw hex.
func parseAnyKey(s string) (hedera.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if key, err := hedera.PrivateKeyFromString(s); err == nil {
		return key, nil
	}
	if key, err := hedera.PrivateKeyFromStringECDSA(s); err == nil {
		return key, nil
	}
	return hedera.PrivateKey{}, fmt.Errorf("%w: not a valid Ed25519 or ECDSA key", ErrNoKey)
}

// EncryptedFileSource unlocks an encrypted key file with a passphrase read
// from a secure prompt. Production.
type EncryptedFileSource struct {
	Path string
}

func (s EncryptedFileSource) Load() (hedera.PrivateKey, error) {
	passphrase, err := promptSecret(fmt.Sprintf("Passphrase for %s: ", s.Path))
	if err != nil {
		return hedera.PrivateKey{}, err
	}
	raw, err := DecryptKeyFile(s.Path, passphrase)
	if err != nil {
		return hedera.PrivateKey{}, err
	}
	return parseAnyKey(raw)
}

func (s EncryptedFileSource) DevelopmentOnly() bool { return false }
func (s EncryptedFileSource) Describe() string      { return "encrypted key file " + s.Path }

// PromptSource reads a raw key from a secure prompt. Production; nothing is
// persisted.
type PromptSource struct{}

func (s PromptSource) Load() (hedera.PrivateKey, error) {
	raw, err := promptSecret("Operator private key: ")
	if err != nil {
		return hedera.PrivateKey{}, err
	}
	return parseAnyKey(raw)
}

func (s PromptSource) DevelopmentOnly() bool { return false }
func (s PromptSource) Describe() string      { return "interactive prompt" }

// EnvSource reads the key from an environment variable.
// DEVELOPMENT ONLY: the variable sits in plain text in the process
// environment and usually in a .env file next to it.
type EnvSource struct {
	Var string
}

func (s EnvSource) Load() (hedera.PrivateKey, error) {
	raw := os.Getenv(s.Var)
	if raw == "" {
		return hedera.PrivateKey{}, fmt.Errorf("%w: $%s is empty", ErrNoKey, s.Var)
	}
	return parseAnyKey(raw)
}

func (s EnvSource) DevelopmentOnly() bool { return true }
func (s EnvSource) Describe() string      { return "environment variable $" + s.Var + " (development only)" }

// RequireECDSA rejects Ed25519 keys for slots that demand ECDSA, such as the
// trade-lotto signature validator.
func RequireECDSA(key hedera.PrivateKey) error {
	// An Ed25519 public key is 32 bytes; compressed ECDSA is 33.
	if len(key.PublicKey().BytesRaw()) == 32 {
		return fmt.Errorf("%w: want ECDSA-secp256k1, got Ed25519", ErrWrongKeyAlgo)
	}
	return nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(raw), nil
}
