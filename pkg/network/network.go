// Package network resolves a logical environment name to a configured Hedera
// client bound to the operator identity.
package network

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
)

var (
	ErrInvalidEnvironment          = errors.New("invalid environment")
	ErrInvalidOperator             = errors.New("invalid operator identity")
	ErrMainnetConfirmationRequired = errors.New("mainnet confirmation required")
)

// Environment is the canonical network name.
type Environment string

const (
	Testnet    Environment = "TEST"
	Mainnet    Environment = "MAIN"
	Previewnet Environment = "PREVIEW"
	Local      Environment = "LOCAL"
)

// MainnetConfirmationPhrase must be typed, exact case, before any mainnet
// operation proceeds.
const MainnetConfirmationPhrase = "MAINNET"

// ParseEnvironment maps the accepted short and long forms, case-insensitive.
func ParseEnvironment(name string) (Environment, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TEST", "TESTNET":
		return Testnet, nil
	case "MAIN", "MAINNET":
		return Mainnet, nil
	case "PREVIEW", "PREVIEWNET":
		return Previewnet, nil
	case "LOCAL":
		return Local, nil
	default:
		return "", fmt.Errorf("%w: %q (want TEST, MAIN, PREVIEW or LOCAL)", ErrInvalidEnvironment, name)
	}
}

// MirrorBaseURL returns the REST base of the public mirror for the
// environment.
func (e Environment) MirrorBaseURL() string {
	switch e {
	case Mainnet:
		return "https://mainnet-public.mirrornode.hedera.com"
	case Previewnet:
		return "https://previewnet.mirrornode.hedera.com"
	case Local:
		return "http://localhost:5551"
	default:
		return "https://testnet.mirrornode.hedera.com"
	}
}

// Operator is the process-wide signing identity. Immutable per invocation.
type Operator struct {
	Account hedera.AccountID
	Key     hedera.PrivateKey
}

// ParseOperator builds an Operator from the textual account id and key.
// The key algorithm is auto-detected: DER strings carry their own type,
// raw hex is tried as Ed25519 then ECDSA.
func ParseOperator(accountID, privateKey string) (Operator, error) {
	account, err := hedera.AccountIDFromString(strings.TrimSpace(accountID))
	if err != nil {
		return Operator{}, fmt.Errorf("%w: account %q: %v", ErrInvalidOperator, accountID, err)
	}
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return Operator{}, fmt.Errorf("%w: %v", ErrInvalidOperator, err)
	}
	return Operator{Account: account, Key: key}, nil
}

// ParsePrivateKey accepts both Ed25519 and ECDSA-secp256k1 keys.
func ParsePrivateKey(s string) (hedera.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if key, err := hedera.PrivateKeyFromString(s); err == nil {
		return key, nil
	}
	if key, err := hedera.PrivateKeyFromStringECDSA(s); err == nil {
		return key, nil
	}
	return hedera.PrivateKey{}, errors.New("key is neither a valid Ed25519 nor ECDSA-secp256k1 private key")
}

// NewClient creates a network client with the operator pre-set. For mainnet
// the caller must have collected confirmation first; this factory does not
// prompt.
func NewClient(env Environment, operator Operator) (*hedera.Client, error) {
	var client *hedera.Client
	switch env {
	case Testnet:
		client = hedera.ClientForTestnet()
	case Mainnet:
		client = hedera.ClientForMainnet()
	case Previewnet:
		client = hedera.ClientForPreviewnet()
	case Local:
		node := hedera.AccountID{Account: 3}
		network := map[string]hedera.AccountID{"127.0.0.1:50211": node}
		var err error
		client, err = hedera.ClientForNetworkV2(network)
		if err != nil {
			return nil, fmt.Errorf("local network: %w", err)
		}
		client.SetMirrorNetwork([]string{"127.0.0.1:5600"})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEnvironment, env)
	}

	client.SetOperator(operator.Account, operator.Key)
	return client, nil
}

// ConfirmMainnet reads one line and matches it against the literal
// confirmation phrase. A nil reader means no interactive input is available,
// which always fails: mainnet cannot be confirmed by default.
func ConfirmMainnet(in io.Reader, out io.Writer) error {
	if in == nil {
		return ErrMainnetConfirmationRequired
	}
	fmt.Fprintf(out, "You are targeting MAINNET. Type %q to continue: ", MainnetConfirmationPhrase)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return ErrMainnetConfirmationRequired
	}
	if strings.TrimRight(line, "\r\n") != MainnetConfirmationPhrase {
		return ErrMainnetConfirmationRequired
	}
	return nil
}
