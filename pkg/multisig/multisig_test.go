package multisig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/keys"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
)

type staticSource struct {
	key hedera.PrivateKey
}

func (s staticSource) Load() (hedera.PrivateKey, error) { return s.key, nil }
func (s staticSource) DevelopmentOnly() bool            { return true }
func (s staticSource) Describe() string                 { return "test key" }

var _ keys.Source = staticSource{}

// frozenFixture builds a frozen transaction without touching a network:
// node ids and transaction id are set explicitly.
func frozenFixture(t *testing.T) *FrozenTx {
	t.Helper()
	tx := hedera.NewContractExecuteTransaction().
		SetContractID(hedera.ContractID{Contract: 4893391}).
		SetGas(100_000).
		SetFunctionParameters([]byte{0xab, 0xcd, 0xef, 0x12}).
		SetNodeAccountIDs([]hedera.AccountID{{Account: 3}}).
		SetTransactionID(hedera.TransactionIDGenerate(hedera.AccountID{Account: 1001}))

	_, err := tx.Freeze()
	require.NoError(t, err)

	raw, err := tx.ToBytes()
	require.NoError(t, err)
	return &FrozenTx{Tx: tx, Bytes: raw}
}

func genKey(t *testing.T) hedera.PrivateKey {
	t.Helper()
	key, err := hedera.PrivateKeyGenerateEd25519()
	require.NoError(t, err)
	return key
}

func TestFreeze_IdempotentOnFrozenTx(t *testing.T) {
	frozen := frozenFixture(t)
	c := New(nil, 1, nil, logging.NoopLogger{})

	again, err := c.Freeze(frozen.Tx)
	require.NoError(t, err)
	assert.Equal(t, frozen.Bytes, again.Bytes, "re-freezing must return byte-equal content")
}

func TestAssemble_PermutationAndDuplicateInvariance(t *testing.T) {
	keyA, keyB, keyC := genKey(t), genKey(t), genKey(t)

	frozen := frozenFixture(t)
	sigA, err := Sign(frozen, staticSource{keyA}, "0.0.1")
	require.NoError(t, err)
	sigB, err := Sign(frozen, staticSource{keyB}, "0.0.2")
	require.NoError(t, err)
	sigC, err := Sign(frozen, staticSource{keyC}, "0.0.3")
	require.NoError(t, err)

	orderings := [][]*SignatureDescriptor{
		{sigA, sigC},
		{sigC, sigA},
		{sigA, sigC, sigA, sigC},       // duplicates collapse
		{sigC, sigA, sigB},             // extra signer past threshold is fine
		{sigA, sigA, sigC, sigB, sigB}, // both at once
	}

	for i, descs := range orderings {
		fresh := frozenFixture(t)
		// Re-sign against the fresh freeze since each fixture has its own
		// transaction id.
		resigned := make([]*SignatureDescriptor, 0, len(descs))
		signers := map[string]hedera.PrivateKey{
			keyA.PublicKey().String(): keyA,
			keyB.PublicKey().String(): keyB,
			keyC.PublicKey().String(): keyC,
		}
		for _, d := range descs {
			s, err := Sign(fresh, staticSource{signers[d.SignerPublicKey]}, d.AccountID)
			require.NoError(t, err)
			resigned = append(resigned, s)
		}

		_, err := Assemble(fresh, resigned, 2)
		assert.NoError(t, err, "ordering %d", i)
	}
}

func TestAssemble_InsufficientSignatures(t *testing.T) {
	keyA := genKey(t)
	frozen := frozenFixture(t)
	sigA, err := Sign(frozen, staticSource{keyA}, "0.0.1")
	require.NoError(t, err)

	// The same signer twice is one contribution.
	_, err = Assemble(frozen, []*SignatureDescriptor{sigA, sigA}, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientSignatures))
}

func TestAssemble_WrongTransaction(t *testing.T) {
	keyA := genKey(t)

	signedAgainst := frozenFixture(t)
	sigA, err := Sign(signedAgainst, staticSource{keyA}, "0.0.1")
	require.NoError(t, err)

	other := frozenFixture(t)
	_, err = Assemble(other, []*SignatureDescriptor{sigA}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongTransaction))
}

func TestSubmit_Expired(t *testing.T) {
	frozen := frozenFixture(t)
	c := New(nil, 1, nil, logging.NoopLogger{})
	c.now = func() time.Time { return time.Now().Add(5 * time.Minute) }

	_, err := c.Submit(context.Background(), frozen)
	assert.True(t, errors.Is(err, ErrExpired))
}

func TestDeadline_InsideValidityWindow(t *testing.T) {
	frozen := frozenFixture(t)
	validStart := *frozen.Tx.GetTransactionID().ValidStart
	deadline := frozen.Deadline()

	assert.True(t, deadline.After(validStart))
	assert.True(t, deadline.Before(validStart.Add(networkValidityWindow)),
		"internal deadline must leave a buffer before the network window")
}

func TestExportLoadSignMerge_OfflineFlow(t *testing.T) {
	keyA, keyC := genKey(t), genKey(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "tx")

	frozen := frozenFixture(t)
	require.NoError(t, Export(frozen, base, 2))
	assert.FileExists(t, base+".bin")
	assert.FileExists(t, base+".json")

	// Each signer loads the frozen bytes independently.
	loadedA, err := LoadFrozen(base + ".bin")
	require.NoError(t, err)
	sigA, err := Sign(loadedA, staticSource{keyA}, "0.0.1")
	require.NoError(t, err)
	require.NoError(t, WriteSignatureFile(filepath.Join(dir, "sigA.json"), sigA))

	loadedC, err := LoadFrozen(base + ".bin")
	require.NoError(t, err)
	sigC, err := Sign(loadedC, staticSource{keyC}, "0.0.3")
	require.NoError(t, err)
	require.NoError(t, WriteSignatureFile(filepath.Join(dir, "sigC.json"), sigC))

	// The merging invocation starts from the exported bytes too.
	merged, err := LoadFrozen(base + ".bin")
	require.NoError(t, err)
	descs, err := ReadSignatureFiles([]string{
		filepath.Join(dir, "sigA.json"),
		filepath.Join(dir, "sigC.json"),
	})
	require.NoError(t, err)

	_, err = Assemble(merged, descs, 2)
	assert.NoError(t, err)
}

func TestReadSignatureFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, writeFile(bad, `{"signature":""}`))

	_, err := ReadSignatureFile(bad)
	assert.True(t, errors.Is(err, ErrInvalidSignatureFile))

	_, err = ReadSignatureFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, ErrInvalidSignatureFile))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
