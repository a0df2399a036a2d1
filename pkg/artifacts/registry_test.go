package artifacts

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArtifact = `{
  "contractName": "Vault",
  "abi": [
    {"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
    {"type":"function","name":"balanceOf","stateMutability":"view",
      "inputs":[{"name":"who","type":"address"}],
      "outputs":[{"name":"","type":"uint256"}]},
    {"type":"function","name":"setOwner","stateMutability":"nonpayable",
      "inputs":[{"name":"owner","type":"address"}],"outputs":[]},
    {"type":"event","name":"Deposited","inputs":[
      {"name":"from","type":"address","indexed":true},
      {"name":"amount","type":"uint256","indexed":false}]}
  ],
  "bytecode": "0x6080604052"
}`

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0644))
}

func TestLoad_MissingArtifact(t *testing.T) {
	r := NewRegistry(t.TempDir())
	_, err := r.Load("Nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactMissing))
}

func TestLoad_CachesDecodedArtifact(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "Vault", testArtifact)
	r := NewRegistry(dir)

	first, err := r.Load("Vault")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, first.Bytecode)

	// Second load must come from cache even if the file disappears.
	require.NoError(t, os.Remove(filepath.Join(dir, "Vault.json")))
	second, err := r.Load("Vault")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEncodeDecode(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "Vault", testArtifact)
	r := NewRegistry(dir)
	a, err := r.Load("Vault")
	require.NoError(t, err)

	who := common.HexToAddress("0x00000000000000000000000000000000000003e9")
	data, err := a.Encode("balanceOf", who)
	require.NoError(t, err)
	assert.Len(t, data, 4+32)

	ret := make([]byte, 32)
	ret[31] = 42
	values, err := a.DecodeReturn("balanceOf", ret)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, big.NewInt(42), values[0])
}

func TestEncode_ArityMismatch(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "Vault", testArtifact)
	r := NewRegistry(dir)
	a, err := r.Load("Vault")
	require.NoError(t, err)

	_, err = a.Encode("balanceOf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAbiMismatch))

	_, err = a.Encode("noSuchFunction")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAbiMismatch))
}

func TestDecodeReturn_EmptyIsValidForVoid(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "Vault", testArtifact)
	r := NewRegistry(dir)
	a, err := r.Load("Vault")
	require.NoError(t, err)

	values, err := a.DecodeReturn("setOwner", nil)
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = a.DecodeReturn("balanceOf", nil)
	require.Error(t, err)
}

func TestIsPayable(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "Vault", testArtifact)
	r := NewRegistry(dir)
	a, err := r.Load("Vault")
	require.NoError(t, err)

	payable, err := a.IsPayable("deposit")
	require.NoError(t, err)
	assert.True(t, payable)

	payable, err = a.IsPayable("setOwner")
	require.NoError(t, err)
	assert.False(t, payable)
}

func TestDecodeLog(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "Vault", testArtifact)
	r := NewRegistry(dir)
	a, err := r.Load("Vault")
	require.NoError(t, err)

	from := common.HexToAddress("0x00000000000000000000000000000000000003e9")
	sig := crypto.Keccak256Hash([]byte("Deposited(address,uint256)"))
	topics := []common.Hash{sig, common.BytesToHash(from.Bytes())}

	amount := make([]byte, 32)
	amount[31] = 7

	event, err := a.DecodeLog(topics, amount)
	require.NoError(t, err)
	assert.Equal(t, "Deposited", event.Name)
	assert.Equal(t, from, event.Args["from"])
	assert.Equal(t, big.NewInt(7), event.Args["amount"])
}

func TestCreateGasFor(t *testing.T) {
	assert.Equal(t, uint64(5_800_000), CreateGasFor("LazyLotto"))
	assert.Equal(t, DefaultCreateGas, CreateGasFor("SomethingUnknown"))
}
