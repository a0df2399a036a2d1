package keys

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFileRoundTrip(t *testing.T) {
	key, err := hedera.PrivateKeyGenerateEd25519()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operator.key.json")
	require.NoError(t, EncryptKeyFile(path, key.String(), key.PublicKey().String(), "correct horse"))

	decrypted, err := DecryptKeyFile(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, key.String(), decrypted)
}

func TestDecryptKeyFile_WrongPassphrase(t *testing.T) {
	key, err := hedera.PrivateKeyGenerateEd25519()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operator.key.json")
	require.NoError(t, EncryptKeyFile(path, key.String(), key.PublicKey().String(), "right"))

	_, err = DecryptKeyFile(path, "wrong")
	assert.True(t, errors.Is(err, ErrBadPassphrase))
}

func TestDecryptKeyFile_RejectsHostileScryptParams(t *testing.T) {
	key, err := hedera.PrivateKeyGenerateEd25519()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operator.key.json")
	require.NoError(t, EncryptKeyFile(path, key.String(), key.PublicKey().String(), "pw"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// A tampered file demanding gigabytes from the KDF must be refused
	// before scrypt allocates anything.
	tests := []struct {
		name  string
		field string
		value int
	}{
		{"oversized n", "n", 1 << 30},
		{"oversized r", "r", 1 << 20},
		{"oversized p", "p", 1 << 16},
		{"zero n", "n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var file map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &file))
			file[tt.field] = tt.value
			tampered, err := json.Marshal(file)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, tampered, 0600))

			_, err = DecryptKeyFile(path, "pw")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "scrypt parameters out of range")
		})
	}
}

func TestDecryptKeyFile_Missing(t *testing.T) {
	_, err := DecryptKeyFile(filepath.Join(t.TempDir(), "nope.json"), "pw")
	assert.True(t, errors.Is(err, ErrNoKey))
}

func TestEnvSource(t *testing.T) {
	key, err := hedera.PrivateKeyGenerateEd25519()
	require.NoError(t, err)
	t.Setenv("LLT_TEST_KEY", key.String())

	src := EnvSource{Var: "LLT_TEST_KEY"}
	assert.True(t, src.DevelopmentOnly(), "env keys must be flagged development-only")

	loaded, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().String(), loaded.PublicKey().String())
}

func TestEnvSource_Empty(t *testing.T) {
	t.Setenv("LLT_TEST_KEY", "")
	_, err := EnvSource{Var: "LLT_TEST_KEY"}.Load()
	assert.True(t, errors.Is(err, ErrNoKey))
}

func TestRequireECDSA(t *testing.T) {
	ed, err := hedera.PrivateKeyGenerateEd25519()
	require.NoError(t, err)
	assert.True(t, errors.Is(RequireECDSA(ed), ErrWrongKeyAlgo))

	ec, err := hedera.PrivateKeyGenerateEcdsa()
	require.NoError(t, err)
	assert.NoError(t, RequireECDSA(ec))
}

func TestProductionSourcesAreFlagged(t *testing.T) {
	assert.False(t, EncryptedFileSource{Path: "x"}.DevelopmentOnly())
	assert.False(t, PromptSource{}.DevelopmentOnly())
}
