package pipeline

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/artifacts"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

const lottoTestArtifact = `{
  "contractName": "LazyLotto",
  "abi": [
    {"type":"function","name":"buyEntry","stateMutability":"payable",
      "inputs":[{"name":"poolId","type":"uint256"},{"name":"count","type":"uint256"}],"outputs":[]},
    {"type":"function","name":"pausePool","stateMutability":"nonpayable",
      "inputs":[{"name":"poolId","type":"uint256"}],"outputs":[]}
  ],
  "bytecode": "0x"
}`

func loadTestArtifact(t *testing.T) *artifacts.Artifact {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LazyLotto.json"), []byte(lottoTestArtifact), 0644))
	a, err := artifacts.NewRegistry(dir).Load("LazyLotto")
	require.NoError(t, err)
	return a
}

func TestBuildCalldata_RejectsValueOnNonPayable(t *testing.T) {
	a := loadTestArtifact(t)
	contract, err := refs.ParseContract("0.0.999")
	require.NoError(t, err)

	_, err = BuildCalldata(CallRequest{
		Contract:       contract,
		Artifact:       a,
		Function:       "pausePool",
		Args:           []interface{}{big1()},
		PayableTinybar: 100,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPayable))
}

func TestBuildCalldata_AllowsValueOnPayable(t *testing.T) {
	a := loadTestArtifact(t)
	contract, err := refs.ParseContract("0.0.999")
	require.NoError(t, err)

	data, err := BuildCalldata(CallRequest{
		Contract:       contract,
		Artifact:       a,
		Function:       "buyEntry",
		Args:           []interface{}{big1(), big1()},
		PayableTinybar: 100,
	})
	require.NoError(t, err)
	assert.Len(t, data, 4+64)
}

func TestApplyMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		class    CallClass
		estimate uint64
		want     uint64
	}{
		{"deterministic adds 20%", ClassDeterministic, 100_000, 120_000},
		{"roll doubles then adds 20%", ClassRoll, 100_000, 240_000},
		{"zero estimate", ClassDeterministic, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyMultiplier(tt.class, tt.estimate))
		})
	}
}

func TestDecodeRevertReason(t *testing.T) {
	// Error("pool has outstanding entries") encoded per the ABI spec:
	// selector, offset 0x20, length 28, padded bytes.
	payload, err := hex.DecodeString(
		"08c379a0" +
			"0000000000000000000000000000000000000000000000000000000000000020" +
			"000000000000000000000000000000000000000000000000000000000000001c" +
			hex.EncodeToString([]byte("pool has outstanding entries")) + "00000000",
	)
	require.NoError(t, err)

	assert.Equal(t, "pool has outstanding entries", DecodeRevertReason(payload))
}

func TestDecodeRevertReason_NonStandardPayloads(t *testing.T) {
	assert.Equal(t, "", DecodeRevertReason(nil))
	assert.Equal(t, "", DecodeRevertReason([]byte{0x01, 0x02}))
	// Custom error selector.
	custom := make([]byte, 68)
	custom[0] = 0xde
	assert.Equal(t, "", DecodeRevertReason(custom))

	// Hostile offset and length words must not wrap the bounds checks.
	errorString := func(offset, length uint64) []byte {
		payload := make([]byte, 4+64)
		copy(payload, []byte{0x08, 0xc3, 0x79, 0xa0})
		binary.BigEndian.PutUint64(payload[4+24:4+32], offset)
		binary.BigEndian.PutUint64(payload[4+56:4+64], length)
		return payload
	}
	assert.NotPanics(t, func() {
		assert.Equal(t, "", DecodeRevertReason(errorString(32, math.MaxUint64)))
		assert.Equal(t, "", DecodeRevertReason(errorString(math.MaxUint64-31, 1)))
		assert.Equal(t, "", DecodeRevertReason(errorString(math.MaxUint64, math.MaxUint64)))
		assert.Equal(t, "", DecodeRevertReason(errorString(32, 33)))
	})
}

func TestWriteThenReadBack_Succeeds(t *testing.T) {
	wrote := false
	reads := 0
	err := WriteThenReadBackDelay(context.Background(), logging.NoopLogger{},
		func() error { wrote = true; return nil },
		func() (string, error) {
			reads++
			if reads < 2 {
				return "", errors.New("mirror lagging")
			}
			return "0.0.999", nil
		},
		"0.0.999",
		time.Millisecond,
	)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 2, reads)
}

func TestWriteThenReadBack_WriteFailureShortCircuits(t *testing.T) {
	boom := errors.New("submit failed")
	reads := 0
	err := WriteThenReadBackDelay(context.Background(), logging.NoopLogger{},
		func() error { return boom },
		func() (int, error) { reads++; return 0, nil },
		1,
		time.Millisecond,
	)
	assert.True(t, errors.Is(err, boom))
	assert.Zero(t, reads)
}

func TestWriteThenReadBack_MismatchExhausts(t *testing.T) {
	err := WriteThenReadBackDelay(context.Background(), logging.NoopLogger{},
		func() error { return nil },
		func() (int, error) { return 41, nil },
		42,
		time.Millisecond,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "SUCCESS", StatusSuccess.String())
	assert.Equal(t, "REVERT", StatusRevert.String())
	assert.Equal(t, "NETWORK_ERROR", StatusNetworkError.String())
	assert.Equal(t, "TIMEOUT", StatusTimeout.String())
}

func big1() interface{} {
	return big.NewInt(1)
}
