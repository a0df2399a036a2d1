package network

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		in      string
		want    Environment
		wantErr bool
	}{
		{"TEST", Testnet, false},
		{"TESTNET", Testnet, false},
		{"testnet", Testnet, false},
		{"MAIN", Mainnet, false},
		{"MAINNET", Mainnet, false},
		{"  Preview ", Previewnet, false},
		{"PREVIEWNET", Previewnet, false},
		{"local", Local, false},
		{"GOERLI", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEnvironment(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidEnvironment))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMirrorBaseURL(t *testing.T) {
	assert.Contains(t, Testnet.MirrorBaseURL(), "testnet")
	assert.Contains(t, Mainnet.MirrorBaseURL(), "mainnet")
	assert.Contains(t, Previewnet.MirrorBaseURL(), "previewnet")
	assert.Contains(t, Local.MirrorBaseURL(), "localhost")
}

func TestParseOperator_BadAccount(t *testing.T) {
	_, err := ParseOperator("not-an-account", "302e020100300506032b657004220420"+strings.Repeat("ab", 32))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOperator))
}

func TestParseOperator_BadKey(t *testing.T) {
	_, err := ParseOperator("0.0.1001", "zzzz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOperator))
}

func TestConfirmMainnet(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"exact phrase", "MAINNET\n", false},
		{"crlf", "MAINNET\r\n", false},
		{"wrong case", "mainnet\n", true},
		{"prefixed", "yes MAINNET\n", true},
		{"empty", "\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := ConfirmMainnet(strings.NewReader(tt.input), &out)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMainnetConfirmationRequired))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfirmMainnet_NoInput(t *testing.T) {
	var out bytes.Buffer
	err := ConfirmMainnet(nil, &out)
	assert.True(t, errors.Is(err, ErrMainnetConfirmationRequired))
}
