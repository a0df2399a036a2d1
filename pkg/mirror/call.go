package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

type contractCallRequest struct {
	Block    string `json:"block"`
	Data     string `json:"data"`
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	Estimate bool   `json:"estimate"`
	Value    int64  `json:"value,omitempty"`
	Gas      int64  `json:"gas,omitempty"`
}

type contractCallResponse struct {
	Result string `json:"result"`
}

type errorStatus struct {
	Status struct {
		Messages []struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
			Data    string `json:"data"`
		} `json:"messages"`
	} `json:"_status"`
}

// RevertError is a simulated call that executed and reverted. The raw revert
// payload is preserved for ABI-level reason decoding.
type RevertError struct {
	Message string
	Data    []byte
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("contract reverted: %s", e.Message)
}

// ContractCall runs a read-only EVM call through the mirror's simulation
// endpoint and returns the raw return bytes.
func (a *Adapter) ContractCall(ctx context.Context, to common.Address, calldata []byte, sender *refs.AccountRef) ([]byte, error) {
	result, err := a.doCall(ctx, to, calldata, sender, false, 0)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EstimateGas simulates the call with estimation enabled and returns the
// mirror's recommended gas. No multiplier is applied here; the caller picks
// one appropriate to the call class.
func (a *Adapter) EstimateGas(ctx context.Context, to common.Address, calldata []byte, sender *refs.AccountRef, valueTinybar int64) (uint64, error) {
	result, err := a.doCall(ctx, to, calldata, sender, true, valueTinybar)
	if err != nil {
		return 0, err
	}
	gas := new(big.Int).SetBytes(result)
	if !gas.IsUint64() {
		return 0, fmt.Errorf("%w: gas estimate out of range", ErrDecode)
	}
	return gas.Uint64(), nil
}

func (a *Adapter) doCall(ctx context.Context, to common.Address, calldata []byte, sender *refs.AccountRef, estimate bool, valueTinybar int64) ([]byte, error) {
	req := contractCallRequest{
		Block:    "latest",
		Data:     "0x" + common.Bytes2Hex(calldata),
		To:       refs.EvmHex(to),
		Estimate: estimate,
		Value:    valueTinybar,
	}
	if sender != nil {
		req.From = refs.EvmHex(sender.EvmAddress)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Post(ctx, a.baseURL+"/api/v1/contracts/call", "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("%w: contracts/call: %v", ErrMirrorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: contracts/call: %v", ErrMirrorUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var out contractCallResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: contracts/call: %v", ErrDecode, err)
		}
		return common.FromHex(out.Result), nil

	case http.StatusBadRequest:
		var status errorStatus
		if err := json.Unmarshal(raw, &status); err == nil && len(status.Status.Messages) > 0 {
			msg := status.Status.Messages[0]
			if strings.Contains(msg.Message, "REVERT") {
				data := msg.Data
				if data == "" {
					data = msg.Detail
				}
				return nil, &RevertError{Message: msg.Message, Data: common.FromHex(data)}
			}
			return nil, fmt.Errorf("%w: contracts/call: %s", ErrDecode, msg.Message)
		}
		return nil, fmt.Errorf("%w: contracts/call: HTTP 400", ErrDecode)

	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: contract %s", ErrNotFound, refs.EvmHex(to))

	default:
		return nil, fmt.Errorf("%w: contracts/call: HTTP %d", ErrMirrorUnavailable, resp.StatusCode)
	}
}
