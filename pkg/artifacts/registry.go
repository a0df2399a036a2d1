// Package artifacts loads compiled contract artifacts (ABI + bytecode) by
// logical component name and provides the encoders and decoders used by the
// rest of the toolkit.
package artifacts

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrArtifactMissing = errors.New("artifact missing (compile the contracts first)")
	ErrAbiMismatch     = errors.New("abi mismatch")
)

// Artifact is a decoded Hardhat-style artifact file.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// Registry caches decoded artifacts keyed by component name.
type Registry struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewRegistry creates a registry rooted at dir (typically "artifacts/").
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:   dir,
		cache: make(map[string]*Artifact),
	}
}

// Load returns the artifact for a component name, reading and caching it on
// first use.
func (r *Registry) Load(name string) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.cache[name]; ok {
		return a, nil
	}

	path := filepath.Join(r.dir, name+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}

	var file artifactFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", name, err)
	}

	parsed, err := abi.JSON(strings.NewReader(string(file.ABI)))
	if err != nil {
		return nil, fmt.Errorf("artifact %s: parsing abi: %w", name, err)
	}

	var bytecode []byte
	if file.Bytecode != "" && file.Bytecode != "0x" {
		bytecode, err = hex.DecodeString(strings.TrimPrefix(file.Bytecode, "0x"))
		if err != nil {
			return nil, fmt.Errorf("artifact %s: decoding bytecode: %w", name, err)
		}
	}

	a := &Artifact{Name: name, ABI: parsed, Bytecode: bytecode}
	r.cache[name] = a
	return a, nil
}

// Encode packs a function call into calldata.
func (a *Artifact) Encode(function string, args ...interface{}) ([]byte, error) {
	data, err := a.ABI.Pack(function, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrAbiMismatch, a.Name, function, err)
	}
	return data, nil
}

// DecodeReturn unpacks return data against the function's output ABI. Empty
// return data is valid for functions with no declared outputs.
func (a *Artifact) DecodeReturn(function string, data []byte) ([]interface{}, error) {
	method, ok := a.ABI.Methods[function]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no function %q", ErrAbiMismatch, a.Name, function)
	}
	if len(data) == 0 {
		if len(method.Outputs) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s.%s returned no data", ErrAbiMismatch, a.Name, function)
	}
	values, err := a.ABI.Unpack(function, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrAbiMismatch, a.Name, function, err)
	}
	return values, nil
}

// DecodedEvent is one decoded log entry.
type DecodedEvent struct {
	Name string
	Args map[string]interface{}
}

// DecodeLog decodes a single log entry against the contract's events.
// Indexed and non-indexed fields are merged into Args.
func (a *Artifact) DecodeLog(topics []common.Hash, data []byte) (*DecodedEvent, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: log has no topics", ErrAbiMismatch)
	}
	event, err := a.ABI.EventByID(topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: unknown event topic %s", ErrAbiMismatch, topics[0])
	}

	args := make(map[string]interface{})
	if len(data) > 0 {
		if err := a.ABI.UnpackIntoMap(args, event.Name, data); err != nil {
			return nil, fmt.Errorf("%w: event %s data: %v", ErrAbiMismatch, event.Name, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(args, indexed, topics[1:]); err != nil {
			return nil, fmt.Errorf("%w: event %s topics: %v", ErrAbiMismatch, event.Name, err)
		}
	}

	return &DecodedEvent{Name: event.Name, Args: args}, nil
}

// IsPayable reports whether the named function accepts value.
func (a *Artifact) IsPayable(function string) (bool, error) {
	method, ok := a.ABI.Methods[function]
	if !ok {
		return false, fmt.Errorf("%w: %s has no function %q", ErrAbiMismatch, a.Name, function)
	}
	return method.StateMutability == "payable", nil
}
