package multisig

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	hedera "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
)

// SignatureDescriptor is the offline signature exchange format, one file per
// signer.
type SignatureDescriptor struct {
	SignerPublicKey string `json:"signerPublicKey"`
	AccountID       string `json:"accountId,omitempty"`
	Signature       string `json:"signature"` // hex
}

func (d *SignatureDescriptor) decode() (hedera.PublicKey, []byte, error) {
	pub, err := hedera.PublicKeyFromString(d.SignerPublicKey)
	if err != nil {
		return hedera.PublicKey{}, nil, fmt.Errorf("%w: public key: %v", ErrInvalidSignatureFile, err)
	}
	sig, err := hex.DecodeString(d.Signature)
	if err != nil {
		return hedera.PublicKey{}, nil, fmt.Errorf("%w: signature hex: %v", ErrInvalidSignatureFile, err)
	}
	return pub, sig, nil
}

// exportMetadata accompanies the frozen bytes so offline signers can see
// what they are signing and when it expires.
type exportMetadata struct {
	TransactionID string    `json:"transactionId"`
	ContractID    string    `json:"contractId"`
	SHA256        string    `json:"sha256"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Threshold     int       `json:"threshold"`
}

// Export writes the frozen transaction to <base>.bin and a metadata
// descriptor to <base>.json.
func Export(frozen *FrozenTx, base string, threshold int) error {
	if err := os.WriteFile(base+".bin", frozen.Bytes, 0600); err != nil {
		return fmt.Errorf("writing frozen transaction: %w", err)
	}

	sum := sha256.Sum256(frozen.Bytes)
	contractID := ""
	if id := frozen.Tx.GetContractID(); id.Contract != 0 {
		contractID = id.String()
	}
	meta := exportMetadata{
		TransactionID: frozen.Tx.GetTransactionID().String(),
		ContractID:    contractID,
		SHA256:        hex.EncodeToString(sum[:]),
		ExpiresAt:     frozen.Deadline(),
		Threshold:     threshold,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+".json", raw, 0644); err != nil {
		return fmt.Errorf("writing transaction descriptor: %w", err)
	}
	return nil
}

// LoadFrozen reads frozen transaction bytes exported by Export.
func LoadFrozen(binPath string) (*FrozenTx, error) {
	raw, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("reading frozen transaction: %w", err)
	}
	tx, err := hedera.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("deserializing frozen transaction: %w", err)
	}
	exec, ok := tx.(hedera.ContractExecuteTransaction)
	if !ok {
		return nil, fmt.Errorf("%w: not a contract execute transaction", ErrInvalidSignatureFile)
	}
	return &FrozenTx{Tx: &exec, Bytes: raw}, nil
}

// WriteSignatureFile stores one signer's contribution.
func WriteSignatureFile(path string, desc *SignatureDescriptor) error {
	raw, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// ReadSignatureFile loads one signer's contribution.
func ReadSignatureFile(path string) (*SignatureDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureFile, err)
	}
	var desc SignatureDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSignatureFile, path, err)
	}
	if desc.SignerPublicKey == "" || desc.Signature == "" {
		return nil, fmt.Errorf("%w: %s: missing fields", ErrInvalidSignatureFile, path)
	}
	return &desc, nil
}

// ReadSignatureFiles loads a set of contributions, failing on the first
// invalid file.
func ReadSignatureFiles(paths []string) ([]*SignatureDescriptor, error) {
	descriptors := make([]*SignatureDescriptor, 0, len(paths))
	for _, p := range paths {
		d, err := ReadSignatureFile(p)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}
