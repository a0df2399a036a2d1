package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"
)

// Key file format: scrypt-stretched passphrase, AES-256-GCM over the key
// string. The public key is stored in the clear so tooling can identify the
// file without unlocking it.
type keyFile struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	PublicKey  string `json:"publicKey"`
}

const (
	keyFileVersion = 1
	scryptN        = 1 << 17
	scryptR        = 8
	scryptP        = 1

	// Ceilings for parameters read back from a key file. scrypt allocates
	// 128*N*R bytes, so an unchecked file could demand arbitrary memory.
	scryptMaxN = 1 << 22
	scryptMaxR = 32
	scryptMaxP = 16
)

// EncryptKeyFile writes privateKey (its string form) to path, encrypted
// under passphrase.
func EncryptKeyFile(path, privateKey, publicKey, passphrase string) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(privateKey), nil)

	file := keyFile{
		Version:    keyFileVersion,
		KDF:        "scrypt",
		Salt:       hex.EncodeToString(salt),
		N:          scryptN,
		R:          scryptR,
		P:          scryptP,
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
		PublicKey:  publicKey,
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}

// DecryptKeyFile unlocks the key file at path and returns the key string.
func DecryptKeyFile(path, passphrase string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoKey, err)
	}
	var file keyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return "", fmt.Errorf("key file %s: %w", path, err)
	}
	if file.KDF != "scrypt" || file.Version != keyFileVersion {
		return "", fmt.Errorf("key file %s: unsupported format", path)
	}
	if file.N < 2 || file.N > scryptMaxN || file.R < 1 || file.R > scryptMaxR || file.P < 1 || file.P > scryptMaxP {
		return "", fmt.Errorf("key file %s: scrypt parameters out of range (n=%d r=%d p=%d)", path, file.N, file.R, file.P)
	}

	salt, err := hex.DecodeString(file.Salt)
	if err != nil {
		return "", fmt.Errorf("key file %s: bad salt", path)
	}
	nonce, err := hex.DecodeString(file.Nonce)
	if err != nil {
		return "", fmt.Errorf("key file %s: bad nonce", path)
	}
	ciphertext, err := hex.DecodeString(file.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("key file %s: bad ciphertext", path)
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, file.N, file.R, file.P, 32)
	if err != nil {
		return "", fmt.Errorf("deriving key: %w", err)
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrBadPassphrase
	}
	return string(plain), nil
}
