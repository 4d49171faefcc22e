package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meshlog/oplogsync/internal/cryptox"
	"github.com/meshlog/oplogsync/internal/filex"
)

// keyFile is the on-disk, passphrase-encrypted representation of an
// ed25519 private key, sealed with internal/cryptox's
// DeriveMasterKey-plus-EncryptEntry envelope, the same one the
// teacher's vault entries use.
type keyFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// SaveEncrypted encrypts priv under a key derived from passphrase and
// writes it to path.
func SaveEncrypted(path string, priv ed25519.PrivateKey, passphrase []byte) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("identity: generate salt: %w", err)
	}
	kek := cryptox.DeriveMasterKey(passphrase, salt)

	ciphertext, nonce, err := cryptox.EncryptEntry([]byte(priv), kek)
	if err != nil {
		return fmt.Errorf("identity: encrypt key: %w", err)
	}

	b, err := json.Marshal(keyFile{Salt: salt, Nonce: nonce, Ciphertext: ciphertext})
	if err != nil {
		return fmt.Errorf("identity: marshal key file: %w", err)
	}
	if err := filex.EnsureParentDir(path); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	return os.WriteFile(path, b, 0o600)
}

// LoadEncrypted reads and decrypts a private key written by SaveEncrypted.
func LoadEncrypted(path string, passphrase []byte) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}

	var kf keyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("identity: unmarshal key file: %w", err)
	}

	kek := cryptox.DeriveMasterKey(passphrase, kf.Salt)

	var priv []byte
	if err := cryptox.DecryptEntry(kf.Ciphertext, kf.Nonce, kek, &priv); err != nil {
		return nil, fmt.Errorf("identity: decrypt key file: wrong passphrase or corrupt file: %w", err)
	}

	return ed25519.PrivateKey(priv), nil
}
