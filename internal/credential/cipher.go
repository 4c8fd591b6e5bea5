package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const masterKeyName = "account-password-key"

// Cipher encrypts and decrypts account passwords at rest using AES-GCM.
// The symmetric key lives in the system keyring and is created on first
// use.
type Cipher struct {
	aead cipher.AEAD
}

// Open loads (or creates) the master key from the system keyring and
// returns a ready Cipher.
func Open() (*Cipher, error) {
	key, err := getSecret(masterKeyName)
	if err != nil {
		var keyErr error
		if !errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, err
		}
		key = make([]byte, 32)
		if _, keyErr = rand.Read(key); keyErr != nil {
			return nil, fmt.Errorf("generating master key: %w", keyErr)
		}
		if keyErr = setSecret(masterKeyName, key); keyErr != nil {
			return nil, keyErr
		}
	}
	return New(key)
}

// New builds a Cipher from an explicit 16-, 24- or 32-byte key.
func New(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals a plaintext password into its stored form.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored password. Failure is fatal to connection
// establishment; callers must not retry with the undecrypted value.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding stored password: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("stored password too short")
	}
	nonce, data := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting stored password: %w", err)
	}
	return string(plaintext), nil
}
