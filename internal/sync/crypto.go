package sync

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 600_000
	saltSize         = 16
	keySize          = 32 // AES-256
)

// GenerateSalt returns a cryptographically random 16-byte salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using PBKDF2-SHA256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

// Encrypt encrypts plaintext with AES-256-GCM and returns a base64-encoded string.
// Format: base64(nonce + ciphertext)
func Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decodes a base64 string and decrypts with AES-256-GCM.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// envelope is the JSON wrapper uploaded when a passphrase is configured.
// Candidate sheets carry personal data, so at-rest encryption is opt-in per
// deployment rather than per call.
type envelope struct {
	Encrypted int    `json:"fairsync_encrypted"`
	Salt      string `json:"salt"`
	Data      string `json:"data"`
}

// Seal wraps plaintext in an encrypted envelope using a fresh salt.
// With an empty passphrase the plaintext passes through unchanged.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return plaintext, nil
	}
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	enc, err := Encrypt(plaintext, DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Encrypted: 1,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Data:      enc,
	})
}

// Open reverses Seal. Blobs that are not envelopes (plaintext CSV written by
// an unencrypted deployment) pass through unchanged, so turning encryption on
// does not break reading the existing remote file.
func Open(data []byte, passphrase string) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Encrypted == 0 {
		return data, nil
	}
	if passphrase == "" {
		return nil, errors.New("remote blob is encrypted but no passphrase is configured")
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	plain, err := Decrypt(env.Data, DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}
