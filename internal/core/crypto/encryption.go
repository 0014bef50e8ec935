// Package crypto seals sensitive material before it reaches disk. Run
// history environment snapshots and target host SSH private keys are
// encrypted at rest with AES-256-GCM; the key is derived from an operator
// passphrase and never stored.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the encryption key is too short.
	ErrKeyTooShort = errors.New("encryption key must be at least 32 bytes")

	// ErrInvalidCiphertext is returned when the ciphertext is too short to
	// carry its nonce.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or
	// corrupted data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrInvalidSSHKey is returned when the SSH key cannot be parsed.
	ErrInvalidSSHKey = errors.New("invalid SSH private key format")
)

// =============================================================================
// Key Derivation
// =============================================================================

// DeriveKey derives a 32-byte AES-256 key from a passphrase using SHA-256.
// Deterministic: the same passphrase always yields the same key, so history
// written on one machine decrypts on another given the same passphrase.
func DeriveKey(passphrase string) []byte {
	hash := sha256.Sum256([]byte(passphrase))
	return hash[:]
}

// =============================================================================
// AES-256-GCM
// =============================================================================

// Encrypt seals plaintext with AES-256-GCM. The ciphertext layout is
// nonce (12 bytes) || encrypted data || auth tag (16 bytes).
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	key = key[:32]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	key = key[:32]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// =============================================================================
// SSH Key Utilities
// =============================================================================

// ParseSSHPrivateKey parses an SSH private key and returns the signer.
func ParseSSHPrivateKey(privateKey []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, ErrInvalidSSHKey
	}
	return signer, nil
}

// ValidateSSHPrivateKey reports whether the given bytes parse as an SSH
// private key.
func ValidateSSHPrivateKey(privateKey []byte) error {
	if _, err := ssh.ParsePrivateKey(privateKey); err != nil {
		return ErrInvalidSSHKey
	}
	return nil
}

// GenerateSSHKeyPair generates a new Ed25519 key pair for a provisioned
// target host. Returns the private key in PEM format and the public key in
// OpenSSH authorized_keys format.
func GenerateSSHKeyPair() (privateKeyPEM []byte, publicKey string, err error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generate ed25519 key: %w", err)
	}

	sshPrivKey, err := ssh.MarshalPrivateKey(privKey, "")
	if err != nil {
		return nil, "", fmt.Errorf("marshal private key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(sshPrivKey)

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return nil, "", fmt.Errorf("create public key: %w", err)
	}
	return pemBytes, string(ssh.MarshalAuthorizedKey(sshPubKey)), nil
}

// SSHPublicKey returns the OpenSSH authorized_keys form of the public key
// derived from the private key.
func SSHPublicKey(privateKey []byte) (string, error) {
	signer, err := ParseSSHPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return string(ssh.MarshalAuthorizedKey(signer.PublicKey())), nil
}

// SSHFingerprint returns the SHA256 fingerprint of the public key derived
// from the private key, in the form cloud consoles display.
func SSHFingerprint(privateKey []byte) (string, error) {
	signer, err := ParseSSHPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(signer.PublicKey().Marshal())
	return "SHA256:" + base64.StdEncoding.EncodeToString(hash[:]), nil
}
