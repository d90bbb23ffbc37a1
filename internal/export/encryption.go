package export

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionMagic  = "TBK1"
	saltSize         = 16
	keySize          = 32
	pbkdf2Iterations = 100000
)

// Encryptor seals artifacts with AES-256-GCM under a passphrase-derived key.
// Sealed layout: magic | salt | nonce | ciphertext.
type Encryptor struct {
	passphrase string
}

// NewEncryptor creates an encryptor for the passphrase
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase is empty")
	}
	return &Encryptor{passphrase: passphrase}, nil
}

// Extension is appended to encrypted artifact names
func (e *Encryptor) Extension() string {
	return ".enc"
}

func (e *Encryptor) deriveKey(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}

// Encrypt seals data with a fresh salt and nonce
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(e.deriveKey(salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(encryptionMagic)+saltSize+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, encryptionMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens data produced by Encrypt
func (e *Encryptor) Decrypt(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, []byte(encryptionMagic)) {
		return nil, fmt.Errorf("not an encrypted artifact")
	}
	rest := sealed[len(encryptionMagic):]
	if len(rest) < saltSize {
		return nil, fmt.Errorf("encrypted data too short")
	}
	salt, rest := rest[:saltSize], rest[saltSize:]

	gcm, err := newGCM(e.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted data too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}
