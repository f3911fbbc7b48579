// Package credential seals secret configuration values, such as database
// connection strings, so they are not stored in plain text. Values are
// encrypted with AES-256-GCM under a key derived from the local machine and user.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"runtime"
	"strings"
)

// SealedPrefix marks a value as sealed.
const SealedPrefix = "enc:v1:"

const keySalt = "agenda-credential-sealer-v1"

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidFormat    = errors.New("invalid sealed format")
)

// Sealer encrypts and decrypts configuration secrets.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the key from machine and user identifiers, so sealed
// values only open for the same user on the same machine.
func NewSealer() (*Sealer, error) {
	return NewSealerFromSecret(machineSecret())
}

// NewSealerFromSecret derives the key from an explicit secret.
func NewSealerFromSecret(secret string) (*Sealer, error) {
	key := sha256.Sum256([]byte(keySalt + secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext. Empty and already sealed values are returned unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value. Plain values pass through so hand-edited
// configuration keeps working.
func (s *Sealer) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrInvalidFormat, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", ErrInvalidFormat
	}
	plaintext, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

func machineSecret() string {
	var sb strings.Builder
	hostname, _ := os.Hostname()
	sb.WriteString(hostname)
	home, _ := os.UserHomeDir()
	sb.WriteString(home)
	sb.WriteString(runtime.GOOS)
	sb.WriteString(runtime.GOARCH)
	if uid := os.Getuid(); uid != -1 {
		fmt.Fprintf(&sb, "uid:%d", uid)
	}
	if username := os.Getenv("USER"); username != "" {
		sb.WriteString(username)
	}
	return sb.String()
}

// Mask hides a secret for display. Connection URIs keep their scheme and
// host with the password replaced; other values show only their ends.
func Mask(secret string) string {
	if u, err := url.Parse(secret); err == nil && u.Scheme != "" && u.Host != "" {
		u.RawQuery = ""
		return u.Redacted()
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
