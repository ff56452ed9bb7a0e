// Package token generates confirmation tokens and the salted hashes that
// are stored in place of them.  The cleartext token is handed back to the
// caller exactly once and never retained.
package token

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/random"
)

const (
	// Algorithm names the key derivation used in the hash string.
	Algorithm = "PBKDF2WithHmacSHA1"
	// Size is the number of characters in a confirmation token.
	Size       = 16
	iterations = 256
	saltBytes  = 32
	keyBytes   = 16
	fillByte   = '*'
)

const symbols = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Mint creates confirmation tokens.
type Mint struct {
	src random.Source
}

// NewMint returns a Mint drawing randomness from src.
func NewMint(src random.Source) *Mint {
	return &Mint{src: src}
}

// Generate returns a fresh token as a byte buffer so the caller can wipe it
// once it has been delivered.
func (m *Mint) Generate() []byte {
	buf := make([]byte, Size)
	for i := range buf {
		buf[i] = symbols[m.src.Intn(len(symbols))]
	}
	return buf
}

// Hash returns "<algo>:<iterations>:<b64 salt>:<b64 digest>" for tok.
func (m *Mint) Hash(tok []byte) (string, error) {
	salt := make([]byte, saltBytes)
	if err := m.src.Read(salt); err != nil {
		return "", fmt.Errorf("%w: failed to generate confirmation token: %v", model.ErrInternal, err)
	}
	digest := pbkdf2.Key(tok, salt, iterations, keyBytes, sha1.New)
	enc := base64.StdEncoding
	return strings.Join([]string{
		Algorithm,
		strconv.Itoa(iterations),
		enc.EncodeToString(salt),
		enc.EncodeToString(digest),
	}, ":"), nil
}

// Verify reports whether tok matches a hash produced by Hash.
func Verify(tok, hash string) bool {
	parts := strings.Split(hash, ":")
	if len(parts) != 4 || parts[0] != Algorithm {
		return false
	}
	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(tok), salt, iter, len(want), sha1.New)
	return hmac.Equal(got, want)
}

// Wipe overwrites buf with a fill byte.
func Wipe(buf []byte) {
	for i := range buf {
		buf[i] = fillByte
	}
}
