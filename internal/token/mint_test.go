package token

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/iliyamo/seat-hold-service/internal/random"
)

func TestMint_Generate(t *testing.T) {
	t.Parallel()

	m := NewMint(random.NewSeeded(7))
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := string(m.Generate())
		if len(tok) != Size {
			t.Fatalf("expected token length %d, got %d", Size, len(tok))
		}
		for _, r := range tok {
			if !strings.ContainsRune(symbols, r) {
				t.Fatalf("unexpected symbol %q in token %q", r, tok)
			}
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestMint_HashFormatAndVerify(t *testing.T) {
	t.Parallel()

	m := NewMint(random.NewCrypto())
	tok := m.Generate()
	hash, err := m.Hash(tok)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	parts := strings.Split(hash, ":")
	if len(parts) != 4 {
		t.Fatalf("expected 4 parts, got %q", hash)
	}
	if parts[0] != Algorithm || parts[1] != "256" {
		t.Fatalf("unexpected header %q:%q", parts[0], parts[1])
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) != 32 {
		t.Fatalf("expected 32 byte salt, got %d (%v)", len(salt), err)
	}
	digest, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(digest) != 16 {
		t.Fatalf("expected 16 byte digest, got %d (%v)", len(digest), err)
	}

	if !Verify(string(tok), hash) {
		t.Fatalf("expected token to verify against its hash")
	}
	if Verify("not-the-token", hash) {
		t.Fatalf("expected wrong token to fail verification")
	}
	if Verify(string(tok), "garbage") {
		t.Fatalf("expected malformed hash to fail verification")
	}
}

func TestMint_HashIsSalted(t *testing.T) {
	t.Parallel()

	m := NewMint(random.NewCrypto())
	tok := []byte("abcdefgh12345678")
	h1, _ := m.Hash(tok)
	h2, _ := m.Hash(tok)
	if h1 == h2 {
		t.Fatalf("expected different hashes for different salts")
	}
}

func TestWipe(t *testing.T) {
	buf := []byte("secret")
	Wipe(buf)
	if string(buf) != "******" {
		t.Fatalf("expected wiped buffer, got %q", buf)
	}
}
