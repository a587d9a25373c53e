package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Argon2 {
	t.Helper()

	hasher, err := NewArgon2(Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return hasher
}

func TestHashProducesPHCFormat(t *testing.T) {
	hasher := testHasher(t)

	digest, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=") {
		t.Fatalf("unexpected digest format: %q", digest)
	}
	if parts := strings.Split(digest, "$"); len(parts) != 6 {
		t.Fatalf("expected 6 PHC segments, got %d", len(parts))
	}
}

func TestHashSaltsEveryCall(t *testing.T) {
	hasher := testHasher(t)

	first, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct digests for the same password")
	}

	if !hasher.Verify("same password", first) || !hasher.Verify("same password", second) {
		t.Fatal("both digests must verify")
	}
}

func TestVerifyMismatch(t *testing.T) {
	hasher := testHasher(t)

	digest, err := hasher.Hash("right password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hasher.Verify("wrong password", digest) {
		t.Fatal("expected mismatch to verify false")
	}
	if hasher.Verify("", digest) {
		t.Fatal("expected empty password to verify false")
	}
}

func TestVerifyMalformedDigestIsFalseNotError(t *testing.T) {
	hasher := testHasher(t)

	malformed := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$bad!!salt$hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=1$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA",
	}
	for _, digest := range malformed {
		if hasher.Verify("anything", digest) {
			t.Fatalf("expected malformed digest %q to verify false", digest)
		}
	}
}

func TestVerifyAcceptsUnpaddedDigests(t *testing.T) {
	hasher := testHasher(t)

	digest, err := hasher.Hash("portable password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	// Digests written by this hasher are unpadded already; the parser must
	// accept them round-trip.
	if !hasher.Verify("portable password", digest) {
		t.Fatal("round-trip verify failed")
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := testHasher(t)
	digest, err := weak.Hash("password to upgrade")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	strong, err := NewArgon2(Params{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	upgrade, err := strong.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if !upgrade {
		t.Fatal("expected rehash needed under stronger parameters")
	}

	same, err := weak.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if same {
		t.Fatal("expected no rehash under identical parameters")
	}
}

func TestNewArgon2RejectsWeakParams(t *testing.T) {
	cases := []Params{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 4, KeyLength: 32},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for _, params := range cases {
		if _, err := NewArgon2(params); err == nil {
			t.Fatalf("expected params %+v rejected", params)
		}
	}
}
