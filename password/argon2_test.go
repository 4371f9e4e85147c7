package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newFastArgon2(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher := newFastArgon2(t, fastConfig())

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("wrong-password", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch without error: ok=%v err=%v", ok, err)
	}
}

func TestArgon2SaltIsRandom(t *testing.T) {
	hasher := newFastArgon2(t, fastConfig())
	a, _ := hasher.Hash("same-password")
	b, _ := hasher.Hash("same-password")
	if a == b {
		t.Fatal("two hashes of one password must differ")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	old := newFastArgon2(t, fastConfig())
	hash, err := old.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	up, err := newFastArgon2(t, stronger).NeedsUpgrade(hash)
	if err != nil || !up {
		t.Fatalf("expected upgrade for weaker parameters: up=%v err=%v", up, err)
	}

	up, err = old.NeedsUpgrade(hash)
	if err != nil || up {
		t.Fatalf("expected no upgrade for current parameters: up=%v err=%v", up, err)
	}
}

func TestArgon2RejectsMalformed(t *testing.T) {
	hasher := newFastArgon2(t, fastConfig())
	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	tests := []struct {
		name    string
		encoded string
		want    error
	}{
		{"not phc", "not-a-phc-hash", ErrMalformedHash},
		{"wrong version", strings.Replace(hash, "$v=19$", "$v=18$", 1), ErrUnsupportedHash},
		{"argon2i", strings.Replace(hash, "$argon2id$", "$argon2i$", 1), ErrUnsupportedHash},
		{"weak memory", strings.Replace(hash, "m=8192", "m=1024", 1), ErrMalformedHash},
		{"unknown param", strings.Replace(hash, "p=1", "x=1", 1), ErrMalformedHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := hasher.Verify("version-test", tt.encoded); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestArgon2LengthBounds(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 64
	hasher := newFastArgon2(t, cfg)

	if _, err := hasher.Hash(""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected too short, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected too long, got %v", err)
	}

	exact := strings.Repeat("b", 64)
	hash, err := hasher.Hash(exact)
	if err != nil {
		t.Fatalf("expected max-length password accepted: %v", err)
	}
	if ok, err := hasher.Verify(exact, hash); err != nil || !ok {
		t.Fatalf("Verify failed for max-length password: ok=%v err=%v", ok, err)
	}
	if _, err := hasher.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected verify to reject long input, got %v", err)
	}
}

func TestArgon2DefaultMaxPasswordBytes(t *testing.T) {
	hasher := newFastArgon2(t, fastConfig())
	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatalf("expected password > %d bytes rejected", DefaultMaxPasswordBytes)
	}
	if _, err := hasher.Hash(strings.Repeat("e", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("expected password of %d bytes accepted: %v", DefaultMaxPasswordBytes, err)
	}
}

func TestNewArgon2Validation(t *testing.T) {
	mutate := []func(*Config){
		func(c *Config) { c.Memory = 1024 },
		func(c *Config) { c.Time = 0 },
		func(c *Config) { c.Parallelism = 0 },
		func(c *Config) { c.SaltLength = 8 },
		func(c *Config) { c.KeyLength = 8 },
		func(c *Config) { c.MaxPasswordBytes = -1 },
	}
	for i, m := range mutate {
		cfg := fastConfig()
		m(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}
