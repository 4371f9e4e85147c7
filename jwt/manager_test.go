package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret"),
		Issuer:        "shopcore",
		Audience:      "shop",
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestSignVerifyRoundTrip(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newHSManager(t, func() time.Time { return base })

	token, exp, err := m.Sign(Identity{UserID: 42, Subject: "+15550100", Roles: []string{"ROLE_USER"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !exp.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", base.Add(time.Hour), exp)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 || claims.Subject != "+15550100" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "ROLE_USER" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if !claims.IssuedAt.Time.Equal(base) {
		t.Fatalf("expected iat %v, got %v", base, claims.IssuedAt.Time)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newHSManager(t, func() time.Time { return now })

	token, _, err := m.Sign(Identity{UserID: 1})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	now = now.Add(2 * time.Hour)
	_, err = m.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if errors.Is(err, ErrTokenInvalid) {
		t.Fatal("expired token must not also report invalid")
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	m := newHSManager(t, nil)
	token, _, err := m.Sign(Identity{UserID: 7})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := m.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := m.Verify("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{UserID: 1, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestVerifyIssuerAudienceMismatch(t *testing.T) {
	m := newHSManager(t, nil)
	other, err := NewManager(Config{
		AccessTTL:     time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret"),
		Issuer:        "someone-else",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := other.Sign(Identity{UserID: 3})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected issuer mismatch to be invalid, got %v", err)
	}
}

func TestExtractSubjectIgnoresExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newHSManager(t, func() time.Time { return now })

	token, _, err := m.Sign(Identity{UserID: 9, Subject: "+15550199"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	now = now.Add(48 * time.Hour)

	subject, err := m.ExtractSubject(token)
	if err != nil {
		t.Fatalf("extract subject: %v", err)
	}
	if subject != "+15550199" {
		t.Fatalf("expected subject +15550199, got %q", subject)
	}

	if _, err := m.ExtractSubject("a.b.c"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestSubjectDefaultsToUserID(t *testing.T) {
	m := newHSManager(t, nil)
	token, _, err := m.Sign(Identity{UserID: 42})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	subject, err := m.ExtractSubject(token)
	if err != nil {
		t.Fatalf("extract subject: %v", err)
	}
	if subject != "42" {
		t.Fatalf("expected subject 42, got %q", subject)
	}
}

func TestEd25519KeyRotation(t *testing.T) {
	oldPub, oldPriv := newEdKeys(t)
	newPub, newPriv := newEdKeys(t)

	oldSigner, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    oldPriv,
		PublicKey:     oldPub,
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("old signer: %v", err)
	}
	rotated, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    newPriv,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k1": oldPub, "k2": newPub},
	})
	if err != nil {
		t.Fatalf("rotated manager: %v", err)
	}

	oldToken, _, err := oldSigner.Sign(Identity{UserID: 5})
	if err != nil {
		t.Fatalf("sign old: %v", err)
	}
	if _, err := rotated.Verify(oldToken); err != nil {
		t.Fatalf("expected token signed with retired key to verify: %v", err)
	}

	newToken, _, err := rotated.Sign(Identity{UserID: 5})
	if err != nil {
		t.Fatalf("sign new: %v", err)
	}
	if _, err := oldSigner.Verify(newToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected unknown kid to be invalid, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")}},
		{"hs256 without key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"ed25519 without public key", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}},
		{"unknown method", Config{AccessTTL: time.Minute, SigningMethod: "rs256"}},
		{"huge leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func FuzzVerify(f *testing.F) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("fuzz-secret")})
	if err != nil {
		f.Fatal(err)
	}
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJIUzI1NiJ9.e30.")
	f.Fuzz(func(t *testing.T, token string) {
		if _, err := m.Verify(token); err != nil && !errors.Is(err, ErrTokenInvalid) && !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("unexpected error class: %v", err)
		}
	})
}
