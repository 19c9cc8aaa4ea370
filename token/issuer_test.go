package token

import (
	"crypto/ed25519"
	"crypto/rand"
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

func TestIssuerRoundTripEd25519(t *testing.T) {
	pub, priv := newEdKeys(t)
	iss, err := NewIssuer(IssuerConfig{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "api",
		Audience:      "web",
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	raw, err := iss.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := iss.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "u1" || claims.SessionID != "s1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	exp, err := ExpiryOf(raw)
	if err != nil {
		t.Fatalf("ExpiryOf: %v", err)
	}
	if d := time.Until(exp); d <= 0 || d > time.Minute+time.Second {
		t.Fatalf("unexpected expiry distance %v", d)
	}
}

func TestIssuerVerifyRejectsExpired(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("secret-secret-secret-secret")})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	now := time.Now()
	raw, err := iss.IssueExpiring("u1", "s1", now.Add(-2*time.Minute), now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.Verify(raw); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
	if _, err := ExpiryOf(raw); err != nil {
		t.Fatalf("expected expired token to still decode locally: %v", err)
	}
}

func TestIssuerVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	iss, err := NewIssuer(IssuerConfig{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	raw, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := iss.Verify(raw); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestIssuerVerifyEnforcesKeyID(t *testing.T) {
	secret := []byte("secret-secret-secret-secret")
	a, err := NewIssuer(IssuerConfig{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret, KeyID: "k1"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	b, err := NewIssuer(IssuerConfig{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret, KeyID: "k2"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	raw, err := a.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(raw); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
}

func TestNewIssuerRejectsInvalidConfig(t *testing.T) {
	cases := []IssuerConfig{
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519},
		{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewIssuer(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}
