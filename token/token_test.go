package token

import (
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func signHS(t *testing.T, claims gjwt.Claims) string {
	t.Helper()
	raw, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestExpiryOfReadsExpClaim(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	raw := signHS(t, gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(exp)})

	got, err := ExpiryOf(raw)
	if err != nil {
		t.Fatalf("ExpiryOf failed: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}
}

func TestExpiryOfIgnoresSignatureAndPastExpiry(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	raw := signHS(t, gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(exp)})
	tampered := raw[:len(raw)-4] + "AAAA"

	got, err := ExpiryOf(tampered)
	if err != nil {
		t.Fatalf("expected unverified decode to succeed, got %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}
}

func TestExpiryOfRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"opaque":      "d41d8cd98f00b204e9800998ecf8427e",
		"two-parts":   "abc.def",
		"bad-base64":  "!!!.???.***",
		"missing-exp": signHS(t, gjwt.RegisteredClaims{Subject: "u1"}),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ExpiryOf(raw); !errors.Is(err, ErrMalformedToken) {
				t.Fatalf("expected ErrMalformedToken, got %v", err)
			}
		})
	}
}

func TestParseKeepsMalformedTokenWithUnknownExpiry(t *testing.T) {
	tok, err := Parse("opaque-token")
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if tok.Raw != "opaque-token" {
		t.Fatalf("expected raw value to be kept, got %q", tok.Raw)
	}
	if tok.ExpiryKnown() {
		t.Fatal("expected unknown expiry")
	}
	if tok.ExpiresWithin(time.Now(), time.Hour) {
		t.Fatal("unknown expiry must never report as expiring")
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Now()
	tok := Token{Raw: "x", ExpiresAt: now.Add(20 * time.Second)}

	if !tok.ExpiresWithin(now, 30*time.Second) {
		t.Fatal("expected token within 30s leeway to report expiring")
	}
	if tok.ExpiresWithin(now, 10*time.Second) {
		t.Fatal("expected token outside 10s leeway to report fresh")
	}
	if (Token{}).IsZero() != true {
		t.Fatal("expected zero token to report IsZero")
	}
}
