package token

import (
	"errors"
	"testing"
	"time"
)

// FuzzExpiryOf feeds arbitrary strings to the unverified claims decoder.
// Goal: no panics; anything rejected must be reported as ErrMalformedToken.
func FuzzExpiryOf(f *testing.F) {
	iss, err := NewIssuer(IssuerConfig{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("fuzz-secret-fuzz-secret"),
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := iss.Issue("uid1", "sid1")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJ1aWQiOiJ0ZXN0In0.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJleHAiOjF9.")

	f.Fuzz(func(t *testing.T, input string) {
		tok, err := Parse(input)
		if err != nil {
			if !errors.Is(err, ErrMalformedToken) {
				t.Fatalf("unexpected error class: %v", err)
			}
			if tok.ExpiryKnown() {
				t.Fatal("malformed token must not carry an expiry")
			}
			return
		}
		if !tok.ExpiryKnown() {
			t.Fatal("parsed token without error must carry an expiry")
		}
	})
}
