package fakeapi

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/token"
)

// Harness bundles a running fake API with its Redis backend.
type Harness struct {
	*Server
	HTTP  *httptest.Server
	Redis *redis.Client
	Mini  *miniredis.Miniredis
}

// NewIssuer returns an Ed25519 issuer with a fresh key pair.
func NewIssuer(accessTTL time.Duration) (*token.Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return token.NewIssuer(token.IssuerConfig{
		AccessTTL:     accessTTL,
		SigningMethod: token.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fakeapi",
	})
}

// Start runs a fake API on miniredis for the duration of t.
func Start(t testing.TB) *Harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	issuer, err := NewIssuer(5 * time.Minute)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	srv, err := New(Config{Redis: rdb, Issuer: issuer})
	if err != nil {
		t.Fatalf("fakeapi: %v", err)
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &Harness{Server: srv, HTTP: ts, Redis: rdb, Mini: mr}
}
