package session

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/token"
)

func TestTokenStoreSetGetClear(t *testing.T) {
	s := NewTokenStore()
	if _, ok := s.Get(); ok {
		t.Fatal("expected empty store")
	}

	s.Set(token.Token{Raw: "t1"})
	got, ok := s.Get()
	if !ok || got.Raw != "t1" {
		t.Fatalf("expected t1, got %q (held=%v)", got.Raw, ok)
	}

	s.Clear()
	if _, ok := s.Get(); ok {
		t.Fatal("expected cleared store")
	}
}

func TestTokenStoreEpochGuardsStaleWrites(t *testing.T) {
	s := NewTokenStore()
	epoch := s.Set(token.Token{Raw: "t1"})

	if !s.CompareAndSet(epoch, token.Token{Raw: "t2"}) {
		t.Fatal("expected write in current epoch to succeed")
	}
	if s.Epoch() != epoch {
		t.Fatal("CompareAndSet must keep the epoch")
	}

	s.Clear()
	if s.CompareAndSet(epoch, token.Token{Raw: "t3"}) {
		t.Fatal("expected stale-epoch write to be discarded")
	}
	if _, ok := s.Get(); ok {
		t.Fatal("stale write must not resurrect a cleared store")
	}
}

func TestTokenStoreCompareAndClear(t *testing.T) {
	s := NewTokenStore()
	old := s.Set(token.Token{Raw: "t1"})
	s.Set(token.Token{Raw: "t2"})

	if s.CompareAndClear(old) {
		t.Fatal("expected stale clear to be ignored")
	}
	if got, ok := s.Get(); !ok || got.Raw != "t2" {
		t.Fatalf("expected t2 to survive stale clear, got %q", got.Raw)
	}

	if !s.CompareAndClear(s.Epoch()) {
		t.Fatal("expected current-epoch clear to succeed")
	}
	if _, ok := s.Get(); ok {
		t.Fatal("expected cleared store")
	}
}

func TestTokenStoreConcurrentReadersSeeWholeTokens(t *testing.T) {
	s := NewTokenStore()
	exp := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			n := strconv.Itoa(i)
			s.Set(token.Token{Raw: "t" + n, ExpiresAt: exp.Add(time.Duration(i) * time.Second)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			tok, ok := s.Get()
			if !ok {
				continue
			}
			n, err := strconv.Atoi(tok.Raw[1:])
			if err != nil {
				t.Errorf("corrupt token %q", tok.Raw)
				return
			}
			if !tok.ExpiresAt.Equal(exp.Add(time.Duration(n) * time.Second)) {
				t.Errorf("token %q paired with wrong expiry %v", tok.Raw, tok.ExpiresAt)
				return
			}
		}
	}()
	wg.Wait()
}
