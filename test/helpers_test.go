//go:build integration
// +build integration

package test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakeapi"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the Redis backends to test against.
// miniredis is always available. Real Redis is used when REDIS_ADDR is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

type stack struct {
	api    *fakeapi.Server
	srv    *httptest.Server
	cookie *http.Cookie
}

func startStack(t *testing.T, rdb redis.UniversalClient, handler func(*fakeapi.Server) http.Handler) *stack {
	t.Helper()

	issuer, err := fakeapi.NewIssuer(5 * time.Minute)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	api, err := fakeapi.New(fakeapi.Config{Redis: rdb, Issuer: issuer, Prefix: "it"})
	if err != nil {
		t.Fatalf("fakeapi: %v", err)
	}

	var h http.Handler = api
	if handler != nil {
		h = handler(api)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	_, cookie, err := api.Login(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return &stack{api: api, srv: srv, cookie: cookie}
}

func (s *stack) jar(t *testing.T) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	u, err := url.Parse(s.srv.URL + "/auth/refresh")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	jar.SetCookies(u, []*http.Cookie{s.cookie})
	return jar
}

func (s *stack) client(t *testing.T, mutate func(*goSession.Config)) *goSession.Client {
	t.Helper()

	cfg := goSession.DefaultConfig()
	cfg.BaseURL = s.srv.URL
	cfg.RefreshTimeout = 5 * time.Second
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := goSession.New().
		WithConfig(cfg).
		WithHTTPClient(&http.Client{Jar: s.jar(t)}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func (s *stack) beginExpired(t *testing.T, c *goSession.Client) string {
	t.Helper()
	expired, err := s.api.IssueExpired("user-1")
	if err != nil {
		t.Fatalf("IssueExpired: %v", err)
	}
	if _, err := c.BeginSession(context.Background(), expired); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	return expired
}
