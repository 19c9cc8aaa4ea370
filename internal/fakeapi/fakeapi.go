// Package fakeapi is an in-process API server that speaks the refresh and
// session bridge protocol goSession clients expect. Tests and the load-test
// command run it behind httptest.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

// RefreshCookie names the cookie carrying the refresh credential.
const RefreshCookie = "refresh_token"

// ErrUnknownCredential is returned for a refresh credential that does not exist
// or has expired.
var ErrUnknownCredential = errors.New("unknown refresh credential")

// Config configures a [Server].
type Config struct {
	Redis      redis.UniversalClient
	Issuer     *token.Issuer
	Prefix     string
	RefreshTTL time.Duration
	Logger     hclog.Logger

	// RefreshLimit caps refresh exchanges per client address within
	// RefreshWindow. Zero disables the throttle.
	RefreshLimit  int
	RefreshWindow time.Duration
}

// Server is the fake API. Protected routes live under /api/.
type Server struct {
	issuer     *token.Issuer
	redis      redis.UniversalClient
	prefix     string
	refreshTTL time.Duration
	logger     hclog.Logger
	bridge     *session.BridgeStore
	limiter    *rate.Limiter
	mux        *http.ServeMux

	exchanges     atomic.Int64
	apiCalls      atomic.Int64
	refreshDelay  atomic.Int64
	refreshStatus atomic.Int32
	expireIssued  atomic.Bool

	mu   sync.Mutex
	seen []string
}

// New validates cfg and returns a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Redis == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.Issuer == nil {
		return nil, errors.New("issuer required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "fakeapi"
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	s := &Server{
		issuer:     cfg.Issuer,
		redis:      cfg.Redis,
		prefix:     cfg.Prefix,
		refreshTTL: cfg.RefreshTTL,
		logger:     cfg.Logger.Named("fakeapi"),
		bridge:     session.NewBridgeStore(cfg.Redis, cfg.Prefix, 0),
		limiter:    rate.New(cfg.Redis, cfg.Prefix, cfg.RefreshLimit, cfg.RefreshWindow),
		mux:        http.NewServeMux(),
	}

	bridgeCfg := middleware.BridgeConfig{Store: s.bridge, Verifier: s.issuer, Logger: s.logger}
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/refresh", s.handleRefresh)
	s.mux.Handle("/auth/session", middleware.SessionBridge(bridgeCfg))
	s.mux.Handle("/api/", middleware.RequireBearer(s.issuer)(http.HandlerFunc(s.handleAPI)))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Bridge returns the store behind /auth/session.
func (s *Server) Bridge() *session.BridgeStore {
	return s.bridge
}

// Issuer returns the issuer that signs and verifies the server's tokens.
func (s *Server) Issuer() *token.Issuer {
	return s.issuer
}

func (s *Server) refreshKey(id string) string {
	return s.prefix + ":refresh:" + id
}

// Login creates a refresh credential for subject and returns an access token
// together with the refresh cookie.
func (s *Server) Login(ctx context.Context, subject string) (string, *http.Cookie, error) {
	id := uuid.NewString()
	if err := s.redis.Set(ctx, s.refreshKey(id), subject, s.refreshTTL).Err(); err != nil {
		return "", nil, fmt.Errorf("store refresh credential: %w", err)
	}
	access, err := s.issue(subject, id)
	if err != nil {
		return "", nil, err
	}
	return access, s.refreshCookie(id), nil
}

// IssueExpired returns an access token for subject that expired a minute ago.
func (s *Server) IssueExpired(subject string) (string, error) {
	now := time.Now()
	return s.issuer.IssueExpiring(subject, "", now.Add(-2*time.Minute), now.Add(-time.Minute))
}

// Revoke deletes the refresh credential carried by cookie, as an expired or
// revoked refresh cookie would be on a real server.
func (s *Server) Revoke(ctx context.Context, cookie *http.Cookie) error {
	if cookie == nil {
		return nil
	}
	return s.redis.Del(ctx, s.refreshKey(cookie.Value)).Err()
}

// RevokeAll deletes every refresh credential.
func (s *Server) RevokeAll(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, s.refreshKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// SetRefreshDelay makes every refresh exchange take at least d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// SetRefreshStatus forces refresh exchanges to answer status. Zero restores
// normal behavior.
func (s *Server) SetRefreshStatus(status int) {
	s.refreshStatus.Store(int32(status))
}

// SetIssueExpired makes refresh exchanges hand out already expired tokens.
func (s *Server) SetIssueExpired(v bool) {
	s.expireIssued.Store(v)
}

// Exchanges returns the number of refresh requests received.
func (s *Server) Exchanges() int64 {
	return s.exchanges.Load()
}

// APICalls returns the number of requests that reached a protected route.
func (s *Server) APICalls() int64 {
	return s.apiCalls.Load()
}

// SeenTokens returns the bearer tokens accepted by protected routes, in order.
func (s *Server) SeenTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func (s *Server) issue(subject, sessionID string) (string, error) {
	if s.expireIssued.Load() {
		now := time.Now()
		return s.issuer.IssueExpiring(subject, sessionID, now.Add(-2*time.Minute), now.Add(-time.Minute))
	}
	return s.issuer.Issue(subject, sessionID)
}

func (s *Server) refreshCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookie,
		Value:    id,
		Path:     "/auth",
		MaxAge:   int(s.refreshTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

type loginRequest struct {
	Subject string `json:"subject"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Subject == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	access, cookie, err := s.Login(r.Context(), body.Subject)
	if err != nil {
		s.logger.Error("login failed", "error", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access})
}

// handleRefresh rotates the refresh credential and returns a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.exchanges.Add(1)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if status := int(s.refreshStatus.Load()); status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := s.limiter.Allow(r.Context(), clientAddr(r)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			http.Error(w, "too many refresh attempts", http.StatusTooManyRequests)
			return
		}
		s.logger.Error("refresh throttle failed", "error", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		http.Error(w, "missing refresh credential", http.StatusUnauthorized)
		return
	}

	subject, nextID, err := s.rotate(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrUnknownCredential) {
			http.Error(w, "invalid refresh credential", http.StatusUnauthorized)
			return
		}
		s.logger.Error("refresh rotation failed", "error", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	access, err := s.issue(subject, nextID)
	if err != nil {
		http.Error(w, "issue failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, s.refreshCookie(nextID))
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rotate consumes the credential id and stores its successor.
func (s *Server) rotate(ctx context.Context, id string) (string, string, error) {
	subject, err := s.redis.GetDel(ctx, s.refreshKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", ErrUnknownCredential
		}
		return "", "", err
	}

	nextID := uuid.NewString()
	if err := s.redis.Set(ctx, s.refreshKey(nextID), subject, s.refreshTTL).Err(); err != nil {
		return "", "", err
	}
	return subject, nextID, nil
}

type apiResponse struct {
	Subject string `json:"subject"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Body    string `json:"body,omitempty"`
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.apiCalls.Add(1)

	raw := r.Header.Get("Authorization")[len("Bearer "):]
	s.mu.Lock()
	s.seen = append(s.seen, raw)
	s.mu.Unlock()

	claims, _ := middleware.ClaimsFromContext(r.Context())
	resp := apiResponse{Method: r.Method, Path: r.URL.Path}
	if claims != nil {
		resp.Subject = claims.Subject
	}
	if r.Body != nil {
		data, _ := io.ReadAll(io.LimitReader(r.Body, 4<<10))
		resp.Body = string(data)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
