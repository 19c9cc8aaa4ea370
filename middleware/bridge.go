package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

// DefaultBridgeCookie names the cookie carrying the bridge ID.
const DefaultBridgeCookie = "gs_bridge"

const maxBridgeBody = 64 << 10

// BridgeConfig configures [SessionBridge] and [LoadBridge].
//
// Verifier checks token signatures and claims both when a token is bridged and
// when it is loaded. Without one the bridge refuses every token.
type BridgeConfig struct {
	Store      *session.BridgeStore
	Verifier   TokenVerifier
	CookieName string
	CookiePath string
	Secure     bool
	Logger     hclog.Logger
}

func (c BridgeConfig) withDefaults() BridgeConfig {
	if c.CookieName == "" {
		c.CookieName = DefaultBridgeCookie
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	return c
}

type bridgeRequest struct {
	AccessToken string `json:"accessToken"`
}

// SessionBridge serves the session endpoint that client-rendered code posts its
// access token to. POST stores the token and sets an HttpOnly bridge cookie;
// DELETE forgets it.
//
// Unreadable tokens are rejected with 400, tokens the verifier refuses with 401.
func SessionBridge(cfg BridgeConfig) http.Handler {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.Named("bridge")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Store == nil || cfg.Verifier == nil {
			http.Error(w, "session bridge unavailable", http.StatusServiceUnavailable)
			return
		}

		switch r.Method {
		case http.MethodPost:
			saveBridge(w, r, cfg, logger)
		case http.MethodDelete:
			deleteBridge(w, r, cfg, logger)
		default:
			w.Header().Set("Allow", "POST, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func saveBridge(w http.ResponseWriter, r *http.Request, cfg BridgeConfig, logger hclog.Logger) {
	var body bridgeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBridgeBody)).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	tok, err := token.Parse(strings.TrimSpace(body.AccessToken))
	if err != nil {
		http.Error(w, "invalid token", http.StatusBadRequest)
		return
	}
	if _, err := cfg.Verifier.Verify(tok.Raw); err != nil {
		logger.Debug("bridge token rejected", "error", err)
		unauthorized(w)
		return
	}

	now := time.Now()
	ttl := cfg.Store.TTLFor(now, tok.ExpiresAt)
	if ttl < time.Second {
		http.Error(w, "token expired", http.StatusBadRequest)
		return
	}

	bridgeID := existingBridgeID(r, cfg.CookieName)
	if bridgeID == "" {
		bridgeID = uuid.NewString()
	}

	if err := cfg.Store.Save(r.Context(), bridgeID, tok.Raw, ttl); err != nil {
		logger.Error("bridge save failed", "error", err)
		http.Error(w, "session bridge unavailable", http.StatusServiceUnavailable)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    bridgeID,
		Path:     cfg.CookiePath,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func deleteBridge(w http.ResponseWriter, r *http.Request, cfg BridgeConfig, logger hclog.Logger) {
	if bridgeID := existingBridgeID(r, cfg.CookieName); bridgeID != "" {
		if err := cfg.Store.Delete(r.Context(), bridgeID); err != nil {
			logger.Error("bridge delete failed", "error", err)
			http.Error(w, "session bridge unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     cfg.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// existingBridgeID returns the bridge cookie value when it is a well-formed ID.
func existingBridgeID(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

type bridgeContextKey struct{}

// BridgeTokenFromContext returns the token loaded by [LoadBridge].
func BridgeTokenFromContext(ctx context.Context) (token.Token, bool) {
	tok, ok := ctx.Value(bridgeContextKey{}).(token.Token)
	return tok, ok && !tok.IsZero()
}

// LoadBridge puts the token bridged for the request's cookie, and its verified
// claims, into the request context. Requests without a valid one pass through
// unchanged.
func LoadBridge(cfg BridgeConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.Named("bridge")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bridgeID := existingBridgeID(r, cfg.CookieName)
			if bridgeID == "" || cfg.Store == nil || cfg.Verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := cfg.Store.Load(r.Context(), bridgeID)
			if err != nil {
				if !errors.Is(err, session.ErrBridgeNotFound) {
					logger.Warn("bridge load failed", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			// Verified again so a token bridged under a retired key, or planted
			// in the store directly, never reaches the view.
			claims, err := cfg.Verifier.Verify(raw)
			if err != nil {
				logger.Debug("bridged token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			tok, _ := token.Parse(raw)
			ctx := context.WithValue(r.Context(), bridgeContextKey{}, tok)
			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
