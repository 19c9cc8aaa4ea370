package middleware

import (
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/redirect"
)

// RequireSession guards server-rendered views. Requests without a bridged token,
// or whose bridged token has expired, are redirected to the login destination
// carrying the requested URI as the return target.
//
// It must run after [LoadBridge].
func RequireSession(policy redirect.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := BridgeTokenFromContext(r.Context())
			if ok && !tok.ExpiresWithin(time.Now(), 0) {
				next.ServeHTTP(w, r)
				return
			}

			nav := redirect.HTTPNavigator{W: w, R: r}
			_ = nav.Navigate(r.Context(), policy.LoginDestination(r.URL.RequestURI()))
		})
	}
}
