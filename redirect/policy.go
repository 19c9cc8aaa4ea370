package redirect

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultLoginPath is the login route used when a Policy leaves LoginPath empty.
	DefaultLoginPath = "/auth/login"
	// DefaultReturnParam is the query parameter carrying the return destination.
	DefaultReturnParam = "returnUrl"
)

// Policy builds login destinations and validates return targets.
type Policy struct {
	LoginPath   string
	ReturnParam string
}

func (p Policy) loginPath() string {
	if p.LoginPath == "" {
		return DefaultLoginPath
	}
	return p.LoginPath
}

func (p Policy) returnParam() string {
	if p.ReturnParam == "" {
		return DefaultReturnParam
	}
	return p.ReturnParam
}

// LoginDestination returns the login URL that brings the user back to current
// after re-authentication.
//
// When current is empty or is itself the login page, no return parameter is added.
// A login page that already carries a return parameter is returned unchanged so the
// original destination survives.
func (p Policy) LoginDestination(current string) string {
	login := p.loginPath()
	current = strings.TrimSpace(current)
	if current == "" {
		return login
	}

	if p.isLogin(current) {
		if u, err := url.Parse(current); err == nil && u.Query().Get(p.returnParam()) != "" {
			return current
		}
		return login
	}

	q := url.Values{}
	q.Set(p.returnParam(), current)
	return login + "?" + q.Encode()
}

// ReturnTarget returns the return destination carried by r, or fallback when it
// is missing or unsafe. Only local absolute paths are accepted, and never the
// login page itself.
func (p Policy) ReturnTarget(r *http.Request, fallback string) string {
	if r == nil {
		return fallback
	}
	target := r.URL.Query().Get(p.returnParam())
	if !p.isSafeReturn(target) {
		return fallback
	}
	return target
}

func (p Policy) isLogin(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	path := u.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path == p.loginPath()
}

func (p Policy) isSafeReturn(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return false
	}
	return !p.isLogin(target)
}
