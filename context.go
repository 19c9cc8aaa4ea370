package goSession

import "context"

type locationContextKey struct{}

// WithLocation attaches the caller's current location (path plus query) to ctx.
// When a request made with ctx ends the session, the login destination returns
// the user to this location.
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, locationContextKey{}, location)
}

// LocationFromContext returns the location attached with [WithLocation].
func LocationFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	location, _ := ctx.Value(locationContextKey{}).(string)
	return location, location != ""
}
