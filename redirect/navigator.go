package redirect

import (
	"context"
	"errors"
	"net/http"
)

// Navigator sends the user to a destination.
type Navigator interface {
	Navigate(ctx context.Context, destination string) error
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, destination string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, destination string) error {
	return f(ctx, destination)
}

// HTTPNavigator redirects an in-progress HTTP exchange.
type HTTPNavigator struct {
	W http.ResponseWriter
	R *http.Request
}

// Navigate writes a 303 See Other to destination.
func (n HTTPNavigator) Navigate(_ context.Context, destination string) error {
	if n.W == nil || n.R == nil {
		return errors.New("http navigator has no exchange")
	}
	http.Redirect(n.W, n.R, destination, http.StatusSeeOther)
	return nil
}
