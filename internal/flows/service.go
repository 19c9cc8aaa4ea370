package flows

import (
	"context"
	"net/http"
)

// Service is the centralized flow runner built once by the root client.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Refresh.Client != nil && s.deps.Dispatch.Client != nil
}

func (s Service) Refresh(ctx context.Context) RefreshResult {
	return RunRefresh(ctx, s.deps.Refresh)
}

func (s Service) Dispatch(ctx context.Context, req *http.Request) DispatchResult {
	return RunDispatch(ctx, req, s.deps.Dispatch)
}

// DispatchWith runs the dispatch flow over a different transport, keeping the
// token and refresh wiring.
func (s Service) DispatchWith(ctx context.Context, req *http.Request, client HTTPDoer) DispatchResult {
	deps := s.deps.Dispatch
	deps.Client = client
	return RunDispatch(ctx, req, deps)
}

func (s Service) SessionSync(ctx context.Context, accessToken string) error {
	return RunSessionSync(ctx, accessToken, s.deps.Sync)
}

func (s Service) SessionUnsync(ctx context.Context) error {
	return RunSessionUnsync(ctx, s.deps.Sync)
}
