package flows

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// DispatchState is the position of a request in the retry-once sequence.
//
// A request starts in DispatchFirstAttempt. A 401 followed by a successful refresh
// moves it to DispatchRetryPending; the retry, or a failed refresh, ends it in
// DispatchExhausted. There is no transition out of DispatchExhausted.
type DispatchState int

const (
	DispatchFirstAttempt DispatchState = iota
	DispatchRetryPending
	DispatchExhausted
)

func (s DispatchState) String() string {
	switch s {
	case DispatchFirstAttempt:
		return "first_attempt"
	case DispatchRetryPending:
		return "retry_pending"
	case DispatchExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// DispatchDeps captures authorized-request dependencies.
type DispatchDeps struct {
	Client       HTTPDoer
	CurrentToken func() (string, bool)
	// Refresh returns a token different from stale, or an error.
	Refresh func(ctx context.Context, stale string) (string, error)
}

// DispatchResult is the outcome of one authorized request.
type DispatchResult struct {
	Response *http.Response
	// Err is a transport or request-construction error; it is passed through.
	Err error
	// RefreshErr is set when a 401 could not be recovered by refreshing.
	RefreshErr   error
	State        DispatchState
	Unauthorized bool
	Retried      bool
}

// RunDispatch sends req with the current bearer token and, on a 401, refreshes
// and re-sends it exactly once.
//
// Non-401 responses are returned unchanged. A 401 on the retry is returned as is.
func RunDispatch(ctx context.Context, req *http.Request, deps DispatchDeps) DispatchResult {
	req = req.Clone(ctx)
	if err := makeReplayable(req); err != nil {
		return DispatchResult{Err: err, State: DispatchExhausted}
	}

	raw, _ := deps.CurrentToken()
	state := DispatchFirstAttempt
	res := DispatchResult{}

	for {
		attempt, err := prepareAttempt(ctx, req, raw)
		if err != nil {
			res.Err = err
			res.State = DispatchExhausted
			return res
		}

		resp, err := deps.Client.Do(attempt)
		if err != nil {
			res.Err = err
			res.State = advance(state)
			return res
		}

		if resp.StatusCode != http.StatusUnauthorized || state == DispatchRetryPending {
			res.Response = resp
			res.State = advance(state)
			return res
		}

		res.Unauthorized = true
		DrainAndClose(resp.Body)

		next, err := deps.Refresh(ctx, raw)
		if err != nil {
			res.RefreshErr = err
			res.State = DispatchExhausted
			return res
		}

		raw = next
		state = DispatchRetryPending
		res.Retried = true
	}
}

func advance(s DispatchState) DispatchState {
	if s == DispatchRetryPending {
		return DispatchExhausted
	}
	return s
}

func prepareAttempt(ctx context.Context, req *http.Request, raw string) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	if raw != "" {
		out.Header.Set("Authorization", "Bearer "+raw)
	} else {
		out.Header.Del("Authorization")
	}
	return out, nil
}

// makeReplayable buffers a request body that cannot be re-read so the retry can
// send it again.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	return nil
}
