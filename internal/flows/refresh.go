package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RefreshFailureKind classifies refresh exchange failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureRequest
	RefreshFailureTransport
	RefreshFailureServer
	RefreshFailureDenied
	RefreshFailureDecode
)

const defaultMaxRefreshBody = 64 << 10

// HTTPDoer issues HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to [HTTPDoer].
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f.
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RefreshResult carries either the new access token or failure metadata.
type RefreshResult struct {
	Failure     RefreshFailureKind
	Err         error
	StatusCode  int
	AccessToken string
}

// RefreshDeps captures refresh exchange dependencies.
type RefreshDeps struct {
	Client       HTTPDoer
	Endpoint     string
	MaxBodyBytes int64
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// RunRefresh exchanges the ambient refresh cookie for a new access token.
//
// The request has no body; the refresh credential travels in the client's cookie
// jar. No retry is attempted.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deps.Endpoint, http.NoBody)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := deps.Client.Do(req)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureTransport, Err: err}
	}
	defer DrainAndClose(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return RefreshResult{
			Failure:    RefreshFailureServer,
			Err:        fmt.Errorf("refresh endpoint returned %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return RefreshResult{
			Failure:    RefreshFailureDenied,
			Err:        fmt.Errorf("refresh endpoint returned %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	limit := deps.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxRefreshBody
	}

	var body refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, limit)).Decode(&body); err != nil {
		return RefreshResult{
			Failure:    RefreshFailureDecode,
			Err:        fmt.Errorf("decode refresh response: %w", err),
			StatusCode: resp.StatusCode,
		}
	}
	access := strings.TrimSpace(body.AccessToken)
	if access == "" {
		return RefreshResult{
			Failure:    RefreshFailureDecode,
			Err:        errors.New("refresh response has no access token"),
			StatusCode: resp.StatusCode,
		}
	}

	return RefreshResult{
		Failure:     RefreshFailureNone,
		StatusCode:  resp.StatusCode,
		AccessToken: access,
	}
}

// DrainAndClose discards a bounded amount of unread body so the connection can be
// reused, then closes it.
func DrainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}
