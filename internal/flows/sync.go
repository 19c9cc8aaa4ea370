package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SyncDeps captures session bridge dependencies.
type SyncDeps struct {
	Client   HTTPDoer
	Endpoint string
}

type syncRequest struct {
	AccessToken string `json:"accessToken"`
}

// RunSessionSync posts the current access token to the session bridge endpoint so a
// server-rendered context can observe it.
func RunSessionSync(ctx context.Context, accessToken string, deps SyncDeps) error {
	payload, err := json.Marshal(syncRequest{AccessToken: accessToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deps.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := deps.Client.Do(req)
	if err != nil {
		return err
	}
	defer DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("session bridge returned %d", resp.StatusCode)
	}
	return nil
}

// RunSessionUnsync asks the session bridge endpoint to forget the bridged token.
func RunSessionUnsync(ctx context.Context, deps SyncDeps) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deps.Endpoint, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := deps.Client.Do(req)
	if err != nil {
		return err
	}
	defer DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("session bridge returned %d", resp.StatusCode)
	}
	return nil
}
