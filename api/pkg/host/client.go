package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewRemoteSession asks a running host at baseURL for a new session.
func NewRemoteSession(ctx context.Context, baseURL string) (SessionInfo, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = stdlog.New(io.Discard, "", stdlog.LstdFlags)

	u := strings.TrimSuffix(baseURL, "/") + APIPrefix + "/sessions"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("failed to create session request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return SessionInfo{}, fmt.Errorf("failed to create session: status code %d (%s)", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SessionInfo{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return info, nil
}
