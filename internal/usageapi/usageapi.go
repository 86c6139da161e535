// Package usageapi fetches the aggregate remote usage snapshot for a Claude
// account from the claude.ai organization usage endpoint. It authenticates
// with session cookies pulled from the desktop app's Chromium cookie store,
// so it works without any stored credential of its own. Everything here is an
// external boundary: failures are ordinary errors and nothing in the session
// core depends on this package.
package usageapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Window is one remote utilization bucket.
type Window struct {
	Utilization float64 `json:"utilization"` // 0..100 as reported
	ResetsAt    string  `json:"resets_at"`
}

// Snapshot is the fixed response shape of the usage endpoint.
type Snapshot struct {
	FiveHour       *Window `json:"five_hour"`
	SevenDay       *Window `json:"seven_day"`
	SevenDaySonnet *Window `json:"seven_day_sonnet"`
	SevenDayOpus   *Window `json:"seven_day_opus"`
}

func (w *Window) ResetTime() (time.Time, bool) {
	if w == nil || w.ResetsAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, w.ResetsAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Fetch retrieves the usage snapshot for the given organization. Cookies come
// from the desktop app's store; see cookies.go.
func Fetch(ctx context.Context, orgID string) (*Snapshot, error) {
	cookies, err := sessionCookies()
	if err != nil {
		return nil, fmt.Errorf("cookie extraction: %w", err)
	}
	return fetchWithCookies(ctx, orgID, cookies)
}

func fetchWithCookies(ctx context.Context, orgID string, cookies map[string]string) (*Snapshot, error) {
	url := fmt.Sprintf("https://claude.ai/api/organizations/%s/usage", orgID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	parts := make([]string, 0, len(cookies))
	for name, value := range cookies {
		parts = append(parts, name+"="+value)
	}
	req.Header.Set("Cookie", strings.Join(parts, "; "))
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://claude.ai/settings/usage")
	req.Header.Set("anthropic-client-platform", "web_claude_ai")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("usage endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &snap, nil
}
