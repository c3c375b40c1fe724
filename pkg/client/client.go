// Package client is the typed SDK for the zkbinfo HTTP API, used by
// the feed clients (websocket subscriber, per-day reconciler) and the
// terminal dashboard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zkb-tools/zkbinfo/pkg/killmail"
)

// Client talks to a zkbinfo daemon.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client. endpoint defaults to
// "http://127.0.0.1:8080" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8080"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Save posts one killmail to /killmail/save.
func (c *Client) Save(ctx context.Context, km *killmail.Killmail) error {
	body, err := json.Marshal(km)
	if err != nil {
		return fmt.Errorf("failed to marshal killmail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/killmail/save", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("save killmail %d: %w", km.KillmailID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save killmail %d: %s", km.KillmailID, readError(resp))
	}
	return nil
}

// IDsForDate returns the killmail ids the daemon has stored for a
// calendar day (YYYY-MM-DD).
func (c *Client) IDsForDate(ctx context.Context, day time.Time) ([]int64, error) {
	url := fmt.Sprintf("%s/api/killmail/ids/%s/", c.endpoint, day.UTC().Format("2006-01-02"))
	var ids []int64
	if err := c.getJSON(ctx, url, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Statistic returns the daemon's access counters.
func (c *Client) Statistic(ctx context.Context) (map[string]uint64, error) {
	var counts map[string]uint64
	if err := c.getJSON(ctx, c.endpoint+"/api/statistic", &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// ActivityReport mirrors the API's win/loss summary.
type ActivityReport struct {
	ID     int64      `json:"id"`
	Wins   SideReport `json:"wins"`
	Losses SideReport `json:"losses"`
}

type SideReport struct {
	TotalCount   uint64           `json:"total_count"`
	TotalDamage  int64            `json:"total_damage"`
	Ships        map[int64]uint64 `json:"ships"`
	SolarSystems map[int64]uint64 `json:"solar_systems"`
}

// Activity fetches the win/loss report for a subject.
func (c *Client) Activity(ctx context.Context, subject string, id int64) (*ActivityReport, error) {
	url := fmt.Sprintf("%s/api/%s/activity/%d/", c.endpoint, subject, id)
	var report ActivityReport
	if err := c.getJSON(ctx, url, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ActivityHourly fetches the dense 24-bucket histogram for a subject.
func (c *Client) ActivityHourly(ctx context.Context, subject string, id int64) (map[int]uint64, error) {
	url := fmt.Sprintf("%s/api/%s/activity/hourly/%d/", c.endpoint, subject, id)
	var hours map[int]uint64
	if err := c.getJSON(ctx, url, &hours); err != nil {
		return nil, err
	}
	return hours, nil
}

// Relations fetches one of the six relation tallies for a subject.
// polarity is "friends" or "enemies"; grouping "char", "corp" or "alli".
func (c *Client) Relations(ctx context.Context, subject string, polarity, grouping string, id int64) (map[int64]uint64, error) {
	url := fmt.Sprintf("%s/api/%s/%s/%s/%d/", c.endpoint, subject, polarity, grouping, id)
	var rels map[int64]uint64
	if err := c.getJSON(ctx, url, &rels); err != nil {
		return nil, err
	}
	return rels, nil
}

// Ping checks daemon health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, readError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", url, err)
	}
	return nil
}

// readError extracts the error body for messages, falling back to the
// bare status.
func readError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Sprintf("%s (%s)", e.Error, resp.Status)
	}
	return resp.Status
}
