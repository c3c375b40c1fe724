package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/zkb-tools/zkbinfo/pkg/client"
	"github.com/zkb-tools/zkbinfo/pkg/killmail"
)

const (
	defaultHistoryEndpoint = "https://zkillboard.com/api/history"
	defaultESIEndpoint     = "https://esi.evetech.net/latest/killmails"
)

// Report summarizes one reconciliation run.
type Report struct {
	Published int // ids zkillboard lists for the day
	Stored    int // ids the daemon already had
	Fetched   int // missing killmails saved this run
	Failed    int // missing killmails that could not be fetched or saved
}

// Fetcher diffs a day's published killmails against the daemon and
// backfills the gap from ESI.
type Fetcher struct {
	api             *client.Client
	http            *http.Client
	historyEndpoint string
	esiEndpoint     string
}

func NewFetcher(api *client.Client) *Fetcher {
	return &Fetcher{
		api:             api,
		http:            &http.Client{Timeout: 30 * time.Second},
		historyEndpoint: defaultHistoryEndpoint,
		esiEndpoint:     defaultESIEndpoint,
	}
}

// Reconcile runs the full diff-and-backfill for one calendar day.
func (f *Fetcher) Reconcile(ctx context.Context, day time.Time) (*Report, error) {
	published, err := f.history(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("fetch zkillboard history: %w", err)
	}

	stored, err := f.api.IDsForDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("fetch stored ids: %w", err)
	}
	have := make(map[int64]bool, len(stored))
	for _, id := range stored {
		have[id] = true
	}

	report := &Report{Published: len(published), Stored: len(stored)}
	for id, hash := range published {
		if have[id] {
			continue
		}
		km, err := f.fetchKillmail(ctx, id, hash)
		if err != nil {
			log.Printf("failed to fetch killmail %d: %v", id, err)
			report.Failed++
			continue
		}
		if err := f.api.Save(ctx, km); err != nil {
			log.Printf("failed to save killmail %d: %v", id, err)
			report.Failed++
			continue
		}
		report.Fetched++
	}
	return report, nil
}

// history returns the id -> hash map zkillboard publishes for a day.
func (f *Fetcher) history(ctx context.Context, day time.Time) (map[int64]string, error) {
	url := fmt.Sprintf("%s/%s.json", f.historyEndpoint, day.UTC().Format("20060102"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	var published map[int64]string
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return published, nil
}

// fetchKillmail pulls one killmail from ESI by id and hash.
func (f *Fetcher) fetchKillmail(ctx context.Context, id int64, hash string) (*killmail.Killmail, error) {
	url := fmt.Sprintf("%s/%d/%s/", f.esiEndpoint, id, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return killmail.Decode(body)
}
