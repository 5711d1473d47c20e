package homeassistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

//go:generate mockgen -source=sync.go -destination=../mocks/homeassistant/mock_pending.go -package=mock_homeassistant PendingSource

// PendingSource lists the shopping items not bought yet.
type PendingSource interface {
	PendingNames(ctx context.Context) ([]string, error)
}

type SyncResult struct {
	Synced []string
	Failed []ItemResult
}

type Syncer struct {
	client  *Client
	pending PendingSource
}

func NewSyncer(client *Client, pending PendingSource) *Syncer {
	return &Syncer{client: client, pending: pending}
}

// Sync pushes names to Home Assistant, or every pending item when names is empty.
func (s *Syncer) Sync(ctx context.Context, names []string) (*SyncResult, error) {
	if !s.client.Configured() {
		return nil, ErrNotConfigured
	}

	names = clean(names)
	if len(names) == 0 {
		pending, err := s.pending.PendingNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pending items: %w", err)
		}
		names = clean(pending)
	}

	result := &SyncResult{Synced: []string{}, Failed: []ItemResult{}}
	for _, r := range s.client.AddItems(ctx, names) {
		if r.Err != nil {
			result.Failed = append(result.Failed, r)
			continue
		}
		result.Synced = append(result.Synced, r.Name)
	}
	slog.Default().Info("synced shopping list to home assistant",
		"synced", len(result.Synced), "failed", len(result.Failed))
	return result, nil
}

func clean(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
