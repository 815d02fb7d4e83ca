// Package reputation maintains the denylist/allowlist address sets used by
// the addressPoisoning check. The current sets live in an immutable snapshot
// that is atomically replaced on refresh, so membership queries are
// synchronous, non-blocking and never observe a half-updated state.
package reputation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/metrics"
	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// Source fetches the raw reputation lists from wherever they are curated.
type Source interface {
	FetchDenylist(ctx context.Context) ([]models.AddressEntry, error)
	FetchAllowlist(ctx context.Context) ([]models.AddressEntry, error)
}

// Snapshot is one immutable generation of the reputation sets. Addresses
// are stored lowercased.
type Snapshot struct {
	denylist   map[string]struct{}
	allowlist  map[string]struct{}
	LastUpdate time.Time
}

// Cache holds the current snapshot and refreshes it from a Source. A Cache
// with no committed snapshot answers false to every membership query; the
// caller of the first Refresh decides whether that state is acceptable.
type Cache struct {
	source Source
	snap   atomic.Pointer[Snapshot]
}

// New builds a cache around the given source. No fetch happens here; call
// Refresh before serving queries.
func New(source Source) *Cache {
	return &Cache{source: source}
}

// Refresh fetches both lists and commits a new snapshot. On any failure the
// previously committed snapshot stays in place untouched and the error is
// returned: fatal for the very first load, recoverable afterwards.
func (c *Cache) Refresh(ctx context.Context) error {
	deny, err := c.source.FetchDenylist(ctx)
	if err != nil {
		metrics.ReputationRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("denylist fetch: %w", err)
	}
	allow, err := c.source.FetchAllowlist(ctx)
	if err != nil {
		metrics.ReputationRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("allowlist fetch: %w", err)
	}

	snap := &Snapshot{
		denylist:   normalize(deny),
		allowlist:  normalize(allow),
		LastUpdate: time.Now(),
	}
	c.snap.Store(snap)

	metrics.ReputationRefreshes.WithLabelValues("success").Inc()
	metrics.ReputationSetSize.WithLabelValues("denylist").Set(float64(len(snap.denylist)))
	metrics.ReputationSetSize.WithLabelValues("allowlist").Set(float64(len(snap.allowlist)))
	metrics.ReputationLastRefresh.Set(float64(snap.LastUpdate.Unix()))
	log.Printf("reputation: refreshed lists (denylist=%d allowlist=%d)", len(snap.denylist), len(snap.allowlist))
	return nil
}

// Start runs periodic refreshes until ctx is cancelled. Failures after the
// initial load are logged and absorbed; the last good snapshot keeps
// serving. Runs in its own goroutine, decoupled from evaluation.
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = models.DefaultRefreshInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshCtx, cancel := context.WithTimeout(ctx, models.HTTPClientTimeout)
				if err := c.Refresh(refreshCtx); err != nil {
					log.Printf("reputation: refresh failed, keeping previous snapshot: %v", err)
				}
				cancel()
			}
		}
	}()
}

// IsDenylisted reports whether address is in the current denylist.
// Comparison is case-insensitive. False when no snapshot is committed.
func (c *Cache) IsDenylisted(address string) bool {
	snap := c.snap.Load()
	if snap == nil {
		return false
	}
	_, ok := snap.denylist[strings.ToLower(address)]
	return ok
}

// IsAllowlisted reports whether address is in the current allowlist.
func (c *Cache) IsAllowlisted(address string) bool {
	snap := c.snap.Load()
	if snap == nil {
		return false
	}
	_, ok := snap.allowlist[strings.ToLower(address)]
	return ok
}

// LastUpdate returns the commit time of the current snapshot, zero when no
// snapshot exists yet.
func (c *Cache) LastUpdate() time.Time {
	snap := c.snap.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.LastUpdate
}

// Sizes returns the entry counts of the current snapshot.
func (c *Cache) Sizes() (denylist, allowlist int) {
	snap := c.snap.Load()
	if snap == nil {
		return 0, 0
	}
	return len(snap.denylist), len(snap.allowlist)
}

func normalize(entries []models.AddressEntry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		addr := strings.ToLower(strings.TrimSpace(e.Address))
		if addr == "" {
			continue
		}
		set[addr] = struct{}{}
	}
	return set
}
