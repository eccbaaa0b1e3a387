// Package snapshot persists patient schedule snapshots in a read-through
// redis cache keyed by tenant and patient. Stale reads are tolerated;
// expiry is the only invalidation besides an explicit Invalidate.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careflow/scheduling-engine/internal/scheduling"
	"github.com/careflow/scheduling-engine/pkg/logging"
)

// Fetcher loads a patient's schedule live from the vendor. Must be
// idempotent and safe to retry.
type Fetcher func(ctx context.Context, tenantID, patientCode string) (*scheduling.PatientScheduleSnapshot, error)

// Store provides cache-aside persistence for patient schedule snapshots.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewStore creates a snapshot store. ttl bounds how long a cached snapshot
// is trusted.
func NewStore(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{redis: redisClient, ttl: ttl, logger: logger}
}

func (s *Store) key(tenantID, patientCode string) string {
	return fmt.Sprintf("snapshot:%s:%s", tenantID, patientCode)
}

// Cached returns the cached snapshot when present; ok is false on a miss.
func (s *Store) Cached(ctx context.Context, tenantID, patientCode string) (*scheduling.PatientScheduleSnapshot, bool, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID, patientCode)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: get: %w", err)
	}

	var snap scheduling.PatientScheduleSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return &snap, true, nil
}

// Put stores a snapshot under the configured TTL.
func (s *Store) Put(ctx context.Context, tenantID, patientCode string, snap *scheduling.PatientScheduleSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(tenantID, patientCode), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot: set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for a patient.
func (s *Store) Invalidate(ctx context.Context, tenantID, patientCode string) error {
	if err := s.redis.Del(ctx, s.key(tenantID, patientCode)).Err(); err != nil {
		return fmt.Errorf("snapshot: del: %w", err)
	}
	return nil
}

// GetOrFetch returns the cached snapshot or fetches it live and stores it.
// Cache errors degrade to a live fetch; a failed Put is logged, not fatal —
// the next request simply fetches again.
func (s *Store) GetOrFetch(ctx context.Context, tenantID, patientCode string, fetch Fetcher) (*scheduling.PatientScheduleSnapshot, error) {
	snap, ok, err := s.Cached(ctx, tenantID, patientCode)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", "tenant_id", tenantID, "error", err)
	}
	if ok {
		return snap, nil
	}
	if fetch == nil {
		return &scheduling.PatientScheduleSnapshot{}, nil
	}

	snap, err = fetch(ctx, tenantID, patientCode)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = &scheduling.PatientScheduleSnapshot{}
	}
	if err := s.Put(ctx, tenantID, patientCode, snap); err != nil {
		s.logger.Warn("snapshot cache write failed", "tenant_id", tenantID, "error", err)
	}
	return snap, nil
}

// Scoped binds the store to one tenant and fetcher, satisfying
// scheduling.SnapshotSource for a single pipeline invocation.
func (s *Store) Scoped(tenantID string, fetch Fetcher) *Scoped {
	return &Scoped{store: s, tenantID: tenantID, fetch: fetch}
}

// Scoped is a tenant-bound view of the store.
type Scoped struct {
	store    *Store
	tenantID string
	fetch    Fetcher
}

// Cached implements scheduling.SnapshotSource.
func (sc *Scoped) Cached(ctx context.Context, patientCode string) (*scheduling.PatientScheduleSnapshot, bool, error) {
	return sc.store.Cached(ctx, sc.tenantID, patientCode)
}

// Fetch implements scheduling.SnapshotSource: live load plus cache refresh.
func (sc *Scoped) Fetch(ctx context.Context, patientCode string) (*scheduling.PatientScheduleSnapshot, error) {
	if sc.fetch == nil {
		return &scheduling.PatientScheduleSnapshot{}, nil
	}
	snap, err := sc.fetch(ctx, sc.tenantID, patientCode)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = &scheduling.PatientScheduleSnapshot{}
	}
	if err := sc.store.Put(ctx, sc.tenantID, patientCode, snap); err != nil {
		sc.store.logger.Warn("snapshot cache write failed", "tenant_id", sc.tenantID, "error", err)
	}
	return snap, nil
}

// GetOrFetch is the read-through entry point used by the spacing validator.
func (sc *Scoped) GetOrFetch(ctx context.Context, patientCode string) (*scheduling.PatientScheduleSnapshot, error) {
	return sc.store.GetOrFetch(ctx, sc.tenantID, patientCode, sc.fetch)
}
