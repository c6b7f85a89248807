// Package memory stores device-scoped conversational facts, deduplicated by
// embedding similarity: a new fact either merges into its nearest neighbour
// above the merge threshold or is inserted as a new record.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	devicex "github.com/hoteldesk/concierge/agent/device"
)

var ErrMemory = errors.New("memory operation failed")

// DefaultMergeThreshold is the cosine similarity above which two facts are
// treated as the same fact restated. A policy constant, not a tuned value;
// override it with WithMergeThreshold.
const DefaultMergeThreshold = 0.92

type StoreOption func(*Store)

func WithMergeThreshold(threshold float64) StoreOption {
	return func(s *Store) {
		if threshold > 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// WithDeviceIDFunc overrides how the current device identity is resolved when
// a caller omits the device id. Tests use this to avoid hashing real hardware.
func WithDeviceIDFunc(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.deviceID = fn
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the semantic layer over a Repository: it embeds, deduplicates and
// ranks. Safe for concurrent use; writes are serialized per device so two
// concurrent stores of the same fact cannot both decide to insert.
type Store struct {
	repo      Repository
	embedder  Embedder
	threshold float64
	deviceID  func() string
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(repo Repository, embedder Embedder, opts ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: repository is required", ErrMemory)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrMemory)
	}

	s := &Store{
		repo:      repo,
		embedder:  embedder,
		threshold: DefaultMergeThreshold,
		deviceID:  devicex.ID,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Store persists text for the device. When an existing record for the same
// device is at least MergeThreshold similar, that record is rewritten in
// place (same id, fresh text/metadata/timestamp) instead of inserting a
// duplicate. The returned record reflects what was written.
func (s *Store) Store(ctx context.Context, text string, metadata map[string]any, deviceID string) (*Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrMemory)
	}
	deviceID = s.resolveDevice(deviceID)

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	lock := s.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	nearest, err := s.nearest(ctx, deviceID, vec)
	if err != nil {
		return nil, err
	}

	if nearest != nil && nearest.Score >= s.threshold {
		merged := *nearest
		merged.Text = text
		merged.Embedding = vec
		merged.Metadata = metadata
		merged.Timestamp = s.now().UTC()
		if err := s.repo.Update(ctx, merged); err != nil {
			return nil, err
		}
		log.Debug().
			Str("device", shortDevice(deviceID)).
			Str("record", merged.ID).
			Msg("merged memory into existing record")
		return &merged, nil
	}

	rec := Record{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Text:      text,
		Embedding: vec,
		Metadata:  metadata,
		Timestamp: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}
	log.Debug().
		Str("device", shortDevice(deviceID)).
		Str("record", rec.ID).
		Msg("stored new memory")
	return &rec, nil
}

// FindSimilar returns the single nearest record at or above the merge
// threshold, or nil when none qualifies.
func (s *Store) FindSimilar(ctx context.Context, text string, deviceID string) (*Record, error) {
	deviceID = s.resolveDevice(deviceID)

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	nearest, err := s.nearest(ctx, deviceID, vec)
	if err != nil {
		return nil, err
	}
	if nearest == nil || nearest.Score < s.threshold {
		return nil, nil
	}
	return nearest, nil
}

// Search returns up to k records ranked by descending similarity to query,
// ties broken by most recent timestamp. It never mutates stored state.
func (s *Store) Search(ctx context.Context, query string, k int, deviceID string) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}
	deviceID = s.resolveDevice(deviceID)

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	recs, err := s.repo.ListByDevice(ctx, deviceID, 0)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].Score = cosineSimilarity(vec, recs[i].Embedding)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
	if len(recs) > k {
		recs = recs[:k]
	}
	return recs, nil
}

// ListByDevice returns up to limit records for a device, newest first.
func (s *Store) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	return s.repo.ListByDevice(ctx, s.resolveDevice(deviceID), limit)
}

func (s *Store) resolveDevice(deviceID string) string {
	if strings.TrimSpace(deviceID) == "" {
		return s.deviceID()
	}
	return deviceID
}

func (s *Store) deviceLock(deviceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[deviceID] = lock
	}
	return lock
}

func (s *Store) nearest(ctx context.Context, deviceID string, vec []float32) (*Record, error) {
	recs, err := s.repo.ListByDevice(ctx, deviceID, 0)
	if err != nil {
		return nil, err
	}

	var best *Record
	for i := range recs {
		recs[i].Score = cosineSimilarity(vec, recs[i].Embedding)
		if best == nil || recs[i].Score > best.Score {
			best = &recs[i]
		}
	}
	return best, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func shortDevice(deviceID string) string {
	if len(deviceID) > 8 {
		return deviceID[:8]
	}
	return deviceID
}
