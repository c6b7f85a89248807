package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[text]
	if !ok {
		return []float32{0, 0, 1}, nil
	}
	return vec, nil
}

func newTestStore(t *testing.T, embedder Embedder, opts ...StoreOption) *Store {
	t.Helper()
	base := []StoreOption{WithDeviceIDFunc(func() string { return "device-default" })}
	store, err := NewStore(NewInMemoryRepository(), embedder, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStoreMergesNearDuplicate(t *testing.T) {
	t.Parallel()

	const fact = "Kullanıcı 2 kişilik Deluxe odayı tercih ediyor"
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		fact: {1, 0, 0},
		"Kullanıcı Deluxe oda tercih ediyor, 2 kişilik": {0.99, 0.1, 0},
	}}

	tick := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	store := newTestStore(t, embedder, WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))

	first, err := store.Store(context.Background(), fact, nil, "dev-a")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	second, err := store.Store(context.Background(), "Kullanıcı Deluxe oda tercih ediyor, 2 kişilik", nil, "dev-a")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("near-duplicate inserted as new record: %s != %s", second.ID, first.ID)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Fatalf("merge did not refresh timestamp: %v <= %v", second.Timestamp, first.Timestamp)
	}

	recs, err := store.ListByDevice(context.Background(), "dev-a", 0)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("record count = %d, want 1", len(recs))
	}
	if recs[0].Text != "Kullanıcı Deluxe oda tercih ediyor, 2 kişilik" {
		t.Fatalf("merge kept stale text: %q", recs[0].Text)
	}
}

func TestStoreKeepsDistinctFactsApart(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"Kullanıcının adı Ahmet Aslan": {1, 0, 0},
		"Kullanıcı Malatya'da yaşıyor": {0, 1, 0},
	}}
	store := newTestStore(t, embedder)

	for _, fact := range []string{"Kullanıcının adı Ahmet Aslan", "Kullanıcı Malatya'da yaşıyor"} {
		if _, err := store.Store(context.Background(), fact, nil, "dev-a"); err != nil {
			t.Fatalf("Store(%q) error = %v", fact, err)
		}
	}

	recs, err := store.ListByDevice(context.Background(), "dev-a", 0)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("record count = %d, want 2", len(recs))
	}
}

func TestStoreScopesByDevice(t *testing.T) {
	t.Parallel()

	const fact = "Kullanıcı kahvaltıyı odasında istiyor"
	embedder := &fakeEmbedder{vectors: map[string][]float32{fact: {1, 0, 0}}}
	store := newTestStore(t, embedder)

	if _, err := store.Store(context.Background(), fact, nil, "dev-a"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if _, err := store.Store(context.Background(), fact, nil, "dev-b"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	for _, device := range []string{"dev-a", "dev-b"} {
		recs, err := store.ListByDevice(context.Background(), device, 0)
		if err != nil {
			t.Fatalf("ListByDevice(%s) error = %v", device, err)
		}
		if len(recs) != 1 {
			t.Fatalf("ListByDevice(%s) = %d records, want 1", device, len(recs))
		}
		if recs[0].DeviceID != device {
			t.Fatalf("record leaked across devices: %#v", recs[0])
		}
	}

	found, err := store.Search(context.Background(), fact, 5, "dev-a")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].DeviceID != "dev-a" {
		t.Fatalf("Search() crossed device scope: %#v", found)
	}
}

func TestSearchRanksBySimilarityThenRecency(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query":  {1, 0, 0},
		"close":  {0.9, 0.1, 0},
		"far":    {0, 1, 0},
		"middle": {0.5, 0.5, 0},
	}}

	store := newTestStore(t, embedder)

	for _, text := range []string{"far", "close", "middle"} {
		if _, err := store.Store(context.Background(), text, nil, "dev-a"); err != nil {
			t.Fatalf("Store(%q) error = %v", text, err)
		}
	}

	got, err := store.Search(context.Background(), "query", 2, "dev-a")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search() returned %d records, want 2", len(got))
	}
	if got[0].Text != "close" || got[1].Text != "middle" {
		t.Fatalf("unexpected ranking: %q %q", got[0].Text, got[1].Text)
	}

	none, err := store.Search(context.Background(), "query", 0, "dev-a")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if none != nil {
		t.Fatalf("Search(k=0) = %#v, want nil", none)
	}
}

func TestSearchBreaksScoreTiesByRecency(t *testing.T) {
	t.Parallel()

	repo := NewInMemoryRepository()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"older", "newer"} {
		rec := Record{
			ID:        id,
			DeviceID:  "dev-a",
			Text:      id,
			Embedding: []float32{0, 0, 1},
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Insert(context.Background(), rec); err != nil {
			t.Fatalf("Insert(%s) error = %v", id, err)
		}
	}

	embedder := &fakeEmbedder{vectors: map[string][]float32{"query": {0, 0, 1}}}
	store, err := NewStore(repo, embedder)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	got, err := store.Search(context.Background(), "query", 2, "dev-a")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "newer" {
		t.Fatalf("recency tie-break failed: %#v", got)
	}
}

func TestFindSimilarThresholdBoundary(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"Kullanıcı Deluxe odayı seviyor": {1, 0, 0},
		"Kullanıcı Deluxe odadan memnun": {0.99, 0.1, 0},
		"Kullanıcı havuzlu otel istiyor": {0, 1, 0},
	}}
	store := newTestStore(t, embedder)

	if _, err := store.Store(context.Background(), "Kullanıcı Deluxe odayı seviyor", nil, "dev-a"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	hit, err := store.FindSimilar(context.Background(), "Kullanıcı Deluxe odadan memnun", "dev-a")
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if hit == nil || hit.Text != "Kullanıcı Deluxe odayı seviyor" {
		t.Fatalf("FindSimilar() = %#v, want the stored Deluxe fact", hit)
	}

	miss, err := store.FindSimilar(context.Background(), "Kullanıcı havuzlu otel istiyor", "dev-a")
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if miss != nil {
		t.Fatalf("FindSimilar() = %#v, want nil below threshold", miss)
	}
}

func TestStoreConcurrentSameFactSingleRecord(t *testing.T) {
	t.Parallel()

	const fact = "Kullanıcı 2 kişilik Deluxe odayı tercih ediyor"
	embedder := &fakeEmbedder{vectors: map[string][]float32{fact: {1, 0, 0}}}
	store := newTestStore(t, embedder)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Store(context.Background(), fact, nil, "dev-a"); err != nil {
				t.Errorf("Store() error = %v", err)
			}
		}()
	}
	wg.Wait()

	recs, err := store.ListByDevice(context.Background(), "dev-a", 0)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("record count = %d, want 1", len(recs))
	}
}

func TestStoreEmptyTextRejected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &fakeEmbedder{})
	if _, err := store.Store(context.Background(), "   ", nil, "dev-a"); !errors.Is(err, ErrMemory) {
		t.Fatalf("Store() error = %v, want ErrMemory", err)
	}
}

func TestStoreEmbedderFailurePropagates(t *testing.T) {
	t.Parallel()

	embedFail := errors.New("embedding backend down")
	store := newTestStore(t, &fakeEmbedder{err: embedFail})

	if _, err := store.Store(context.Background(), "some fact", nil, "dev-a"); !errors.Is(err, embedFail) {
		t.Fatalf("Store() error = %v, want wrapped embed failure", err)
	}
	if _, err := store.Search(context.Background(), "some fact", 3, "dev-a"); !errors.Is(err, embedFail) {
		t.Fatalf("Search() error = %v, want wrapped embed failure", err)
	}
}

func TestStoreDefaultsToDeviceIdentity(t *testing.T) {
	t.Parallel()

	const fact = "Kullanıcının adı Aslı Demir"
	embedder := &fakeEmbedder{vectors: map[string][]float32{fact: {1, 0, 0}}}
	store := newTestStore(t, embedder)

	rec, err := store.Store(context.Background(), fact, nil, "")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if rec.DeviceID != "device-default" {
		t.Fatalf("DeviceID = %q, want resolver default", rec.DeviceID)
	}
}
