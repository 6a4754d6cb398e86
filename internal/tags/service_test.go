package tags

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
)

// mockFetcher implements TagFetcher for testing.
type mockFetcher struct {
	// tags maps artist to tags
	tags map[string][]lastfm.Tag
	// errors maps artist to errors
	errors map[string]error
	// callCount tracks number of ArtistTags calls
	callCount atomic.Int32
	// delay simulates network latency
	delay time.Duration
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		tags:   make(map[string][]lastfm.Tag),
		errors: make(map[string]error),
	}
}

func (m *mockFetcher) ArtistTags(ctx context.Context, artist string) ([]lastfm.Tag, error) {
	m.callCount.Add(1)

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := m.errors[artist]; ok {
		return nil, err
	}
	if tags, ok := m.tags[artist]; ok {
		return tags, nil
	}
	return []lastfm.Tag{}, nil
}

func TestFetchTagsForArtists_Empty(t *testing.T) {
	svc := NewService(newMockFetcher())

	results, err := svc.FetchTagsForArtists(context.Background(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}

func TestFetchTagsForArtists_SingleArtist(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.tags["Radiohead"] = []lastfm.Tag{
		{Name: "rock", Count: 100},
		{Name: "alternative", Count: 80},
	}

	results, err := NewService(fetcher).FetchTagsForArtists(context.Background(), []string{"Radiohead"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Artist != "Radiohead" {
		t.Errorf("expected artist 'Radiohead', got %q", r.Artist)
	}
	if len(r.Tags) != 2 {
		t.Errorf("expected 2 tags, got %d", len(r.Tags))
	}
	if r.Error != nil {
		t.Errorf("unexpected error: %v", r.Error)
	}
}

func TestFetchTagsForArtists_PreservesOrder(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.tags["Radiohead"] = []lastfm.Tag{{Name: "rock", Count: 100}}
	fetcher.tags["Daft Punk"] = []lastfm.Tag{{Name: "electronic", Count: 90}}
	fetcher.tags["Adele"] = []lastfm.Tag{{Name: "pop", Count: 85}}

	svc := NewService(fetcher, WithConcurrency(2))
	results, err := svc.FetchTagsForArtists(context.Background(), []string{"Radiohead", "Daft Punk", "Adele"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"rock", "electronic", "pop"}
	for i, tagName := range expected {
		if len(results[i].Tags) == 0 || results[i].Tags[0].Name != tagName {
			t.Errorf("result[%d]: expected tag %q, got %v", i, tagName, results[i].Tags)
		}
	}
}

func TestFetchTagsForArtists_IndividualErrors(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.tags["Good Artist"] = []lastfm.Tag{{Name: "rock", Count: 100}}
	fetcher.errors["Bad Artist"] = errors.New("API error")

	results, err := NewService(fetcher).FetchTagsForArtists(context.Background(), []string{"Good Artist", "Bad Artist"})
	// Batch should not fail even if individual artists fail
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}

	if results[0].Error != nil {
		t.Errorf("expected no error for first artist, got %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error for second artist, got nil")
	}
	if len(results[1].Tags) != 0 {
		t.Errorf("expected empty tags for failed artist, got %d", len(results[1].Tags))
	}
}

func TestFetchTagsForArtists_ContextCancellation(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.delay = 100 * time.Millisecond

	svc := NewService(fetcher, WithConcurrency(2))
	artists := make([]string, 10)
	for i := range artists {
		artists[i] = "Artist"
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	results, err := svc.FetchTagsForArtists(ctx, artists)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got %v", err)
	}
	if len(results) != 10 {
		t.Errorf("expected 10 results, got %d", len(results))
	}
}

func TestFetchTagsForArtists_Concurrency(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.delay = 10 * time.Millisecond

	artists := make([]string, 20)
	for i := range artists {
		artists[i] = "Artist"
	}

	svc := NewService(fetcher, WithConcurrency(10))

	start := time.Now()
	if _, err := svc.FetchTagsForArtists(context.Background(), artists); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	// Sequential would take 200ms
	if elapsed > 100*time.Millisecond {
		t.Errorf("expected concurrent execution, took %v", elapsed)
	}
	if fetcher.callCount.Load() != 20 {
		t.Errorf("expected 20 calls, got %d", fetcher.callCount.Load())
	}
}

func TestWithConcurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"positive value", 10, 10},
		{"zero uses default", 0, DefaultConcurrency},
		{"negative uses default", -1, DefaultConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMockFetcher(), WithConcurrency(tt.input))
			if svc.concurrency != tt.expected {
				t.Errorf("expected concurrency %d, got %d", tt.expected, svc.concurrency)
			}
		})
	}
}
