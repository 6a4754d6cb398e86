package tags

import (
	"context"
	"slices"

	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/rank"
)

const (
	// DefaultGenreCount is how many genres TopGenres returns.
	DefaultGenreCount = 3

	// maxArtists bounds how many of the most played artists are looked up.
	maxArtists = 10
	// tagsPerArtist is how many of an artist's top tags count toward genres.
	tagsPerArtist = 5
)

// GenreService derives genre labels from listening history.
type GenreService struct {
	tags *Service
}

// NewGenreService creates a GenreService backed by tags.
func NewGenreService(tags *Service) *GenreService {
	return &GenreService{tags: tags}
}

// TopGenres returns the genres of the most played artists in plays, weighted
// by each artist's playcount. Artists whose tags cannot be fetched are skipped.
func (g *GenreService) TopGenres(ctx context.Context, plays []db.Play) ([]string, error) {
	artists := rank.TopArtists(plays, rank.Options{Metric: rank.Playcount, Limit: maxArtists})
	if len(artists) == 0 {
		return []string{}, nil
	}

	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}

	results, err := g.tags.FetchTagsForArtists(ctx, names)
	if err != nil {
		return nil, err
	}

	type genre struct {
		key   rank.Key
		score int
	}
	byName := make(map[string]*genre)
	var genres []*genre

	for i, r := range results {
		if r.Error != nil {
			continue
		}
		for _, tag := range r.Tags[:min(len(r.Tags), tagsPerArtist)] {
			key := rank.NewKey(tag.Name)
			gen, ok := byName[key.Normalized]
			if !ok {
				gen = &genre{key: key}
				byName[key.Normalized] = gen
				genres = append(genres, gen)
			}
			gen.score += artists[i].TotalPlaycount
		}
	}

	slices.SortStableFunc(genres, func(a, b *genre) int {
		return b.score - a.score
	})

	top := make([]string, 0, DefaultGenreCount)
	for _, gen := range genres[:min(len(genres), DefaultGenreCount)] {
		top = append(top, gen.key.Display)
	}
	return top, nil
}
