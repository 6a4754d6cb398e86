// Command scrobble-ledger mirrors Last.fm scrobble history into PostgreSQL and
// serves listening statistics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-scrobble-ledger/internal/cache"
	"github.com/justestif/go-scrobble-ledger/internal/config"
	"github.com/justestif/go-scrobble-ledger/internal/db"
	"github.com/justestif/go-scrobble-ledger/internal/guilds"
	"github.com/justestif/go-scrobble-ledger/internal/lastfm"
	"github.com/justestif/go-scrobble-ledger/internal/logging"
	"github.com/justestif/go-scrobble-ledger/internal/metrics"
	"github.com/justestif/go-scrobble-ledger/internal/overview"
	"github.com/justestif/go-scrobble-ledger/internal/playtime"
	"github.com/justestif/go-scrobble-ledger/internal/scheduler"
	"github.com/justestif/go-scrobble-ledger/internal/spotify"
	"github.com/justestif/go-scrobble-ledger/internal/streaks"
	"github.com/justestif/go-scrobble-ledger/internal/sync"
	"github.com/justestif/go-scrobble-ledger/internal/tags"
	"github.com/justestif/go-scrobble-ledger/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	var (
		recorder metrics.Recorder = metrics.Noop{}
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewPrometheus(reg)
		gatherer = reg
	}

	store, closeStore, err := newCacheStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer closeStore()
	overviewCache := cache.New(store, cache.WithMetrics(recorder))

	lastfmClient := lastfm.NewClient(&lastfm.Config{APIKey: cfg.LastFM.APIKey})

	var lookup playtime.DurationLookup
	if cfg.Spotify.Enabled() {
		lookup = spotify.NewWithCredentials(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	} else {
		logging.Info().Msg("spotify not configured, listening time uses the default track length")
	}

	tagService := tags.NewService(tags.NewCachedTagFetcher(overviewCache, lastfmClient))

	syncService := sync.New(database.Users(), database.Plays(), lastfmClient, sync.WithMetrics(recorder))
	streakService := streaks.NewService(database.Streaks(), database.Plays(), lastfmClient, streaks.WithMetrics(recorder))
	overviewService := overview.New(database.Plays(), lastfmClient, overviewCache,
		overview.WithGenres(tags.NewGenreService(tagService)),
		overview.WithPlayTime(playtime.New(lookup)),
	)
	guildService := guilds.New(database.Guilds(), overviewCache)

	server := web.NewServer(web.ServerConfig{Addr: cfg.Server.Addr, Gatherer: gatherer}, web.NewHandlers(web.Deps{
		Users:    database.Users(),
		Sync:     syncService,
		Streaks:  streakService,
		Overview: overviewService,
		Guilds:   guildService,
		DB:       database,
	}))

	sched := scheduler.New(database.Users(), syncService, scheduler.Config{
		Interval:    cfg.Scheduler.Interval,
		Concurrency: cfg.Scheduler.Concurrency,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if cfg.Scheduler.Interval > 0 {
		g.Go(func() error {
			if err := sched.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	} else {
		logging.Info().Msg("scheduler disabled")
	}

	return g.Wait()
}

// newCacheStore builds the configured cache backend and its cleanup.
func newCacheStore(cfg config.CacheConfig) (cache.Store, func(), error) {
	switch cfg.Backend {
	case config.CacheRedis:
		store, err := cache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, func() { store.Close() }, nil
	case config.CacheNone:
		return cache.NoopStore{}, func() {}, nil
	default:
		return cache.NewMemoryStore(cfg.SizeMB), func() {}, nil
	}
}
