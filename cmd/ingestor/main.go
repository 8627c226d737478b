package main

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"flex_reviews/internal/adapters/google"
	"flex_reviews/internal/adapters/hostaway"
	"flex_reviews/internal/adapters/observability"
	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/app"
	"flex_reviews/internal/shared"
	mysqlrepo "flex_reviews/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("hostaway_export", cfg.HostawayPath).
		Int("google_places", len(cfg.GooglePlaces)).
		Int("workers", cfg.Workers).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	ing := app.NewIngestionService(repo, cache)

	ingestHostaway(ctx, ing, cfg.HostawayPath)
	ingestGoogle(ctx, ing, cfg)

	log.Info().Msg("ingestion completed")
}

func ingestHostaway(ctx context.Context, ing *app.IngestionService, path string) {
	raw, err := hostaway.LoadExport(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("hostaway export unavailable, skipping")
		return
	}
	res, err := ing.Ingest(ctx, app.NormalizeHostaway(raw))
	if err != nil {
		log.Warn().Err(err).Msg("hostaway ingest finished with failures")
	}
	observability.ObserveIngest("hostaway", res.ReviewsUpserted)
	log.Info().
		Int("listings", res.ListingsTouched).
		Int("reviews", res.ReviewsUpserted).
		Msg("hostaway ingest ok")
}

func ingestGoogle(ctx context.Context, ing *app.IngestionService, cfg shared.Config) {
	client := google.New(cfg.GoogleBase, cfg.GoogleKey, cfg.GoogleRPS)
	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, id := range cfg.GooglePlaces {
		id := id

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(placeID string) {
			defer wg.Done()
			defer sem.Release(int64(1))

			place, err := client.FetchReviews(ctx, placeID)
			if err != nil {
				if errors.Is(err, google.ErrDisabled) {
					log.Info().Str("place", placeID).Msg("google ingestion disabled")
					return
				}
				log.Warn().Str("place", placeID).Err(err).Msg("google fetch failed")
				return
			}
			res, err := ing.Ingest(ctx, app.NormalizeGoogle(place.PlaceName, place.Reviews))
			if err != nil {
				log.Warn().Str("place", placeID).Err(err).Msg("google ingest finished with failures")
				return
			}
			observability.ObserveIngest("google", res.ReviewsUpserted)
			log.Info().Str("place", placeID).Int("reviews", res.ReviewsUpserted).Msg("google ingest ok")
		}(id)
	}

	wg.Wait()
}
