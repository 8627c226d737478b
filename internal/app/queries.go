package app

import (
	"context"
	"time"

	"flex_reviews/internal/domain"
)

const (
	cacheKeySummary  = "summary:all"
	cacheKeyListings = "listings:all"
)

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// Reviews answers the filter/search/sort/page query. Structural filters
// are pushed down to storage; ranking and post-filters need the full
// filtered set in memory, so the engine materializes it.
func (s *QueryService) Reviews(ctx context.Context, spec domain.QuerySpec) (domain.ReviewsPage, error) {
	rows, err := s.repo.FindReviews(ctx, spec.Structural())
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	return Query(rows, spec), nil
}

// ReviewsUnpaginated backs the export surface with exactly the pipeline
// the interactive view uses, minus the page slice.
func (s *QueryService) ReviewsUnpaginated(ctx context.Context, spec domain.QuerySpec) ([]domain.Review, error) {
	rows, err := s.repo.FindReviews(ctx, spec.Structural())
	if err != nil {
		return nil, err
	}
	return QueryAll(rows, spec), nil
}

// Summary aggregates the filtered set. Only the unfiltered variant is
// cached; filtered summaries are cheap relative to their key space.
func (s *QueryService) Summary(ctx context.Context, spec domain.QuerySpec) (domain.Summary, error) {
	cacheable := s.cache != nil && spec.Unfiltered()
	if cacheable {
		var cached domain.Summary
		if ok, _ := s.cache.Get(ctx, cacheKeySummary, &cached); ok {
			return cached, nil
		}
	}

	rows, err := s.repo.FindReviews(ctx, spec.Structural())
	if err != nil {
		return domain.Summary{}, err
	}
	sum := Aggregate(QueryAll(rows, spec))

	if cacheable {
		_ = s.cache.Set(ctx, cacheKeySummary, sum, int(s.cacheTTL.Seconds()))
	}
	return sum, nil
}

// ListingAggregates builds the per-listing dashboard cards, cached as a
// whole collection.
func (s *QueryService) ListingAggregates(ctx context.Context) ([]domain.ListingAggregate, error) {
	if s.cache != nil {
		var cached []domain.ListingAggregate
		if ok, _ := s.cache.Get(ctx, cacheKeyListings, &cached); ok {
			return cached, nil
		}
	}

	listings, err := s.repo.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ListingAggregate, 0, len(listings))
	for _, l := range listings {
		id := l.ID
		rows, err := s.repo.FindReviews(ctx, domain.ReviewFilter{ListingID: &id})
		if err != nil {
			return nil, err
		}
		out = append(out, AggregateListing(l, rows))
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKeyListings, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// Activity returns the newest-first audit feed with an offset cursor;
// a nil NextOffset means the feed is exhausted.
func (s *QueryService) Activity(ctx context.Context, action string, limit, offset int) (domain.ActivityPage, error) {
	items, err := s.repo.ListActivity(ctx, action, limit, offset)
	if err != nil {
		return domain.ActivityPage{}, err
	}
	page := domain.ActivityPage{Items: items}
	if len(items) == limit {
		next := offset + len(items)
		page.NextOffset = &next
	}
	return page, nil
}

func (s *QueryService) Responses(ctx context.Context, reviewID *int64) ([]domain.ManagerResponse, error) {
	return s.repo.ListManagerResponses(ctx, reviewID)
}

func (s *QueryService) AutoApprovalRules(ctx context.Context) (domain.AutoApprovalRules, error) {
	return s.repo.GetAutoApprovalRules(ctx)
}
