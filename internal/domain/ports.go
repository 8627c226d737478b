package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// ReviewFilter is the structural subset of QuerySpec that storage can
// answer with an indexed predicate. Category/keyword/text stages run in
// the engine on the rows this returns.
type ReviewFilter struct {
	ListingID *int64
	Channel   *string
	Channels  []string
	Type      *string
	Status    *string
	Approved  *bool
	RatingMin *float64
	RatingMax *float64
	DateFrom  *time.Time // inclusive bounds
	DateTo    *time.Time
}

// ReviewRepository is the storage collaborator. Upserts are atomic per
// record; a batch is not transactional (ingestion is idempotent and
// re-runnable, so partial failure leaves committed rows in place).
type ReviewRepository interface {
	// Write paths
	UpsertListingByName(ctx context.Context, l Listing) (Listing, error)
	UpsertReviewByExternalKey(ctx context.Context, listingID int64, n NormalizedReview) error
	UpdateApprovalBatch(ctx context.Context, ids []int64, approved bool) error
	AppendActivityLog(ctx context.Context, entries []ActivityLogEntry) error
	InsertManagerResponse(ctx context.Context, r ManagerResponse) (ManagerResponse, error)
	SaveAutoApprovalRules(ctx context.Context, rules AutoApprovalRules) error

	// Read paths
	FindReviews(ctx context.Context, f ReviewFilter) ([]Review, error)
	GetApprovalStates(ctx context.Context, ids []int64) (map[int64]bool, error)
	ListListings(ctx context.Context) ([]Listing, error)
	ListActivity(ctx context.Context, action string, limit, offset int) ([]ActivityLogEntry, error)
	ListManagerResponses(ctx context.Context, reviewID *int64) ([]ManagerResponse, error)
	GetAutoApprovalRules(ctx context.Context) (AutoApprovalRules, error)
}

// PlacesClient fetches guest reviews for a place from the Google Places
// details API. Implementations return ErrDisabled-style typed results
// from their own package when credentials are missing.
type PlacesClient interface {
	FetchReviews(ctx context.Context, placeID string) (PlaceReviews, error)
}

// PlaceReviews is the raw Places payload slice plus the resolved place
// name, which becomes the listing natural key.
type PlaceReviews struct {
	PlaceName string
	Reviews   []map[string]any
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
