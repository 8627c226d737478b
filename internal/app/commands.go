package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/domain"
)

// IngestResult reports what a single ingestion call touched.
type IngestResult struct {
	ListingsTouched int `json:"listingsTouched"`
	ReviewsUpserted int `json:"reviewsUpserted"`
}

type IngestionService struct {
	repo  domain.ReviewRepository
	cache domain.Cache
}

func NewIngestionService(repo domain.ReviewRepository, cache domain.Cache) *IngestionService {
	return &IngestionService{repo: repo, cache: cache}
}

// Ingest upserts a batch of normalized reviews. Idempotent: the same
// payload twice yields the same stored state, and re-upserting an
// existing external key never touches id or approved.
//
// The batch is not transactional. A failure partway leaves earlier
// upserts committed; the run is safe to repeat. Per-record failures are
// collected and reported rather than aborting the batch.
func (s *IngestionService) Ingest(ctx context.Context, reviews []domain.NormalizedReview) (IngestResult, error) {
	var res IngestResult
	listingIDs := make(map[string]int64, 4)
	var failed int

	for _, n := range reviews {
		id, ok := listingIDs[n.ListingName]
		if !ok {
			channel := "Hostaway"
			if n.Channel != nil {
				channel = *n.Channel
			}
			l, err := s.repo.UpsertListingByName(ctx, domain.Listing{
				Name:       n.ListingName,
				Channel:    &channel,
				ExternalID: n.ListingExternalID,
			})
			if err != nil {
				return res, fmt.Errorf("upsert listing %q: %w", n.ListingName, err)
			}
			id = l.ID
			listingIDs[n.ListingName] = id
			res.ListingsTouched++
		}

		if err := s.repo.UpsertReviewByExternalKey(ctx, id, n); err != nil {
			failed++
			log.Warn().Err(err).
				Str("external_key", n.ExternalKey()).
				Str("listing", n.ListingName).
				Msg("review upsert failed")
			continue
		}
		res.ReviewsUpserted++
	}

	s.invalidateAggregates(ctx)

	if failed > 0 {
		return res, fmt.Errorf("%d of %d review upserts failed", failed, len(reviews))
	}
	return res, nil
}

// Aggregates are cached whole; any ingest can shift them.
func (s *IngestionService) invalidateAggregates(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, cacheKeySummary)
	_ = s.cache.Del(ctx, cacheKeyListings)
}

/********** approvals **********/

type ModerationService struct {
	repo  domain.ReviewRepository
	cache domain.Cache
}

func NewModerationService(repo domain.ReviewRepository, cache domain.Cache) *ModerationService {
	return &ModerationService{repo: repo, cache: cache}
}

// SetApproval flips the approved flag on a batch of reviews and appends
// one activity entry per actual transition. Re-applying the current
// state is a no-op: nothing is updated and nothing is logged.
func (s *ModerationService) SetApproval(ctx context.Context, ids []int64, approved bool) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids required", domain.ErrValidation)
	}

	before, err := s.repo.GetApprovalStates(ctx, ids)
	if err != nil {
		return 0, err
	}

	var changed []int64
	for _, id := range ids {
		prev, ok := before[id]
		if !ok || prev == approved {
			continue
		}
		changed = append(changed, id)
	}
	if len(changed) == 0 {
		return 0, nil
	}

	if err := s.repo.UpdateApprovalBatch(ctx, changed, approved); err != nil {
		return 0, err
	}

	action := domain.ActionUnapprove
	if approved {
		action = domain.ActionApprove
	}
	entries := make([]domain.ActivityLogEntry, 0, len(changed))
	for _, id := range changed {
		entries = append(entries, domain.ActivityLogEntry{
			ReviewID: id,
			Action:   action,
			Previous: !approved,
			Next:     approved,
		})
	}
	// The approval stands even if the log append fails; the missing
	// entries are a reporting gap, not a correctness violation.
	if err := s.repo.AppendActivityLog(ctx, entries); err != nil {
		log.Error().Err(err).Int("entries", len(entries)).Msg("activity log append failed")
	}

	s.invalidate(ctx)
	return len(changed), nil
}

// AutoApprove approves every unapproved review inside the structural
// filter whose rating clears the stored threshold (or the explicit one,
// whichever is higher) on an eligible channel.
func (s *ModerationService) AutoApprove(ctx context.Context, f domain.ReviewFilter, threshold *float64) (int, error) {
	rules, err := s.repo.GetAutoApprovalRules(ctx)
	if err != nil {
		return 0, err
	}
	min := rules.RatingThreshold
	if threshold != nil && *threshold > min {
		min = *threshold
	}
	if f.RatingMin != nil && *f.RatingMin > min {
		min = *f.RatingMin
	}
	notApproved := false
	f.Approved = &notApproved
	f.RatingMin = &min

	candidates, err := s.repo.FindReviews(ctx, f)
	if err != nil {
		return 0, err
	}

	var ids []int64
	for _, r := range candidates {
		if r.Channel == nil || !containsString(rules.Channels, *r.Channel) {
			continue
		}
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.repo.UpdateApprovalBatch(ctx, ids, true); err != nil {
		return 0, err
	}
	entries := make([]domain.ActivityLogEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, domain.ActivityLogEntry{
			ReviewID: id,
			Action:   domain.ActionAutoApprove,
			Previous: false,
			Next:     true,
		})
	}
	if err := s.repo.AppendActivityLog(ctx, entries); err != nil {
		log.Error().Err(err).Int("entries", len(entries)).Msg("activity log append failed")
	}

	s.invalidate(ctx)
	return len(ids), nil
}

// SaveRules persists the auto-approval config record.
func (s *ModerationService) SaveRules(ctx context.Context, rules domain.AutoApprovalRules) (domain.AutoApprovalRules, error) {
	if rules.RatingThreshold < 0 || rules.RatingThreshold > 10 {
		return rules, fmt.Errorf("%w: ratingThreshold must be within 0..10", domain.ErrValidation)
	}
	if err := s.repo.SaveAutoApprovalRules(ctx, rules); err != nil {
		return rules, err
	}
	return rules, nil
}

// AddResponse records a manager reply to a review. Storage-backed so
// replies survive restarts and extra instances.
func (s *ModerationService) AddResponse(ctx context.Context, reviewID int64, message string) (domain.ManagerResponse, error) {
	if reviewID <= 0 || strings.TrimSpace(message) == "" {
		return domain.ManagerResponse{}, fmt.Errorf("%w: reviewId and message required", domain.ErrValidation)
	}
	return s.repo.InsertManagerResponse(ctx, domain.ManagerResponse{
		ReviewID:  reviewID,
		Message:   strings.TrimSpace(message),
		CreatedAt: time.Now().UTC(),
	})
}

func (s *ModerationService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, cacheKeySummary)
	_ = s.cache.Del(ctx, cacheKeyListings)
}
