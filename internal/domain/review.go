package domain

import "time"

// Source identifies the provider a review was ingested from.
type Source string

const (
	SourceHostaway Source = "hostaway"
	SourceGoogle   Source = "google"
	SourceManual   Source = "manual"
)

// Rating categories the dashboard renders with dedicated labels.
// Providers may send other keys; aggregation keys maps by whatever
// string arrives and anything unrecognized surfaces as "other".
const (
	CategoryCleanliness   = "cleanliness"
	CategoryCommunication = "communication"
	CategoryLocation      = "location"
	CategoryValue         = "value"
	CategoryCheckin       = "checkin"
	CategoryAccuracy      = "accuracy"
	CategoryOther         = "other"
)

// NormalizedReview is the provider-agnostic record produced by the
// normalizers. Ratings are on a 0..10 scale or nil. Transient: it only
// exists between normalization and upsert.
type NormalizedReview struct {
	Source            Source
	SourceReviewID    *string
	ListingName       string
	ListingExternalID *string
	Type              *string
	Status            *string
	RatingOverall     *float64
	RatingItems       map[string]float64
	PublicText        *string
	SubmittedAt       *time.Time
	AuthorName        *string
	Channel           *string
}

// ExternalKey is the idempotency key for review upserts: "source:id".
// A record without a provider id collapses to "source:", so later such
// records overwrite earlier ones; providers are expected to send ids.
func (n NormalizedReview) ExternalKey() string {
	id := ""
	if n.SourceReviewID != nil {
		id = *n.SourceReviewID
	}
	return string(n.Source) + ":" + id
}

// Review is the persisted entity. ListingName is denormalized onto the
// read model by the repository join; it is not a stored column.
type Review struct {
	ID             int64
	ListingID      int64
	ListingName    string
	Source         Source
	SourceReviewID *string
	ExternalKey    string
	Type           *string
	Status         *string
	Channel        *string
	RatingOverall  *float64
	RatingItems    map[string]float64
	PublicText     *string
	SubmittedAt    *time.Time
	AuthorName     *string
	Approved       bool
}

type Listing struct {
	ID         int64
	Name       string
	Channel    *string
	ExternalID *string
}

// Activity log actions. Entries are append-only, one per actual
// approval transition.
const (
	ActionApprove     = "approve"
	ActionUnapprove   = "unapprove"
	ActionAutoApprove = "auto-approve"
)

type ActivityLogEntry struct {
	ID          int64
	ReviewID    int64
	ListingName string
	Action      string
	Previous    bool
	Next        bool
	CreatedAt   time.Time
}

type ManagerResponse struct {
	ID        int64
	ReviewID  int64
	Message   string
	CreatedAt time.Time
}

// AutoApprovalRules is a single storage-backed record; runtime config,
// not a deploy-time env var.
type AutoApprovalRules struct {
	RatingThreshold float64  `json:"ratingThreshold"`
	Channels        []string `json:"channels"`
}

func DefaultAutoApprovalRules() AutoApprovalRules {
	return AutoApprovalRules{
		RatingThreshold: 8,
		Channels:        []string{"Airbnb", "Booking", "Google", "Hostaway"},
	}
}
