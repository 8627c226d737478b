package domain

import "time"

// Sort keys accepted by the query engine. Empty means "engine default":
// relevance when a text search ran, otherwise date descending.
const (
	SortByDate    = "date"
	SortByRating  = "rating"
	SortByListing = "listing"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// QuerySpec is the single validated filter/search/sort/page structure
// built once at the HTTP boundary and passed by value into the engine.
// Nil pointer fields mean "not filtered".
type QuerySpec struct {
	ListingID   *int64
	Channel     *string
	Channels    []string
	Type        *string
	Status      *string
	Approved    *bool
	RatingMin   *float64
	RatingMax   *float64
	DateFrom    *time.Time
	DateTo      *time.Time
	Categories  []string
	CategoryMin *float64
	Keywords    []string
	SearchText  string
	SortBy      string
	SortDir     string
	Page        int
	PerPage     int
}

// StructuralOnly reports whether the query can be answered entirely by an
// indexed storage predicate, with no in-memory ranking or post-filtering.
func (q QuerySpec) StructuralOnly() bool {
	return q.SearchText == "" && len(q.Categories) == 0 && len(q.Keywords) == 0
}

// Unfiltered reports whether the query selects the entire collection.
// Sort and pagination are ignored: they do not change aggregates.
func (q QuerySpec) Unfiltered() bool {
	return q.StructuralOnly() &&
		q.ListingID == nil && q.Channel == nil && len(q.Channels) == 0 &&
		q.Type == nil && q.Status == nil && q.Approved == nil &&
		q.RatingMin == nil && q.RatingMax == nil &&
		q.DateFrom == nil && q.DateTo == nil
}

// Structural extracts the part of the query storage can push down.
func (q QuerySpec) Structural() ReviewFilter {
	return ReviewFilter{
		ListingID: q.ListingID,
		Channel:   q.Channel,
		Channels:  q.Channels,
		Type:      q.Type,
		Status:    q.Status,
		Approved:  q.Approved,
		RatingMin: q.RatingMin,
		RatingMax: q.RatingMax,
		DateFrom:  q.DateFrom,
		DateTo:    q.DateTo,
	}
}

// ReviewsPage is the engine's paginated result. Total counts the full
// filtered+ranked set before the page slice was taken.
type ReviewsPage struct {
	Page    int
	PerPage int
	Total   int
	Items   []Review
}

type MonthAvg struct {
	Month string  `json:"month"`
	Avg   float64 `json:"avg"`
}

type MonthSentiment struct {
	Month    string `json:"month"`
	Positive int    `json:"positive"`
	Neutral  int    `json:"neutral"`
	Negative int    `json:"negative"`
}

// Summary is the aggregation result for a filtered set of reviews.
type Summary struct {
	Totals struct {
		Total    int `json:"total"`
		Approved int `json:"approved"`
	} `json:"totals"`
	Averages struct {
		All      *float64 `json:"all"`
		Approved *float64 `json:"approved"`
	} `json:"averages"`
	ByChannel        map[string]int     `json:"byChannel"`
	ByType           map[string]int     `json:"byType"`
	Trend            []MonthAvg         `json:"trend"`
	SentimentHistory []MonthSentiment   `json:"sentimentHistory"`
	CategoryAverages map[string]float64 `json:"categoryAverages"`
	// WorstCategories: global insight, category averages below 6,
	// ascending, top 5, no occurrence floor.
	WorstCategories []string `json:"topIssues"`
	// RecurringIssues: per-listing card variant, occurrence >= 2,
	// ascending average, top 3.
	RecurringIssues  []string       `json:"recurringIssues"`
	KeywordFrequency map[string]int `json:"keywordFrequency"`
}

// ListingAggregate backs the per-listing dashboard cards.
type ListingAggregate struct {
	ListingID         int64          `json:"listingId"`
	ListingName       string         `json:"listingName"`
	AvgRatingAll      *float64       `json:"avgRatingAll"`
	AvgRatingApproved *float64       `json:"avgRatingApproved"`
	Total             int            `json:"total"`
	Approved          int            `json:"approved"`
	ByChannel         map[string]int `json:"byChannel"`
	ByType            map[string]int `json:"byType"`
	RecentIssues      []string       `json:"recentIssues"`
}

type ActivityPage struct {
	Items      []ActivityLogEntry
	NextOffset *int
}
