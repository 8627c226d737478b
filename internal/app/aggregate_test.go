package app_test

import (
	"reflect"
	"testing"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

func TestAggregate_TotalsAndAverages(t *testing.T) {
	s := app.Aggregate(fixtureReviews())

	if s.Totals.Total != 5 || s.Totals.Approved != 1 {
		t.Fatalf("totals: %+v", s.Totals)
	}
	// rated: 9, 6, 4, 8 -> 6.75
	if s.Averages.All == nil || *s.Averages.All != 6.75 {
		t.Fatalf("avg all: %v", s.Averages.All)
	}
	if s.Averages.Approved == nil || *s.Averages.Approved != 9 {
		t.Fatalf("avg approved: %v", s.Averages.Approved)
	}
	if s.ByChannel["Airbnb"] != 2 || s.ByChannel["Google"] != 1 {
		t.Fatalf("byChannel: %v", s.ByChannel)
	}
	if s.ByType["guest-to-host"] != 4 || s.ByType["host-to-guest"] != 1 {
		t.Fatalf("byType: %v", s.ByType)
	}
}

func TestAggregate_EmptySet(t *testing.T) {
	s := app.Aggregate(nil)
	if s.Totals.Total != 0 || s.Averages.All != nil || s.Averages.Approved != nil {
		t.Fatalf("empty aggregate: %+v", s)
	}
	if len(s.Trend) != 0 || len(s.WorstCategories) != 0 {
		t.Fatalf("empty aggregate slices: %+v", s)
	}
}

func TestAggregate_MissingFieldsBucketed(t *testing.T) {
	s := app.Aggregate([]domain.Review{{ID: 1}})
	if s.ByChannel["Unknown"] != 1 || s.ByType["unknown"] != 1 {
		t.Fatalf("missing channel/type buckets: %v %v", s.ByChannel, s.ByType)
	}
}

func TestAggregate_TrendSortedByMonth(t *testing.T) {
	s := app.Aggregate(fixtureReviews())
	// every dated review here is 2024-03
	if len(s.Trend) != 1 || s.Trend[0].Month != "2024-03" {
		t.Fatalf("trend: %+v", s.Trend)
	}
	// rated and dated: 9, 6, 4, 8 -> 6.75
	if s.Trend[0].Avg != 6.75 {
		t.Fatalf("trend avg: %v", s.Trend[0].Avg)
	}
}

func TestAggregate_SentimentHistoryPercentages(t *testing.T) {
	s := app.Aggregate(fixtureReviews())
	if len(s.SentimentHistory) != 1 {
		t.Fatalf("history: %+v", s.SentimentHistory)
	}
	m := s.SentimentHistory[0]
	if m.Positive+m.Neutral+m.Negative < 99 || m.Positive+m.Neutral+m.Negative > 101 {
		t.Fatalf("percentages should sum to ~100: %+v", m)
	}
}

func TestAggregate_WorstCategoriesAndRecurringIssues(t *testing.T) {
	s := app.Aggregate(fixtureReviews())

	// cleanliness averages (9+5+5)/3 = 6.33, above the low bar;
	// location averages 10. Nothing qualifies as globally low here.
	if len(s.WorstCategories) != 0 {
		t.Fatalf("worst categories: %v", s.WorstCategories)
	}

	low := []domain.Review{
		{ID: 1, RatingItems: map[string]float64{"cleanliness": 5, "location": 9}},
		{ID: 2, RatingItems: map[string]float64{"cleanliness": 5}},
		{ID: 3, RatingItems: map[string]float64{"value": 4}},
	}
	s = app.Aggregate(low)
	// cleanliness avg 5 and value avg 4 are both low, worst first
	if !reflect.DeepEqual(s.WorstCategories, []string{"value", "cleanliness"}) {
		t.Fatalf("worst categories: %v", s.WorstCategories)
	}
	// recurring needs two reports: cleanliness only
	if !reflect.DeepEqual(s.RecurringIssues, []string{"cleanliness"}) {
		t.Fatalf("recurring issues: %v", s.RecurringIssues)
	}
	if !reflect.DeepEqual(app.RecurringIssues(low), []string{"cleanliness"}) {
		t.Fatalf("standalone recurring issues disagree")
	}
}

func TestAggregate_KeywordFrequencySkipsStopWords(t *testing.T) {
	s := app.Aggregate([]domain.Review{
		{ID: 1, PublicText: ptr("The wifi was slow, wifi dropped")},
		{ID: 2, PublicText: ptr("slow checkin")},
	})
	if s.KeywordFrequency["wifi"] != 2 || s.KeywordFrequency["slow"] != 2 {
		t.Fatalf("keyword counts: %v", s.KeywordFrequency)
	}
	if _, ok := s.KeywordFrequency["the"]; ok {
		t.Fatalf("stop word leaked into frequencies")
	}
}

func TestAggregateListing(t *testing.T) {
	l := domain.Listing{ID: 3, Name: "Camden Loft"}
	reviews := []domain.Review{
		{ID: 1, ListingID: 3, RatingOverall: pfloat(9), Approved: true,
			Channel: ptr("Airbnb"), Type: ptr("guest-to-host"),
			RatingItems: map[string]float64{"cleanliness": 5}},
		{ID: 2, ListingID: 3, RatingOverall: pfloat(5),
			Channel:     ptr("Airbnb"), Type: ptr("guest-to-host"),
			RatingItems: map[string]float64{"cleanliness": 5}},
	}
	agg := app.AggregateListing(l, reviews)

	if agg.ListingID != 3 || agg.ListingName != "Camden Loft" {
		t.Fatalf("identity: %+v", agg)
	}
	if agg.Total != 2 || agg.Approved != 1 {
		t.Fatalf("counts: %+v", agg)
	}
	if agg.AvgRatingAll == nil || *agg.AvgRatingAll != 7 {
		t.Fatalf("avg all: %v", agg.AvgRatingAll)
	}
	if agg.AvgRatingApproved == nil || *agg.AvgRatingApproved != 9 {
		t.Fatalf("avg approved: %v", agg.AvgRatingApproved)
	}
	if agg.ByChannel["Airbnb"] != 2 {
		t.Fatalf("byChannel: %v", agg.ByChannel)
	}
	if !reflect.DeepEqual(agg.RecentIssues, []string{"cleanliness"}) {
		t.Fatalf("recent issues: %v", agg.RecentIssues)
	}
}
