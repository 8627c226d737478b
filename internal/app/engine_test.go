package app_test

import (
	"reflect"
	"testing"
	"time"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

func day(d int) *time.Time {
	t := time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func fixtureReviews() []domain.Review {
	return []domain.Review{
		{
			ID: 1, ListingID: 1, ListingName: "Shoreditch Heights",
			Channel: ptr("Airbnb"), Type: ptr("guest-to-host"), Status: ptr("published"),
			RatingOverall: pfloat(9), RatingItems: map[string]float64{"cleanliness": 9, "location": 10},
			PublicText:  ptr("Great stay, would stay again"),
			AuthorName:  ptr("Alice Morgan"),
			SubmittedAt: day(10), Approved: true,
		},
		{
			ID: 2, ListingID: 2, ListingName: "Alicante Suite",
			Channel: ptr("Booking"), Type: ptr("guest-to-host"), Status: ptr("published"),
			RatingOverall: pfloat(6), RatingItems: map[string]float64{"cleanliness": 5},
			PublicText:  ptr("The flat was fine"),
			AuthorName:  ptr("Bob"),
			SubmittedAt: day(12),
		},
		{
			ID: 3, ListingID: 1, ListingName: "Shoreditch Heights",
			Channel: ptr("Google"), Type: ptr("guest-to-host"), Status: ptr("published"),
			RatingOverall: pfloat(4), RatingItems: map[string]float64{"cleanliness": 5},
			PublicText:  ptr("We met Ali at the bar, the room was dirty"),
			AuthorName:  ptr("Carla"),
			SubmittedAt: day(14),
		},
		{
			ID: 4, ListingID: 3, ListingName: "Camden Loft",
			Channel: ptr("Airbnb"), Type: ptr("host-to-guest"), Status: ptr("published"),
			RatingOverall: nil,
			PublicText:    ptr("Lovely guests"),
			AuthorName:    ptr("Dora"),
			SubmittedAt:   nil,
		},
		{
			ID: 5, ListingID: 3, ListingName: "Camden Loft",
			Channel: ptr("Hostaway"), Type: ptr("guest-to-host"), Status: ptr("draft"),
			RatingOverall: pfloat(8),
			PublicText:    ptr("noisy but spacious"),
			AuthorName:    ptr("Elena"),
			SubmittedAt:   day(2),
		},
	}
}

func idsOf(rows []domain.Review) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestQueryAll_DefaultSortNewestFirst(t *testing.T) {
	rows := app.QueryAll(fixtureReviews(), domain.QuerySpec{})
	// missing dates sink to the bottom
	want := []int64{3, 2, 1, 5, 4}
	if got := idsOf(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("order: got %v want %v", got, want)
	}
}

func TestQueryAll_SearchRanksAndSuppresses(t *testing.T) {
	// "ali" hits Alice (author word prefix), Alicante (listing word
	// prefix) and "Ali at the bar" (text word prefix). The strong name
	// hits suppress the text-only match.
	rows := app.QueryAll(fixtureReviews(), domain.QuerySpec{SearchText: "ali"})
	if got := idsOf(rows); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("ranked ids: got %v want [1 2]", got)
	}
}

func TestQueryAll_SearchTextTierSurvivesAlone(t *testing.T) {
	rows := app.QueryAll(fixtureReviews(), domain.QuerySpec{SearchText: "dirty"})
	if got := idsOf(rows); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("text match: got %v want [3]", got)
	}
}

func TestQueryAll_AllTokensMustMatch(t *testing.T) {
	rows := app.QueryAll(fixtureReviews(), domain.QuerySpec{SearchText: "alice zzz"})
	if len(rows) != 0 {
		t.Fatalf("partial token match must not rank, got %v", idsOf(rows))
	}
}

func TestQueryAll_ExplicitSortOverridesRelevance(t *testing.T) {
	rows := app.QueryAll(fixtureReviews(), domain.QuerySpec{
		SortBy: domain.SortByRating, SortDir: domain.SortAsc,
	})
	// nil rating sorts below every real rating ascending-first
	want := []int64{4, 3, 2, 5, 1}
	if got := idsOf(rows); !reflect.DeepEqual(got, want) {
		t.Fatalf("rating asc: got %v want %v", got, want)
	}

	rows = app.QueryAll(fixtureReviews(), domain.QuerySpec{
		SortBy: domain.SortByListing, SortDir: domain.SortAsc,
	})
	if rows[0].ListingName != "Alicante Suite" {
		t.Fatalf("listing asc should start at Alicante, got %s", rows[0].ListingName)
	}
}

func TestQueryAll_StructuralFilters(t *testing.T) {
	rows := app.QueryAll(fixtureReviews(), domain.QuerySpec{
		Channels: []string{"Airbnb", "Google"},
	})
	if got := idsOf(rows); !reflect.DeepEqual(got, []int64{3, 1, 4}) {
		t.Fatalf("channels filter: got %v", got)
	}

	rows = app.QueryAll(fixtureReviews(), domain.QuerySpec{
		RatingMin: pfloat(6), RatingMax: pfloat(8),
	})
	// nil-rated reviews are excluded by a rating bound
	if got := idsOf(rows); !reflect.DeepEqual(got, []int64{2, 5}) {
		t.Fatalf("rating band: got %v", got)
	}

	rows = app.QueryAll(fixtureReviews(), domain.QuerySpec{
		DateFrom: day(11), DateTo: day(13),
	})
	if got := idsOf(rows); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("date window: got %v", got)
	}
}

func TestQueryAll_CategoryAndKeywordFilters(t *testing.T) {
	rows := app.QueryAll(fixtureReviews(), domain.QuerySpec{
		Categories: []string{"cleanliness"}, CategoryMin: pfloat(6),
	})
	if got := idsOf(rows); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("category floor: got %v", got)
	}

	rows = app.QueryAll(fixtureReviews(), domain.QuerySpec{
		Keywords: []string{"noisy", "spacious"},
	})
	if got := idsOf(rows); !reflect.DeepEqual(got, []int64{5}) {
		t.Fatalf("keyword conjunction: got %v", got)
	}
}

func TestQuery_PaginationIsCompleteAndDisjoint(t *testing.T) {
	all := fixtureReviews()
	seen := map[int64]int{}
	page := 1
	for {
		p := app.Query(all, domain.QuerySpec{Page: page, PerPage: 2})
		if p.Total != len(all) {
			t.Fatalf("total: got %d want %d", p.Total, len(all))
		}
		if len(p.Items) == 0 {
			break
		}
		for _, r := range p.Items {
			seen[r.ID]++
		}
		page++
	}
	if len(seen) != len(all) {
		t.Fatalf("pages must cover every review, saw %d of %d", len(seen), len(all))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("review %d appeared %d times", id, n)
		}
	}
}

func TestQuery_PageBeyondEnd(t *testing.T) {
	p := app.Query(fixtureReviews(), domain.QuerySpec{Page: 99, PerPage: 10})
	if len(p.Items) != 0 || p.Total != 5 {
		t.Fatalf("out-of-range page: items=%d total=%d", len(p.Items), p.Total)
	}
}

func TestSanitizeList(t *testing.T) {
	got := app.SanitizeList("Cleanliness, VALUE ,cleanliness,, chec<k>in", true)
	want := []string{"cleanliness", "value", "checkin"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	if got := app.SanitizeList("", true); got != nil {
		t.Fatalf("empty input: got %v", got)
	}

	// mixed-case mode keeps channel casing
	got = app.SanitizeList("Airbnb,Booking", false)
	if !reflect.DeepEqual(got, []string{"Airbnb", "Booking"}) {
		t.Fatalf("mixed case: got %v", got)
	}

	got = app.SanitizeList("a,b,c,d,e,f,g,h,i,j", true)
	if len(got) != 8 {
		t.Fatalf("cap: got %d entries", len(got))
	}
}
