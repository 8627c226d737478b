package app

import (
	"math"
	"sort"
	"strings"

	"flex_reviews/internal/domain"
)

// Words excluded from the keyword frequency map.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "a": {}, "to": {}, "of": {}, "we": {},
	"was": {}, "is": {}, "in": {}, "on": {}, "it": {}, "for": {},
}

const (
	lowCategoryThreshold = 6.0
	worstCategoriesLimit = 5
	recurringIssuesLimit = 3
	keywordLimit         = 30
)

// Aggregate derives the dashboard summary from an already-filtered set
// of reviews. Pure and single-pass per concern; records with missing
// fields are skipped per concern, never rejected.
func Aggregate(reviews []domain.Review) domain.Summary {
	var s domain.Summary
	s.Totals.Total = len(reviews)

	var allRatings, approvedRatings []float64
	byChannel := map[string]int{}
	byType := map[string]int{}

	categories := map[string]*catAcc{}
	trendMonths := map[string]*catAcc{}

	type monthSent struct{ pos, neu, neg, total int }
	sentMonths := map[string]*monthSent{}

	freq := map[string]int{}

	for _, r := range reviews {
		if r.Approved {
			s.Totals.Approved++
		}
		if r.RatingOverall != nil {
			allRatings = append(allRatings, *r.RatingOverall)
			if r.Approved {
				approvedRatings = append(approvedRatings, *r.RatingOverall)
			}
		}

		ch := "Unknown"
		if r.Channel != nil {
			ch = *r.Channel
		}
		byChannel[ch]++
		ty := "unknown"
		if r.Type != nil {
			ty = *r.Type
		}
		byType[ty]++

		for k, v := range r.RatingItems {
			a := categories[k]
			if a == nil {
				a = &catAcc{}
				categories[k] = a
			}
			a.total += v
			a.count++
		}

		if r.SubmittedAt != nil {
			mk := r.SubmittedAt.UTC().Format("2006-01")
			if r.RatingOverall != nil {
				a := trendMonths[mk]
				if a == nil {
					a = &catAcc{}
					trendMonths[mk] = a
				}
				a.total += *r.RatingOverall
				a.count++
			}
			ms := sentMonths[mk]
			if ms == nil {
				ms = &monthSent{}
				sentMonths[mk] = ms
			}
			switch ClassifySentiment(r.PublicText).Bucket {
			case SentimentPositive:
				ms.pos++
			case SentimentNegative:
				ms.neg++
			default:
				ms.neu++
			}
			ms.total++
		}

		if r.PublicText != nil {
			for _, w := range splitWords(*r.PublicText) {
				if _, stop := stopWords[w]; stop {
					continue
				}
				freq[w]++
			}
		}
	}

	if len(allRatings) > 0 {
		v := round2(mean(allRatings))
		s.Averages.All = &v
	}
	if len(approvedRatings) > 0 {
		v := round2(mean(approvedRatings))
		s.Averages.Approved = &v
	}
	s.ByChannel = byChannel
	s.ByType = byType

	s.Trend = make([]domain.MonthAvg, 0, len(trendMonths))
	for mk, a := range trendMonths {
		s.Trend = append(s.Trend, domain.MonthAvg{Month: mk, Avg: round2(a.total / float64(a.count))})
	}
	sort.Slice(s.Trend, func(i, j int) bool { return s.Trend[i].Month < s.Trend[j].Month })

	s.SentimentHistory = make([]domain.MonthSentiment, 0, len(sentMonths))
	for mk, ms := range sentMonths {
		t := ms.total
		if t < 1 {
			t = 1
		}
		s.SentimentHistory = append(s.SentimentHistory, domain.MonthSentiment{
			Month:    mk,
			Positive: pct(ms.pos, t),
			Neutral:  pct(ms.neu, t),
			Negative: pct(ms.neg, t),
		})
	}
	sort.Slice(s.SentimentHistory, func(i, j int) bool {
		return s.SentimentHistory[i].Month < s.SentimentHistory[j].Month
	})

	s.CategoryAverages = make(map[string]float64, len(categories))
	for k, a := range categories {
		s.CategoryAverages[k] = round2(a.total / float64(a.count))
	}

	s.WorstCategories = worstCategories(s.CategoryAverages)
	s.RecurringIssues = recurringIssuesFrom(categories)
	s.KeywordFrequency = topKeywords(freq, keywordLimit)
	return s
}

// worstCategories is the global insight mode: every category averaging
// below the low threshold, worst first, capped, no occurrence floor.
func worstCategories(avgs map[string]float64) []string {
	type kv struct {
		k   string
		avg float64
	}
	var low []kv
	for k, v := range avgs {
		if v < lowCategoryThreshold {
			low = append(low, kv{k, v})
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].avg != low[j].avg {
			return low[i].avg < low[j].avg
		}
		return low[i].k < low[j].k
	})
	out := make([]string, 0, worstCategoriesLimit)
	for _, x := range low {
		out = append(out, x.k)
		if len(out) >= worstCategoriesLimit {
			break
		}
	}
	return out
}

// catAcc accumulates a running sum/count for one category or month.
type catAcc struct {
	total float64
	count int
}

// RecurringIssues is the per-listing card mode: categories reported by
// at least two reviews, worst average first, top three.
func RecurringIssues(reviews []domain.Review) []string {
	categories := map[string]*catAcc{}
	for _, r := range reviews {
		for k, v := range r.RatingItems {
			a := categories[k]
			if a == nil {
				a = &catAcc{}
				categories[k] = a
			}
			a.total += v
			a.count++
		}
	}
	return recurringIssuesFrom(categories)
}

func recurringIssuesFrom(categories map[string]*catAcc) []string {
	type kv struct {
		k     string
		avg   float64
		count int
	}
	var rec []kv
	for k, a := range categories {
		if a.count >= 2 {
			rec = append(rec, kv{k, a.total / float64(a.count), a.count})
		}
	}
	sort.Slice(rec, func(i, j int) bool {
		if rec[i].avg != rec[j].avg {
			return rec[i].avg < rec[j].avg
		}
		return rec[i].k < rec[j].k
	})
	out := make([]string, 0, recurringIssuesLimit)
	for _, x := range rec {
		out = append(out, x.k)
		if len(out) >= recurringIssuesLimit {
			break
		}
	}
	return out
}

// AggregateListing builds the per-listing dashboard card.
func AggregateListing(l domain.Listing, reviews []domain.Review) domain.ListingAggregate {
	out := domain.ListingAggregate{
		ListingID:   l.ID,
		ListingName: l.Name,
		Total:       len(reviews),
		ByChannel:   map[string]int{},
		ByType:      map[string]int{},
	}
	var all, approved []float64
	for _, r := range reviews {
		if r.Approved {
			out.Approved++
		}
		if r.RatingOverall != nil {
			all = append(all, *r.RatingOverall)
			if r.Approved {
				approved = append(approved, *r.RatingOverall)
			}
		}
		ch := "Unknown"
		if r.Channel != nil {
			ch = *r.Channel
		}
		out.ByChannel[ch]++
		ty := "unknown"
		if r.Type != nil {
			ty = *r.Type
		}
		out.ByType[ty]++
	}
	if len(all) > 0 {
		v := round2(mean(all))
		out.AvgRatingAll = &v
	}
	if len(approved) > 0 {
		v := round2(mean(approved))
		out.AvgRatingApproved = &v
	}
	out.RecentIssues = RecurringIssues(reviews)
	return out
}

/********** small numeric/text helpers **********/

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func pct(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}

// splitWords lowercases and splits on non-letter runs.
func splitWords(text string) []string {
	t := strings.ToLower(text)
	return strings.FieldsFunc(t, func(r rune) bool {
		return r < 'a' || r > 'z'
	})
}

func topKeywords(freq map[string]int, limit int) map[string]int {
	type kv struct {
		k string
		n int
	}
	all := make([]kv, 0, len(freq))
	for k, n := range freq {
		all = append(all, kv{k, n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].n != all[j].n {
			return all[i].n > all[j].n
		}
		return all[i].k < all[j].k
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make(map[string]int, len(all))
	for _, x := range all {
		out[x.k] = x.n
	}
	return out
}
