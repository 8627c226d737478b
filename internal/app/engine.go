package app

import (
	"regexp"
	"sort"
	"strings"

	"flex_reviews/internal/domain"
)

// Query runs the filter -> rank -> sort -> paginate pipeline over an
// in-memory snapshot. It is a pure function of its inputs; storage may
// pre-apply the structural stage, re-checking it here is a no-op.
//
// Stage order is load-bearing for determinism: structural filter,
// category filter, keyword filter, text ranking, sort, page slice.
func Query(reviews []domain.Review, spec domain.QuerySpec) domain.ReviewsPage {
	rows := QueryAll(reviews, spec)

	total := len(rows)
	page, perPage := spec.Page, spec.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	lo := (page - 1) * perPage
	if lo > total {
		lo = total
	}
	hi := lo + perPage
	if hi > total {
		hi = total
	}
	return domain.ReviewsPage{Page: page, PerPage: perPage, Total: total, Items: rows[lo:hi]}
}

// QueryAll is Query without the page slice: the full filtered, ranked,
// sorted result. Summary aggregation and exports run on this set so
// they stay consistent with the paginated view.
func QueryAll(reviews []domain.Review, spec domain.QuerySpec) []domain.Review {
	filtered := make([]domain.Review, 0, len(reviews))
	for _, r := range reviews {
		if matchesStructural(r, spec) && matchesCategories(r, spec) && matchesKeywords(r, spec) {
			filtered = append(filtered, r)
		}
	}

	tokens := tokenizeQuery(spec.SearchText)

	type ranked struct {
		r     domain.Review
		score int
	}
	rows := make([]ranked, 0, len(filtered))
	if len(tokens) > 0 {
		maxScore := 0
		for _, r := range filtered {
			s := rankScore(r, tokens)
			if s == 0 {
				continue
			}
			if s > maxScore {
				maxScore = s
			}
			rows = append(rows, ranked{r: r, score: s})
		}
		// A name or listing prefix hit anywhere suppresses weaker
		// matches entirely.
		if maxScore >= 5 {
			kept := rows[:0]
			for _, x := range rows {
				if x.score >= 5 {
					kept = append(kept, x)
				}
			}
			rows = kept
		}
	} else {
		for _, r := range filtered {
			rows = append(rows, ranked{r: r})
		}
	}

	switch {
	case spec.SortBy != "":
		cmp := compareBy(spec.SortBy)
		asc := spec.SortDir == domain.SortAsc
		sort.SliceStable(rows, func(i, j int) bool {
			c := cmp(rows[i].r, rows[j].r)
			if asc {
				return c < 0
			}
			return c > 0
		})
	case len(tokens) > 0:
		// Relevance: score descending, then date descending.
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].score != rows[j].score {
				return rows[i].score > rows[j].score
			}
			return dateMillis(rows[i].r) > dateMillis(rows[j].r)
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return dateMillis(rows[i].r) > dateMillis(rows[j].r)
		})
	}

	out := make([]domain.Review, 0, len(rows))
	for _, x := range rows {
		out = append(out, x.r)
	}
	return out
}

/********** filter stages **********/

func matchesStructural(r domain.Review, q domain.QuerySpec) bool {
	if q.ListingID != nil && r.ListingID != *q.ListingID {
		return false
	}
	if len(q.Channels) > 0 {
		if r.Channel == nil || !containsString(q.Channels, *r.Channel) {
			return false
		}
	} else if q.Channel != nil {
		if r.Channel == nil || *r.Channel != *q.Channel {
			return false
		}
	}
	if q.Type != nil && (r.Type == nil || *r.Type != *q.Type) {
		return false
	}
	if q.Status != nil && (r.Status == nil || *r.Status != *q.Status) {
		return false
	}
	if q.Approved != nil && r.Approved != *q.Approved {
		return false
	}
	if q.RatingMin != nil || q.RatingMax != nil {
		if r.RatingOverall == nil {
			return false
		}
		if q.RatingMin != nil && *r.RatingOverall < *q.RatingMin {
			return false
		}
		if q.RatingMax != nil && *r.RatingOverall > *q.RatingMax {
			return false
		}
	}
	if q.DateFrom != nil || q.DateTo != nil {
		if r.SubmittedAt == nil {
			return false
		}
		if q.DateFrom != nil && r.SubmittedAt.Before(*q.DateFrom) {
			return false
		}
		if q.DateTo != nil && r.SubmittedAt.After(*q.DateTo) {
			return false
		}
	}
	return true
}

func matchesCategories(r domain.Review, q domain.QuerySpec) bool {
	if len(q.Categories) == 0 {
		return true
	}
	min := 0.0
	if q.CategoryMin != nil {
		min = *q.CategoryMin
	}
	for _, c := range q.Categories {
		v, ok := r.RatingItems[c]
		if !ok || v < min {
			return false
		}
	}
	return true
}

func matchesKeywords(r domain.Review, q domain.QuerySpec) bool {
	if len(q.Keywords) == 0 {
		return true
	}
	text := ""
	if r.PublicText != nil {
		text = strings.ToLower(*r.PublicText)
	}
	for _, k := range q.Keywords {
		if !strings.Contains(text, k) {
			return false
		}
	}
	return true
}

/********** ranking **********/

func tokenizeQuery(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// rankScore assigns the score of the first matching tier. Every token
// must satisfy a tier for it to apply; a review matching no tier is
// dropped from ranked results.
//
//	6 author-name word prefix   5 listing-name word prefix
//	4 name/listing substring    3 word-anchored text prefix
//	2 channel/type substring    1 plain text substring
func rankScore(r domain.Review, tokens []string) int {
	author := strings.ToLower(derefStr(r.AuthorName))
	text := strings.ToLower(derefStr(r.PublicText))
	listing := strings.ToLower(r.ListingName)
	channel := strings.ToLower(derefStr(r.Channel))
	typ := strings.ToLower(derefStr(r.Type))

	authorWords := strings.Fields(author)
	listingWords := strings.Fields(listing)

	if allTokens(tokens, func(tok string) bool { return anyHasPrefix(authorWords, tok) }) {
		return 6
	}
	if allTokens(tokens, func(tok string) bool { return anyHasPrefix(listingWords, tok) }) {
		return 5
	}
	if allTokens(tokens, func(tok string) bool { return strings.Contains(author, tok) }) ||
		allTokens(tokens, func(tok string) bool { return strings.Contains(listing, tok) }) {
		return 4
	}
	if allTokens(tokens, func(tok string) bool { return wordPrefixRe(tok).MatchString(text) }) {
		return 3
	}
	if allTokens(tokens, func(tok string) bool {
		return strings.Contains(channel, tok) || strings.Contains(typ, tok)
	}) {
		return 2
	}
	if allTokens(tokens, func(tok string) bool { return strings.Contains(text, tok) }) {
		return 1
	}
	return 0
}

func allTokens(tokens []string, match func(string) bool) bool {
	for _, tok := range tokens {
		if !match(tok) {
			return false
		}
	}
	return true
}

func anyHasPrefix(words []string, prefix string) bool {
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

func wordPrefixRe(token string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(token))
}

/********** sorting **********/

func compareBy(key string) func(a, b domain.Review) int {
	switch key {
	case domain.SortByRating:
		return func(a, b domain.Review) int {
			av, bv := ratingOrNegInf(a), ratingOrNegInf(b)
			if av < bv {
				return -1
			}
			if av > bv {
				return 1
			}
			return 0
		}
	case domain.SortByListing:
		return func(a, b domain.Review) int {
			return strings.Compare(a.ListingName, b.ListingName)
		}
	default: // date
		return func(a, b domain.Review) int {
			ad, bd := dateMillis(a), dateMillis(b)
			if ad < bd {
				return -1
			}
			if ad > bd {
				return 1
			}
			return 0
		}
	}
}

// dateMillis treats a missing submission time as the epoch so unknown
// dates sink to the bottom of a newest-first sort.
func dateMillis(r domain.Review) int64 {
	if r.SubmittedAt == nil {
		return 0
	}
	return r.SubmittedAt.UnixMilli()
}

func ratingOrNegInf(r domain.Review) float64 {
	if r.RatingOverall == nil {
		return -1 << 30
	}
	return *r.RatingOverall
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

/********** boundary sanitization **********/

var (
	listCharRe      = regexp.MustCompile(`[^a-z0-9_\- ]`)
	listCharMixedRe = regexp.MustCompile(`[^a-zA-Z0-9_\- ]`)
)

// SanitizeList splits a comma list, trims, lowercases, strips anything
// outside [a-z0-9_- ], de-duplicates, and caps at 8 entries. Used for
// the categories/keywords/channels query params.
func SanitizeList(raw string, toLower bool) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		if toLower {
			s = strings.ToLower(s)
			s = listCharRe.ReplaceAllString(s, "")
		} else {
			s = listCharMixedRe.ReplaceAllString(s, "")
		}
		if s == "" || containsString(out, s) {
			continue
		}
		out = append(out, s)
		if len(out) >= 8 {
			break
		}
	}
	return out
}

// ClampRating bounds a numeric query input to the 0..10 rating scale.
func ClampRating(n float64) float64 { return clamp(n, 0, 10) }
