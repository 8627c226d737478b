package app

import (
	"math"
	"strconv"
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

// ToTenScale converts a rating on the given scale to 0..10. Unknown
// scales and NaN values normalize to nil rather than erroring; a bad
// rating on one record must not sink the batch.
func ToTenScale(value *float64, scale int) *float64 {
	if value == nil || math.IsNaN(*value) {
		return nil
	}
	switch scale {
	case 10:
		v := clamp(*value, 0, 10)
		return &v
	case 5:
		v := clamp((*value/5)*10, 0, 10)
		return &v
	default:
		return nil
	}
}

func clamp(n, min, max float64) float64 {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// FormatTimestamp renders a stored timestamp in the wire format the
// dashboard consumes: UTC, millisecond precision, trailing Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

/********** Hostaway export **********/

// NormalizeHostaway maps a Hostaway export payload to normalized
// reviews. Individual malformed fields degrade to nil; no record is
// rejected outright.
func NormalizeHostaway(raw []map[string]any) []domain.NormalizedReview {
	out := make([]domain.NormalizedReview, 0, len(raw))
	for _, r := range raw {
		scale := 10
		if s := intAt(r, "ratingScale"); s != nil {
			scale = *s
		}

		var items map[string]float64
		if cats, ok := r["reviewCategory"].([]any); ok {
			for _, c := range cats {
				cm, ok := c.(map[string]any)
				if !ok {
					continue
				}
				name, ok := cm["category"].(string)
				if !ok {
					continue
				}
				// Category scores arrive on the ten scale regardless of
				// the overall rating's scale.
				if v := ToTenScale(floatAt(cm, "rating"), 10); v != nil {
					if items == nil {
						items = make(map[string]float64, len(cats))
					}
					items[name] = *v
				}
			}
		}

		listing := strAt(r, "listingName")
		if listing == nil {
			unknown := "Unknown Listing"
			listing = &unknown
		}

		channel := strAt(r, "channel")
		if channel == nil {
			ch := "Hostaway"
			channel = &ch
		}

		n := domain.NormalizedReview{
			Source:            domain.SourceHostaway,
			SourceReviewID:    idAt(r, "id"),
			ListingName:       *listing,
			ListingExternalID: idAt(r, "listingId"),
			Type:              strAt(r, "type"),
			Status:            strAt(r, "status"),
			RatingOverall:     ToTenScale(floatAt(r, "rating"), scale),
			RatingItems:       items,
			PublicText:        strAt(r, "publicReview"),
			SubmittedAt:       parseHostawayTime(strAt(r, "submittedAt")),
			AuthorName:        strAt(r, "guestName"),
			Channel:           channel,
		}
		out = append(out, n)
	}
	return out
}

// parseHostawayTime parses the export's naive "YYYY-MM-DD HH:mm:ss"
// stamps as UTC. Unparseable stamps normalize to nil.
func parseHostawayTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

/********** Google Places **********/

// NormalizeGoogle maps a Places details "reviews" array. Ratings are on
// the five scale; the epoch-seconds time doubles as the provider review
// id, which keeps re-ingestion idempotent.
func NormalizeGoogle(placeName string, raw []map[string]any) []domain.NormalizedReview {
	if placeName == "" {
		placeName = "Unknown Listing"
	}
	ty, st, ch := "guest-to-host", "published", "Google"

	out := make([]domain.NormalizedReview, 0, len(raw))
	for _, r := range raw {
		var srcID *string
		var submitted *time.Time
		if epoch := intAt(r, "time"); epoch != nil {
			id := strconv.Itoa(*epoch)
			srcID = &id
			t := time.Unix(int64(*epoch), 0).UTC()
			submitted = &t
		}
		out = append(out, domain.NormalizedReview{
			Source:         domain.SourceGoogle,
			SourceReviewID: srcID,
			ListingName:    placeName,
			Type:           &ty,
			Status:         &st,
			RatingOverall:  ToTenScale(floatAt(r, "rating"), 5),
			PublicText:     strAt(r, "text"),
			SubmittedAt:    submitted,
			AuthorName:     strAt(r, "author_name"),
			Channel:        &ch,
		})
	}
	return out
}

/********** lookup helpers **********/

func strAt(m map[string]any, key string) *string {
	if v, ok := m[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

// floatAt accepts float64, int, or numeric string values.
func floatAt(m map[string]any, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

func intAt(m map[string]any, key string) *int {
	if f := floatAt(m, key); f != nil && !math.IsNaN(*f) {
		n := int(*f)
		return &n
	}
	return nil
}

// idAt renders a numeric or string id as a string pointer.
func idAt(m map[string]any, key string) *string {
	switch v := m[key].(type) {
	case string:
		if v != "" {
			return &v
		}
	case float64:
		s := strconv.FormatInt(int64(v), 10)
		return &s
	case int:
		s := strconv.Itoa(v)
		return &s
	}
	return nil
}
