package app

import "strings"

// Sentiment buckets.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Domain-tuned lexicons. Matching is substring containment on the
// lowercased text, so multi-word phrases count as single hits.
var (
	positiveTerms = []string{
		"great", "amazing", "perfect", "nice", "clean", "responsive",
		"wonderful", "would stay again", "spacious", "well-equipped",
	}
	negativeTerms = []string{
		"noisy", "confusing", "dirty", "bad", "poor", "issue",
		"problem", "outdated",
	}
)

// sentimentThreshold is the single bucketing rule used everywhere: a
// normalized score beyond +/-0.15 leaves the neutral band.
const sentimentThreshold = 0.15

type Sentiment struct {
	Score  float64 `json:"score"`
	Bucket string  `json:"bucket"`
}

// ClassifySentiment scores text in [-1,1] by lexicon hit counts:
// (pos-neg)/max(1, pos+neg). Empty text is neutral with score 0.
func ClassifySentiment(text *string) Sentiment {
	if text == nil || strings.TrimSpace(*text) == "" {
		return Sentiment{Score: 0, Bucket: SentimentNeutral}
	}
	t := strings.ToLower(*text)

	pos, neg := 0, 0
	for _, w := range positiveTerms {
		if strings.Contains(t, w) {
			pos++
		}
	}
	for _, w := range negativeTerms {
		if strings.Contains(t, w) {
			neg++
		}
	}

	denom := pos + neg
	if denom < 1 {
		denom = 1
	}
	score := float64(pos-neg) / float64(denom)

	bucket := SentimentNeutral
	if score > sentimentThreshold {
		bucket = SentimentPositive
	} else if score < -sentimentThreshold {
		bucket = SentimentNegative
	}
	return Sentiment{Score: score, Bucket: bucket}
}
