package app_test

import (
	"testing"

	"flex_reviews/internal/app"
)

func TestClassifySentiment(t *testing.T) {
	cases := []struct {
		name   string
		text   *string
		score  float64
		bucket string
	}{
		{"nil text", nil, 0, app.SentimentNeutral},
		{"blank text", ptr("   "), 0, app.SentimentNeutral},
		{"all positive", ptr("Great flat, very clean"), 1, app.SentimentPositive},
		{"all negative", ptr("Dirty and noisy at night"), -1, app.SentimentNegative},
		{"balanced stays neutral", ptr("Great location but noisy street"), 0, app.SentimentNeutral},
		{"phrase counts once", ptr("would stay again"), 1, app.SentimentPositive},
		{"no lexicon hits", ptr("the building is on a street"), 0, app.SentimentNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := app.ClassifySentiment(tc.text)
			if got.Score != tc.score || got.Bucket != tc.bucket {
				t.Fatalf("got score=%v bucket=%s, want score=%v bucket=%s",
					got.Score, got.Bucket, tc.score, tc.bucket)
			}
		})
	}
}

func TestClassifySentiment_ThresholdBand(t *testing.T) {
	// two positive hits and one negative: score 1/3, above the band
	s := app.ClassifySentiment(ptr("clean and spacious but noisy"))
	if s.Bucket != app.SentimentPositive {
		t.Fatalf("score %v should be positive, got %s", s.Score, s.Bucket)
	}
	// one positive, two negative: score -1/3, below the band
	s = app.ClassifySentiment(ptr("nice but dirty and outdated"))
	if s.Bucket != app.SentimentNegative {
		t.Fatalf("score %v should be negative, got %s", s.Score, s.Bucket)
	}
}
