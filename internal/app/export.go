package app

import (
	"encoding/csv"
	"io"
	"strconv"

	"flex_reviews/internal/domain"
)

var exportHeader = []string{
	"id", "listingName", "channel", "type", "status", "ratingOverall",
	"publicText", "authorName", "submittedAt", "approved", "sentimentScore",
}

// WriteReviewsCSV writes the flat denormalized projection of an
// unpaginated query result. Column order is fixed; callers feed it the
// same pipeline output the interactive view renders so exports match
// the screen.
func WriteReviewsCSV(w io.Writer, reviews []domain.Review) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range reviews {
		rating := ""
		if r.RatingOverall != nil {
			rating = strconv.FormatFloat(*r.RatingOverall, 'f', -1, 64)
		}
		submitted := ""
		if r.SubmittedAt != nil {
			submitted = FormatTimestamp(*r.SubmittedAt)
		}
		score := ClassifySentiment(r.PublicText).Score
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.ListingName,
			derefStr(r.Channel),
			derefStr(r.Type),
			derefStr(r.Status),
			rating,
			derefStr(r.PublicText),
			derefStr(r.AuthorName),
			submitted,
			strconv.FormatBool(r.Approved),
			strconv.FormatFloat(score, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
