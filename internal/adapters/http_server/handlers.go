// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	M *app.ModerationService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/reviews", h.listReviews)
	s.mux.Get("/v1/reviews/summary", h.summary)
	s.mux.Get("/v1/reviews/export", h.exportCSV)
	s.mux.Post("/v1/reviews/approve", h.approve)
	s.mux.Post("/v1/reviews/auto-approve", h.autoApprove)
	s.mux.Get("/v1/listings", h.listings)
	s.mux.Get("/v1/activity", h.activity)
	s.mux.Get("/v1/config/auto-approval", h.getRules)
	s.mux.Put("/v1/config/auto-approval", h.putRules)
	s.mux.Get("/v1/responses", h.listResponses)
	s.mux.Post("/v1/responses", h.addResponse)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

/********** query-param parsing **********/

// parseQuerySpec builds the validated QuerySpec once, at the boundary.
// Numeric inputs are clamped, list inputs sanitized; nothing here
// rejects a request short of an unparseable date.
func parseQuerySpec(r *http.Request) (domain.QuerySpec, error) {
	p := r.URL.Query()
	var spec domain.QuerySpec

	if v := p.Get("listingId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return spec, errors.New("listingId must be a number")
		}
		spec.ListingID = &id
	}
	spec.Channel = optStr(p.Get("channel"))
	spec.Channels = app.SanitizeList(p.Get("channels"), false)
	spec.Type = optStr(p.Get("type"))
	spec.Status = optStr(p.Get("status"))
	switch p.Get("approved") {
	case "true":
		t := true
		spec.Approved = &t
	case "false":
		f := false
		spec.Approved = &f
	}
	if v := p.Get("minRating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c := app.ClampRating(f)
			spec.RatingMin = &c
		}
	}
	if v := p.Get("maxRating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c := app.ClampRating(f)
			spec.RatingMax = &c
		}
	}
	var err error
	if spec.DateFrom, err = optTime(p.Get("from")); err != nil {
		return spec, errors.New("from must be an ISO date")
	}
	if spec.DateTo, err = optTime(p.Get("to")); err != nil {
		return spec, errors.New("to must be an ISO date")
	}
	spec.Categories = app.SanitizeList(p.Get("categories"), true)
	if v := p.Get("catMin"); v != "" {
		f, _ := strconv.ParseFloat(v, 64)
		c := app.ClampRating(f)
		spec.CategoryMin = &c
	}
	spec.Keywords = app.SanitizeList(p.Get("keywords"), true)
	spec.SearchText = strings.TrimSpace(p.Get("q"))

	switch p.Get("sortBy") {
	case domain.SortByDate, domain.SortByRating, domain.SortByListing:
		spec.SortBy = p.Get("sortBy")
	}
	spec.SortDir = domain.SortDesc
	if p.Get("sortDir") == domain.SortAsc {
		spec.SortDir = domain.SortAsc
	}

	spec.Page = 1
	if n, err := strconv.Atoi(p.Get("page")); err == nil && n > 1 {
		spec.Page = n
	}
	spec.PerPage = 10
	if n, err := strconv.Atoi(p.Get("perPage")); err == nil {
		if n < 1 {
			n = 1
		}
		if n > 50 {
			n = 50
		}
		spec.PerPage = n
	}
	return spec, nil
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.New("bad time")
}

/********** payload shapes **********/

type reviewPayload struct {
	ID             int64              `json:"id"`
	ListingID      int64              `json:"listingId"`
	ListingName    string             `json:"listingName"`
	Source         string             `json:"source"`
	SourceReviewID *string            `json:"sourceReviewId"`
	Type           *string            `json:"type"`
	Status         *string            `json:"status"`
	Channel        *string            `json:"channel"`
	RatingOverall  *float64           `json:"ratingOverall"`
	RatingItems    map[string]float64 `json:"ratingItems"`
	PublicText     *string            `json:"publicText"`
	SubmittedAt    *string            `json:"submittedAt"`
	AuthorName     *string            `json:"authorName"`
	Approved       bool               `json:"approved"`
	SentimentScore float64            `json:"sentimentScore"`
}

func toPayload(r domain.Review) reviewPayload {
	var submitted *string
	if r.SubmittedAt != nil {
		s := app.FormatTimestamp(*r.SubmittedAt)
		submitted = &s
	}
	return reviewPayload{
		ID:             r.ID,
		ListingID:      r.ListingID,
		ListingName:    r.ListingName,
		Source:         string(r.Source),
		SourceReviewID: r.SourceReviewID,
		Type:           r.Type,
		Status:         r.Status,
		Channel:        r.Channel,
		RatingOverall:  r.RatingOverall,
		RatingItems:    r.RatingItems,
		PublicText:     r.PublicText,
		SubmittedAt:    submitted,
		AuthorName:     r.AuthorName,
		Approved:       r.Approved,
		SentimentScore: app.ClassifySentiment(r.PublicText).Score,
	}
}

/********** read handlers **********/

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	spec, err := parseQuerySpec(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}
	page, err := h.Q.Reviews(r.Context(), spec)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Query failed", "")
		return
	}
	items := make([]reviewPayload, 0, len(page.Items))
	for _, rv := range page.Items {
		items = append(items, toPayload(rv))
	}
	writeCacheable(w, r, map[string]any{
		"page":    page.Page,
		"perPage": page.PerPage,
		"total":   page.Total,
		"items":   items,
	})
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	spec, err := parseQuerySpec(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}
	sum, err := h.Q.Summary(r.Context(), spec)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Summary failed", "")
		return
	}
	writeCacheable(w, r, sum)
}

func (h *Handlers) exportCSV(w http.ResponseWriter, r *http.Request) {
	spec, err := parseQuerySpec(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}
	rows, err := h.Q.ReviewsUnpaginated(r.Context(), spec)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Export failed", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reviews-export.csv"`)
	w.Header().Set("Cache-Control", "no-store")
	if err := app.WriteReviewsCSV(w, rows); err != nil {
		log.Error().Err(err).Msg("csv export write failed")
	}
}

func (h *Handlers) listings(w http.ResponseWriter, r *http.Request) {
	items, err := h.Q.ListingAggregates(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Listings failed", "")
		return
	}
	writeCacheable(w, r, map[string]any{"items": items})
}

func (h *Handlers) activity(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query()
	limit := 20
	if n, err := strconv.Atoi(p.Get("limit")); err == nil {
		if n < 1 {
			n = 1
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}
	offset := 0
	if n, err := strconv.Atoi(p.Get("offset")); err == nil && n > 0 {
		offset = n
	}

	page, err := h.Q.Activity(r.Context(), p.Get("action"), limit, offset)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Activity failed", "")
		return
	}
	items := make([]map[string]any, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, map[string]any{
			"id":          e.ID,
			"reviewId":    e.ReviewID,
			"listingName": e.ListingName,
			"action":      e.Action,
			"previous":    e.Previous,
			"next":        e.Next,
			"createdAt":   app.FormatTimestamp(e.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextOffset": page.NextOffset})
}

/********** mutation handlers **********/

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs      []int64 `json:"ids"`
		Approved *bool   `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 || body.Approved == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "ids and approved are required")
		return
	}
	updated, err := h.M.SetApproval(r.Context(), body.IDs, *body.Approved)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Approval failed", "")
		return
	}
	action := domain.ActionUnapprove
	if *body.Approved {
		action = domain.ActionApprove
	}
	observability.ObserveApproval(action, updated)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "updated": updated})
}

func (h *Handlers) autoApprove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Threshold *float64 `json:"threshold"`
		Query     string   `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "body must be JSON")
		return
	}
	// The structural filter arrives encoded as a query string so the UI
	// can forward its current filters verbatim.
	filterReq := r
	if body.Query != "" {
		u := *r.URL
		u.RawQuery = body.Query
		filterReq = &http.Request{URL: &u}
	}
	spec, err := parseQuerySpec(filterReq)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}
	updated, err := h.M.AutoApprove(r.Context(), spec.Structural(), body.Threshold)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Auto-approve failed", "")
		return
	}
	observability.ObserveApproval(domain.ActionAutoApprove, updated)
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (h *Handlers) getRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Q.AutoApprovalRules(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Config read failed", "")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *Handlers) putRules(w http.ResponseWriter, r *http.Request) {
	var rules domain.AutoApprovalRules
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "body must be JSON rules")
		return
	}
	saved, err := h.M.SaveRules(r.Context(), rules)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeProblem(w, http.StatusBadRequest, "Invalid rules", err.Error())
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Config save failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rules": saved})
}

func (h *Handlers) listResponses(w http.ResponseWriter, r *http.Request) {
	var reviewID *int64
	if v := r.URL.Query().Get("reviewId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid reviewId", "reviewId must be a number")
			return
		}
		reviewID = &id
	}
	items, err := h.Q.Responses(r.Context(), reviewID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Responses failed", "")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, m := range items {
		out = append(out, map[string]any{
			"id":        m.ID,
			"reviewId":  m.ReviewID,
			"message":   m.Message,
			"createdAt": app.FormatTimestamp(m.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) addResponse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReviewID int64  `json:"reviewId"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "body must be JSON")
		return
	}
	item, err := h.M.AddResponse(r.Context(), body.ReviewID, body.Message)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Response save failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "item": map[string]any{
		"id":        item.ID,
		"reviewId":  item.ReviewID,
		"message":   item.Message,
		"createdAt": app.FormatTimestamp(item.CreatedAt),
	}})
}
