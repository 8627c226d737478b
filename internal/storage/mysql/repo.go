package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"flex_reviews/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertListingByName(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	res, err := r.db.ExecContext(ctx, upsertListingSQL, l.Name, valStr(l.Channel), valStr(l.ExternalID))
	if err != nil {
		return domain.Listing{}, err
	}
	// LAST_INSERT_ID(id) in the duplicate branch makes this valid for
	// both the create and the no-op update path.
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Listing{}, err
	}
	l.ID = id
	return l, nil
}

func (r *Repo) UpsertReviewByExternalKey(ctx context.Context, listingID int64, n domain.NormalizedReview) error {
	var items any
	if len(n.RatingItems) > 0 {
		b, err := json.Marshal(n.RatingItems)
		if err != nil {
			return fmt.Errorf("marshal rating items: %w", err)
		}
		items = string(b)
	}
	var submitted any
	if n.SubmittedAt != nil {
		submitted = n.SubmittedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertReviewSQL,
		n.ExternalKey(),
		listingID,
		string(n.Source),
		valStr(n.SourceReviewID),
		valStr(n.Type),
		valStr(n.Status),
		valStr(n.Channel),
		valF64(n.RatingOverall),
		items,
		valStr(n.PublicText),
		submitted,
		valStr(n.AuthorName),
	)
	return err
}

func (r *Repo) FindReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	var conds []string
	var args []any
	if f.ListingID != nil {
		conds = append(conds, "r.listing_id = ?")
		args = append(args, *f.ListingID)
	}
	if len(f.Channels) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?,", len(f.Channels)), ",")
		conds = append(conds, "r.channel IN ("+ph+")")
		for _, ch := range f.Channels {
			args = append(args, ch)
		}
	} else if f.Channel != nil {
		conds = append(conds, "r.channel = ?")
		args = append(args, *f.Channel)
	}
	if f.Type != nil {
		conds = append(conds, "r.type = ?")
		args = append(args, *f.Type)
	}
	if f.Status != nil {
		conds = append(conds, "r.status = ?")
		args = append(args, *f.Status)
	}
	if f.Approved != nil {
		conds = append(conds, "r.approved = ?")
		args = append(args, *f.Approved)
	}
	if f.RatingMin != nil {
		conds = append(conds, "r.rating_overall >= ?")
		args = append(args, *f.RatingMin)
	}
	if f.RatingMax != nil {
		conds = append(conds, "r.rating_overall <= ?")
		args = append(args, *f.RatingMax)
	}
	if f.DateFrom != nil {
		conds = append(conds, "r.submitted_at >= ?")
		args = append(args, f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		conds = append(conds, "r.submitted_at <= ?")
		args = append(args, f.DateTo.UTC())
	}

	q := findReviewsSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY r.submitted_at DESC, r.id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		var (
			source                 string
			sourceID, typ, status  sql.NullString
			channel, text, author  sql.NullString
			rating                 sql.NullFloat64
			itemsRaw               []byte
			submitted              sql.NullTime
		)
		if err := rows.Scan(
			&rv.ID, &rv.ListingID, &rv.ListingName, &source, &sourceID, &rv.ExternalKey,
			&typ, &status, &channel, &rating, &itemsRaw,
			&text, &submitted, &author, &rv.Approved,
		); err != nil {
			return nil, err
		}
		rv.Source = domain.Source(source)
		rv.SourceReviewID = nullStr(sourceID)
		rv.Type = nullStr(typ)
		rv.Status = nullStr(status)
		rv.Channel = nullStr(channel)
		rv.PublicText = nullStr(text)
		rv.AuthorName = nullStr(author)
		if rating.Valid {
			v := rating.Float64
			rv.RatingOverall = &v
		}
		if submitted.Valid {
			t := submitted.Time.UTC()
			rv.SubmittedAt = &t
		}
		if len(itemsRaw) > 0 {
			_ = json.Unmarshal(itemsRaw, &rv.RatingItems)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) GetApprovalStates(ctx context.Context, ids []int64) (map[int64]bool, error) {
	if len(ids) == 0 {
		return map[int64]bool{}, nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, approved FROM reviews WHERE id IN ("+ph+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		var approved bool
		if err := rows.Scan(&id, &approved); err != nil {
			return nil, err
		}
		out[id] = approved
	}
	return out, rows.Err()
}

func (r *Repo) UpdateApprovalBatch(ctx context.Context, ids []int64, approved bool) error {
	if len(ids) == 0 {
		return nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, approved)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE reviews SET approved = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN ("+ph+")", args...)
	return err
}

func (r *Repo) AppendActivityLog(ctx context.Context, entries []domain.ActivityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*4)
	for _, e := range entries {
		values = append(values, "(?,?,?,?)")
		args = append(args, e.ReviewID, e.Action, e.Previous, e.Next)
	}
	_, err := r.db.ExecContext(ctx, insertActivitySQL+strings.Join(values, ","), args...)
	return err
}

func (r *Repo) ListActivity(ctx context.Context, action string, limit, offset int) ([]domain.ActivityLogEntry, error) {
	q := listActivitySQL
	var args []any
	if action != "" {
		q += " WHERE a.action = ?"
		args = append(args, action)
	}
	q += " ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityLogEntry
	for rows.Next() {
		var e domain.ActivityLogEntry
		if err := rows.Scan(&e.ID, &e.ReviewID, &e.ListingName, &e.Action, &e.Previous, &e.Next, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) ListListings(ctx context.Context) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, channel, external_id FROM listings ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		var l domain.Listing
		var channel, extID sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &channel, &extID); err != nil {
			return nil, err
		}
		l.Channel = nullStr(channel)
		l.ExternalID = nullStr(extID)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) InsertManagerResponse(ctx context.Context, m domain.ManagerResponse) (domain.ManagerResponse, error) {
	res, err := r.db.ExecContext(ctx, insertResponseSQL, m.ReviewID, m.Message, m.CreatedAt.UTC())
	if err != nil {
		return domain.ManagerResponse{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.ManagerResponse{}, err
	}
	m.ID = id
	return m, nil
}

func (r *Repo) ListManagerResponses(ctx context.Context, reviewID *int64) ([]domain.ManagerResponse, error) {
	q := "SELECT id, review_id, message, created_at FROM manager_responses"
	var args []any
	if reviewID != nil {
		q += " WHERE review_id = ?"
		args = append(args, *reviewID)
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ManagerResponse
	for rows.Next() {
		var m domain.ManagerResponse
		if err := rows.Scan(&m.ID, &m.ReviewID, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) GetAutoApprovalRules(ctx context.Context) (domain.AutoApprovalRules, error) {
	row := r.db.QueryRowContext(ctx, getRulesSQL)
	var threshold float64
	var channelsRaw []byte
	if err := row.Scan(&threshold, &channelsRaw); err != nil {
		if err == sql.ErrNoRows {
			return domain.DefaultAutoApprovalRules(), nil
		}
		return domain.AutoApprovalRules{}, err
	}
	rules := domain.AutoApprovalRules{RatingThreshold: threshold}
	_ = json.Unmarshal(channelsRaw, &rules.Channels)
	return rules, nil
}

func (r *Repo) SaveAutoApprovalRules(ctx context.Context, rules domain.AutoApprovalRules) error {
	channels, err := json.Marshal(rules.Channels)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, saveRulesSQL, rules.RatingThreshold, string(channels))
	return err
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
