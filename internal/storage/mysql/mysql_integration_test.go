//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"flex_reviews/internal/domain"
	mysqlrepo "flex_reviews/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=reviews",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "reviews")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

// ---------- the test ----------
func TestRepo_MySQL_UpsertAndQuery(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Listings dedupe on the name natural key
	l1, err := repo.UpsertListingByName(ctx, domain.Listing{Name: "Shoreditch Heights", Channel: pstr("Hostaway")})
	if err != nil {
		t.Fatalf("UpsertListingByName: %v", err)
	}
	l1again, err := repo.UpsertListingByName(ctx, domain.Listing{Name: "Shoreditch Heights", Channel: pstr("Hostaway")})
	if err != nil {
		t.Fatalf("UpsertListingByName (repeat): %v", err)
	}
	if l1.ID == 0 || l1.ID != l1again.ID {
		t.Fatalf("listing ids: %d vs %d", l1.ID, l1again.ID)
	}

	submitted := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	n := domain.NormalizedReview{
		Source:         domain.SourceHostaway,
		SourceReviewID: pstr("7453"),
		ListingName:    "Shoreditch Heights",
		Type:           pstr("guest-to-host"),
		Status:         pstr("published"),
		RatingOverall:  pfloat(8),
		RatingItems:    map[string]float64{"cleanliness": 9},
		PublicText:     pstr("Great stay"),
		SubmittedAt:    &submitted,
		AuthorName:     pstr("Alice"),
		Channel:        pstr("Airbnb"),
	}
	if err := repo.UpsertReviewByExternalKey(ctx, l1.ID, n); err != nil {
		t.Fatalf("UpsertReviewByExternalKey: %v", err)
	}

	rows, err := repo.FindReviews(ctx, domain.ReviewFilter{})
	if err != nil {
		t.Fatalf("FindReviews: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 review, got %d", len(rows))
	}
	got := rows[0]
	if got.ListingName != "Shoreditch Heights" || got.ExternalKey != "hostaway:7453" {
		t.Fatalf("review identity: %+v", got)
	}
	if got.RatingOverall == nil || *got.RatingOverall != 8 || got.RatingItems["cleanliness"] != 9 {
		t.Fatalf("ratings: %+v", got)
	}
	if got.Approved {
		t.Fatalf("new reviews must start unapproved")
	}

	// Approve, then re-ingest with a changed rating: the provider field
	// updates but the moderation state survives.
	if err := repo.UpdateApprovalBatch(ctx, []int64{got.ID}, true); err != nil {
		t.Fatalf("UpdateApprovalBatch: %v", err)
	}
	n.RatingOverall = pfloat(9)
	if err := repo.UpsertReviewByExternalKey(ctx, l1.ID, n); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	rows, err = repo.FindReviews(ctx, domain.ReviewFilter{})
	if err != nil {
		t.Fatalf("FindReviews: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("re-upsert must not duplicate, got %d rows", len(rows))
	}
	if *rows[0].RatingOverall != 9 || !rows[0].Approved {
		t.Fatalf("after re-upsert: rating=%v approved=%v", *rows[0].RatingOverall, rows[0].Approved)
	}

	// Approval states map
	states, err := repo.GetApprovalStates(ctx, []int64{got.ID, 99999})
	if err != nil {
		t.Fatalf("GetApprovalStates: %v", err)
	}
	if v, ok := states[got.ID]; !ok || !v {
		t.Fatalf("approval state: %v", states)
	}
	if _, ok := states[99999]; ok {
		t.Fatalf("unknown id must be absent from states")
	}

	// Activity log round trip (joined with listing name)
	if err := repo.AppendActivityLog(ctx, []domain.ActivityLogEntry{
		{ReviewID: got.ID, Action: domain.ActionApprove, Previous: false, Next: true},
	}); err != nil {
		t.Fatalf("AppendActivityLog: %v", err)
	}
	acts, err := repo.ListActivity(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(acts) != 1 || acts[0].ListingName != "Shoreditch Heights" || acts[0].Action != domain.ActionApprove {
		t.Fatalf("activity: %+v", acts)
	}
	if acts, _ = repo.ListActivity(ctx, domain.ActionUnapprove, 10, 0); len(acts) != 0 {
		t.Fatalf("action filter leaked: %+v", acts)
	}
}

func TestRepo_MySQL_RulesAndResponses(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Defaults before any row exists
	rules, err := repo.GetAutoApprovalRules(ctx)
	if err != nil {
		t.Fatalf("GetAutoApprovalRules: %v", err)
	}
	if rules.RatingThreshold != 8 || len(rules.Channels) == 0 {
		t.Fatalf("default rules: %+v", rules)
	}

	if err := repo.SaveAutoApprovalRules(ctx, domain.AutoApprovalRules{
		RatingThreshold: 7.5, Channels: []string{"Airbnb"},
	}); err != nil {
		t.Fatalf("SaveAutoApprovalRules: %v", err)
	}
	rules, err = repo.GetAutoApprovalRules(ctx)
	if err != nil {
		t.Fatalf("GetAutoApprovalRules: %v", err)
	}
	if rules.RatingThreshold != 7.5 || len(rules.Channels) != 1 || rules.Channels[0] != "Airbnb" {
		t.Fatalf("saved rules: %+v", rules)
	}

	// Responses need a review row for the FK
	l, err := repo.UpsertListingByName(ctx, domain.Listing{Name: "Camden Loft"})
	if err != nil {
		t.Fatalf("UpsertListingByName: %v", err)
	}
	if err := repo.UpsertReviewByExternalKey(ctx, l.ID, domain.NormalizedReview{
		Source: domain.SourceManual, SourceReviewID: pstr("m-1"), ListingName: "Camden Loft",
	}); err != nil {
		t.Fatalf("UpsertReviewByExternalKey: %v", err)
	}
	reviews, err := repo.FindReviews(ctx, domain.ReviewFilter{})
	if err != nil || len(reviews) != 1 {
		t.Fatalf("FindReviews: %v (%d rows)", err, len(reviews))
	}

	saved, err := repo.InsertManagerResponse(ctx, domain.ManagerResponse{
		ReviewID: reviews[0].ID, Message: "Thanks!", CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertManagerResponse: %v", err)
	}
	if saved.ID == 0 {
		t.Fatalf("response id not assigned")
	}
	list, err := repo.ListManagerResponses(ctx, &reviews[0].ID)
	if err != nil || len(list) != 1 || list[0].Message != "Thanks!" {
		t.Fatalf("ListManagerResponses: %v %+v", err, list)
	}
}
