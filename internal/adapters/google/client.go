package google

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

// Typed results the ingestion boundary can branch on. Disabled (no
// credentials) is deliberately distinct from an upstream failure.
var (
	ErrDisabled     = errors.New("google places: disabled, missing API key")
	ErrNotFound     = errors.New("google places: not found")
	ErrUnauthorized = errors.New("google places: unauthorized")
	ErrUpstream     = errors.New("google places: upstream failure")
)

const defaultBase = "https://maps.googleapis.com/maps/api/place/details/json"

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

// New builds a Places client. An empty key is allowed; calls then
// return ErrDisabled so callers can report a disabled status instead of
// failing the run.
func New(base, key string, rps int) *Client {
	if base == "" {
		base = defaultBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Name    string           `json:"name"`
		Reviews []map[string]any `json:"reviews"`
	} `json:"result"`
}

// FetchReviews pulls the reviews array for a place. Retries transient
// failures with jittered backoff and honors Retry-After.
func (c *Client) FetchReviews(ctx context.Context, placeID string) (domain.PlaceReviews, error) {
	if c.key == "" {
		return domain.PlaceReviews{}, ErrDisabled
	}
	if placeID == "" {
		return domain.PlaceReviews{}, fmt.Errorf("%w: placeId required", domain.ErrValidation)
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "reviews,name")
	q.Set("key", c.key)

	var out detailsResponse
	if err := c.get(ctx, c.base+"?"+q.Encode(), &out); err != nil {
		return domain.PlaceReviews{}, err
	}
	// The details API reports request-level problems in-band.
	switch out.Status {
	case "OK":
	case "NOT_FOUND", "ZERO_RESULTS":
		return domain.PlaceReviews{}, ErrNotFound
	case "REQUEST_DENIED":
		return domain.PlaceReviews{}, ErrUnauthorized
	default:
		return domain.PlaceReviews{}, fmt.Errorf("%w: status %s", ErrUpstream, out.Status)
	}
	return domain.PlaceReviews{PlaceName: out.Result.Name, Reviews: out.Result.Reviews}, nil
}

// get performs a GET with client-side rate limiting, retries, and JSON
// decode into out. Retries on 429 and transient 5xx.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "flex-reviews/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("google_places", "details", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%w: remote %d", ErrUpstream, resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles per attempt (200ms, 400ms, 800ms...) with up to +50%
// jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
