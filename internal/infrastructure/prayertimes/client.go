package prayertimes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/cache"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

const maxResponseBytes = 1 << 20

// Config configures the timings api client.
type Config struct {
	BaseURL string
	// Method is the calculation method used when the location does not name one.
	Method            int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// DefaultConfig returns settings for the public aladhan api.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.aladhan.com/v1",
		Method:            2,
		RequestsPerSecond: 5,
		Burst:             5,
		Timeout:           5 * time.Second,
	}
}

// FetchMetrics receives one result per schedule lookup.
type FetchMetrics interface {
	RecordScheduleFetch(result string)
}

// Client implements domain.ObligationScheduleProvider against an
// aladhan-compatible timings api. schedules are cached per location and
// local date, concurrent lookups for the same key share one request, and
// outbound requests are rate limited.
type Client struct {
	http    *http.Client
	baseURL string
	method  int
	timeout time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
	cache   *cache.ScheduleCache
	metrics FetchMetrics
	logger  *logging.Logger
}

// NewClient creates a timings client.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		method:  cfg.Method,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, burst),
		cache:   cache.NewScheduleCache(),
		logger:  logger.WithComponent("prayertimes"),
	}
}

// WithHTTPClient replaces the http client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithMetrics sets the fetch metrics sink.
func (c *Client) WithMetrics(m FetchMetrics) *Client {
	c.metrics = m
	return c
}

// PruneCache drops schedules whose day ended before now and returns how many
// were removed.
func (c *Client) PruneCache(now time.Time) int {
	return c.cache.Cleanup(now)
}

// ScheduleForToday returns the five daily prayers for the location's current date.
// every failure wraps domain.ErrProviderUnavailable.
func (c *Client) ScheduleForToday(ctx context.Context, location domain.Location, now time.Time) (domain.ObligationSchedule, error) {
	tz := time.UTC
	if location.TimeZone != "" {
		loaded, err := time.LoadLocation(location.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown time zone %q", domain.ErrProviderUnavailable, location.TimeZone)
		}
		tz = loaded
	}

	method := location.Method
	if method <= 0 {
		method = c.method
	}

	local := now.In(tz)
	date := local.Format("02-01-2006")
	key := fmt.Sprintf("%.4f,%.4f,%d,%s:%s", location.Latitude, location.Longitude, method, tz.String(), date)

	if schedule, ok := c.cache.Get(key, now); ok {
		c.record("cache_hit")
		return schedule, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// shared by every waiter, so it must outlive any single caller
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		schedule, err := c.fetch(fetchCtx, location, method, date, tz)
		if err != nil {
			return nil, err
		}
		y, m, d := local.Date()
		c.cache.Set(key, schedule, time.Date(y, m, d+1, 0, 0, 0, 0, tz))
		return schedule, nil
	})

	select {
	case <-ctx.Done():
		c.record("timeout")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			c.record("error")
			c.logger.ScheduleFetchFailed(date, res.Err)
			return nil, res.Err
		}
		c.record("fetched")
		schedule := res.Val.(domain.ObligationSchedule)
		out := make(domain.ObligationSchedule, len(schedule))
		copy(out, schedule)
		return out, nil
	}
}

// timingsResponse is the subset of the api payload we read.
type timingsResponse struct {
	Data struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

var apiNames = map[string]string{
	domain.ObligationFajr:    "Fajr",
	domain.ObligationDhuhr:   "Dhuhr",
	domain.ObligationAsr:     "Asr",
	domain.ObligationMaghrib: "Maghrib",
	domain.ObligationIsha:    "Isha",
}

func (c *Client) fetch(ctx context.Context, location domain.Location, method int, date string, tz *time.Location) (domain.ObligationSchedule, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limited: %v", domain.ErrProviderUnavailable, err)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(location.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(location.Longitude, 'f', -1, 64))
	q.Set("method", strconv.Itoa(method))
	endpoint := fmt.Sprintf("%s/timings/%s?%s", c.baseURL, date, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", domain.ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var payload timingsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding timings: %v", domain.ErrProviderUnavailable, err)
	}

	schedule, err := parseTimings(payload.Data.Timings, date, tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	c.logger.ScheduleFetched(date, location.Latitude, location.Longitude, len(schedule))
	return schedule, nil
}

// parseTimings turns "HH:MM" (optionally suffixed " (+03)") values into
// instants on the given date, in StandardObligations order.
func parseTimings(timings map[string]string, date string, tz *time.Location) (domain.ObligationSchedule, error) {
	day, err := time.ParseInLocation("02-01-2006", date, tz)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}

	schedule := make(domain.ObligationSchedule, 0, len(apiNames))
	for _, name := range domain.StandardObligations() {
		raw, ok := timings[apiNames[name]]
		if !ok {
			return nil, fmt.Errorf("missing %s timing", apiNames[name])
		}
		clock, _, _ := strings.Cut(strings.TrimSpace(raw), " ")
		hm, err := time.Parse("15:04", clock)
		if err != nil {
			return nil, fmt.Errorf("parsing %s timing %q: %w", apiNames[name], raw, err)
		}
		schedule = append(schedule, domain.Obligation{
			Name: name,
			At:   time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, tz),
		})
	}
	return schedule, nil
}

func (c *Client) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordScheduleFetch(result)
	}
}
