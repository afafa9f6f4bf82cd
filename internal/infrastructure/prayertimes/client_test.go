package prayertimes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

const timingsBody = `{
	"code": 200,
	"status": "OK",
	"data": {
		"timings": {
			"Fajr": "04:35",
			"Sunrise": "05:58",
			"Dhuhr": "12:21",
			"Asr": "15:42 (+03)",
			"Maghrib": "18:44",
			"Isha": "20:14"
		}
	}
}`

type recordingMetrics struct {
	mu      sync.Mutex
	results []string
}

func (m *recordingMetrics) RecordScheduleFetch(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.RequestsPerSecond = 0
	return NewClient(cfg, logging.NewNop()), &hits
}

func riyadh() domain.Location {
	return domain.Location{Latitude: 24.7136, Longitude: 46.6753, Method: 4, TimeZone: "Asia/Riyadh"}
}

func TestScheduleForToday_ParsesAndCaches(t *testing.T) {
	var gotPath, gotMethod string
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.URL.Query().Get("method")
		_, _ = fmt.Fprint(w, timingsBody)
	})
	metrics := &recordingMetrics{}
	client.WithMetrics(metrics)

	tz, err := time.LoadLocation("Asia/Riyadh")
	require.NoError(t, err)
	// 22:30 UTC on the 9th is already the 10th in riyadh
	now := time.Date(2026, 5, 9, 22, 30, 0, 0, time.UTC)

	schedule, err := client.ScheduleForToday(context.Background(), riyadh(), now)
	require.NoError(t, err)

	assert.Equal(t, "/timings/10-05-2026", gotPath)
	assert.Equal(t, "4", gotMethod)
	require.Len(t, schedule, 5)
	assert.Equal(t, domain.ObligationFajr, schedule[0].Name)
	assert.True(t, schedule[0].At.Equal(time.Date(2026, 5, 10, 4, 35, 0, 0, tz)))
	assert.True(t, schedule[2].At.Equal(time.Date(2026, 5, 10, 15, 42, 0, 0, tz)), "suffix after the clock is ignored")

	_, err = client.ScheduleForToday(context.Background(), riyadh(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, []string{"fetched", "cache_hit"}, metrics.results)

	// next local day in riyadh misses the cache
	_, err = client.ScheduleForToday(context.Background(), riyadh(), now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestScheduleForToday_DefaultMethod(t *testing.T) {
	var gotMethod string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.URL.Query().Get("method")
		_, _ = fmt.Fprint(w, timingsBody)
	})

	loc := riyadh()
	loc.Method = 0
	_, err := client.ScheduleForToday(context.Background(), loc, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2", gotMethod)
}

func TestScheduleForToday_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `{"data":`)
		}},
		{"missing prayer", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `{"data":{"timings":{"Fajr":"04:35"}}}`)
		}},
		{"bad clock", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `{"data":{"timings":{"Fajr":"soon","Dhuhr":"12:00","Asr":"15:00","Maghrib":"18:00","Isha":"20:00"}}}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)

			_, err := client.ScheduleForToday(context.Background(), riyadh(), time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
		})
	}
}

func TestScheduleForToday_UnknownTimeZone(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, timingsBody)
	})

	loc := riyadh()
	loc.TimeZone = "Nowhere/Atlantis"
	_, err := client.ScheduleForToday(context.Background(), loc, time.Now())
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestScheduleForToday_CallerDeadline(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = fmt.Fprint(w, timingsBody)
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ScheduleForToday(ctx, riyadh(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestScheduleForToday_ConcurrentCallsShareRequest(t *testing.T) {
	release := make(chan struct{})
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = fmt.Fprint(w, timingsBody)
	})

	now := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ScheduleForToday(context.Background(), riyadh(), now)
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestPruneCache_DropsPastDays(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, timingsBody)
	})

	now := time.Date(2020, 1, 2, 9, 0, 0, 0, time.UTC)
	_, err := client.ScheduleForToday(context.Background(), riyadh(), now)
	require.NoError(t, err)

	// still the 2nd in riyadh, nothing to drop
	assert.Equal(t, 0, client.PruneCache(now.Add(time.Hour)))
	assert.Equal(t, 1, client.PruneCache(now.Add(24*time.Hour)))
	assert.Equal(t, 0, client.PruneCache(now.Add(24*time.Hour)))
}
