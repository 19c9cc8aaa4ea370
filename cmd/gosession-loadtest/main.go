package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakeapi"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
)

func main() {
	var (
		waves        = flag.Int("waves", 20, "number of expiry waves")
		concurrency  = flag.Int("concurrency", 256, "concurrent requests per wave")
		refreshDelay = flag.Duration("refresh-delay", 20*time.Millisecond, "artificial latency of the refresh endpoint")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		refreshLimit = flag.Int("refresh-limit", 0, "server-side refresh exchanges allowed per second; 0 disables the throttle")
		showMetrics  = flag.Bool("metrics", false, "print client metrics in Prometheus format")
		verbose      = flag.Bool("v", false, "log client activity to stderr")
	)
	flag.Parse()

	if *waves <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "waves and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	logLevel := hclog.Warn
	if *verbose {
		logLevel = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "loadtest",
		Level:  logLevel,
		Output: os.Stderr,
	})

	issuer, err := fakeapi.NewIssuer(5 * time.Minute)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issuer: %v\n", err)
		os.Exit(1)
	}
	api, err := fakeapi.New(fakeapi.Config{
		Redis:         rdb,
		Issuer:        issuer,
		Prefix:        "loadtest",
		Logger:        logger,
		RefreshLimit:  *refreshLimit,
		RefreshWindow: time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake api: %v\n", err)
		os.Exit(1)
	}
	api.SetRefreshDelay(*refreshDelay)
	srv := httptest.NewServer(api)
	defer srv.Close()

	client, err := newClient(ctx, api, srv.URL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	var all []waveStats
	for w := 0; w < *waves; w++ {
		expired, err := api.IssueExpired("loadtest")
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue: %v\n", err)
			os.Exit(1)
		}
		if _, err := client.BeginSession(ctx, expired); err != nil {
			fmt.Fprintf(os.Stderr, "begin session: %v\n", err)
			os.Exit(1)
		}

		before := api.Exchanges()
		stats := runWave(ctx, client, srv.URL, *concurrency)
		stats.exchanges = api.Exchanges() - before
		all = append(all, stats)
	}

	fmt.Println("---- results ----")
	for i, s := range all {
		printStats(fmt.Sprintf("wave %02d", i+1), s)
	}
	printStats("overall", merge(all))

	if *showMetrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.NewPrometheusExporter(client).Render())
	}
}

func newClient(ctx context.Context, api *fakeapi.Server, baseURL string, logger hclog.Logger) (*goSession.Client, error) {
	_, cookie, err := api.Login(ctx, "loadtest")
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(baseURL + "/auth/refresh")
	if err != nil {
		return nil, err
	}
	jar.SetCookies(u, []*http.Cookie{cookie})

	cfg := goSession.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 512

	return goSession.New().
		WithConfig(cfg).
		WithHTTPClient(&http.Client{Jar: jar, Transport: transport}).
		WithLogger(logger).
		Build()
}

type waveStats struct {
	total     time.Duration
	requests  int
	failures  int64
	exchanges int64
	samples   []time.Duration
}

func runWave(ctx context.Context, client *goSession.Client, baseURL string, concurrency int) waveStats {
	var (
		wg        sync.WaitGroup
		failures  int64
		latencies = make([]time.Duration, concurrency)
	)

	start := time.Now()
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/items/%d", baseURL, i), nil)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}
			t0 := time.Now()
			resp, err := client.Send(ctx, req)
			latencies[i] = time.Since(t0)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				atomic.AddInt64(&failures, 1)
			}
		}(i)
	}
	wg.Wait()

	return waveStats{
		total:    time.Since(start),
		requests: concurrency,
		failures: failures,
		samples:  latencies,
	}
}

func merge(waves []waveStats) waveStats {
	var out waveStats
	for _, w := range waves {
		out.total += w.total
		out.requests += w.requests
		out.failures += w.failures
		out.exchanges += w.exchanges
		out.samples = append(out.samples, w.samples...)
	}
	return out
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s waveStats) {
	samples := append([]time.Duration(nil), s.samples...)
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	fmt.Printf("%s: requests=%d failures=%d exchanges=%d total=%s p50=%s p95=%s p99=%s\n",
		name,
		s.requests,
		s.failures,
		s.exchanges,
		s.total.Round(time.Millisecond),
		percentile(samples, 50).Round(time.Microsecond),
		percentile(samples, 95).Round(time.Microsecond),
		percentile(samples, 99).Round(time.Microsecond),
	)
}
