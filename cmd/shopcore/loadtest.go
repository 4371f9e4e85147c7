package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	mrand "math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	shopcore "github.com/MrEthical07/shopcore"
	"github.com/MrEthical07/shopcore/catalog"
	"github.com/MrEthical07/shopcore/envconfig"
	"github.com/MrEthical07/shopcore/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	pages       int
	loadDelay   time.Duration
	metrics     bool
}

type sessionState struct {
	id      shopcore.Identity
	refresh string
	mu      sync.Mutex
}

func newLoadtestCmd(root *rootOptions) *cobra.Command {
	opts := &loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure refresh rotation and catalog read throughput",
		Long: `loadtest seeds sessions, then runs a refresh phase (concurrent rotations,
some deliberately racing on the same session) and a catalog phase (reads
over a fixed set of pages through the cache). Without REDIS_ADDR it runs
against an in-process miniredis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.pages <= 0 {
				return errors.New("sessions, concurrency, ops and pages must be > 0")
			}
			s, err := root.settings()
			if err != nil {
				return err
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), s, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	f.IntVar(&opts.concurrency, "concurrency", 128, "number of concurrent workers")
	f.IntVar(&opts.ops, "ops", 100000, "operations per phase")
	f.IntVar(&opts.pages, "pages", 50, "distinct catalog pages to read")
	f.DurationVar(&opts.loadDelay, "load-delay", 2*time.Millisecond, "simulated source latency per catalog load")
	f.BoolVar(&opts.metrics, "metrics", false, "print engine metrics in Prometheus format at the end")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, s *envconfig.Settings, opts *loadtestOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, cleanup, err := connectRedis(out, s)
	if err != nil {
		return err
	}
	defer cleanup()

	if s.JWTSigningMethod == "hs256" && s.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		s.JWTSecret = secret
		fmt.Fprintln(out, "JWT_SECRET not set; using an ephemeral key")
	}
	cfg, err := s.EngineConfig()
	if err != nil {
		return err
	}

	engine, err := shopcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(log.New(io.Discard, "", 0)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	states := make([]sessionState, opts.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	startSeed := time.Now()
	for i := range states {
		id := shopcore.Identity{UserID: int64(i + 1)}
		bearer, err := engine.IssueToken(id)
		if err != nil {
			return err
		}
		tok, err := engine.AddToken(ctx, id, bearer)
		if err != nil {
			return fmt.Errorf("seed session %d: %w", i, err)
		}
		states[i].id = id
		states[i].refresh = tok.RefreshToken
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	refreshStats := runRefreshPhase(ctx, engine, states, opts.ops, opts.concurrency)
	catalogStats := runCatalogPhase(ctx, engine, opts)

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "refresh", refreshStats)
	printStats(out, "catalog", catalogStats)

	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "refresh conflicts=%d catalog hits=%d misses=%d\n",
		snap.Counters[shopcore.MetricRefreshConflict],
		snap.Counters[shopcore.MetricCatalogHit],
		snap.Counters[shopcore.MetricCatalogMiss],
	)
	if opts.metrics {
		fmt.Fprint(out, prometheus.NewPrometheusExporter(engine).Render())
	}
	return nil
}

func connectRedis(out io.Writer, s *envconfig.Settings) (redis.UniversalClient, func(), error) {
	if s.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{s.RedisAddr},
		Password: s.RedisPassword,
		DB:       s.RedisDB,
	})
	fmt.Fprintf(out, "using redis at %s\n", s.RedisAddr)
	return client, func() { _ = client.Close() }, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// runRefreshPhase rotates random sessions. Every tenth operation releases
// the session lock during the call, so it may race another rotation and
// lose with ErrConflict or ErrNotFound. Lost races are counted apart from
// failures.
func runRefreshPhase(ctx context.Context, engine *shopcore.Engine, states []sessionState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		lost      int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				racing := i%10 == 0
				state.mu.Lock()
				refresh := state.refresh
				if racing {
					state.mu.Unlock()
				}
				t0 := time.Now()
				next, err := engine.RefreshToken(ctx, refresh, state.id)
				d := time.Since(t0)
				if racing {
					state.mu.Lock()
				}
				switch {
				case err == nil:
					if state.refresh == refresh {
						state.refresh = next.RefreshToken
					}
				case errors.Is(err, shopcore.ErrConflict), errors.Is(err, shopcore.ErrNotFound):
					atomic.AddInt64(&lost, 1)
				default:
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	stats := computeStats(time.Since(start), latencies, failures)
	stats.lost = lost
	return stats
}

func runCatalogPhase(ctx context.Context, engine *shopcore.Engine, opts *loadtestOptions) phaseStats {
	loader := func(ctx context.Context, q catalog.Query) (catalog.Page, error) {
		select {
		case <-time.After(opts.loadDelay):
		case <-ctx.Done():
			return catalog.Page{}, ctx.Err()
		}
		items := make([]catalog.Item, q.Limit)
		for i := range items {
			id := int64(q.Offset() + i + 1)
			items[i] = catalog.Item{ID: id, Name: fmt.Sprintf("item-%d", id), Price: float64(id)}
		}
		return catalog.Page{Items: items, TotalPages: opts.pages}, nil
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					return
				}
				q := catalog.Query{Page: r.Intn(opts.pages), Limit: 10}
				t0 := time.Now()
				_, err := engine.GetOrLoad(ctx, q, loader)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	lost     int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
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

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d lost-races=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.lost,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
