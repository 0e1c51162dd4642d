// Command deskauth-loadtest measures refresh-token store latency under
// concurrent lookups and logout/login churn against redis (or miniredis).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/internal/secret"
	"github.com/MrEthical07/deskauth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type tokenState struct {
	userID string
	hash   string
	mu     sync.Mutex
}

type options struct {
	tokens      int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("deskauth-loadtest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.IntVar(&opts.tokens, "tokens", 100000, "number of refresh tokens to seed")
	fs.IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	fs.IntVar(&opts.ops, "ops", 200000, "operations per phase (lookup + churn)")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	fs.StringVar(&opts.prefix, "prefix", "deskauth-lt", "redis key prefix")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.tokens <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		fmt.Fprintln(stderr, "tokens, concurrency, and ops must be > 0")
		return 2
	}

	addr := opts.redisAddr
	if addr == "" {
		addr = getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(stderr, "failed to start miniredis: %v\n", err)
			return 1
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Fprintf(stdout, "using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Fprintf(stdout, "using redis at %s\n", addr)
	}
	defer cleanup()

	store := redisstore.New(client, redisstore.WithPrefix(opts.prefix))
	if err := store.Ping(ctx); err != nil {
		fmt.Fprintf(stderr, "redis unreachable: %v\n", err)
		return 1
	}

	states := make([]tokenState, opts.tokens)
	fmt.Fprintf(stdout, "seeding %d refresh tokens...\n", opts.tokens)
	startSeed := time.Now()
	for i := range states {
		states[i].userID = fmt.Sprintf("user-%d", i%1024)
		hash, err := issue(ctx, store, states[i].userID)
		if err != nil {
			fmt.Fprintf(stderr, "seed failed: %v\n", err)
			return 1
		}
		states[i].hash = hash
	}
	fmt.Fprintf(stdout, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookup := runLookupPhase(ctx, store, states, opts.ops, opts.concurrency)
	churn := runChurnPhase(ctx, store, states, opts.ops, opts.concurrency)

	fmt.Fprintln(stdout, "---- results ----")
	printStats(stdout, "lookup", lookup)
	printStats(stdout, "churn", churn)
	if lookup.failures > 0 || churn.failures > 0 {
		return 1
	}
	return 0
}

// issue stores a fresh refresh token for userID and returns its digest.
func issue(ctx context.Context, store *redisstore.Store, userID string) (string, error) {
	raw, err := secret.RandomToken(secret.RefreshTokenBytes)
	if err != nil {
		return "", err
	}
	now := time.Now()
	hash := secret.Hash(raw)
	err = store.CreateRefreshToken(ctx, deskauth.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		UserAgent: "deskauth-loadtest",
		IP:        "127.0.0.1",
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	})
	return hash, err
}

func runLookupPhase(ctx context.Context, store *redisstore.Store, states []tokenState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, _ int) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		hash := state.hash
		state.mu.Unlock()
		_, err := store.GetLiveRefreshToken(ctx, hash, time.Now())
		return err
	})
}

// runChurnPhase revokes a live token and issues its replacement, the store
// traffic of one logout followed by one login.
func runChurnPhase(ctx context.Context, store *redisstore.Store, states []tokenState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 6151, func(r *rand.Rand, _ int) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		defer state.mu.Unlock()

		n, err := store.RevokeRefreshToken(ctx, state.hash, time.Now())
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("revoked %d tokens, want 1", n)
		}
		next, err := issue(ctx, store, state.userID)
		if err != nil {
			return err
		}
		state.hash = next
		return nil
	})
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
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
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
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

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
