package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goToken "github.com/MrEthical07/goToken"
)

// runLoadtest issues tokens for synthetic subjects, then measures Verify
// against the configured store and finally RevokeToken for each refresh id.
func runLoadtest(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subjects := fs.Int("subjects", 1000, "number of subjects to issue tokens for")
	concurrency := fs.Int("concurrency", 64, "number of concurrent workers")
	ops := fs.Int("ops", 20000, "verify operations")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *subjects <= 0 || *concurrency <= 0 || *ops <= 0 {
		return errUsage
	}

	pairs := make([]goToken.TokenPair, *subjects)
	startSeed := time.Now()
	for i := range pairs {
		pair, err := a.engine.IssuePair(goToken.Principal{ID: "load-" + strconv.Itoa(i), IsActive: true})
		if err != nil {
			return err
		}
		pairs[i] = pair
	}
	fmt.Fprintf(out, "issued %d pairs in %s\n", len(pairs), time.Since(startSeed).Round(time.Millisecond))

	verify := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := a.engine.Verify(ctx, pairs[r.Intn(len(pairs))].AccessToken, goToken.TokenAccess)
		return err
	})
	revoke := runPhase(len(pairs), *concurrency, func(_ *rand.Rand, i int) error {
		p := pairs[i]
		return a.engine.RevokeToken(ctx, p.RefreshJTI, "load-"+strconv.Itoa(i), goToken.TokenRefresh, "loadtest")
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "verify", verify)
	printStats(out, "revoke", revoke)
	return nil
}

// runPhase calls op exactly n times across workers and collects latencies.
func runPhase(n, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, n)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
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

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
