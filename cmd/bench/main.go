// Command bench scrolls concurrent viewports over a model backed by a slow
// synthetic provider and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/codec"
	"github.com/IvanBrykalov/pagecache/fetch"
	pmet "github.com/IvanBrykalov/pagecache/metrics/prom"
	"github.com/IvanBrykalov/pagecache/statestore"
)

func main() {
	// ---- Flags ----
	var (
		pageSize = flag.Int("page", cache.DefaultPageSize, "items per page")
		items    = flag.Int("items", 1_000_000, "items matching each query")
		latency  = flag.Duration("latency", 5*time.Millisecond, "mean provider latency")
		failPct  = flag.Int("fail", 0, "provider failure percentage [0..100]")

		maxConc  = flag.Int("concurrency", fetch.DefaultMaxConcurrent, "max concurrent provider calls")
		rps      = flag.Float64("rate", 0, "provider calls per second (0 = unlimited)")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of scrolling viewports")
		window   = flag.Int("window", 40, "rows read per viewport tick")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		requery  = flag.Duration("requery", 0, "switch to a new query this often (0 = never)")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		compression = flag.String("compression", "zstd", "state compression: none | lz4 | zstd")
		stateFile   = flag.String("state-file", "", "restore from and save to this file")
		stateBucket = flag.String("state-bucket", "", "restore from and save to this S3 bucket")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := newLogger(*debug)
	defer func() { _ = logger.Sync() }()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", zap.String("addr", *pprofAddr))
			logger.Warn("pprof server stopped", zap.Error(http.ListenAndServe(*pprofAddr, nil)))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "pagecache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("metrics: serving", zap.String("addr", *metricsAddr))
		logger.Warn("metrics server stopped", zap.Error(http.ListenAndServe(*metricsAddr, nil)))
	}()

	comp, err := parseCompression(*compression)
	if err != nil {
		logger.Fatal("bad flag", zap.Error(err))
	}

	// ---- Build model + fetch pipeline ----
	m := cache.New[string, string](cache.Options[string]{
		PageSize:    *pageSize,
		Compression: comp,
		Metrics:     metrics,
		Logger:      logger,
	})
	var calls, failures atomic.Uint64
	provider := syntheticProvider(*items, *latency, *failPct, &calls, &failures)
	coord := fetch.Bind[string, string](m, provider, fetch.Options{
		MaxConcurrent: *maxConc,
		RateLimit:     *rps,
		Burst:         *maxConc,
		Logger:        logger,
	})

	ctx := context.Background()
	store, key, err := openStore(ctx, *stateFile, *stateBucket)
	if err != nil {
		logger.Fatal("state store", zap.Error(err))
	}
	if store != nil {
		switch err := statestore.RestoreModel(ctx, store, key, m); {
		case err == nil:
			q, _ := m.Query()
			logger.Info("resumed", zap.String("query", q), zap.Int("size", m.Size()), zap.Int("segments", m.Len()))
		case errors.Is(err, statestore.ErrNotFound):
			logger.Info("no saved state, starting fresh")
		default:
			logger.Warn("saved state ignored", zap.Error(err))
		}
	}
	if _, ok := m.Query(); !ok {
		m.SetQuery("q0")
	}

	// ---- Load generation ----
	var reads, hits, placeholders uint64
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	if *requery > 0 {
		go func() {
			t := time.NewTicker(*requery)
			defer t.Stop()
			for n := 1; ; n++ {
				select {
				case <-runCtx.Done():
					return
				case <-t.C:
					m.SetQuery("q" + strconv.Itoa(n))
				}
			}
		}()
	}

	workersN := max(*workers, 1)
	windowN := max(*window, 1)
	itemsN := max(*items, 1)
	seedBase := *seed

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each viewport has its own RNG (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			top := r.Intn(itemsN)

			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}

				for pos := top; pos < top+windowN && pos < itemsN; pos++ {
					atomic.AddUint64(&reads, 1)
					if m.GetItem(pos) == "" {
						atomic.AddUint64(&placeholders, 1)
					} else {
						atomic.AddUint64(&hits, 1)
					}
				}

				// Mostly scroll forward a little, sometimes jump.
				switch n := r.Intn(100); {
				case n < 80:
					top += r.Intn(windowN/2 + 1)
				case n < 95:
					top -= r.Intn(windowN/2 + 1)
				default:
					top = r.Intn(itemsN)
				}
				top = min(max(top, 0), itemsN-1)
				time.Sleep(time.Millisecond) // frame pacing
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Persist ----
	if store != nil {
		if err := statestore.SaveModel(ctx, store, key, m); err != nil {
			logger.Error("saving state failed", zap.Error(err))
		} else {
			logger.Info("state saved", zap.String("key", key), zap.Int("segments", m.Len()))
		}
	}
	_ = coord.Close()

	// ---- Report ----
	readsN := atomic.LoadUint64(&reads)
	hitsN := atomic.LoadUint64(&hits)
	phN := atomic.LoadUint64(&placeholders)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}
	st := m.Stats()

	fmt.Printf("page=%d items=%d workers=%d window=%d latency=%v dur=%v seed=%d\n",
		*pageSize, *items, workersN, windowN, *latency, elapsed, seedBase)
	fmt.Printf("reads=%d (%.0f reads/s)  loaded=%d  placeholders=%d  hit-rate=%.2f%%\n",
		readsN, float64(readsN)/elapsed.Seconds(), hitsN, phN, hitRate)
	fmt.Printf("provider calls=%d failures=%d  segments=%d size=%d\n",
		calls.Load(), failures.Load(), st.Segments, st.Size)
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger.With(zap.String("cmd", "bench"))
}

// syntheticProvider serves "<query>:<position>" for positions below items,
// sleeping around latency and failing failPct percent of calls.
func syntheticProvider(items int, latency time.Duration, failPct int, calls, failures *atomic.Uint64) fetch.Provider[string, string] {
	return fetch.ProviderFunc[string, string](func(ctx context.Context, q string, start, length int) (fetch.Result[string], error) {
		calls.Add(1)
		d := latency/2 + time.Duration(rand.Int63n(int64(latency)+1))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return fetch.Result[string]{}, ctx.Err()
		}
		if rand.Intn(100) < failPct {
			failures.Add(1)
			return fetch.Result[string]{}, errors.Newf("synthetic failure at %d", start)
		}

		end := min(start+length, items)
		out := make([]string, 0, max(end-start, 0))
		for p := start; p < end; p++ {
			out = append(out, q+":"+strconv.Itoa(p))
		}
		return fetch.Result[string]{Items: out, Total: items}, nil
	})
}

func parseCompression(s string) (codec.Compression, error) {
	for _, c := range []codec.Compression{codec.None, codec.LZ4, codec.Zstd} {
		if c.String() == s {
			return c, nil
		}
	}
	return codec.None, errors.Wrapf(codec.ErrUnknownCompression, "%q", s)
}

// openStore picks the state backend from the flags. It returns a nil store
// when persistence is off.
func openStore(ctx context.Context, file, bucket string) (statestore.Store, string, error) {
	switch {
	case file != "" && bucket != "":
		return nil, "", errors.New("use only one of -state-file and -state-bucket")
	case file != "":
		s, err := statestore.NewFile(filepath.Dir(file))
		return s, filepath.Base(file), err
	case bucket != "":
		s, err := statestore.NewS3FromEnv(ctx, bucket, "pagecache-bench")
		return s, "model", err
	}
	return nil, "", nil
}
