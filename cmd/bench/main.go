// Command bench runs a synthetic memoization workload against one binding
// and exposes optional pprof/Prometheus endpoints.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/globalcache/cache"
	pmet "github.com/IvanBrykalov/globalcache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		limit    = flag.Int("limit", 10_000, "binding size limit (entries; -1 = unbounded)")
		keys     = flag.Int("keys", 100_000, "keyspace size")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "globalcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	reg := cache.New(cache.MapNamespace{}, cache.Options{Metrics: metrics})
	sizeLimit := *limit
	if sizeLimit < 0 {
		sizeLimit = cache.Unbounded
	}
	b, err := reg.Bind("bench", cache.Config{SizeLimit: sizeLimit})
	if err != nil {
		log.Fatal(err)
	}

	var lookups, stores, hits atomic.Int64
	stop := time.Now().Add(*duration)

	var wg sync.WaitGroup
	wg.Add(*workers)
	for w := 0; w < *workers; w++ {
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(*seed + int64(id)*9973))
			for time.Now().Before(stop) {
				k := rng.Intn(*keys)
				if rng.Intn(100) < *readPct {
					if _, ok, _ := b.Lookup([]any{k}, nil); ok {
						hits.Add(1)
					}
					lookups.Add(1)
				} else {
					_ = b.Store([]any{k}, nil, k*k)
					stores.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	total := lookups.Load()
	ratio := 0.0
	if total > 0 {
		ratio = float64(hits.Load()) / float64(total)
	}
	fmt.Printf("lookups=%d stores=%d hit_ratio=%.3f resident=%d\n",
		total, stores.Load(), ratio, b.Len())
}
