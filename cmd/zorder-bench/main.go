package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"zorderidx/store"
	"zorderidx/utils"
)

type scenario struct {
	dims int
	n    int
}

type scenarioResult struct {
	scenario
	byteSize          int
	rangeTrials       int
	avgRangeMicros    float64
	p95RangeMicros    float64
	avgRangeHits      float64
	nnTrials          int
	avgNNFirst8Micros float64
	p95NNFirst8Micros float64
}

func main() {
	var (
		outPath    = flag.String("out", "zorder-bench/results.csv", "output CSV path")
		nsArg      = flag.String("n", "1000,10000,100000", "comma-separated point counts")
		dimsArg    = flag.String("dims", "2,4", "comma-separated dimensionalities (2 and/or 4)")
		rectTrials = flag.Int("rect-trials", 200, "random range queries per scenario")
		nnTrials   = flag.Int("nn-trials", 200, "random nearest-neighbor queries per scenario")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "base RNG seed")
	)
	flag.Parse()

	ns := parseCSVInts(*nsArg)
	dimsList := parseCSVInts(*dimsArg)
	if len(ns) == 0 || len(dimsList) == 0 {
		fail("n and dims must be non-empty")
	}

	if err := os.MkdirAll(dirOf(*outPath), 0o755); err != nil {
		fail("failed to create output directory: %v", err)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		fail("failed to create output file: %v", err)
	}
	defer f.Close()

	wr := csv.NewWriter(f)
	defer wr.Flush()
	mustWrite(wr, []string{
		"dims", "n", "byte_size", "range_trials", "avg_range_micros", "p95_range_micros",
		"avg_range_hits", "nn_trials", "avg_nn_first8_micros", "p95_nn_first8_micros",
	})

	var scenarios []scenario
	for _, d := range dimsList {
		for _, n := range ns {
			scenarios = append(scenarios, scenario{dims: d, n: n})
		}
	}

	for idx, sc := range scenarios {
		fmt.Printf("[%d/%d] dims=%d n=%d ...\n", idx+1, len(scenarios), sc.dims, sc.n)
		res := runScenario(sc, *rectTrials, *nnTrials, *seed+int64(idx)*1_000_003)
		mustWrite(wr, []string{
			strconv.Itoa(res.dims),
			strconv.Itoa(res.n),
			strconv.Itoa(res.byteSize),
			strconv.Itoa(res.rangeTrials),
			fmt.Sprintf("%.2f", res.avgRangeMicros),
			fmt.Sprintf("%.2f", res.p95RangeMicros),
			fmt.Sprintf("%.2f", res.avgRangeHits),
			strconv.Itoa(res.nnTrials),
			fmt.Sprintf("%.2f", res.avgNNFirst8Micros),
			fmt.Sprintf("%.2f", res.p95NNFirst8Micros),
		})
		wr.Flush()

		report := utils.PointStoreReport(fmt.Sprintf("store(dims=%d,n=%d)", sc.dims, sc.n), sc.n, res.byteSize)
		report.Print(1)
		fmt.Printf("  resident size: %s\n", humanize.Bytes(uint64(res.byteSize)))
	}

	fmt.Printf("done: %s\n", *outPath)
}

func runScenario(sc scenario, rectTrials, nnTrials int, seed int64) scenarioResult {
	r := rand.New(rand.NewSource(seed))
	s := store.NewStore(sc.dims)
	domain := uint32(1) << uint(16)
	if sc.dims == 2 {
		domain = 1 << 24
	}

	coords := make([][]uint32, sc.n)
	for i := 0; i < sc.n; i++ {
		c := make([]uint32, sc.dims)
		for j := range c {
			c[j] = uint32(r.Int63n(int64(domain)))
		}
		s.Insert(c...)
		coords[i] = c
	}

	rangeMicros := make([]float64, 0, rectTrials)
	rangeHitsInt := make([]int, 0, rectTrials)
	for t := 0; t < rectTrials; t++ {
		lo := make([]uint32, sc.dims)
		hi := make([]uint32, sc.dims)
		for j := 0; j < sc.dims; j++ {
			a := uint32(r.Int63n(int64(domain)))
			b := uint32(r.Int63n(int64(domain)))
			if a > b {
				a, b = b, a
			}
			lo[j], hi[j] = a, b
		}
		start := time.Now()
		it := s.QueryRange(lo, hi)
		hits := 0
		for it.Next() {
			hits++
		}
		rangeMicros = append(rangeMicros, float64(time.Since(start).Microseconds()))
		rangeHitsInt = append(rangeHitsInt, hits)
	}
	rangeHits := utils.Map(rangeHitsInt, func(n int) float64 { return float64(n) })

	nnMicros := make([]float64, 0, nnTrials)
	for t := 0; t < nnTrials; t++ {
		q := coords[r.Intn(len(coords))]
		start := time.Now()
		it := s.Nearest(q)
		for k := 0; k < 8 && it.Next(); k++ {
		}
		nnMicros = append(nnMicros, float64(time.Since(start).Microseconds()))
	}

	return scenarioResult{
		scenario:          sc,
		byteSize:          s.ByteSize(),
		rangeTrials:       rectTrials,
		avgRangeMicros:    mean(rangeMicros),
		p95RangeMicros:    quantile(rangeMicros, 0.95),
		avgRangeHits:      mean(rangeHits),
		nnTrials:          nnTrials,
		avgNNFirst8Micros: mean(nnMicros),
		p95NNFirst8Micros: quantile(nnMicros, 0.95),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

func parseCSVInts(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			fail("invalid integer %q: %v", part, err)
		}
		out = append(out, v)
	}
	return out
}

func dirOf(path string) string {
	return filepath.Dir(path)
}

func mustWrite(wr *csv.Writer, row []string) {
	if err := wr.Write(row); err != nil {
		fail("csv write failed: %v", err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "zorder-bench: "+format+"\n", args...)
	os.Exit(1)
}
