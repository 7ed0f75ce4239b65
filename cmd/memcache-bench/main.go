// Command memcache-bench drives concurrent load against a memcached
// meta-protocol server and reports throughput, latency and correctness.
package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cacheflow/memcache"
)

type OperationType string

const (
	CacheHit     OperationType = "cache-hit"
	DynamicValue OperationType = "dynamic-value"
	CacheMiss    OperationType = "cache-miss"
	Increment    OperationType = "increment"
	Delete       OperationType = "delete"
	All          OperationType = "all"
)

type BenchmarkResult struct {
	Operation    OperationType
	Duration     time.Duration
	TotalOps     int64
	Successes    int64
	Failures     int64
	AvgLatency   time.Duration
	OpsPerSecond float64
	Correctness  bool
	ErrorMessage string
}

func main() {
	var (
		operation   = flag.String("operation", "all", "Operation type: cache-hit, dynamic-value, cache-miss, increment, delete, or all")
		duration    = flag.Duration("duration", 5*time.Second, "Duration to run benchmarks")
		concurrency = flag.Int("concurrency", 1, "Number of concurrent workers")
		address     = flag.String("address", "localhost:11211", "memcached server address")
		softLimit   = flag.Int("soft-limit", 16, "pool soft connection limit")
		hardLimit   = flag.Int("hard-limit", 32, "pool hard connection limit")
	)
	flag.Parse()

	fmt.Printf("Memcache Benchmark Tool\n")
	fmt.Printf("=======================\n")
	fmt.Printf("Operation: %s\n", *operation)
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Server: %s\n", *address)
	fmt.Println()

	pool := memcache.NewPool(
		memcache.DialConfig{Address: *address},
		memcache.PoolConfig{SoftLimit: *softLimit, HardLimit: *hardLimit},
		memcache.NoopSink{},
	)
	client := memcache.NewClient(pool, memcache.NoopSink{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	fmt.Print("Testing connection...")
	if _, err := client.Get(ctx, "test-connection-key"); err != nil {
		fmt.Printf(" failed: %v\n", err)
		fmt.Printf("Make sure memcached is running on %s\n", *address)
		return
	}
	fmt.Println(" success!")
	fmt.Println()

	if OperationType(*operation) == All {
		runAllOperations(ctx, client, *duration, *concurrency)
	} else {
		result := runSingleOperation(ctx, client, OperationType(*operation), *duration, *concurrency)
		printResult(result)
	}
}

func runAllOperations(ctx context.Context, client *memcache.Client, duration time.Duration, concurrency int) {
	operations := []OperationType{CacheHit, DynamicValue, CacheMiss, Increment, Delete}

	for _, op := range operations {
		fmt.Printf("\n--- Running %s benchmark ---\n", op)
		result := runSingleOperation(ctx, client, op, duration, concurrency)
		printResult(result)
		time.Sleep(500 * time.Millisecond)
	}
}

func runSingleOperation(ctx context.Context, client *memcache.Client, operation OperationType, duration time.Duration, concurrency int) *BenchmarkResult {
	switch operation {
	case CacheHit:
		return runCacheHitBenchmark(ctx, client, duration, concurrency)
	case DynamicValue:
		return runDynamicValueBenchmark(ctx, client, duration, concurrency)
	case CacheMiss:
		return runCacheMissBenchmark(ctx, client, duration, concurrency)
	case Increment:
		return runIncrementBenchmark(ctx, client, duration, concurrency)
	case Delete:
		return runDeleteBenchmark(ctx, client, duration, concurrency)
	default:
		return &BenchmarkResult{
			Operation:    operation,
			Correctness:  false,
			ErrorMessage: fmt.Sprintf("Unknown operation: %s", operation),
		}
	}
}

// Cache-hit: 1 set then repeated gets.
func runCacheHitBenchmark(ctx context.Context, client *memcache.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	key := "cache-hit-key"
	value := []byte("cache-hit-value")

	fmt.Printf("Setting up initial value for cache-hit test...\n")
	if err := client.Set(ctx, key, value, memcache.ExpiresAt(time.Now().Add(time.Hour))); err != nil {
		return &BenchmarkResult{
			Operation:    CacheHit,
			ErrorMessage: fmt.Sprintf("Failed to set initial value: %v", err),
		}
	}

	fmt.Printf("Starting cache-hit benchmark with %d workers for %v...\n", concurrency, duration)

	result := &BenchmarkResult{Operation: CacheHit, Correctness: true}
	var totalOps, successes, failures, totalLatency int64

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Since(startTime) < duration {
				for j := 0; j < 100; j++ {
					opStart := time.Now()
					item, err := client.Get(ctx, key)
					latency := time.Since(opStart)

					atomic.AddInt64(&totalOps, 1)
					atomic.AddInt64(&totalLatency, int64(latency))

					if err != nil || !item.Found {
						atomic.AddInt64(&failures, 1)
					} else {
						atomic.AddInt64(&successes, 1)
						if string(item.Value) != string(value) {
							result.Correctness = false
							result.ErrorMessage = "Value mismatch"
						}
					}
				}
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	return finish(result, startTime, totalOps, successes, failures, totalLatency)
}

// Dynamic-value: 1 set then 1 get per iteration, fresh key each time.
func runDynamicValueBenchmark(ctx context.Context, client *memcache.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	result := &BenchmarkResult{Operation: DynamicValue, Correctness: true}
	var totalOps, successes, failures, totalLatency int64

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			opCount := 0
			for time.Since(startTime) < duration {
				key := fmt.Sprintf("dynamic-key-%d-%d", workerID, opCount)
				value := []byte(fmt.Sprintf("dynamic-value-%d-%d", workerID, opCount))

				opStart := time.Now()
				err := client.Set(ctx, key, value, memcache.ExpiresAt(time.Now().Add(time.Hour)))
				atomic.AddInt64(&totalOps, 1)
				atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))
				if err != nil {
					atomic.AddInt64(&failures, 1)
					opCount++
					continue
				}
				atomic.AddInt64(&successes, 1)

				opStart = time.Now()
				item, err := client.Get(ctx, key)
				atomic.AddInt64(&totalOps, 1)
				atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))

				if err != nil || !item.Found {
					atomic.AddInt64(&failures, 1)
				} else {
					atomic.AddInt64(&successes, 1)
					if string(item.Value) != string(value) {
						result.Correctness = false
						result.ErrorMessage = "Value mismatch"
					}
				}
				opCount++
			}
		}(i)
	}
	wg.Wait()

	return finish(result, startTime, totalOps, successes, failures, totalLatency)
}

// Cache-miss: get on a key that never exists.
func runCacheMissBenchmark(ctx context.Context, client *memcache.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	result := &BenchmarkResult{Operation: CacheMiss, Correctness: true}
	var totalOps, successes, failures, totalLatency int64

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			opCount := 0
			for time.Since(startTime) < duration {
				key := fmt.Sprintf("nonexistent-key-%d-%d", workerID, opCount)

				opStart := time.Now()
				item, err := client.Get(ctx, key)
				atomic.AddInt64(&totalOps, 1)
				atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))

				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if !item.Found {
					atomic.AddInt64(&successes, 1)
				} else {
					atomic.AddInt64(&failures, 1)
					result.Correctness = false
					result.ErrorMessage = "Expected cache miss but got value"
				}
				opCount++
			}
		}(i)
	}
	wg.Wait()

	return finish(result, startTime, totalOps, successes, failures, totalLatency)
}

// Increment: repeated increments on a shared counter, then a verifying get.
func runIncrementBenchmark(ctx context.Context, client *memcache.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	key := "increment-key"
	if err := client.Set(ctx, key, []byte("0"), memcache.ExpiresAt(time.Now().Add(time.Hour))); err != nil {
		return &BenchmarkResult{
			Operation:    Increment,
			ErrorMessage: fmt.Sprintf("Failed to initialize counter: %v", err),
		}
	}

	result := &BenchmarkResult{Operation: Increment, Correctness: true}
	var totalOps, successes, failures, totalLatency int64

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Since(startTime) < duration {
				for j := 0; j < 100; j++ {
					opStart := time.Now()
					_, err := client.Increment(ctx, key, 1)
					atomic.AddInt64(&totalOps, 1)
					atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))
					if err != nil {
						atomic.AddInt64(&failures, 1)
					} else {
						atomic.AddInt64(&successes, 1)
					}
				}

				opStart := time.Now()
				item, err := client.Get(ctx, key)
				atomic.AddInt64(&totalOps, 1)
				atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))

				if err != nil || !item.Found {
					atomic.AddInt64(&failures, 1)
				} else {
					atomic.AddInt64(&successes, 1)
					if _, err := strconv.Atoi(string(item.Value)); err != nil {
						result.Correctness = false
						result.ErrorMessage = "Counter value is not a number"
					}
				}
			}
		}()
	}
	wg.Wait()

	return finish(result, startTime, totalOps, successes, failures, totalLatency)
}

// Delete: 1 set then 1 delete per iteration.
func runDeleteBenchmark(ctx context.Context, client *memcache.Client, duration time.Duration, concurrency int) *BenchmarkResult {
	result := &BenchmarkResult{Operation: Delete, Correctness: true}
	var totalOps, successes, failures, totalLatency int64

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			opCount := 0
			for time.Since(startTime) < duration {
				key := fmt.Sprintf("delete-key-%d-%d", workerID, opCount)
				value := []byte(fmt.Sprintf("delete-value-%d-%d", workerID, opCount))

				opStart := time.Now()
				err := client.Set(ctx, key, value, memcache.ExpiresAt(time.Now().Add(time.Hour)))
				atomic.AddInt64(&totalOps, 1)
				atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))
				if err != nil {
					atomic.AddInt64(&failures, 1)
					opCount++
					continue
				}
				atomic.AddInt64(&successes, 1)

				opStart = time.Now()
				err = client.Delete(ctx, key)
				atomic.AddInt64(&totalOps, 1)
				atomic.AddInt64(&totalLatency, int64(time.Since(opStart)))

				var notFound *memcache.KeyNotFoundError
				if err != nil && !asKeyNotFound(err, &notFound) {
					atomic.AddInt64(&failures, 1)
				} else {
					atomic.AddInt64(&successes, 1)
				}
				opCount++
			}
		}(i)
	}
	wg.Wait()

	return finish(result, startTime, totalOps, successes, failures, totalLatency)
}

func finish(result *BenchmarkResult, startTime time.Time, totalOps, successes, failures, totalLatency int64) *BenchmarkResult {
	result.Duration = time.Since(startTime)
	result.TotalOps = totalOps
	result.Successes = successes
	result.Failures = failures
	if totalOps > 0 {
		result.AvgLatency = time.Duration(totalLatency / totalOps)
		result.OpsPerSecond = float64(totalOps) / result.Duration.Seconds()
	}
	return result
}

func asKeyNotFound(err error, target **memcache.KeyNotFoundError) bool {
	for err != nil {
		if knf, ok := err.(*memcache.KeyNotFoundError); ok {
			*target = knf
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func printResult(result *BenchmarkResult) {
	fmt.Printf("Operation: %s\n", result.Operation)
	fmt.Printf("Duration: %v\n", result.Duration)
	fmt.Printf("Total Operations: %d\n", result.TotalOps)
	fmt.Printf("Successes: %d\n", result.Successes)
	fmt.Printf("Failures: %d\n", result.Failures)
	if result.TotalOps > 0 {
		fmt.Printf("Success Rate: %.2f%%\n", float64(result.Successes)/float64(result.TotalOps)*100)
		fmt.Printf("Ops/sec: %.2f\n", result.OpsPerSecond)
		fmt.Printf("Avg Latency: %v\n", result.AvgLatency)
	}
	fmt.Printf("Correctness: %t\n", result.Correctness)
	if result.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", result.ErrorMessage)
	}
	fmt.Println()
}
