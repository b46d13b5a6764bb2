// Package benchmark provides performance benchmarks for diskcache.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run only the recovery benchmarks:
//
//	go test -bench=BenchmarkOpen -benchmem -benchtime=10x ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
