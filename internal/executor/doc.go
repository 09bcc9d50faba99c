// Package executor provides the two interchangeable concurrency substrates
// that run simulated work: a bounded worker pool with a fixed queue and an
// unbounded executor that starts one goroutine per task. Both are selected
// once at startup through the Registry and expose the same Submit/Future
// contract.
package executor
