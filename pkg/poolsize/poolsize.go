// Package poolsize computes the CPU-aware worker/parser pool size shared by
// the parser pool and the indexing worker pool so neither can starve the
// other waiting on the same core budget.
package poolsize

import "runtime"

// Optimal returns min(max(runtime.NumCPU()*2, 4), 32).
//
// Doubling core count keeps CGo-heavy parse calls (which release the Go
// scheduler while inside the tree-sitter C library) overlapping; the floor
// of 4 keeps weak machines from serializing entirely, and the ceiling of 32
// bounds per-language memory (each parser/worker costs roughly 1MB).
func Optimal() int {
	n := runtime.NumCPU() * 2
	if n < 4 {
		return 4
	}
	if n > 32 {
		return 32
	}
	return n
}

// OptimalOrOverride returns override when positive, else Optimal().
func OptimalOrOverride(override int) int {
	if override > 0 {
		return override
	}
	return Optimal()
}
