package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/celltrie/cell"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Cell returns a random valid cell at resolution res.
func (r *RNG) Cell(res int) cell.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cellLocked(r.rand.Intn(cell.NumBaseCells), res)
}

// CellIn returns a random descendant of parent at resolution res. If res is
// not finer than parent, parent is returned.
func (r *RNG) CellIn(parent cell.Cell, res int) cell.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	pres := parent.Resolution()
	if res <= pres {
		return parent
	}

	digits := make([]int, res)
	for i := range pres {
		digits[i] = parent.Digit(i + 1)
	}

	for i := pres; i < res; i++ {
		digits[i] = r.rand.Intn(cell.UnusedDigit)
	}

	return mustCompose(parent.BaseCell(), digits)
}

// Cells returns n random cells at resolution res.
func (r *RNG) Cells(n, res int) []cell.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]cell.Cell, n)
	for i := range out {
		out[i] = r.cellLocked(r.rand.Intn(cell.NumBaseCells), res)
	}

	return out
}

// ZipfCells returns n cells whose base cells follow a Zipfian distribution,
// so a few base cells take most of the load. s is the skew parameter.
func (r *RNG) ZipfCells(n, res int, s float64) []cell.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]cell.Cell, n)
	for i := range out {
		out[i] = r.cellLocked(r.zipfLocked(cell.NumBaseCells, s), res)
	}

	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

func (r *RNG) cellLocked(base, res int) cell.Cell {
	digits := make([]int, res)
	for i := range digits {
		digits[i] = r.rand.Intn(cell.UnusedDigit)
	}

	return mustCompose(base, digits)
}

func mustCompose(base int, digits []int) cell.Cell {
	c, err := cell.Compose(base, digits...)
	if err != nil {
		panic(err)
	}

	return c
}

// Partition splits items into at most parts contiguous chunks of nearly
// equal length.
func Partition[T any](items []T, parts int) [][]T {
	if parts <= 0 || len(items) == 0 {
		return nil
	}

	parts = min(parts, len(items))
	out := make([][]T, 0, parts)

	size, rest := len(items)/parts, len(items)%parts
	start := 0

	for i := range parts {
		end := start + size
		if i < rest {
			end++
		}

		out = append(out, items[start:end])
		start = end
	}

	return out
}
