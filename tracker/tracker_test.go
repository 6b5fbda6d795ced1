package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/celltrie"
	"github.com/hupe1980/celltrie/cell"
	"github.com/hupe1980/celltrie/testutil"
)

var errNoRing = errors.New("no such ring")

// fakeGrid serves precomputed rings around known centers.
type fakeGrid map[cell.Cell][][]cell.Cell

func (g fakeGrid) Ring(origin cell.Cell, k int) ([]cell.Cell, error) {
	rings, ok := g[origin]
	if !ok || k >= len(rings) {
		return nil, errNoRing
	}

	return rings[k], nil
}

func (g fakeGrid) Disk(origin cell.Cell, k int) ([][]cell.Cell, error) {
	rings, ok := g[origin]
	if !ok || k >= len(rings) {
		return nil, errNoRing
	}

	return rings[:k+1], nil
}

func compose(t *testing.T, base int, digits ...int) cell.Cell {
	t.Helper()

	c, err := cell.Compose(base, digits...)
	require.NoError(t, err)

	return c
}

type fixture struct {
	center cell.Cell
	grid   fakeGrid
	// inside[name] is a resolution 9 cell inside the named candidate.
	inside map[string]cell.Cell
}

// newFixture lays out three rings around base 20 digits 1,2:
//
//	ring 0: 20/1/2
//	ring 1: 20/1/{0,1,3,4,5,6}
//	ring 2: 21/0/0, 21/0/1, and 20/1/3 again
func newFixture(t *testing.T) fixture {
	t.Helper()

	rng := testutil.NewRNG(7)
	center := compose(t, 20, 1, 2)

	ring1 := make([]cell.Cell, 0, 6)
	for _, d := range []int{0, 1, 3, 4, 5, 6} {
		ring1 = append(ring1, compose(t, 20, 1, d))
	}

	ring2 := []cell.Cell{compose(t, 21, 0, 0), compose(t, 21, 0, 1), compose(t, 20, 1, 3)}

	return fixture{
		center: center,
		grid:   fakeGrid{center: {{center}, ring1, ring2}},
		inside: map[string]cell.Cell{
			"a": rng.CellIn(center, 9),
			"b": rng.CellIn(ring1[0], 9),
			"e": rng.CellIn(ring1[2], 9),
			"c": rng.CellIn(ring2[0], 9),
			"d": rng.CellIn(compose(t, 50, 3), 9),
		},
	}
}

func (f fixture) tracker(t *testing.T, optFns ...Option) *Tracker[string, int] {
	t.Helper()

	tr := New[string, int](f.grid, optFns...)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		_, loaded, err := tr.Start(f.inside[name], name, i)
		require.NoError(t, err)
		require.False(t, loaded)
	}

	return tr
}

func owners(entries []Entry[string, int]) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key.Owner()
	}

	return out
}

func sorted(s []string) []string {
	s = append([]string(nil), s...)
	sort.Strings(s)

	return s
}

func TestTracking(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker(t)

	assert.Equal(t, 5, tr.Len())
	assert.True(t, tr.Tracking("a"))
	assert.False(t, tr.Tracking("zz"))

	t.Run("StartTwiceKeepsFirst", func(t *testing.T) {
		actual, loaded, err := tr.Start(f.inside["d"], "a", 99)
		require.NoError(t, err)
		assert.True(t, loaded)
		assert.Equal(t, 0, actual)

		k, ok := tr.Location("a")
		require.True(t, ok)
		assert.Equal(t, f.inside["a"], k.Cell())
	})

	t.Run("Update", func(t *testing.T) {
		ok, err := tr.Update("b", 42)
		require.NoError(t, err)
		assert.True(t, ok)

		v, ok := tr.Value("b")
		require.True(t, ok)
		assert.Equal(t, 42, v)

		ok, err = tr.Update("zz", 1)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok = tr.Value("zz")
		assert.False(t, ok)
	})

	t.Run("Move", func(t *testing.T) {
		ok, err := tr.Move("c", f.inside["d"])
		require.NoError(t, err)
		assert.True(t, ok)

		k, ok := tr.Location("c")
		require.True(t, ok)
		assert.Equal(t, cell.KeyOf(f.inside["d"], "c"), k)

		v, ok := tr.Value("c")
		require.True(t, ok)
		assert.Equal(t, 2, v)

		snap := tr.Snapshot()
		assert.False(t, snap.ContainsKey(cell.KeyOf(f.inside["c"], "c")))
		assert.True(t, snap.ContainsKey(k))

		ok, err = tr.Move("zz", f.inside["a"])
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tr.Move("c", f.inside["d"])
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Finish", func(t *testing.T) {
		v, ok, err := tr.Finish("e")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 4, v)
		assert.False(t, tr.Tracking("e"))

		_, ok, err = tr.Finish("e")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Locations", func(t *testing.T) {
		locs := tr.Locations()
		assert.Len(t, locs, 4)
		assert.Equal(t, f.inside["a"], locs["a"].Cell())

		snap := tr.Snapshot()
		assert.True(t, snap.IsReadOnly())
		assert.Equal(t, 4, snap.Size())
	})
}

func TestWithinRing(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker(t)
	ctx := context.Background()

	tests := []struct {
		k    int
		want []string
	}{
		{0, []string{"a"}},
		{1, []string{"b", "e"}},
		{2, []string{"c", "e"}},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.k), func(t *testing.T) {
			got, err := tr.WithinRing(ctx, f.inside["a"], 2, tt.k)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sorted(owners(got)))
		})
	}

	t.Run("GridError", func(t *testing.T) {
		_, err := tr.WithinRing(ctx, f.inside["a"], 2, 3)
		assert.ErrorIs(t, err, errNoRing)
	})

	t.Run("ResolutionTooFine", func(t *testing.T) {
		_, err := tr.WithinRing(ctx, f.center, 5, 0)
		assert.ErrorIs(t, err, cell.ErrMalformedKey)
	})
}

func TestWithinDisk(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker(t, WithConcurrency(2))
	ctx := context.Background()

	got, err := tr.WithinDisk(ctx, f.inside["a"], 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, owners(got))

	got, err = tr.WithinDisk(ctx, f.inside["a"], 2, 2)
	require.NoError(t, err)
	// e sits in a cell listed by both ring 1 and ring 2 but is reported once.
	assert.Equal(t, []string{"a", "b", "e", "c"}, owners(got))

	for _, e := range got {
		assert.Equal(t, f.inside[e.Key.Owner()], e.Key.Cell())
	}

	t.Run("Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := tr.WithinDisk(cctx, f.inside["a"], 2, 2)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFindAround(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker(t)
	ctx := context.Background()

	all := func(cell.Key[string], int) bool { return true }

	got, err := tr.FindAround(ctx, f.inside["a"], 2, 2, 2, all)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, owners(got))

	notA := func(k cell.Key[string], _ int) bool { return k.Owner() != "a" }

	got, err = tr.FindAround(ctx, f.inside["a"], 2, 2, 0, notA)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "e", "c"}, owners(got))

	got, err = tr.FindAround(ctx, f.inside["a"], 2, 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "e"}, owners(got))

	_, err = tr.FindAround(ctx, f.inside["a"], 2, 5, 0, all)
	assert.ErrorIs(t, err, errNoRing)
}

func TestConcurrentMove(t *testing.T) {
	f := newFixture(t)
	ring1 := f.grid[f.center][1]
	rng := testutil.NewRNG(99)

	spots := make([]cell.Cell, 0, len(ring1))
	for _, c := range ring1 {
		spots = append(spots, rng.CellIn(c, 9))
	}

	for _, n := range []int{2, 8} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			tr := New[string, int](f.grid)
			ctx := context.Background()

			for i := range n {
				_, _, err := tr.Start(spots[i%len(spots)], fmt.Sprintf("v%d", i), i)
				require.NoError(t, err)
			}

			var wg sync.WaitGroup

			for i := range n {
				wg.Add(1)

				go func() {
					defer wg.Done()

					owner := fmt.Sprintf("v%d", i)
					for j := range 200 {
						ok, err := tr.Move(owner, spots[(i+j)%len(spots)])
						assert.NoError(t, err)
						assert.True(t, ok)
					}
				}()
			}

			wg.Add(1)

			go func() {
				defer wg.Done()

				for range 100 {
					got, err := tr.WithinRing(ctx, f.center, 2, 1)
					if !assert.NoError(t, err) {
						return
					}

					// Every entity is seen exactly once, never mid move.
					seen := make(map[string]bool, n)
					for _, e := range got {
						assert.False(t, seen[e.Key.Owner()], e.Key.Owner())
						seen[e.Key.Owner()] = true
					}

					assert.Len(t, seen, n)
				}
			}()

			wg.Wait()

			assert.Equal(t, n, tr.Len())
			assert.Equal(t, n, tr.Snapshot().Size())
		})
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer

	logger := celltrie.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t)
	tr := f.tracker(t, WithLogger(logger))

	_, err := tr.Move("a", f.inside["b"])
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"start completed"`)
	assert.Contains(t, out, `"msg":"move completed"`)
	assert.Contains(t, out, `"owner":"a"`)
}
