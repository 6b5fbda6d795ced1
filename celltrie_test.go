package celltrie

import (
	"bytes"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/celltrie/cell"
	"github.com/hupe1980/celltrie/testutil"
)

func key(t *testing.T, owner string, base int, digits ...int) cell.Key[string] {
	t.Helper()

	c, err := cell.Compose(base, digits...)
	require.NoError(t, err)

	return cell.KeyOf(c, owner)
}

func TestMap(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		m := New[string, int]()
		rng := testutil.NewRNG(4711)

		keys := make(map[cell.Key[string]]int)
		for i, c := range rng.Cells(500, 9) {
			keys[cell.KeyOf(c, "o")] = i
		}

		for k, v := range keys {
			_, _, err := m.Put(k, v)
			require.NoError(t, err)
		}

		for k, v := range keys {
			got, ok := m.Get(k)
			require.True(t, ok, k.String())
			assert.Equal(t, v, got)
		}

		assert.Equal(t, len(keys), m.Size())
	})

	t.Run("DeleteThenAbsent", func(t *testing.T) {
		m := New[string, int]()
		k := key(t, "a", 20, 0, 6, 0)

		_, _, err := m.Put(k, 1)
		require.NoError(t, err)

		prev, ok, err := m.Remove(k)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, prev)

		_, ok = m.Get(k)
		assert.False(t, ok)
		assert.False(t, m.ContainsKey(k))

		_, ok, err = m.Remove(k)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("PutIfAbsent", func(t *testing.T) {
		m := New[string, string]()
		k := cell.KeyOf(cell.MustCell(0x8928308280fffff), "truck")

		_, loaded, err := m.PutIfAbsent(k, "v1")
		require.NoError(t, err)
		assert.False(t, loaded)

		actual, loaded, err := m.PutIfAbsent(k, "v2")
		require.NoError(t, err)
		assert.True(t, loaded)
		assert.Equal(t, "v1", actual)

		v, _ := m.Get(k)
		assert.Equal(t, "v1", v)
	})

	t.Run("ReplaceAndCompareAndSwap", func(t *testing.T) {
		m := New[string, int]()
		k := key(t, "a", 5, 1, 1)

		_, ok, err := m.Replace(k, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, m.ContainsKey(k))

		_, _, _ = m.Put(k, 1)

		swapped, err := m.CompareAndSwap(k, 2, 3)
		require.NoError(t, err)
		assert.False(t, swapped)

		swapped, err = m.CompareAndSwap(k, 1, 3)
		require.NoError(t, err)
		assert.True(t, swapped)

		removed, err := m.CompareAndRemove(k, 1)
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = m.CompareAndRemove(k, 3)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.True(t, m.IsEmpty())
	})

	t.Run("ValueEquality", func(t *testing.T) {
		type pos struct {
			Lat, Lng float64
			Tags     []string
		}

		m := New[string, pos]()
		k := key(t, "a", 9, 3)

		_, _, _ = m.Put(k, pos{Lat: 1, Lng: 2, Tags: []string{"x"}})

		// Structurally equal values match even though the slices differ.
		swapped, err := m.CompareAndSwap(k, pos{Lat: 1, Lng: 2, Tags: []string{"x"}}, pos{Lat: 3})
		require.NoError(t, err)
		assert.True(t, swapped)
	})

	t.Run("WithValueEqual", func(t *testing.T) {
		type reading struct {
			Sensor string
			Seq    int
		}

		m := New[string, reading](WithValueEqual(func(a, b reading) bool { return a.Sensor == b.Sensor }))
		k := key(t, "a", 9, 3)

		_, _, _ = m.Put(k, reading{Sensor: "s1", Seq: 1})

		removed, err := m.CompareAndRemove(k, reading{Sensor: "s1", Seq: 99})
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("WithValueEqualTypeMismatch", func(t *testing.T) {
		assert.Panics(t, func() {
			New[string, int](WithValueEqual(func(a, b string) bool { return a == b }))
		})
	})
}

func TestSnapshotIndependence(t *testing.T) {
	m := New[string, int]()
	k := key(t, "a", 30, 1, 2, 3)
	other := key(t, "b", 30, 1, 2, 4)

	_, _, _ = m.Put(k, 1)

	s := m.Snapshot()
	assert.False(t, s.IsReadOnly())

	_, _, err := s.Remove(k)
	require.NoError(t, err)

	v, ok := m.Get(k)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, _, _ = m.Put(other, 2)
	_, _, _ = m.Put(k, 10)

	assert.False(t, s.ContainsKey(other))
	assert.False(t, s.ContainsKey(k))
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, 2, m.Size())

	v, _ = m.Get(k)
	assert.Equal(t, 10, v)
}

func TestReadOnlySnapshot(t *testing.T) {
	m := New[string, int]()
	k := key(t, "a", 1, 1)
	_, _, _ = m.Put(k, 1)

	ro := m.ReadOnlySnapshot()
	assert.True(t, ro.IsReadOnly())
	assert.Same(t, ro, ro.ReadOnlySnapshot())
	assert.Same(t, ro, ro.Snapshot())

	_, _, _ = m.Put(k, 2)

	v, _ := ro.Get(k)
	assert.Equal(t, 1, v)

	tests := []struct {
		name string
		op   string
		fn   func() error
	}{
		{"Put", "put", func() error { _, _, err := ro.Put(k, 3); return err }},
		{"PutIfAbsent", "put_if_absent", func() error { _, _, err := ro.PutIfAbsent(k, 3); return err }},
		{"Replace", "replace", func() error { _, _, err := ro.Replace(k, 3); return err }},
		{"CompareAndSwap", "compare_and_swap", func() error { _, err := ro.CompareAndSwap(k, 1, 3); return err }},
		{"Remove", "remove", func() error { _, _, err := ro.Remove(k); return err }},
		{"CompareAndRemove", "compare_and_remove", func() error { _, err := ro.CompareAndRemove(k, 1); return err }},
		{"Clear", "clear", ro.Clear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.ErrorIs(t, err, ErrReadOnly)

			var roErr *ReadOnlyError
			require.True(t, errors.As(err, &roErr))
			assert.Equal(t, tt.op, roErr.Op)
		})
	}

	v, _ = ro.Get(k)
	assert.Equal(t, 1, v)
}

func TestClear(t *testing.T) {
	m := New[string, int]()
	for i := range 10 {
		_, _, _ = m.Put(key(t, "o", i, 1), i)
	}

	ro := m.ReadOnlySnapshot()

	require.NoError(t, m.Clear())
	assert.True(t, m.IsEmpty())
	assert.Equal(t, 10, ro.Size())
}

func TestSubtree(t *testing.T) {
	rng := testutil.NewRNG(7)
	prefix := rng.Cell(3)

	m := New[string, int]()

	const inside = 64

	for i := range inside {
		_, _, err := m.Put(cell.KeyOf(rng.CellIn(prefix, 9), "in-"+strconv.Itoa(i)), i)
		require.NoError(t, err)
	}

	outside := 0
	for i, c := range rng.Cells(200, 9) {
		if c.HasPrefix(prefix) {
			continue
		}

		_, _, _ = m.Put(cell.KeyOf(c, "out-"+strconv.Itoa(i)), -1)
		outside++
	}

	// The prefix cell itself belongs to its own subtree.
	_, _, _ = m.Put(cell.KeyOf(prefix, "self"), 0)

	sub := m.Subtree(prefix)
	assert.True(t, sub.IsReadOnly())
	assert.Equal(t, inside+1, sub.Size())
	assert.Equal(t, inside+outside+1, m.Size())

	for k := range sub.All() {
		assert.True(t, k.Cell().HasPrefix(prefix), k.String())
	}

	_, _, err := sub.Put(cell.KeyOf(prefix, "x"), 1)
	require.ErrorIs(t, err, ErrReadOnly)

	t.Run("Nested", func(t *testing.T) {
		var deeper cell.Cell
		for k := range sub.All() {
			if k.Resolution() == 9 {
				deeper, _ = k.Cell().Parent(6)
				break
			}
		}

		want := 0
		for k := range m.All() {
			if k.Cell().HasPrefix(deeper) {
				want++
			}
		}

		nested := sub.Subtree(deeper)
		assert.Equal(t, want, nested.Size())
		assert.GreaterOrEqual(t, want, 1)
	})

	t.Run("Absent", func(t *testing.T) {
		empty := New[string, int]().Subtree(prefix)
		assert.True(t, empty.IsEmpty())
	})

	t.Run("SingleLeaf", func(t *testing.T) {
		one := New[string, int]()
		c := cell.MustCell(0x8928308280fffff)
		_, _, _ = one.Put(cell.KeyOf(c, "a"), 1)

		p, err := c.Parent(5)
		require.NoError(t, err)

		sub := one.Subtree(p)
		require.Equal(t, 1, sub.Size())

		v, ok := sub.Get(cell.KeyOf(c, "a"))
		require.True(t, ok)
		assert.Equal(t, 1, v)

		sibling := cell.MustCell(0x8928308280bffff)
		assert.True(t, one.Subtree(sibling).IsEmpty())
	})
}

func TestCollision(t *testing.T) {
	m := New[string, int]()
	full := make([]int, cell.MaxResolution)

	a := key(t, "a", 85, full...)
	b := key(t, "b", 85, full...)

	_, _, _ = m.Put(a, 1)
	_, _, _ = m.Put(b, 2)

	assert.Equal(t, 2, m.Size())

	va, _ := m.Get(a)
	vb, _ := m.Get(b)
	assert.Equal(t, 1, va)
	assert.Equal(t, 2, vb)

	removed, err := m.CompareAndRemove(a, 2)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = m.CompareAndRemove(a, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, 1, m.Size())
	assert.True(t, m.ContainsKey(b))

	removed, err = m.CompareAndRemove(b, 2)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, m.IsEmpty())
}

func TestConcurrentInsert(t *testing.T) {
	rng := testutil.NewRNG(99)

	cells := make(map[cell.Cell]struct{})
	for _, c := range rng.Cells(4000, 10) {
		cells[c] = struct{}{}
	}

	keys := make([]cell.Key[int], 0, len(cells))
	for c := range cells {
		keys = append(keys, cell.KeyOf(c, len(keys)))
	}

	for _, goroutines := range []int{2, 8} {
		t.Run(strconv.Itoa(goroutines), func(t *testing.T) {
			m := New[int, int]()

			var wg sync.WaitGroup

			for _, part := range testutil.Partition(keys, goroutines) {
				wg.Add(1)

				go func() {
					defer wg.Done()

					for _, k := range part {
						_, _, _ = m.Put(k, k.Owner())
					}
				}()
			}

			wg.Wait()

			require.Equal(t, len(keys), m.Size())

			for _, k := range keys {
				v, ok := m.Get(k)
				require.True(t, ok)
				assert.Equal(t, k.Owner(), v)
			}
		})
	}
}

func TestConcurrentSnapshots(t *testing.T) {
	rng := testutil.NewRNG(3)
	m := New[int, int]()

	cells := rng.ZipfCells(2000, 8, 1.2)

	var wg sync.WaitGroup

	for w, part := range testutil.Partition(cells, 4) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i, c := range part {
				_, _, _ = m.Put(cell.KeyOf(c, w*len(cells)+i), i)
			}
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		prev := 0
		for range 50 {
			// Entries are only added, so successive views never shrink.
			size := m.ReadOnlySnapshot().Size()
			assert.GreaterOrEqual(t, size, prev)
			prev = size
		}
	}()

	wg.Wait()

	assert.Equal(t, len(cells), m.Size())
}

func TestIterator(t *testing.T) {
	fill := func(t *testing.T) *Map[string, int] {
		t.Helper()

		m := New[string, int]()
		for base := range 100 {
			_, _, _ = m.Put(key(t, "o", base, base%7, 3), base)
		}

		return m
	}

	t.Run("RemoveAll", func(t *testing.T) {
		m := fill(t)

		it := m.Iterator()
		require.ErrorIs(t, it.Remove(), ErrIllegalIteratorState)

		n := 0
		for it.Next() {
			require.NoError(t, it.Remove())
			require.ErrorIs(t, it.Remove(), ErrIllegalIteratorState)
			n++
		}

		assert.Equal(t, 100, n)
		assert.Equal(t, 0, m.Size())
		assert.True(t, m.IsEmpty())
	})

	t.Run("SetValue", func(t *testing.T) {
		m := fill(t)

		it := m.Iterator()
		for it.Next() {
			ok, err := it.SetValue(it.Value() * 2)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		for k, v := range m.All() {
			assert.Equal(t, k.Cell().BaseCell()*2, v)
		}
	})

	t.Run("ReadOnly", func(t *testing.T) {
		m := fill(t)

		for _, it := range []*Iterator[string, int]{m.ReadOnlyIterator(), m.ReadOnlySnapshot().Iterator()} {
			require.True(t, it.Next())

			require.ErrorIs(t, it.Remove(), ErrUnsupportedOperation)

			_, err := it.SetValue(0)
			require.ErrorIs(t, err, ErrUnsupportedOperation)
		}

		assert.Equal(t, 100, m.Size())
	})

	t.Run("All", func(t *testing.T) {
		m := fill(t)

		seen := make(map[int]bool)
		for k, v := range m.All() {
			assert.Equal(t, k.Cell().BaseCell(), v)
			seen[v] = true

			if len(seen) == 10 {
				break
			}
		}

		assert.Len(t, seen, 10)
	})
}

func TestMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	m := New[string, int](WithMetricsCollector(mc))

	k := key(t, "a", 2, 2)
	_, _, _ = m.Put(k, 1)
	_, _, _ = m.Put(k, 2)
	m.Get(k)
	m.Get(key(t, "b", 2, 2))
	_, _, _ = m.Remove(k)
	m.Snapshot()
	m.Subtree(k.Cell())

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.PutCount)
	assert.Equal(t, int64(1), stats.PutLoaded)
	assert.Equal(t, int64(2), stats.GetCount)
	assert.Equal(t, int64(1), stats.GetHits)
	assert.Equal(t, int64(1), stats.RemoveCount)
	assert.Equal(t, int64(1), stats.RemoveHits)
	assert.Equal(t, int64(1), stats.SnapshotCount)
	assert.Equal(t, int64(1), stats.SubtreeCount)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := New[string, int](WithLogger(logger))

	m.ReadOnlySnapshot()
	require.NoError(t, m.Clear())

	out := buf.String()
	assert.Contains(t, out, `"msg":"snapshot created"`)
	assert.Contains(t, out, `"read_only":true`)
	assert.Contains(t, out, `"msg":"map cleared"`)
}
