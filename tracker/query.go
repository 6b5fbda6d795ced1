package tracker

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/celltrie"
	"github.com/hupe1980/celltrie/cell"
)

// WithinRing returns the entities inside the cells at grid distance exactly
// k from origin, with origin first trimmed to res.
func (t *Tracker[O, V]) WithinRing(ctx context.Context, origin cell.Cell, res, k int) ([]Entry[O, V], error) {
	center, err := origin.Parent(res)
	if err != nil {
		return nil, err
	}

	ring, err := t.grid.Ring(center, k)
	if err != nil {
		return nil, fmt.Errorf("ring %d around %s: %w", k, center, err)
	}

	return t.collect(ctx, t.Snapshot(), dedupeInto(roaring64.New(), ring))
}

// WithinDisk returns the entities inside the cells within grid distance k of
// origin, with origin first trimmed to res.
func (t *Tracker[O, V]) WithinDisk(ctx context.Context, origin cell.Cell, res, k int) ([]Entry[O, V], error) {
	center, err := origin.Parent(res)
	if err != nil {
		return nil, err
	}

	disk, err := t.grid.Disk(center, k)
	if err != nil {
		return nil, fmt.Errorf("disk %d around %s: %w", k, center, err)
	}

	seen := roaring64.New()

	var candidates []cell.Cell
	for _, ring := range disk {
		candidates = append(candidates, dedupeInto(seen, ring)...)
	}

	return t.collect(ctx, t.Snapshot(), candidates)
}

// FindAround walks the rings around origin outwards, from distance 0 to k,
// and returns up to limit entities accepted by pred in that order. A limit
// of zero or less means no limit.
func (t *Tracker[O, V]) FindAround(ctx context.Context, origin cell.Cell, res, k, limit int, pred func(cell.Key[O], V) bool) ([]Entry[O, V], error) {
	center, err := origin.Parent(res)
	if err != nil {
		return nil, err
	}

	snap := t.Snapshot()
	seen := roaring64.New()

	var out []Entry[O, V]

	for r := 0; r <= k; r++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		ring, err := t.grid.Ring(center, r)
		if err != nil {
			return out, fmt.Errorf("ring %d around %s: %w", r, center, err)
		}

		for _, c := range dedupeInto(seen, ring) {
			for key, v := range snap.Subtree(c).All() {
				if pred != nil && !pred(key, v) {
					continue
				}

				out = append(out, Entry[O, V]{Key: key, Value: v})
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
	}

	return out, nil
}

// collect runs one Subtree lookup per candidate on snap and concatenates the
// results in candidate order.
func (t *Tracker[O, V]) collect(ctx context.Context, snap *celltrie.Map[O, V], candidates []cell.Cell) ([]Entry[O, V], error) {
	parts := make([][]Entry[O, V], len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.concurrency)

	for i, c := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			for key, v := range snap.Subtree(c).All() {
				parts[i] = append(parts[i], Entry[O, V]{Key: key, Value: v})
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, p := range parts {
		n += len(p)
	}

	out := make([]Entry[O, V], 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}

	return out, nil
}

// dedupeInto returns the cells not yet in seen and adds them to it.
func dedupeInto(seen *roaring64.Bitmap, cells []cell.Cell) []cell.Cell {
	out := make([]cell.Cell, 0, len(cells))

	for _, c := range cells {
		if seen.CheckedAdd(uint64(c)) {
			out = append(out, c)
		}
	}

	return out
}
