package comm

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestLocalGroupBcast(t *testing.T) {
	const size = 4
	ranks := NewLocalGroup(size)
	g, ctx := errgroup.WithContext(context.Background())
	results := make([][]byte, size)
	for r := 0; r < size; r++ {
		r := r
		g.Go(func() error {
			buf := make([]byte, 4)
			if r == 2 {
				copy(buf, []byte("boo!"))
			}
			if err := ranks[r].Bcast(ctx, buf, 2); err != nil {
				return err
			}
			results[r] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for r, got := range results {
		if string(got) != "boo!" {
			t.Fatalf("rank %d got %q, want %q", r, got, "boo!")
		}
	}
}

func TestLocalGroupAllReduceOr(t *testing.T) {
	const size = 5
	ranks := NewLocalGroup(size)
	g, ctx := errgroup.WithContext(context.Background())
	results := make([]bool, size)
	for r := 0; r < size; r++ {
		r := r
		g.Go(func() error {
			v := r == 3 // exactly one rank observed a failure
			result, err := ranks[r].AllReduceOr(ctx, v)
			if err != nil {
				return err
			}
			results[r] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for r, got := range results {
		if !got {
			t.Fatalf("rank %d: AllReduceOr = false, want true", r)
		}
	}
}

func TestLocalGroupAllReduceOrAllFalse(t *testing.T) {
	const size = 3
	ranks := NewLocalGroup(size)
	g, ctx := errgroup.WithContext(context.Background())
	results := make([]bool, size)
	for r := 0; r < size; r++ {
		r := r
		g.Go(func() error {
			result, err := ranks[r].AllReduceOr(ctx, false)
			if err != nil {
				return err
			}
			results[r] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for r, got := range results {
		if got {
			t.Fatalf("rank %d: AllReduceOr = true, want false", r)
		}
	}
}

func TestLocalGroupSequentialCalls(t *testing.T) {
	const size = 3
	ranks := NewLocalGroup(size)
	for i := 0; i < 3; i++ {
		g, ctx := errgroup.WithContext(context.Background())
		results := make([][]byte, size)
		for r := 0; r < size; r++ {
			r := r
			g.Go(func() error {
				buf := make([]byte, 1)
				if r == 0 {
					buf[0] = byte(i)
				}
				if err := ranks[r].Bcast(ctx, buf, 0); err != nil {
					return err
				}
				results[r] = buf
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("iteration %d: Wait: %v", i, err)
		}
		for r, got := range results {
			if got[0] != byte(i) {
				t.Fatalf("iteration %d, rank %d: got %d, want %d", i, r, got[0], i)
			}
		}
	}
}

func TestSingleIsNoOp(t *testing.T) {
	if Single.Rank() != 0 || Single.Size() != 1 {
		t.Fatalf("Single rank/size = %d/%d, want 0/1", Single.Rank(), Single.Size())
	}
	buf := []byte("x")
	if err := Single.Bcast(context.Background(), buf, 0); err != nil {
		t.Fatalf("Bcast: %v", err)
	}
	or, err := Single.AllReduceOr(context.Background(), true)
	if err != nil || !or {
		t.Fatalf("AllReduceOr = %v, %v", or, err)
	}
}
