package comm

import (
	"context"
	"sync"
)

// Single is the Communicator for a one-rank group: the common case of a
// serial caller reading or writing its own file. Every collective
// operation degenerates to a no-op since there is no other rank to
// coordinate with.
var Single Communicator = localRank{group: newLocalGroup(1), rank: 0}

// LocalGroup simulates a fixed-size set of ranks within a single OS
// process: each rank gets its own Communicator view, and collective
// calls on those views rendezvous with each other exactly as separate
// MPI processes would, using an in-memory barrier instead of a network
// transport. This is how this module's own tests exercise multi-rank
// collective code paths without a real parallel-I/O transport, and it
// is the group a single-process caller uses via Single.
type LocalGroup struct {
	size int
	bc   barrier
	or   barrier
}

func newLocalGroup(size int) *LocalGroup {
	g := &LocalGroup{size: size}
	initBarrier(&g.bc, size)
	initBarrier(&g.or, size)
	return g
}

// NewLocalGroup returns size Communicators, one per rank, that
// rendezvous with each other when any collective method is called.
// Every rank must call collective methods in the same order, exactly
// as a real collective call requires.
func NewLocalGroup(size int) []Communicator {
	g := newLocalGroup(size)
	ranks := make([]Communicator, size)
	for r := range ranks {
		ranks[r] = localRank{group: g, rank: r}
	}
	return ranks
}

type localRank struct {
	group *LocalGroup
	rank  int
}

func (l localRank) Rank() int { return l.rank }
func (l localRank) Size() int { return l.group.size }

func (l localRank) Bcast(ctx context.Context, buf []byte, root int) error {
	isSender := l.rank == root
	shared := l.group.bc.rendezvous(isSender, buf)
	if !isSender {
		copy(buf, shared)
	}
	return ctx.Err()
}

func (l localRank) AllReduceOr(ctx context.Context, v bool) (bool, error) {
	result := l.group.or.reduceOr(v)
	return result, ctx.Err()
}

// barrier is a reusable rendezvous point for exactly `size` arrivals.
// It doubles as the transport for both Bcast (the contributing rank's
// payload is copied out to every waiter) and AllReduceOr (every
// arrival's boolean is folded with logical OR before release).
type barrier struct {
	size int
	mu   sync.Mutex
	cond *sync.Cond

	arrived int
	gen     int

	payload  []byte
	released []byte
	orVal    bool
	orResult bool
}

func initBarrier(b *barrier, size int) {
	b.size = size
	b.cond = sync.NewCond(&b.mu)
}

// rendezvous is Bcast's barrier: if isSender, buf is published to every
// other caller of this generation before release; the returned slice is
// only meaningful to non-senders. Each generation publishes a fresh
// copy, so a sender that has already entered the next generation cannot
// overwrite a slice a slow waiter is still copying out of.
func (b *barrier) rendezvous(isSender bool, buf []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	myGen := b.gen
	if isSender {
		b.payload = append([]byte(nil), buf...)
	}
	b.arrived++
	if b.arrived == b.size {
		b.released = b.payload
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
	} else {
		for b.gen == myGen {
			b.cond.Wait()
		}
	}
	return b.released
}

// reduceOr is AllReduceOr's barrier: every arrival's v is folded with
// logical OR into the generation's result before release.
func (b *barrier) reduceOr(v bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	myGen := b.gen
	if b.arrived == 0 {
		b.orVal = false
	}
	if v {
		b.orVal = true
	}
	b.arrived++
	if b.arrived == b.size {
		b.orResult = b.orVal
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
	} else {
		for b.gen == myGen {
			b.cond.Wait()
		}
	}
	return b.orResult
}
