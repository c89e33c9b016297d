package pforest

import (
	"context"
	"testing"

	fuzz "github.com/google/gofuzz"

	"github.com/gghosh8495/p4est/comm"
)

func TestInflateRoundTripSamePartition(t *testing.T) {
	orig := buildForest(2, 3, []int{2, 0, 3}, 2)
	records, data := Deflate(orig, true)
	pertree := []int64{0, 2, 2, 5}

	got, err := Inflate(comm.Single, fakeConnectivity{3}, orig.GFQ, pertree, records, data, 2, 2, nil, nil, nil)
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	assertForestsEqual(t, orig, got)
	if got.Revision != 0 {
		t.Fatalf("Revision = %d, want 0", got.Revision)
	}
}

func TestInflateEmptyLocalStillAllocatesAllTrees(t *testing.T) {
	connectivity := fakeConnectivity{4}
	pertree := []int64{0, 0, 0, 0, 0}
	gfq := []int64{0, 0}
	got, err := Inflate(comm.Single, connectivity, gfq, pertree, nil, nil, 0, 2, nil, nil, nil)
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if len(got.Trees) != 4 {
		t.Fatalf("len(Trees) = %d, want 4", len(got.Trees))
	}
	if got.FirstLocalTree != -1 || got.LastLocalTree != -2 {
		t.Fatalf("FirstLocalTree/LastLocalTree = %d/%d, want -1/-2", got.FirstLocalTree, got.LastLocalTree)
	}
	for i, tree := range got.Trees {
		if len(tree.Cells) != 0 {
			t.Fatalf("tree %d has %d cells, want 0", i, len(tree.Cells))
		}
	}
}

func TestInflateAcrossRepartition(t *testing.T) {
	// Deflate on 2 ranks, exchange records into a different partition,
	// inflate on 3 ranks; the global cell sequence must match.
	orig := buildForest(2, 2, []int{3, 3}, 0)
	pertree := []int64{0, 3, 6}

	records := make([][]int32, 2)
	gfq2 := []int64{0, 3, 6}
	for r := 0; r < 2; r++ {
		shard := &Forest{
			Dim: 2, Connectivity: fakeConnectivity{2}, Rank: r, Size: 2,
			GFQ: gfq2, FirstLocalTree: 0, LastLocalTree: 1,
			Trees: orig.Trees,
		}
		// restrict to this rank's half for Deflate by slicing cells.
		lo, hi := gfq2[r], gfq2[r+1]
		shard.Trees = sliceGlobalCells(orig.Trees, pertree, lo, hi)
		recs, _ := Deflate(shard, false)
		records[r] = recs
	}
	all := append(append([]int32{}, records[0]...), records[1]...)

	gfq3 := []int64{0, 2, 4, 6}
	var results []*Forest
	for r := 0; r < 3; r++ {
		lo, hi := gfq3[r]*3, gfq3[r+1]*3
		got, err := Inflate(fakeRankComm{rank: r, size: 3}, fakeConnectivity{2}, gfq3, pertree, all[lo:hi], nil, 0, 2, nil, nil, nil)
		if err != nil {
			t.Fatalf("rank %d: Inflate: %v", r, err)
		}
		results = append(results, got)
	}

	var reassembled []int32
	for _, got := range results {
		recs, _ := Deflate(got, false)
		reassembled = append(reassembled, recs...)
	}
	origRecords, _ := Deflate(orig, false)
	if len(reassembled) != len(origRecords) {
		t.Fatalf("reassembled %d records, want %d", len(reassembled), len(origRecords))
	}
	for i := range origRecords {
		if reassembled[i] != origRecords[i] {
			t.Fatalf("record %d: got %d, want %d", i, reassembled[i], origRecords[i])
		}
	}
}

func TestInflatePreconditionPanics(t *testing.T) {
	cases := []struct {
		name    string
		gfq     []int64
		pertree []int64
	}{
		{"gfq[0] != 0", []int64{1, 1}, []int64{0, 1}},
		{"gfq not monotonic", []int64{0, 5, 2}, []int64{0, 7}},
		{"pertree[0] != 0", []int64{0, 1}, []int64{1, 2}},
		{"gfq total != pertree total", []int64{0, 1}, []int64{0, 2}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for %s", c.name)
				}
			}()
			comm2 := fakeRankComm{rank: 0, size: len(c.gfq) - 1}
			Inflate(comm2, fakeConnectivity{len(c.pertree) - 1}, c.gfq, c.pertree, nil, nil, 0, 2, nil, nil, nil)
		})
	}
}

func TestInflateFuzzedPartitionRoundTrip(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	for trial := 0; trial < 20; trial++ {
		var numTrees uint8
		fz.Fuzz(&numTrees)
		n := int(numTrees%6) + 1
		cellsPerTree := make([]int, n)
		for i := range cellsPerTree {
			var c uint8
			fz.Fuzz(&c)
			cellsPerTree[i] = int(c % 4)
		}
		orig := buildForest(2, n, cellsPerTree, 0)
		pertree := make([]int64, n+1)
		total := int64(0)
		for i, c := range cellsPerTree {
			total += int64(c)
			pertree[i+1] = total
		}
		records, _ := Deflate(orig, false)
		got, err := Inflate(comm.Single, fakeConnectivity{n}, []int64{0, total}, pertree, records, nil, 0, 2, nil, nil, nil)
		if err != nil {
			t.Fatalf("trial %d: Inflate: %v", trial, err)
		}
		gotRecords, _ := Deflate(got, false)
		if len(gotRecords) != len(records) {
			t.Fatalf("trial %d: round trip length mismatch", trial)
		}
		for i := range records {
			if gotRecords[i] != records[i] {
				t.Fatalf("trial %d: record %d mismatch: got %d, want %d", trial, i, gotRecords[i], records[i])
			}
		}
	}
}

// fakeRankComm is a Communicator that only reports rank/size; Inflate's
// preconditions and local bookkeeping don't touch Bcast/AllReduceOr.
type fakeRankComm struct{ rank, size int }

func (c fakeRankComm) Rank() int { return c.rank }
func (c fakeRankComm) Size() int { return c.size }
func (c fakeRankComm) Bcast(context.Context, []byte, int) error { return nil }
func (c fakeRankComm) AllReduceOr(_ context.Context, v bool) (bool, error) { return v, nil }

func assertForestsEqual(t *testing.T, want, got *Forest) {
	t.Helper()
	if got.Dim != want.Dim || len(got.Trees) != len(want.Trees) {
		t.Fatalf("shape mismatch: got dim=%d trees=%d, want dim=%d trees=%d", got.Dim, len(got.Trees), want.Dim, len(want.Trees))
	}
	for i := range want.Trees {
		wc, gc := want.Trees[i].Cells, got.Trees[i].Cells
		if len(wc) != len(gc) {
			t.Fatalf("tree %d: got %d cells, want %d", i, len(gc), len(wc))
		}
		for j := range wc {
			if wc[j].X != gc[j].X || wc[j].Y != gc[j].Y || wc[j].Z != gc[j].Z || wc[j].Level != gc[j].Level {
				t.Fatalf("tree %d cell %d: got %+v, want %+v", i, j, gc[j], wc[j])
			}
			if string(wc[j].Data) != string(gc[j].Data) {
				t.Fatalf("tree %d cell %d: data mismatch", i, j)
			}
		}
	}
}

// sliceGlobalCells restricts trees' cell lists to the half-open global
// cell range [lo, hi), using pertree to know each tree's starting
// global index.
func sliceGlobalCells(trees []Tree, pertree []int64, lo, hi int64) []Tree {
	out := make([]Tree, len(trees))
	for t, tree := range trees {
		start := pertree[t]
		for i, c := range tree.Cells {
			g := start + int64(i)
			if g >= lo && g < hi {
				out[t].Cells = append(out[t].Cells, c)
			}
		}
	}
	return out
}
