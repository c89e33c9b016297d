package pforest

import (
	"sort"

	"github.com/gghosh8495/p4est/comm"
)

// Inflate reconstructs a forest from a record array produced by Deflate
// (possibly on a different rank count or partition), plus the global
// partition metadata gfq and pertree.
//
// gfq has size comm.Size()+1 and pertree has size
// connectivity.NumTrees()+1; both are the caller's monotonic prefix
// sums. Violating any of the structural preconditions — gfq[0]==0 and
// monotonic, pertree[0]==0 and monotonic, gfq[last]==pertree[last], and
// the record/data array lengths matching this rank's local cell count —
// is a programmer error and aborts via panic rather than returning an
// error: these are not part of the error surface.
//
// The returned forest's Revision is always 0.
func Inflate(
	c comm.Communicator,
	connectivity Connectivity,
	gfq []int64,
	pertree []int64,
	records []int32,
	data []byte,
	dataSize int,
	dim int,
	userPointer interface{},
	factory CellFactory,
	publisher PartitionPublisher,
) (*Forest, error) {
	if connectivity == nil {
		panic("pforest: Inflate with nil connectivity")
	}
	numTrees := connectivity.NumTrees()
	checkPrefixSum(gfq, "gfq")
	checkPrefixSum(pertree, "pertree")
	if len(gfq) != c.Size()+1 {
		panic("pforest: len(gfq) != comm.Size()+1")
	}
	if len(pertree) != numTrees+1 {
		panic("pforest: len(pertree) != connectivity.NumTrees()+1")
	}
	if gfq[len(gfq)-1] != pertree[len(pertree)-1] {
		panic("pforest: gfq[size] != pertree[numTrees]")
	}

	f := &Forest{
		Dim:          dim,
		Connectivity: connectivity,
		UserPointer:  userPointer,
		Rank:         c.Rank(),
		Size:         c.Size(),
		DataSize:     dataSize,
		GFQ:          append([]int64(nil), gfq...),
		Trees:        make([]Tree, numTrees),
	}

	local := int(f.LocalNumCells())
	width := dim + 1
	if len(records) != width*local {
		panic("pforest: len(records) does not match (dim+1) * local cell count")
	}
	if data != nil && dataSize > 0 && len(data) != local*dataSize {
		panic("pforest: len(data) does not match local cell count * DataSize")
	}

	if factory == nil {
		factory = DefaultCellFactory{Dim: dim}
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}

	if local == 0 {
		f.FirstLocalTree, f.LastLocalTree = -1, -2
	} else {
		lo := f.GFQ[f.Rank]
		hi := f.GFQ[f.Rank+1] - 1
		f.FirstLocalTree = treeContaining(pertree, lo)
		f.LastLocalTree = treeContaining(pertree, hi)
	}

	gtreeskip := int64(0)
	if local > 0 {
		gtreeskip = f.GFQ[f.Rank] - pertree[f.FirstLocalTree]
	}
	remaining := local
	recPos := 0
	dataPos := 0

	for t := 0; t < numTrees; t++ {
		if !f.HasLocalCells() || t < f.FirstLocalTree || t > f.LastLocalTree {
			continue
		}
		count64 := pertree[t+1] - pertree[t] - gtreeskip
		count := int(count64)
		if count > remaining {
			count = remaining
		}
		tree := &f.Trees[t]
		tree.Cells = make([]Cell, count)
		for i := 0; i < count; i++ {
			cell := Cell{
				X:     records[recPos],
				Y:     records[recPos+1],
				Level: 0,
			}
			if dim == 3 {
				cell.Z = records[recPos+2]
				cell.Level = uint8(records[recPos+3])
				recPos += 4
			} else {
				cell.Level = uint8(records[recPos+2])
				recPos += 3
			}
			if data != nil && dataSize > 0 {
				cell.Data = append([]byte(nil), data[dataPos:dataPos+dataSize]...)
				dataPos += dataSize
			}
			tree.LevelCount[cell.Level]++
			if int(cell.Level) > f.MaxLevel {
				f.MaxLevel = int(cell.Level)
			}
			tree.Cells[i] = cell
		}
		if count > 0 {
			first, _ := factory.Descendants(tree.Cells[0], QMaxLevel)
			_, last := factory.Descendants(tree.Cells[count-1], QMaxLevel)
			tree.FirstDesc, tree.LastDesc = first, last
		}
		remaining -= count
		gtreeskip = 0
	}
	if remaining != 0 {
		panic("pforest: Inflate did not consume exactly local cell count records")
	}

	if err := publisher.Publish(c, f); err != nil {
		return nil, err
	}
	return f, nil
}

func checkPrefixSum(v []int64, name string) {
	if len(v) == 0 || v[0] != 0 {
		panic("pforest: " + name + "[0] != 0")
	}
	for i := 1; i < len(v); i++ {
		if v[i] < v[i-1] {
			panic("pforest: " + name + " is not monotonic non-decreasing")
		}
	}
}

// treeContaining returns the largest tree index t with pertree[t] <= v,
// i.e. the tree that global cell index v falls in. A cell exactly on a
// tree's lower boundary is considered to begin that tree.
func treeContaining(pertree []int64, v int64) int {
	t := sort.Search(len(pertree), func(i int) bool { return pertree[i] > v }) - 1
	if t < 0 {
		t = 0
	}
	return t
}
