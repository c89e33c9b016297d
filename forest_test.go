package pforest

// fakeConnectivity is a stand-in for the opaque connectivity graph:
// this package only ever needs a tree count from it.
type fakeConnectivity struct{ n int }

func (f fakeConnectivity) NumTrees() int { return f.n }

// buildForest assembles a Forest by hand for a single rank (P=1),
// placing cellsPerTree[t] cells in tree t of numTrees trees, in
// increasing coordinate order. It is test scaffolding, not part of the
// public API.
func buildForest(dim int, numTrees int, cellsPerTree []int, dataSize int) *Forest {
	total := 0
	pertree := make([]int64, numTrees+1)
	for i, n := range cellsPerTree {
		total += n
		pertree[i+1] = int64(total)
	}
	f := &Forest{
		Dim:            dim,
		Connectivity:   fakeConnectivity{numTrees},
		Rank:           0,
		Size:           1,
		DataSize:       dataSize,
		GFQ:            []int64{0, int64(total)},
		FirstLocalTree: 0,
		LastLocalTree:  numTrees - 1,
		Trees:          make([]Tree, numTrees),
	}
	coord := int32(0)
	for t, n := range cellsPerTree {
		cells := make([]Cell, n)
		for i := 0; i < n; i++ {
			c := Cell{X: coord, Y: coord * 2, Level: uint8(1 + i%5)}
			if dim == 3 {
				c.Z = coord * 3
			}
			if dataSize > 0 {
				c.Data = make([]byte, dataSize)
				for j := range c.Data {
					c.Data[j] = byte(coord) + byte(j)
				}
			}
			cells[i] = c
			coord++
		}
		f.Trees[t].Cells = cells
	}
	return f
}
