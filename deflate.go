package pforest

// Deflate extracts this rank's local cells' (x, y[, z], level) records,
// tree boundaries excluded, in tree-then-stored order. The record array
// always has (f.Dim+1)*f.LocalNumCells() entries.
//
// If withData is true, Deflate also copies every local cell's
// user-data region into a contiguous byte array of
// f.LocalNumCells()*f.DataSize bytes. It panics if withData is true but
// f.DataSize is 0: requesting data the forest was never built to carry
// is a programmer error, not a runtime condition.
func Deflate(f *Forest, withData bool) (records []int32, data []byte) {
	if f == nil {
		panic("pforest: Deflate of a nil forest")
	}
	if withData && f.DataSize == 0 {
		panic("pforest: Deflate requested user data but forest has DataSize == 0")
	}
	width := f.Dim + 1
	local := int(f.LocalNumCells())
	records = make([]int32, 0, local*width)
	if withData {
		data = make([]byte, 0, local*f.DataSize)
	}
	if !f.HasLocalCells() {
		return records, data
	}
	for t := f.FirstLocalTree; t <= f.LastLocalTree; t++ {
		for _, c := range f.Trees[t].Cells {
			records = append(records, c.X, c.Y)
			if f.Dim == 3 {
				records = append(records, c.Z)
			}
			records = append(records, int32(c.Level))
			if withData {
				if len(c.Data) != f.DataSize {
					panic("pforest: cell user-data length does not match forest.DataSize")
				}
				data = append(data, c.Data...)
			}
		}
	}
	return records, data
}
