// Package pforest implements the deflate/inflate half of the core:
// flattening a partitioned forest of quadtrees or octrees to a
// partition-independent sequence of per-cell records, and reconstructing
// an equivalent forest from such a sequence plus global partition
// metadata.
//
// The forest refinement/coarsening/balance algorithms, the connectivity
// graph's internals, and the spatial coordinate/level-bit layout of a
// cell are out of scope: this package consumes them only through the
// Connectivity and CellFactory interfaces below.
package pforest

import (
	"github.com/gghosh8495/p4est/comm"
)

// QMaxLevel is the maximum refinement level a cell may hold.
const QMaxLevel = 30

// Connectivity is the opaque tree-connectivity graph this package
// builds forests over. The core only ever needs to know how many trees
// it has.
type Connectivity interface {
	NumTrees() int
}

// Cell is one leaf of one tree: spatial coordinates, a refinement
// level, and an optional opaque user-data payload whose size is
// uniform across the whole forest.
type Cell struct {
	X, Y, Z int32
	Level   uint8
	Data    []byte
}

// Tree is one locally-present or locally-absent tree of the forest.
// Cells are sorted by space-filling-curve index, which this package
// takes on faith from the caller (and from the order records are
// decoded in during Inflate).
type Tree struct {
	Cells []Cell

	// LevelCount[l] is the number of this tree's local cells at
	// refinement level l.
	LevelCount [QMaxLevel + 1]int64

	// FirstDesc and LastDesc are the first and last descendant, at
	// QMaxLevel, of this tree's first and last local cell
	// respectively. Zero-valued if the tree has no local cells.
	FirstDesc, LastDesc Cell
}

// CellFactory is the forest-construction collaborator that knows how
// to compute a cell's first and last descendant at the maximum
// refinement level. The coordinate and level-bit layout this requires
// is out of scope for this package; Inflate consumes it only through
// this interface.
type CellFactory interface {
	// Descendants returns c's first and last descendant at maxLevel.
	Descendants(c Cell, maxLevel int) (first, last Cell)
}

// DefaultCellFactory is a CellFactory good enough to exercise Inflate
// and its tests without a real mesh library: a cell's coordinates name
// its lower corner regardless of level, so the first descendant shares
// them outright, and the last descendant's coordinates are offset by
// one less than the cell's side length at maxLevel.
type DefaultCellFactory struct{ Dim int }

func (f DefaultCellFactory) Descendants(c Cell, maxLevel int) (first, last Cell) {
	first = Cell{X: c.X, Y: c.Y, Z: c.Z, Level: uint8(maxLevel)}
	side := int32(1) << uint(maxLevel-int(c.Level))
	last = Cell{X: c.X + side - 1, Y: c.Y + side - 1, Level: uint8(maxLevel)}
	if f.Dim == 3 {
		last.Z = c.Z + side - 1
	}
	return first, last
}

// PartitionPublisher is the global-partition-publish collaborator:
// after Inflate populates the local trees, it computes each rank's
// first local cell's spatial position and replicates it to every rank.
// The computation itself belongs to the out-of-scope mesh connectivity
// subsystem; Inflate consumes it only through this interface.
type PartitionPublisher interface {
	Publish(c comm.Communicator, f *Forest) error
}

// NopPublisher is a PartitionPublisher that does nothing. It is useful
// for callers (and tests) that do not need the published positions,
// since Inflate's other invariants do not depend on them.
type NopPublisher struct{}

func (NopPublisher) Publish(comm.Communicator, *Forest) error { return nil }

// Forest is a partitioned collection of adaptive trees over a
// connectivity graph.
type Forest struct {
	Dim          int
	Connectivity Connectivity
	UserPointer  interface{}

	Rank, Size int
	// DataSize is the uniform per-cell user-data size in bytes, 0 if
	// the forest carries no per-cell user data.
	DataSize int

	// GFQ is the partition vector: size Size+1, GFQ[0]==0, monotonic
	// non-decreasing, GFQ[Size] == global cell count.
	GFQ []int64

	// FirstLocalTree and LastLocalTree bound the inclusive range of
	// trees with locally-present cells. The empty-local convention
	// (no local cells at all) is FirstLocalTree == -1,
	// LastLocalTree == -2.
	FirstLocalTree, LastLocalTree int

	Trees []Tree

	MaxLevel int

	// Revision counts structural modifications; Inflate always
	// produces a forest with Revision == 0.
	Revision uint64
}

// LocalNumCells returns this rank's local cell count.
func (f *Forest) LocalNumCells() int64 {
	return f.GFQ[f.Rank+1] - f.GFQ[f.Rank]
}

// GlobalNumCells returns the forest's total cell count.
func (f *Forest) GlobalNumCells() int64 {
	return f.GFQ[len(f.GFQ)-1]
}

// HasLocalCells reports whether this rank owns any cells, i.e. whether
// FirstLocalTree/LastLocalTree hold a real range rather than the
// empty-local convention.
func (f *Forest) HasLocalCells() bool {
	return f.FirstLocalTree >= 0
}
