/*
Package pforest and its subpackages implement the parallel
serialization core of a distributed adaptive-mesh forest library: a
quadtree/octree forest can be flattened to a partition-independent
sequence of per-cell records (Deflate) and reconstructed from such a
sequence on an arbitrary process count and partition (Inflate), and the
resulting records can be written to and read back from a self-describing,
text-readable-header, binary file format via package pfile.

The subpackages are layered in dependency order:

	pad   - the padding calculator (block alignment)
	meta  - the file-header and block-header text codec
	comm  - the collective-operations and file-I/O collaborators this
	        core consumes but does not implement, plus a local,
	        single-process implementation of both
	pfile - file context, offset bookkeeping, and the collective I/O
	        protocol built on top of pad, meta, and comm

This package itself holds the data model (Forest, Tree, Cell) and the
Deflate/Inflate transformations between it and the flat record arrays
pfile's field blocks carry.
*/
package pforest
