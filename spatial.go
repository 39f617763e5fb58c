package main

// SpatialCellSize is the bucket edge of the block index in world units
const SpatialCellSize = 200

type cellKey struct {
	cx, cy int32
}

// BlockIndex buckets free blocks by world position for proximity queries
type BlockIndex struct {
	cells map[cellKey][]BlockRecord
	n     int
}

// NewBlockIndex creates an empty index
func NewBlockIndex() *BlockIndex {
	return &BlockIndex{cells: make(map[cellKey][]BlockRecord)}
}

func floorDiv(v, d int32) int32 {
	q := v / d
	if v%d != 0 && v < 0 {
		q--
	}
	return q
}

func keyOf(x, y int32) cellKey {
	return cellKey{floorDiv(x, SpatialCellSize), floorDiv(y, SpatialCellSize)}
}

// Clear resets all cells (keeps allocated capacity)
func (ix *BlockIndex) Clear() {
	for k, c := range ix.cells {
		ix.cells[k] = c[:0]
	}
	ix.n = 0
}

// Insert adds a block at its world position
func (ix *BlockIndex) Insert(rec BlockRecord) {
	k := keyOf(rec.X, rec.Y)
	ix.cells[k] = append(ix.cells[k], rec)
	ix.n++
}

// Len returns the number of indexed blocks
func (ix *BlockIndex) Len() int {
	return ix.n
}

// QueryBuf appends every block in cells overlapping the square of the given
// radius around (x, y) to buf and returns the extended slice.
func (ix *BlockIndex) QueryBuf(x, y, radius int32, buf []BlockRecord) []BlockRecord {
	lo := keyOf(x-radius, y-radius)
	hi := keyOf(x+radius, y+radius)
	for cy := lo.cy; cy <= hi.cy; cy++ {
		for cx := lo.cx; cx <= hi.cx; cx++ {
			buf = append(buf, ix.cells[cellKey{cx, cy}]...)
		}
	}
	return buf
}

// Nearest returns the closest block within radius of (x, y). Ties go to the
// lower block id.
func (ix *BlockIndex) Nearest(x, y, radius int32) (BlockRecord, bool) {
	var best BlockRecord
	bestD := int64(radius) * int64(radius)
	found := false
	for _, rec := range ix.QueryBuf(x, y, radius, nil) {
		dx := int64(rec.X) - int64(x)
		dy := int64(rec.Y) - int64(y)
		d := dx*dx + dy*dy
		if d > bestD {
			continue
		}
		if !found || d < bestD || rec.ID < best.ID {
			best, bestD, found = rec, d, true
		}
	}
	return best, found
}
