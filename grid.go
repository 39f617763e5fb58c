package main

import "sort"

// Pos is a cell offset relative to the owner. Rows grow downward, so the
// n-th row away from the owner has Y == -n.
type Pos struct {
	X int32 `msgpack:"x" json:"x"`
	Y int32 `msgpack:"y" json:"y"`
}

// Origin is the owner's own cell, never occupied by a block
var Origin = Pos{}

var cardinals = [4]Pos{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

func (p Pos) add(d Pos) Pos {
	return Pos{p.X + d.X, p.Y + d.Y}
}

// GridSize holds the grid half-extents: x in [-W, W], rows 0..H
type GridSize struct {
	W int32 `msgpack:"w" json:"w" yaml:"w" env:"W"`
	H int32 `msgpack:"h" json:"h" yaml:"h" env:"H"`
}

// Contains reports whether p is an allocatable cell
func (s GridSize) Contains(p Pos) bool {
	if p == Origin {
		return false
	}
	return p.X >= -s.W && p.X <= s.W && p.Y <= 0 && p.Y >= -s.H
}

// Cells returns the number of allocatable cells
func (s GridSize) Cells() int {
	if s.W < 0 || s.H < 0 {
		return 0
	}
	return int(2*s.W+1)*int(s.H+1) - 1
}

// first returns the first cell in scan order
func (s GridSize) first() (Pos, bool) {
	if s.W < 0 || s.H < 0 {
		return Pos{}, false
	}
	p := Pos{-s.W, 0}
	if p == Origin {
		return s.step(p)
	}
	return p, true
}

// step returns the cell after p in scan order: ascending x within a row,
// rows moving away from the owner, origin skipped. Both the allocator scan
// and the cursor walk through here.
func (s GridSize) step(p Pos) (Pos, bool) {
	p.X++
	if p.X > s.W {
		p.X = -s.W
		p.Y--
	}
	if p.Y < -s.H {
		return Pos{}, false
	}
	if p == Origin {
		return s.step(p)
	}
	return p, true
}

// scanLess orders cells by the allocator scan order
func scanLess(a, b Pos) bool {
	if a.Y != b.Y {
		return a.Y > b.Y
	}
	return a.X < b.X
}

// Grid is one owner's bounded cell space and its occupied cells
type Grid struct {
	Owner    OwnerID
	Size     GridSize
	Capacity uint32
	Load     uint32

	cells   map[Pos]BlockRef
	next    Pos
	hasNext bool
}

// NewGrid creates an empty grid with the cursor on the first cell
func NewGrid(owner OwnerID, size GridSize, capacity uint32) *Grid {
	g := &Grid{
		Owner:    owner,
		Size:     size,
		Capacity: capacity,
		cells:    make(map[Pos]BlockRef),
	}
	g.syncCursor()
	return g
}

// FindNextFreePos scans the grid in allocation order and returns the first
// unoccupied cell. It returns false once every cell is taken, regardless of
// Capacity.
func (g *Grid) FindNextFreePos() (Pos, bool) {
	for p, ok := g.Size.first(); ok; p, ok = g.Size.step(p) {
		if _, taken := g.cells[p]; !taken {
			return p, true
		}
	}
	return Pos{}, false
}

// IncrementGridPos advances the cursor one step in scan order and counts
// one more attached block.
func (g *Grid) IncrementGridPos() {
	if g.hasNext {
		g.next, g.hasNext = g.Size.step(g.next)
	}
	g.Load++
}

// NextFreePos returns the cached cursor
func (g *Grid) NextFreePos() (Pos, bool) {
	return g.next, g.hasNext
}

// Full reports whether the numeric capacity is reached
func (g *Grid) Full() bool {
	return g.Load >= g.Capacity
}

// At returns the block at a cell
func (g *Grid) At(p Pos) (BlockRef, bool) {
	ref, ok := g.cells[p]
	return ref, ok
}

// Len returns the number of occupied cells
func (g *Grid) Len() int {
	return len(g.cells)
}

// Positions returns the occupied cells in scan order
func (g *Grid) Positions() []Pos {
	out := make([]Pos, 0, len(g.cells))
	for p := range g.cells {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return scanLess(out[i], out[j]) })
	return out
}

// Cells returns a copy of the cell map
func (g *Grid) Cells() map[Pos]BlockRef {
	out := make(map[Pos]BlockRef, len(g.cells))
	for p, ref := range g.cells {
		out[p] = ref
	}
	return out
}

// Remove clears a cell and returns what it held
func (g *Grid) Remove(p Pos) (BlockRef, bool) {
	ref, ok := g.cells[p]
	if !ok {
		return 0, false
	}
	delete(g.cells, p)
	if g.Load > 0 {
		g.Load--
	}
	return ref, true
}

// place records a block at p without touching the counters
func (g *Grid) place(p Pos, ref BlockRef) {
	g.cells[p] = ref
}

// attachAt records a block at p and advances the cursor from p
func (g *Grid) attachAt(p Pos, ref BlockRef) {
	g.place(p, ref)
	g.next, g.hasNext = p, true
	g.IncrementGridPos()
}

// allocate returns the first free cell in scan order that touches the
// origin or a reachable block, so a new block is never born disconnected.
func (g *Grid) allocate() (Pos, bool) {
	reach := Reachable(g)
	for p, ok := g.Size.first(); ok; p, ok = g.Size.step(p) {
		if _, taken := g.cells[p]; taken {
			continue
		}
		for _, d := range cardinals {
			n := p.add(d)
			if n == Origin {
				return p, true
			}
			if _, ok := reach[n]; ok {
				return p, true
			}
		}
	}
	return Pos{}, false
}

func (g *Grid) syncCursor() {
	g.next, g.hasNext = g.FindNextFreePos()
}
