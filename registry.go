package main

import "sort"

// GridConfig holds the shape every new grid starts with
type GridConfig struct {
	Size     GridSize `yaml:"size" json:"size" envPrefix:"SIZE_"`
	Capacity uint32   `yaml:"capacity" json:"capacity" env:"CAPACITY"`
}

// Registry maps owners to their grids inside one Scene
type Registry struct {
	scene *Scene
	grids map[OwnerID]*Grid
	cfg   GridConfig
}

// NewRegistry creates an empty registry over a scene
func NewRegistry(scene *Scene, cfg GridConfig) *Registry {
	return &Registry{
		scene: scene,
		grids: make(map[OwnerID]*Grid),
		cfg:   cfg,
	}
}

// Scene returns the arena the registry links into
func (r *Registry) Scene() *Scene {
	return r.scene
}

// Grid returns the grid of a tracked owner
func (r *Registry) Grid(owner OwnerID) (*Grid, bool) {
	g, ok := r.grids[owner]
	return g, ok
}

// Track returns the owner's grid, creating an empty one if needed
func (r *Registry) Track(owner OwnerID) *Grid {
	g, ok := r.grids[owner]
	if !ok {
		g = NewGrid(owner, r.cfg.Size, r.cfg.Capacity)
		r.grids[owner] = g
	}
	return g
}

// Untrack forgets an owner's grid and clears the links it held
func (r *Registry) Untrack(owner OwnerID) {
	g, ok := r.grids[owner]
	if !ok {
		return
	}
	for _, ref := range g.cells {
		r.scene.clearLink(ref)
	}
	delete(r.grids, owner)
}

// Owners returns the tracked owners in ascending order
func (r *Registry) Owners() []OwnerID {
	out := make([]OwnerID, 0, len(r.grids))
	for id := range r.grids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AttachRequest records a block in the owner's grid. It returns false when
// the block is unknown or already attached, when capacity is reached, or when
// the grid has no free cell.
func (r *Registry) AttachRequest(ref BlockRef, owner OwnerID) bool {
	if !r.scene.valid(ref) {
		return false
	}
	if _, attached := r.scene.Link(ref); attached {
		return false
	}
	g := r.Track(owner)
	if g.Full() {
		return false
	}
	pos, ok := g.allocate()
	if !ok {
		return false
	}
	r.link(g, pos, ref)
	g.syncCursor()
	return true
}

func (r *Registry) link(g *Grid, pos Pos, ref BlockRef) {
	g.attachAt(pos, ref)
	r.scene.setLink(ref, AttachedBlock{OwningGrid: g.Owner, GridOffset: pos})
}

func (r *Registry) detach(g *Grid, pos Pos) (BlockRef, bool) {
	ref, ok := g.Remove(pos)
	if !ok {
		return 0, false
	}
	if link, linked := r.scene.Link(ref); linked && link.OwningGrid == g.Owner && link.GridOffset == pos {
		r.scene.clearLink(ref)
	}
	return ref, true
}

// restore places a block at a known cell, used when loading snapshots
func (r *Registry) restore(owner OwnerID, pos Pos, ref BlockRef) bool {
	g := r.Track(owner)
	if !g.Size.Contains(pos) || g.Full() {
		return false
	}
	if _, taken := g.cells[pos]; taken {
		return false
	}
	if _, attached := r.scene.Link(ref); attached {
		return false
	}
	r.link(g, pos, ref)
	g.syncCursor()
	return true
}
