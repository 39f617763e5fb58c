package main

import (
	"fmt"
	"sort"
)

// BlockID is the stable identity of a block in the ownership store
type BlockID uint64

// OwnerID is the stable identity of a player or bot
type OwnerID uint64

// OwnerKind tags the OwnerType variant
type OwnerKind uint8

const (
	OwnerNone   OwnerKind = 0
	OwnerPlayer OwnerKind = 1
)

// OwnerType is either nobody or a specific player. Switch on Kind.
type OwnerType struct {
	Kind   OwnerKind `msgpack:"k" json:"k"`
	Player OwnerID   `msgpack:"p,omitempty" json:"p,omitempty"`
}

// NoOwner returns the unowned variant
func NoOwner() OwnerType {
	return OwnerType{Kind: OwnerNone}
}

// PlayerOwner returns the owned-by-player variant
func PlayerOwner(id OwnerID) OwnerType {
	return OwnerType{Kind: OwnerPlayer, Player: id}
}

// IsNone reports whether nobody owns the block
func (o OwnerType) IsNone() bool {
	return o.Kind == OwnerNone
}

// Is reports whether the block is owned by the given player
func (o OwnerType) Is(id OwnerID) bool {
	return o.Kind == OwnerPlayer && o.Player == id
}

func (o OwnerType) String() string {
	switch o.Kind {
	case OwnerNone:
		return "none"
	case OwnerPlayer:
		return fmt.Sprintf("player(%d)", o.Player)
	default:
		return fmt.Sprintf("invalid(%d)", o.Kind)
	}
}

// BlockRecord is one row of the ownership store
type BlockRecord struct {
	ID    BlockID   `msgpack:"id" json:"id"`
	Owner OwnerType `msgpack:"o" json:"o"`
	X     int32     `msgpack:"x" json:"x"`
	Y     int32     `msgpack:"y" json:"y"`
}

// BlockRef is a local handle into a Scene
type BlockRef int32

// AttachedBlock is the back-reference from a block to the grid cell holding it.
// The grid's cell map is the owning edge; this is plain data.
type AttachedBlock struct {
	OwningGrid OwnerID
	GridOffset Pos
}

type sceneBlock struct {
	id       BlockID
	x, y     int32
	link     AttachedBlock
	attached bool
}

// Scene is the arena of blocks spawned in one process view
type Scene struct {
	blocks []sceneBlock
	byID   map[BlockID]BlockRef
}

// NewScene creates an empty Scene
func NewScene() *Scene {
	return &Scene{byID: make(map[BlockID]BlockRef)}
}

// Spawn registers a block id and returns its reference. Spawning a known id
// only refreshes its last known position.
func (s *Scene) Spawn(id BlockID, x, y int32) BlockRef {
	if ref, ok := s.byID[id]; ok {
		s.blocks[ref].x = x
		s.blocks[ref].y = y
		return ref
	}
	ref := BlockRef(len(s.blocks))
	s.blocks = append(s.blocks, sceneBlock{id: id, x: x, y: y})
	s.byID[id] = ref
	return ref
}

// Lookup returns the reference for a block id
func (s *Scene) Lookup(id BlockID) (BlockRef, bool) {
	ref, ok := s.byID[id]
	return ref, ok
}

// ID returns the block id behind a reference
func (s *Scene) ID(ref BlockRef) (BlockID, bool) {
	if !s.valid(ref) {
		return 0, false
	}
	return s.blocks[ref].id, true
}

// Position returns the last known world position of a block
func (s *Scene) Position(ref BlockRef) (int32, int32) {
	if !s.valid(ref) {
		return 0, 0
	}
	b := s.blocks[ref]
	return b.x, b.y
}

// Link returns the attachment back-reference, if any
func (s *Scene) Link(ref BlockRef) (AttachedBlock, bool) {
	if !s.valid(ref) {
		return AttachedBlock{}, false
	}
	b := s.blocks[ref]
	return b.link, b.attached
}

// Len returns the number of spawned blocks
func (s *Scene) Len() int {
	return len(s.blocks)
}

// Spawned returns every spawned reference ordered by block id
func (s *Scene) Spawned() []BlockRef {
	refs := make([]BlockRef, len(s.blocks))
	for i := range s.blocks {
		refs[i] = BlockRef(i)
	}
	sort.Slice(refs, func(i, j int) bool {
		return s.blocks[refs[i]].id < s.blocks[refs[j]].id
	})
	return refs
}

func (s *Scene) setLink(ref BlockRef, link AttachedBlock) {
	s.blocks[ref].link = link
	s.blocks[ref].attached = true
}

func (s *Scene) clearLink(ref BlockRef) {
	if !s.valid(ref) {
		return
	}
	s.blocks[ref].link = AttachedBlock{}
	s.blocks[ref].attached = false
}

func (s *Scene) valid(ref BlockRef) bool {
	return ref >= 0 && int(ref) < len(s.blocks)
}
