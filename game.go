package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	TickRate      = 30 // reconciliation ticks per second
	BroadcastRate = 15 // state frames per second
	TickDuration  = time.Second / TickRate
)

const maxPlayersPerSession = 20

var (
	ErrBlockTaken   = errors.New("block already owned")
	ErrGridFull     = errors.New("no free grid cell")
	ErrCapacity     = errors.New("grid at capacity")
	ErrNotInSession = errors.New("player not in session")
	ErrSessionFull  = errors.New("session full")
)

// BlockSource is an ownership store that can also spawn blocks
type BlockSource interface {
	OwnershipStore
	SpawnBlock(ctx context.Context, x, y int32) (BlockID, error)
}

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Game holds the state for one game session
type Game struct {
	mu       sync.RWMutex
	id       string
	cfg      Config
	store    BlockSource
	events   BlockEvents
	players  map[OwnerID]*Player
	bots     []*Bot
	clients  map[OwnerID]Broadcaster
	restored map[OwnerID]GridView
	claimed  map[BlockID]OwnerID       // claims written but not yet in a snapshot
	departed map[OwnerID]*releaseQueue // releases of owners who left
	snap     *Snapshot
	index    *BlockIndex // free blocks of snap
	tick     uint64
	rng      *rand.Rand

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	stop    chan struct{}
}

// NewGame creates a new Game over a block source
func NewGame(id string, cfg Config, store BlockSource, events BlockEvents) *Game {
	if events == nil {
		events = noEvents{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Game{
		id:       id,
		cfg:      cfg,
		store:    store,
		events:   events,
		players:  make(map[OwnerID]*Player),
		clients:  make(map[OwnerID]Broadcaster),
		restored: make(map[OwnerID]GridView),
		claimed:  make(map[BlockID]OwnerID),
		departed: make(map[OwnerID]*releaseQueue),
		snap:     NewSnapshot(nil),
		index:    NewBlockIndex(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
	}
	r := cfg.Spawn.Radius
	for i := 0; i < cfg.Bots; i++ {
		hx := int32(g.rng.Intn(int(2*r+1))) - r
		hy := int32(g.rng.Intn(int(2*r+1))) - r
		g.bots = append(g.bots, NewBot(botIDBase+OwnerID(i), fmt.Sprintf("Drone-%d", i+1), hx, hy, store, cfg, events))
	}
	return g
}

// Run starts the game loop
func (g *Game) Run() {
	g.mu.Lock()
	g.running = true
	g.mu.Unlock()

	ticker := time.NewTicker(g.cfg.TickDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		case <-g.ctx.Done():
			return
		}
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancel()
	if g.running {
		g.running = false
		close(g.stop)
	}
}

// AddPlayer adds an owner to the game with a fresh view of the world
func (g *Game) AddPlayer(id OwnerID, name string) (*Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.players[id]; ok {
		return p, nil
	}
	if len(g.players) >= maxPlayersPerSession {
		return nil, ErrSessionFull
	}

	p := NewPlayer(id, name, g.store, g.cfg.Engine(), g.events)
	for _, rec := range g.snap.Records() {
		p.View.Scene.Spawn(rec.ID, rec.X, rec.Y)
	}
	if gv, ok := g.restored[id]; ok {
		n := p.restore(gv)
		delete(g.restored, id)
		log.Printf("session %s: restored %d/%d cells for owner %d", g.id, n, len(gv.Cells), id)
	}
	// a returning owner's view reclaims whatever the store still gives it
	delete(g.departed, id)
	p.JoinedTick = g.tick
	g.players[id] = p
	log.Printf("session %s: owner %d joined, %d blocks in view", g.id, id, p.View.Scene.Len())
	return p, nil
}

// RemovePlayer removes a player and gives its blocks back to the world.
// Releases that cannot be written now are retried on later ticks.
func (g *Game) RemovePlayer(id OwnerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[id]
	if !ok {
		return
	}
	q := p.View.Reconciler.Abandon(g.tick)
	// nobody is left to reclaim a dropped release, so never give up
	q.policy.MaxAttempts = 0
	for bid, owner := range g.claimed {
		if owner != id {
			continue
		}
		if rec, ok := g.snap.Get(bid); ok {
			q.add(bid, rec.X, rec.Y, g.tick)
		}
	}
	g.releaseDeparted(id, q)
	if q.len() > 0 {
		g.departed[id] = q
	}
	delete(g.players, id)
	delete(g.clients, id)
}

// releaseDeparted writes the due releases of an owner who left
func (g *Game) releaseDeparted(id OwnerID, q *releaseQueue) {
	res := q.flush(g.ctx, g.store, g.tick)
	for _, bid := range res.written {
		if g.claimed[bid] == id {
			delete(g.claimed, bid)
		}
		g.events.BlockEvent(EvtBlockRelease, id, bid)
	}
}

// PendingDeparted returns how many releases of departed owners are unsettled
func (g *Game) PendingDeparted() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, q := range g.departed {
		n += q.len()
	}
	return n
}

// HasPlayer reports whether an owner is in the game
func (g *Game) HasPlayer(id OwnerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.players[id]
	return ok
}

// SetClient associates a broadcaster with a player
func (g *Game) SetClient(id OwnerID, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[id] = client
}

// PlayerCount returns the number of players
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

// BlockCount returns the number of blocks in the last snapshot
func (g *Game) BlockCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap.Len()
}

// HandleAttach is the collision signal: the player's ship touched a block.
// The claim is written to the store and the block is attached locally.
func (g *Game) HandleAttach(id OwnerID, block BlockID) (Pos, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[id]
	if !ok {
		return Pos{}, ErrNotInSession
	}
	pos, err := g.claim(p.View, block)
	if err == nil {
		p.Attaches++
	}
	return pos, err
}

// HandleRelease drops the player's block at pos
func (g *Game) HandleRelease(id OwnerID, pos Pos) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[id]
	if !ok {
		return false
	}
	return p.View.Release(pos)
}

// claim takes an unowned block for the view's owner
func (g *Game) claim(v *View, block BlockID) (Pos, error) {
	rec, ok := g.snap.Get(block)
	if !ok {
		return Pos{}, ErrUnknownBlock
	}
	if !rec.Owner.IsNone() {
		return Pos{}, ErrBlockTaken
	}
	if _, ok := g.claimed[block]; ok {
		return Pos{}, ErrBlockTaken
	}
	local := v.Local()
	if local.Full() {
		return Pos{}, ErrCapacity
	}
	if _, ok := local.FindNextFreePos(); !ok {
		return Pos{}, ErrGridFull
	}
	if err := g.store.SetOwner(g.ctx, block, PlayerOwner(v.Self), rec.X, rec.Y); err != nil {
		return Pos{}, fmt.Errorf("claim block %d: %w", block, err)
	}
	g.claimed[block] = v.Self
	v.Reconciler.Claimed(block)
	if !v.AttachRequest(block) {
		// the next reconciliation pass picks it up from the store
		return Pos{}, ErrGridFull
	}
	g.events.BlockEvent(EvtBlockAttach, v.Self, block)
	ref, _ := v.Scene.Lookup(block)
	link, _ := v.Scene.Link(ref)
	return link.GridOffset, nil
}

// update runs one game tick
func (g *Game) update() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.step()
}

func (g *Game) step() {
	g.tick++

	snap, err := g.store.Snapshot(g.ctx)
	if err != nil {
		if g.ctx.Err() == nil {
			log.Printf("session %s: snapshot failed, skipping tick %d: %v", g.id, g.tick, err)
		}
		return
	}
	g.snap = snap
	g.index.Clear()
	for _, rec := range g.freeBlocks() {
		g.index.Insert(rec)
	}
	for id := range g.claimed {
		if rec, ok := snap.Get(id); !ok || !rec.Owner.IsNone() {
			delete(g.claimed, id)
		}
	}

	for id, q := range g.departed {
		g.releaseDeparted(id, q)
		q.settle(snap, g.tick)
		if q.len() == 0 {
			delete(g.departed, id)
		}
	}

	for _, id := range g.playerIDs() {
		g.players[id].View.Sync(g.ctx, snap)
	}
	for _, b := range g.bots {
		b.View.Sync(g.ctx, snap)
		b.Update(g)
	}
	g.spawnBlocks(snap)

	if g.tick%g.cfg.BroadcastEvery() == 0 {
		g.broadcastState()
	}
}

func (g *Game) playerIDs() []OwnerID {
	ids := make([]OwnerID, 0, len(g.players))
	for id := range g.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// spawnBlocks tops up the number of free blocks floating in the world
func (g *Game) spawnBlocks(snap *Snapshot) {
	free := 0
	for _, rec := range snap.Records() {
		if rec.Owner.IsNone() {
			free++
		}
	}
	n := g.cfg.Spawn.MaxFree - free
	if n > g.cfg.Spawn.PerTick {
		n = g.cfg.Spawn.PerTick
	}
	r := g.cfg.Spawn.Radius
	for i := 0; i < n; i++ {
		x := int32(g.rng.Intn(int(2*r+1))) - r
		y := int32(g.rng.Intn(int(2*r+1))) - r
		if _, err := g.store.SpawnBlock(g.ctx, x, y); err != nil {
			log.Printf("session %s: spawn block: %v", g.id, err)
			return
		}
	}
}

// freeBlocks lists the unowned blocks of the last snapshot
func (g *Game) freeBlocks() []BlockRecord {
	var free []BlockRecord
	for _, rec := range g.snap.Records() {
		if rec.Owner.IsNone() {
			free = append(free, rec)
		}
	}
	return free
}

// broadcastState sends each client the world as its own view sees it
func (g *Game) broadcastState() {
	if len(g.clients) == 0 {
		return
	}
	free := g.freeBlocks()
	for id, client := range g.clients {
		p, ok := g.players[id]
		if !ok {
			continue
		}
		data, err := msgpack.Marshal(p.State(g.tick, free))
		if err != nil {
			log.Printf("session %s: encode state: %v", g.id, err)
			continue
		}
		client.SendBinary(data)
	}
}

// OwnerName returns the display name of a player or bot in the game
func (g *Game) OwnerName(id OwnerID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ownerName(id)
}

func (g *Game) ownerName(id OwnerID) string {
	if p, ok := g.players[id]; ok {
		return p.Name
	}
	for _, b := range g.bots {
		if b.ID == id {
			return b.Name
		}
	}
	return ""
}

// Leaderboard ranks the owners of the last snapshot by blocks held
func (g *Game) Leaderboard(limit int) []LeaderboardEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	owners := g.snap.Owners()
	entries := make([]LeaderboardEntry, 0, len(owners))
	for _, id := range owners {
		entries = append(entries, LeaderboardEntry{
			OwnerID:  id,
			Username: g.ownerName(id),
			Blocks:   g.snap.Count(id),
			Bot:      IsBot(id),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Blocks > entries[j].Blocks })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// LocalGrids returns every player's own grid, for persistence
func (g *Game) LocalGrids() []GridView {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]GridView, 0, len(g.players)+len(g.restored))
	for _, id := range g.playerIDs() {
		if gv, ok := g.players[id].View.Describe(id); ok {
			out = append(out, gv)
		}
	}
	for _, gv := range g.restored {
		out = append(out, gv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Restore stashes persisted grids until their owners rejoin
func (g *Game) Restore(grids []GridView) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, gv := range grids {
		g.restored[gv.Owner] = gv
	}
}
