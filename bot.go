package main

import (
	"errors"
	"log"
)

const (
	// botIDBase keeps bot owner ids clear of database player ids
	botIDBase OwnerID = 1 << 48

	botSearchRadius = 3 * SpatialCellSize
)

// Bot is a server-side owner that collects free blocks on its own
type Bot struct {
	ID       OwnerID
	Name     string
	View     *View
	HomeX    int32
	HomeY    int32
	every    int
	cooldown int
}

// NewBot creates a bot with an empty grid
func NewBot(id OwnerID, name string, homeX, homeY int32, store OwnershipStore, cfg Config, events BlockEvents) *Bot {
	v := NewView(id, store, cfg.Engine())
	v.Reconciler.SetEvents(events)
	every := cfg.Spawn.BotEvery
	if every < 1 {
		every = 1
	}
	return &Bot{
		ID:       id,
		Name:     name,
		View:     v,
		HomeX:    homeX,
		HomeY:    homeY,
		every:    every,
		cooldown: every,
	}
}

// IsBot reports whether an owner id belongs to a bot
func IsBot(id OwnerID) bool {
	return id >= botIDBase
}

// Update claims the free block nearest to home each time the cooldown runs
// out, or a random one when nothing is close. A bot with no room left drops
// the last cell in scan order instead, so blocks keep circulating.
func (b *Bot) Update(g *Game) {
	if b.cooldown > 0 {
		b.cooldown--
		return
	}
	b.cooldown = b.every

	local := b.View.Local()
	if _, ok := local.NextFreePos(); local.Full() || !ok {
		if ps := local.Positions(); len(ps) > 0 {
			b.View.Release(ps[len(ps)-1])
		}
		return
	}

	rec, ok := g.index.Nearest(b.HomeX, b.HomeY, botSearchRadius)
	if !ok {
		free := g.freeBlocks()
		if len(free) == 0 {
			return
		}
		rec = free[g.rng.Intn(len(free))]
	}
	if _, err := g.claim(b.View, rec.ID); err != nil && !errors.Is(err, ErrBlockTaken) {
		log.Printf("session %s: bot %s claim block %d: %v", g.id, b.Name, rec.ID, err)
	}
}
