package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const maxSessions = 100

// SessionIdleTimeout is how long an empty session lives before it is reaped
var SessionIdleTimeout = 2 * time.Minute

// StoreFactory opens the block store of one world. Every session is its own
// world, keyed by the session id.
type StoreFactory func(world string) BlockSource

// worldDropper is implemented by stores that can delete a world's blocks
type worldDropper interface {
	DropWorld(ctx context.Context) error
}

// Session represents a game session that players can join
type Session struct {
	ID         string
	Name       string
	Game       *Game
	store      BlockSource
	lastActive time.Time
}

// SessionManager handles creation and lookup of sessions
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	cfg       Config
	stores    StoreFactory
	analytics *Analytics
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(cfg Config, stores StoreFactory, analytics *Analytics) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		cfg:       cfg,
		stores:    stores,
		analytics: analytics,
	}
}

// CreateSession creates a new game session. Returns nil if limit reached.
func (sm *SessionManager) CreateSession(name string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.sessions) >= maxSessions {
		return nil
	}
	return sm.startLocked(GenerateUUID(), name)
}

func (sm *SessionManager) startLocked(id, name string) *Session {
	store := sm.stores(id)
	game := NewGame(id, sm.cfg, store, sm.analytics.ForSession(id))
	sess := &Session{
		ID:         id,
		Name:       name,
		Game:       game,
		store:      store,
		lastActive: time.Now(),
	}
	sm.sessions[id] = sess
	sm.analytics.Track(EvtSessionStart, 0, id, "")
	go game.Run()
	return sess
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// MarkActive resets the idle clock of a session
func (sm *SessionManager) MarkActive(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sess, ok := sm.sessions[id]; ok {
		sess.lastActive = time.Now()
	}
}

// RemovePlayer removes a player from a session
func (sm *SessionManager) RemovePlayer(sessionID string, id OwnerID) {
	sess := sm.GetSession(sessionID)
	if sess == nil {
		return
	}
	sess.Game.RemovePlayer(id)
	sm.MarkActive(sessionID)
}

// Reap stops sessions that have been empty for longer than SessionIdleTimeout
// and returns how many were removed.
func (sm *SessionManager) Reap(now time.Time) int {
	sm.mu.Lock()
	var dead []*Session
	for id, sess := range sm.sessions {
		if sess.Game.PlayerCount() == 0 && now.Sub(sess.lastActive) > SessionIdleTimeout {
			dead = append(dead, sess)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	for _, sess := range dead {
		sess.Game.Stop()
		if d, ok := sess.store.(worldDropper); ok {
			if err := d.DropWorld(context.Background()); err != nil {
				log.Printf("session %s: drop world: %v", sess.ID, err)
			}
		}
		sm.analytics.Track(EvtSessionEnd, 0, sess.ID, "")
	}
	return len(dead)
}

// RunReaper reaps idle sessions until ctx is done
func (sm *SessionManager) RunReaper(ctx context.Context) error {
	every := SessionIdleTimeout / 2
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := sm.Reap(now); n > 0 {
				log.Printf("reaped %d idle sessions", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// ListSessions returns info about all active sessions
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]SessionInfo, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		list = append(list, SessionInfo{
			ID:      sess.ID,
			Name:    sess.Name,
			Players: sess.Game.PlayerCount(),
			Blocks:  sess.Game.BlockCount(),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// StopAll stops every session's game loop
func (sm *SessionManager) StopAll() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, sess := range sm.sessions {
		sess.Game.Stop()
	}
}

// Save writes every session's local grids to path
func (sm *SessionManager) Save(path string) error {
	sm.mu.RLock()
	snap := GridSnapshot{SavedAt: time.Now().Unix()}
	for _, sess := range sm.sessions {
		snap.Sessions = append(snap.Sessions, SessionSnapshot{
			ID:    sess.ID,
			Name:  sess.Name,
			Grids: sess.Game.LocalGrids(),
		})
	}
	sm.mu.RUnlock()
	sort.Slice(snap.Sessions, func(i, j int) bool { return snap.Sessions[i].ID < snap.Sessions[j].ID })

	n, err := WriteGridSnapshot(path, snap)
	if err != nil {
		return err
	}
	log.Printf("saved %d sessions to %s (%s)", len(snap.Sessions), path, humanize.Bytes(uint64(n)))
	return nil
}

// Restore recreates the sessions saved at path. A missing file is not an error.
func (sm *SessionManager) Restore(path string) (int, error) {
	snap, err := ReadGridSnapshot(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for _, ss := range snap.Sessions {
		if len(sm.sessions) >= maxSessions {
			break
		}
		if _, ok := sm.sessions[ss.ID]; ok {
			continue
		}
		sess := sm.startLocked(ss.ID, ss.Name)
		sess.Game.Restore(ss.Grids)
		n++
	}
	return n, nil
}
