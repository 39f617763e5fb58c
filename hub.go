package main

import (
	"context"
	"errors"
	"sync"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

var errSessionNotFound = errors.New("session not found")

// Hub manages all connected clients and routes them to sessions
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sessions   *SessionManager
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
	// Auth & DB; both nil when running without a database
	db        *DB
	auth      *Auth
	analytics *Analytics
	// Guest ids when there is no players table to allocate them
	guestMu   sync.Mutex
	nextGuest OwnerID
	// Online auth users: owner id -> *Client
	onlineMu    sync.RWMutex
	onlineUsers map[OwnerID]*Client
}

// NewHub creates a new Hub. db and analytics may be nil.
func NewHub(db *DB, analytics *Analytics, sessions *SessionManager) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		sessions:    sessions,
		ipConns:     make(map[string]int),
		db:          db,
		analytics:   analytics,
		onlineUsers: make(map[OwnerID]*Client),
	}
	if db != nil {
		h.auth = NewAuth(db)
	}
	return h
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if client.authed {
				h.SetOffline(client.ownerID)
			}
			// Remove from session if in one
			if client.sessionID != "" {
				h.sessions.RemovePlayer(client.sessionID, client.ownerID)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// guestIdentity hands out an owner id for a client that never logged in
func (h *Hub) guestIdentity() (OwnerID, string, error) {
	if h.auth != nil {
		return h.auth.Guest()
	}
	h.guestMu.Lock()
	defer h.guestMu.Unlock()
	h.nextGuest++
	return h.nextGuest, GenerateGuestName(), nil
}

// Leaderboard ranks a session's owners by blocks held
func (h *Hub) Leaderboard(sid string, limit int) ([]LeaderboardEntry, error) {
	sess := h.sessions.GetSession(sid)
	if sess == nil {
		return nil, errSessionNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if h.db == nil {
		return sess.Game.Leaderboard(limit), nil
	}
	entries, err := h.db.GetLeaderboard(sid, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Username == "" {
			entries[i].Username = sess.Game.OwnerName(entries[i].OwnerID)
		}
	}
	return entries, nil
}

// SetOnline marks an authenticated user as online
func (h *Hub) SetOnline(id OwnerID, client *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	h.onlineUsers[id] = client
}

// SetOffline removes an authenticated user from online tracking
func (h *Hub) SetOffline(id OwnerID) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	delete(h.onlineUsers, id)
}

// IsOnline checks if a player is online
func (h *Hub) IsOnline(id OwnerID) bool {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	_, ok := h.onlineUsers[id]
	return ok
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
