package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxAttachesPerSec = 10 // every accepted attach is a store write
	maxNameLen        = 16
	maxSessionNameLen = 30
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	sessionID  string
	remoteAddr string
	msgs       msgWindow
	attaches   msgWindow
	// Identity: 0 until the client authenticates or joins as a guest
	ownerID OwnerID
	name    string
	authed  bool
}

// msgWindow counts messages in fixed one-second windows
type msgWindow struct {
	count   int
	resetAt time.Time
}

func (w *msgWindow) allow(now time.Time, limit int) bool {
	if now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(time.Second)
	}
	w.count++
	return w.count <= limit
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		if !c.msgs.allow(time.Now(), maxMessagesPerSec) {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgList:
		c.handleList()
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgCheck:
		c.handleCheck(env.D)
	case MsgAttach:
		c.handleAttach(env.D)
	case MsgRelease:
		c.handleRelease(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgLeaderboard:
		c.handleLeaderboard(env.D)
	}
}

func (c *Client) handleList() {
	sessions := c.hub.sessions.ListSessions()
	c.SendJSON(Envelope{T: MsgSessions, Data: sessions})
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sname := clampName(msg.SessionName, "Salvage Field", maxSessionNameLen)
	sess := c.hub.sessions.CreateSession(sname)
	if sess == nil {
		c.sendError("too many active sessions")
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"sid": sess.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.sessionID != "" {
		c.sendError("already in a session")
		return
	}
	sess := c.hub.sessions.GetSession(msg.SessionID)
	if sess == nil {
		c.sendError("session not found")
		return
	}

	if c.ownerID == 0 {
		id, name, err := c.hub.guestIdentity()
		if err != nil {
			log.Printf("guest identity: %v", err)
			c.sendError("could not create guest")
			return
		}
		c.ownerID = id
		c.name = name
	}
	name := clampName(msg.Name, c.name, maxNameLen)
	if sess.Game.HasPlayer(c.ownerID) {
		c.sendError("already in this session")
		return
	}

	player, err := sess.Game.AddPlayer(c.ownerID, name)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.hub.sessions.MarkActive(sess.ID)
	c.sessionID = sess.ID
	sess.Game.SetClient(player.ID, c)
	c.hub.analytics.Track(EvtPlayerJoin, int64(player.ID), sess.ID, "")

	grid := c.hub.sessions.cfg.Grid
	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"sid": sess.ID}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		ID:       player.ID,
		Name:     player.Name,
		Size:     grid.Size,
		Capacity: grid.Capacity,
	}})
}

func (c *Client) handleCheck(data json.RawMessage) {
	var msg CheckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	if sess == nil {
		c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{SID: msg.SID, Exists: false}})
		return
	}
	c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{
		SID:     msg.SID,
		Exists:  true,
		Name:    sess.Name,
		Players: sess.Game.PlayerCount(),
	}})
}

func (c *Client) handleLeave() {
	if c.sessionID != "" {
		c.hub.sessions.RemovePlayer(c.sessionID, c.ownerID)
		c.sessionID = ""
	}
}

// session returns the session the client has joined, if it still exists
func (c *Client) session() *Session {
	if c.sessionID == "" {
		return nil
	}
	return c.hub.sessions.GetSession(c.sessionID)
}

func (c *Client) handleAttach(data json.RawMessage) {
	sess := c.session()
	if sess == nil {
		return
	}
	var msg AttachMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if !c.attaches.allow(time.Now(), maxAttachesPerSec) {
		c.SendJSON(Envelope{T: MsgAttached, Data: AttachedMsg{Block: msg.Block}})
		return
	}
	pos, err := sess.Game.HandleAttach(c.ownerID, msg.Block)
	reply := AttachedMsg{Block: msg.Block, OK: err == nil}
	if err == nil {
		reply.Pos = &pos
	} else if !errors.Is(err, ErrBlockTaken) && !errors.Is(err, ErrGridFull) && !errors.Is(err, ErrCapacity) {
		log.Printf("session %s: attach block %d for owner %d: %v", sess.ID, msg.Block, c.ownerID, err)
	}
	c.SendJSON(Envelope{T: MsgAttached, Data: reply})
}

func (c *Client) handleRelease(data json.RawMessage) {
	sess := c.session()
	if sess == nil {
		return
	}
	var msg ReleaseMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sess.Game.HandleRelease(c.ownerID, Pos{X: msg.X, Y: msg.Y})
}

func (c *Client) handleLeaderboard(data json.RawMessage) {
	var msg LeaderboardMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
	}
	if msg.SID == "" {
		msg.SID = c.sessionID
	}
	entries, err := c.hub.Leaderboard(msg.SID, msg.Limit)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.SendJSON(Envelope{T: MsgLeaderboardData, Data: LeaderboardDataMsg{SID: msg.SID, Entries: entries}})
}

// identify switches the client to an account identity
func (c *Client) identify(id OwnerID, username, token string) error {
	if c.sessionID != "" && id != c.ownerID {
		return fmt.Errorf("leave the session before switching accounts")
	}
	c.ownerID = id
	c.name = username
	c.authed = true
	c.hub.SetOnline(id, c)
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: username,
		PlayerID: id,
	}})
	return nil
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if err := c.identify(id, msg.Username, token); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if err := c.identify(id, msg.Username, token); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts are disabled")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	if err := c.identify(id, username, msg.Token); err != nil {
		c.sendError(err.Error())
	}
}
