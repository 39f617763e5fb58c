package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin        = "join"
	MsgLeave       = "leave"
	MsgCreate      = "create" // create session
	MsgList        = "list"   // list sessions
	MsgCheck       = "check"  // check if session exists
	MsgAttach      = "attach" // collision with a free block
	MsgRelease     = "release"
	MsgRegister    = "register"
	MsgLogin       = "login"
	MsgAuth        = "auth"
	MsgLeaderboard = "leaderboard"
)

// Server -> Client message types
const (
	MsgState           = "state" // sent as a binary msgpack GridState frame
	MsgWelcome         = "welcome"
	MsgSessions        = "sessions"
	MsgJoined          = "joined"
	MsgCreated         = "created"
	MsgError           = "error"
	MsgChecked         = "checked"
	MsgAttached        = "attached"
	MsgAuthOK          = "auth_ok"
	MsgLeaderboardData = "leaderboard_data"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids a double unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg is sent when player wants to join a session
type JoinMsg struct {
	Name      string `json:"name"`
	SessionID string `json:"sid"`
}

// CreateMsg is sent when player wants to create a session
type CreateMsg struct {
	Name        string `json:"name"`
	SessionName string `json:"sname"`
}

// AttachMsg reports that the player's ship touched a free block
type AttachMsg struct {
	Block BlockID `json:"b"`
}

// ReleaseMsg drops the block at a grid cell
type ReleaseMsg struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// AttachedMsg answers an AttachMsg
type AttachedMsg struct {
	Block BlockID `json:"b"`
	OK    bool    `json:"ok"`
	Pos   *Pos    `json:"pos,omitempty"`
}

// RegisterMsg / LoginMsg carry credentials
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session from a token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms an identity
type AuthOKMsg struct {
	Token    string  `json:"token,omitempty"`
	Username string  `json:"username"`
	PlayerID OwnerID `json:"pid"`
}

// GridState is the per-client state frame
type GridState struct {
	Tick    uint64        `msgpack:"tick"`
	Self    OwnerID       `msgpack:"self"`
	Local   GridView      `msgpack:"local"`
	Remotes []GridView    `msgpack:"remotes"`
	Free    []BlockRecord `msgpack:"free"`
}

// WelcomeMsg is sent to a player when they join
type WelcomeMsg struct {
	ID       OwnerID  `json:"id"`
	Name     string   `json:"name"`
	Size     GridSize `json:"size"`
	Capacity uint32   `json:"capacity"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Blocks  int    `json:"blocks"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// CheckMsg is sent by client to check if a session exists
type CheckMsg struct {
	SID string `json:"sid"`
}

// CheckedMsg is the response to a session check
type CheckedMsg struct {
	SID     string `json:"sid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Players int    `json:"players,omitempty"`
}

// LeaderboardMsg asks for the ranking of a session (the current one if empty)
type LeaderboardMsg struct {
	SID   string `json:"sid,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// LeaderboardDataMsg answers a LeaderboardMsg
type LeaderboardDataMsg struct {
	SID     string             `json:"sid"`
	Entries []LeaderboardEntry `json:"entries"`
}
