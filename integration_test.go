package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func memoryStores(string) BlockSource {
	return NewMemoryStore(0)
}

func integrationConfig() Config {
	cfg := testConfig()
	cfg.Spawn.MaxFree = 5
	cfg.Spawn.PerTick = 5
	cfg.Spawn.Radius = 100
	return cfg
}

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	sm := NewSessionManager(integrationConfig(), memoryStores, nil)
	t.Cleanup(sm.StopAll)
	return sm
}

// startTestServer spins up an httptest.Server with a Hub and returns
// the server, its WebSocket URL and the session manager behind it.
func startTestServer(t *testing.T) (*httptest.Server, string, *SessionManager) {
	t.Helper()

	prevIdleTimeout := SessionIdleTimeout
	SessionIdleTimeout = 150 * time.Millisecond

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	sm := NewSessionManager(integrationConfig(), memoryStores, nil)
	hub := NewHub(nil, nil, sm)
	go hub.Run(ctx)
	go sm.RunReaper(ctx)

	srv := httptest.NewServer(SetupRoutes(hub, tmpDir, ""))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	t.Cleanup(func() {
		srv.Close()
		cancel()
		sm.StopAll()
		SessionIdleTimeout = prevIdleTimeout
	})
	return srv, wsURL, sm
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads one message from the WebSocket.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	// Binary messages are msgpack-encoded GridState
	if msgType == websocket.BinaryMessage {
		var gs GridState
		if err := msgpack.Unmarshal(raw, &gs); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgState, Data: gs}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// readUntil skips state frames (and anything else) until a message of the
// wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) Envelope {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readEnvelope(t, conn)
		if env.T == want {
			return env
		}
	}
	t.Fatalf("no %s message in 200 reads", want)
	return Envelope{}
}

// readStateWhere reads state frames until ok accepts one.
func readStateWhere(t *testing.T, conn *websocket.Conn, ok func(GridState) bool) GridState {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readUntil(t, conn, MsgState)
		if st := env.Data.(GridState); ok(st) {
			return st
		}
	}
	t.Fatal("no matching state frame in 200 frames")
	return GridState{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// decodeData re-decodes the Data field into v.
func decodeData(t *testing.T, env Envelope, v interface{}) {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", env.T, err)
	}
}

// createAndJoin creates a session then joins it. Returns the session ID.
func createAndJoin(t *testing.T, conn *websocket.Conn, name, sname string) string {
	t.Helper()
	sendMsg(t, conn, "create", map[string]string{"name": name, "sname": sname})
	created := readEnvelope(t, conn)
	if created.T != MsgCreated {
		t.Fatalf("expected created, got %s", created.T)
	}
	sid := dataMap(t, created)["sid"].(string)

	sendMsg(t, conn, "join", map[string]string{"name": name, "sid": sid})
	readUntil(t, conn, MsgJoined)
	readUntil(t, conn, MsgWelcome)
	return sid
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ---------- UUID generation tests ----------

func TestGenerateUUIDFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := GenerateUUID()
		if !uuidRegex.MatchString(id) {
			t.Errorf("GenerateUUID() = %q, does not match UUID v4 format", id)
		}
	}
}

func TestGenerateUUIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateUUID()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %s", id)
		}
		seen[id] = true
	}
}

// ---------- Session manager uses UUIDs ----------

func TestSessionIDIsUUID(t *testing.T) {
	sm := newTestSessionManager(t)
	sess := sm.CreateSession("TestField")
	if !uuidRegex.MatchString(sess.ID) {
		t.Errorf("session ID %q is not a valid UUID v4", sess.ID)
	}
}

// ---------- SPA routing ----------

func TestSPARoutingRoot(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingUUIDPath(t *testing.T) {
	srv, _, _ := startTestServer(t)

	uuid := GenerateUUID()
	resp, err := http.Get(srv.URL + "/" + uuid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /%s status = %d, want 200", uuid, resp.StatusCode)
	}
	// Should serve index.html content
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<html>") {
		t.Errorf("UUID path should serve index.html, got %q", body)
	}
}

func TestSPARoutingStaticFiles(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/js/main.js")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /js/main.js status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingNonUUIDPath(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	// Should fall through to file server (404)
	if resp.StatusCode != 404 {
		t.Errorf("GET /not-a-uuid status = %d, want 404", resp.StatusCode)
	}
}

func TestCacheControlHeader(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected Cache-Control: no-cache, got %q", cc)
	}
}

// ---------- Session check protocol ----------

func TestCheckSessionExists(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	sid := createAndJoin(t, c1, "Pilot", "Field")

	// Now check that session with another client
	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, "check", map[string]string{"sid": sid})

	checked := readEnvelope(t, c2)
	if checked.T != MsgChecked {
		t.Fatalf("expected checked, got %s", checked.T)
	}
	d := dataMap(t, checked)
	if d["exists"] != true {
		t.Error("expected exists=true")
	}
	if d["sid"] != sid {
		t.Errorf("expected sid=%s, got %s", sid, d["sid"])
	}
	if d["name"] != "Field" {
		t.Errorf("expected name=Field, got %v", d["name"])
	}
	if d["players"].(float64) != 1 {
		t.Errorf("expected 1 player, got %v", d["players"])
	}
}

func TestCheckSessionNotExists(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()

	fakeSID := GenerateUUID()
	sendMsg(t, c, "check", map[string]string{"sid": fakeSID})

	checked := readEnvelope(t, c)
	if checked.T != MsgChecked {
		t.Fatalf("expected checked, got %s", checked.T)
	}
	d := dataMap(t, checked)
	if d["exists"] != false {
		t.Error("expected exists=false for non-existent session")
	}
	if d["sid"] != fakeSID {
		t.Errorf("expected sid=%s, got %v", fakeSID, d["sid"])
	}
}

// ---------- Join flow ----------

func TestJoinViaSessionID(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	sid := createAndJoin(t, c1, "Alice", "TestField")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, "join", map[string]string{"name": "Bob", "sid": sid})
	joinedMsg := readUntil(t, c2, MsgJoined)
	if joinSID := dataMap(t, joinedMsg)["sid"].(string); joinSID != sid {
		t.Errorf("expected to join session %s, got %s", sid, joinSID)
	}

	var welcome WelcomeMsg
	decodeData(t, readUntil(t, c2, MsgWelcome), &welcome)
	if welcome.Name != "Bob" {
		t.Errorf("expected name Bob, got %s", welcome.Name)
	}
	want := integrationConfig().Grid
	if welcome.Size != want.Size || welcome.Capacity != want.Capacity {
		t.Errorf("welcome grid %+v/%d, want %+v/%d", welcome.Size, welcome.Capacity, want.Size, want.Capacity)
	}
	if welcome.ID == 0 {
		t.Error("guest should get an owner id")
	}
}

func TestJoinNonExistentSession(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, "join", map[string]string{"name": "Lost", "sid": GenerateUUID()})
	if errMsg := readEnvelope(t, c); errMsg.T != MsgError {
		t.Fatalf("expected error, got %s", errMsg.T)
	}
}

func TestJoinTwiceRejected(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()
	sid := createAndJoin(t, c, "Twice", "Field")

	sendMsg(t, c, "join", map[string]string{"name": "Twice", "sid": sid})
	if d := dataMap(t, readUntil(t, c, MsgError)); d["msg"] != "already in a session" {
		t.Errorf("unexpected error %v", d["msg"])
	}
}

func TestDefaultPlayerName(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()

	// Create session, then join with empty name
	sendMsg(t, c, "create", map[string]string{"name": "", "sname": ""})
	created := readEnvelope(t, c)
	if created.T != MsgCreated {
		t.Fatalf("expected created, got %s", created.T)
	}
	sid := dataMap(t, created)["sid"].(string)

	sendMsg(t, c, "join", map[string]string{"name": "", "sid": sid})
	var welcome WelcomeMsg
	decodeData(t, readUntil(t, c, MsgWelcome), &welcome)
	if !strings.HasPrefix(welcome.Name, "Guest_") {
		t.Errorf("expected a guest name, got %q", welcome.Name)
	}
}

// ---------- Session create + leave lifecycle ----------

func TestCreateAndLeaveSession(t *testing.T) {
	_, wsURL, sm := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()
	sid := createAndJoin(t, c, "Solo", "TempField")

	sendMsg(t, c, "leave", nil)
	waitFor(t, "player removal", func() bool {
		sess := sm.GetSession(sid)
		return sess == nil || sess.Game.PlayerCount() == 0
	})
	// the empty session is reaped once idle
	waitFor(t, "session reap", func() bool { return sm.GetSession(sid) == nil })

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, "check", map[string]string{"sid": sid})
	if dataMap(t, readEnvelope(t, c2))["exists"] != false {
		t.Error("session should be cleaned up after last player leaves")
	}
}

func TestListSessions(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, "list", nil)
	listMsg := readEnvelope(t, c)
	if listMsg.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", listMsg.T)
	}
	var sessions []SessionInfo
	decodeData(t, listMsg, &sessions)
	if len(sessions) != 0 {
		t.Errorf("expected 0 sessions, got %d", len(sessions))
	}

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	createAndJoin(t, c2, "P1", "Field1")

	sendMsg(t, c, "list", nil)
	var sessions2 []SessionInfo
	decodeData(t, readEnvelope(t, c), &sessions2)
	if len(sessions2) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions2))
	}
	if sessions2[0].Name != "Field1" {
		t.Errorf("expected session name Field1, got %s", sessions2[0].Name)
	}
	if sessions2[0].Players != 1 {
		t.Errorf("expected 1 player, got %d", sessions2[0].Players)
	}
}

func TestMultiplePlayersInSession(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	sid := createAndJoin(t, c1, "Alpha", "MultiTest")

	for _, name := range []string{"Beta", "Gamma"} {
		c := dialWS(t, wsURL)
		defer c.Close()
		sendMsg(t, c, "join", map[string]string{"name": name, "sid": sid})
		readUntil(t, c, MsgWelcome)
	}

	c4 := dialWS(t, wsURL)
	defer c4.Close()
	sendMsg(t, c4, "check", map[string]string{"sid": sid})
	if d := dataMap(t, readEnvelope(t, c4)); d["players"].(float64) != 3 {
		t.Errorf("expected 3 players, got %v", d["players"])
	}
}

// ---------- Grid state and block ownership over WS ----------

func TestGridStateBroadcasts(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndJoin(t, c, "Tester", "StateTest")

	st := readStateWhere(t, c, func(GridState) bool { return true })
	if st.Tick == 0 {
		t.Error("state should carry a tick")
	}
	if st.Local.Owner != st.Self {
		t.Errorf("local grid owned by %d, frame is for %d", st.Local.Owner, st.Self)
	}
	want := integrationConfig().Grid.Capacity
	if st.Local.Capacity != want {
		t.Errorf("expected capacity %d, got %d", want, st.Local.Capacity)
	}
}

func TestAttachAndReleaseOverWS(t *testing.T) {
	srv, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()
	sid := createAndJoin(t, c, "Collector", "AttachTest")

	st := readStateWhere(t, c, func(st GridState) bool { return len(st.Free) > 0 })
	block := st.Free[0].ID
	sendMsg(t, c, "attach", AttachMsg{Block: block})

	var reply AttachedMsg
	decodeData(t, readUntil(t, c, MsgAttached), &reply)
	if !reply.OK || reply.Pos == nil {
		t.Fatalf("attach of block %d rejected: %+v", block, reply)
	}
	if reply.Block != block {
		t.Errorf("reply for block %d, want %d", reply.Block, block)
	}

	st = readStateWhere(t, c, func(st GridState) bool { return len(st.Local.Cells) == 1 })
	if st.Local.Cells[0].Block != block || st.Local.Cells[0].Pos != *reply.Pos {
		t.Errorf("unexpected local cell %+v", st.Local.Cells[0])
	}

	// the claim shows up on the leaderboard
	waitFor(t, "leaderboard entry", func() bool {
		resp, err := http.Get(srv.URL + "/api/leaderboard?sid=" + sid)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var lb LeaderboardDataMsg
		if json.NewDecoder(resp.Body).Decode(&lb) != nil {
			return false
		}
		return len(lb.Entries) == 1 && lb.Entries[0].OwnerID == st.Self && lb.Entries[0].Blocks == 1
	})

	sendMsg(t, c, "release", ReleaseMsg{X: reply.Pos.X, Y: reply.Pos.Y})
	readStateWhere(t, c, func(st GridState) bool {
		if len(st.Local.Cells) != 0 {
			return false
		}
		for _, rec := range st.Free {
			if rec.ID == block {
				return true
			}
		}
		return false
	})
}

func TestAttachBeforeJoin(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()

	// Attach without joining is ignored
	sendMsg(t, c, "attach", AttachMsg{Block: 1})

	sendMsg(t, c, "list", nil)
	if env := readEnvelope(t, c); env.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", env.T)
	}
}

func TestLeaderboardOverWS(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()
	sid := createAndJoin(t, c, "Ranker", "LBTest")

	sendMsg(t, c, "leaderboard", LeaderboardMsg{})
	var lb LeaderboardDataMsg
	decodeData(t, readUntil(t, c, MsgLeaderboardData), &lb)
	if lb.SID != sid {
		t.Errorf("leaderboard for %q, want the joined session %q", lb.SID, sid)
	}

	sendMsg(t, c, "leaderboard", LeaderboardMsg{SID: GenerateUUID()})
	if d := dataMap(t, readUntil(t, c, MsgError)); d["msg"] != errSessionNotFound.Error() {
		t.Errorf("unexpected error %v", d["msg"])
	}
}

func TestLeaderboardHTTPUnknownSession(t *testing.T) {
	srv, _, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/api/leaderboard?sid=" + GenerateUUID())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAccountsDisabledWithoutDB(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()
	sendMsg(t, c, "register", RegisterMsg{Username: "pilot", Password: "secret123"})
	if d := dataMap(t, readUntil(t, c, MsgError)); d["msg"] != "accounts are disabled" {
		t.Errorf("unexpected error %v", d["msg"])
	}
}

// ---------- QR invites ----------

func TestQRInvite(t *testing.T) {
	srv, _, sm := startTestServer(t)
	sess := sm.CreateSession("QR")

	resp, err := http.Get(srv.URL + "/qr/" + sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("GET /qr status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	resp2, err := http.Get(srv.URL + "/qr/" + GenerateUUID())
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session QR status = %d, want 404", resp2.StatusCode)
	}
}

// ---------- WebSocket /ws endpoint ----------

func TestWSEndpoint(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	conn := dialWS(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, "list", nil)
	if env := readEnvelope(t, conn); env.T != MsgSessions {
		t.Fatalf("expected sessions response, got %s", env.T)
	}
}

func TestLeaveWithoutJoining(t *testing.T) {
	_, wsURL, _ := startTestServer(t)

	c := dialWS(t, wsURL)
	defer c.Close()

	// Should not crash
	sendMsg(t, c, "leave", nil)

	sendMsg(t, c, "list", nil)
	if env := readEnvelope(t, c); env.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", env.T)
	}
}

func TestDisconnectCleansUpSession(t *testing.T) {
	_, wsURL, sm := startTestServer(t)

	c1 := dialWS(t, wsURL)
	sid := createAndJoin(t, c1, "Temp", "TempField")
	c1.Close()

	waitFor(t, "session reap after disconnect", func() bool { return sm.GetSession(sid) == nil })
}

// ---------- Hub ----------

func TestHubClientCount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil, nil, newTestSessionManager(t))
	go hub.Run(ctx)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHubGuestIdentity(t *testing.T) {
	hub := NewHub(nil, nil, newTestSessionManager(t))
	a, nameA, _ := hub.guestIdentity()
	b, _, _ := hub.guestIdentity()
	if a == b {
		t.Error("guest ids must be distinct")
	}
	if !strings.HasPrefix(nameA, "Guest_") {
		t.Errorf("unexpected guest name %q", nameA)
	}
}

// ---------- Util ----------

func TestClampName(t *testing.T) {
	tests := []struct {
		in, def string
		n       int
		want    string
	}{
		{"", "Pilot", 5, "Pilot"},
		{"Bob", "Pilot", 5, "Bob"},
		{"Alexander", "Pilot", 5, "Alexa"},
	}
	for _, tt := range tests {
		if got := clampName(tt.in, tt.def, tt.n); got != tt.want {
			t.Errorf("clampName(%q, %q, %d) = %q, want %q", tt.in, tt.def, tt.n, got, tt.want)
		}
	}
}
