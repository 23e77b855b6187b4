package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chatrelay/service/relay"
	"chatrelay/service/storage"
	"chatrelay/tools/errs"
)

type fakeStore struct {
	mu   sync.Mutex
	recs []storage.MessageRecord
	err  error
}

func (f *fakeStore) Save(_ context.Context, rec *storage.MessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) saved() []storage.MessageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.MessageRecord, len(f.recs))
	copy(out, f.recs)
	return out
}

func newTestServer(t *testing.T) (*relay.Server, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	s := relay.NewServer(relay.Options{FanoutWorkers: 2, FanoutQueue: 64},
		storage.NewBridge(store, time.Second), nil)
	RegisterAll(s)
	return s, store
}

func dispatch(t *testing.T, s *relay.Server, c *relay.Client, frame map[string]any) error {
	t.Helper()
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	f, err := relay.ParseFrame(raw)
	require.NoError(t, err)
	return s.Disp().Dispatch(&relay.Context{S: s}, f, c)
}

func newConn(id string) *relay.Client {
	return relay.NewClient("conn-"+id, nil, 32)
}

func recv(t *testing.T, c *relay.Client) map[string]any {
	t.Helper()
	select {
	case b := <-c.Send:
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("expected a frame, got none")
		return nil
	}
}

func expectSilence(t *testing.T, c *relay.Client) {
	t.Helper()
	select {
	case b := <-c.Send:
		t.Fatalf("expected no frame, got %s", b)
	case <-time.After(100 * time.Millisecond):
	}
}

func joinVisitor(t *testing.T, s *relay.Server, c *relay.Client, visitorID, conv, company string) {
	t.Helper()
	frame := map[string]any{"type": "join", "visitorId": visitorID}
	if conv != "" {
		frame["conversationId"] = conv
	}
	if company != "" {
		frame["companyId"] = company
	}
	require.NoError(t, dispatch(t, s, c, frame))
	m := recv(t, c)
	require.Equal(t, "joined", m["type"])
}

func joinAgent(t *testing.T, s *relay.Server, c *relay.Client, agentID, company string) {
	t.Helper()
	require.NoError(t, dispatch(t, s, c, map[string]any{
		"type": "join", "agentId": agentID, "companyId": company,
	}))
	m := recv(t, c)
	require.Equal(t, "joined", m["type"])
	require.Equal(t, agentID, m["clientId"])
}

func TestJoinSynthesizesVisitorIdentity(t *testing.T) {
	s, _ := newTestServer(t)
	c := newConn("1")

	require.NoError(t, dispatch(t, s, c, map[string]any{"type": "join"}))

	m := recv(t, c)
	require.Equal(t, "joined", m["type"])
	id, _ := m["clientId"].(string)
	require.True(t, strings.HasPrefix(id, "visitor-"), "got %q", id)
	require.NotNil(t, s.Registry().Get(id))
	require.Equal(t, relay.RoleVisitor, c.Role)
}

func TestJoinAgentEntersDirectoryOnly(t *testing.T) {
	s, _ := newTestServer(t)
	g := newConn("g1")
	joinAgent(t, s, g, "agent-g1", "co-1")

	require.Equal(t, relay.RoleAgent, g.Role)
	require.ElementsMatch(t, []string{"agent-g1"}, s.Agents().AgentsOf("co-1"))
	require.Empty(t, s.Rooms().Members("conv-1"))
}

func TestJoinReusedIdentityReplacesPrevious(t *testing.T) {
	s, _ := newTestServer(t)
	old := newConn("old")
	neu := newConn("new")

	joinAgent(t, s, old, "agent-7", "co-1")
	joinAgent(t, s, neu, "agent-7", "co-1")

	m := recv(t, old)
	require.Equal(t, "error", m["type"])
	require.Equal(t, "connection replaced", m["message"])
	require.True(t, old.Closed())
	require.Same(t, neu, s.Registry().Get("agent-7"))
	require.ElementsMatch(t, []string{"agent-7"}, s.Agents().AgentsOf("co-1"))
}

func TestRejoinSameSocketRejected(t *testing.T) {
	s, _ := newTestServer(t)
	c := newConn("1")
	joinVisitor(t, s, c, "v1", "conv-1", "co-1")

	err := dispatch(t, s, c, map[string]any{"type": "join", "visitorId": "v1"})
	require.ErrorIs(t, err, errs.ErrAlreadyJoined)
}

func TestVisitorJoinNotifiesAgents(t *testing.T) {
	s, _ := newTestServer(t)
	g := newConn("g1")
	joinAgent(t, s, g, "agent-g1", "co-1")

	v := newConn("v1")
	require.NoError(t, dispatch(t, s, v, map[string]any{
		"type": "join", "visitorId": "v1", "conversationId": "conv-1", "companyId": "co-1",
		"data": map[string]any{"visitorName": "Marie", "visitorEmail": "marie@example.com"},
	}))

	m := recv(t, g)
	require.Equal(t, "new-visitor", m["type"])
	require.Equal(t, "conv-1", m["conversationId"])
	require.Equal(t, "Marie", m["visitorName"])
	require.Equal(t, "marie@example.com", m["visitorEmail"])

	joined := recv(t, v)
	require.Equal(t, "joined", joined["type"])
}

func TestMessageRequiresConversation(t *testing.T) {
	s, _ := newTestServer(t)
	g := newConn("g1")
	joinAgent(t, s, g, "agent-g1", "co-1")

	err := dispatch(t, s, g, map[string]any{
		"type": "message", "message": "hello", "senderType": "agent", "senderName": "G",
	})
	require.ErrorIs(t, err, errs.ErrNoConversation)
}

func TestMessageRequiresBody(t *testing.T) {
	s, _ := newTestServer(t)
	v := newConn("v1")
	joinVisitor(t, s, v, "v1", "conv-1", "co-1")

	err := dispatch(t, s, v, map[string]any{
		"type": "message", "message": "   ", "senderType": "visitor", "senderName": "Marie",
	})
	require.ErrorIs(t, err, errs.ErrEmptyMessage)
}

// Mirrors the reference walkthrough: a lone visitor, then an agent on the
// tenant, then a second visitor in the same conversation.
func TestVisitorMessageFlow(t *testing.T) {
	s, store := newTestServer(t)

	v := newConn("v")
	joinVisitor(t, s, v, "v1", "conv-1", "co-1")
	expectSilence(t, v) // empty agent set: no notification anywhere

	g1 := newConn("g1")
	joinAgent(t, s, g1, "agent-g1", "co-1")

	require.NoError(t, dispatch(t, s, v, map[string]any{
		"type": "message", "message": "Bonjour", "senderType": "visitor", "senderName": "Marie",
	}))

	// persistence is fire-and-forget; wait for the write to land
	require.Eventually(t, func() bool { return len(store.saved()) == 1 },
		time.Second, 10*time.Millisecond)
	rec := store.saved()[0]
	require.Equal(t, "conv-1", rec.ConversationID)
	require.Equal(t, "visitor", rec.SenderType)
	require.Equal(t, "v1", rec.SenderID)
	require.Equal(t, "Bonjour", rec.Message)
	require.Equal(t, "text", rec.MessageType)

	// the agent gets a notification, not a conversation broadcast
	m := recv(t, g1)
	require.Equal(t, "new-message", m["type"])
	require.Equal(t, "Bonjour", m["message"])
	expectSilence(t, g1)
	// the sender never hears its own message
	expectSilence(t, v)

	// second visitor joins the conversation, next message reaches it live
	v2 := newConn("v2")
	joinVisitor(t, s, v2, "v2", "conv-1", "co-1")
	recv(t, g1) // new-visitor for v2

	require.NoError(t, dispatch(t, s, v, map[string]any{
		"type": "message", "message": "Toujours là?", "senderType": "visitor", "senderName": "Marie",
	}))

	bm := recv(t, v2)
	require.Equal(t, "message", bm["type"])
	require.Equal(t, "Toujours là?", bm["message"])
	require.Equal(t, "Marie", bm["senderName"])
	require.NotEmpty(t, bm["messageId"])

	nm := recv(t, g1)
	require.Equal(t, "new-message", nm["type"])
	expectSilence(t, v)
}

func TestAgentInConversation(t *testing.T) {
	s, store := newTestServer(t)

	// agent joins directly into the conversation
	g := newConn("g")
	require.NoError(t, dispatch(t, s, g, map[string]any{
		"type": "join", "agentId": "agent-g1", "companyId": "co-1", "conversationId": "conv-1",
	}))
	require.Equal(t, "joined", recv(t, g)["type"])

	v := newConn("v")
	joinVisitor(t, s, v, "v1", "conv-1", "co-1")
	recv(t, g) // new-visitor

	require.NoError(t, dispatch(t, s, g, map[string]any{
		"type": "message", "message": "Hello Marie", "senderType": "agent",
		"senderName": "Georges", "agentId": "agent-g1",
	}))

	m := recv(t, v)
	require.Equal(t, "message", m["type"])
	require.Equal(t, "agent", m["senderType"])

	// agent-authored messages produce no new-message notification
	expectSilence(t, g)

	require.Eventually(t, func() bool { return len(store.saved()) == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, "agent", store.saved()[0].SenderType)
	require.Equal(t, "agent-g1", store.saved()[0].SenderID)
}

func TestTypingRelayedNeverPersisted(t *testing.T) {
	s, store := newTestServer(t)

	v := newConn("v")
	v2 := newConn("v2")
	joinVisitor(t, s, v, "v1", "conv-1", "co-1")
	joinVisitor(t, s, v2, "v2", "conv-1", "co-1")

	require.NoError(t, dispatch(t, s, v, map[string]any{
		"type": "typing", "senderName": "Marie", "senderType": "visitor",
	}))

	m := recv(t, v2)
	require.Equal(t, "typing", m["type"])
	require.Equal(t, "Marie", m["senderName"])
	expectSilence(t, v)

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, store.saved(), "typing must never hit the store")
}

func TestAgentStatusBroadcastIncludesSender(t *testing.T) {
	s, _ := newTestServer(t)

	g1 := newConn("g1")
	g2 := newConn("g2")
	joinAgent(t, s, g1, "agent-g1", "co-1")
	joinAgent(t, s, g2, "agent-g2", "co-1")

	require.NoError(t, dispatch(t, s, g1, map[string]any{
		"type": "agent-status", "data": map[string]any{"status": "away"},
	}))

	for _, g := range []*relay.Client{g1, g2} {
		m := recv(t, g)
		require.Equal(t, "agent-status-update", m["type"])
		require.Equal(t, "agent-g1", m["agentId"])
		require.Equal(t, "away", m["status"])
	}
}

func TestAgentStatusFromVisitorRejected(t *testing.T) {
	s, _ := newTestServer(t)
	v := newConn("v")
	joinVisitor(t, s, v, "v1", "conv-1", "co-1")

	err := dispatch(t, s, v, map[string]any{"type": "agent-status"})
	require.ErrorIs(t, err, errs.ErrNotAgent)
}

func TestSignalRelayedVerbatim(t *testing.T) {
	s, _ := newTestServer(t)

	a := newConn("a")
	b := newConn("b")
	joinVisitor(t, s, a, "peer-a", "conv-1", "co-1")
	joinVisitor(t, s, b, "peer-b", "conv-1", "co-1")

	raw := []byte(`{"type":"offer","data":{"targetId":"peer-b","sdp":"v=0 o=- 46117"}}`)
	f, err := relay.ParseFrame(raw)
	require.NoError(t, err)
	require.NoError(t, s.Disp().Dispatch(&relay.Context{S: s}, f, a))

	select {
	case got := <-b.Send:
		require.Equal(t, raw, got)
	case <-time.After(time.Second):
		t.Fatal("target never received the offer")
	}
}

func TestSignalUnknownTargetSilentlyDropped(t *testing.T) {
	s, _ := newTestServer(t)

	a := newConn("a")
	joinVisitor(t, s, a, "peer-a", "conv-1", "co-1")

	err := dispatch(t, s, a, map[string]any{
		"type": "offer", "data": map[string]any{"targetId": "peer-b"},
	})
	require.NoError(t, err)
	expectSilence(t, a) // no error, no ack, nothing
}

func TestSignalRequiresTarget(t *testing.T) {
	s, _ := newTestServer(t)
	a := newConn("a")
	joinVisitor(t, s, a, "peer-a", "conv-1", "co-1")

	err := dispatch(t, s, a, map[string]any{"type": "ice-candidate", "data": map[string]any{}})
	require.Error(t, err)
}

func TestCloseRemovesFromAllTables(t *testing.T) {
	s, _ := newTestServer(t)

	g := newConn("g")
	require.NoError(t, dispatch(t, s, g, map[string]any{
		"type": "join", "agentId": "agent-g1", "companyId": "co-1", "conversationId": "conv-1",
	}))

	s.Teardown(g)

	require.Nil(t, s.Registry().Get("agent-g1"))
	require.Empty(t, s.Rooms().Members("conv-1"))
	require.Empty(t, s.Agents().AgentsOf("co-1"))
}

func TestReplacedSocketSeesErrorThenClose(t *testing.T) {
	s, _ := newTestServer(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", s.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	dial := func() *websocket.Conn {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = ws.Close() })
		_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		return ws
	}
	join := []byte(`{"type":"join","agentId":"agent-7","companyId":"acme"}`)

	first := dial()
	require.NoError(t, first.WriteMessage(websocket.TextMessage, join))
	_, data, err := first.ReadMessage()
	require.NoError(t, err)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(data, &ack))
	require.Equal(t, "joined", ack["type"])

	second := dial()
	require.NoError(t, second.WriteMessage(websocket.TextMessage, join))
	_, _, err = second.ReadMessage()
	require.NoError(t, err, "successor join must be acked")

	_, data, err = first.ReadMessage()
	require.NoError(t, err, "replaced socket must get the error frame before the close")
	var ef map[string]any
	require.NoError(t, json.Unmarshal(data, &ef))
	require.Equal(t, "error", ef["type"])
	require.Equal(t, errs.ErrReplaced.Msg, ef["message"])

	_, _, err = first.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a clean close frame, got %v", err)
}
