package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankieli/raffle_engine/internal/modules/gateway/adapter/local"
	"github.com/frankieli/raffle_engine/internal/modules/gateway/usecase"
	"github.com/frankieli/raffle_engine/internal/modules/gateway/ws"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/pkg/auth"
)

type fakeRaffle struct {
	mu      sync.Mutex
	entries []string
}

func (f *fakeRaffle) Enter(ctx context.Context, participant string, stake int64) (*domain.EntryReceipt, error) {
	if stake < 100 {
		return nil, domain.ErrInsufficientPayment
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, participant)
	return &domain.EntryReceipt{ReceiptID: "r-1", Participant: participant, Stake: stake, Count: len(f.entries)}, nil
}

func (f *fakeRaffle) entered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entries...)
}

func (f *fakeRaffle) GetRound(ctx context.Context) domain.RoundView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.RoundView{State: domain.StateOpen, EntranceFee: 100, ParticipantCount: len(f.entries)}
}

type frame struct {
	Game    string          `json:"game"`
	Command string          `json:"command"`
	Type    string          `json:"type"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*httptest.Server, *ws.Manager, *auth.Issuer, *fakeRaffle) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := ws.NewManager(ws.Options{PongWait: 5 * time.Second, SendBuffer: 16})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go mgr.Run(ctx)

	raffle := &fakeRaffle{}
	issuer := auth.NewIssuer("secret", "raffle-engine", time.Hour)
	h := NewHandler(usecase.NewGatewayUseCase(raffle), mgr, issuer)

	r := gin.New()
	h.RegisterRoutes(r, "/ws")
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, mgr, issuer, raffle
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestAnonymousObserver(t *testing.T) {
	srv, mgr, _, _ := setup(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return mgr.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"game": "raffle", "command": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Command)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"game": "raffle", "command": "enter", "data": map[string]int{"stake": 100}}))
	f := readFrame(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, f.Error, usecase.ErrNotAuthenticated.Error())

	local.NewBroadcaster(mgr).Broadcast("raffle", "DRAW_STARTED", map[string]string{"request_id": "1"})
	f = readFrame(t, conn)
	assert.Equal(t, "raffle", f.Game)
	assert.Equal(t, "DRAW_STARTED", f.Command)
	assert.JSONEq(t, `{"request_id":"1"}`, string(f.Data))
}

func TestAuthenticatedEntryAndDirectPush(t *testing.T) {
	srv, mgr, issuer, raffle := setup(t)
	token, err := issuer.Issue("alice", auth.RolePlayer)
	require.NoError(t, err)

	alice := dial(t, srv, "?token="+token)
	observer := dial(t, srv, "")
	require.Eventually(t, func() bool { return mgr.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]interface{}{"game": "raffle", "command": "enter", "data": map[string]int{"stake": 100}}))
	f := readFrame(t, alice)
	assert.Equal(t, "enter_rsp", f.Command)
	var receipt domain.EntryReceipt
	require.NoError(t, json.Unmarshal(f.Data, &receipt))
	assert.Equal(t, "alice", receipt.Participant)
	assert.Equal(t, []string{"alice"}, raffle.entered())

	require.NoError(t, alice.WriteJSON(map[string]interface{}{"game": "raffle", "command": "enter", "data": map[string]int{"stake": 1}}))
	f = readFrame(t, alice)
	assert.Equal(t, "enter_rsp", f.Command)
	assert.Contains(t, string(f.Data), domain.ErrInsufficientPayment.Error())

	local.NewBroadcaster(mgr).SendToUser("alice", "raffle", "YOU_WON", map[string]int64{"amount": 100})
	assert.Equal(t, "YOU_WON", readFrame(t, alice).Command)

	require.NoError(t, observer.WriteJSON(map[string]string{"game": "raffle", "command": "round"}))
	f = readFrame(t, observer)
	assert.Equal(t, "round", f.Command)
}

func TestInvalidTokenRejected(t *testing.T) {
	srv, _, _, _ := setup(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNonPlayerTokenForbidden(t *testing.T) {
	srv, mgr, issuer, _ := setup(t)
	for _, role := range []string{auth.RoleOperator, auth.RoleProvider} {
		token, err := issuer.Issue("ops", role)
		require.NoError(t, err)
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err, role)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, role)
	}
	assert.Zero(t, mgr.Count())
}
