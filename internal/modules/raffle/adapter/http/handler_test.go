package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/machine"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/repository/memory"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/usecase"
	"github.com/frankieli/raffle_engine/internal/modules/randomness/mock"
	"github.com/frankieli/raffle_engine/internal/modules/wallet"
	"github.com/frankieli/raffle_engine/pkg/auth"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	router *gin.Engine
	clock  *testClock
	wallet *wallet.MockService
	engine *machine.StateMachine
	issuer *auth.Issuer
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := wallet.NewMockService()
	coordinator := mock.NewCoordinator(0, nil)
	engine, err := machine.NewStateMachine(machine.Options{
		EntranceFee: 100,
		Interval:    30 * time.Second,
		Clock:       clock.Now,
	}, coordinator, w)
	require.NoError(t, err)

	uc := usecase.NewRaffleUseCase(engine, memory.NewDrawRepository(), nil, nil)
	coordinator.SetReceiver(uc)

	issuer := auth.NewIssuer("secret", "raffle-engine", time.Hour)
	token, err := issuer.Issue("oracle", auth.RoleProvider)
	require.NoError(t, err)

	r := gin.New()
	NewHandler(uc, w, issuer).RegisterRoutes(r.Group("/api/raffle"))
	return &fixture{router: r, clock: clock, wallet: w, engine: engine, issuer: issuer, token: token}
}

func (f *fixture) playerToken(t *testing.T, name string) string {
	t.Helper()
	token, err := f.issuer.Issue(name, auth.RolePlayer)
	require.NoError(t, err)
	return token
}

// enter posts an entry as the player name.
func (f *fixture) enter(t *testing.T, name string, stake int64) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(http.MethodPost, "/api/raffle/entries", gin.H{"stake": stake}, f.playerToken(t, name))
}

func (f *fixture) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestEntryAndRoundView(t *testing.T) {
	f := newFixture(t)

	w := f.enter(t, "alice", 99)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/raffle/entries", gin.H{"participant": "alice", "stake": 100}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/raffle/entries", gin.H{"stake": 100}, f.token)
	assert.Equal(t, http.StatusForbidden, w.Code, "provider token cannot enter")

	w = f.do(http.MethodPost, "/api/raffle/entries", gin.H{"participant": "bob", "stake": 100}, f.playerToken(t, "alice"))
	assert.Equal(t, http.StatusForbidden, w.Code, "cannot enter on behalf of someone else")
	assert.Zero(t, f.engine.ParticipantCount())

	w = f.do(http.MethodPost, "/api/raffle/entries", gin.H{"participant": "alice", "stake": 100}, f.playerToken(t, "alice"))
	require.Equal(t, http.StatusCreated, w.Code)
	var receipt domain.EntryReceipt
	decode(t, w, &receipt)
	assert.Equal(t, "alice", receipt.Participant)
	assert.Equal(t, 1, receipt.Count)
	assert.NotEmpty(t, receipt.ReceiptID)

	f.enter(t, "bob", 150)

	w = f.do(http.MethodGet, "/api/raffle", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view domain.RoundView
	decode(t, w, &view)
	assert.Equal(t, domain.StateOpen, view.State)
	assert.Equal(t, 2, view.ParticipantCount)
	assert.Equal(t, int64(250), view.HeldBalance)
	assert.Equal(t, int64(100), view.EntranceFee)

	w = f.do(http.MethodGet, "/api/raffle/participants/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bob"`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/raffle/participants/2", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/raffle/participants/x", nil, "").Code)
}

func TestUpkeepAndFulfillment(t *testing.T) {
	f := newFixture(t)
	f.enter(t, "alice", 100)
	f.enter(t, "bob", 100)

	w := f.do(http.MethodGet, "/api/raffle/upkeep", nil, "")
	var up upkeepResponse
	decode(t, w, &up)
	assert.False(t, up.UpkeepNeeded)

	w = f.do(http.MethodPost, "/api/raffle/upkeep", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	var notNeeded map[string]interface{}
	decode(t, w, &notNeeded)
	assert.EqualValues(t, 200, notNeeded["balance"])
	assert.EqualValues(t, 2, notNeeded["participants"])

	f.clock.Advance(31 * time.Second)
	decode(t, f.do(http.MethodGet, "/api/raffle/upkeep", nil, ""), &up)
	assert.True(t, up.UpkeepNeeded)

	w = f.do(http.MethodPost, "/api/raffle/upkeep", nil, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"request_id":"1"}`, w.Body.String())

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/raffle/upkeep", nil, "").Code)
	assert.Equal(t, http.StatusConflict,
		f.enter(t, "carol", 100).Code)

	body := gin.H{"request_id": "1", "random_words": []string{"7"}}
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/raffle/fulfillments", body, "").Code)

	assert.Equal(t, http.StatusNotFound,
		f.do(http.MethodPost, "/api/raffle/fulfillments", gin.H{"request_id": "99", "random_words": []string{"7"}}, f.token).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		f.do(http.MethodPost, "/api/raffle/fulfillments", gin.H{"request_id": "1", "random_words": []string{"abc"}}, f.token).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		f.do(http.MethodPost, "/api/raffle/fulfillments", gin.H{"request_id": "1", "random_words": []string{}}, f.token).Code)

	w = f.do(http.MethodPost, "/api/raffle/fulfillments", body, f.token)
	require.Equal(t, http.StatusOK, w.Code)
	var ann domain.WinnerAnnouncement
	decode(t, w, &ann)
	assert.Equal(t, "bob", ann.Winner)
	assert.Equal(t, int64(200), ann.Amount)

	require.Len(t, f.wallet.Payouts(), 1)
	assert.Equal(t, "bob", f.wallet.Payouts()[0].To)

	w = f.do(http.MethodGet, "/api/raffle/balances/bob", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":200`)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/raffle/fulfillments", body, f.token).Code)
}

func TestTransferFailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.enter(t, "alice", 100)
	f.clock.Advance(time.Minute)
	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/raffle/upkeep", nil, "").Code)

	f.wallet.FailTransfers(assert.AnError)
	body := gin.H{"request_id": "1", "random_words": []string{"3"}}
	assert.Equal(t, http.StatusBadGateway, f.do(http.MethodPost, "/api/raffle/fulfillments", body, f.token).Code)

	f.wallet.FailTransfers(nil)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/raffle/fulfillments", body, f.token).Code)
}

func TestDrawHistory(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.engine.Start(ctx)

	f.enter(t, "alice", 100)
	f.clock.Advance(time.Minute)
	f.do(http.MethodPost, "/api/raffle/upkeep", nil, "")
	f.do(http.MethodPost, "/api/raffle/fulfillments", gin.H{"request_id": "1", "random_words": []string{"5"}}, f.token)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/raffle/draws?limit=-1", nil, "").Code)

	require.Eventually(t, func() bool {
		w := f.do(http.MethodGet, "/api/raffle/draws/1", nil, "")
		if w.Code != http.StatusOK {
			return false
		}
		var rec domain.DrawRecord
		_ = json.Unmarshal(w.Body.Bytes(), &rec)
		return rec.Status == domain.DrawStatusCompleted && rec.Winner == "alice"
	}, 2*time.Second, 10*time.Millisecond)

	w := f.do(http.MethodGet, "/api/raffle/draws?limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Draws []domain.DrawRecord `json:"draws"`
	}
	decode(t, w, &out)
	require.Len(t, out.Draws, 1)
	assert.Equal(t, "1", out.Draws[0].RequestID)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/raffle/draws/42", nil, "").Code)
}

func TestOpenEntriesWithoutIssuer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	coordinator := mock.NewCoordinator(0, nil)
	engine, err := machine.NewStateMachine(machine.Options{EntranceFee: 100, Interval: time.Minute}, coordinator, wallet.NewMockService())
	require.NoError(t, err)
	uc := usecase.NewRaffleUseCase(engine, memory.NewDrawRepository(), nil, nil)

	r := gin.New()
	NewHandler(uc, nil, nil).RegisterRoutes(r.Group("/api/raffle"))
	f := &fixture{router: r}

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/raffle/entries", gin.H{"stake": 100}, "").Code)
	assert.Equal(t, http.StatusCreated,
		f.do(http.MethodPost, "/api/raffle/entries", gin.H{"participant": "alice", "stake": 100}, "").Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(http.MethodPost, "/api/raffle/fulfillments", gin.H{"request_id": "1"}, "").Code)
}
