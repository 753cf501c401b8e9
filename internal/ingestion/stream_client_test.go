package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-meme-radar/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frameRecorder collects the control frames a test server receives.
type frameRecorder struct {
	mu     sync.Mutex
	frames []subscribeRequest
}

func (r *frameRecorder) add(f subscribeRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *frameRecorder) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.Method == method {
			n++
		}
	}
	return n
}

func (r *frameRecorder) keysFor(method string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.frames {
		if f.Method == method {
			return f.Keys
		}
	}
	return nil
}

// recordFrames reads control frames into the recorder until the connection
// drops.
func recordFrames(conn *websocket.Conn, rec *frameRecorder) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if json.Unmarshal(msg, &req) == nil {
			rec.add(req)
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testStreamConfig() *StreamClientConfig {
	return &StreamClientConfig{
		ReconnectDelay:    50 * time.Millisecond,
		MaxReconnectDelay: 500 * time.Millisecond,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		DriftRefresh:      time.Hour, // kicks only
	}
}

func TestStreamClient_ConnectSubscribesBaseFeeds(t *testing.T) {
	rec := &frameRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		recordFrames(conn, rec)
	}))
	defer server.Close()

	client, err := NewStreamClient(context.Background(), wsURL(server), testStreamConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		return rec.count(methodSubscribeNewToken) == 1 && rec.count(methodSubscribeMigration) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamClient_DecodesEvents(t *testing.T) {
	payloads := []string{
		// Subscription ack, no txType: skipped silently.
		`{"message":"Successfully subscribed to token creation events."}`,
		`{"signature":"sigC","mint":"DogMint111pump","traderPublicKey":"creator1","txType":"create","name":"Dog Coin","symbol":"DOG","solAmount":0,"pool":"pump"}`,
		`{"signature":"sigB","mint":"DogMint111pump","traderPublicKey":"buyer1","txType":"buy","solAmount":1.25,"pool":"pump"}`,
		`{"signature":"sigM","mint":"DogMint111pump","txType":"migrate","pool":"raydium"}`,
		// Garbage: counted as a parse failure.
		`{invalid json`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		recordFrames(conn, &frameRecorder{})
	}))
	defer server.Close()

	client, err := NewStreamClient(context.Background(), wsURL(server), testStreamConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	var events []domain.StreamEvent
	deadline := time.After(2 * time.Second)
	for len(events) < 3 {
		select {
		case ev := <-client.Events():
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timeout, got %d events", len(events))
		}
	}

	create := events[0]
	assert.Equal(t, domain.TxCreate, create.Type)
	assert.Equal(t, "DogMint111pump", create.Mint)
	assert.Equal(t, "creator1", create.Trader)
	require.NotNil(t, create.Name)
	assert.Equal(t, "Dog Coin", *create.Name)
	require.NotNil(t, create.Symbol)
	assert.Equal(t, "DOG", *create.Symbol)
	assert.NotZero(t, create.TimestampMs)

	buy := events[1]
	assert.Equal(t, domain.TxBuy, buy.Type)
	assert.Equal(t, "buyer1", buy.Trader)
	assert.InDelta(t, 1.25, buy.SolAmount, 1e-9)

	migrate := events[2]
	assert.Equal(t, domain.TxMigrate, migrate.Type)
	assert.Nil(t, migrate.Name)

	require.Eventually(t, func() bool {
		return client.ParseFailures() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStreamClient_SetSubscriptionsSendsFrames(t *testing.T) {
	rec := &frameRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		recordFrames(conn, rec)
	}))
	defer server.Close()

	client, err := NewStreamClient(context.Background(), wsURL(server), testStreamConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	client.SetSubscriptions([]string{"mint1", "mint2"}, []string{"wallet1"})

	require.Eventually(t, func() bool {
		return rec.count(methodSubscribeTokenTrade) == 1 && rec.count(methodSubscribeAccountTrade) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{"mint1", "mint2"}, rec.keysFor(methodSubscribeTokenTrade))
	assert.Equal(t, []string{"wallet1"}, rec.keysFor(methodSubscribeAccountTrade))

	// Dropping every key sends the matching unsubscribe frames.
	client.SetSubscriptions(nil, nil)

	require.Eventually(t, func() bool {
		return rec.count(methodUnsubscribeTokenTrade) == 1 && rec.count(methodUnsubscribeAccountTrade) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{"mint1", "mint2"}, rec.keysFor(methodUnsubscribeTokenTrade))
}

func TestStreamClient_ReconnectResubscribes(t *testing.T) {
	rec := &frameRecorder{}
	var connCount int32
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		mu.Lock()
		connCount++
		first := connCount == 1
		mu.Unlock()

		if first {
			// Accept the base frames plus the token subscription, then
			// drop the connection to force a reconnect.
			for i := 0; i < 3; i++ {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var req subscribeRequest
				if json.Unmarshal(msg, &req) == nil {
					rec.add(req)
				}
			}
			return
		}
		recordFrames(conn, rec)
	}))
	defer server.Close()

	client, err := NewStreamClient(context.Background(), wsURL(server), testStreamConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	client.SetSubscriptions([]string{"mint1"}, nil)

	// The first connection saw base + token frames before dying; the
	// second must see the full replay.
	require.Eventually(t, func() bool {
		return rec.count(methodSubscribeNewToken) == 2 &&
			rec.count(methodSubscribeMigration) == 2 &&
			rec.count(methodSubscribeTokenTrade) == 2
	}, 5*time.Second, 20*time.Millisecond)

	assert.GreaterOrEqual(t, client.Reconnects(), uint64(1))
}

func TestStreamClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		recordFrames(conn, &frameRecorder{})
	}))
	defer server.Close()

	client, err := NewStreamClient(context.Background(), wsURL(server), testStreamConfig(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "double close is safe")

	_, open := <-client.Events()
	assert.False(t, open, "events channel closes with the client")
}

func TestStreamClient_DialFailure(t *testing.T) {
	_, err := NewStreamClient(context.Background(), "ws://127.0.0.1:1", testStreamConfig(), zerolog.Nop())
	require.Error(t, err)
}
