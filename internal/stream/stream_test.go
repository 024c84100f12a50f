package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamURL(t *testing.T) {
	got := StreamURL("wss://example", []string{"BTCUSDT", "ETHUSDT"})
	assert.Equal(t, "wss://example/stream?streams=btcusdt@miniTicker/ethusdt@miniTicker", got)
}

func TestParseMiniTicker(t *testing.T) {
	inst, price, ok := ParseMiniTicker([]byte(`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","s":"BTCUSDT","c":"64123.50"}}`))
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", inst)
	assert.Equal(t, 64123.5, price)

	_, _, ok = ParseMiniTicker([]byte(`{"result":null,"id":1}`))
	assert.False(t, ok)
	_, _, ok = ParseMiniTicker([]byte(`not json`))
	assert.False(t, ok)
}

func TestStream_DeliversTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btcusdt@miniTicker", r.URL.Query().Get("streams"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","s":"BTCUSDT","c":"101.5"}}`))
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	var (
		mu  sync.Mutex
		got []float64
	)
	ticked := make(chan struct{}, 1)
	s := New("ws"+strings.TrimPrefix(srv.URL, "http"), func() []string { return []string{"BTCUSDT"} },
		func(inst string, price float64) {
			mu.Lock()
			got = append(got, price)
			mu.Unlock()
			select {
			case ticked <- struct{}{}:
			default:
			}
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick received")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{101.5}, got)
	messages, _ := s.Stats()
	assert.EqualValues(t, 1, messages)
}
