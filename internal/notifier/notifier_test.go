package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/fault"
	"SignalSentinel/internal/model"
)

func newTestNotifier(t *testing.T, h http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.BaseURL = srv.URL
	return n
}

func TestSend_TextWithReply(t *testing.T) {
	var got map[string]any
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":901}}`)
	})

	id, err := n.Send(context.Background(), Message{Text: "hello", ReplyTo: "777"})
	require.NoError(t, err)
	assert.Equal(t, "901", id)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.EqualValues(t, 777, got["reply_to_message_id"])
}

func TestSend_PhotoMultipart(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendPhoto", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "caption text", r.FormValue("caption"))
		assert.Empty(t, r.FormValue("reply_to_message_id"))
		f, _, err := r.FormFile("photo")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":5}}`)
	})

	id, err := n.Send(context.Background(), Message{Text: "caption text", Image: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)
	assert.Equal(t, "5", id)
}

func TestSend_APIErrorIsTransient(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	})

	_, err := n.Send(context.Background(), Message{Text: "x"})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.TransientIO))
}

func TestFormatSignal(t *testing.T) {
	sig := &model.Signal{
		Instrument:  "BTCUSDT",
		Timeframe:   "4h",
		Price:       100,
		RSI:         45.5,
		VolumeSpike: true,
		Patterns:    []string{"Hammer"},
		BarTime:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TakeProfits: []float64{105, 110, 120, 150},
		StopLoss:    92.5,
	}
	text := FormatSignal(sig)
	for _, want := range []string{"BTCUSDT", "4h", "105, 110, 120, 150", "92.5", "Hammer", "45.50"} {
		assert.Contains(t, text, want)
	}
}

func TestFormatTakeProfitAndStop(t *testing.T) {
	pos := &model.Position{
		Instrument:     "ETHUSDT",
		TakeProfits:    []float64{105, 110, 120, 150},
		HitTakeProfits: []float64{105},
		StopLoss:       92.5,
	}
	assert.Contains(t, FormatTakeProfit(pos, 110, 111), "Take Profit 2/4 hit")
	assert.Contains(t, FormatStopLoss(pos, 90), "1/4 TPs hit")
}

func TestFormatPositions(t *testing.T) {
	assert.Equal(t, "📭 No open positions", FormatPositions(nil))
	text := FormatPositions([]model.Position{{Instrument: "A&B", Timeframe: "1d", EntryPrice: 1}})
	assert.True(t, strings.Contains(text, "A&amp;B"), "instrument must be HTML escaped")
}

func TestStartPolling_AnswersConfiguredChat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		calls   int
		offsets []string
		reply   map[string]any
	)
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			mu.Lock()
			calls++
			first := calls == 1
			offsets = append(offsets, r.URL.Query().Get("offset"))
			mu.Unlock()
			if first {
				fmt.Fprint(w, `{"ok":true,"result":[
					{"update_id":10,"message":{"message_id":1,"chat":{"id":7},"text":"/positions"}},
					{"update_id":11,"message":{"message_id":2,"chat":{"id":42},"text":"hello"}},
					{"update_id":12,"message":{"message_id":555,"chat":{"id":42},"text":" /status "}}]}`)
				return
			}
			time.Sleep(10 * time.Millisecond)
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
		case "/botTOKEN/sendMessage":
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			json.Unmarshal(body, &reply)
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":556}}`)
		}
	})

	var handled []string
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(cmd string) string {
			handled = append(handled, cmd)
			return "status ok"
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reply != nil && calls >= 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"/status"}, handled)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "status ok", reply["text"])
	assert.EqualValues(t, 555, reply["reply_to_message_id"])
	assert.Equal(t, "0", offsets[0])
	assert.Equal(t, "13", offsets[1])
}
