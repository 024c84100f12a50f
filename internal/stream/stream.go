package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"SignalSentinel/internal/fault"
)

const (
	DefaultURL = "wss://stream.binance.com:9443"

	readTimeout = 60 * time.Second
	maxBackoff  = time.Minute
)

var errResubscribe = errors.New("instrument set changed")

// TickFunc receives one live close price.
type TickFunc func(instrument string, price float64)

// Stream follows Binance mini-ticker updates for the instruments that currently
// have open positions and reports every close as a tick.
type Stream struct {
	URL         string
	Instruments func() []string
	OnTick      TickFunc
	Refresh     time.Duration
	Dialer      *websocket.Dialer

	messages   atomic.Int64
	reconnects atomic.Int64
}

// New creates a stream. Refresh is how often the instrument set is re-read.
func New(url string, instruments func() []string, onTick TickFunc) *Stream {
	if url == "" {
		url = DefaultURL
	}
	return &Stream{
		URL:         strings.TrimRight(url, "/"),
		Instruments: instruments,
		OnTick:      onTick,
		Refresh:     15 * time.Second,
		Dialer:      websocket.DefaultDialer,
	}
}

// Stats returns the number of messages received and reconnects so far.
func (s *Stream) Stats() (messages, reconnects int64) {
	return s.messages.Load(), s.reconnects.Load()
}

// Run blocks until ctx is cancelled, reconnecting with exponential backoff.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		instruments := normalize(s.Instruments())
		if len(instruments) == 0 {
			sleepCtx(ctx, s.Refresh)
			continue
		}

		before := s.messages.Load()
		err := s.session(ctx, instruments)
		if ctx.Err() != nil {
			break
		}
		if s.messages.Load() > before {
			backoff = time.Second
		}
		if errors.Is(err, errResubscribe) {
			log.Printf("[INFO] stream resubscribing (%d instruments)", len(normalize(s.Instruments())))
			continue
		}

		s.reconnects.Add(1)
		log.Printf("[WARN] stream disconnected: %v, reconnecting in %v", err, backoff)
		sleepCtx(ctx, backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	log.Println("[INFO] price stream stopped")
}

func (s *Stream) session(ctx context.Context, instruments []string) error {
	conn, _, err := s.Dialer.DialContext(ctx, StreamURL(s.URL, instruments), nil)
	if err != nil {
		return fault.IO("stream dial", err)
	}
	defer conn.Close()
	log.Printf("[INFO] stream connected: %s", strings.Join(instruments, ","))

	var resubscribe atomic.Bool
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.Refresh)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if !equal(normalize(s.Instruments()), instruments) {
					resubscribe.Store(true)
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if resubscribe.Load() {
				return errResubscribe
			}
			return fault.IO("stream read", err)
		}
		s.messages.Add(1)
		if inst, price, ok := ParseMiniTicker(data); ok {
			s.OnTick(inst, price)
		}
	}
}

// StreamURL builds the combined-stream URL for the mini-ticker of each instrument.
func StreamURL(base string, instruments []string) string {
	streams := make([]string, len(instruments))
	for i, inst := range instruments {
		streams[i] = strings.ToLower(inst) + "@miniTicker"
	}
	return fmt.Sprintf("%s/stream?streams=%s", base, strings.Join(streams, "/"))
}

// ParseMiniTicker extracts the symbol and close price from a combined-stream
// mini-ticker message.
func ParseMiniTicker(data []byte) (string, float64, bool) {
	if !gjson.ValidBytes(data) {
		return "", 0, false
	}
	msg := gjson.GetBytes(data, "data")
	if !msg.Exists() {
		msg = gjson.ParseBytes(data)
	}
	if msg.Get("e").String() != "24hrMiniTicker" {
		return "", 0, false
	}
	symbol := msg.Get("s").String()
	price, err := strconv.ParseFloat(msg.Get("c").String(), 64)
	if symbol == "" || err != nil || price <= 0 {
		return "", 0, false
	}
	return symbol, price, true
}

func normalize(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
