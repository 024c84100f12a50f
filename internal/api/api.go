package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"SignalSentinel/internal/gate"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
)

const (
	DefaultTimeout     = 10 * time.Second
	RequestIDHeaderKey = "X-Request-ID"
	defaultSignalLimit = 50
	maxSignalLimit     = 500
)

// PositionSource exposes the open positions.
type PositionSource interface {
	List() []model.Position
	Get(instrument string) (model.Position, bool)
}

// ThrottleSource exposes the gate state.
type ThrottleSource interface {
	Snapshot(now time.Time) gate.Snapshot
}

// AuditSource exposes recent audit rows.
type AuditSource interface {
	Recent(ctx context.Context, limit int) ([]recorder.AuditRow, error)
}

// Server serves the read-only status endpoints.
type Server struct {
	positions PositionSource
	throttle  ThrottleSource
	audit     AuditSource
	now       func() time.Time
}

func NewServer(positions PositionSource, throttle ThrottleSource, audit AuditSource) *Server {
	return &Server{positions: positions, throttle: throttle, audit: audit, now: time.Now}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	r.HandleFunc("/positions/{instrument}", s.handlePosition).Methods(http.MethodGet)
	r.HandleFunc("/throttle", s.handleThrottle).Methods(http.MethodGet)
	r.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)
	return r
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Printf("[INFO] status API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type positionView struct {
	Instrument     string    `json:"instrument"`
	Timeframe      string    `json:"timeframe"`
	SignalID       string    `json:"signal_id"`
	EntryPrice     float64   `json:"entry_price"`
	TakeProfits    []float64 `json:"take_profits"`
	HitTakeProfits []float64 `json:"hit_take_profits"`
	StopLoss       float64   `json:"stop_loss"`
	OpenedAt       time.Time `json:"opened_at"`
}

type throttleView struct {
	LastAlertAt     map[string]float64 `json:"last_alert_at"`
	WindowCount     int                `json:"window_count"`
	GlobalCap       int                `json:"global_cap"`
	CooldownSeconds float64            `json:"cooldown_seconds"`
}

type signalView struct {
	SignalID    string    `json:"signal_id"`
	Type        string    `json:"type"`
	Instrument  string    `json:"instrument"`
	Timeframe   string    `json:"timeframe"`
	Price       float64   `json:"price"`
	RSI         float64   `json:"rsi"`
	MACD        float64   `json:"macd"`
	MACDSignal  float64   `json:"macd_signal"`
	Volume      float64   `json:"volume"`
	VolumeSpike bool      `json:"volume_spike"`
	TakeProfits []float64 `json:"take_profits"`
	StopLoss    float64   `json:"stop_loss"`
	Timestamp   time.Time `json:"timestamp"`
}

func viewOf(p model.Position) positionView {
	hits := p.HitTakeProfits
	if hits == nil {
		hits = []float64{}
	}
	return positionView{
		Instrument:     p.Instrument,
		Timeframe:      p.Timeframe,
		SignalID:       p.SignalID,
		EntryPrice:     p.EntryPrice,
		TakeProfits:    p.TakeProfits,
		HitTakeProfits: hits,
		StopLoss:       p.StopLoss,
		OpenedAt:       p.OpenedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	list := s.positions.List()
	out := make([]positionView, len(list))
	for i, p := range list {
		out[i] = viewOf(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	instrument := strings.ToUpper(mux.Vars(r)["instrument"])
	pos, ok := s.positions.Get(instrument)
	if !ok {
		writeError(w, http.StatusNotFound, "no open position for "+instrument)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(pos))
}

func (s *Server) handleThrottle(w http.ResponseWriter, r *http.Request) {
	snap := s.throttle.Snapshot(s.now())
	writeJSON(w, http.StatusOK, throttleView{
		LastAlertAt:     snap.LastAlertAt,
		WindowCount:     snap.WindowCount,
		GlobalCap:       snap.GlobalCap,
		CooldownSeconds: snap.CooldownSecs,
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultSignalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxSignalLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxSignalLimit))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultTimeout)
	defer cancel()
	rows, err := s.audit.Recent(ctx, limit)
	if err != nil {
		log.Printf("[ERROR] request %s: recent signals: %v", w.Header().Get(RequestIDHeaderKey), err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	out := make([]signalView, len(rows))
	for i, row := range rows {
		out[i] = signalView{
			SignalID:    row.SignalID,
			Type:        string(row.SignalType),
			Instrument:  row.Instrument,
			Timeframe:   row.Timeframe,
			Price:       row.Price,
			RSI:         row.RSI,
			MACD:        row.MACD,
			MACDSignal:  row.MACDSignal,
			Volume:      row.Volume,
			VolumeSpike: row.VolumeSpike,
			TakeProfits: row.TakeProfits,
			StopLoss:    row.StopLoss,
			Timestamp:   row.Timestamp,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeaderKey)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeaderKey, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
