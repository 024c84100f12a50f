package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"SignalSentinel/internal/fault"
	"SignalSentinel/internal/model"
)

// positionRecord is the on-disk shape of one ledger entry.
type positionRecord struct {
	EntryPrice    float64   `json:"entry_price"`
	TakeProfits   []float64 `json:"take_profits"`
	StopLoss      float64   `json:"stop_loss"`
	Timestamp     string    `json:"timestamp"`
	HitTakeProfit []float64 `json:"hit_tps"`
	Timeframe     string    `json:"timeframe"`
	MessageID     string    `json:"telegram_msg_id,omitempty"`
	SignalID      string    `json:"signal_id,omitempty"`
}

// FileStore writes each snapshot as a JSON file.
type FileStore struct {
	PositionsPath string
	AlertsPath    string
}

// NewFileStore creates a FileStore, making sure the parent directories exist.
func NewFileStore(positionsPath, alertsPath string) (*FileStore, error) {
	for _, p := range []string{positionsPath, alertsPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create state dir: %w", err)
			}
		}
	}
	return &FileStore{PositionsPath: positionsPath, AlertsPath: alertsPath}, nil
}

// LoadPositions reads the ledger snapshot. Returns an empty ledger if the file doesn't exist.
func (s *FileStore) LoadPositions() (map[string]model.Position, error) {
	positions := make(map[string]model.Position)
	data, err := os.ReadFile(s.PositionsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return positions, nil
		}
		return positions, fault.New(fault.Persistence, "read positions", err)
	}

	var records map[string]positionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return positions, fault.New(fault.MalformedSnapshot, "decode positions", err)
	}
	for instrument, r := range records {
		pos, err := r.toPosition(instrument)
		if err != nil {
			return make(map[string]model.Position), fault.New(fault.MalformedSnapshot, "decode positions", err)
		}
		positions[instrument] = pos
	}
	return positions, nil
}

// SavePositions writes the full ledger snapshot.
func (s *FileStore) SavePositions(positions map[string]model.Position) error {
	records := make(map[string]positionRecord, len(positions))
	for instrument, p := range positions {
		records[instrument] = positionRecord{
			EntryPrice:    p.EntryPrice,
			TakeProfits:   nonNil(p.TakeProfits),
			StopLoss:      p.StopLoss,
			Timestamp:     p.OpenedAt.UTC().Format(time.RFC3339Nano),
			HitTakeProfit: nonNil(p.HitTakeProfits),
			Timeframe:     p.Timeframe,
			MessageID:     p.AlertReference,
			SignalID:      p.SignalID,
		}
	}
	return writeJSON(s.PositionsPath, records)
}

// LoadAlerts reads the per-key last alert times. Returns an empty map if the file doesn't exist.
func (s *FileStore) LoadAlerts() (map[model.PairKey]float64, error) {
	alerts := make(map[model.PairKey]float64)
	data, err := os.ReadFile(s.AlertsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return alerts, nil
		}
		return alerts, fault.New(fault.Persistence, "read alerts", err)
	}

	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return alerts, fault.New(fault.MalformedSnapshot, "decode alerts", err)
	}
	for k, v := range raw {
		key, err := ParsePairKey(k)
		if err != nil {
			return make(map[model.PairKey]float64), fault.New(fault.MalformedSnapshot, "decode alerts", err)
		}
		alerts[key] = v
	}
	return alerts, nil
}

// SaveAlerts writes the per-key last alert times.
func (s *FileStore) SaveAlerts(lastAlertAt map[model.PairKey]float64) error {
	raw := make(map[string]float64, len(lastAlertAt))
	for k, v := range lastAlertAt {
		raw[k.String()] = v
	}
	return writeJSON(s.AlertsPath, raw)
}

// ParsePairKey splits "instrument_timeframe" on its last underscore.
func ParsePairKey(s string) (model.PairKey, error) {
	i := strings.LastIndex(s, "_")
	if i <= 0 || i == len(s)-1 {
		return model.PairKey{}, fmt.Errorf("invalid alert key %q", s)
	}
	return model.PairKey{Instrument: s[:i], Timeframe: s[i+1:]}, nil
}

func (r positionRecord) toPosition(instrument string) (model.Position, error) {
	if len(r.TakeProfits) == 0 {
		return model.Position{}, fmt.Errorf("%s: empty take-profit ladder", instrument)
	}
	for i := 1; i < len(r.TakeProfits); i++ {
		if r.TakeProfits[i] <= r.TakeProfits[i-1] {
			return model.Position{}, fmt.Errorf("%s: take-profit ladder not strictly increasing", instrument)
		}
	}
	for _, hit := range r.HitTakeProfit {
		if !slices.Contains(r.TakeProfits, hit) {
			return model.Position{}, fmt.Errorf("%s: hit take profit %v not on the ladder", instrument, hit)
		}
	}
	if r.StopLoss >= r.EntryPrice {
		return model.Position{}, fmt.Errorf("%s: stop loss %v not below entry %v", instrument, r.StopLoss, r.EntryPrice)
	}
	openedAt, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return model.Position{}, fmt.Errorf("%s: %w", instrument, err)
	}
	return model.Position{
		Instrument:     instrument,
		Timeframe:      r.Timeframe,
		SignalID:       r.SignalID,
		EntryPrice:     r.EntryPrice,
		TakeProfits:    append([]float64(nil), r.TakeProfits...),
		StopLoss:       r.StopLoss,
		HitTakeProfits: append([]float64(nil), r.HitTakeProfit...),
		OpenedAt:       openedAt,
		AlertReference: r.MessageID,
	}, nil
}

// parseTimestamp accepts RFC 3339 and the "2006-01-02 15:04:05" form older snapshots used.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// writeJSON writes to a temp file in the same directory and renames it into place.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fault.New(fault.Persistence, "encode "+filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fault.New(fault.Persistence, "write "+filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fault.New(fault.Persistence, "write "+filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fault.New(fault.Persistence, "write "+filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fault.New(fault.Persistence, "write "+filepath.Base(path), err)
	}
	return nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
