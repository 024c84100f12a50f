package pattern

import (
	"fmt"

	"SignalSentinel/internal/model"
)

// Oracle names the bullish patterns present on the latest bar of a series.
type Oracle interface {
	Classify(series *model.EnrichedSeries) ([]string, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(series *model.EnrichedSeries) ([]string, error)

func (f OracleFunc) Classify(series *model.EnrichedSeries) ([]string, error) { return f(series) }

// SafeClassify calls o and converts errors and panics into "no pattern".
// The returned error is for logging only.
func SafeClassify(o Oracle, series *model.EnrichedSeries) (patterns []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			patterns, err = nil, fmt.Errorf("pattern oracle panic: %v", r)
		}
	}()
	patterns, err = o.Classify(series)
	if err != nil {
		return nil, err
	}
	return patterns, nil
}
