package domain

import "time"

// Bar is a single OHLCV observation. Bars are immutable once produced by a
// data loader; ownership passes to the strategy/driver for the duration of
// one tick.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Series is a time-ordered bar sequence plus named derived columns
// (indicators) added by a strategy's Prepare pass. Loaders guarantee the bars
// are de-duplicated and sorted ascending by timestamp.
type Series struct {
	Symbol  string
	Bars    []Bar
	Columns map[string][]float64
}

// Len returns the number of bars in the series.
func (s Series) Len() int { return len(s.Bars) }

// Clone returns a deep copy of the series. Prepare implementations clone
// before adding columns so the input series is never mutated.
func (s Series) Clone() Series {
	out := Series{
		Symbol: s.Symbol,
		Bars:   make([]Bar, len(s.Bars)),
	}
	copy(out.Bars, s.Bars)
	if s.Columns != nil {
		out.Columns = make(map[string][]float64, len(s.Columns))
		for name, vals := range s.Columns {
			cp := make([]float64, len(vals))
			copy(cp, vals)
			out.Columns[name] = cp
		}
	}
	return out
}

// SetColumn attaches a derived column. The column must be parallel to Bars.
func (s *Series) SetColumn(name string, vals []float64) {
	if s.Columns == nil {
		s.Columns = make(map[string][]float64)
	}
	s.Columns[name] = vals
}

// Column returns a derived column by name.
func (s Series) Column(name string) ([]float64, bool) {
	vals, ok := s.Columns[name]
	return vals, ok
}

// Row returns a view of bar i together with its derived column values.
func (s *Series) Row(i int) Row {
	return Row{Index: i, Bar: s.Bars[i], series: s}
}

// Row is one prepared bar handed to Strategy.Decide.
type Row struct {
	Index  int
	Bar    Bar
	series *Series
}

// Value returns the derived column value at this row.
func (r Row) Value(name string) (float64, bool) {
	if r.series == nil {
		return 0, false
	}
	vals, ok := r.series.Columns[name]
	if !ok || r.Index >= len(vals) {
		return 0, false
	}
	return vals[r.Index], true
}
