package feed

import (
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

// barMessage is the JSON wire shape for one bar on the websocket feed.
type barMessage struct {
	Symbol    string  `json:"symbol"`
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// endMessage closes a stream; after sending it the server drops the
// connection.
type endMessage struct {
	Event string `json:"event"`
	Bars  int    `json:"bars"`
}

const endEvent = "end_of_series"

func toMessage(symbol string, b domain.Bar) barMessage {
	return barMessage{
		Symbol:    symbol,
		Timestamp: b.Timestamp.UTC().Format(time.RFC3339Nano),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

func (m barMessage) toBar() (domain.Bar, error) {
	ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return domain.Bar{}, err
	}
	return domain.Bar{
		Timestamp: ts,
		Open:      m.Open,
		High:      m.High,
		Low:       m.Low,
		Close:     m.Close,
		Volume:    m.Volume,
	}, nil
}
