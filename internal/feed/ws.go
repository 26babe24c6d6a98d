package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/quantfall/backtester/internal/domain"
)

// WSLoader fetches a complete bar series from a replay websocket server. The
// whole series is read before the run starts so the engine itself stays
// synchronous.
type WSLoader struct {
	url    string
	logger *slog.Logger
}

// NewWSLoader creates a loader that dials the given websocket URL.
func NewWSLoader(url string, logger *slog.Logger) *WSLoader {
	return &WSLoader{
		url:    url,
		logger: logger.With(slog.String("component", "ws_feed")),
	}
}

// Load dials the server and reads bar messages until the end-of-series
// marker or the connection closes. The server streams bars in ascending
// order; Load rejects out-of-order bars rather than silently re-sorting.
func (l *WSLoader) Load(ctx context.Context) (domain.Series, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return domain.Series{}, fmt.Errorf("feed: dial %s: %w", l.url, err)
	}
	defer conn.Close()

	var series domain.Series
	for {
		if err := ctx.Err(); err != nil {
			return domain.Series{}, err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return domain.Series{}, fmt.Errorf("feed: read: %w", err)
		}

		var end endMessage
		if json.Unmarshal(data, &end) == nil && end.Event == endEvent {
			break
		}

		var msg barMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return domain.Series{}, fmt.Errorf("feed: decode bar: %w", err)
		}
		bar, err := msg.toBar()
		if err != nil {
			return domain.Series{}, fmt.Errorf("feed: parse timestamp %q: %w", msg.Timestamp, err)
		}

		if n := len(series.Bars); n > 0 && !series.Bars[n-1].Timestamp.Before(bar.Timestamp) {
			return domain.Series{}, fmt.Errorf("feed: bars out of order at %s", msg.Timestamp)
		}
		if series.Symbol == "" {
			series.Symbol = msg.Symbol
		}
		series.Bars = append(series.Bars, bar)
	}

	if series.Len() == 0 {
		return domain.Series{}, domain.ErrNoData
	}

	l.logger.Info("series loaded from feed",
		slog.String("symbol", series.Symbol),
		slog.Int("bars", series.Len()),
	)
	return series, nil
}
