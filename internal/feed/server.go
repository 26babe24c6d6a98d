package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfall/backtester/internal/domain"
)

// Server streams a bar series to websocket subscribers at a fixed tick rate,
// then sends an end-of-series marker and closes. Each subscriber gets the
// full series from the start.
type Server struct {
	addr     string
	series   domain.Series
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a replay server for the given series. interval is the
// delay between consecutive bars; zero streams as fast as the client reads.
func NewServer(addr string, series domain.Series, interval time.Duration, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		series:   series,
		interval: interval,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger.With(slog.String("component", "replay_server")),
	}
}

// Run serves /ws until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("replay server listening",
			slog.String("addr", s.addr),
			slog.Int("bars", s.series.Len()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	s.logger.Info("subscriber connected", slog.String("remote", r.RemoteAddr))

	for _, bar := range s.series.Bars {
		if ctx.Err() != nil {
			return
		}
		if err := conn.WriteJSON(toMessage(s.series.Symbol, bar)); err != nil {
			s.logger.Debug("subscriber dropped", slog.String("error", err.Error()))
			return
		}
		if s.interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.interval):
			}
		}
	}

	_ = conn.WriteJSON(endMessage{Event: endEvent, Bars: s.series.Len()})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of series"))
}
