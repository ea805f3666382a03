// Package joystick receives the phone controller's stick over a websocket and
// keeps the latest value for the control loop to sample.
package joystick

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/robot"
)

// DefaultStale is how long a stick value is trusted without a new frame.
const DefaultStale = 500 * time.Millisecond

// Frame is one controller message. K is the drive stick as [x, y] in
// -100..100; other controls are ignored.
type Frame struct {
	K []float64 `json:"K,omitempty"`
}

// Server is an http.Handler that upgrades to a websocket and records frames.
type Server struct {
	mu      sync.RWMutex
	stick   robot.Joystick
	updated time.Time
	clients int

	stale    time.Duration
	now      func() time.Time
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for staleness.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server. stale <= 0 uses DefaultStale.
func NewServer(stale time.Duration, opts ...Option) *Server {
	if stale <= 0 {
		stale = DefaultStale
	}
	s := &Server{
		stale: stale,
		now:   time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "joystick").Msg("websocket upgrade failed")
		return
	}
	s.mu.Lock()
	s.clients++
	s.mu.Unlock()
	log.Info().Str("component", "joystick").Str("remote", r.RemoteAddr).Msg("controller connected")

	defer func() {
		s.mu.Lock()
		s.clients--
		s.mu.Unlock()
		conn.Close()
		log.Info().Str("component", "joystick").Str("remote", r.RemoteAddr).Msg("controller disconnected")
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("component", "joystick").Msg("read failed")
			}
			return
		}
		s.Update(f)
	}
}

// Update records a frame.
func (s *Server) Update(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(f.K) < 2 {
		return
	}
	s.stick = robot.Joystick{X: clamp(int(f.K[0]), -100, 100), Y: clamp(int(f.K[1]), -100, 100)}
	s.updated = s.now()
}

// Latest returns the last stick value, or false if none arrived within the
// staleness window.
func (s *Server) Latest() (robot.Joystick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updated.IsZero() || s.now().Sub(s.updated) > s.stale {
		return robot.Joystick{}, false
	}
	return s.stick, true
}

// Clients returns the number of connected controllers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients
}

// ListenAndServe serves the websocket on addr at /ws until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info().Str("component", "joystick").Str("addr", addr).Msg("joystick listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
