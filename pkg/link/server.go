package link

import (
	"bytes"
	"fmt"
	"time"

	"github.com/itohio/gohrm/pkg/config"
	"go.uber.org/zap"
)

// Server is the sensing node's side of the link. It advertises, tracks the
// connection and rate-limits notifications.
type Server struct {
	periph Peripheral
	cfg    config.LinkConfig
	log    *zap.Logger
	queue  *Queue

	advertising   bool
	connected     bool
	address       string
	readvertiseAt time.Time

	last     []byte
	lastSent time.Time
	sent     int
}

// NewServer creates a server. A nil logger disables logging.
func NewServer(periph Peripheral, cfg config.LinkConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		periph: periph,
		cfg:    cfg,
		log:    log,
		queue:  NewQueue(DefaultQueueSize),
	}
	periph.SetConnectHandler(func(address string, connected bool) {
		kind := EventDisconnected
		if connected {
			kind = EventConnected
		}
		s.queue.Push(Event{Kind: kind, Address: address})
	})
	return s
}

// Start begins advertising.
func (s *Server) Start() error {
	if err := s.periph.Advertise(); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}
	s.advertising = true
	s.log.Info("advertising", zap.String("name", s.cfg.LocalName))
	return nil
}

// Poll drains connection events, forwarding them to h (which may be nil),
// and restarts advertising ReadvertiseDelay after a disconnect.
func (s *Server) Poll(now time.Time, h Handler) {
	for _, ev := range s.queue.Drain() {
		switch ev.Kind {
		case EventConnected:
			s.connected = true
			s.advertising = false
			s.address = ev.Address
			s.last = nil
			s.log.Info("central connected", zap.String("address", ev.Address))
		case EventDisconnected:
			s.connected = false
			s.advertising = false
			s.address = ""
			s.readvertiseAt = now.Add(s.cfg.ReadvertiseDelay)
			s.log.Info("central disconnected", zap.String("address", ev.Address))
		}
		if h != nil {
			h.HandleEvent(ev)
		}
	}

	if !s.connected && !s.advertising && !now.Before(s.readvertiseAt) {
		if err := s.Start(); err != nil {
			s.log.Warn("advertise failed", zap.Error(err))
			s.readvertiseAt = now.Add(s.cfg.ReadvertiseDelay)
		}
	}
}

// Publish notifies value when connected. At most one notification is sent
// per NotifyInterval; within that limit a value is sent when it differs from
// the last one sent or when HeartbeatInterval has passed.
func (s *Server) Publish(now time.Time, value []byte) (bool, error) {
	if !s.connected {
		return false, nil
	}
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < s.cfg.NotifyInterval {
		return false, nil
	}

	changed := s.last == nil || !bytes.Equal(value, s.last)
	heartbeat := s.lastSent.IsZero() || now.Sub(s.lastSent) >= s.cfg.HeartbeatInterval
	if !changed && !heartbeat {
		return false, nil
	}

	if err := s.periph.Notify(value); err != nil {
		return false, fmt.Errorf("failed to notify: %w", err)
	}
	s.last = clone(value)
	s.lastSent = now
	s.sent++
	return true, nil
}

// Connected reports whether a central is connected.
func (s *Server) Connected() bool { return s.connected }

// Advertising reports whether the server is advertising.
func (s *Server) Advertising() bool { return s.advertising }

// Address returns the connected central address, or "".
func (s *Server) Address() string { return s.address }

// Sent returns the number of notifications sent.
func (s *Server) Sent() int { return s.sent }
