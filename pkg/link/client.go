package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/itohio/gohrm/pkg/config"
	"go.uber.org/zap"
)

// initialReadSize bounds the initial characteristic read.
const initialReadSize = 64

// Client is the display node's connection/retry state machine.
//
//	Idle       -> Scanning    at start-up and when RetryInterval has passed since the last attempt
//	Scanning   -> Connecting  a peripheral advertising the service was discovered
//	Scanning   -> Idle        nothing found within ScanTimeout
//	Connecting -> Connected   connect, service and characteristic lookup, initial read and notify registration succeeded
//	Connecting -> Failed      any of the above failed
//	Connected  -> Idle        link lost
//	Failed     -> Idle        after FailureBackoff
//
// All transitions happen inside Poll. Connect is the only blocking call.
type Client struct {
	central Central
	profile Profile
	cfg     config.LinkConfig
	log     *zap.Logger
	queue   *Queue

	state       State
	since       time.Time
	lastAttempt time.Time
	target      string
	peer        Peer
	lastErr     error
}

// NewClient creates a client. A nil logger disables logging.
func NewClient(central Central, profile Profile, cfg config.LinkConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		central: central,
		profile: profile,
		cfg:     cfg,
		log:     log,
		queue:   NewQueue(DefaultQueueSize),
	}
	central.SetConnectHandler(func(address string, connected bool) {
		kind := EventDisconnected
		if connected {
			kind = EventConnected
		}
		c.queue.Push(Event{Kind: kind, Address: address})
	})
	return c
}

// Poll drains pending radio events, forwarding them to h, and then performs
// one check for the current state. h may be nil.
func (c *Client) Poll(now time.Time, h Handler) {
	for _, ev := range c.queue.Drain() {
		c.handle(ev, now, h)
	}

	switch c.state {
	case StateIdle:
		if c.lastAttempt.IsZero() || now.Sub(c.lastAttempt) >= c.cfg.RetryInterval {
			c.startScan(now)
		}

	case StateScanning:
		if c.target != "" {
			c.stopScan()
			c.setState(StateConnecting, now)
			return
		}
		if now.Sub(c.since) >= c.cfg.ScanTimeout {
			c.log.Info("scan timeout")
			c.stopScan()
			c.setState(StateIdle, now)
		}

	case StateConnecting:
		if err := c.connect(); err != nil {
			c.lastErr = err
			c.log.Warn("connect failed", zap.String("address", c.target), zap.Error(err))
			c.target = ""
			c.setState(StateFailed, now)
			return
		}
		c.lastErr = nil
		c.setState(StateConnected, now)
		c.emit(h, Event{Kind: EventConnected, Address: c.peer.Address()})

	case StateFailed:
		if now.Sub(c.since) >= c.cfg.FailureBackoff {
			c.lastAttempt = time.Time{}
			c.setState(StateIdle, now)
		}
	}
}

func (c *Client) handle(ev Event, now time.Time, h Handler) {
	switch ev.Kind {
	case EventDiscovered:
		if c.state != StateScanning || c.target != "" {
			return
		}
		c.log.Info("peripheral discovered", zap.String("address", ev.Address))
		c.target = ev.Address
		c.emit(h, ev)

	case EventConnected:
		// Reported by Poll once the characteristic is set up.
		c.log.Debug("radio connected", zap.String("address", ev.Address))

	case EventDisconnected:
		if c.state != StateConnected || (c.peer != nil && ev.Address != "" && ev.Address != c.peer.Address()) {
			return
		}
		c.log.Warn("link lost", zap.String("address", ev.Address))
		c.peer = nil
		c.target = ""
		c.setState(StateIdle, now)
		c.emit(h, ev)

	case EventData:
		if c.state != StateConnected {
			return
		}
		c.emit(h, ev)
	}
}

func (c *Client) startScan(now time.Time) {
	c.lastAttempt = now
	c.target = ""

	err := c.central.StartScan(c.profile.Service, func(address string) {
		c.queue.Push(Event{Kind: EventDiscovered, Address: address})
	})
	if err != nil {
		c.lastErr = fmt.Errorf("failed to start scan: %w", err)
		c.log.Warn("scan failed", zap.Error(err))
		c.setState(StateFailed, now)
		return
	}
	c.setState(StateScanning, now)
}

func (c *Client) stopScan() {
	if err := c.central.StopScan(); err != nil {
		c.log.Debug("stop scan", zap.Error(err))
	}
}

// connect performs the blocking connect and characteristic set-up.
func (c *Client) connect() error {
	peer, err := c.central.Connect(c.target)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.target, err)
	}

	char, err := peer.Characteristic(c.profile)
	if err != nil {
		peer.Disconnect()
		return err
	}

	buf := make([]byte, initialReadSize)
	n, err := char.Read(buf)
	if err != nil {
		peer.Disconnect()
		return fmt.Errorf("failed to read initial value: %w", err)
	}

	address := peer.Address()
	err = char.EnableNotifications(func(value []byte) {
		c.queue.Push(Event{Kind: EventData, Address: address, Data: clone(value)})
	})
	if err != nil {
		peer.Disconnect()
		return fmt.Errorf("failed to enable notifications: %w", err)
	}

	c.peer = peer
	if n > 0 {
		c.queue.Push(Event{Kind: EventData, Address: address, Data: clone(buf[:n])})
	}
	return nil
}

func (c *Client) setState(s State, now time.Time) {
	if s == c.state {
		return
	}
	c.log.Debug("link state", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	c.since = now
}

func (c *Client) emit(h Handler, ev Event) {
	if h != nil {
		h.HandleEvent(ev)
	}
}

// Close disconnects the peer or stops a scan in progress.
func (c *Client) Close() error {
	switch c.state {
	case StateScanning:
		err := c.central.StopScan()
		c.target = ""
		c.state = StateIdle
		return err
	case StateConnected:
		if c.peer != nil {
			err := c.peer.Disconnect()
			c.peer = nil
			c.state = StateIdle
			return err
		}
	}
	return nil
}

// State returns the current connection state.
func (c *Client) State() State { return c.state }

// Connected reports whether the client is connected.
func (c *Client) Connected() bool { return c.state == StateConnected }

// Address returns the connected peer address, or "".
func (c *Client) Address() string {
	if c.peer == nil {
		return ""
	}
	return c.peer.Address()
}

// Err returns the last connection error, nil after a successful connect.
func (c *Client) Err() error { return c.lastErr }

// Dropped returns the number of events lost to a full queue.
func (c *Client) Dropped() int { return c.queue.Dropped() }

// IsNotFound reports whether err is a service or characteristic lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound) || errors.Is(err, ErrCharacteristicNotFound)
}
