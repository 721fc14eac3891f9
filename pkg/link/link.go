// Package link implements the wireless link between the sensing node
// (peripheral, Server) and the display node (central, Client).
//
// Radio callbacks never touch link state directly: they push Events into a
// Queue which the owning poll loop drains once per tick.
package link

import (
	"errors"
	"fmt"
	"sync"

	"github.com/itohio/gohrm/pkg/config"
	"tinygo.org/x/bluetooth"
)

var (
	ErrServiceNotFound        = errors.New("service not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrNotAdvertising         = errors.New("peripheral not advertising")
	ErrUnknownAddress         = errors.New("unknown address")
)

// DefaultQueueSize is the default event queue capacity.
const DefaultQueueSize = 32

// State is the connection state of a Client.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind identifies an Event.
type Kind int

const (
	EventDiscovered Kind = iota
	EventConnected
	EventDisconnected
	EventData
)

func (k Kind) String() string {
	switch k {
	case EventDiscovered:
		return "discovered"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventData:
		return "data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one radio occurrence.
type Event struct {
	Kind    Kind
	Address string
	Data    []byte // EventData only; owned by the event
}

// Handler consumes link events in the poll loop.
type Handler interface {
	HandleEvent(ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev Event)

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }

// Queue is a bounded multi-producer single-consumer event queue.
// Producers are radio callbacks; the consumer is the poll loop.
type Queue struct {
	mu      sync.Mutex
	events  []Event
	size    int
	dropped int
}

// NewQueue creates a queue holding at most size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{events: make([]Event, 0, size), size: size}
}

// Push appends ev. When the queue is full the event is dropped and counted.
func (q *Queue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) >= q.size {
		q.dropped++
		return false
	}
	q.events = append(q.events, ev)
	return true
}

// Drain removes and returns all queued events in arrival order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = make([]Event, 0, q.size)
	return out
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Profile names the GATT service and characteristic carrying the payload.
type Profile struct {
	Service        bluetooth.UUID
	Characteristic bluetooth.UUID
}

// ProfileFromConfig parses the configured UUID pair.
func ProfileFromConfig(cfg config.LinkConfig) (Profile, error) {
	svc, err := bluetooth.ParseUUID(cfg.ServiceUUID)
	if err != nil {
		return Profile{}, fmt.Errorf("invalid service uuid: %w", err)
	}
	chr, err := bluetooth.ParseUUID(cfg.CharacteristicUUID)
	if err != nil {
		return Profile{}, fmt.Errorf("invalid characteristic uuid: %w", err)
	}
	return Profile{Service: svc, Characteristic: chr}, nil
}

// Central is the scanning/connecting side of the radio.
type Central interface {
	// StartScan starts scanning for peripherals advertising service and
	// returns immediately. found may be called from another goroutine.
	StartScan(service bluetooth.UUID, found func(address string)) error
	StopScan() error
	// Connect blocks until the connection succeeds or fails.
	Connect(address string) (Peer, error)
	// SetConnectHandler registers the connect/disconnect callback.
	SetConnectHandler(fn func(address string, connected bool))
}

// Peer is a connected peripheral.
type Peer interface {
	Address() string
	// Characteristic looks up the profile's service and characteristic.
	Characteristic(p Profile) (Characteristic, error)
	Disconnect() error
}

// Characteristic is a remote GATT characteristic.
type Characteristic interface {
	Read(buf []byte) (int, error)
	EnableNotifications(fn func(value []byte)) error
}

// Peripheral is the advertising side of the radio.
type Peripheral interface {
	Advertise() error
	// Notify updates the characteristic value and notifies subscribers.
	Notify(value []byte) error
	SetConnectHandler(fn func(address string, connected bool))
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
