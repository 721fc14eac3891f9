package link

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

const (
	// LoopbackPeripheralAddress and LoopbackCentralAddress identify the two ends of a Loopback.
	LoopbackPeripheralAddress = "loop:peripheral"
	LoopbackCentralAddress    = "loop:central"
)

// Loopback is an in-memory radio connecting one Central to one Peripheral.
// Callbacks run synchronously in the caller's goroutine.
type Loopback struct {
	profile Profile

	mu          sync.Mutex
	advertising bool
	scanning    bool
	scanService bluetooth.UUID
	connected   bool
	value       []byte

	found       func(address string)
	notify      func(value []byte)
	centralConn func(address string, connected bool)
	periphConn  func(address string, connected bool)
}

// NewLoopback creates a radio whose peripheral serves profile.
func NewLoopback(profile Profile) *Loopback {
	return &Loopback{profile: profile}
}

// Central returns the central end.
func (l *Loopback) Central() Central { return (*loopCentral)(l) }

// Peripheral returns the peripheral end.
func (l *Loopback) Peripheral() Peripheral { return (*loopPeripheral)(l) }

// Connected reports whether the two ends are connected.
func (l *Loopback) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Drop simulates link loss.
func (l *Loopback) Drop() {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return
	}
	l.connected = false
	l.notify = nil
	cc, pc := l.centralConn, l.periphConn
	l.mu.Unlock()

	if cc != nil {
		cc(LoopbackPeripheralAddress, false)
	}
	if pc != nil {
		pc(LoopbackCentralAddress, false)
	}
}

type loopCentral Loopback

func (c *loopCentral) StartScan(service bluetooth.UUID, found func(address string)) error {
	l := (*Loopback)(c)
	l.mu.Lock()
	l.scanning = true
	l.scanService = service
	l.found = found
	visible := l.advertising && service == l.profile.Service
	l.mu.Unlock()

	if visible {
		found(LoopbackPeripheralAddress)
	}
	return nil
}

func (c *loopCentral) StopScan() error {
	l := (*Loopback)(c)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scanning = false
	l.found = nil
	return nil
}

func (c *loopCentral) Connect(address string) (Peer, error) {
	l := (*Loopback)(c)
	if address != LoopbackPeripheralAddress {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}

	l.mu.Lock()
	if !l.advertising {
		l.mu.Unlock()
		return nil, ErrNotAdvertising
	}
	l.advertising = false
	l.connected = true
	cc, pc := l.centralConn, l.periphConn
	l.mu.Unlock()

	if cc != nil {
		cc(LoopbackPeripheralAddress, true)
	}
	if pc != nil {
		pc(LoopbackCentralAddress, true)
	}
	return (*loopPeer)(l), nil
}

func (c *loopCentral) SetConnectHandler(fn func(address string, connected bool)) {
	l := (*Loopback)(c)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.centralConn = fn
}

type loopPeer Loopback

func (p *loopPeer) Address() string { return LoopbackPeripheralAddress }

func (p *loopPeer) Characteristic(profile Profile) (Characteristic, error) {
	l := (*Loopback)(p)
	if profile.Service != l.profile.Service {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, profile.Service.String())
	}
	if profile.Characteristic != l.profile.Characteristic {
		return nil, fmt.Errorf("%w: %s", ErrCharacteristicNotFound, profile.Characteristic.String())
	}
	return p, nil
}

func (p *loopPeer) Read(buf []byte) (int, error) {
	l := (*Loopback)(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	return copy(buf, l.value), nil
}

func (p *loopPeer) EnableNotifications(fn func(value []byte)) error {
	l := (*Loopback)(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notify = fn
	return nil
}

func (p *loopPeer) Disconnect() error {
	(*Loopback)(p).Drop()
	return nil
}

type loopPeripheral Loopback

func (p *loopPeripheral) Advertise() error {
	l := (*Loopback)(p)
	l.mu.Lock()
	l.advertising = true
	found := l.found
	visible := l.scanning && found != nil && l.scanService == l.profile.Service
	l.mu.Unlock()

	if visible {
		found(LoopbackPeripheralAddress)
	}
	return nil
}

func (p *loopPeripheral) Notify(value []byte) error {
	l := (*Loopback)(p)
	l.mu.Lock()
	l.value = clone(value)
	fn := l.notify
	connected := l.connected
	l.mu.Unlock()

	if connected && fn != nil {
		fn(clone(value))
	}
	return nil
}

func (p *loopPeripheral) SetConnectHandler(fn func(address string, connected bool)) {
	l := (*Loopback)(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.periphConn = fn
}
