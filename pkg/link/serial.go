package link

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// DefaultBaudRate is the sensing node's USB serial rate.
const DefaultBaudRate = 115200

var _ Central = (*SerialCentral)(nil)

// Port is a serial port available on the host.
type Port struct {
	Name        string
	Description string
}

// Ports returns the serial ports available on the host.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// SerialCentral is a Central reading payload lines from a sensing node
// connected over USB serial. The configured port is the only peripheral:
// it is discovered by every scan while present, Connect opens it and each
// non-empty line is delivered as a notification. End of stream or a read
// error is reported as a disconnect.
type SerialCentral struct {
	port     string
	baudRate int
	log      *zap.Logger

	// list and open are replaced in tests.
	list func() ([]string, error)
	open func(name string, baudRate int) (io.ReadCloser, error)

	mu        sync.Mutex
	onConnect func(address string, connected bool)
}

// NewSerialCentral creates a central for port. A nil logger disables logging.
func NewSerialCentral(port string, baudRate int, log *zap.Logger) *SerialCentral {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SerialCentral{
		port:     port,
		baudRate: baudRate,
		log:      log,
		list:     serial.GetPortsList,
		open:     openSerial,
	}
}

func openSerial(name string, baudRate int) (io.ReadCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baudRate})
}

// StartScan reports the configured port when the host lists it.
func (c *SerialCentral) StartScan(_ bluetooth.UUID, found func(address string)) error {
	ports, err := c.list()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	for _, name := range ports {
		if name == c.port {
			found(name)
			return nil
		}
	}
	c.log.Debug("serial port not present", zap.String("port", c.port))
	return nil
}

func (c *SerialCentral) StopScan() error { return nil }

func (c *SerialCentral) Connect(address string) (Peer, error) {
	conn, err := c.open(address, c.baudRate)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", address, err)
	}
	c.log.Info("serial port opened", zap.String("port", address), zap.Int("baud", c.baudRate))
	return &serialPeer{central: c, address: address, conn: conn}, nil
}

func (c *SerialCentral) SetConnectHandler(fn func(address string, connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

func (c *SerialCentral) notifyConnect(address string, connected bool) {
	c.mu.Lock()
	fn := c.onConnect
	c.mu.Unlock()
	if fn != nil {
		fn(address, connected)
	}
}

type serialPeer struct {
	central *SerialCentral
	address string
	conn    io.ReadCloser

	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (p *serialPeer) Address() string { return p.address }

// Characteristic returns the port itself; a serial stream has one channel.
func (p *serialPeer) Characteristic(Profile) (Characteristic, error) {
	return p, nil
}

// Read returns no initial value; the first line arrives as a notification.
func (p *serialPeer) Read([]byte) (int, error) { return 0, nil }

func (p *serialPeer) EnableNotifications(fn func(value []byte)) error {
	go p.readLines(fn)
	return nil
}

func (p *serialPeer) readLines(fn func(value []byte)) {
	defer func() {
		if r := recover(); r != nil {
			p.central.log.Error("panic in serial reader", zap.Any("panic", r))
		}
		if err := p.closeConn(); err != nil {
			p.central.log.Warn("serial close failed", zap.String("port", p.address), zap.Error(err))
		}
		p.lost()
	}()

	scanner := bufio.NewScanner(p.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn([]byte(line))
	}
	if err := scanner.Err(); err != nil && err != io.EOF && !p.isClosed() {
		p.central.log.Warn("serial read failed", zap.String("port", p.address), zap.Error(err))
	}
}

// lost reports the disconnect once, whether caused by the stream or by Disconnect.
func (p *serialPeer) lost() {
	p.once.Do(func() {
		p.central.notifyConnect(p.address, false)
	})
}

func (p *serialPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// closeConn closes the port once. Later calls return nil.
func (p *serialPeer) closeConn() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", p.address, err)
	}
	return nil
}

func (p *serialPeer) Disconnect() error {
	err := p.closeConn()
	p.lost()
	return err
}
