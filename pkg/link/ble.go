package link

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

var (
	_ Central    = (*BLECentral)(nil)
	_ Peripheral = (*BLEPeripheral)(nil)
)

// BLECentral is a Central on a bluetooth adapter.
type BLECentral struct {
	adapter *bluetooth.Adapter
	log     *zap.Logger

	mu   sync.Mutex
	seen map[string]bluetooth.Address
}

// NewBLECentral enables adapter and wraps it. A nil logger disables logging.
func NewBLECentral(adapter *bluetooth.Adapter, log *zap.Logger) (*BLECentral, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable adapter: %w", err)
	}
	return &BLECentral{
		adapter: adapter,
		log:     log,
		seen:    make(map[string]bluetooth.Address),
	}, nil
}

// StartScan runs the adapter's blocking scan in a goroutine.
func (c *BLECentral) StartScan(service bluetooth.UUID, found func(address string)) error {
	go func() {
		err := c.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(service) {
				return
			}
			address := result.Address.String()

			c.mu.Lock()
			c.seen[address] = result.Address
			c.mu.Unlock()

			c.log.Debug("scan result",
				zap.String("address", address),
				zap.String("name", result.LocalName()),
				zap.Int16("rssi", result.RSSI))
			found(address)
		})
		if err != nil {
			c.log.Warn("scan stopped", zap.Error(err))
		}
	}()
	return nil
}

func (c *BLECentral) StopScan() error {
	return c.adapter.StopScan()
}

func (c *BLECentral) Connect(address string) (Peer, error) {
	c.mu.Lock()
	addr, ok := c.seen[address]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}

	dev, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	return &blePeer{address: address, dev: dev}, nil
}

func (c *BLECentral) SetConnectHandler(fn func(address string, connected bool)) {
	c.adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		fn(dev.Address.String(), connected)
	})
}

type blePeer struct {
	address string
	dev     bluetooth.Device
}

func (p *blePeer) Address() string { return p.address }

func (p *blePeer) Characteristic(profile Profile) (Characteristic, error) {
	services, err := p.dev.DiscoverServices([]bluetooth.UUID{profile.Service})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrServiceNotFound, profile.Service.String(), err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, profile.Service.String())
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{profile.Characteristic})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCharacteristicNotFound, profile.Characteristic.String(), err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCharacteristicNotFound, profile.Characteristic.String())
	}
	return &bleCharacteristic{char: chars[0]}, nil
}

func (p *blePeer) Disconnect() error {
	return p.dev.Disconnect()
}

type bleCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *bleCharacteristic) Read(buf []byte) (int, error) {
	return c.char.Read(buf)
}

func (c *bleCharacteristic) EnableNotifications(fn func(value []byte)) error {
	return c.char.EnableNotifications(fn)
}

// BLEPeripheral is a Peripheral exposing one readable, notifying
// characteristic on a bluetooth adapter.
type BLEPeripheral struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	char    bluetooth.Characteristic
}

// NewBLEPeripheral enables adapter, registers the profile's GATT service
// and configures advertising under name.
func NewBLEPeripheral(adapter *bluetooth.Adapter, profile Profile, name string, initial []byte) (*BLEPeripheral, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable adapter: %w", err)
	}

	p := &BLEPeripheral{adapter: adapter}

	adv := adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{profile.Service},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure advertisement: %w", err)
	}
	p.adv = adv

	err = adapter.AddService(&bluetooth.Service{
		UUID: profile.Service,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &p.char,
				UUID:   profile.Characteristic,
				Value:  initial,
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add service: %w", err)
	}

	return p, nil
}

func (p *BLEPeripheral) Advertise() error {
	return p.adv.Start()
}

func (p *BLEPeripheral) Notify(value []byte) error {
	_, err := p.char.Write(value)
	return err
}

func (p *BLEPeripheral) SetConnectHandler(fn func(address string, connected bool)) {
	p.adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		fn(dev.Address.String(), connected)
	})
}
