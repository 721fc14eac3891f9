package link

import (
	"errors"
	"testing"
	"time"

	"github.com/itohio/gohrm/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

type recorder struct {
	events []Event
}

func (r *recorder) HandleEvent(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []Kind {
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) reset() { r.events = nil }

func testProfile(t *testing.T) Profile {
	t.Helper()
	p, err := ProfileFromConfig(config.Default().Link)
	require.NoError(t, err)
	return p
}

func TestClient_ConnectReceiveAndReconnect(t *testing.T) {
	cfg := config.Default().Link
	profile := testProfile(t)
	lb := NewLoopback(profile)

	srv := NewServer(lb.Peripheral(), cfg, nil)
	require.NoError(t, srv.Start())

	cl := NewClient(lb.Central(), profile, cfg, nil)
	rec := &recorder{}
	t0 := time.Unix(1000, 0)
	now := t0
	step := func(d time.Duration) {
		now = now.Add(d)
		srv.Poll(now, nil)
		cl.Poll(now, rec)
	}

	assert.Equal(t, StateIdle, cl.State())
	step(0)
	assert.Equal(t, StateScanning, cl.State())

	step(5 * time.Millisecond)
	assert.Equal(t, StateConnecting, cl.State())
	assert.Equal(t, []Kind{EventDiscovered}, rec.kinds())

	step(5 * time.Millisecond)
	require.Equal(t, StateConnected, cl.State())
	assert.True(t, cl.Connected())
	assert.Equal(t, LoopbackPeripheralAddress, cl.Address())
	assert.Equal(t, []Kind{EventDiscovered, EventConnected}, rec.kinds())
	assert.NoError(t, cl.Err())

	step(5 * time.Millisecond)
	assert.True(t, srv.Connected())
	assert.False(t, srv.Advertising())

	rec.reset()
	sent, err := srv.Publish(now, []byte("HR:72,HYD:1"))
	require.NoError(t, err)
	require.True(t, sent)
	step(5 * time.Millisecond)
	require.Equal(t, []Kind{EventData}, rec.kinds())
	assert.Equal(t, "HR:72,HYD:1", string(rec.events[0].Data))

	// Link loss: Disconnected is delivered and the client goes idle.
	rec.reset()
	lb.Drop()
	step(5 * time.Millisecond)
	assert.Equal(t, []Kind{EventDisconnected}, rec.kinds())
	assert.Equal(t, StateIdle, cl.State())
	assert.Equal(t, "", cl.Address())
	assert.False(t, srv.Connected())

	// Server re-advertises after its delay.
	step(cfg.ReadvertiseDelay)
	assert.True(t, srv.Advertising())

	// No new attempt before the retry interval since the last attempt.
	assert.Equal(t, StateIdle, cl.State())
	for now.Sub(t0) < cfg.RetryInterval-10*time.Millisecond {
		step(10 * time.Millisecond)
		require.Equal(t, StateIdle, cl.State())
	}
	step(10 * time.Millisecond)
	assert.Equal(t, StateScanning, cl.State())

	step(5 * time.Millisecond)
	step(5 * time.Millisecond)
	assert.Equal(t, StateConnected, cl.State())
}

func TestClient_InitialValueDelivered(t *testing.T) {
	cfg := config.Default().Link
	profile := testProfile(t)
	lb := NewLoopback(profile)
	srv := NewServer(lb.Peripheral(), cfg, nil)
	require.NoError(t, srv.Start())

	// Value set before anyone connects.
	require.NoError(t, lb.Peripheral().Notify([]byte("HR:64,HYD:0")))

	cl := NewClient(lb.Central(), profile, cfg, nil)
	rec := &recorder{}
	now := time.Unix(1000, 0)
	for i := 0; i < 4; i++ {
		cl.Poll(now, rec)
		now = now.Add(10 * time.Millisecond)
	}

	require.Equal(t, []Kind{EventDiscovered, EventConnected, EventData}, rec.kinds())
	assert.Equal(t, "HR:64,HYD:0", string(rec.events[2].Data))
}

func TestClient_ScanTimeout(t *testing.T) {
	cfg := config.Default().Link
	profile := testProfile(t)
	lb := NewLoopback(profile) // peripheral never advertises

	cl := NewClient(lb.Central(), profile, cfg, nil)
	t0 := time.Unix(1000, 0)

	cl.Poll(t0, nil)
	assert.Equal(t, StateScanning, cl.State())

	cl.Poll(t0.Add(cfg.ScanTimeout-time.Millisecond), nil)
	assert.Equal(t, StateScanning, cl.State())

	cl.Poll(t0.Add(cfg.ScanTimeout), nil)
	assert.Equal(t, StateIdle, cl.State())

	// Retry interval has also elapsed since the attempt started.
	cl.Poll(t0.Add(cfg.ScanTimeout+time.Millisecond), nil)
	assert.Equal(t, StateScanning, cl.State())
}

func TestClient_LookupFailures(t *testing.T) {
	other, err := bluetooth.ParseUUID(config.BasicServiceUUID)
	require.NoError(t, err)
	otherChar, err := bluetooth.ParseUUID(config.BasicCharacteristicUUID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr error
	}{
		{
			name:    "characteristic missing",
			mutate:  func(p *Profile) { p.Characteristic = otherChar },
			wantErr: ErrCharacteristicNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Link
			served := testProfile(t)
			wanted := served
			tt.mutate(&wanted)

			lb := NewLoopback(served)
			require.NoError(t, lb.Peripheral().Advertise())

			cl := NewClient(lb.Central(), wanted, cfg, nil)
			now := time.Unix(1000, 0)
			cl.Poll(now, nil)
			cl.Poll(now, nil)
			assert.Equal(t, StateConnecting, cl.State())

			cl.Poll(now, nil)
			assert.Equal(t, StateFailed, cl.State())
			assert.True(t, errors.Is(cl.Err(), tt.wantErr))
			assert.True(t, IsNotFound(cl.Err()))
			assert.False(t, lb.Connected(), "failed lookup disconnects")

			// Backoff, then a fresh attempt right away.
			cl.Poll(now.Add(cfg.FailureBackoff/2), nil)
			assert.Equal(t, StateFailed, cl.State())
			cl.Poll(now.Add(cfg.FailureBackoff), nil)
			assert.Equal(t, StateIdle, cl.State())
			cl.Poll(now.Add(cfg.FailureBackoff), nil)
			assert.Equal(t, StateScanning, cl.State())
		})
	}

	t.Run("service not advertised", func(t *testing.T) {
		cfg := config.Default().Link
		served := testProfile(t)
		lb := NewLoopback(served)
		require.NoError(t, lb.Peripheral().Advertise())

		wanted := Profile{Service: other, Characteristic: otherChar}
		cl := NewClient(lb.Central(), wanted, cfg, nil)
		now := time.Unix(1000, 0)
		cl.Poll(now, nil)
		cl.Poll(now.Add(time.Second), nil)
		assert.Equal(t, StateScanning, cl.State(), "scan filters by service")
	})
}

// scriptedCentral fails Connect with err.
type scriptedCentral struct {
	err      error
	scans    int
	connects int
}

func (c *scriptedCentral) StartScan(_ bluetooth.UUID, found func(string)) error {
	c.scans++
	found("AA:BB:CC:DD:EE:FF")
	return nil
}
func (c *scriptedCentral) StopScan() error { return nil }
func (c *scriptedCentral) Connect(string) (Peer, error) {
	c.connects++
	return nil, c.err
}
func (c *scriptedCentral) SetConnectHandler(func(string, bool)) {}

func TestClient_ConnectFailureBacksOff(t *testing.T) {
	cfg := config.Default().Link
	central := &scriptedCentral{err: errors.New("connection timeout")}
	cl := NewClient(central, testProfile(t), cfg, nil)

	now := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		cl.Poll(now, nil)
	}
	assert.Equal(t, StateFailed, cl.State())
	assert.Equal(t, 1, central.connects)
	assert.ErrorContains(t, cl.Err(), "connection timeout")

	// Nothing happens while backing off.
	for i := 0; i < 10; i++ {
		now = now.Add(50 * time.Millisecond)
		cl.Poll(now, nil)
	}
	assert.Equal(t, 1, central.scans)

	now = now.Add(cfg.FailureBackoff)
	cl.Poll(now, nil)
	cl.Poll(now, nil)
	assert.Equal(t, 2, central.scans)
}

func TestClient_IgnoresStaleEvents(t *testing.T) {
	cfg := config.Default().Link
	central := &scriptedCentral{err: errors.New("nope")}
	cl := NewClient(central, testProfile(t), cfg, nil)
	rec := &recorder{}

	cl.queue.Push(Event{Kind: EventData, Data: []byte("72")})
	cl.queue.Push(Event{Kind: EventDisconnected})
	cl.Poll(time.Unix(1000, 0), rec)

	assert.Empty(t, rec.events)
}

func TestClient_CloseReturnsToIdle(t *testing.T) {
	cfg := config.Default().Link
	profile := testProfile(t)
	lb := NewLoopback(profile)

	cl := NewClient(lb.Central(), profile, cfg, nil)
	now := time.Unix(1000, 0)
	cl.Poll(now, nil)
	require.Equal(t, StateScanning, cl.State())

	require.NoError(t, cl.Close())
	assert.Equal(t, StateIdle, cl.State())

	srv := NewServer(lb.Peripheral(), cfg, nil)
	require.NoError(t, srv.Start())
	now = now.Add(cfg.RetryInterval)
	for i := 0; i < 3; i++ {
		srv.Poll(now, nil)
		cl.Poll(now, nil)
		now = now.Add(5 * time.Millisecond)
	}
	require.Equal(t, StateConnected, cl.State())

	require.NoError(t, cl.Close())
	assert.Equal(t, StateIdle, cl.State())
	assert.Empty(t, cl.Address())
}

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Push(Event{Kind: EventConnected}))
	assert.True(t, q.Push(Event{Kind: EventData, Data: []byte("1")}))
	assert.False(t, q.Push(Event{Kind: EventData, Data: []byte("2")}))
	assert.Equal(t, 1, q.Dropped())
	assert.Equal(t, 2, q.Len())

	events := q.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, EventConnected, events[0].Kind)
	assert.Equal(t, "1", string(events[1].Data))

	assert.Nil(t, q.Drain())
	assert.True(t, q.Push(Event{Kind: EventDisconnected}))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "data", EventData.String())
}
