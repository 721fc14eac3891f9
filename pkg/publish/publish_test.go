package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return c.err
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

type fakeToken struct {
	mqtt.Token
	done chan struct{}
	err  error
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeClient struct {
	mqtt.Client
	topic        string
	qos          byte
	payload      []byte
	token        *fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic, c.qos, c.payload = topic, qos, payload.([]byte)
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) { c.disconnected = true }

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

type stubPublisher struct {
	err    error
	calls  int
	closed bool
}

func (p *stubPublisher) Publish(context.Context, Reading) error { p.calls++; return p.err }
func (p *stubPublisher) Close() error                           { p.closed = true; return p.err }

func TestNewReading(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewReading(now, 85, false, true, true)
	assert.Equal(t, "Normal", r.Zone)

	data, err := r.Marshal()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(85), doc["heart_rate"])
	assert.Equal(t, true, doc["hydrated"])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc["timestamp"])
}

func TestNATS_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := newNATS(conn, "hrm.readings", nil)

	require.NoError(t, p.Publish(context.Background(), NewReading(time.Unix(0, 0), 72, true, false, true)))
	assert.Equal(t, "hrm.readings", conn.subject)
	assert.Contains(t, string(conn.data), `"heart_rate":72`)

	conn.err = errors.New("slow consumer")
	assert.ErrorIs(t, p.Publish(context.Background(), Reading{}), conn.err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Reading{}), context.Canceled)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestMQTT_Publish(t *testing.T) {
	client := &fakeClient{token: doneToken(nil)}
	p := newMQTT(client, "hrm/readings", 1, nil)

	require.NoError(t, p.Publish(context.Background(), NewReading(time.Unix(0, 0), 64, false, true, true)))
	assert.Equal(t, "hrm/readings", client.topic)
	assert.Equal(t, byte(1), client.qos)
	assert.Contains(t, string(client.payload), `"zone":"Normal"`)

	client.token = doneToken(errors.New("not connected"))
	assert.ErrorIs(t, p.Publish(context.Background(), Reading{}), client.token.err)

	client.token = &fakeToken{done: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Publish(ctx, Reading{}), context.DeadlineExceeded)

	require.NoError(t, p.Close())
	assert.True(t, client.disconnected)
}

func TestMulti(t *testing.T) {
	a, b := &stubPublisher{}, &stubPublisher{err: errors.New("down")}
	m := Multi{a, b}

	err := m.Publish(context.Background(), Reading{})
	assert.ErrorIs(t, err, b.err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	assert.Error(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	assert.NoError(t, Multi{}.Publish(context.Background(), Reading{}))
}

func TestFromConfig_Disabled(t *testing.T) {
	m, err := FromConfig(config.Default().Publish, nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}
