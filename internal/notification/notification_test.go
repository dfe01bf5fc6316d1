package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/observability/metrics"
)

type fakeSender struct {
	message string
	title   string
	errs    []error
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.message = message
	if params != nil {
		f.title = (*params)["title"]
	}
	return f.errs
}

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	mqtt.Client

	connected  bool
	connectErr error
	publishErr error
	topic      string
	payload    []byte
	connects   int
}

func (c *fakeClient) IsConnected() bool { return c.connected }
func (c *fakeClient) Connect() mqtt.Token {
	c.connects++
	if c.connectErr == nil {
		c.connected = true
	}
	return &fakeToken{err: c.connectErr}
}
func (c *fakeClient) Disconnect(uint) { c.connected = false }
func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload any) mqtt.Token {
	c.topic = topic
	c.payload = payload.([]byte)
	return &fakeToken{err: c.publishErr}
}

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) NotifySpeciesDeleted(context.Context, SpeciesDeleted) error {
	s.calls++
	return s.err
}

func TestSpeciesDeletedMessage(t *testing.T) {
	t.Parallel()

	event := NewSpeciesDeleted("Blue Jay", "Cyanocitta cristata", 3, 2)
	assert.Equal(t, EventSpeciesDeleted, event.Event)
	assert.False(t, event.Time.IsZero())
	assert.Equal(t, "Species deleted", event.Title())
	assert.Equal(t, "Blue Jay (Cyanocitta cristata): removed 3 detections and 2 recordings", event.Message())

	noSci := NewSpeciesDeleted("Blue Jay", "", 0, 0)
	assert.Equal(t, "Blue Jay: removed 0 detections and 0 recordings", noSci.Message())
}

func TestShoutrrrNotifier(t *testing.T) {
	t.Parallel()

	t.Run("sends title and body", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{errs: []error{nil}}
		n := &ShoutrrrNotifier{sender: sender}

		require.NoError(t, n.NotifySpeciesDeleted(t.Context(), NewSpeciesDeleted("Blue Jay", "", 1, 1)))
		assert.Equal(t, "Species deleted", sender.title)
		assert.Contains(t, sender.message, "Blue Jay")
	})

	t.Run("send errors are scrubbed", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{errs: []error{nil, fmt.Errorf("post https://hooks.example.com/x?token=secret failed")}}
		n := &ShoutrrrNotifier{sender: sender}

		err := n.NotifySpeciesDeleted(t.Context(), NewSpeciesDeleted("Blue Jay", "", 1, 1))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))
		assert.NotContains(t, err.Error(), "secret")
	})

	t.Run("requires urls", func(t *testing.T) {
		t.Parallel()
		_, err := NewShoutrrrNotifier(nil, time.Second)
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	})

	t.Run("rejects unknown service", func(t *testing.T) {
		t.Parallel()
		_, err := NewShoutrrrNotifier([]string{"nosuchservice://token@host"}, time.Second)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "token@")
	})
}

func newTestMQTT(client *fakeClient) *MQTTNotifier {
	n := NewMQTTNotifier(conf.MQTTSettings{
		Enabled:  true,
		Broker:   "tcp://localhost:1883",
		Topic:    "birdnet/",
		ClientID: "speciestools-test",
	})
	n.newClient = func(*mqtt.ClientOptions) mqtt.Client { return client }
	return n
}

func TestMQTTNotifier(t *testing.T) {
	t.Parallel()

	t.Run("publishes json payload", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{}
		n := newTestMQTT(client)

		event := NewSpeciesDeleted("Blue Jay", "Cyanocitta cristata", 4, 3)
		require.NoError(t, n.NotifySpeciesDeleted(t.Context(), event))
		require.NoError(t, n.NotifySpeciesDeleted(t.Context(), event))

		assert.Equal(t, "birdnet/species/deleted", client.topic)
		assert.Equal(t, 1, client.connects, "connection is reused")

		var got SpeciesDeleted
		require.NoError(t, json.Unmarshal(client.payload, &got))
		assert.Equal(t, "Blue Jay", got.CommonName)
		assert.Equal(t, int64(4), got.RowsDeleted)
		assert.Equal(t, 3, got.FilesDeleted)

		n.Close()
		assert.False(t, client.connected)
	})

	t.Run("connect failure", func(t *testing.T) {
		t.Parallel()
		n := newTestMQTT(&fakeClient{connectErr: fmt.Errorf("refused")})

		err := n.NotifySpeciesDeleted(t.Context(), NewSpeciesDeleted("Blue Jay", "", 0, 0))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	})

	t.Run("publish failure", func(t *testing.T) {
		t.Parallel()
		n := newTestMQTT(&fakeClient{publishErr: fmt.Errorf("not authorized")})

		err := n.NotifySpeciesDeleted(t.Context(), NewSpeciesDeleted("Blue Jay", "", 0, 0))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not authorized")
	})
}

func TestMultiNotifier(t *testing.T) {
	t.Parallel()

	nm, err := metrics.NewNotificationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	ok := &stubNotifier{name: "ok"}
	bad := &stubNotifier{name: "bad", err: fmt.Errorf("boom")}
	after := &stubNotifier{name: "after"}
	multi := NewMulti(nm, ok, bad, after)

	err = multi.NotifySpeciesDeleted(t.Context(), NewSpeciesDeleted("Blue Jay", "", 1, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, after.calls, "failure does not stop later backends")
	assert.Equal(t, 3, multi.Len())
	assert.Equal(t, 3, testutil.CollectAndCount(nm, "notification_deliveries_total"))

	empty := NewMulti(nil)
	assert.NoError(t, empty.NotifySpeciesDeleted(t.Context(), NewSpeciesDeleted("Blue Jay", "", 0, 0)))
	empty.Close()
}

func TestNewFromSettings(t *testing.T) {
	t.Parallel()

	multi := New(conf.NotificationSettings{
		Shoutrrr: conf.ShoutrrrSettings{Enabled: true},
		MQTT:     conf.MQTTSettings{Enabled: true, Broker: "tcp://localhost:1883", Topic: "birdnet"},
	}, nil)
	assert.Equal(t, 1, multi.Len(), "shoutrrr without urls is skipped")

	assert.Zero(t, New(conf.NotificationSettings{}, nil).Len())
}
